// Package store implements the transaction store (spec.md §4.1): an
// embedded sqlite database (file or :memory:) holding the deduplicated
// transaction ledger. The embedded driver is synchronous, so every call is
// dispatched onto a dedicated worker goroutine — the teacher's
// internal/dbpool wraps a *sql.DB the same way, adapted here from a
// multi-connection Postgres pool to a single-writer sqlite handle that also
// serializes reads in FIFO order (spec.md §5).
package store

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mealflow/mealflow/internal/apperrors"
	"github.com/mealflow/mealflow/internal/query"
	"github.com/mealflow/mealflow/pkg/campustime"
)

// Transaction is a single card-ledger entry (spec.md §3).
type Transaction struct {
	ID       int64
	Time     time.Time
	Amount   float64
	Merchant string
}

// MatchMerchant, MatchAmount, and MatchTime satisfy query.Matchable so a
// Transaction can be checked against a FilterSpec purely in memory with
// query.Match.
func (t Transaction) MatchMerchant() string  { return t.Merchant }
func (t Transaction) MatchAmount() float64   { return t.Amount }
func (t Transaction) MatchTime() time.Time   { return t.Time }

const schema = `
CREATE TABLE IF NOT EXISTS transactions (
	id       INTEGER PRIMARY KEY,
	time     TEXT NOT NULL,
	amount   REAL NOT NULL,
	merchant TEXT NOT NULL
)`

const timeLayout = time.RFC3339

// Handle is the process-wide, mutex-equivalent store handle: all calls are
// funneled through one worker goroutine so the embedded sqlite driver never
// sees concurrent writers, while callers themselves stay non-blocking with
// respect to the async runtime (spec.md §5).
type Handle struct {
	db   *sql.DB
	jobs chan func()
	done chan struct{}
}

// Open creates or opens the sqlite file at path (":memory:" for an
// in-process-lifetime database) and ensures the schema exists.
func Open(path string) (*Handle, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStore, "open sqlite database", err)
	}
	// sqlite has no real concurrent-writer story; cap the pool to one
	// connection so database/sql can't hand out a second one underneath us.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, apperrors.Wrap(apperrors.CodeStore, "create schema", err)
	}

	h := &Handle{
		db:   db,
		jobs: make(chan func()),
		done: make(chan struct{}),
	}
	go h.run()
	return h, nil
}

func (h *Handle) run() {
	defer close(h.done)
	for fn := range h.jobs {
		fn()
	}
}

// dispatch submits fn to the worker goroutine and blocks until it runs,
// honoring ctx cancellation while waiting for a free worker slot.
func (h *Handle) dispatch(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	wrapped := func() {
		fn()
		close(done)
	}
	select {
	case h.jobs <- wrapped:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting new work and closes the underlying database.
func (h *Handle) Close() error {
	close(h.jobs)
	<-h.done
	return h.db.Close()
}

// InsertMany inserts rows, ignoring conflicts on id, and returns the count
// of rows actually inserted (spec.md §4.1 insert idempotency).
func (h *Handle) InsertMany(ctx context.Context, rows []Transaction) (int, error) {
	var inserted int
	var opErr error

	err := h.dispatch(ctx, func() {
		tx, err := h.db.Begin()
		if err != nil {
			opErr = apperrors.Wrap(apperrors.CodeStore, "begin transaction", err)
			return
		}
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO transactions (id, time, amount, merchant) VALUES (?, ?, ?, ?)`)
		if err != nil {
			tx.Rollback()
			opErr = apperrors.Wrap(apperrors.CodeStore, "prepare insert", err)
			return
		}
		defer stmt.Close()

		for _, row := range rows {
			res, err := stmt.Exec(row.ID, row.Time.Format(timeLayout), row.Amount, row.Merchant)
			if err != nil {
				tx.Rollback()
				opErr = apperrors.Wrap(apperrors.CodeStore, "insert transaction", err)
				return
			}
			n, _ := res.RowsAffected()
			inserted += int(n)
		}

		if err := tx.Commit(); err != nil {
			opErr = apperrors.Wrap(apperrors.CodeStore, "commit transaction", err)
		}
	})
	if err != nil {
		return 0, err
	}
	return inserted, opErr
}

// Count returns the total number of stored transactions.
func (h *Handle) Count(ctx context.Context) (uint64, error) {
	var count uint64
	var opErr error
	err := h.dispatch(ctx, func() {
		row := h.db.QueryRow(`SELECT COUNT(*) FROM transactions`)
		if scanErr := row.Scan(&count); scanErr != nil {
			opErr = apperrors.Wrap(apperrors.CodeStore, "count transactions", scanErr)
		}
	})
	if err != nil {
		return 0, err
	}
	return count, opErr
}

// OldestTime returns the earliest stored transaction time, or nil if empty.
func (h *Handle) OldestTime(ctx context.Context) (*time.Time, error) {
	return h.boundaryTime(ctx, `SELECT MIN(time) FROM transactions`)
}

// NewestTime returns the most recent stored transaction time, or nil if empty.
func (h *Handle) NewestTime(ctx context.Context) (*time.Time, error) {
	return h.boundaryTime(ctx, `SELECT MAX(time) FROM transactions`)
}

func (h *Handle) boundaryTime(ctx context.Context, query string) (*time.Time, error) {
	var result *time.Time
	var opErr error
	err := h.dispatch(ctx, func() {
		var raw sql.NullString
		row := h.db.QueryRow(query)
		if scanErr := row.Scan(&raw); scanErr != nil {
			opErr = apperrors.Wrap(apperrors.CodeStore, "read boundary time", scanErr)
			return
		}
		if !raw.Valid {
			return
		}
		t, parseErr := time.Parse(timeLayout, raw.String)
		if parseErr != nil {
			opErr = apperrors.Wrap(apperrors.CodeStore, "parse boundary time", parseErr)
			return
		}
		t = campustime.InZone(t)
		result = &t
	})
	if err != nil {
		return nil, err
	}
	return result, opErr
}

// Query translates filter into a single parameterised statement and
// returns matching rows ordered by time descending (spec.md §4.1/§4.4).
func (h *Handle) Query(ctx context.Context, filter query.FilterSpec) ([]Transaction, error) {
	where, args, err := filter.Render()
	if err != nil {
		return nil, err
	}

	stmt := `SELECT id, time, amount, merchant FROM transactions`
	if where != "" {
		stmt += ` WHERE ` + where
	}
	stmt += ` ORDER BY time DESC`

	var rows []Transaction
	var opErr error
	err = h.dispatch(ctx, func() {
		result, queryErr := h.db.Query(stmt, args...)
		if queryErr != nil {
			opErr = apperrors.Wrap(apperrors.CodeStore, "query transactions", queryErr)
			return
		}
		defer result.Close()

		for result.Next() {
			var (
				t   Transaction
				raw string
			)
			if scanErr := result.Scan(&t.ID, &raw, &t.Amount, &t.Merchant); scanErr != nil {
				opErr = apperrors.Wrap(apperrors.CodeStore, "scan transaction row", scanErr)
				return
			}
			parsed, parseErr := time.Parse(timeLayout, raw)
			if parseErr != nil {
				opErr = apperrors.Wrap(apperrors.CodeStore, "parse transaction time", parseErr)
				return
			}
			t.Time = campustime.InZone(parsed)
			rows = append(rows, t)
		}
		if scanErr := result.Err(); scanErr != nil {
			opErr = apperrors.Wrap(apperrors.CodeStore, "iterate transaction rows", scanErr)
		}
	})
	if err != nil {
		return nil, err
	}
	return rows, opErr
}

// Clear drops all rows (used by the clear-db subcommand).
func (h *Handle) Clear(ctx context.Context) error {
	var opErr error
	err := h.dispatch(ctx, func() {
		if _, execErr := h.db.Exec(`DELETE FROM transactions`); execErr != nil {
			opErr = apperrors.Wrap(apperrors.CodeStore, "clear transactions", execErr)
		}
	})
	if err != nil {
		return err
	}
	return opErr
}
