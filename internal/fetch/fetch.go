// Package fetch implements the fetch coordinator (spec.md §4.3): an
// incremental walk-back-until-known loop that drives a remote.Client from
// newest page backward, inserting into the store until it overlaps
// already-known history or reaches the caller's floor date. Single-flight
// guarded by an atomic state machine, not a held mutex, per Design Notes.
package fetch

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/mealflow/mealflow/internal/apperrors"
	"github.com/mealflow/mealflow/internal/metrics"
	"github.com/mealflow/mealflow/internal/remote"
	"github.com/mealflow/mealflow/internal/store"
	"github.com/mealflow/mealflow/pkg/campustime"
)

// State is one of the FetchProgress lifecycle states (spec.md §3).
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateFailed  State = "failed"
)

// Progress is the ephemeral, in-memory fetch status (spec.md §3):
// one instance shared by every caller of a given Coordinator.
type Progress struct {
	State         State
	FetchedCount  int
	OldestSeen    *time.Time
	FailureReason string
}

// Result is returned by a completed walk (spec.md §4.3 step 4).
type Result struct {
	InsertedTotal int
	PagesFetched  int
	OldestSeen    *time.Time
}

// Coordinator runs the walk. busy is the single-flight guard and progress
// always holds the current Progress (StateIdle before the first walk); both
// are atomics, never a mutex, so a second trigger attempt fails fast
// instead of blocking on the first (spec.md §9 "single-flight fetch").
type Coordinator struct {
	store   *store.Handle
	client  remote.Client
	metrics *metrics.Metrics
	logger  zerolog.Logger

	busy     atomic.Bool
	progress atomic.Value // holds Progress
}

// New builds a coordinator around store and client.
func New(handle *store.Handle, client remote.Client, m *metrics.Metrics, logger zerolog.Logger) *Coordinator {
	c := &Coordinator{store: handle, client: client, metrics: m, logger: logger}
	c.progress.Store(Progress{State: StateIdle})
	return c
}

// Progress returns the current, possibly in-flight, fetch status.
func (c *Coordinator) Progress() Progress {
	return c.progress.Load().(Progress)
}

// Run drives the walk-back-until-known loop for account starting from the
// remote's newest page down to floor (inclusive). It returns FetchBusy if a
// walk is already in flight; the caller is never queued behind it.
func (c *Coordinator) Run(ctx context.Context, account string, floor time.Time) (Result, error) {
	if !c.busy.CompareAndSwap(false, true) {
		return Result{}, apperrors.New(apperrors.CodeFetchBusy, "a fetch is already running")
	}
	defer c.busy.Store(false)
	return c.runLocked(ctx, account, floor)
}

// TryRunAsync attempts to acquire the single-flight guard synchronously and,
// on success, runs the walk in a detached goroutine — used by the HTTP
// trigger endpoint, which must answer 202/409 immediately rather than block
// on the walk itself (spec.md §4.7).
func (c *Coordinator) TryRunAsync(account string, floor time.Time) bool {
	if !c.busy.CompareAndSwap(false, true) {
		return false
	}
	go func() {
		defer c.busy.Store(false)
		_, _ = c.runLocked(context.Background(), account, floor)
	}()
	return true
}

// runLocked performs the walk; callers must hold the busy guard.
func (c *Coordinator) runLocked(ctx context.Context, account string, floor time.Time) (Result, error) {
	c.progress.Store(Progress{State: StateRunning})

	newest, err := c.store.NewestTime(ctx)
	if err != nil {
		c.fail(err)
		return Result{}, err
	}

	result, err := c.walk(ctx, account, floor, newest)
	if err != nil {
		c.fail(err)
		return Result{}, err
	}

	c.progress.Store(Progress{
		State:        StateIdle,
		FetchedCount: result.InsertedTotal,
		OldestSeen:   result.OldestSeen,
	})
	return result, nil
}

func (c *Coordinator) fail(err error) {
	c.progress.Store(Progress{
		State:         StateFailed,
		FailureReason: apperrors.As(err).Message,
	})
}

// walk implements spec.md §4.3 steps 2-3: page through the remote newest to
// oldest, inserting each page, stopping on overlap with known history, the
// caller's floor, or a short (end-of-history) page.
func (c *Coordinator) walk(ctx context.Context, account string, floor time.Time, newest *time.Time) (Result, error) {
	var (
		insertedTotal int
		pagesFetched  int
		oldestSeen    *time.Time
	)

	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return Result{InsertedTotal: insertedTotal, PagesFetched: pagesFetched, OldestSeen: oldestSeen}, err
		}

		stop := metrics.MeasureFetchPage(c.metrics)
		rows, full, err := c.client.FetchPage(ctx, account, page)
		stop()
		if err != nil {
			return Result{}, err
		}
		pagesFetched++

		if len(rows) > 0 {
			n, err := c.store.InsertMany(ctx, rows)
			if err != nil {
				return Result{}, err
			}
			insertedTotal += n
			oldestSeen = earliestOf(oldestSeen, rows)
			c.progress.Store(Progress{State: StateRunning, FetchedCount: insertedTotal, OldestSeen: oldestSeen})
		}

		c.logger.Debug().Int("page", page).Int("rows", len(rows)).Int("inserted_total", insertedTotal).Msg("fetch page processed")

		if pageOverlapsFloorOrKnown(rows, floor, newest) || !full {
			break
		}
	}

	return Result{InsertedTotal: insertedTotal, PagesFetched: pagesFetched, OldestSeen: oldestSeen}, nil
}

// pageOverlapsFloorOrKnown reports whether this page's minimum time reaches
// the caller's floor or already-known territory (spec.md §4.3 step 3).
func pageOverlapsFloorOrKnown(rows []store.Transaction, floor time.Time, newest *time.Time) bool {
	if len(rows) == 0 {
		return false
	}
	minTime := rows[0].Time
	for _, r := range rows {
		if r.Time.Before(minTime) {
			minTime = r.Time
		}
	}
	if minTime.Before(floor) {
		return true
	}
	if newest != nil && !minTime.After(*newest) {
		return true
	}
	return false
}

func earliestOf(current *time.Time, rows []store.Transaction) *time.Time {
	earliest := current
	for _, r := range rows {
		t := campustime.InZone(r.Time)
		if earliest == nil || t.Before(*earliest) {
			earliest = &t
		}
	}
	return earliest
}
