package fetch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/mealflow/mealflow/internal/apperrors"
	"github.com/mealflow/mealflow/internal/remote"
	"github.com/mealflow/mealflow/internal/store"
	"github.com/mealflow/mealflow/pkg/campustime"
)

// fixedClient serves a pre-baked set of pages, newest-first, ignoring page
// numbers beyond its slice length (returned as an empty short page).
type fixedClient struct {
	pages    [][]store.Transaction
	pageSize int // length of a full page; remotePageSize when zero
}

func (f *fixedClient) FetchPage(_ context.Context, _ string, page int) ([]store.Transaction, bool, error) {
	idx := page - 1
	if idx < 0 || idx >= len(f.pages) {
		return nil, false, nil
	}
	rows := f.pages[idx]
	size := f.pageSize
	if size == 0 {
		size = remotePageSize
	}
	full := len(rows) == size
	return rows, full, nil
}

const remotePageSize = 100

func mkRow(id int64, daysAgo int, merchant string) store.Transaction {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, campustime.Zone)
	return store.Transaction{ID: id, Time: base.AddDate(0, 0, -daysAgo), Amount: -10, Merchant: merchant}
}

func openHandle(t *testing.T) *store.Handle {
	t.Helper()
	h, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

func TestRunInsertsAllRowsOnEmptyStore(t *testing.T) {
	h := openHandle(t)
	client := &fixedClient{pages: [][]store.Transaction{
		{mkRow(3, 0, "a"), mkRow(2, 1, "a"), mkRow(1, 2, "a")},
	}}
	c := New(h, client, nil, zerolog.Nop())

	floor := time.Date(2024, 1, 1, 0, 0, 0, 0, campustime.Zone)
	result, err := c.Run(context.Background(), "u1", floor)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.InsertedTotal != 3 {
		t.Fatalf("expected 3 rows inserted, got %d", result.InsertedTotal)
	}

	count, err := h.Count(context.Background())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected store count 3, got %d", count)
	}
}

func TestSecondRunInsertsNothingNew(t *testing.T) {
	h := openHandle(t)
	client := &fixedClient{pages: [][]store.Transaction{
		{mkRow(3, 0, "a"), mkRow(2, 1, "a"), mkRow(1, 2, "a")},
	}}
	c := New(h, client, nil, zerolog.Nop())
	floor := time.Date(2024, 1, 1, 0, 0, 0, 0, campustime.Zone)

	if _, err := c.Run(context.Background(), "u1", floor); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	result, err := c.Run(context.Background(), "u1", floor)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if result.InsertedTotal != 0 {
		t.Fatalf("expected 0 rows inserted on second run, got %d", result.InsertedTotal)
	}
}

func TestRunStopsAtFloorDate(t *testing.T) {
	h := openHandle(t)
	client := &fixedClient{pageSize: 2, pages: [][]store.Transaction{
		{mkRow(5, 0, "a"), mkRow(4, 1, "a")},
		{mkRow(3, 5, "a"), mkRow(2, 10, "a")}, // page 2's min time is before floor
		{mkRow(1, 20, "a")},                   // would never be reached
	}}
	c := New(h, client, nil, zerolog.Nop())

	floor := time.Date(2024, 6, 1, 12, 0, 0, 0, campustime.Zone).AddDate(0, 0, -7)
	result, err := c.Run(context.Background(), "u1", floor)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.PagesFetched != 2 {
		t.Fatalf("expected walk to stop after page 2, fetched %d pages", result.PagesFetched)
	}
}

func TestConcurrentRunIsRejectedWithFetchBusy(t *testing.T) {
	h := openHandle(t)
	block := make(chan struct{})
	client := &blockingClient{release: block}
	c := New(h, client, nil, zerolog.Nop())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = c.Run(context.Background(), "u1", time.Now())
	}()

	// Give the goroutine a moment to acquire the busy flag.
	for i := 0; i < 1000 && !c.busy.Load(); i++ {
		time.Sleep(time.Millisecond)
	}

	_, err := c.Run(context.Background(), "u1", time.Now())
	close(block)
	wg.Wait()

	if err == nil {
		t.Fatal("expected FetchBusy error on concurrent Run")
	}
	appErr := apperrors.As(err)
	if appErr.Code != apperrors.CodeFetchBusy {
		t.Fatalf("expected CodeFetchBusy, got %v", appErr.Code)
	}
}

// TestRunAgainstMockClientInsertsFullHistory exercises the coordinator
// against the real remote.MockClient used by --use-mock-data, not just the
// test-only fixedClient — this is the code path a real mock-mode user
// drives, and it depends on the mock client's page indexing and its
// full-page signal agreeing with the coordinator's 1-indexed walk
// (spec.md §4.3 step 2, §8 property 7).
func TestRunAgainstMockClientInsertsFullHistory(t *testing.T) {
	h := openHandle(t)
	account := "u2021999999"
	client := remote.NewMockClient()

	// Independently paginate the same account to learn its deterministic
	// history length, without assuming anything about the coordinator.
	var want int
	for page := 1; ; page++ {
		rows, full, err := client.FetchPage(context.Background(), account, page)
		if err != nil {
			t.Fatalf("FetchPage: %v", err)
		}
		want += len(rows)
		if !full {
			break
		}
	}
	if want == 0 {
		t.Fatal("expected the mock client to produce a non-empty history")
	}

	c := New(h, client, nil, zerolog.Nop())
	floor := time.Now().AddDate(-5, 0, 0)
	result, err := c.Run(context.Background(), account, floor)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.InsertedTotal != want {
		t.Fatalf("expected %d rows inserted from mock history, got %d", want, result.InsertedTotal)
	}

	count, err := h.Count(context.Background())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if int(count) != want {
		t.Fatalf("expected store count %d, got %d", want, count)
	}
}

// blockingClient blocks its first FetchPage call until release is closed,
// then reports end-of-history.
type blockingClient struct {
	release chan struct{}
}

func (b *blockingClient) FetchPage(ctx context.Context, _ string, _ int) ([]store.Transaction, bool, error) {
	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
	return nil, false, nil
}
