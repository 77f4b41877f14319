package remote

import (
	"context"
	"hash/fnv"
	"math/rand"
	"time"

	"github.com/mealflow/mealflow/internal/store"
	"github.com/mealflow/mealflow/pkg/campustime"
)

// mockMerchants is the bundled merchant list mock pages sample from.
var mockMerchants = []string{
	"第一食堂", "第二食堂", "梧桐苑超市", "丹枫轩", "教工餐厅",
	"启明星超市", "浴室", "打印店", "咖啡馆", "便利店",
}

// MockClient deterministically generates a fixed-length transaction history
// per account, seeded from the account identifier so repeated runs against
// the same --account in --use-mock-data produce identical data (spec.md
// §4.2). Grounded on the teacher's storage/file_store.go pattern of
// returning reproducible fixtures for local development.
type MockClient struct{}

// NewMockClient builds the deterministic mock remote client.
func NewMockClient() *MockClient { return &MockClient{} }

// FetchPage synthesizes page (1-indexed, matching the remote's own paging
// convention per spec.md §4.3 step 2) of account's mock history.
func (MockClient) FetchPage(_ context.Context, account string, page int) ([]store.Transaction, bool, error) {
	seed := seedFor(account)
	rng := rand.New(rand.NewSource(seed))

	total := mockTotalRows(seed)
	start := (page - 1) * PageSize
	if start >= total {
		return nil, false, nil
	}
	end := start + PageSize
	if end > total {
		end = total
	}

	// Advance the RNG deterministically to the start of this page so every
	// page of a given account can be requested independently and still
	// reproduce the same rows every run.
	for i := 0; i < start; i++ {
		advanceMockRow(rng)
	}

	now := campustime.InZone(time.Now())
	rows := make([]store.Transaction, 0, end-start)
	for i := start; i < end; i++ {
		offsetMinutes, merchantIdx, amountCents := advanceMockRow(rng)
		t := now.AddDate(0, 0, -i/4).Add(-time.Duration(offsetMinutes) * time.Minute)
		rows = append(rows, store.Transaction{
			ID:       seed%1_000_000*100_000 + int64(i),
			Time:     t,
			Amount:   -float64(amountCents) / 100.0,
			Merchant: mockMerchants[merchantIdx%len(mockMerchants)],
		})
	}

	return rows, end-start == PageSize, nil
}

// seedFor derives a stable int64 seed from account so the same account
// string always produces the same mock history.
func seedFor(account string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(account))
	return int64(h.Sum64() >> 1) // keep positive for rand.NewSource
}

// mockTotalRows derives a fixed, plausible history length (200-599 rows)
// from the seed so different accounts get different but stable totals.
func mockTotalRows(seed int64) int {
	return 200 + int(seed%400)
}

// advanceMockRow draws the next pseudo-random row parameters: minutes
// offset within its day, merchant index, and amount in cents within
// [50, 8000] (spec.md §4.2's -80.00..-0.50 range).
func advanceMockRow(rng *rand.Rand) (offsetMinutes int, merchantIdx int, amountCents int) {
	offsetMinutes = rng.Intn(24 * 60)
	merchantIdx = rng.Intn(len(mockMerchants))
	amountCents = 50 + rng.Intn(7951)
	return
}
