package httpserver

import (
	"strconv"
	"time"

	"github.com/mealflow/mealflow/internal/store"
)

// transactionWire is the JSON wire shape for a Transaction (spec.md §4.7):
// id is string-encoded so JS's 53-bit safe-integer limit never truncates it.
type transactionWire struct {
	ID       string  `json:"id"`
	Time     string  `json:"time"`
	Amount   float64 `json:"amount"`
	Merchant string  `json:"merchant"`
}

func toWire(t store.Transaction) transactionWire {
	return transactionWire{
		ID:       strconv.FormatInt(t.ID, 10),
		Time:     t.Time.Format(time.RFC3339),
		Amount:   t.Amount,
		Merchant: t.Merchant,
	}
}

func toWireSlice(rows []store.Transaction) []transactionWire {
	out := make([]transactionWire, len(rows))
	for i, r := range rows {
		out[i] = toWire(r)
	}
	return out
}
