// Package remote implements the card-service client (spec.md §4.2): a
// paginated POST endpoint returning up to PageSize transactions per call,
// plus a deterministic mock implementation used under --use-mock-data. The
// fetch coordinator is parameterised over the Client interface so the real
// and mock implementations are interchangeable in tests (Design Notes'
// "polymorphism of the remote client").
package remote

import (
	"context"

	"github.com/mealflow/mealflow/internal/store"
)

// PageSize is the remote's nominal page length; a short page signals
// end-of-history.
const PageSize = 100

// DefaultEndpoint is the card service's transaction-history endpoint used
// when XMF_REMOTE_ENDPOINT is not set. Campus deployments vary this per
// institution, so it is always overridable at startup.
const DefaultEndpoint = "https://card.example.edu/api/tsm/queryPersonTrjn"

// Client fetches one page of transaction history for account.
type Client interface {
	FetchPage(ctx context.Context, account string, page int) (rows []store.Transaction, full bool, err error)
}
