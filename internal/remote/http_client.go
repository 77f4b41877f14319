package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/mealflow/mealflow/internal/apperrors"
	"github.com/mealflow/mealflow/internal/store"
	"github.com/mealflow/mealflow/pkg/campustime"
)

// requestTimeout bounds each remote HTTP call (spec.md §5).
const requestTimeout = 30 * time.Second

// rawRow is the wire shape of one row in the card service's response.
type rawRow struct {
	ID       *int64  `json:"id"`
	Time     *string `json:"time"`
	Amount   *string `json:"amount"`
	Merchant *string `json:"merchant"`
}

type pageResponse struct {
	Transactions []rawRow `json:"transactions"`
}

// HTTPClient is the real card-service client. It wraps every page request
// in a circuit breaker — the teacher's internal/circuitbreaker isolates
// failures per external service the same way, trimmed here to one service.
type HTTPClient struct {
	endpoint string
	cookie   string
	http     *http.Client
	breaker  *gobreaker.CircuitBreaker
	logger   zerolog.Logger
}

// NewHTTPClient builds a real client against endpoint, authenticating every
// request with the resolved session cookie (spec.md §4.2).
func NewHTTPClient(endpoint, cookie string, logger zerolog.Logger) *HTTPClient {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "campus-card-service",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &HTTPClient{
		endpoint: endpoint,
		cookie:   cookie,
		http:     &http.Client{Timeout: requestTimeout},
		breaker:  breaker,
		logger:   logger,
	}
}

// FetchPage requests one page and parses it into Transactions, dropping
// unparseable rows with a warning rather than aborting the page (spec.md §4.2).
func (c *HTTPClient) FetchPage(ctx context.Context, account string, page int) ([]store.Transaction, bool, error) {
	body, err := json.Marshal(map[string]any{"account": account, "page": page})
	if err != nil {
		return nil, false, apperrors.Wrap(apperrors.CodeRemote, "encode request body", err)
	}

	result, err := c.breaker.Execute(func() (any, error) {
		return c.doRequest(ctx, body, page)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, false, apperrors.Wrap(apperrors.CodeRemote, fmt.Sprintf("page %d: circuit open", page), err)
		}
		return nil, false, err
	}

	resp := result.(pageResponse)
	rows := make([]store.Transaction, 0, len(resp.Transactions))
	for _, raw := range resp.Transactions {
		row, ok := parseRow(raw)
		if !ok {
			c.logger.Warn().Int("page", page).Msg("dropping unparseable transaction row")
			continue
		}
		rows = append(rows, row)
	}

	return rows, len(resp.Transactions) == PageSize, nil
}

func (c *HTTPClient) doRequest(ctx context.Context, body []byte, page int) (pageResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return pageResponse{}, apperrors.Wrap(apperrors.CodeRemote, fmt.Sprintf("page %d: build request", page), err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cookie", c.cookie)

	httpResp, err := c.http.Do(req)
	if err != nil {
		return pageResponse{}, apperrors.Wrap(apperrors.CodeRemote, fmt.Sprintf("page %d: network error", page), err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 400 {
		return pageResponse{}, apperrors.New(apperrors.CodeRemote, fmt.Sprintf("page %d: http %d", page, httpResp.StatusCode))
	}

	var resp pageResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return pageResponse{}, apperrors.Wrap(apperrors.CodeRemote, fmt.Sprintf("page %d: parse response", page), err)
	}
	return resp, nil
}

// parseRow converts a raw wire row into a Transaction, reporting whether
// every required field parsed successfully.
func parseRow(raw rawRow) (store.Transaction, bool) {
	if raw.ID == nil || raw.Time == nil || raw.Amount == nil || raw.Merchant == nil {
		return store.Transaction{}, false
	}
	t, err := campustime.ParseRemote(*raw.Time)
	if err != nil {
		return store.Transaction{}, false
	}
	amount, err := strconv.ParseFloat(*raw.Amount, 64)
	if err != nil {
		return store.Transaction{}, false
	}
	if *raw.Merchant == "" {
		return store.Transaction{}, false
	}
	return store.Transaction{ID: *raw.ID, Time: t, Amount: amount, Merchant: *raw.Merchant}, true
}
