package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/mealflow/mealflow/internal/config"
	"github.com/mealflow/mealflow/internal/credentials"
	"github.com/mealflow/mealflow/internal/fetch"
	"github.com/mealflow/mealflow/internal/metrics"
	"github.com/mealflow/mealflow/internal/store"
	"github.com/mealflow/mealflow/pkg/campustime"
)

// fakeRemote is a stub remote.Client that reports no rows, end-of-history,
// on every page — enough to make an accepted fetch trigger terminate.
type fakeRemote struct{}

func (fakeRemote) FetchPage(_ context.Context, _ string, _ int) ([]store.Transaction, bool, error) {
	return nil, false, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	h, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { h.Close() })

	base := time.Date(2024, 3, 15, 12, 0, 0, 0, campustime.Zone)
	rows := []store.Transaction{
		{ID: 1, Time: base, Amount: -15, Merchant: "食堂A"},
		{ID: 2, Time: base.Add(time.Hour), Amount: -60, Merchant: "超市"},
		{ID: 3, Time: base.Add(2 * time.Hour), Amount: -20, Merchant: "食堂B"},
	}
	if _, err := h.InsertMany(context.Background(), rows); err != nil {
		t.Fatalf("InsertMany: %v", err)
	}

	credStore := credentials.NewStore(t.TempDir() + "/config.json5")
	m := metrics.New(prometheus.NewRegistry())
	coordinator := fetch.New(h, fakeRemote{}, m, zerolog.Nop())

	srv := New(config.Default(), h, credStore, coordinator, m, zerolog.Nop(), credentials.Credential{})
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func TestListTransactionsReturnsAllRowsDescending(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/transactions")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var rows []transactionWire
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rows) != 3 || rows[0].ID != "3" {
		t.Fatalf("expected 3 rows newest-first, got %+v", rows)
	}
}

func TestQueryTransactionsScenarioS4(t *testing.T) {
	ts := newTestServer(t)

	body, _ := json.Marshal(map[string]string{"merchant": "食堂"})
	resp, err := http.Post(ts.URL+"/api/transactions/query", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	var rows []transactionWire
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 matching rows, got %d: %+v", len(rows), rows)
	}
	if rows[0].ID != "3" || rows[1].ID != "1" {
		t.Fatalf("expected descending time order, got %+v", rows)
	}
}

func TestCountTransactions(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/transactions/count")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]uint64
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["count"] != 3 {
		t.Fatalf("expected count 3, got %v", body["count"])
	}
}

func TestAccountCookieRoundTripScenarioS6(t *testing.T) {
	ts := newTestServer(t)

	missing, err := http.Get(ts.URL + "/api/config/account-cookie")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	missing.Body.Close()
	if missing.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 before any credential is configured, got %d", missing.StatusCode)
	}

	body, _ := json.Marshal(map[string]string{"hallticket": "abc"})
	req, err := http.NewRequest(http.MethodPut, ts.URL+"/api/config/hallticket", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	getResp, err := http.Get(ts.URL + "/api/config/account-cookie")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer getResp.Body.Close()

	var cred map[string]string
	if err := json.NewDecoder(getResp.Body).Decode(&cred); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cred["cookie"] != "hallticket=abc" {
		t.Fatalf("expected cookie 'hallticket=abc', got %q", cred["cookie"])
	}
}

func TestTriggerFetchRejectsWithoutCredential(t *testing.T) {
	ts := newTestServer(t)

	body, _ := json.Marshal(map[string]string{"start_date": "2024-01-01"})
	resp, err := http.Post(ts.URL+"/api/transactions/fetch", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing credential, got %d", resp.StatusCode)
	}
}

func TestStaticFallbackServesIndexHTML(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/some/spa/route")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from SPA fallback, got %d", resp.StatusCode)
	}
}
