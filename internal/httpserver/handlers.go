package httpserver

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/mealflow/mealflow/internal/apperrors"
	"github.com/mealflow/mealflow/internal/credentials"
	"github.com/mealflow/mealflow/internal/export"
	"github.com/mealflow/mealflow/internal/query"
	"github.com/mealflow/mealflow/pkg/campustime"
	"github.com/mealflow/mealflow/pkg/responders"
)

// errorBody is the exact wire shape spec.md §4.7/§7 requires: no extra
// fields, unlike the teacher's richer error envelope.
type errorBody struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	responders.JSON(w, status, body)
}

func writeError(w http.ResponseWriter, err error) {
	appErr := apperrors.As(err)
	writeJSON(w, appErr.Code.HTTPStatus(), errorBody{Message: appErr.Message})
}

// listTransactions serves GET /api/transactions.
func (h *handlers) listTransactions(w http.ResponseWriter, r *http.Request) {
	rows, err := h.store.Query(r.Context(), query.FilterSpec{})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toWireSlice(rows))
}

// queryTransactions serves POST /api/transactions/query.
func (h *handlers) queryTransactions(w http.ResponseWriter, r *http.Request) {
	var filter query.FilterSpec
	if err := json.NewDecoder(r.Body).Decode(&filter); err != nil {
		writeError(w, apperrors.Wrap(apperrors.CodeValidation, "malformed filter body", err))
		return
	}

	rows, err := h.store.Query(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toWireSlice(rows))
}

// countTransactions serves GET /api/transactions/count.
func (h *handlers) countTransactions(w http.ResponseWriter, r *http.Request) {
	count, err := h.store.Count(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"count": count})
}

type fetchRequest struct {
	StartDate string `json:"start_date"`
}

// triggerFetch serves POST /api/transactions/fetch: 202 on accept (the walk
// runs in a background goroutine), 409 if a fetch is already running
// (spec.md §4.7, §8 property 8).
func (h *handlers) triggerFetch(w http.ResponseWriter, r *http.Request) {
	var req fetchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.Wrap(apperrors.CodeValidation, "malformed fetch request body", err))
		return
	}
	floor, err := campustime.ParseDate(req.StartDate)
	if err != nil {
		writeError(w, apperrors.Wrap(apperrors.CodeValidation, "malformed start_date", err))
		return
	}

	cred := h.cred.Load().(credentials.Credential)
	if cred.IsZero() {
		writeError(w, apperrors.New(apperrors.CodeConfig, "no account/cookie configured"))
		return
	}

	if !h.coordinator.TryRunAsync(cred.Account, floor) {
		writeError(w, apperrors.New(apperrors.CodeFetchBusy, "a fetch is already running"))
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

type accountRequest struct {
	Account string `json:"account"`
}

// putAccount serves PUT /api/config/account.
func (h *handlers) putAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.Wrap(apperrors.CodeValidation, "malformed account body", err))
		return
	}
	if err := h.credStore.SetAccount(req.Account); err != nil {
		writeError(w, err)
		return
	}
	h.updateCred(func(c *credentials.Credential) { c.Account = req.Account })
	w.WriteHeader(http.StatusNoContent)
}

type hallticketRequest struct {
	Hallticket string `json:"hallticket"`
}

// putHallticket serves PUT /api/config/hallticket.
func (h *handlers) putHallticket(w http.ResponseWriter, r *http.Request) {
	var req hallticketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.Wrap(apperrors.CodeValidation, "malformed hallticket body", err))
		return
	}
	if err := h.credStore.SetHallticket(req.Hallticket); err != nil {
		writeError(w, err)
		return
	}
	h.updateCred(func(c *credentials.Credential) { c.Cookie = credentials.NormalizeHallticket(req.Hallticket) })
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) updateCred(mutate func(*credentials.Credential)) {
	cred := h.cred.Load().(credentials.Credential)
	mutate(&cred)
	h.cred.Store(cred)
}

// getAccountCookie serves GET /api/config/account-cookie.
func (h *handlers) getAccountCookie(w http.ResponseWriter, r *http.Request) {
	cred := h.cred.Load().(credentials.Credential)
	if cred.IsZero() {
		writeError(w, apperrors.New(apperrors.CodeConfig, "no account/cookie configured"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"account": cred.Account, "cookie": cred.Cookie})
}

// exportCSV serves GET /api/export/csv: filter params in the query string,
// streamed CSV or JSON per the format param (spec.md §4.7).
func (h *handlers) exportCSV(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := query.FilterSpec{Merchant: q.Get("merchant")}
	if v := q.Get("min_amount"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(w, apperrors.Wrap(apperrors.CodeValidation, "malformed min_amount", err))
			return
		}
		filter.AmountMin = &f
	}
	if v := q.Get("max_amount"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(w, apperrors.Wrap(apperrors.CodeValidation, "malformed max_amount", err))
			return
		}
		filter.AmountMax = &f
	}
	filter.TimeStart = q.Get("time_start")
	filter.TimeEnd = q.Get("time_end")

	rows, err := h.store.Query(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	format := q.Get("format")
	if format == "json" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = export.WriteJSON(w, rows)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.WriteHeader(http.StatusOK)
	_, _ = export.WriteCSV(w, rows)
}
