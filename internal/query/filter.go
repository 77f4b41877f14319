// Package query implements the shared filter/query model (spec.md §4.4): a
// single FilterSpec renders into a parameterised SQL WHERE fragment, never
// by string-concatenating user input. The same value is the JSON body of
// the web API's query endpoint, the CLI export flags, and the optional
// scope passed to the analysis functions.
package query

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mealflow/mealflow/internal/apperrors"
	"github.com/mealflow/mealflow/pkg/campustime"
)

// FilterSpec describes an optional selection over the transaction store.
// Every field is optional; an empty FilterSpec matches every row.
type FilterSpec struct {
	Merchant  string   `json:"merchant,omitempty"`
	AmountMin *float64 `json:"amount_min,omitempty"`
	AmountMax *float64 `json:"amount_max,omitempty"`
	TimeStart string   `json:"time_start,omitempty"` // "YYYY-MM-DD", inclusive
	TimeEnd   string   `json:"time_end,omitempty"`   // "YYYY-MM-DD", exclusive
}

// IsZero reports whether the filter imposes no restriction at all.
func (f FilterSpec) IsZero() bool {
	return f.Merchant == "" && f.AmountMin == nil && f.AmountMax == nil && f.TimeStart == "" && f.TimeEnd == ""
}

// Render builds the WHERE fragment (without the "WHERE" keyword) and its
// bound parameters. An empty FilterSpec renders to ("", nil, nil). A
// malformed time_start/time_end surfaces as a ValidationError rather than
// silently matching nothing.
func (f FilterSpec) Render() (string, []any, error) {
	var clauses []string
	var args []any

	if f.Merchant != "" {
		clauses = append(clauses, `merchant LIKE '%' || ? || '%'`)
		args = append(args, f.Merchant)
	}

	if f.AmountMin != nil {
		// min maps to the lower bound of spend magnitude: more negative or equal.
		bound := negate(*f.AmountMin)
		clauses = append(clauses, `amount <= ?`)
		args = append(args, bound)
	}
	if f.AmountMax != nil {
		// max maps to the upper bound of spend magnitude: less negative or equal.
		bound := negate(*f.AmountMax)
		clauses = append(clauses, `amount >= ?`)
		args = append(args, bound)
	}

	if f.TimeStart != "" {
		start, err := campustime.ParseDate(f.TimeStart)
		if err != nil {
			return "", nil, apperrors.Wrap(apperrors.CodeValidation, "invalid time_start", err)
		}
		clauses = append(clauses, `time >= ?`)
		args = append(args, start.Format(timeLayout))
	}
	if f.TimeEnd != "" {
		end, err := campustime.ParseDate(f.TimeEnd)
		if err != nil {
			return "", nil, apperrors.Wrap(apperrors.CodeValidation, "invalid time_end", err)
		}
		clauses = append(clauses, `time < ?`)
		args = append(args, end.Format(timeLayout))
	}

	return strings.Join(clauses, " AND "), args, nil
}

const timeLayout = "2006-01-02T15:04:05Z07:00"

// negate flips the sign of a user-supplied positive magnitude at the
// fixed-precision decimal boundary, per spec.md §3's amount sign-flip rule.
func negate(v float64) float64 {
	d := decimal.NewFromFloat(v).Round(2).Neg()
	out, _ := d.Float64()
	return out
}

// Match applies the filter to a single row in memory, with the same amount
// and time bounds Render expresses in SQL. The merchant check is a
// case-sensitive substring test, whereas SQLite's LIKE in Render ignores
// ASCII case.
func Match[T Matchable](f FilterSpec, row T) bool {
	if f.Merchant != "" && !strings.Contains(row.MatchMerchant(), f.Merchant) {
		return false
	}
	amount := row.MatchAmount()
	if f.AmountMin != nil && amount > negate(*f.AmountMin) {
		return false
	}
	if f.AmountMax != nil && amount < negate(*f.AmountMax) {
		return false
	}
	if f.TimeStart != "" {
		start, err := campustime.ParseDate(f.TimeStart)
		if err == nil && row.MatchTime().Before(start) {
			return false
		}
	}
	if f.TimeEnd != "" {
		end, err := campustime.ParseDate(f.TimeEnd)
		if err == nil && !row.MatchTime().Before(end) {
			return false
		}
	}
	return true
}

// Matchable is the minimal surface Match needs from a transaction-shaped
// row, letting the store's Transaction type satisfy it without an import
// cycle between query and store.
type Matchable interface {
	MatchMerchant() string
	MatchAmount() float64
	MatchTime() time.Time
}

