// Package export streams a queried result set to CSV or JSON (spec.md
// §4.6). Both writers route through the stdlib encoding packages — no
// ecosystem CSV or JSON-lines library improves on them for this shape, and
// encoding/csv already guarantees the RFC 4180 quoting the spec requires
// (see DESIGN.md).
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mealflow/mealflow/internal/apperrors"
	"github.com/mealflow/mealflow/internal/store"
)

// Format selects the export writer.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// record is the field set written for each row, shared by both formats.
type record struct {
	ID       int64   `json:"id"`
	Time     string  `json:"time"`
	Amount   string  `json:"amount"`
	Merchant string  `json:"merchant"`
}

func toRecord(t store.Transaction) record {
	return record{
		ID:       t.ID,
		Time:     t.Time.Format("2006-01-02T15:04:05-07:00"),
		Amount:   fmt.Sprintf("%.2f", t.Amount),
		Merchant: t.Merchant,
	}
}

// WriteFile writes rows to path in format, creating path's parent
// directory if needed and overwriting any existing file (spec.md §4.6). It
// returns the number of rows written.
func WriteFile(path string, format Format, rows []store.Transaction) (int, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, apperrors.Wrap(apperrors.CodeInternal, "create export directory", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeInternal, "create export file", err)
	}
	defer f.Close()

	switch format {
	case FormatCSV:
		return WriteCSV(f, rows)
	case FormatJSON:
		return WriteJSON(f, rows)
	default:
		return 0, apperrors.New(apperrors.CodeValidation, fmt.Sprintf("unknown export format %q", format))
	}
}

// WriteCSV streams rows as CSV to w, usable directly against an
// http.ResponseWriter as well as a file (spec.md §4.7's streamed export).
func WriteCSV(w io.Writer, rows []store.Transaction) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "time", "amount", "merchant"}); err != nil {
		return 0, apperrors.Wrap(apperrors.CodeInternal, "write csv header", err)
	}
	for _, t := range rows {
		r := toRecord(t)
		if err := cw.Write([]string{fmt.Sprintf("%d", r.ID), r.Time, r.Amount, r.Merchant}); err != nil {
			return 0, apperrors.Wrap(apperrors.CodeInternal, "write csv row", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, apperrors.Wrap(apperrors.CodeInternal, "flush csv writer", err)
	}
	return len(rows), nil
}

// WriteJSON streams rows as a JSON array to w without buffering every
// record at once, framing the brackets and commas manually around
// json.Marshal per-row.
func WriteJSON(w io.Writer, rows []store.Transaction) (int, error) {
	if _, err := io.WriteString(w, "["); err != nil {
		return 0, apperrors.Wrap(apperrors.CodeInternal, "write json array open", err)
	}
	for i, t := range rows {
		if i > 0 {
			if _, err := io.WriteString(w, ","); err != nil {
				return 0, apperrors.Wrap(apperrors.CodeInternal, "write json separator", err)
			}
		}
		encoded, err := json.Marshal(toRecord(t))
		if err != nil {
			return 0, apperrors.Wrap(apperrors.CodeInternal, "marshal json row", err)
		}
		if _, err := w.Write(encoded); err != nil {
			return 0, apperrors.Wrap(apperrors.CodeInternal, "write json row", err)
		}
	}
	if _, err := io.WriteString(w, "]"); err != nil {
		return 0, apperrors.Wrap(apperrors.CodeInternal, "write json array close", err)
	}
	return len(rows), nil
}
