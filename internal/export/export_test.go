package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mealflow/mealflow/internal/store"
	"github.com/mealflow/mealflow/pkg/campustime"
)

func sampleRows() []store.Transaction {
	base := time.Date(2024, 3, 15, 12, 0, 0, 0, campustime.Zone)
	return []store.Transaction{
		{ID: 2, Time: base.Add(time.Hour), Amount: -15, Merchant: "超市"},
		{ID: 1, Time: base, Amount: -5.5, Merchant: `quo,ted "merchant"`},
	}
}

func TestWriteFileCSVIncludesHeaderAndRows(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out.csv")

	n, err := WriteFile(path, FormatCSV, sampleRows())
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 rows written, got %d", n)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(records) != 3 { // header + 2 rows
		t.Fatalf("expected 3 csv records, got %d: %+v", len(records), records)
	}
	if records[0][0] != "id" || records[0][3] != "merchant" {
		t.Fatalf("unexpected header: %+v", records[0])
	}
	if records[2][3] != `quo,ted "merchant"` {
		t.Fatalf("quoted merchant did not round-trip: %q", records[2][3])
	}
}

func TestWriteFileOverwritesExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.csv")

	if err := os.WriteFile(path, []byte("stale content"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	if _, err := WriteFile(path, FormatCSV, sampleRows()); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(content[:5]) == "stale" {
		t.Fatal("expected stale content to be overwritten")
	}
}

func TestWriteFileJSONProducesValidArray(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")

	n, err := WriteFile(path, FormatJSON, sampleRows())
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 rows written, got %d", n)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var decoded []record
	if err := json.Unmarshal(content, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(decoded) != 2 || decoded[0].ID != 2 || decoded[1].Amount != "-5.50" {
		t.Fatalf("unexpected decoded rows: %+v", decoded)
	}
}

func TestWriteFileRejectsUnknownFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.bin")

	if _, err := WriteFile(path, Format("yaml"), sampleRows()); err == nil {
		t.Fatal("expected an error for an unknown export format")
	}
}
