package config

import (
	"path/filepath"
	"testing"
)

func TestDBPathHonorsInMemory(t *testing.T) {
	s := Default()
	s.DataDir = "/tmp/mealflow-test"
	s.DBInMemory = true
	if got := s.DBPath(); got != ":memory:" {
		t.Fatalf("expected :memory:, got %q", got)
	}

	s.DBInMemory = false
	want := filepath.Join("/tmp/mealflow-test", "transactions.db")
	if got := s.DBPath(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestDefaultExportPathIsDataDirRelative(t *testing.T) {
	s := Default()
	s.DataDir = "/tmp/mealflow-test"
	want := filepath.Join("/tmp/mealflow-test", "transactions_export.csv")
	if got := s.DefaultExportPath(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestCredentialsPath(t *testing.T) {
	s := Default()
	s.DataDir = "/tmp/mealflow-test"
	want := filepath.Join("/tmp/mealflow-test", "config.json5")
	if got := s.CredentialsPath(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
