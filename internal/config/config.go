// Package config resolves the runtime settings shared by every CLI
// subcommand: data directory, storage mode, remote-mock flag, and the HTTP
// server's bind address and timeouts. Discovery of a settings *file* is out
// of scope (spec.md §1) — this package only reconciles CLI flags against
// process defaults, in the teacher's defaults-then-override shape
// (internal/config/config.go's Load/defaultConfig pattern).
package config

import (
	"os"
	"path/filepath"
	"time"
)

// Settings is the fully-resolved configuration for one process invocation.
type Settings struct {
	DataDir       string
	DBInMemory    bool
	UseMockData   bool
	TickRate      float64
	FrameRate     float64
	WebAddress    string
	LogLevel      string
	ServerTimeout ServerTimeouts
}

// ServerTimeouts holds the local HTTP API's http.Server timeouts.
type ServerTimeouts struct {
	Read          time.Duration
	Write         time.Duration
	Idle          time.Duration
	ShutdownGrace time.Duration
}

// Default returns the baseline settings before CLI flags are applied.
func Default() Settings {
	dir, err := defaultDataDir()
	if err != nil {
		dir = ".mealflow"
	}
	return Settings{
		DataDir:     dir,
		DBInMemory:  false,
		UseMockData: false,
		TickRate:    2,
		FrameRate:   30,
		WebAddress:  "127.0.0.1:8000",
		LogLevel:    "info",
		ServerTimeout: ServerTimeouts{
			Read:          15 * time.Second,
			Write:         15 * time.Second,
			Idle:          60 * time.Second,
			ShutdownGrace: 5 * time.Second,
		},
	}
}

func defaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", "mealflow"), nil
}

// DBPath returns the sqlite file path, honoring DBInMemory.
func (s Settings) DBPath() string {
	if s.DBInMemory {
		return ":memory:"
	}
	return filepath.Join(s.DataDir, "transactions.db")
}

// CredentialsPath returns the path to the credentials file (§4.8).
func (s Settings) CredentialsPath() string {
	return filepath.Join(s.DataDir, "config.json5")
}

// DefaultExportPath returns the export destination used when the CLI's
// --output flag is not supplied (Open Question #1: data-dir-relative).
func (s Settings) DefaultExportPath() string {
	return filepath.Join(s.DataDir, "transactions_export.csv")
}

// EnsureDataDir creates the data directory if it doesn't already exist.
func (s Settings) EnsureDataDir() error {
	if s.DBInMemory {
		return nil
	}
	return os.MkdirAll(s.DataDir, 0o755)
}
