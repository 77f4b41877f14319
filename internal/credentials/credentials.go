// Package credentials implements the config store (spec.md §4.8): the
// account identifier and session cookie used to authenticate against the
// campus card service. Reads accept JSON or YAML; writes always emit JSON
// (a strict subset of JSON5, see DESIGN.md's Open Questions). Writes are
// read-modify-write under an advisory file lock, then atomically swapped
// into place via write-temp-then-rename, adapted from the teacher's
// internal/storage/file_store.go atomic-persistence shape.
package credentials

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"

	"github.com/mealflow/mealflow/internal/apperrors"
)

// Credential is the account/cookie pair used to authenticate remote calls.
type Credential struct {
	Account string `json:"account" yaml:"account"`
	Cookie  string `json:"cookie" yaml:"cookie"`
}

// IsZero reports whether no credential has been configured at all.
func (c Credential) IsZero() bool {
	return c.Account == "" && c.Cookie == ""
}

// Store persists a Credential to a file in the data directory.
type Store struct {
	path string
}

// NewStore builds a Store rooted at path (typically <data_dir>/config.json5).
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the current credential, returning a zero Credential (not an
// error) if the file doesn't exist yet.
func (s *Store) Load() (Credential, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return Credential{}, nil
	}
	if err != nil {
		return Credential{}, apperrors.Wrap(apperrors.CodeConfig, "read credentials file", err)
	}
	return decode(data)
}

func decode(data []byte) (Credential, error) {
	var cred Credential
	if err := json.Unmarshal(data, &cred); err == nil {
		return cred, nil
	}
	if err := yaml.Unmarshal(data, &cred); err != nil {
		return Credential{}, apperrors.Wrap(apperrors.CodeConfig, "parse credentials file", err)
	}
	return cred, nil
}

// lockPath returns the sidecar lock file path for the credentials file.
func (s *Store) lockPath() string {
	return s.path + ".lock"
}

// mutate performs a locked read-modify-write of the credentials file.
func (s *Store) mutate(fn func(*Credential)) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return apperrors.Wrap(apperrors.CodeConfig, "create data directory", err)
	}

	unlock, err := acquireLock(s.lockPath())
	if err != nil {
		return apperrors.Wrap(apperrors.CodeConfig, "lock credentials file", err)
	}
	defer unlock()

	cred, err := s.Load()
	if err != nil {
		return err
	}
	fn(&cred)

	return s.writeAtomic(cred)
}

func (s *Store) writeAtomic(cred Credential) error {
	encoded, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return apperrors.Wrap(apperrors.CodeConfig, "encode credentials", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".config-*.tmp")
	if err != nil {
		return apperrors.Wrap(apperrors.CodeConfig, "create temp credentials file", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(encoded); err != nil {
		tmp.Close()
		return apperrors.Wrap(apperrors.CodeConfig, "write temp credentials file", err)
	}
	if err := tmp.Close(); err != nil {
		return apperrors.Wrap(apperrors.CodeConfig, "close temp credentials file", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return apperrors.Wrap(apperrors.CodeConfig, "rename temp credentials file", err)
	}
	return nil
}

// SetAccount updates the stored account identifier, leaving cookie intact.
func (s *Store) SetAccount(account string) error {
	return s.mutate(func(c *Credential) { c.Account = account })
}

// SetHallticket updates the stored cookie from a bare hallticket value,
// normalizing it into the full cookie header line the remote expects.
func (s *Store) SetHallticket(hallticket string) error {
	return s.mutate(func(c *Credential) { c.Cookie = NormalizeHallticket(hallticket) })
}

// NormalizeHallticket turns a bare session value into the "hallticket=<v>"
// cookie header line, passing already-normalized values through unchanged.
func NormalizeHallticket(v string) string {
	v = strings.TrimSpace(v)
	if strings.HasPrefix(v, "hallticket=") {
		return v
	}
	return "hallticket=" + v
}
