//go:build !windows

package credentials

import "github.com/gofrs/flock"

// acquireLock takes an advisory file lock, blocking until it's free. On
// Windows this is skipped entirely per spec.md §4.8 — concurrent writers to
// the same data directory are not supported there.
func acquireLock(path string) (func(), error) {
	lock := flock.New(path)
	if err := lock.Lock(); err != nil {
		return nil, err
	}
	return func() { lock.Unlock() }, nil
}
