package credentials

import "os"

// Flags carries the CLI's --account/--hallticket values, empty if unset.
type Flags struct {
	Account    string
	Hallticket string
}

// Resolve applies the flag > env > file precedence from spec.md §4.8 and
// returns the single effective Credential for this process run. Per
// Design Notes, this happens once at startup; callers pass the result
// around rather than re-reading global state.
func Resolve(flags Flags, store *Store) (Credential, error) {
	stored, err := store.Load()
	if err != nil {
		return Credential{}, err
	}

	resolved := stored

	if env := os.Getenv("XMF_ACCOUNT"); env != "" {
		resolved.Account = env
	}
	if env := os.Getenv("XMF_COOKIE"); env != "" {
		resolved.Cookie = env
	}

	if flags.Account != "" {
		resolved.Account = flags.Account
	}
	if flags.Hallticket != "" {
		resolved.Cookie = NormalizeHallticket(flags.Hallticket)
	}

	return resolved, nil
}
