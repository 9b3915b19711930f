// Package hintstore resolves domains to locally known connection details:
// a preferred relay, port, TLS policy and optional credentials. The store is
// populated out-of-band, verification treats it as an optional read-only
// lookup and falls back to plain DNS when it's absent.
package hintstore

import "context"

// Hint describes how to reach the preferred SMTP relay for a known domain.
type Hint struct {
	Domain   string
	Server   string
	Port     uint16
	TLS      bool
	Username string
	Password string
}

// DecryptFn decodes a credential as stored into its usable form
type DecryptFn func(value string) (string, error)

type Store interface {
	// Lookup returns the hint for a domain. The second return value reports
	// whether the domain is known. An error indicates a failing backend, not
	// an unknown domain.
	Lookup(ctx context.Context, domain string) (Hint, bool, error)
}
