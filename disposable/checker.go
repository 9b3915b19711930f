// Package disposable answers whether a domain is known to hand out
// temporary, throwaway mailboxes.
package disposable

import "strings"

// IsDisposable reports whether the given domain is on the bundled
// disposable-domain list. Read-only set membership, safe for concurrent use.
func IsDisposable(domain string) bool {
	_, ok := domains[strings.ToLower(domain)]
	return ok
}
