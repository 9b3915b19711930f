package verifier

import "errors"

var (
	// ErrEmailAddressSyntax means the input can't be an e-mail address, no
	// amount of network probing will change that.
	ErrEmailAddressSyntax = errors.New("invalid e-mail address syntax")

	// ErrNoMailCapability means the domain exists but has neither MX records
	// nor an address record to deliver to. Definitive negative.
	ErrNoMailCapability = errors.New("domain has no mail capability")

	// ErrResolution means DNS infrastructure failed us (timeout, SERVFAIL).
	// The domain might be fine, we just can't tell right now.
	ErrResolution = errors.New("DNS resolution failed")
)
