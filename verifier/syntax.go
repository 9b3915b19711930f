package verifier

import (
	"fmt"
	"net/mail"

	"github.com/mailsift/mailsift/types"
)

// checkSyntax checks for "common sense" e-mail address syntax. It doesn't try
// to be fully RFC compliant, it weeds out input nobody can deliver to. Pure,
// performs no I/O.
func checkSyntax(parts types.EmailParts) error {
	if _, err := mail.ParseAddress(parts.Address); err != nil {
		return fmt.Errorf("address %q doesn't parse: %v %w", parts.Address, err, ErrEmailAddressSyntax)
	}

	if !looksLikeValidLocalPart(parts.Local) {
		return fmt.Errorf("local part %q has invalid syntax %w", parts.Local, ErrEmailAddressSyntax)
	}

	if !looksLikeValidDomain(parts.Domain) {
		return fmt.Errorf("domain part %q has invalid syntax %w", parts.Domain, ErrEmailAddressSyntax)
	}

	return nil
}

//nolint:gocyclo
func looksLikeValidLocalPart(local string) bool {
	length := len(local)
	if length < 1 || length > 64 {
		return false
	}

	for i, c := range local {
		switch {
		case 48 <= c && c <= 57 /* 0-9 */ :
		case 65 <= c && c <= 90 /* A-Z */ :
		case 97 <= c && c <= 122 /* a-z */ :
		case c == 46 && 0 < i && i < length-1 /* . not first or last */ :

		case c == 33 /* ! */ :
		case c == 35 /* # */ :
		case c == 36 /* $ */ :
		case c == 37 /* % */ :
		case c == 38 /* & */ :
		case c == 39 /* ' */ :
		case c == 42 /* * */ :
		case c == 43 /* + */ :
		case c == 45 /* - */ :
		case c == 47 /* / */ :
		case c == 61 /* = */ :
		case c == 63 /* ? */ :
		case c == 94 /* ^ */ :
		case c == 95 /* _ */ :
		case c == 96 /* ` */ :
		case c == 123 /* { */ :
		case c == 124 /* | */ :
		case c == 125 /* } */ :
		case c == 126 /* ~ */ :
		default:
			return false
		}
	}

	return true
}

//nolint:gocyclo
func looksLikeValidDomain(domain string) bool {
	length := len(domain)

	// Normally we can assume that host names have a tld or consist at least out of 4 characters
	if 4 >= length || length >= 253 {
		return false
	}

	if domain[0] == '.' || domain[length-1] == '.' {
		return false
	}

	var dotCount int
	for i, c := range domain {
		switch {
		case 48 <= c && c <= 57 /* 0-9 */ :
		case 65 <= c && c <= 90 /* A-Z */ :
		case 97 <= c && c <= 122 /* a-z */ :
		case c == 45 && 0 < i /* dash - */ :
		case c == 46 /* dot . */ :
			dotCount++
		default:
			return false
		}
	}

	// A deliverable domain has at least one label separator
	return dotCount > 0
}
