package types

import (
	"errors"
	"strings"

	"golang.org/x/net/idna"
)

// NewEmailParts splits a raw address into its local and domain parts. The
// domain is lowercased and, when it carries non-ASCII labels, mapped to its
// ASCII (punycode) form so that DNS and SMTP always see a resolvable name.
func NewEmailParts(emailAddress string) (EmailParts, error) {
	p, err := splitLocalAndDomain(emailAddress)
	if err != nil {
		return EmailParts{}, err
	}

	return p, nil
}

// NewEmailFromParts constructs EmailParts from an already split pair
func NewEmailFromParts(local, domain string) EmailParts {
	domain = strings.ToLower(domain)

	return EmailParts{
		Address: local + "@" + domain,
		Local:   local,
		Domain:  domain,
	}
}

type EmailParts struct {
	Address string
	Local   string
	Domain  string
}

func splitLocalAndDomain(input string) (EmailParts, error) {
	i := strings.LastIndex(input, "@")
	if 0 >= i || i >= len(input)-1 || len(input) > 320 {
		return EmailParts{}, ErrInvalidEmailAddress
	}

	domain := strings.ToLower(input[i+1:])
	if !isASCII(domain) {
		d, err := idna.Lookup.ToASCII(domain)
		if err != nil {
			return EmailParts{}, ErrInvalidEmailAddress
		}

		domain = d
	}

	return EmailParts{
		Address: input[:i] + "@" + domain,
		Local:   input[:i],
		Domain:  domain,
	}, nil
}

func isASCII(s string) bool {
	for _, c := range s {
		if c > 127 {
			return false
		}
	}

	return true
}

var (
	ErrInvalidEmailAddress = errors.New("invalid e-mail address, address is missing @")
)
