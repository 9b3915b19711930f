package verifier

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mailsift/mailsift/hintstore"
)

// Candidate is one relay host worth probing for a domain, in preference
// order (lower is tried first). Produced fresh per verification call.
type Candidate struct {
	Host     string
	Pref     uint16
	Port     uint16
	TLS      bool
	Username string
	Password string
}

// Addr returns the host:port dial target
func (c Candidate) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(int(c.Port)))
}

// DNSResolver is the subset of net.Resolver the relay resolver needs
type DNSResolver interface {
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

func NewResolver(dns DNSResolver, hints hintstore.Store, logger logrus.FieldLogger) *Resolver {
	if dns == nil {
		dns = net.DefaultResolver
	}

	return &Resolver{
		dns:    dns,
		hints:  hints,
		logger: logger,
	}
}

// Resolver produces the ordered candidate list for a domain: a connection
// hint first when one is known, then DNS MX records by ascending preference
// and finally the domain's own address record when no MX exists.
type Resolver struct {
	dns    DNSResolver
	hints  hintstore.Store
	logger logrus.FieldLogger
}

// Reading an external source, limiting to a liberal amount
const maxMXCandidates = 10

// Candidates resolves a domain into a deduplicated, preference ordered list
// of relay candidates. An empty list is always accompanied by an error:
// ErrNoMailCapability when the domain verifiably can't receive mail,
// ErrResolution when DNS infrastructure failed and nothing can be concluded.
func (r *Resolver) Candidates(ctx context.Context, domain string) ([]Candidate, error) {
	var collected = make([]Candidate, 0, maxMXCandidates+1)
	var seen = make(map[string]struct{}, maxMXCandidates+1)

	if hint, ok := r.lookupHint(ctx, domain); ok {
		collected = append(collected, candidateFromHint(hint, 0))
		seen[hint.Server] = struct{}{}
	}

	mxs, err := r.dns.LookupMX(ctx, domain)
	if err != nil && !isNotFound(err) {
		// Infrastructure failure. A hint still carries the call, otherwise
		// nothing can be concluded about the domain.
		if len(collected) > 0 {
			r.debugf("MX lookup for %q failed, continuing on hint alone: %v", domain, err)
			return collected, nil
		}

		return nil, fmt.Errorf("MX lookup for %q failed: %v %w", domain, err, ErrResolution)
	}

	// RFC tie-break: equal preferences keep DNS response order
	sort.SliceStable(mxs, func(i, j int) bool {
		return mxs[i].Pref < mxs[j].Pref
	})

	if len(mxs) > maxMXCandidates {
		mxs = mxs[:maxMXCandidates]
	}

	for _, mx := range mxs {
		// Hosts might end on a "." (which isn't bad) or consist solely out of
		// a "." (which is bad), this produces a canonical test basis
		host := strings.TrimRight(mx.Host, ".")
		if !MightBeAHostOrIP(host) {
			continue
		}

		if _, dup := seen[host]; dup {
			continue
		}

		seen[host] = struct{}{}
		collected = append(collected, r.enrichFromHints(ctx, Candidate{
			Host: host,
			Pref: mx.Pref,
			Port: 25,
		}))
	}

	if len(collected) > 0 {
		return collected, nil
	}

	// No MX capability advertised, fall back to the domain's own address
	// record (implicit MX), at the lowest possible preference.
	if _, err := r.dns.LookupIPAddr(ctx, domain); err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("domain %q has no MX and no address record %w", domain, ErrNoMailCapability)
		}

		return nil, fmt.Errorf("address lookup for %q failed: %v %w", domain, err, ErrResolution)
	}

	return []Candidate{{
		Host: domain,
		Pref: math.MaxUint16,
		Port: 25,
	}}, nil
}

func (r *Resolver) lookupHint(ctx context.Context, domain string) (hintstore.Hint, bool) {
	if r.hints == nil {
		return hintstore.Hint{}, false
	}

	hint, ok, err := r.hints.Lookup(ctx, domain)
	if err != nil {
		// A failing hint store never fails the call, DNS remains authoritative
		r.debugf("hint lookup for %q failed: %v", domain, err)
		return hintstore.Hint{}, false
	}

	return hint, ok
}

// enrichFromHints applies a known hint for the MX host's registrable domain,
// so relays of well-known providers pick up their port, TLS and credential
// configuration even when the recipient domain itself isn't known.
func (r *Resolver) enrichFromHints(ctx context.Context, c Candidate) Candidate {
	hint, ok := r.lookupHint(ctx, registrableDomain(c.Host))
	if !ok {
		return c
	}

	if hint.Port > 0 {
		c.Port = hint.Port
	}

	c.TLS = hint.TLS
	c.Username = hint.Username
	c.Password = hint.Password

	return c
}

func candidateFromHint(h hintstore.Hint, pref uint16) Candidate {
	c := Candidate{
		Host:     h.Server,
		Pref:     pref,
		Port:     h.Port,
		TLS:      h.TLS,
		Username: h.Username,
		Password: h.Password,
	}

	if c.Port == 0 {
		c.Port = 25
	}

	return c
}

// registrableDomain reduces a host name to its last two labels
func registrableDomain(host string) string {
	labels := strings.Split(host, ".")
	if len(labels) <= 2 {
		return host
	}

	return strings.Join(labels[len(labels)-2:], ".")
}

func isNotFound(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr) && dnsErr.IsNotFound
}

// MightBeAHostOrIP is a very rudimentary check to see if the argument could be
// either a host name or IP address. It aims on speed and not for correctness.
// It's intended to weed-out bogus responses such as '.'
//nolint:gocyclo
func MightBeAHostOrIP(h string) bool {

	// Normally we can assume that host names have a tld or consist at least out of 4 characters
	lastCharIndex := len(h) - 1
	if 4 >= lastCharIndex || lastCharIndex >= 253 {
		return false
	}

	var dotCount uint8
	for i, c := range h {
		switch {
		case 48 <= c && c <= 57 /* 0-9 */ :
		case 65 <= c && c <= 90 /* A-Z */ :
		case 97 <= c && c <= 122 /* a-z */ :
		case c == 45 /* dash - */ :
		case c == 46 && 0 < i && i < lastCharIndex /* dot . */ :
			dotCount++
		default:
			return false
		}
	}

	// We need at least one dot for a domain to be valid
	return dotCount > 0
}

func (r *Resolver) debugf(format string, args ...interface{}) {
	if r.logger != nil {
		r.logger.Debugf(format, args...)
	}
}
