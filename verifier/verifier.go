// Package verifier determines, without sending mail, whether an e-mail
// address is syntactically valid and whether its mailbox plausibly exists.
// Checks escalate per configuration: syntax, disposable domain rejection,
// MX resolution and finally a live SMTP callback probe (RCPT TO without
// DATA). Each call is synchronous and call-scoped, a single Verifier is safe
// for concurrent use.
package verifier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mailsift/mailsift/disposable"
	"github.com/mailsift/mailsift/hintstore"
	"github.com/mailsift/mailsift/types"
)

// Options is the fixed set of recognized configuration knobs. Invalid
// combinations are rejected by New, not silently ignored.
type Options struct {
	// CheckMX requires the domain to resolve to at least one relay
	// candidate. Implied by Probe.
	CheckMX bool

	// Probe enables live SMTP callback verification over the resolved
	// candidates.
	Probe bool

	// SendingEmail is the envelope sender for the MAIL FROM phase. When
	// empty, probes fall back to admin@<target-domain>. Connection hint
	// credentials override it per candidate.
	SendingEmail string

	// DenyDisposable rejects addresses on known throwaway-mailbox domains
	DenyDisposable bool

	// Timeout bounds every individual network operation: the DNS query, the
	// TCP connect and each SMTP round-trip. Defaults to 5 seconds. An
	// overall deadline for the whole call belongs on the context.
	Timeout time.Duration

	// AssumeValidOnInconclusive controls the verdict when every reachable
	// candidate answered ambiguously (greylisting, catch-all, throttling).
	// The default treats inconclusive as invalid.
	AssumeValidOnInconclusive bool

	// HelloHost is the identity announced in EHLO/HELO, defaults to the
	// machine's host name.
	HelloHost string

	// Dialer performs connects and DNS lookups, defaults to a plain
	// net.Dialer with the default resolver.
	Dialer *net.Dialer

	// Hints is the optional known-domain connection hint store. The
	// verifier functions fully without one.
	Hints hintstore.Store

	// IsDisposable overrides the built-in disposable domain list
	IsDisposable func(domain string) bool

	// Logger receives per-call diagnostics, nil disables them
	Logger logrus.FieldLogger
}

func New(opts Options) (*Verifier, error) {
	if opts.Timeout < 0 {
		return nil, fmt.Errorf("negative timeout %s", opts.Timeout)
	}

	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Second
	}

	if opts.SendingEmail != "" {
		if _, err := types.NewEmailParts(opts.SendingEmail); err != nil {
			return nil, fmt.Errorf("sending e-mail address %q: %w", opts.SendingEmail, err)
		}
	}

	if opts.HelloHost == "" {
		if h, err := os.Hostname(); err == nil {
			opts.HelloHost = h
		} else {
			opts.HelloHost = "localhost"
		}
	}

	// Probing without resolving relays makes no sense
	opts.CheckMX = opts.CheckMX || opts.Probe

	dialer := opts.Dialer
	if dialer == nil {
		dialer = &net.Dialer{}
	}

	if dialer.Resolver == nil {
		dialer.Resolver = net.DefaultResolver
	}

	isDisposable := opts.IsDisposable
	if isDisposable == nil {
		isDisposable = disposable.IsDisposable
	}

	return &Verifier{
		opts:         opts,
		isDisposable: isDisposable,
		resolver:     NewResolver(dialer.Resolver, opts.Hints, opts.Logger),
		probe:        NewProbe(dialer, opts.HelloHost, opts.Timeout, opts.Logger),
	}, nil
}

type Verifier struct {
	opts         Options
	isDisposable func(domain string) bool
	resolver     *Resolver
	probe        *Probe
}

// Verify runs the configured checks against a single address and
// short-circuits on the first definitive answer. It never returns an error:
// everything that can go wrong is absorbed into a conservative Verdict.
func (v *Verifier) Verify(ctx context.Context, emailAddress string) Verdict {
	log := v.log().WithField("email", emailAddress)

	parts, err := types.NewEmailParts(emailAddress)
	if err == nil {
		err = checkSyntax(parts)
	}

	if err != nil {
		log.WithError(err).Debug("syntax check failed")
		return Verdict{Valid: false, Reason: ReasonInvalidSyntax}
	}

	if v.opts.DenyDisposable && v.isDisposable(parts.Domain) {
		log.Debug("domain is flagged as disposable")
		return Verdict{Valid: false, Reason: ReasonDisposableDomain}
	}

	if !v.opts.CheckMX {
		return Verdict{Valid: true}
	}

	dnsCtx, cancel := context.WithTimeout(ctx, v.opts.Timeout)
	candidates, err := v.resolver.Candidates(dnsCtx, parts.Domain)
	cancel()

	if err != nil {
		log.WithError(err).Debug("relay resolution failed")

		if errors.Is(err, ErrResolution) {
			// Can't verify, fail closed unless configured otherwise
			return v.inconclusiveVerdict()
		}

		return Verdict{Valid: false, Reason: ReasonNoMX}
	}

	if !v.opts.Probe {
		return Verdict{Valid: true}
	}

	from := v.opts.SendingEmail
	if from == "" {
		from = "admin@" + parts.Domain
	}

	switch v.probe.Run(ctx, candidates, parts.Address, from) {
	case OutcomeAccepted:
		return Verdict{Valid: true}
	case OutcomeRejected:
		return Verdict{Valid: false, Reason: ReasonRejected}
	default:
		return v.inconclusiveVerdict()
	}
}

func (v *Verifier) inconclusiveVerdict() Verdict {
	if v.opts.AssumeValidOnInconclusive {
		return Verdict{Valid: true, Reason: ReasonInconclusiveAccepted}
	}

	return Verdict{Valid: false, Reason: ReasonInconclusiveRejected}
}

func (v *Verifier) log() logrus.FieldLogger {
	if v.opts.Logger != nil {
		return v.opts.Logger
	}

	return discardLogger
}

var discardLogger logrus.FieldLogger = func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}()
