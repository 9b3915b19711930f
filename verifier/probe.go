package verifier

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"net"
	"net/textproto"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// DialContext is the dialing capability the probe needs, *net.Dialer
// satisfies it.
type DialContext interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// NewProbe returns a mailbox existence probe. helloHost is the identity sent
// in EHLO/HELO, timeout bounds the TCP connect and every individual SMTP
// round-trip.
func NewProbe(dialer DialContext, helloHost string, timeout time.Duration, logger logrus.FieldLogger) *Probe {
	if dialer == nil {
		dialer = &net.Dialer{}
	}

	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Probe{
		dialer:    dialer,
		helloHost: helloHost,
		timeout:   timeout,
		logger:    logger,
	}
}

// Probe performs callback verification: it walks the candidate relays in
// preference order and asks each, via MAIL FROM and RCPT TO without a DATA
// phase, whether the target mailbox exists. A single permissive answer is
// enough to accept, a single definitive rejection is enough to reject,
// everything else falls through to "cannot verify".
type Probe struct {
	dialer    DialContext
	helloHost string
	timeout   time.Duration
	logger    logrus.FieldLogger
}

// Run probes candidates in order until a definitive outcome is reached. When
// the context deadline expires mid-sequence the remaining candidates are
// abandoned and the overall outcome is OutcomeInconclusive.
func (p *Probe) Run(ctx context.Context, candidates []Candidate, target, from string) Outcome {
	for _, candidate := range candidates {
		if ctx.Err() != nil {
			p.debug(candidate, "deadline spent, abandoning remaining candidates")
			return OutcomeInconclusive
		}

		outcome := p.probeCandidate(ctx, candidate, target, from)
		p.debug(candidate, "candidate outcome: "+outcome.String())

		switch outcome {
		case OutcomeAccepted, OutcomeRejected:
			return outcome
		}

		// ConnectionFailed, Timeout and Inconclusive all mean: ask the next
		// candidate. An inconclusive signal never becomes a rejection.
	}

	return OutcomeInconclusive
}

// probeCandidate drives the session state machine for a single relay:
// connect, greeting, EHLO (HELO on refusal), optional AUTH, MAIL FROM and
// RCPT TO. The connection is always ended with a QUIT and closed, on every
// exit path.
func (p *Probe) probeCandidate(ctx context.Context, c Candidate, target, from string) Outcome {
	dialCtx, cancel := context.WithTimeout(ctx, p.timeout)
	conn, err := p.dialer.DialContext(dialCtx, "tcp", c.Addr())
	cancel()

	if err != nil {
		return outcomeFromIOError(err)
	}

	if c.TLS {
		conn = tls.Client(conn, &tls.Config{ServerName: c.Host})
	}

	s := &session{
		conn:    conn,
		text:    textproto.NewConn(conn),
		ctx:     ctx,
		timeout: p.timeout,
	}

	defer s.quit()

	// Greeting. Anything but a 2xx means this relay won't talk to us.
	if _, _, err := s.reply(2); err != nil {
		return outcomeFromIOError(err)
	}

	// Some legacy servers reject EHLO but accept HELO, retry once with the
	// alternate verb before giving up on the candidate.
	if _, _, err := s.cmd(2, "EHLO %s", p.helloHost); err != nil {
		if !isProtocolError(err) {
			return outcomeFromIOError(err)
		}

		if _, _, err := s.cmd(2, "HELO %s", p.helloHost); err != nil {
			if !isProtocolError(err) {
				return outcomeFromIOError(err)
			}

			return OutcomeInconclusive
		}
	}

	if c.Username != "" && c.Password != "" {
		if err := s.authPlain(c.Username, c.Password); err != nil {
			if !isProtocolError(err) {
				return outcomeFromIOError(err)
			}

			return OutcomeInconclusive
		}

		// Sending through an authenticated relay, the envelope sender must
		// match the account.
		from = c.Username
	}

	if _, _, err := s.cmd(2, "MAIL FROM:<%s>", from); err != nil {
		if !isProtocolError(err) {
			return outcomeFromIOError(err)
		}

		return OutcomeInconclusive
	}

	code, _, err := s.cmd(0, "RCPT TO:<%s>", target)
	if err != nil {
		return outcomeFromIOError(err)
	}

	switch code {
	case 250, 251:
		return OutcomeAccepted
	case 550, 551, 553:
		// Mailbox verifiably doesn't exist
		return OutcomeRejected
	default:
		// 421/450/451/452 are greylisting or throttling, anything else is a
		// reply we don't trust either way
		return OutcomeInconclusive
	}
}

func (p *Probe) debug(c Candidate, msg string) {
	if p.logger != nil {
		p.logger.WithField("host", c.Addr()).Debug(msg)
	}
}

// session wraps one SMTP connection and stamps a fresh deadline on every
// round-trip, capped by the call's context deadline.
type session struct {
	conn    net.Conn
	text    *textproto.Conn
	ctx     context.Context
	timeout time.Duration
}

func (s *session) deadline() time.Time {
	d := time.Now().Add(s.timeout)
	if cd, ok := s.ctx.Deadline(); ok && cd.Before(d) {
		d = cd
	}

	return d
}

func (s *session) reply(expectCode int) (int, string, error) {
	_ = s.conn.SetDeadline(s.deadline())
	return s.text.ReadResponse(expectCode)
}

func (s *session) cmd(expectCode int, format string, args ...interface{}) (int, string, error) {
	_ = s.conn.SetDeadline(s.deadline())

	id, err := s.text.Cmd(format, args...)
	if err != nil {
		return 0, "", err
	}

	s.text.StartResponse(id)
	defer s.text.EndResponse(id)

	return s.text.ReadResponse(expectCode)
}

func (s *session) authPlain(username, password string) error {
	resp := base64.StdEncoding.EncodeToString([]byte("\x00" + username + "\x00" + password))
	_, _, err := s.cmd(235, "AUTH PLAIN %s", resp)
	return err
}

// quit ends the session gracefully, best effort. Closing the textproto
// connection closes the socket.
func (s *session) quit() {
	_, _, _ = s.cmd(0, "QUIT")
	_ = s.text.Close()
}

func isProtocolError(err error) bool {
	var tpErr *textproto.Error
	return errors.As(err, &tpErr)
}

func outcomeFromIOError(err error) Outcome {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		return OutcomeTimeout
	}

	return OutcomeConnectionFailed
}
