package verifier

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mailsift/mailsift/testutil"
)

type dialerFunc func(ctx context.Context, network, address string) (net.Conn, error)

func (f dialerFunc) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	return f(ctx, network, address)
}

// commandLog records the verbs a scripted server received
type commandLog struct {
	mu       sync.Mutex
	commands []string
}

func (l *commandLog) add(cmd string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.commands = append(l.commands, cmd)
}

func (l *commandLog) has(prefix string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, c := range l.commands {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}

	return false
}

// serveSMTP scripts one SMTP session on the server end of a pipe. Replies are
// matched on command prefix, QUIT always ends the session.
func serveSMTP(conn net.Conn, banner string, responses map[string]string, log *commandLog) {
	defer func() { _ = conn.Close() }()

	_, _ = fmt.Fprintf(conn, "%s\r\n", banner)

	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}

		line = strings.TrimRight(line, "\r\n")
		if log != nil {
			log.add(line)
		}

		if strings.HasPrefix(line, "QUIT") {
			_, _ = fmt.Fprint(conn, "221 Bye\r\n")
			return
		}

		replied := false
		for prefix, resp := range responses {
			if strings.HasPrefix(line, prefix) {
				_, _ = fmt.Fprintf(conn, "%s\r\n", resp)
				replied = true
				break
			}
		}

		if !replied {
			_, _ = fmt.Fprint(conn, "500 unrecognized command\r\n")
		}
	}
}

// closeTracker counts Close calls on a wrapped connection
type closeTracker struct {
	net.Conn
	mu     *sync.Mutex
	closed *int
}

func (c closeTracker) Close() error {
	c.mu.Lock()
	*c.closed++
	c.mu.Unlock()
	return c.Conn.Close()
}

func pipeDialer(banner string, responses map[string]string, log *commandLog) DialContext {
	return dialerFunc(func(_ context.Context, _, _ string) (net.Conn, error) {
		client, server := net.Pipe()
		go serveSMTP(server, banner, responses, log)
		return client, nil
	})
}

var happyResponses = map[string]string{
	"EHLO":      "250-mx.test\r\n250 PIPELINING",
	"HELO":      "250 mx.test",
	"MAIL FROM": "250 OK",
	"RCPT TO":   "250 OK",
}

func singleCandidate() []Candidate {
	return []Candidate{{Host: "mx.test.example", Pref: 10, Port: 25}}
}

func TestProbeAccepted(t *testing.T) {
	log := &commandLog{}
	p := NewProbe(pipeDialer("220 mx.test ESMTP", happyResponses, log), "probe.example.org", time.Second, nil)

	got := p.Run(context.Background(), singleCandidate(), "john@example.org", "verify@probe.example.org")
	if got != OutcomeAccepted {
		t.Fatalf("Expected OutcomeAccepted, got %s", got)
	}

	for _, want := range []string{"EHLO probe.example.org", "MAIL FROM:<verify@probe.example.org>", "RCPT TO:<john@example.org>", "QUIT"} {
		if !log.has(want) {
			t.Errorf("Expected the session to contain %q, got %v", want, log.commands)
		}
	}
}

func TestProbeRejectedShortCircuits(t *testing.T) {
	var dials int
	responses := map[string]string{
		"EHLO":      "250 mx.test",
		"MAIL FROM": "250 OK",
		"RCPT TO":   "550 5.1.1 user unknown",
	}

	dialer := dialerFunc(func(_ context.Context, _, _ string) (net.Conn, error) {
		dials++
		client, server := net.Pipe()
		go serveSMTP(server, "220 mx.test ESMTP", responses, nil)
		return client, nil
	})

	p := NewProbe(dialer, "probe.example.org", time.Second, nil)

	candidates := []Candidate{
		{Host: "mx-a.test.example", Pref: 10, Port: 25},
		{Host: "mx-b.test.example", Pref: 20, Port: 25},
	}

	got := p.Run(context.Background(), candidates, "gone@example.org", "verify@probe.example.org")
	if got != OutcomeRejected {
		t.Fatalf("Expected OutcomeRejected, got %s", got)
	}

	if dials != 1 {
		t.Errorf("A definitive rejection must not probe further candidates, got %d dials", dials)
	}
}

func TestProbeGreylistedFallsThroughToNextCandidate(t *testing.T) {
	var dials int
	dialer := dialerFunc(func(_ context.Context, _, _ string) (net.Conn, error) {
		dials++
		rcpt := "250 OK"
		if dials == 1 {
			rcpt = "450 4.7.1 greylisted, try again later"
		}

		client, server := net.Pipe()
		go serveSMTP(server, "220 mx.test ESMTP", map[string]string{
			"EHLO":      "250 mx.test",
			"MAIL FROM": "250 OK",
			"RCPT TO":   rcpt,
		}, nil)
		return client, nil
	})

	p := NewProbe(dialer, "probe.example.org", time.Second, nil)

	candidates := []Candidate{
		{Host: "mx-a.test.example", Pref: 10, Port: 25},
		{Host: "mx-b.test.example", Pref: 20, Port: 25},
	}

	got := p.Run(context.Background(), candidates, "john@example.org", "verify@probe.example.org")
	if got != OutcomeAccepted {
		t.Fatalf("Expected the second candidate to settle it, got %s", got)
	}

	if dials != 2 {
		t.Errorf("Expected both candidates to be consulted, got %d dials", dials)
	}
}

func TestProbeLegacyHELOFallback(t *testing.T) {
	log := &commandLog{}
	responses := map[string]string{
		"EHLO":      "502 5.5.1 EHLO not implemented",
		"HELO":      "250 mx.test",
		"MAIL FROM": "250 OK",
		"RCPT TO":   "250 OK",
	}

	p := NewProbe(pipeDialer("220 mx.test", responses, log), "probe.example.org", time.Second, nil)

	got := p.Run(context.Background(), singleCandidate(), "john@example.org", "verify@probe.example.org")
	if got != OutcomeAccepted {
		t.Fatalf("Expected OutcomeAccepted after the HELO retry, got %s", got)
	}

	if !log.has("HELO probe.example.org") {
		t.Errorf("Expected a HELO retry, got %v", log.commands)
	}
}

func TestProbeAllCandidatesUnreachable(t *testing.T) {
	dialer := dialerFunc(func(_ context.Context, _, _ string) (net.Conn, error) {
		return nil, errors.New("connection refused")
	})

	p := NewProbe(dialer, "probe.example.org", time.Second, nil)

	candidates := []Candidate{
		{Host: "mx-a.test.example", Pref: 10, Port: 25},
		{Host: "mx-b.test.example", Pref: 20, Port: 25},
	}

	got := p.Run(context.Background(), candidates, "john@example.org", "verify@probe.example.org")
	if got != OutcomeInconclusive {
		t.Errorf("Unreachable candidates must not read as a rejection, got %s", got)
	}
}

func TestProbeBadGreetingMovesOn(t *testing.T) {
	got := NewProbe(pipeDialer("554 go away", nil, nil), "probe.example.org", time.Second, nil).
		Run(context.Background(), singleCandidate(), "john@example.org", "verify@probe.example.org")

	if got != OutcomeInconclusive {
		t.Errorf("A refused greeting exhausts the candidate, not the verdict, got %s", got)
	}
}

func TestProbeRefusedMailFromIsInconclusive(t *testing.T) {
	responses := map[string]string{
		"EHLO":      "250 mx.test",
		"MAIL FROM": "550 5.7.1 not allowed",
	}

	got := NewProbe(pipeDialer("220 mx.test", responses, nil), "probe.example.org", time.Second, nil).
		Run(context.Background(), singleCandidate(), "john@example.org", "verify@probe.example.org")

	if got != OutcomeInconclusive {
		t.Errorf("A refused sender says nothing about the recipient, got %s", got)
	}
}

func TestProbeExpiredDeadlineAbandonsCandidates(t *testing.T) {
	var dials int
	dialer := dialerFunc(func(_ context.Context, _, _ string) (net.Conn, error) {
		dials++
		return nil, errors.New("should not dial")
	})

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	got := NewProbe(dialer, "probe.example.org", time.Second, nil).
		Run(ctx, singleCandidate(), "john@example.org", "verify@probe.example.org")

	if got != OutcomeInconclusive {
		t.Errorf("Expected OutcomeInconclusive on an expired deadline, got %s", got)
	}

	if dials != 0 {
		t.Errorf("Expected no dials after the deadline, got %d", dials)
	}
}

func TestProbeCancellationMidRunAbandonsRemainingCandidates(t *testing.T) {
	var mu sync.Mutex
	var dials int

	responses := map[string]string{
		"EHLO":      "250 mx.test",
		"MAIL FROM": "250 OK",
		"RCPT TO":   "450 4.7.1 try again later",
	}

	dialer := dialerFunc(func(_ context.Context, _, _ string) (net.Conn, error) {
		mu.Lock()
		dials++
		mu.Unlock()

		client, server := net.Pipe()
		go serveSMTP(server, "220 mx.test ESMTP", responses, nil)
		return client, nil
	})

	// The context starts reporting an error once the first candidate has been
	// dialed, the other two must not be consulted
	ctx := testutil.NewContext(context.Background())
	ctx.SetErrEval(func(parent context.Context) error {
		mu.Lock()
		defer mu.Unlock()

		if dials > 0 {
			return context.Canceled
		}

		return parent.Err()
	})

	p := NewProbe(dialer, "probe.example.org", time.Second, nil)

	candidates := []Candidate{
		{Host: "mx-a.test.example", Pref: 10, Port: 25},
		{Host: "mx-b.test.example", Pref: 20, Port: 25},
		{Host: "mx-c.test.example", Pref: 30, Port: 25},
	}

	got := p.Run(ctx, candidates, "john@example.org", "verify@probe.example.org")
	if got != OutcomeInconclusive {
		t.Fatalf("Expected OutcomeInconclusive, got %s", got)
	}

	mu.Lock()
	defer mu.Unlock()
	if dials != 1 {
		t.Errorf("Expected the remaining candidates to be abandoned, got %d dials", dials)
	}
}

func TestProbeClosesEverySocket(t *testing.T) {
	var mu sync.Mutex
	var opened, closed int

	scripts := []map[string]string{
		{"EHLO": "250 mx.test", "MAIL FROM": "250 OK", "RCPT TO": "421 4.3.2 shutting down"},
		{"EHLO": "250 mx.test", "MAIL FROM": "250 OK", "RCPT TO": "451 4.7.1 try later"},
	}

	dialer := dialerFunc(func(_ context.Context, _, _ string) (net.Conn, error) {
		mu.Lock()
		script := scripts[opened%len(scripts)]
		opened++
		mu.Unlock()

		client, server := net.Pipe()
		go serveSMTP(server, "220 mx.test ESMTP", script, nil)
		return closeTracker{Conn: client, mu: &mu, closed: &closed}, nil
	})

	p := NewProbe(dialer, "probe.example.org", time.Second, nil)

	candidates := []Candidate{
		{Host: "mx-a.test.example", Pref: 10, Port: 25},
		{Host: "mx-b.test.example", Pref: 20, Port: 25},
	}

	got := p.Run(context.Background(), candidates, "john@example.org", "verify@probe.example.org")
	if got != OutcomeInconclusive {
		t.Fatalf("Expected OutcomeInconclusive, got %s", got)
	}

	mu.Lock()
	defer mu.Unlock()
	if opened != 2 || closed < opened {
		t.Errorf("Every opened socket must be closed, opened %d closed %d", opened, closed)
	}
}

func TestProbeAuthenticatesWithHintCredentials(t *testing.T) {
	log := &commandLog{}
	responses := map[string]string{
		"EHLO":      "250-mx.test\r\n250 AUTH PLAIN",
		"AUTH":      "235 2.7.0 accepted",
		"MAIL FROM": "250 OK",
		"RCPT TO":   "250 OK",
	}

	p := NewProbe(pipeDialer("220 mx.test", responses, log), "probe.example.org", time.Second, nil)

	candidates := []Candidate{{
		Host:     "relay.test.example",
		Port:     587,
		Username: "acct@test.example",
		Password: "secret",
	}}

	got := p.Run(context.Background(), candidates, "john@example.org", "verify@probe.example.org")
	if got != OutcomeAccepted {
		t.Fatalf("Expected OutcomeAccepted, got %s", got)
	}

	if !log.has("AUTH PLAIN") {
		t.Errorf("Expected an AUTH PLAIN exchange, got %v", log.commands)
	}

	// The envelope sender follows the authenticated account
	if !log.has("MAIL FROM:<acct@test.example>") {
		t.Errorf("Expected the sender to match the account, got %v", log.commands)
	}
}
