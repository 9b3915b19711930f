package verifier

// Outcome is the per-candidate result of an SMTP probe. Only Accepted and
// Rejected are definitive, everything else means the candidate couldn't
// tell us and the next one should be consulted.
type Outcome uint8

const (
	OutcomeInconclusive Outcome = iota
	OutcomeAccepted
	OutcomeRejected
	OutcomeConnectionFailed
	OutcomeTimeout
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeRejected:
		return "rejected"
	case OutcomeConnectionFailed:
		return "connection-failed"
	case OutcomeTimeout:
		return "timeout"
	}

	return "inconclusive"
}

// Reason is a human readable code explaining how a Verdict came to be
type Reason string

const (
	ReasonNone                 Reason = ""
	ReasonInvalidSyntax        Reason = "invalid-syntax"
	ReasonDisposableDomain     Reason = "disposable-domain"
	ReasonNoMX                 Reason = "no-mx"
	ReasonRejected             Reason = "rejected-by-server"
	ReasonInconclusiveAccepted Reason = "inconclusive-accepted-as-valid"
	ReasonInconclusiveRejected Reason = "inconclusive-rejected-as-invalid"
)

// Verdict is the final result of a verification call. It doesn't outlive the
// call, callers wanting history need to record it themselves.
type Verdict struct {
	Valid  bool   `json:"valid"`
	Reason Reason `json:"reason,omitempty"`
}
