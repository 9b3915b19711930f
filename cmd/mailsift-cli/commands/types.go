package commands

import (
	"net"
	"time"
)

type CheckResult struct {
	Email       string `json:"email"`
	Valid       bool   `json:"valid"`
	Reason      string `json:"reason,omitempty"`
	Alternative string `json:"alternative,omitempty"`
}

type CheckSettings struct {
	Format     string
	ConfigFile string
	CSV        csvOptions
	Check      checkOptions
}

type checkOptions struct {
	Resolver       net.IP
	Timeout        time.Duration
	MX             bool
	Probe          bool
	From           string
	DenyDisposable bool
	AssumeValid    bool
	Workers        uint
	Suggest        bool
	Verbose        bool
}

type csvOptions struct {
	skipRows uint64
	column   uint64
}

type ReportStats struct {
	Passed   uint64            `json:"passed"`
	Rejected uint64            `json:"rejected"`
	Reasons  map[string]uint64 `json:"reasons,omitempty"`
	Duration int64             `json:"run_duration_ms"`
}
