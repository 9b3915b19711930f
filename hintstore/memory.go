package hintstore

import (
	"context"
	"strings"
)

// NewMemory returns a Store serving a fixed set of hints. Useful for tests
// and for deployments that configure a handful of relays statically.
func NewMemory(hints []Hint) *Memory {
	m := &Memory{
		hints: make(map[string]Hint, len(hints)),
	}

	for _, h := range hints {
		if h.Port == 0 {
			h.Port = 25
		}

		m.hints[strings.ToLower(h.Domain)] = h
	}

	return m
}

// Memory is an immutable in-memory Store snapshot, safe for concurrent use.
type Memory struct {
	hints map[string]Hint
}

func (m *Memory) Lookup(_ context.Context, domain string) (Hint, bool, error) {
	h, ok := m.hints[strings.ToLower(domain)]
	return h, ok, nil
}
