// Package strategy implements pluggable backend-selection algorithms. A
// Strategy is a pure function over a caller-provided snapshot; the only
// internal state permitted is the round-robin counter, which is local to
// that strategy instance.
package strategy

import "golb/internal/backend"

// Strategy selects the next backend from a snapshot, or returns nil if none
// is selectable.
type Strategy interface {
	Select(snapshot []*backend.Record) *backend.Record
	Name() string
}

// New constructs the Strategy named by name. Unrecognized names fall back
// to round-robin, mirroring the discovery-strategy fallback rule in the
// configuration table.
func New(name string) Strategy {
	switch name {
	case "least-response-time":
		return NewLeastResponseTime()
	case "round-robin", "":
		return NewRoundRobin()
	default:
		return NewRoundRobin()
	}
}
