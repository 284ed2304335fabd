package core

import "context"

// PassCreator builds a pass with production wiring.
type PassCreator func() Pass

// Pass is one sequential, idempotent batch pass over a bounded working set.
// A pass may be interrupted between items without corrupting state; resuming
// means re-running it over the remaining work.
type Pass interface {
	// Run executes the pass. params are dynamic per-run parameters from
	// config or the trigger API. The summary is returned even on error so
	// operators can see partial progress.
	Run(ctx context.Context, params map[string]any) (PassSummary, error)

	// Identifier returns the unique pass name (used for logs and scheduling).
	Identifier() string
}

// PassSummary reports what one run did, so "ran clean" is distinguishable
// from "ran but silently dropped data".
type PassSummary struct {
	Processed int            `json:"processed"`
	Skipped   int            `json:"skipped"`
	Errored   int            `json:"errored"`
	Details   map[string]any `json:"details,omitempty"`
}

// Note records a detail key on the summary, allocating lazily.
func (s *PassSummary) Note(key string, value any) {
	if s.Details == nil {
		s.Details = make(map[string]any)
	}
	s.Details[key] = value
}
