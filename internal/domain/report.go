package domain

import "time"

// RejectedIntent is an intent dropped before placement, with the gating
// check that dropped it. In dry-run these make up the printed rationale.
type RejectedIntent struct {
	Intent QuoteIntent
	Reason string
}

// CycleReport is everything one recomputation cycle decided, handed to the
// notifier. The decision path is identical in dry-run and live mode; only
// the executor boundary changes.
type CycleReport struct {
	Ticker    string
	At        time.Time
	MidCents  float64
	Synced    bool
	DryRun    bool
	Proposed  int
	Accepted  int
	Rejected  []RejectedIntent
	Cancels   []QuoteIntent
	Places    []QuoteIntent
	LiveAfter []QuoteIntent
	Inventory map[Leg]int
	Skips     []string // per-strategy skip reasons (spread too thin, no room, ...)
}
