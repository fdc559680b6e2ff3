package domain

import "time"

// IntentState represents the lifecycle of a quote on the Kalshi CLOB.
//
//	proposed → submitted → live → {filled, cancelled, expired}
//
// Transitions past submitted happen only on observed acknowledgments;
// the engine never assumes an order is live (or gone) without one.
type IntentState string

const (
	IntentProposed  IntentState = "PROPOSED"
	IntentSubmitted IntentState = "SUBMITTED"
	IntentLive      IntentState = "LIVE"
	IntentFilled    IntentState = "FILLED"
	IntentCancelled IntentState = "CANCELLED"
	IntentExpired   IntentState = "EXPIRED"
)

// IntentKind separates inventory-building quotes from inventory-reducing ones.
type IntentKind string

const (
	KindEntry IntentKind = "entry"
	KindExit  IntentKind = "exit"
)

// QuoteIntent is one passive quote a strategy wants resting on the book.
type QuoteIntent struct {
	ID         string // UUID, doubles as client_order_id
	Strategy   string // producing strategy name ("touch", "depth", ...)
	GroupID    string // order group, one per strategy
	Ticker     string
	Leg        Leg
	Action     string // "buy" (entry) or "sell" (exit)
	PriceCents int
	Count      int
	Kind       IntentKind
	TTL        time.Duration
	CreatedAt  time.Time
	State      IntentState

	// OrderID is the exchange-assigned id, set once the placement is acked.
	OrderID string

	// MidAtCents is the YES mid when this intent's target was computed,
	// used by the reconciler's mid-move restage check.
	MidAtCents float64

	// cancelRequested guards against double-cancel while an idempotent
	// cancel-by-id is in flight. expireOnAck records that the pending
	// cancel was TTL-driven so the ack lands the intent in EXPIRED.
	CancelRequested bool
	ExpireOnAck     bool
}

// Key identifies an intent for reconciliation diffing: two intents with the
// same key are the same resting quote and generate no churn.
type IntentKey struct {
	Strategy string
	Leg      Leg
	Price    int
	Count    int
}

// Key returns the reconciliation key of the intent.
func (q QuoteIntent) Key() IntentKey {
	return IntentKey{Strategy: q.Strategy, Leg: q.Leg, Price: q.PriceCents, Count: q.Count}
}

// ExpiredAt reports whether the intent's TTL has elapsed at now.
// TTL is a soft deadline checked on ticks, not a hard preemption.
func (q QuoteIntent) ExpiredAt(now time.Time) bool {
	return q.TTL > 0 && now.Sub(q.CreatedAt) >= q.TTL
}

// Terminal reports whether the state removes the intent from the live set.
func (s IntentState) Terminal() bool {
	switch s {
	case IntentFilled, IntentCancelled, IntentExpired:
		return true
	}
	return false
}

// PlaceOrderRequest is sent to the order executor. Post-only always: a
// quote that would cross is rejected by the exchange, never matched.
type PlaceOrderRequest struct {
	Ticker        string
	Leg           Leg
	Action        string
	PriceCents    int
	Count         int
	ClientOrderID string
	GroupID       string
	ExpirationTs  int64 // unix seconds, 0 = no exchange-side expiry
	PostOnly      bool
}

// PlacedOrder is the executor's synchronous response to a placement.
type PlacedOrder struct {
	OrderID string
	Status  string // "resting" | "canceled" (post-only bounce)
}

// OpenOrder is one resting order reported by the exchange, used to square
// our live-intent set against reality. Orders with an unknown
// ClientOrderID are foreign (placed outside this process) and left alone.
type OpenOrder struct {
	OrderID       string
	ClientOrderID string
	Ticker        string
	Leg           Leg
	PriceCents    int
	Remaining     int
}

// MarketView is the frozen state handed to every strategy on each
// recomputation: book, positions and tape lean, valid only within that
// recomputation.
type MarketView struct {
	Ticker string
	Book   BookView
	Pos    PositionView
	Now    time.Time
}
