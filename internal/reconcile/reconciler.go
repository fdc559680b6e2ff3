package reconcile

import (
	"math"
	"time"

	"github.com/alejandrodnm/kalshimaker/internal/domain"
)

// Actions is the ordered output of one reconciliation: cancels first, then
// places, so the same leg never carries transient double exposure.
type Actions struct {
	Cancels []domain.QuoteIntent
	Places  []domain.QuoteIntent
}

// Empty reports whether the cycle produced no work.
func (a Actions) Empty() bool {
	return len(a.Cancels) == 0 && len(a.Places) == 0
}

// Reconciler owns the live QuoteIntent set and is the only writer of intent
// state. Each cycle it diffs the risk-accepted targets against what is
// resting, applies TTL expiry and mid-move restage, and emits the minimal
// place/cancel actions. State transitions past submitted happen only on
// observed acknowledgments fed back through the event stream.
type Reconciler struct {
	cancelMoveTicks int
	live            map[string]*domain.QuoteIntent // by client order id
}

// New creates a Reconciler with an empty live set.
func New(cancelMoveTicks int) *Reconciler {
	return &Reconciler{
		cancelMoveTicks: cancelMoveTicks,
		live:            make(map[string]*domain.QuoteIntent),
	}
}

// Live returns a copy of the current live set (submitted + acked intents).
func (r *Reconciler) Live() []domain.QuoteIntent {
	out := make([]domain.QuoteIntent, 0, len(r.live))
	for _, q := range r.live {
		out = append(out, *q)
	}
	return out
}

// LiveCount returns the size of the live set.
func (r *Reconciler) LiveCount() int { return len(r.live) }

// Reconcile runs one cycle against the accepted target batch.
//
//  1. TTL expiry: live intents past their TTL are cancelled. TTL is a soft
//     deadline; an intent already awaiting a cancel ack is not re-cancelled.
//  2. Mid-move restage: entry intents whose reference mid has drifted by
//     cancelMoveTicks or more since their targets were computed are all
//     cancelled, forcing a clean restage instead of a stale partial ladder.
//  3. Diff: remaining targets are matched against remaining live intents by
//     (strategy, leg, price, count); unmatched live → cancel, unmatched
//     target → place, matched pairs generate no churn.
//
// Emitted places are registered as submitted; they stay in the live set so
// the next cycle's diff sees in-flight quotes and never double-places.
func (r *Reconciler) Reconcile(accepted []domain.QuoteIntent, midCents float64, now time.Time) Actions {
	var actions Actions

	cancel := func(q *domain.QuoteIntent, expired bool) {
		if q.CancelRequested {
			return // idempotent cancel-by-id already in flight
		}
		q.CancelRequested = true
		q.ExpireOnAck = expired
		actions.Cancels = append(actions.Cancels, *q)
	}

	// 1. TTL expiry.
	for _, q := range r.live {
		if q.ExpiredAt(now) {
			cancel(q, true)
		}
	}

	// 2. Mid-move restage for entries.
	if r.cancelMoveTicks > 0 && midCents > 0 {
		for _, q := range r.live {
			if q.Kind != domain.KindEntry || q.MidAtCents <= 0 {
				continue
			}
			if math.Abs(midCents-q.MidAtCents) >= float64(r.cancelMoveTicks) {
				cancel(q, false)
			}
		}
	}

	// 3. Diff by reconciliation key over what is still resting.
	resting := make(map[domain.IntentKey]*domain.QuoteIntent)
	for _, q := range r.live {
		if !q.CancelRequested {
			resting[q.Key()] = q
		}
	}

	matched := make(map[domain.IntentKey]bool)
	for _, target := range accepted {
		key := target.Key()
		if _, ok := resting[key]; ok {
			matched[key] = true // unchanged target, leave the resting quote alone
			continue
		}
		q := target
		q.State = domain.IntentSubmitted
		r.live[q.ID] = &q
		actions.Places = append(actions.Places, q)
	}
	for key, q := range resting {
		if !matched[key] {
			cancel(q, false)
		}
	}

	return actions
}

// ExpireOnly runs just the TTL pass, for cycles where the book is unsynced:
// live orders are left resting rather than diffed against an empty target
// set, so losing the feed never flattens the quotes on its own.
func (r *Reconciler) ExpireOnly(now time.Time) Actions {
	var actions Actions
	for _, q := range r.live {
		if q.ExpiredAt(now) && !q.CancelRequested {
			q.CancelRequested = true
			q.ExpireOnAck = true
			actions.Cancels = append(actions.Cancels, *q)
		}
	}
	return actions
}

// OnOrderAck moves a submitted intent to live. Unknown client ids belong to
// orders this process did not place and are ignored.
func (r *Reconciler) OnOrderAck(clientID, orderID string) (domain.QuoteIntent, bool) {
	q, ok := r.live[clientID]
	if !ok {
		return domain.QuoteIntent{}, false
	}
	if q.State == domain.IntentSubmitted {
		q.State = domain.IntentLive
	}
	q.OrderID = orderID
	return *q, true
}

// OnOrderReject handles an exchange-side rejection: the intent never became
// live, so it is marked cancelled immediately and dropped. No retry in the
// same cycle — the next natural recomputation re-proposes if still wanted.
func (r *Reconciler) OnOrderReject(clientID string) (domain.QuoteIntent, bool) {
	q, ok := r.live[clientID]
	if !ok {
		return domain.QuoteIntent{}, false
	}
	q.State = domain.IntentCancelled
	delete(r.live, clientID)
	return *q, true
}

// OnCancelAck finalizes a pending cancel. TTL-driven cancels land in
// EXPIRED, every other cancel in CANCELLED; either way the intent leaves
// the live set only now, on confirmation.
func (r *Reconciler) OnCancelAck(clientID string) (domain.QuoteIntent, bool) {
	q, ok := r.live[clientID]
	if !ok {
		return domain.QuoteIntent{}, false
	}
	if q.ExpireOnAck {
		q.State = domain.IntentExpired
	} else {
		q.State = domain.IntentCancelled
	}
	delete(r.live, clientID)
	return *q, true
}

// OnFill applies a fill to the intent's remaining count. A full fill is
// terminal; a partial fill leaves the remainder resting.
func (r *Reconciler) OnFill(clientID string, count int) (q domain.QuoteIntent, filled, known bool) {
	p, ok := r.live[clientID]
	if !ok {
		return domain.QuoteIntent{}, false, false
	}
	p.Count -= count
	if p.Count <= 0 {
		p.Count = 0
		p.State = domain.IntentFilled
		delete(r.live, clientID)
		return *p, true, true
	}
	return *p, false, true
}

// OnCancelFailed clears the in-flight cancel flag after a transport error,
// so the next cycle's TTL/diff pass re-emits the cancel. Cancel-by-client-id
// is idempotent on the exchange side, so retrying is always safe.
func (r *Reconciler) OnCancelFailed(clientID string) {
	if q, ok := r.live[clientID]; ok {
		q.CancelRequested = false
		q.ExpireOnAck = false
	}
}

// SyncOpenOrders squares the live set against the exchange's view.
// Intents older than minAge that the exchange does not report are dropped:
// a placement lost to a transport error stays unknown until this sweep,
// then gets re-proposed by the next cycle. Open orders with client ids we
// do not track are foreign and left alone.
func (r *Reconciler) SyncOpenOrders(open []domain.OpenOrder, now time.Time, minAge time.Duration) (dropped []domain.QuoteIntent) {
	known := make(map[string]bool, len(open))
	for _, o := range open {
		known[o.ClientOrderID] = true
	}
	for id, q := range r.live {
		if known[id] || now.Sub(q.CreatedAt) < minAge {
			continue
		}
		q.State = domain.IntentCancelled
		delete(r.live, id)
		dropped = append(dropped, *q)
	}
	return dropped
}

// CancelAll marks every live intent for cancellation, for the shutdown
// sweep. Returns the cancel actions in no particular order.
func (r *Reconciler) CancelAll() []domain.QuoteIntent {
	var cancels []domain.QuoteIntent
	for _, q := range r.live {
		if q.CancelRequested {
			continue
		}
		q.CancelRequested = true
		cancels = append(cancels, *q)
	}
	return cancels
}
