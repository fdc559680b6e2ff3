package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/alejandrodnm/kalshimaker/internal/domain"
	"github.com/alejandrodnm/kalshimaker/internal/reconcile"
	"github.com/alejandrodnm/kalshimaker/internal/strategy"
)

// recompute runs the decision pipeline on the current state:
//
//	freeze view → propose → post-only filter → risk filter → reconcile → act
//
// Every step works on the frozen MarketView, so mid-cycle feed events never
// tear the inputs of a single decision.
func (e *Engine) recompute(ctx context.Context, now time.Time) {
	if now.IsZero() {
		now = time.Now()
	}

	report := domain.CycleReport{
		Ticker:    e.cfg.Ticker,
		At:        now,
		DryRun:    e.cfg.DryRun,
		Inventory: map[domain.Leg]int{},
	}
	for _, leg := range domain.Legs {
		report.Inventory[leg] = e.ledger.Inventory(leg)
	}

	bookView, err := e.book.Snapshot()
	if err != nil {
		// Unsynced book: propose nothing, leave live orders resting. Only
		// the TTL pass runs; the full diff would cancel everything against
		// an empty target set.
		actions := e.rec.ExpireOnly(now)
		report.Synced = false
		report.Cancels = actions.Cancels
		e.emitActions(ctx, actions)
		report.LiveAfter = e.rec.Live()
		e.finishCycle(ctx, report)
		return
	}
	report.Synced = true

	pos := e.ledger.Snapshot()
	pos.Lean = map[domain.Leg]domain.Lean{}
	for leg, l := range e.lean {
		pos.Lean[leg] = l
	}
	view := domain.MarketView{
		Ticker: e.cfg.Ticker,
		Book:   bookView,
		Pos:    pos,
		Now:    now,
	}
	if mid, err := bookView.MidCents(domain.LegYes); err == nil {
		report.MidCents = mid
	}

	var proposed []domain.QuoteIntent
	for _, s := range e.strategies {
		intents, skips := s.Propose(view)
		for _, skip := range skips {
			report.Skips = append(report.Skips, s.Name()+": "+skip)
		}
		for _, q := range intents {
			if err := strategy.CheckPostOnly(view, q); err != nil {
				report.Rejected = append(report.Rejected,
					domain.RejectedIntent{Intent: q, Reason: err.Error()})
				continue
			}
			proposed = append(proposed, q)
		}
	}
	report.Proposed = len(proposed) + len(report.Rejected)

	accepted, rejected := e.guard.Filter(proposed, e.rec.Live(), pos)
	report.Accepted = len(accepted)
	report.Rejected = append(report.Rejected, rejected...)

	actions := e.rec.Reconcile(accepted, report.MidCents, now)
	report.Cancels = actions.Cancels
	report.Places = actions.Places

	e.emitActions(ctx, actions)
	report.LiveAfter = e.rec.Live()
	e.finishCycle(ctx, report)
}

// emitActions executes the cycle's cancel and place calls, cancels strictly
// first. The executor answers synchronously; each answer is enqueued as an
// ack event so intent state only mutates inside the ordered stream.
func (e *Engine) emitActions(ctx context.Context, actions reconcile.Actions) {
	for _, q := range actions.Cancels {
		err := e.executor.CancelOrder(ctx, q.Ticker, q.ID)
		switch {
		case err == nil:
			e.enqueue(domain.Event{
				Type:   domain.EvCancelAck,
				Ticker: q.Ticker,
				At:     time.Now(),
				Order:  &domain.OrderEvent{ClientOrderID: q.ID, OrderID: q.OrderID},
			})
		case isTransport(err):
			// Unknown outcome: keep tracking and retry next cycle.
			// Cancel-by-client-id is idempotent, a double cancel is harmless.
			slog.Warn("engine: cancel transport error, will retry",
				"client_id", q.ID, "err", err)
			e.rec.OnCancelFailed(q.ID)
		default:
			// Definitive failure usually means the order is already gone;
			// the periodic open-order sweep squares any leftover.
			slog.Warn("engine: cancel rejected", "client_id", q.ID, "err", err)
			e.enqueue(domain.Event{
				Type:   domain.EvCancelAck,
				Ticker: q.Ticker,
				At:     time.Now(),
				Order:  &domain.OrderEvent{ClientOrderID: q.ID, Reason: err.Error()},
			})
		}
	}

	for _, q := range actions.Places {
		placed, err := e.executor.PlaceOrder(ctx, domain.PlaceOrderRequest{
			Ticker:        q.Ticker,
			Leg:           q.Leg,
			Action:        q.Action,
			PriceCents:    q.PriceCents,
			Count:         q.Count,
			ClientOrderID: q.ID,
			GroupID:       q.GroupID,
			PostOnly:      true,
		})
		switch {
		case err == nil && placed.Status == "resting":
			e.enqueue(domain.Event{
				Type:   domain.EvOrderAck,
				Ticker: q.Ticker,
				At:     time.Now(),
				Order:  &domain.OrderEvent{ClientOrderID: q.ID, OrderID: placed.OrderID},
			})
		case err == nil:
			// Accepted but not resting: post-only bounce, treated as a nack.
			e.enqueue(domain.Event{
				Type:   domain.EvOrderNack,
				Ticker: q.Ticker,
				At:     time.Now(),
				Order:  &domain.OrderEvent{ClientOrderID: q.ID, OrderID: placed.OrderID, Reason: placed.Status},
			})
		case isTransport(err):
			// The order may or may not exist. It stays submitted in the
			// live set until the open-order sweep confirms either way.
			slog.Warn("engine: place transport error, state unknown",
				"client_id", q.ID, "err", err)
		default:
			e.enqueue(domain.Event{
				Type:   domain.EvOrderNack,
				Ticker: q.Ticker,
				At:     time.Now(),
				Order:  &domain.OrderEvent{ClientOrderID: q.ID, Reason: err.Error()},
			})
		}
	}
}

func (e *Engine) finishCycle(ctx context.Context, report domain.CycleReport) {
	if !report.Synced || len(report.Cancels) > 0 || len(report.Places) > 0 || len(report.Rejected) > 0 {
		slog.Debug("engine: cycle",
			"ticker", report.Ticker,
			"synced", report.Synced,
			"mid", report.MidCents,
			"proposed", report.Proposed,
			"accepted", report.Accepted,
			"rejected", len(report.Rejected),
			"cancels", len(report.Cancels),
			"places", len(report.Places),
			"live", len(report.LiveAfter),
		)
	}
	if e.notifier != nil {
		if err := e.notifier.NotifyCycle(ctx, report); err != nil {
			slog.Warn("engine: notifier error", "err", err)
		}
	}
	if e.store != nil {
		if err := e.store.SaveCycle(ctx, report); err != nil {
			slog.Warn("engine: error saving cycle", "err", err)
		}
	}
}
