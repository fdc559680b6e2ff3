package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/kalshimaker/internal/domain"
	"github.com/alejandrodnm/kalshimaker/internal/ports"
	"github.com/alejandrodnm/kalshimaker/internal/reconcile"
	"github.com/alejandrodnm/kalshimaker/internal/risk"
	"github.com/alejandrodnm/kalshimaker/internal/strategy"
)

const (
	defaultTickInterval  = time.Second
	defaultOpenSyncTicks = 30
	defaultSubmitGrace   = 5 * time.Second
)

// Config holds configuration for the per-market quoting engine.
type Config struct {
	Ticker                string
	DryRun                bool
	TickInterval          time.Duration // TTL-check tick, merged into the event stream
	CancelMoveTicks       int
	MaxInventoryContracts int
	ReduceOnlyStep        int
	OpenSyncTicks         int // ticks between open-order sweeps (live mode only)
	SubmitGrace           time.Duration
}

// Engine runs the decision loop for exactly one market. All messages for
// the market — book deltas, trades, fills, positions, ticks, and our own
// order acknowledgments — are applied in one causal order by one goroutine;
// sharding across markets means one Engine per market, never one per
// message type.
type Engine struct {
	cfg        Config
	strategies strategy.Registry
	guard      *risk.Guard
	rec        *reconcile.Reconciler
	feed       ports.FeedSource
	executor   ports.OrderExecutor
	store      ports.TradeStorage
	notifier   ports.Notifier

	book   *domain.Book
	ledger *domain.Ledger
	lean   map[domain.Leg]domain.Lean

	// pending carries acknowledgments of our own place/cancel calls back
	// into the ordered stream: intent state never mutates on the call
	// itself, only when its ack is observed as an event.
	pending []domain.Event

	ticks         int
	resyncPending bool
}

// New creates the engine for one market. store and notifier may be nil.
func New(
	cfg Config,
	strategies strategy.Registry,
	guard *risk.Guard,
	feed ports.FeedSource,
	executor ports.OrderExecutor,
	store ports.TradeStorage,
	notifier ports.Notifier,
) *Engine {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaultTickInterval
	}
	if cfg.OpenSyncTicks <= 0 {
		cfg.OpenSyncTicks = defaultOpenSyncTicks
	}
	if cfg.SubmitGrace <= 0 {
		cfg.SubmitGrace = defaultSubmitGrace
	}
	return &Engine{
		cfg:        cfg,
		strategies: strategies,
		guard:      guard,
		rec:        reconcile.New(cfg.CancelMoveTicks),
		feed:       feed,
		executor:   executor,
		store:      store,
		notifier:   notifier,
		book:       domain.NewBook(cfg.Ticker),
		ledger:     domain.NewLedger(),
		lean:       map[domain.Leg]domain.Lean{},
	}
}

// Run consumes the event stream until the context is cancelled or the feed
// closes. On shutdown it sweeps a cancel for every tracked intent.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("engine: starting",
		"ticker", e.cfg.Ticker,
		"dry_run", e.cfg.DryRun,
		"strategies", len(e.strategies),
		"tick", e.cfg.TickInterval,
	)

	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.shutdownSweep()
			slog.Info("engine: stopped", "ticker", e.cfg.Ticker)
			return nil
		case ev, ok := <-e.feed.Events():
			if !ok {
				e.shutdownSweep()
				return fmt.Errorf("engine %s: feed closed", e.cfg.Ticker)
			}
			e.dispatch(ctx, ev)
		case t := <-ticker.C:
			e.dispatch(ctx, domain.Event{Type: domain.EvTick, Ticker: e.cfg.Ticker, At: t})
		}
	}
}

// dispatch handles one event plus every acknowledgment it produced, keeping
// the whole chain inside the market's causal order.
func (e *Engine) dispatch(ctx context.Context, ev domain.Event) {
	e.handle(ctx, ev)
	for len(e.pending) > 0 {
		next := e.pending[0]
		e.pending = e.pending[1:]
		e.handle(ctx, next)
	}
}

func (e *Engine) enqueue(ev domain.Event) {
	e.pending = append(e.pending, ev)
}

func (e *Engine) handle(ctx context.Context, ev domain.Event) {
	switch ev.Type {
	case domain.EvSnapshot:
		e.book.ApplySnapshot(ev.Snapshot.Yes, ev.Snapshot.No, ev.Seq)
		if e.resyncPending {
			slog.Info("engine: book resynced", "ticker", e.cfg.Ticker, "seq", ev.Seq)
			e.resyncPending = false
		}
		e.recompute(ctx, ev.At)

	case domain.EvDelta:
		if err := e.book.ApplyDelta(ev.Delta.Leg, ev.Delta.Price, ev.Delta.Delta, ev.Seq); err != nil {
			// Gap or corruption: book is unsynced, strategies go quiet,
			// live orders stay resting. Only a fresh snapshot recovers.
			slog.Warn("engine: delta rejected, requesting snapshot",
				"ticker", e.cfg.Ticker, "err", err)
			e.requestResync(ctx)
			return
		}
		e.recompute(ctx, ev.At)

	case domain.EvTrade:
		e.applyTrade(ev.Trade)
		e.recompute(ctx, ev.At)

	case domain.EvTicker:
		// Informational only; the book drives quoting.

	case domain.EvFill:
		e.applyFill(ctx, ev)
		e.recompute(ctx, ev.At)

	case domain.EvPosition:
		e.ledger.ApplyPositionUpdate(domain.LegYes, ev.Position.Yes)
		e.ledger.ApplyPositionUpdate(domain.LegNo, ev.Position.No)
		e.checkReduceOnly(domain.LegYes)
		e.checkReduceOnly(domain.LegNo)
		e.recompute(ctx, ev.At)

	case domain.EvTick:
		e.ticks++
		if e.resyncPending {
			e.requestResync(ctx)
		}
		if !e.cfg.DryRun && e.ticks%e.cfg.OpenSyncTicks == 0 {
			e.syncOpenOrders(ctx, ev.At)
		}
		e.recompute(ctx, ev.At)

	case domain.EvOrderAck:
		if q, ok := e.rec.OnOrderAck(ev.Order.ClientOrderID, ev.Order.OrderID); ok {
			e.persistIntent(ctx, q)
		}

	case domain.EvOrderNack:
		if q, ok := e.rec.OnOrderReject(ev.Order.ClientOrderID); ok {
			slog.Warn("engine: order rejected",
				"ticker", e.cfg.Ticker,
				"strategy", q.Strategy,
				"leg", q.Leg,
				"price", q.PriceCents,
				"reason", ev.Order.Reason,
			)
			e.persistIntent(ctx, q)
		}

	case domain.EvCancelAck:
		if q, ok := e.rec.OnCancelAck(ev.Order.ClientOrderID); ok {
			e.persistIntent(ctx, q)
		}
	}
}

func (e *Engine) applyTrade(t *domain.TradeEvent) {
	// Remember which side the aggressor hit so ExitMaker can lean with the
	// flow on its next proposal.
	switch t.TakerSide {
	case domain.LegYes:
		e.lean[domain.LegYes] = domain.LeanUp
		e.lean[domain.LegNo] = domain.LeanDown
	case domain.LegNo:
		e.lean[domain.LegYes] = domain.LeanDown
		e.lean[domain.LegNo] = domain.LeanUp
	}
}

func (e *Engine) applyFill(ctx context.Context, ev domain.Event) {
	f := ev.Fill
	if !e.ledger.ApplyFill(f.Fill) {
		return // duplicate delivery, already accounted
	}
	if e.store != nil {
		if err := e.store.SaveFill(ctx, e.cfg.Ticker, f.Fill); err != nil {
			slog.Warn("engine: error saving fill", "err", err)
		}
	}

	q, filled, known := e.rec.OnFill(f.ClientOrderID, f.Count)
	if !known {
		// A fill for an order we do not track: foreign, ledger already has it.
		slog.Debug("engine: fill for untracked order", "client_id", f.ClientOrderID)
		return
	}
	e.guard.RegisterGroupFill(q.Strategy, f.Count)
	slog.Info("engine: fill",
		"ticker", e.cfg.Ticker,
		"strategy", q.Strategy,
		"leg", f.Leg,
		"count", f.Count,
		"price", f.PriceCents,
		"complete", filled,
	)
	e.persistIntent(ctx, q)
}

func (e *Engine) checkReduceOnly(leg domain.Leg) {
	inv := e.ledger.Inventory(leg)
	if e.cfg.MaxInventoryContracts > 0 && inv >= e.cfg.MaxInventoryContracts {
		step := e.cfg.ReduceOnlyStep
		if step <= 0 || step > inv {
			step = inv
		}
		// Advisory only: the engine quotes exits, it does not fire IOC
		// reduce-only orders on its own.
		slog.Warn("engine: inventory cap reached, reduce-only advised",
			"ticker", e.cfg.Ticker, "leg", leg, "inventory", inv, "step", step)
	}
}

func (e *Engine) requestResync(ctx context.Context) {
	e.resyncPending = true
	if err := e.feed.Resync(ctx, e.cfg.Ticker); err != nil {
		slog.Warn("engine: resync request failed, will retry on tick",
			"ticker", e.cfg.Ticker, "err", err)
	}
}

func (e *Engine) syncOpenOrders(ctx context.Context, now time.Time) {
	open, err := e.executor.OpenOrders(ctx, e.cfg.Ticker)
	if err != nil {
		slog.Warn("engine: open-order sweep failed", "ticker", e.cfg.Ticker, "err", err)
		return
	}
	for _, q := range e.rec.SyncOpenOrders(open, now, e.cfg.SubmitGrace) {
		// Lost placement: state was unknown since the transport error,
		// now confirmed absent. Next cycle re-proposes if still wanted.
		slog.Warn("engine: dropping order unseen by exchange",
			"ticker", e.cfg.Ticker, "strategy", q.Strategy, "leg", q.Leg, "price", q.PriceCents)
		e.persistIntent(ctx, q)
	}
}

func (e *Engine) shutdownSweep() {
	// Best effort with a fresh deadline: the run context is already gone.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cancels := e.rec.CancelAll()
	if len(cancels) == 0 {
		return
	}
	slog.Info("engine: shutdown sweep", "ticker", e.cfg.Ticker, "orders", len(cancels))
	for _, q := range cancels {
		if err := e.executor.CancelOrder(ctx, e.cfg.Ticker, q.ID); err != nil {
			slog.Warn("engine: shutdown cancel failed",
				"client_id", q.ID, "err", err)
		}
	}
}

// SessionPnl returns the realized PnL per leg accumulated from this
// session's fills. Safe to read only after Run has returned.
func (e *Engine) SessionPnl() map[domain.Leg]float64 {
	pnl := make(map[domain.Leg]float64, len(domain.Legs))
	for _, leg := range domain.Legs {
		pnl[leg] = e.ledger.RealizedPnl(leg)
	}
	return pnl
}

func (e *Engine) persistIntent(ctx context.Context, q domain.QuoteIntent) {
	if e.store == nil {
		return
	}
	if err := e.store.SaveIntent(ctx, q); err != nil {
		slog.Warn("engine: error saving intent", "client_id", q.ID, "err", err)
	}
}

// isTransport reports whether the error is a transport-level failure, as
// opposed to a definitive exchange answer.
func isTransport(err error) bool {
	return errors.Is(err, domain.ErrAPITransport)
}
