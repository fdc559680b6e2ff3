package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/kalshimaker/internal/domain"
)

var t0 = time.Date(2026, 8, 29, 14, 30, 0, 0, time.UTC)

func target(id string, leg domain.Leg, price, count int) domain.QuoteIntent {
	return domain.QuoteIntent{
		ID:         id,
		Strategy:   "touch",
		Ticker:     "KXTEST-26",
		Leg:        leg,
		Action:     "buy",
		PriceCents: price,
		Count:      count,
		Kind:       domain.KindEntry,
		TTL:        6 * time.Second,
		CreatedAt:  t0,
		State:      domain.IntentProposed,
		MidAtCents: 44.5,
	}
}

func TestReconcile_PlacesNewTargets(t *testing.T) {
	r := New(2)

	actions := r.Reconcile([]domain.QuoteIntent{target("a", domain.LegYes, 42, 5)}, 44.5, t0)

	require.Len(t, actions.Places, 1)
	assert.Empty(t, actions.Cancels)
	assert.Equal(t, domain.IntentSubmitted, actions.Places[0].State)
	assert.Equal(t, 1, r.LiveCount())
}

func TestReconcile_UnchangedTargetsNoChurn(t *testing.T) {
	r := New(2)
	r.Reconcile([]domain.QuoteIntent{target("a", domain.LegYes, 42, 5)}, 44.5, t0)

	// Mismo (strategy, leg, price, count) con UUID nuevo: nada que hacer.
	later := t0.Add(time.Second)
	fresh := target("b", domain.LegYes, 42, 5)
	fresh.CreatedAt = later

	actions := r.Reconcile([]domain.QuoteIntent{fresh}, 44.5, later)
	assert.True(t, actions.Empty())
	assert.Equal(t, 1, r.LiveCount())
}

func TestReconcile_DiffCancelsStaleAndPlacesNew(t *testing.T) {
	r := New(2)
	r.Reconcile([]domain.QuoteIntent{target("a", domain.LegYes, 42, 5)}, 44.5, t0)

	// El target se mueve de 42¢ a 43¢: cancel del viejo, place del nuevo.
	later := t0.Add(time.Second)
	moved := target("b", domain.LegYes, 43, 5)
	moved.CreatedAt = later

	actions := r.Reconcile([]domain.QuoteIntent{moved}, 44.5, later)
	require.Len(t, actions.Cancels, 1)
	assert.Equal(t, 42, actions.Cancels[0].PriceCents)
	require.Len(t, actions.Places, 1)
	assert.Equal(t, 43, actions.Places[0].PriceCents)
}

func TestReconcile_TTLExpiryCancelsOnce(t *testing.T) {
	r := New(2)
	r.Reconcile([]domain.QuoteIntent{target("a", domain.LegYes, 42, 5)}, 44.5, t0)

	expired := t0.Add(10 * time.Second)
	actions := r.Reconcile(nil, 44.5, expired)
	require.Len(t, actions.Cancels, 1)
	assert.True(t, actions.Cancels[0].ExpireOnAck, "cancel por TTL termina en EXPIRED")

	// Sin ack todavía: el siguiente ciclo no re-cancela.
	actions = r.Reconcile(nil, 44.5, expired.Add(time.Second))
	assert.Empty(t, actions.Cancels)
}

func TestExpireOnly_LeavesFreshIntentsResting(t *testing.T) {
	r := New(2)
	r.Reconcile([]domain.QuoteIntent{
		target("a", domain.LegYes, 42, 5),
		target("b", domain.LegNo, 53, 5),
	}, 44.5, t0)

	// Feed perdido antes del TTL: ninguna orden viva se cancela.
	actions := r.ExpireOnly(t0.Add(2 * time.Second))
	assert.True(t, actions.Empty())
	assert.Equal(t, 2, r.LiveCount())

	// Pasado el TTL sí expiran, una sola vez.
	actions = r.ExpireOnly(t0.Add(7 * time.Second))
	require.Len(t, actions.Cancels, 2)
	for _, q := range actions.Cancels {
		assert.True(t, q.ExpireOnAck)
	}
	assert.True(t, r.ExpireOnly(t0.Add(8*time.Second)).Empty())
}

func TestReconcile_MidMoveRestagesEntries(t *testing.T) {
	r := New(2)
	r.Reconcile([]domain.QuoteIntent{target("a", domain.LegYes, 42, 5)}, 44.5, t0)

	// Mid movido 2 ticks desde que se calculó el target: restage.
	actions := r.Reconcile(nil, 46.5, t0.Add(time.Second))
	require.Len(t, actions.Cancels, 1)
	assert.False(t, actions.Cancels[0].ExpireOnAck)
}

func TestReconcile_MidMoveIgnoresExits(t *testing.T) {
	r := New(2)
	exit := target("a", domain.LegYes, 46, 5)
	exit.Action = "sell"
	exit.Kind = domain.KindExit
	r.Reconcile([]domain.QuoteIntent{exit}, 44.5, t0)

	// Las salidas son inventory-driven, el mid no las restagea — pero el
	// diff sí las cancela si dejan de proponerse... aquí se siguen
	// proponiendo, así que cero acciones.
	again := exit
	again.ID = "b"
	actions := r.Reconcile([]domain.QuoteIntent{again}, 48.5, t0.Add(time.Second))
	assert.True(t, actions.Empty())
}

func TestLifecycle_AcksDriveStateTransitions(t *testing.T) {
	r := New(2)
	actions := r.Reconcile([]domain.QuoteIntent{target("a", domain.LegYes, 42, 5)}, 44.5, t0)
	id := actions.Places[0].ID

	q, ok := r.OnOrderAck(id, "ord-1")
	require.True(t, ok)
	assert.Equal(t, domain.IntentLive, q.State)
	assert.Equal(t, "ord-1", q.OrderID)

	// Acks de órdenes ajenas se ignoran.
	_, ok = r.OnOrderAck("foreign", "ord-x")
	assert.False(t, ok)
}

func TestLifecycle_RejectDropsIntent(t *testing.T) {
	r := New(2)
	actions := r.Reconcile([]domain.QuoteIntent{target("a", domain.LegYes, 42, 5)}, 44.5, t0)
	id := actions.Places[0].ID

	q, ok := r.OnOrderReject(id)
	require.True(t, ok)
	assert.Equal(t, domain.IntentCancelled, q.State)
	assert.Equal(t, 0, r.LiveCount())

	// El siguiente ciclo lo vuelve a proponer sin estorbo del diff.
	actions = r.Reconcile([]domain.QuoteIntent{target("b", domain.LegYes, 42, 5)}, 44.5, t0.Add(time.Second))
	assert.Len(t, actions.Places, 1)
}

func TestLifecycle_CancelAckFinalState(t *testing.T) {
	r := New(2)
	r.Reconcile([]domain.QuoteIntent{target("a", domain.LegYes, 42, 5)}, 44.5, t0)

	// Cancel por TTL → EXPIRED en el ack.
	actions := r.Reconcile(nil, 44.5, t0.Add(10*time.Second))
	id := actions.Cancels[0].ID

	q, ok := r.OnCancelAck(id)
	require.True(t, ok)
	assert.Equal(t, domain.IntentExpired, q.State)
	assert.Equal(t, 0, r.LiveCount())
}

func TestLifecycle_CancelAckAfterDiffCancelIsCancelled(t *testing.T) {
	r := New(2)
	r.Reconcile([]domain.QuoteIntent{target("a", domain.LegYes, 42, 5)}, 44.5, t0)

	// Diff cancela (target desaparece sin TTL ni mid-move).
	actions := r.Reconcile(nil, 44.5, t0.Add(time.Second))
	require.Len(t, actions.Cancels, 1)

	q, ok := r.OnCancelAck(actions.Cancels[0].ID)
	require.True(t, ok)
	assert.Equal(t, domain.IntentCancelled, q.State)
}

func TestOnCancelFailed_RetriesNextCycle(t *testing.T) {
	r := New(2)
	r.Reconcile([]domain.QuoteIntent{target("a", domain.LegYes, 42, 5)}, 44.5, t0)

	expired := t0.Add(10 * time.Second)
	actions := r.Reconcile(nil, 44.5, expired)
	require.Len(t, actions.Cancels, 1)
	id := actions.Cancels[0].ID

	// El transporte falló: granularidad de ciclo, reintento en el próximo.
	r.OnCancelFailed(id)
	actions = r.Reconcile(nil, 44.5, expired.Add(time.Second))
	require.Len(t, actions.Cancels, 1)
	assert.Equal(t, id, actions.Cancels[0].ID)
}

func TestOnFill_PartialThenComplete(t *testing.T) {
	r := New(2)
	actions := r.Reconcile([]domain.QuoteIntent{target("a", domain.LegYes, 42, 5)}, 44.5, t0)
	id := actions.Places[0].ID

	q, filled, known := r.OnFill(id, 2)
	require.True(t, known)
	assert.False(t, filled)
	assert.Equal(t, 3, q.Count)
	assert.Equal(t, 1, r.LiveCount())

	q, filled, known = r.OnFill(id, 3)
	require.True(t, known)
	assert.True(t, filled)
	assert.Equal(t, domain.IntentFilled, q.State)
	assert.Equal(t, 0, r.LiveCount())

	_, _, known = r.OnFill("foreign", 1)
	assert.False(t, known)
}

func TestSyncOpenOrders_DropsLostPlacements(t *testing.T) {
	r := New(2)
	actions := r.Reconcile([]domain.QuoteIntent{
		target("a", domain.LegYes, 42, 5),
		target("b", domain.LegNo, 53, 5),
	}, 44.5, t0)
	require.Len(t, actions.Places, 2)

	var keepID string
	for _, q := range actions.Places {
		if q.Leg == domain.LegYes {
			keepID = q.ID
		}
	}

	// El exchange solo reporta la orden YES (más una ajena).
	open := []domain.OpenOrder{
		{OrderID: "ord-1", ClientOrderID: keepID},
		{OrderID: "ord-x", ClientOrderID: "foreign"},
	}
	dropped := r.SyncOpenOrders(open, t0.Add(time.Minute), 5*time.Second)

	require.Len(t, dropped, 1)
	assert.Equal(t, domain.LegNo, dropped[0].Leg)
	assert.Equal(t, 1, r.LiveCount())
}

func TestSyncOpenOrders_GracePeriodProtectsFreshIntents(t *testing.T) {
	r := New(2)
	r.Reconcile([]domain.QuoteIntent{target("a", domain.LegYes, 42, 5)}, 44.5, t0)

	// Un segundo después el ack podría estar simplemente en vuelo.
	dropped := r.SyncOpenOrders(nil, t0.Add(time.Second), 5*time.Second)
	assert.Empty(t, dropped)
	assert.Equal(t, 1, r.LiveCount())
}

func TestCancelAll_SweepsEverythingOnce(t *testing.T) {
	r := New(2)
	r.Reconcile([]domain.QuoteIntent{
		target("a", domain.LegYes, 42, 5),
		target("b", domain.LegNo, 53, 5),
	}, 44.5, t0)

	cancels := r.CancelAll()
	assert.Len(t, cancels, 2)

	// Segundo sweep: todo ya marcado.
	assert.Empty(t, r.CancelAll())
}
