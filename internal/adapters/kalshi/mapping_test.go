package kalshi

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/kalshimaker/internal/domain"
)

var now = time.Date(2026, 8, 29, 14, 30, 0, 0, time.UTC)

func envelope(t *testing.T, typ string, seq int64, msg string) wsEnvelope {
	t.Helper()
	return wsEnvelope{Type: typ, Seq: seq, Msg: json.RawMessage(msg)}
}

func TestMapEnvelope_Snapshot(t *testing.T) {
	env := envelope(t, "orderbook_snapshot", 100,
		`{"market_ticker":"KXTEST-26","yes":[[42,120],[41,300]],"no":[[53,150]]}`)

	ev, ok, err := mapEnvelope(env, now)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, domain.EvSnapshot, ev.Type)
	assert.Equal(t, "KXTEST-26", ev.Ticker)
	assert.Equal(t, int64(100), ev.Seq)
	require.NotNil(t, ev.Snapshot)
	assert.Equal(t, []domain.PriceLevel{{Price: 42, Size: 120}, {Price: 41, Size: 300}}, ev.Snapshot.Yes)
	assert.Equal(t, []domain.PriceLevel{{Price: 53, Size: 150}}, ev.Snapshot.No)
}

func TestMapEnvelope_Delta(t *testing.T) {
	env := envelope(t, "orderbook_delta", 101,
		`{"market_ticker":"KXTEST-26","side":"no","price":53,"delta":-20}`)

	ev, ok, err := mapEnvelope(env, now)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, domain.EvDelta, ev.Type)
	assert.Equal(t, int64(101), ev.Seq)
	require.NotNil(t, ev.Delta)
	assert.Equal(t, domain.LegNo, ev.Delta.Leg)
	assert.Equal(t, 53, ev.Delta.Price)
	assert.Equal(t, -20, ev.Delta.Delta)
}

func TestMapEnvelope_DeltaUnknownSide(t *testing.T) {
	env := envelope(t, "orderbook_delta", 101,
		`{"market_ticker":"KXTEST-26","side":"maybe","price":53,"delta":-20}`)

	_, _, err := mapEnvelope(env, now)
	assert.Error(t, err)
}

func TestMapEnvelope_Trade(t *testing.T) {
	env := envelope(t, "trade", 0,
		`{"market_ticker":"KXTEST-26","taker_side":"yes","yes_price":43,"no_price":57,"count":10,"ts":1756476600}`)

	ev, ok, err := mapEnvelope(env, now)
	require.NoError(t, err)
	require.True(t, ok)

	require.NotNil(t, ev.Trade)
	assert.Equal(t, domain.LegYes, ev.Trade.TakerSide)
	assert.Equal(t, 43, ev.Trade.YesPrice)
	assert.Equal(t, 10, ev.Trade.Count)
	assert.Equal(t, time.Unix(1756476600, 0).UTC(), ev.At)
}

func TestMapEnvelope_FillCarriesOrderRefs(t *testing.T) {
	env := envelope(t, "fill", 0,
		`{"market_ticker":"KXTEST-26","trade_id":"t-1","order_id":"ord-1","client_order_id":"cid-1","side":"yes","action":"buy","count":3,"price":42,"ts":1756476600}`)

	ev, ok, err := mapEnvelope(env, now)
	require.NoError(t, err)
	require.True(t, ok)

	require.NotNil(t, ev.Fill)
	assert.Equal(t, "t-1", ev.Fill.TradeID)
	assert.Equal(t, "cid-1", ev.Fill.ClientOrderID)
	assert.Equal(t, "ord-1", ev.Fill.OrderID)
	assert.Equal(t, domain.LegYes, ev.Fill.Leg)
	assert.Equal(t, 3, ev.Fill.Count)
	assert.Equal(t, 42, ev.Fill.PriceCents)
}

func TestMapEnvelope_PositionSplitsSignedNet(t *testing.T) {
	ev, ok, err := mapEnvelope(envelope(t, "market_position", 0,
		`{"market_ticker":"KXTEST-26","position":25}`), now)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 25, ev.Position.Yes)
	assert.Zero(t, ev.Position.No)

	// Posición negativa = contratos NO, y YES viaja explícitamente en 0.
	ev, ok, err = mapEnvelope(envelope(t, "market_position", 0,
		`{"market_ticker":"KXTEST-26","position":-12}`), now)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Zero(t, ev.Position.Yes)
	assert.Equal(t, 12, ev.Position.No)
}

func TestMapEnvelope_PositionSignFlipClearsOldLeg(t *testing.T) {
	ledger := domain.NewLedger()

	for _, raw := range []string{
		`{"market_ticker":"KXTEST-26","position":5}`,
		`{"market_ticker":"KXTEST-26","position":-3}`,
	} {
		ev, ok, err := mapEnvelope(envelope(t, "market_position", 0, raw), now)
		require.NoError(t, err)
		require.True(t, ok)
		ledger.ApplyPositionUpdate(domain.LegYes, ev.Position.Yes)
		ledger.ApplyPositionUpdate(domain.LegNo, ev.Position.No)
	}

	// El flip +5 → -3 no deja inventario YES fantasma.
	assert.Zero(t, ledger.Inventory(domain.LegYes))
	assert.Equal(t, 3, ledger.Inventory(domain.LegNo))
}

func TestMapEnvelope_AdministrativeTypesSkipped(t *testing.T) {
	for _, typ := range []string{"subscribed", "ok", ""} {
		_, ok, err := mapEnvelope(wsEnvelope{Type: typ}, now)
		assert.NoError(t, err)
		assert.False(t, ok)
	}
}
