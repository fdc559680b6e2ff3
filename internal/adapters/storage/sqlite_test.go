package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/kalshimaker/internal/domain"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testIntent(id string, state domain.IntentState) domain.QuoteIntent {
	return domain.QuoteIntent{
		ID:         id,
		Strategy:   "touch",
		Ticker:     "KXTEST-26",
		Leg:        domain.LegYes,
		Action:     "buy",
		PriceCents: 42,
		Count:      5,
		Kind:       domain.KindEntry,
		State:      state,
		CreatedAt:  time.Now().UTC(),
	}
}

func TestSaveIntentUpsertsByClientID(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	q := testIntent("cid-1", domain.IntentSubmitted)
	require.NoError(t, s.SaveIntent(ctx, q))

	q.State = domain.IntentLive
	q.OrderID = "ord-1"
	require.NoError(t, s.SaveIntent(ctx, q))

	var count int
	var state, orderID string
	row := s.db.QueryRow(`SELECT COUNT(*) FROM intents`)
	require.NoError(t, row.Scan(&count))
	assert.Equal(t, 1, count, "upsert no debe duplicar filas")

	row = s.db.QueryRow(`SELECT state, order_id FROM intents WHERE client_order_id = ?`, "cid-1")
	require.NoError(t, row.Scan(&state, &orderID))
	assert.Equal(t, "LIVE", state)
	assert.Equal(t, "ord-1", orderID)
}

func TestSaveFillDedupesByTradeID(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	f := domain.Fill{
		TradeID:    "t-1",
		Leg:        domain.LegNo,
		Action:     "buy",
		Count:      3,
		PriceCents: 53,
		At:         time.Now().UTC(),
	}
	require.NoError(t, s.SaveFill(ctx, "KXTEST-26", f))
	require.NoError(t, s.SaveFill(ctx, "KXTEST-26", f)) // reentrega del WS

	fills, err := s.Fills(ctx, "KXTEST-26",
		time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, fills, 1)
	assert.Equal(t, "t-1", fills[0].TradeID)
	assert.Equal(t, domain.LegNo, fills[0].Leg)
	assert.Equal(t, 53, fills[0].PriceCents)
}

func TestSaveCycleSkipsQuietCycles(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	quiet := domain.CycleReport{Ticker: "KXTEST-26", At: time.Now().UTC(), Synced: true}
	require.NoError(t, s.SaveCycle(ctx, quiet))

	busy := quiet
	busy.Places = []domain.QuoteIntent{testIntent("cid-1", domain.IntentSubmitted)}
	busy.MidCents = 44.5
	require.NoError(t, s.SaveCycle(ctx, busy))

	var count int
	row := s.db.QueryRow(`SELECT COUNT(*) FROM cycles`)
	require.NoError(t, row.Scan(&count))
	assert.Equal(t, 1, count, "solo el ciclo con acciones deja fila")
}

func TestFillsFiltersByTickerAndRange(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	now := time.Now().UTC()

	fills := []struct {
		id     string
		ticker string
		at     time.Time
	}{
		{"t-1", "KXTEST-26", now},
		{"t-2", "KXOTHER-26", now},
		{"t-3", "KXTEST-26", now.Add(-48 * time.Hour)},
	}
	for _, f := range fills {
		require.NoError(t, s.SaveFill(ctx, f.ticker, domain.Fill{
			TradeID: f.id, Leg: domain.LegYes, Action: "buy",
			Count: 1, PriceCents: 50, At: f.at,
		}))
	}

	got, err := s.Fills(ctx, "KXTEST-26", now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "t-1", got[0].TradeID)
}
