package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func syncedBook(t *testing.T) *Book {
	t.Helper()
	b := NewBook("KXTEST-26")
	b.ApplySnapshot(
		[]PriceLevel{{Price: 42, Size: 120}, {Price: 41, Size: 300}},
		[]PriceLevel{{Price: 54, Size: 80}, {Price: 53, Size: 150}},
		100,
	)
	return b
}

func TestBook_ApplySnapshot_ReplacesState(t *testing.T) {
	b := syncedBook(t)
	require.True(t, b.Synced())

	bid, err := b.BestBid(LegYes)
	require.NoError(t, err)
	assert.Equal(t, 42, bid.Price)
	assert.Equal(t, 120, bid.Size)

	// Snapshot nuevo descarta todo lo anterior, incluidos niveles viejos.
	b.ApplySnapshot(
		[]PriceLevel{{Price: 45, Size: 10}},
		[]PriceLevel{{Price: 50, Size: 20}},
		200,
	)
	bid, err = b.BestBid(LegYes)
	require.NoError(t, err)
	assert.Equal(t, 45, bid.Price)

	view, err := b.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 10, view.TotalSize(LegYes))
}

func TestBook_ApplyDelta_Contiguous(t *testing.T) {
	b := syncedBook(t)

	require.NoError(t, b.ApplyDelta(LegYes, 42, -20, 101))
	bid, err := b.BestBid(LegYes)
	require.NoError(t, err)
	assert.Equal(t, 100, bid.Size)

	// Delta a cero elimina el nivel.
	require.NoError(t, b.ApplyDelta(LegYes, 42, -100, 102))
	bid, err = b.BestBid(LegYes)
	require.NoError(t, err)
	assert.Equal(t, 41, bid.Price)
}

func TestBook_ApplyDelta_SequenceGapDesyncsWithoutApplying(t *testing.T) {
	b := syncedBook(t)

	err := b.ApplyDelta(LegYes, 42, -20, 103) // esperaba 101
	require.ErrorIs(t, err, ErrSequenceGap)
	assert.False(t, b.Synced())

	// El book desincronizado no sirve vistas.
	_, err = b.Snapshot()
	assert.ErrorIs(t, err, ErrBookUnsynced)

	// Más deltas no reparan nada; solo un snapshot fresco.
	err = b.ApplyDelta(LegYes, 42, -20, 104)
	assert.ErrorIs(t, err, ErrBookUnsynced)

	b.ApplySnapshot([]PriceLevel{{Price: 42, Size: 100}}, []PriceLevel{{Price: 53, Size: 50}}, 200)
	require.True(t, b.Synced())

	// El nivel de 42¢ conserva el valor del snapshot: el delta del gap
	// nunca se aplicó parcialmente.
	bid, err := b.BestBid(LegYes)
	require.NoError(t, err)
	assert.Equal(t, 100, bid.Size)
}

func TestBook_ApplyDelta_NegativeSizeDesyncs(t *testing.T) {
	b := syncedBook(t)

	err := b.ApplyDelta(LegYes, 42, -500, 101)
	require.ErrorIs(t, err, ErrNegativeSize)
	assert.False(t, b.Synced())
}

func TestBookView_DerivedAsks(t *testing.T) {
	view := NewBookView(
		[]PriceLevel{{Price: 42, Size: 120}},
		[]PriceLevel{{Price: 53, Size: 150}},
	)

	// El ask de cada leg se deriva del mejor bid de la complementaria.
	yesAsk, err := view.BestAsk(LegYes)
	require.NoError(t, err)
	assert.Equal(t, 47, yesAsk.Price) // 100 - 53
	assert.Equal(t, 150, yesAsk.Size)

	noAsk, err := view.BestAsk(LegNo)
	require.NoError(t, err)
	assert.Equal(t, 58, noAsk.Price) // 100 - 42

	spread, err := view.Spread(LegYes)
	require.NoError(t, err)
	assert.Equal(t, 5, spread)

	mid, err := view.MidCents(LegYes)
	require.NoError(t, err)
	assert.InDelta(t, 44.5, mid, 0.001)
}

func TestBookView_BestAsk_RequiresOppositeBids(t *testing.T) {
	view := NewBookView([]PriceLevel{{Price: 42, Size: 10}}, nil)

	_, err := view.BestAsk(LegYes)
	assert.ErrorIs(t, err, ErrNoQuote)

	// El ask del NO sí existe: lo deriva del bid YES.
	ask, err := view.BestAsk(LegNo)
	require.NoError(t, err)
	assert.Equal(t, 58, ask.Price)
}

func TestBookView_TopN_DescendingFromBest(t *testing.T) {
	view := NewBookView(
		[]PriceLevel{{Price: 40, Size: 1}, {Price: 42, Size: 2}, {Price: 41, Size: 3}},
		nil,
	)

	top, err := view.TopN(LegYes, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, PriceLevel{Price: 42, Size: 2}, top[0])
	assert.Equal(t, PriceLevel{Price: 41, Size: 3}, top[1])

	// Pedir más niveles de los que hay devuelve los existentes.
	top, err = view.TopN(LegYes, 10)
	require.NoError(t, err)
	assert.Len(t, top, 3)
}

func TestBook_SnapshotIsolatedFromLaterDeltas(t *testing.T) {
	b := syncedBook(t)
	view, err := b.Snapshot()
	require.NoError(t, err)

	require.NoError(t, b.ApplyDelta(LegYes, 42, -120, 101))

	// La vista congelada no ve el delta posterior.
	bid, err := view.BestBid(LegYes)
	require.NoError(t, err)
	assert.Equal(t, 42, bid.Price)
	assert.Equal(t, 120, bid.Size)
}
