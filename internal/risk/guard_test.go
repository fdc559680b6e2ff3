package risk

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/kalshimaker/internal/domain"
)

func emptyPos() domain.PositionView {
	return domain.PositionView{
		Inventory: map[domain.Leg]int{},
		EntryRef:  map[domain.Leg]int{},
	}
}

func buyIntent(strategy string, leg domain.Leg, price, count int) domain.QuoteIntent {
	return domain.QuoteIntent{
		ID:         fmt.Sprintf("%s-%s-%d", strategy, leg, price),
		Strategy:   strategy,
		Leg:        leg,
		Action:     "buy",
		PriceCents: price,
		Count:      count,
		Kind:       domain.KindEntry,
	}
}

func TestGuard_Filter_AcceptsWithinLimits(t *testing.T) {
	g := New(DefaultConfig())

	proposed := []domain.QuoteIntent{
		buyIntent("touch", domain.LegYes, 42, 5),
		buyIntent("touch", domain.LegNo, 53, 5),
	}
	accepted, rejected := g.Filter(proposed, nil, emptyPos())

	assert.Len(t, accepted, 2)
	assert.Empty(t, rejected) // 42+53 = 95 ≤ 97
}

func TestGuard_Filter_SumCushionWithinBatch(t *testing.T) {
	g := New(DefaultConfig())

	// 46+53 = 99 > 97: el segundo bid rompería el colchón contra el primero.
	proposed := []domain.QuoteIntent{
		buyIntent("touch", domain.LegYes, 46, 5),
		buyIntent("touch", domain.LegNo, 53, 5),
	}
	accepted, rejected := g.Filter(proposed, nil, emptyPos())

	require.Len(t, accepted, 1)
	assert.Equal(t, domain.LegYes, accepted[0].Leg)
	require.Len(t, rejected, 1)
	assert.Contains(t, rejected[0].Reason, "sum-cushion")
}

func TestGuard_Filter_SumCushionAgainstLiveOrders(t *testing.T) {
	g := New(DefaultConfig())

	live := []domain.QuoteIntent{buyIntent("band", domain.LegNo, 55, 5)}
	proposed := []domain.QuoteIntent{buyIntent("touch", domain.LegYes, 45, 5)}

	accepted, rejected := g.Filter(proposed, live, emptyPos())

	assert.Empty(t, accepted, "45+55 = 100 > 97 contra el bid vivo")
	require.Len(t, rejected, 1)
	assert.Contains(t, rejected[0].Reason, "sum-cushion")
}

func TestGuard_Filter_LegInventoryCap(t *testing.T) {
	g := New(DefaultConfig())

	pos := emptyPos()
	pos.Inventory[domain.LegYes] = 97 // room 3

	proposed := []domain.QuoteIntent{buyIntent("touch", domain.LegYes, 42, 5)}
	accepted, rejected := g.Filter(proposed, nil, pos)

	assert.Empty(t, accepted)
	require.Len(t, rejected, 1)
	assert.Contains(t, rejected[0].Reason, "leg cap")
}

func TestGuard_Filter_LegCapCountsLiveExposure(t *testing.T) {
	g := New(DefaultConfig())

	pos := emptyPos()
	pos.Inventory[domain.LegYes] = 90 // room 10
	live := []domain.QuoteIntent{buyIntent("depth", domain.LegYes, 40, 8)}

	proposed := []domain.QuoteIntent{buyIntent("touch", domain.LegYes, 42, 5)}
	accepted, rejected := g.Filter(proposed, live, pos)

	assert.Empty(t, accepted, "8 vivos + 5 propuestos > room 10")
	require.Len(t, rejected, 1)
}

func TestGuard_Filter_GroupCapWithFillAccounting(t *testing.T) {
	g := New(DefaultConfig())
	g.RegisterGroupFill("touch", 38) // quedan 2 del cap de 40

	proposed := []domain.QuoteIntent{buyIntent("touch", domain.LegYes, 42, 5)}
	accepted, rejected := g.Filter(proposed, nil, emptyPos())

	assert.Empty(t, accepted)
	require.Len(t, rejected, 1)
	assert.Contains(t, rejected[0].Reason, "group cap")

	// Otra estrategia no comparte el cap.
	accepted, rejected = g.Filter(
		[]domain.QuoteIntent{buyIntent("depth", domain.LegYes, 40, 5)}, nil, emptyPos())
	assert.Len(t, accepted, 1)
	assert.Empty(t, rejected)
}

func TestGuard_Filter_RulesOrdered(t *testing.T) {
	g := New(DefaultConfig())
	g.RegisterGroupFill("touch", 40) // grupo agotado también

	// Viola sum-cushion Y group cap: debe reportar la primera regla.
	live := []domain.QuoteIntent{buyIntent("band", domain.LegNo, 56, 5)}
	proposed := []domain.QuoteIntent{buyIntent("touch", domain.LegYes, 45, 5)}

	_, rejected := g.Filter(proposed, live, emptyPos())
	require.Len(t, rejected, 1)
	assert.Contains(t, rejected[0].Reason, "sum-cushion")
}

func TestGuard_Filter_RejectionLeavesLiveUntouched(t *testing.T) {
	g := New(DefaultConfig())

	live := []domain.QuoteIntent{buyIntent("band", domain.LegNo, 55, 5)}
	proposed := []domain.QuoteIntent{
		buyIntent("touch", domain.LegYes, 45, 5), // rechazado por cushion
		buyIntent("touch", domain.LegYes, 40, 5), // 40+55 = 95 ≤ 97, pasa
	}

	accepted, rejected := g.Filter(proposed, live, emptyPos())
	require.Len(t, accepted, 1)
	assert.Equal(t, 40, accepted[0].PriceCents)
	assert.Len(t, rejected, 1)
}

func TestGuard_GroupRemaining(t *testing.T) {
	g := New(DefaultConfig())

	assert.Equal(t, 40, g.GroupRemaining("touch"))
	g.RegisterGroupFill("touch", 15)
	assert.Equal(t, 25, g.GroupRemaining("touch"))
	g.RegisterGroupFill("touch", 100)
	assert.Equal(t, 0, g.GroupRemaining("touch"), "nunca negativo")
}
