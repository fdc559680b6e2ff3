package notify

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/kalshimaker/internal/domain"
)

func sampleReport() domain.CycleReport {
	return domain.CycleReport{
		Ticker:   "KXTEST-26",
		At:       time.Date(2026, 8, 29, 14, 30, 0, 0, time.UTC),
		MidCents: 44.5,
		Synced:   true,
		DryRun:   true,
		Proposed: 3,
		Accepted: 2,
		Places: []domain.QuoteIntent{
			{Strategy: "touch", Leg: domain.LegYes, Action: "buy", PriceCents: 42, Count: 5, State: domain.IntentSubmitted},
			{Strategy: "touch", Leg: domain.LegNo, Action: "buy", PriceCents: 53, Count: 5, State: domain.IntentSubmitted},
		},
		Rejected: []domain.RejectedIntent{
			{
				Intent: domain.QuoteIntent{Strategy: "depth", Leg: domain.LegYes, Action: "buy", PriceCents: 40, Count: 5},
				Reason: "inventory cap",
			},
		},
		Skips:     []string{"band: yes spread 2¢ < min 3¢"},
		Inventory: map[domain.Leg]int{domain.LegYes: 10, domain.LegNo: 0},
	}
}

func TestNotifyCycleCompact(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleWriter(&buf, false, false)

	require.NoError(t, c.NotifyCycle(context.Background(), sampleReport()))

	out := buf.String()
	assert.Contains(t, out, "KXTEST-26")
	assert.Contains(t, out, "mid=44.5¢")
	assert.Contains(t, out, "place:2")
	assert.Contains(t, out, "dry")
	assert.Contains(t, out, "inv Y:10")
}

func TestNotifyCycleTableWithRationale(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleWriter(&buf, true, true)

	require.NoError(t, c.NotifyCycle(context.Background(), sampleReport()))

	out := buf.String()
	assert.Contains(t, out, "DRY-RUN")
	assert.Contains(t, out, "PLACE")
	assert.Contains(t, out, "touch")
	assert.Contains(t, out, "inventory cap")
	assert.Contains(t, out, "skip: band")
}

func TestNotifyCycleQuietCyclePrintsNothing(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleWriter(&buf, true, true)

	quiet := domain.CycleReport{Ticker: "KXTEST-26", At: time.Now(), Synced: true}
	require.NoError(t, c.NotifyCycle(context.Background(), quiet))

	assert.Empty(t, buf.String())
}
