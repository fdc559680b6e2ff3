package strategy

import (
	"fmt"
	"time"

	"github.com/alejandrodnm/kalshimaker/internal/domain"
	"github.com/google/uuid"
)

// Strategy define el contrato de generación de quotes. Cada estrategia es
// una función pura de la vista congelada del mercado: mismo input, mismos
// intents. Eso las hace testeables con fixtures de book/posición.
type Strategy interface {
	// Name devuelve el identificador único de la estrategia.
	Name() string

	// Propose calcula los quotes deseados para esta recomputación.
	// Devuelve intents en estado proposed y las razones de skip por leg
	// (para el rationale de dry-run). Nunca muta estado compartido.
	Propose(view domain.MarketView) (intents []domain.QuoteIntent, skips []string)
}

// Registry mantiene las estrategias activas en orden de evaluación.
type Registry []Strategy

// Register añade una estrategia al final del orden de evaluación.
func (r *Registry) Register(s Strategy) {
	*r = append(*r, s)
}

// Config son los knobs compartidos por todas las estrategias. Inmutable en
// runtime: un reload produce una instancia nueva intercambiada entre ciclos,
// nunca mutación in-place mientras haya intents que la referencien.
type Config struct {
	MinSpreadCents        int
	BidSizeContracts      int
	ExitSizeContracts     int
	TakeProfitTicks       int
	ExitNudgeTicks        int
	QuoteTTL              time.Duration
	ExitTTL               time.Duration
	MaxInventoryContracts int

	QueueSmallThreshold int
	QueueBigThreshold   int
	ExitLadderThreshold int
	ImproveIfLast       bool

	DepthLevels    int
	DepthStepTicks int

	BandHalfWidthTicks int
	BandRungs          int
}

// DefaultConfig devuelve los knobs por defecto.
func DefaultConfig() Config {
	return Config{
		MinSpreadCents:        3,
		BidSizeContracts:      5,
		ExitSizeContracts:     5,
		TakeProfitTicks:       2,
		ExitNudgeTicks:        1,
		QuoteTTL:              6 * time.Second,
		ExitTTL:               20 * time.Second,
		MaxInventoryContracts: 100,
		QueueSmallThreshold:   50,
		QueueBigThreshold:     400,
		ExitLadderThreshold:   30,
		ImproveIfLast:         true,
		DepthLevels:           3,
		DepthStepTicks:        2,
		BandHalfWidthTicks:    4,
		BandRungs:             2,
	}
}

// CheckPostOnly valida la disciplina post-only de un intent contra la vista
// con la que se propuso: un bid nunca puede tocar el mejor ask de su leg,
// un ask de salida nunca puede tocar el mejor bid.
// Devuelve ErrCrossingPrice si el intent cruzaría; se descarta, no se envía.
func CheckPostOnly(view domain.MarketView, intent domain.QuoteIntent) error {
	switch intent.Action {
	case "buy":
		ask, err := view.Book.BestAsk(intent.Leg)
		if err != nil {
			return err
		}
		if intent.PriceCents >= ask.Price {
			return fmt.Errorf("%s bid %d¢ vs ask %d¢: %w",
				intent.Leg, intent.PriceCents, ask.Price, domain.ErrCrossingPrice)
		}
	case "sell":
		bid, err := view.Book.BestBid(intent.Leg)
		if err != nil {
			return err
		}
		if intent.PriceCents <= bid.Price {
			return fmt.Errorf("%s ask %d¢ vs bid %d¢: %w",
				intent.Leg, intent.PriceCents, bid.Price, domain.ErrCrossingPrice)
		}
	}
	return nil
}

// GroupID devuelve el order group de una estrategia.
func GroupID(name string) string {
	return "order-group-" + name
}

func newIntent(view domain.MarketView, name string, leg domain.Leg, action string, price, count int, kind domain.IntentKind, ttl time.Duration) domain.QuoteIntent {
	mid, _ := view.Book.MidCents(domain.LegYes)
	return domain.QuoteIntent{
		ID:         uuid.New().String(),
		Strategy:   name,
		GroupID:    GroupID(name),
		Ticker:     view.Ticker,
		Leg:        leg,
		Action:     action,
		PriceCents: price,
		Count:      count,
		Kind:       kind,
		TTL:        ttl,
		CreatedAt:  view.Now,
		State:      domain.IntentProposed,
		MidAtCents: mid,
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
