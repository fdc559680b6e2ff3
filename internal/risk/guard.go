package risk

import (
	"fmt"

	"github.com/alejandrodnm/kalshimaker/internal/domain"
)

// Config son los límites duros del guard. Inmutable en runtime.
type Config struct {
	// SumCushionTicks es el colchón mínimo bajo 100 entre el mejor bid YES
	// y el mejor bid NO simultáneos. Evita el doble fill de pérdida
	// garantizada (bid_yes + bid_no > 100 significa pagar más de lo que
	// liquida el contrato).
	SumCushionTicks int

	// MaxInventoryContracts es el cap de inventario por leg.
	MaxInventoryContracts int

	// GroupLimits acota los contratos agregados por estrategia
	// (vivos + propuestos + ya ejecutados en el grupo).
	GroupLimits map[string]int
}

// DefaultConfig devuelve los límites por defecto.
func DefaultConfig() Config {
	return Config{
		SumCushionTicks:       3,
		MaxInventoryContracts: 100,
		GroupLimits: map[string]int{
			"touch": 40,
			"depth": 120,
			"band":  80,
			"exit":  100,
		},
	}
}

// Guard aplica los checks transversales de riesgo antes de cualquier
// colocación. Mantiene el acumulado de fills por grupo, alimentado desde
// el stream privado, para el cap por estrategia.
type Guard struct {
	cfg    Config
	filled map[string]int // strategy → contratos ejecutados en el grupo
}

// New crea un Guard con la configuración dada.
func New(cfg Config) *Guard {
	return &Guard{cfg: cfg, filled: map[string]int{}}
}

// RegisterGroupFill acumula contratos ejecutados contra el cap del grupo.
func (g *Guard) RegisterGroupFill(strategy string, count int) {
	if count > 0 {
		g.filled[strategy] += count
	}
}

// GroupRemaining devuelve la capacidad restante del grupo de la estrategia.
func (g *Guard) GroupRemaining(strategy string) int {
	limit, ok := g.cfg.GroupLimits[strategy]
	if !ok {
		return int(^uint(0) >> 1) // sin límite configurado
	}
	remaining := limit - g.filled[strategy]
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Filter aplica las reglas, en orden, sobre el batch completo de intents
// propuestos por todas las estrategias:
//
//  1. Sum-cushion: ningún par de bids YES/NO simultáneos (vivos o
//     propuestos) puede sumar más de 100 − cushion.
//  2. Cap por leg: bids vivos + propuestos de una leg ≤ cap − inventario.
//  3. Cap por grupo de estrategia, independiente por estrategia.
//
// Los rechazados se descartan en silencio para este ciclo (no se reintentan
// y no cancelan órdenes ya vivas); vuelven a competir en la próxima
// recomputación natural.
func (g *Guard) Filter(proposed, live []domain.QuoteIntent, pos domain.PositionView) (accepted []domain.QuoteIntent, rejected []domain.RejectedIntent) {
	// Estado agregado de lo ya vivo: el guard nunca cancela, solo limita
	// lo nuevo que puede coexistir con ello.
	maxBid := map[domain.Leg]int{}
	legExposure := map[domain.Leg]int{}
	groupExposure := map[string]int{}
	for _, q := range live {
		if q.Action == "buy" {
			if q.PriceCents > maxBid[q.Leg] {
				maxBid[q.Leg] = q.PriceCents
			}
			legExposure[q.Leg] += q.Count
		}
		groupExposure[q.Strategy] += q.Count
	}

	for _, q := range proposed {
		if q.Action == "buy" {
			// Regla 1: sum-cushion contra el mejor bid opuesto que quedaría vivo.
			if opp := maxBid[q.Leg.Opposite()]; opp > 0 && q.PriceCents+opp > 100-g.cfg.SumCushionTicks {
				rejected = append(rejected, domain.RejectedIntent{
					Intent: q,
					Reason: fmt.Sprintf("sum-cushion: %d+%d > %d", q.PriceCents, opp, 100-g.cfg.SumCushionTicks),
				})
				continue
			}

			// Regla 2: cap de inventario por leg.
			room := pos.InventoryRoom(q.Leg, g.cfg.MaxInventoryContracts)
			if legExposure[q.Leg]+q.Count > room {
				rejected = append(rejected, domain.RejectedIntent{
					Intent: q,
					Reason: fmt.Sprintf("leg cap: exposure %d+%d > room %d", legExposure[q.Leg], q.Count, room),
				})
				continue
			}
		}

		// Regla 3: cap por grupo de estrategia.
		if remaining := g.GroupRemaining(q.Strategy); groupExposure[q.Strategy]+q.Count > remaining {
			rejected = append(rejected, domain.RejectedIntent{
				Intent: q,
				Reason: fmt.Sprintf("group cap %s: exposure %d+%d > remaining %d", q.Strategy, groupExposure[q.Strategy], q.Count, remaining),
			})
			continue
		}

		// Aceptado: cuenta contra los límites del resto del batch.
		if q.Action == "buy" {
			if q.PriceCents > maxBid[q.Leg] {
				maxBid[q.Leg] = q.PriceCents
			}
			legExposure[q.Leg] += q.Count
		}
		groupExposure[q.Strategy] += q.Count
		accepted = append(accepted, q)
	}
	return accepted, rejected
}
