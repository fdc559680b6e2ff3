package strategy

import (
	"fmt"

	"github.com/alejandrodnm/kalshimaker/internal/domain"
)

const exitName = "exit"

// ExitMaker deshace inventario con asks post-only. El precio base es la
// referencia de entrada más take_profit_ticks, recortado a quedar al menos
// min_spread por encima del mejor bid y nunca por debajo del mejor ask
// menos el nudge configurado. Con inventario grande reparte la salida en
// rungs a offsets crecientes. Sin inventario no propone nada: el diff del
// reconciler cancela las salidas que queden vivas.
type ExitMaker struct {
	cfg Config
}

// NewExitMaker crea la estrategia con la configuración dada.
func NewExitMaker(cfg Config) *ExitMaker {
	return &ExitMaker{cfg: cfg}
}

// Name implementa Strategy.
func (s *ExitMaker) Name() string { return exitName }

// Propose implementa Strategy.
func (s *ExitMaker) Propose(view domain.MarketView) ([]domain.QuoteIntent, []string) {
	var intents []domain.QuoteIntent
	var skips []string

	for _, leg := range domain.Legs {
		inventory := view.Pos.Inventory[leg]
		if inventory <= 0 {
			continue
		}

		price, err := s.exitPrice(view, leg)
		if err != nil {
			skips = append(skips, fmt.Sprintf("exit %s: no quote", leg))
			continue
		}

		if inventory >= s.cfg.ExitLadderThreshold {
			// Rungs a offsets crecientes, cada uno acotado por exit_size,
			// sumando el inventario completo.
			remaining := inventory
			for offset := 0; remaining > 0; offset++ {
				rungPrice := price + offset
				size := s.cfg.ExitSizeContracts
				if size > remaining {
					size = remaining
				}
				if rungPrice >= 99 {
					// Tope del book: un único rung final con todo el resto,
					// dos rungs a 99¢ compartirían key en el reconciler.
					rungPrice, size = 99, remaining
				}
				remaining -= size
				intents = append(intents, newIntent(view, exitName, leg, "sell", rungPrice, size, domain.KindExit, s.cfg.ExitTTL))
			}
			continue
		}

		size := inventory
		if size > s.cfg.ExitSizeContracts {
			size = s.cfg.ExitSizeContracts
		}
		intents = append(intents, newIntent(view, exitName, leg, "sell", price, size, domain.KindExit, s.cfg.ExitTTL))
	}
	return intents, skips
}

func (s *ExitMaker) exitPrice(view domain.MarketView, leg domain.Leg) (int, error) {
	bid, err := view.Book.BestBid(leg)
	if err != nil {
		return 0, err
	}
	ask, err := view.Book.BestAsk(leg)
	if err != nil {
		return 0, err
	}

	price := ask.Price
	if ref := view.Pos.EntryRef[leg]; ref > 0 {
		price = ref + s.cfg.TakeProfitTicks
	}
	if floor := bid.Price + s.cfg.MinSpreadCents; price < floor {
		price = floor
	}
	if floor := ask.Price - s.cfg.ExitNudgeTicks; price < floor {
		price = floor
	}
	if view.Pos.Lean[leg] == domain.LeanDown {
		// Flujo agresor vendiendo contra nosotros: subir un tick la
		// probabilidad de fill antes de que el mid se vaya.
		price++
	}
	return clamp(price, 1, 99), nil
}
