package strategy

import (
	"fmt"

	"github.com/alejandrodnm/kalshimaker/internal/domain"
)

const depthName = "depth"

// DepthLadder escalona bids por debajo del touch: nivel L cotiza a
// best_bid − step·L mientras el spread al ask aguante. El room de
// inventario se asigna nivel a nivel, los niveles más cercanos primero.
type DepthLadder struct {
	cfg Config
}

// NewDepthLadder crea la estrategia con la configuración dada.
func NewDepthLadder(cfg Config) *DepthLadder {
	return &DepthLadder{cfg: cfg}
}

// Name implementa Strategy.
func (s *DepthLadder) Name() string { return depthName }

// Propose implementa Strategy.
func (s *DepthLadder) Propose(view domain.MarketView) ([]domain.QuoteIntent, []string) {
	var intents []domain.QuoteIntent
	var skips []string

	for _, leg := range domain.Legs {
		bid, err := view.Book.BestBid(leg)
		if err != nil {
			skips = append(skips, fmt.Sprintf("depth %s: no quote", leg))
			continue
		}
		ask, err := view.Book.BestAsk(leg)
		if err != nil {
			skips = append(skips, fmt.Sprintf("depth %s: no quote", leg))
			continue
		}

		room := view.Pos.InventoryRoom(leg, s.cfg.MaxInventoryContracts)
		for level := 1; level <= s.cfg.DepthLevels; level++ {
			price := bid.Price - level*s.cfg.DepthStepTicks
			if price < 1 {
				// Los niveles más profundos colapsarían todos en 1¢ y el
				// diff del reconciler no distingue intents con la misma key.
				break
			}
			if ask.Price-price < s.cfg.MinSpreadCents {
				skips = append(skips, fmt.Sprintf("depth %s L%d: spread %d < min %d",
					leg, level, ask.Price-price, s.cfg.MinSpreadCents))
				continue
			}
			if room <= 0 {
				skips = append(skips, fmt.Sprintf("depth %s L%d: inventory room exhausted", leg, level))
				break
			}
			size := s.cfg.BidSizeContracts
			if size > room {
				size = room
			}
			room -= size
			intents = append(intents, newIntent(view, depthName, leg, "buy", price, size, domain.KindEntry, s.cfg.QuoteTTL))
		}
	}
	return intents, skips
}
