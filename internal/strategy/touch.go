package strategy

import (
	"fmt"

	"github.com/alejandrodnm/kalshimaker/internal/domain"
)

const touchName = "touch"

// TouchMaker cotiza en el mejor bid de cada leg cuando el spread lo permite.
// Si la cola al touch es pequeña mejora exactamente un tick por
// recomputación (nunca iterado); si la cola es enorme baja un tick para no
// pagar la espera.
type TouchMaker struct {
	cfg Config
}

// NewTouchMaker crea la estrategia con la configuración dada.
func NewTouchMaker(cfg Config) *TouchMaker {
	return &TouchMaker{cfg: cfg}
}

// Name implementa Strategy.
func (s *TouchMaker) Name() string { return touchName }

// Propose implementa Strategy.
func (s *TouchMaker) Propose(view domain.MarketView) ([]domain.QuoteIntent, []string) {
	var intents []domain.QuoteIntent
	var skips []string

	for _, leg := range domain.Legs {
		bid, err := view.Book.BestBid(leg)
		if err != nil {
			skips = append(skips, fmt.Sprintf("touch %s: no quote", leg))
			continue
		}
		ask, err := view.Book.BestAsk(leg)
		if err != nil {
			skips = append(skips, fmt.Sprintf("touch %s: no quote", leg))
			continue
		}

		spread := ask.Price - bid.Price
		if spread < s.cfg.MinSpreadCents {
			skips = append(skips, fmt.Sprintf("touch %s: spread %d < min %d", leg, spread, s.cfg.MinSpreadCents))
			continue
		}

		room := view.Pos.InventoryRoom(leg, s.cfg.MaxInventoryContracts)
		if room <= 0 {
			skips = append(skips, fmt.Sprintf("touch %s: inventory room exhausted", leg))
			continue
		}

		price := bid.Price
		switch {
		case s.cfg.ImproveIfLast &&
			bid.Size < s.cfg.QueueSmallThreshold &&
			ask.Price-(price+1) >= s.cfg.MinSpreadCents:
			// Cola fina: mejorar un tick, solo si el spread resultante aguanta.
			price = clamp(price+1, 1, 99)
		case s.cfg.QueueBigThreshold > 0 &&
			bid.Size >= s.cfg.QueueBigThreshold:
			// Cola enorme: un tick por debajo del touch antes que esperar turno.
			price = clamp(price-1, 1, 99)
		}

		size := s.cfg.BidSizeContracts
		if size > room {
			size = room
		}
		intents = append(intents, newIntent(view, touchName, leg, "buy", price, size, domain.KindEntry, s.cfg.QuoteTTL))
	}
	return intents, skips
}
