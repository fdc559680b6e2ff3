package strategy

import (
	"fmt"

	"github.com/alejandrodnm/kalshimaker/internal/domain"
)

const bandName = "band"

// BandReplenish siembra rungs simétricos alrededor del mid de YES: el rung
// r cotiza a mid − r·half_width en YES y al valor complementario en NO,
// siempre que el spread por leg aguante a ese precio.
type BandReplenish struct {
	cfg Config
}

// NewBandReplenish crea la estrategia con la configuración dada.
func NewBandReplenish(cfg Config) *BandReplenish {
	return &BandReplenish{cfg: cfg}
}

// Name implementa Strategy.
func (s *BandReplenish) Name() string { return bandName }

// Propose implementa Strategy.
func (s *BandReplenish) Propose(view domain.MarketView) ([]domain.QuoteIntent, []string) {
	var intents []domain.QuoteIntent
	var skips []string

	mid, err := view.Book.MidCents(domain.LegYes)
	if err != nil {
		return nil, []string{"band: no mid available"}
	}

	anchor := map[domain.Leg]int{
		domain.LegYes: int(mid),
		domain.LegNo:  100 - int(mid),
	}
	room := map[domain.Leg]int{}
	for _, leg := range domain.Legs {
		room[leg] = view.Pos.InventoryRoom(leg, s.cfg.MaxInventoryContracts)
	}

	for rung := 1; rung <= s.cfg.BandRungs; rung++ {
		offset := rung * s.cfg.BandHalfWidthTicks
		for _, leg := range domain.Legs {
			ask, err := view.Book.BestAsk(leg)
			if err != nil {
				skips = append(skips, fmt.Sprintf("band %s r%d: no quote", leg, rung))
				continue
			}
			price := anchor[leg] - offset
			if price < 1 {
				// Rungs más profundos colapsarían en 1¢ con keys idénticas.
				skips = append(skips, fmt.Sprintf("band %s r%d: below price floor", leg, rung))
				continue
			}
			if ask.Price-price < s.cfg.MinSpreadCents {
				skips = append(skips, fmt.Sprintf("band %s r%d: spread %d < min %d",
					leg, rung, ask.Price-price, s.cfg.MinSpreadCents))
				continue
			}
			if room[leg] <= 0 {
				skips = append(skips, fmt.Sprintf("band %s r%d: inventory room exhausted", leg, rung))
				continue
			}
			size := s.cfg.BidSizeContracts
			if size > room[leg] {
				size = room[leg]
			}
			room[leg] -= size
			intents = append(intents, newIntent(view, bandName, leg, "buy", price, size, domain.KindEntry, s.cfg.QuoteTTL))
		}
	}
	return intents, skips
}
