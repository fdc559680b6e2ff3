package kalshi

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/alejandrodnm/kalshimaker/internal/domain"
)

// mapEnvelope traduce un mensaje del WS al Event de dominio. Devuelve
// ok=false para tipos administrativos (subscribed, error, ok) que no llegan
// al engine.
func mapEnvelope(env wsEnvelope, now time.Time) (domain.Event, bool, error) {
	switch env.Type {
	case "orderbook_snapshot":
		var m snapshotMsg
		if err := json.Unmarshal(env.Msg, &m); err != nil {
			return domain.Event{}, false, fmt.Errorf("kalshi.mapEnvelope: snapshot: %w", err)
		}
		return domain.Event{
			Type:   domain.EvSnapshot,
			Ticker: m.MarketTicker,
			Seq:    env.Seq,
			At:     now,
			Snapshot: &domain.SnapshotEvent{
				Yes: mapLevels(m.Yes),
				No:  mapLevels(m.No),
			},
		}, true, nil

	case "orderbook_delta":
		var m deltaMsg
		if err := json.Unmarshal(env.Msg, &m); err != nil {
			return domain.Event{}, false, fmt.Errorf("kalshi.mapEnvelope: delta: %w", err)
		}
		leg, err := mapLeg(m.Side)
		if err != nil {
			return domain.Event{}, false, err
		}
		return domain.Event{
			Type:   domain.EvDelta,
			Ticker: m.MarketTicker,
			Seq:    env.Seq,
			At:     now,
			Delta:  &domain.DeltaEvent{Leg: leg, Price: m.Price, Delta: m.Delta},
		}, true, nil

	case "ticker":
		var m tickerMsg
		if err := json.Unmarshal(env.Msg, &m); err != nil {
			return domain.Event{}, false, fmt.Errorf("kalshi.mapEnvelope: ticker: %w", err)
		}
		return domain.Event{Type: domain.EvTicker, Ticker: m.MarketTicker, At: now}, true, nil

	case "trade":
		var m tradeMsg
		if err := json.Unmarshal(env.Msg, &m); err != nil {
			return domain.Event{}, false, fmt.Errorf("kalshi.mapEnvelope: trade: %w", err)
		}
		taker, err := mapLeg(m.TakerSide)
		if err != nil {
			return domain.Event{}, false, err
		}
		return domain.Event{
			Type:   domain.EvTrade,
			Ticker: m.MarketTicker,
			At:     at(m.Ts, now),
			Trade: &domain.TradeEvent{
				TakerSide: taker,
				YesPrice:  m.YesPrice,
				NoPrice:   m.NoPrice,
				Count:     m.Count,
			},
		}, true, nil

	case "fill":
		var m fillMsg
		if err := json.Unmarshal(env.Msg, &m); err != nil {
			return domain.Event{}, false, fmt.Errorf("kalshi.mapEnvelope: fill: %w", err)
		}
		leg, err := mapLeg(m.Side)
		if err != nil {
			return domain.Event{}, false, err
		}
		return domain.Event{
			Type:   domain.EvFill,
			Ticker: m.MarketTicker,
			At:     at(m.Ts, now),
			Fill: &domain.FillEvent{
				Fill: domain.Fill{
					TradeID:    m.TradeID,
					Leg:        leg,
					Action:     m.Action,
					Count:      m.Count,
					PriceCents: m.Price,
					At:         at(m.Ts, now),
				},
				ClientOrderID: m.ClientOrderID,
				OrderID:       m.OrderID,
			},
		}, true, nil

	case "market_position":
		var m positionMsg
		if err := json.Unmarshal(env.Msg, &m); err != nil {
			return domain.Event{}, false, fmt.Errorf("kalshi.mapEnvelope: position: %w", err)
		}
		// Kalshi reporta una posición neta firmada: positivo = YES,
		// negativo = NO. Ambas legs viajan en el evento para que un cambio
		// de signo ponga en 0 la leg que se abandonó.
		pos := domain.PositionEvent{}
		if m.Position >= 0 {
			pos.Yes = m.Position
		} else {
			pos.No = -m.Position
		}
		return domain.Event{
			Type:     domain.EvPosition,
			Ticker:   m.MarketTicker,
			At:       now,
			Position: &pos,
		}, true, nil
	}

	return domain.Event{}, false, nil
}

func mapLevels(pairs [][2]int) []domain.PriceLevel {
	levels := make([]domain.PriceLevel, 0, len(pairs))
	for _, p := range pairs {
		levels = append(levels, domain.PriceLevel{Price: p[0], Size: p[1]})
	}
	return levels
}

func mapLeg(side string) (domain.Leg, error) {
	switch side {
	case "yes":
		return domain.LegYes, nil
	case "no":
		return domain.LegNo, nil
	}
	return "", fmt.Errorf("kalshi.mapLeg: side desconocido %q", side)
}

func at(tsSec int64, fallback time.Time) time.Time {
	if tsSec <= 0 {
		return fallback
	}
	return time.Unix(tsSec, 0).UTC()
}
