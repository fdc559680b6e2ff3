// Package paper implementa el executor de dry-run: acepta todas las
// órdenes sin tocar el exchange y responde como si quedaran resting.
// El engine recorre exactamente la misma ruta de decisión que en live;
// solo cambia este borde.
package paper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alejandrodnm/kalshimaker/internal/domain"
	"github.com/alejandrodnm/kalshimaker/internal/ports"
)

// Executor simula el exchange para dry-run.
type Executor struct {
	mu     sync.Mutex
	nextID int
	open   map[string]domain.OpenOrder // por client order id
}

var _ ports.OrderExecutor = (*Executor)(nil)

// New crea un Executor vacío.
func New() *Executor {
	return &Executor{open: make(map[string]domain.OpenOrder)}
}

// PlaceOrder registra la orden como resting y devuelve un order id
// sintético.
func (e *Executor) PlaceOrder(_ context.Context, req domain.PlaceOrderRequest) (domain.PlacedOrder, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	orderID := fmt.Sprintf("paper-%06d", e.nextID)
	e.open[req.ClientOrderID] = domain.OpenOrder{
		OrderID:       orderID,
		ClientOrderID: req.ClientOrderID,
		Ticker:        req.Ticker,
		Leg:           req.Leg,
		PriceCents:    req.PriceCents,
		Remaining:     req.Count,
	}

	slog.Debug("paper: orden colocada",
		"ticker", req.Ticker,
		"leg", req.Leg,
		"action", req.Action,
		"price", req.PriceCents,
		"count", req.Count,
		"client_id", req.ClientOrderID,
	)
	return domain.PlacedOrder{OrderID: orderID, Status: "resting"}, nil
}

// CancelOrder elimina la orden simulada. Cancelar una orden desconocida es
// un no-op, igual que la cancelación idempotente del exchange real.
func (e *Executor) CancelOrder(_ context.Context, ticker, clientOrderID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.open[clientOrderID]; ok {
		delete(e.open, clientOrderID)
		slog.Debug("paper: orden cancelada", "ticker", ticker, "client_id", clientOrderID)
	}
	return nil
}

// OpenOrders devuelve las órdenes simuladas que siguen resting.
func (e *Executor) OpenOrders(_ context.Context, ticker string) ([]domain.OpenOrder, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []domain.OpenOrder
	for _, o := range e.open {
		if o.Ticker == ticker {
			out = append(out, o)
		}
	}
	return out, nil
}
