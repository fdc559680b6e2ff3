package ports

import (
	"context"

	"github.com/alejandrodnm/kalshimaker/internal/domain"
)

// OrderExecutor coloca y cancela órdenes reales en el exchange.
// El engine usa la misma ruta de decisión en dry-run y en live: solo cambia
// la implementación de este port en el borde de la API.
type OrderExecutor interface {
	// PlaceOrder envía una orden limit post-only. No es idempotente: el
	// diff del Reconciler es el responsable de no duplicar envíos.
	PlaceOrder(ctx context.Context, req domain.PlaceOrderRequest) (domain.PlacedOrder, error)

	// CancelOrder cancela por client order id. Idempotente: cancelar una
	// orden ya ausente devuelve nil.
	CancelOrder(ctx context.Context, ticker, clientOrderID string) error

	// OpenOrders devuelve las órdenes restantes en el exchange para el
	// ticker, incluidas las ajenas a este proceso.
	OpenOrders(ctx context.Context, ticker string) ([]domain.OpenOrder, error)
}
