package ports

import (
	"context"

	"github.com/alejandrodnm/kalshimaker/internal/domain"
)

// FeedSource entrega el stream ordenado de mensajes de un mercado.
// El transporte (WebSocket, replay de fixtures) vive detrás de este port;
// el core solo consume eventos ya ordenados.
type FeedSource interface {
	// Events devuelve el canal de eventos del feed. El canal se cierra
	// cuando el feed termina definitivamente.
	Events() <-chan domain.Event

	// Resync pide un snapshot fresco del orderbook tras un gap de
	// secuencia. El snapshot llega como evento más por el canal.
	Resync(ctx context.Context, ticker string) error

	// Close cierra la conexión del feed limpiamente.
	Close() error
}
