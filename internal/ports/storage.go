package ports

import (
	"context"

	"github.com/alejandrodnm/kalshimaker/internal/domain"
)

// TradeStorage persiste el journal de intents, fills y ciclos.
type TradeStorage interface {
	// SaveIntent hace upsert del intent por client order id con su estado actual.
	SaveIntent(ctx context.Context, intent domain.QuoteIntent) error

	// SaveFill persiste un fill; un trade ID repetido es un no-op.
	SaveFill(ctx context.Context, ticker string, fill domain.Fill) error

	// SaveCycle persiste el resumen de una recomputación.
	SaveCycle(ctx context.Context, report domain.CycleReport) error

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}
