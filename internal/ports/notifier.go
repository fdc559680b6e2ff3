package ports

import (
	"context"

	"github.com/alejandrodnm/kalshimaker/internal/domain"
)

// Notifier presenta al usuario lo que decidió cada ciclo.
type Notifier interface {
	// NotifyCycle muestra el resultado de una recomputación. En dry-run
	// la implementación de consola imprime el rationale completo
	// (targets, checks pasados y fallados) en una tabla.
	NotifyCycle(ctx context.Context, report domain.CycleReport) error
}
