package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/kalshimaker/internal/domain"
	"github.com/alejandrodnm/kalshimaker/internal/ports"
)

// Console implementa ports.Notifier sobre stdout. En modo tabla imprime el
// rationale completo del ciclo (targets, rechazos con su check, skips);
// en modo compacto una línea por ciclo con acciones. Los ciclos sin
// acciones ni rechazos no imprimen nada en ninguno de los dos modos.
type Console struct {
	out       io.Writer
	table     bool
	rationale bool
}

var _ ports.Notifier = (*Console)(nil)

// NewConsole crea un notificador que escribe a stdout.
func NewConsole(table, rationale bool) *Console {
	return &Console{out: os.Stdout, table: table, rationale: rationale}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer, table, rationale bool) *Console {
	return &Console{out: w, table: table, rationale: rationale}
}

// NotifyCycle imprime el resultado de una recomputación.
func (c *Console) NotifyCycle(_ context.Context, r domain.CycleReport) error {
	if len(r.Cancels) == 0 && len(r.Places) == 0 && len(r.Rejected) == 0 {
		return nil
	}

	if c.table {
		c.printFull(r)
	} else {
		c.printCompact(r)
	}
	return nil
}

// printCompact imprime lo esencial en una línea.
func (c *Console) printCompact(r domain.CycleReport) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s mid=%.1f¢", r.At.Format("15:04:05"), r.Ticker, r.MidCents)
	if !r.Synced {
		sb.WriteString(" UNSYNCED")
	}
	if r.DryRun {
		sb.WriteString(" dry")
	}
	fmt.Fprintf(&sb, " | prop:%d acc:%d rej:%d → cancel:%d place:%d live:%d",
		r.Proposed, r.Accepted, len(r.Rejected), len(r.Cancels), len(r.Places), len(r.LiveAfter))
	fmt.Fprintf(&sb, " | inv Y:%d N:%d",
		r.Inventory[domain.LegYes], r.Inventory[domain.LegNo])

	fmt.Fprintln(c.out, sb.String())
}

// printFull imprime las tablas de acciones y el rationale de rechazos.
func (c *Console) printFull(r domain.CycleReport) {
	mode := "LIVE"
	if r.DryRun {
		mode = "DRY-RUN"
	}
	fmt.Fprintf(c.out, "\n[%s] %s %s mid=%.1f¢ — inv Y:%d N:%d\n",
		r.At.Format("15:04:05"), mode, r.Ticker, r.MidCents,
		r.Inventory[domain.LegYes], r.Inventory[domain.LegNo])
	if !r.Synced {
		fmt.Fprintln(c.out, "  book UNSYNCED — sin propuestas, esperando snapshot")
	}

	if len(r.Cancels) > 0 || len(r.Places) > 0 {
		table := tablewriter.NewWriter(c.out)
		table.Header("Action", "Strategy", "Leg", "Side", "Price", "Count", "State")
		for _, q := range r.Cancels {
			table.Append("CANCEL", q.Strategy, string(q.Leg), q.Action,
				fmt.Sprintf("%d¢", q.PriceCents), fmt.Sprintf("%d", q.Count), string(q.State))
		}
		for _, q := range r.Places {
			table.Append("PLACE", q.Strategy, string(q.Leg), q.Action,
				fmt.Sprintf("%d¢", q.PriceCents), fmt.Sprintf("%d", q.Count), string(q.State))
		}
		table.Render()
	}

	if c.rationale {
		c.printRationale(r)
	}

	fmt.Fprintf(c.out, "  live tras el ciclo: %d quotes\n", len(r.LiveAfter))
}

// printRationale imprime por qué no salió cada intent descartado, y los
// skips de las estrategias que no propusieron nada.
func (c *Console) printRationale(r domain.CycleReport) {
	if len(r.Rejected) > 0 {
		table := tablewriter.NewWriter(c.out)
		table.Header("Strategy", "Leg", "Price", "Count", "Rejected by")
		for _, rej := range r.Rejected {
			table.Append(rej.Intent.Strategy, string(rej.Intent.Leg),
				fmt.Sprintf("%d¢", rej.Intent.PriceCents),
				fmt.Sprintf("%d", rej.Intent.Count), rej.Reason)
		}
		table.Render()
	}

	for _, skip := range r.Skips {
		fmt.Fprintf(c.out, "  skip: %s\n", skip)
	}
}

// PrintSessionSummary imprime el cierre de sesión al apagar.
func (c *Console) PrintSessionSummary(ticker string, fills []domain.Fill, realized map[domain.Leg]float64) {
	fmt.Fprintf(c.out, "\n[%s] sesión %s cerrada — %d fills\n",
		time.Now().Format("15:04:05"), ticker, len(fills))
	for _, leg := range domain.Legs {
		fmt.Fprintf(c.out, "  %s realized PnL: $%.2f\n", leg, realized[leg])
	}
}
