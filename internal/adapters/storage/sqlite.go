package storage

// sqlite.go — journal de trading en SQLite.
//
// Estrategia:
//   - `intents`: UNA fila por client_order_id (UPSERT). Cada transición de
//     estado reescribe la fila; el journal guarda el estado final, no el
//     histórico de transiciones.
//   - `fills`: una fila por trade_id, INSERT OR IGNORE. El WS puede
//     reentregar fills tras una reconexión y el dedupe es en la clave.
//   - `cycles`: resumen ligero por recomputación, solo cuando el ciclo
//     produjo acciones — un ciclo sin cancels ni places no deja fila.
//   - Prune automático al arrancar: intents terminales y cycles > 30d.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alejandrodnm/kalshimaker/internal/domain"
	"github.com/alejandrodnm/kalshimaker/internal/ports"
	_ "modernc.org/sqlite"
)

const schema = `
-- Una fila por intent, estado final
CREATE TABLE IF NOT EXISTS intents (
    client_order_id TEXT PRIMARY KEY,
    order_id        TEXT,
    ticker          TEXT NOT NULL,
    strategy        TEXT NOT NULL,
    leg             TEXT NOT NULL,
    action          TEXT NOT NULL,
    price_cents     INTEGER NOT NULL,
    count           INTEGER NOT NULL,
    kind            TEXT NOT NULL,
    state           TEXT NOT NULL,
    created_at      DATETIME NOT NULL,
    updated_at      DATETIME NOT NULL
);

-- Una fila por ejecución, dedupe por trade_id
CREATE TABLE IF NOT EXISTS fills (
    trade_id    TEXT PRIMARY KEY,
    ticker      TEXT NOT NULL,
    leg         TEXT NOT NULL,
    action      TEXT NOT NULL,
    count       INTEGER NOT NULL,
    price_cents INTEGER NOT NULL,
    filled_at   DATETIME NOT NULL
);

-- Resumen por recomputación con acciones
CREATE TABLE IF NOT EXISTS cycles (
    id        INTEGER PRIMARY KEY AUTOINCREMENT,
    ticker    TEXT NOT NULL,
    at        DATETIME NOT NULL,
    mid_cents REAL NOT NULL DEFAULT 0,
    synced    INTEGER NOT NULL DEFAULT 0,
    dry_run   INTEGER NOT NULL DEFAULT 0,
    proposed  INTEGER NOT NULL DEFAULT 0,
    accepted  INTEGER NOT NULL DEFAULT 0,
    rejected  INTEGER NOT NULL DEFAULT 0,
    cancels   INTEGER NOT NULL DEFAULT 0,
    places    INTEGER NOT NULL DEFAULT 0,
    live      INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_intents_state ON intents(state);
CREATE INDEX IF NOT EXISTS idx_intents_upd   ON intents(updated_at DESC);
CREATE INDEX IF NOT EXISTS idx_fills_at      ON fills(filled_at DESC);
CREATE INDEX IF NOT EXISTS idx_cycles_at     ON cycles(at DESC);
`

const retention = 30 * 24 * time.Hour

// SQLiteStorage implementa ports.TradeStorage usando SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	db *sql.DB
}

var _ ports.TradeStorage = (*SQLiteStorage)(nil)

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada.
// Aplica el schema y limpia datos antiguos.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	s := &SQLiteStorage{db: db}
	s.pruneOld(context.Background())
	return s, nil
}

// SaveIntent hace upsert del intent por client order id con su estado
// actual. created_at se conserva en el upsert; updated_at siempre avanza.
func (s *SQLiteStorage) SaveIntent(ctx context.Context, q domain.QuoteIntent) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO intents
			(client_order_id, order_id, ticker, strategy, leg, action,
			 price_cents, count, kind, state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(client_order_id) DO UPDATE SET
			order_id   = excluded.order_id,
			count      = excluded.count,
			state      = excluded.state,
			updated_at = excluded.updated_at
	`,
		q.ID, q.OrderID, q.Ticker, q.Strategy, string(q.Leg), q.Action,
		q.PriceCents, q.Count, string(q.Kind), string(q.State),
		q.CreatedAt.UTC(), now,
	)
	if err != nil {
		return fmt.Errorf("storage.SaveIntent: upsert %s: %w", q.ID, err)
	}
	return nil
}

// SaveFill persiste un fill. Un trade_id repetido es un no-op: el WS
// reentrega fills tras reconexiones.
func (s *SQLiteStorage) SaveFill(ctx context.Context, ticker string, f domain.Fill) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO fills
			(trade_id, ticker, leg, action, count, price_cents, filled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		f.TradeID, ticker, string(f.Leg), f.Action, f.Count, f.PriceCents, f.At.UTC(),
	)
	if err != nil {
		return fmt.Errorf("storage.SaveFill: insert %s: %w", f.TradeID, err)
	}
	return nil
}

// SaveCycle persiste el resumen de una recomputación. Ciclos sin acciones
// ni rechazos no se guardan — son la gran mayoría y no aportan señal.
func (s *SQLiteStorage) SaveCycle(ctx context.Context, r domain.CycleReport) error {
	if len(r.Cancels) == 0 && len(r.Places) == 0 && len(r.Rejected) == 0 {
		return nil
	}

	synced, dryRun := 0, 0
	if r.Synced {
		synced = 1
	}
	if r.DryRun {
		dryRun = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cycles
			(ticker, at, mid_cents, synced, dry_run, proposed, accepted,
			 rejected, cancels, places, live)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.Ticker, r.At.UTC(), r.MidCents, synced, dryRun, r.Proposed, r.Accepted,
		len(r.Rejected), len(r.Cancels), len(r.Places), len(r.LiveAfter),
	)
	if err != nil {
		return fmt.Errorf("storage.SaveCycle: insert: %w", err)
	}
	return nil
}

// Fills devuelve los fills del ticker en el rango dado, más recientes
// primero.
func (s *SQLiteStorage) Fills(ctx context.Context, ticker string, from, to time.Time) ([]domain.Fill, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT trade_id, leg, action, count, price_cents, filled_at
		FROM fills
		WHERE ticker = ? AND filled_at BETWEEN ? AND ?
		ORDER BY filled_at DESC
	`, ticker, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("storage.Fills: query: %w", err)
	}
	defer rows.Close()

	var fills []domain.Fill
	for rows.Next() {
		var f domain.Fill
		var leg string
		if err := rows.Scan(&f.TradeID, &leg, &f.Action, &f.Count, &f.PriceCents, &f.At); err != nil {
			return nil, fmt.Errorf("storage.Fills: scan: %w", err)
		}
		f.Leg = domain.Leg(leg)
		fills = append(fills, f)
	}
	return fills, rows.Err()
}

// Close cierra la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// pruneOld borra intents terminales y ciclos más viejos que la retención.
// Best effort: un fallo aquí no impide arrancar.
func (s *SQLiteStorage) pruneOld(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-retention)
	s.db.ExecContext(ctx,
		`DELETE FROM intents WHERE updated_at < ? AND state IN ('FILLED', 'CANCELLED', 'EXPIRED')`,
		cutoff)
	s.db.ExecContext(ctx, `DELETE FROM cycles WHERE at < ?`, cutoff)
	s.db.ExecContext(ctx, `DELETE FROM fills WHERE filled_at < ?`, cutoff)
}
