package domain

import "time"

// Fill es una ejecución privada confirmada por el exchange.
// Solo se usa para el precio de referencia de salida y para logging:
// el inventario sale siempre de los position updates, nunca de los fills
// (evita drift por fills parciales que el engine no llegó a observar).
type Fill struct {
	TradeID    string
	Leg        Leg
	Action     string // "buy" | "sell"
	Count      int
	PriceCents int
	At         time.Time
}

// Lean indica hacia dónde empujó el flujo agresor reciente en una leg.
type Lean int

const (
	LeanNone Lean = iota
	LeanUp        // el taker compró esta leg
	LeanDown      // el taker vendió contra esta leg
)

// Ledger mantiene el inventario neto por leg y el historial básico de
// fills del stream privado. Un solo writer: el event loop del mercado.
type Ledger struct {
	net        map[Leg]int
	seenTrades map[string]struct{}
	// Media ponderada del precio de entrada por leg, solo de fills de compra.
	entryCostCents map[Leg]int
	entryContracts map[Leg]int
	realizedPnl    map[Leg]float64
}

// NewLedger crea un ledger vacío.
func NewLedger() *Ledger {
	return &Ledger{
		net:            map[Leg]int{},
		seenTrades:     map[string]struct{}{},
		entryCostCents: map[Leg]int{},
		entryContracts: map[Leg]int{},
		realizedPnl:    map[Leg]float64{},
	}
}

// ApplyPositionUpdate fija el inventario neto de la leg.
// Idempotente, last-write-wins: el stream de posiciones es autoritativo.
func (l *Ledger) ApplyPositionUpdate(leg Leg, netContracts int) {
	l.net[leg] = netContracts
	if netContracts == 0 {
		// Posición cerrada: el precio de entrada deja de ser significativo.
		l.entryCostCents[leg] = 0
		l.entryContracts[leg] = 0
	}
}

// ApplyFill registra un fill deduplicado por trade ID.
// Devuelve false si el fill ya se había visto (entrega duplicada → no-op).
func (l *Ledger) ApplyFill(f Fill) bool {
	if f.TradeID == "" || f.Count <= 0 {
		return false
	}
	if _, dup := l.seenTrades[f.TradeID]; dup {
		return false
	}
	l.seenTrades[f.TradeID] = struct{}{}

	switch f.Action {
	case "buy":
		l.entryCostCents[f.Leg] += f.PriceCents * f.Count
		l.entryContracts[f.Leg] += f.Count
	case "sell":
		// PnL realizado contra la media de entrada si la conocemos.
		if avg, ok := l.entryAvg(f.Leg); ok {
			l.realizedPnl[f.Leg] += float64((f.PriceCents-avg)*f.Count) / 100
		}
	}
	return true
}

// Inventory devuelve el inventario neto de la leg.
func (l *Ledger) Inventory(leg Leg) int { return l.net[leg] }

// RealizedPnl devuelve el PnL realizado acumulado de la leg en dólares.
func (l *Ledger) RealizedPnl(leg Leg) float64 { return l.realizedPnl[leg] }

// EntryReference devuelve la media ponderada del precio de entrada de la leg.
// ok es false si no hay fills de compra registrados.
func (l *Ledger) EntryReference(leg Leg) (cents int, ok bool) {
	return l.entryAvg(leg)
}

func (l *Ledger) entryAvg(leg Leg) (int, bool) {
	contracts := l.entryContracts[leg]
	if contracts <= 0 {
		return 0, false
	}
	return l.entryCostCents[leg] / contracts, true
}

// Snapshot devuelve la foto inmutable de posiciones para una recomputación.
func (l *Ledger) Snapshot() PositionView {
	v := PositionView{
		Inventory: map[Leg]int{},
		EntryRef:  map[Leg]int{},
	}
	for _, leg := range Legs {
		v.Inventory[leg] = l.net[leg]
		if avg, ok := l.entryAvg(leg); ok {
			v.EntryRef[leg] = avg
		}
	}
	return v
}

// PositionView es la vista congelada de posiciones que reciben las
// estrategias. EntryRef vale 0 cuando no hay fills de entrada registrados.
type PositionView struct {
	Inventory map[Leg]int
	EntryRef  map[Leg]int
	Lean      map[Leg]Lean
}

// InventoryRoom devuelve cuántos contratos más se pueden acumular en la
// leg antes de alcanzar el cap.
func (v PositionView) InventoryRoom(leg Leg, maxInventory int) int {
	room := maxInventory - v.Inventory[leg]
	if room < 0 {
		return 0
	}
	return room
}
