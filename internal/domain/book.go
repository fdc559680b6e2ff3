package domain

import (
	"fmt"
	"sort"
)

// Leg es uno de los dos lados de un contrato binario.
type Leg string

const (
	LegYes Leg = "yes"
	LegNo  Leg = "no"
)

// Legs lista ambas legs en orden estable.
var Legs = [2]Leg{LegYes, LegNo}

// Opposite devuelve la leg complementaria.
func (l Leg) Opposite() Leg {
	if l == LegYes {
		return LegNo
	}
	return LegYes
}

// PriceLevel es un nivel de precio en el ladder de una leg.
// Price en cents (1..99), Size en contratos.
type PriceLevel struct {
	Price int
	Size  int
}

// Book reconstruye el ladder YES/NO de un mercado a partir de
// snapshots y deltas del feed. Cada ladder contiene bids de su leg;
// el ask se deriva de la leg complementaria (ask = 100 − best bid opuesto),
// que es como Kalshi representa el libro.
//
// Un solo writer: el event loop del mercado. Las estrategias leen
// únicamente a través de Snapshot().
type Book struct {
	ticker  string
	ladders map[Leg]map[int]int // price → size; size 0 no se almacena
	seq     int64
	synced  bool
}

// NewBook crea un book vacío y no sincronizado para el ticker dado.
func NewBook(ticker string) *Book {
	return &Book{
		ticker: ticker,
		ladders: map[Leg]map[int]int{
			LegYes: {},
			LegNo:  {},
		},
	}
}

// Ticker devuelve el mercado al que pertenece el book.
func (b *Book) Ticker() string { return b.ticker }

// Sequence devuelve el último número de secuencia aplicado.
func (b *Book) Sequence() int64 { return b.seq }

// Synced devuelve true si el book tiene un snapshot válido sin gaps.
func (b *Book) Synced() bool { return b.synced }

// ApplySnapshot reemplaza ambos ladders y fija sequence = seq.
// Siempre tiene éxito: es el mecanismo de (re)sincronización.
func (b *Book) ApplySnapshot(yes, no []PriceLevel, seq int64) {
	b.ladders[LegYes] = ladderFrom(yes)
	b.ladders[LegNo] = ladderFrom(no)
	b.seq = seq
	b.synced = true
}

// ApplyDelta aplica un cambio incremental a un nivel.
// Falla con ErrSequenceGap si seq no es exactamente sequence+1 y con
// ErrNegativeSize si el delta dejaría el nivel por debajo de cero.
// En ambos casos el book queda no sincronizado y sin aplicación parcial:
// el caller debe pedir un snapshot nuevo.
func (b *Book) ApplyDelta(leg Leg, price, delta int, seq int64) error {
	if !b.synced {
		return fmt.Errorf("book %s: delta before snapshot: %w", b.ticker, ErrBookUnsynced)
	}
	if seq != b.seq+1 {
		b.synced = false
		return fmt.Errorf("book %s: got seq %d, expected %d: %w", b.ticker, seq, b.seq+1, ErrSequenceGap)
	}

	ladder := b.ladders[leg]
	next := ladder[price] + delta
	if next < 0 {
		b.synced = false
		return fmt.Errorf("book %s: %s %d¢ would go to %d: %w", b.ticker, leg, price, next, ErrNegativeSize)
	}
	if next == 0 {
		delete(ladder, price)
	} else {
		ladder[price] = next
	}
	b.seq = seq
	return nil
}

// Snapshot devuelve una copia inmutable del book para una recomputación.
// Falla con ErrBookUnsynced si no hay snapshot válido: sin book no se cotiza.
func (b *Book) Snapshot() (BookView, error) {
	if !b.synced {
		return BookView{}, fmt.Errorf("book %s: %w", b.ticker, ErrBookUnsynced)
	}
	return BookView{
		yes: copyLadder(b.ladders[LegYes]),
		no:  copyLadder(b.ladders[LegNo]),
	}, nil
}

// BestBid devuelve el bid más alto de la leg.
func (b *Book) BestBid(leg Leg) (PriceLevel, error) {
	v, err := b.Snapshot()
	if err != nil {
		return PriceLevel{}, err
	}
	return v.BestBid(leg)
}

// BestAsk devuelve el ask derivado de la leg (100 − best bid opuesto).
func (b *Book) BestAsk(leg Leg) (PriceLevel, error) {
	v, err := b.Snapshot()
	if err != nil {
		return PriceLevel{}, err
	}
	return v.BestAsk(leg)
}

// Spread devuelve ask − bid de la leg en ticks.
func (b *Book) Spread(leg Leg) (int, error) {
	v, err := b.Snapshot()
	if err != nil {
		return 0, err
	}
	return v.Spread(leg)
}

// TopN devuelve los n mejores niveles de bid de la leg, de mayor a menor.
func (b *Book) TopN(leg Leg, n int) ([]PriceLevel, error) {
	v, err := b.Snapshot()
	if err != nil {
		return nil, err
	}
	return v.TopN(leg, n)
}

// BookView es la vista congelada del book que reciben las estrategias.
// Válida solo dentro de la recomputación que la creó.
type BookView struct {
	yes map[int]int
	no  map[int]int
}

// NewBookView construye una vista directamente desde niveles.
// Pensada para fixtures de tests; en producción la vista sale de Book.Snapshot.
func NewBookView(yes, no []PriceLevel) BookView {
	return BookView{yes: ladderFrom(yes), no: ladderFrom(no)}
}

func (v BookView) ladder(leg Leg) map[int]int {
	if leg == LegYes {
		return v.yes
	}
	return v.no
}

// BestBid devuelve el bid más alto de la leg.
// Falla con ErrNoQuote si el ladder está vacío.
func (v BookView) BestBid(leg Leg) (PriceLevel, error) {
	ladder := v.ladder(leg)
	if len(ladder) == 0 {
		return PriceLevel{}, fmt.Errorf("best bid %s: %w", leg, ErrNoQuote)
	}
	best := PriceLevel{Price: -1}
	for price, size := range ladder {
		if price > best.Price {
			best = PriceLevel{Price: price, Size: size}
		}
	}
	return best, nil
}

// BestAsk deriva el ask de la leg del mejor bid de la leg opuesta:
// un bid NO a p equivale a un ask YES a 100−p. El size es el del bid opuesto.
func (v BookView) BestAsk(leg Leg) (PriceLevel, error) {
	opp, err := v.BestBid(leg.Opposite())
	if err != nil {
		return PriceLevel{}, fmt.Errorf("best ask %s: %w", leg, ErrNoQuote)
	}
	price := 100 - opp.Price
	if price < 0 {
		price = 0
	}
	return PriceLevel{Price: price, Size: opp.Size}, nil
}

// Spread devuelve ask − bid de la leg en ticks.
// Falla con ErrNoQuote si falta cualquiera de los dos lados.
func (v BookView) Spread(leg Leg) (int, error) {
	bid, err := v.BestBid(leg)
	if err != nil {
		return 0, err
	}
	ask, err := v.BestAsk(leg)
	if err != nil {
		return 0, err
	}
	return ask.Price - bid.Price, nil
}

// MidCents devuelve el punto medio bid/ask de la leg.
func (v BookView) MidCents(leg Leg) (float64, error) {
	bid, err := v.BestBid(leg)
	if err != nil {
		return 0, err
	}
	ask, err := v.BestAsk(leg)
	if err != nil {
		return 0, err
	}
	return float64(bid.Price+ask.Price) / 2, nil
}

// TopN devuelve hasta n niveles de bid de la leg, de mayor a menor precio.
func (v BookView) TopN(leg Leg, n int) ([]PriceLevel, error) {
	ladder := v.ladder(leg)
	if len(ladder) == 0 {
		return nil, fmt.Errorf("top %d %s: %w", n, leg, ErrNoQuote)
	}
	levels := make([]PriceLevel, 0, len(ladder))
	for price, size := range ladder {
		levels = append(levels, PriceLevel{Price: price, Size: size})
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i].Price > levels[j].Price })
	if n > 0 && n < len(levels) {
		levels = levels[:n]
	}
	return levels, nil
}

// TotalSize devuelve la suma de contratos de todos los niveles de la leg.
func (v BookView) TotalSize(leg Leg) int {
	total := 0
	for _, size := range v.ladder(leg) {
		total += size
	}
	return total
}

func ladderFrom(levels []PriceLevel) map[int]int {
	ladder := make(map[int]int, len(levels))
	for _, lv := range levels {
		if lv.Size > 0 {
			ladder[lv.Price] = lv.Size
		}
	}
	return ladder
}

func copyLadder(src map[int]int) map[int]int {
	dst := make(map[int]int, len(src))
	for price, size := range src {
		dst[price] = size
	}
	return dst
}
