package domain

import "time"

// EventType identifica el tipo de mensaje dentro del stream ordenado.
type EventType string

const (
	EvSnapshot  EventType = "orderbook_snapshot"
	EvDelta     EventType = "orderbook_delta"
	EvTicker    EventType = "ticker"
	EvTrade     EventType = "trade"
	EvFill      EventType = "fill"
	EvPosition  EventType = "market_position"
	EvTick      EventType = "tick"       // tick periódico del TTL, mezclado en el mismo orden
	EvOrderAck  EventType = "order_ack"  // confirmación de colocación
	EvOrderNack EventType = "order_nack" // rechazo del exchange
	EvCancelAck EventType = "cancel_ack"
)

// Event es un mensaje del stream causal único de un mercado. Todos los
// eventos de un mercado se aplican en orden en exactamente un worker.
type Event struct {
	Type   EventType
	Ticker string
	Seq    int64 // secuencia del canal de orderbook; 0 para el resto
	At     time.Time

	Snapshot *SnapshotEvent
	Delta    *DeltaEvent
	Trade    *TradeEvent
	Fill     *FillEvent
	Position *PositionEvent
	Order    *OrderEvent
}

// FillEvent es una ejecución privada con la referencia a la orden que la
// produjo, para cerrar el ciclo de vida del intent correspondiente.
type FillEvent struct {
	Fill
	ClientOrderID string
	OrderID       string
}

// SnapshotEvent reemplaza el estado completo del book.
type SnapshotEvent struct {
	Yes []PriceLevel
	No  []PriceLevel
}

// DeltaEvent es un cambio incremental sobre un nivel del book.
type DeltaEvent struct {
	Leg   Leg
	Price int
	Delta int
}

// TradeEvent es una ejecución pública de la cinta.
type TradeEvent struct {
	TakerSide Leg
	YesPrice  int
	NoPrice   int
	Count     int
}

// PositionEvent es la posición neta autoritativa del mercado, ya separada
// por leg. La leg sin posición llega en 0, así un cambio de signo limpia la
// leg contraria en vez de dejarla con inventario fantasma.
type PositionEvent struct {
	Yes int
	No  int
}

// OrderEvent lleva acks/nacks de colocación y cancelación de vuelta al
// stream ordenado: el estado de un intent solo muta al observarlos.
type OrderEvent struct {
	ClientOrderID string
	OrderID       string
	Reason        string // motivo del rechazo, si lo hay
}
