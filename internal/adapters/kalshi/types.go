package kalshi

import "encoding/json"

// Mensajes del WebSocket de Kalshi (trade-api/ws/v2). Cada mensaje llega en
// un envelope {type, sid, seq, msg}; seq solo es contiguo dentro del canal
// de orderbook de cada mercado.

type wsEnvelope struct {
	Type string          `json:"type"`
	SID  int             `json:"sid,omitempty"`
	Seq  int64           `json:"seq,omitempty"`
	Msg  json.RawMessage `json:"msg,omitempty"`
}

type wsCommand struct {
	ID     int             `json:"id"`
	Cmd    string          `json:"cmd"`
	Params wsCommandParams `json:"params"`
}

type wsCommandParams struct {
	Channels      []string `json:"channels"`
	MarketTickers []string `json:"market_tickers,omitempty"`
}

// snapshotMsg reemplaza el book completo. Los niveles vienen como pares
// [precio_en_centavos, contratos].
type snapshotMsg struct {
	MarketTicker string   `json:"market_ticker"`
	Yes          [][2]int `json:"yes"`
	No           [][2]int `json:"no"`
}

type deltaMsg struct {
	MarketTicker string `json:"market_ticker"`
	Side         string `json:"side"`
	Price        int    `json:"price"`
	Delta        int    `json:"delta"`
}

type tickerMsg struct {
	MarketTicker string `json:"market_ticker"`
	Price        int    `json:"price"`
	YesBid       int    `json:"yes_bid"`
	YesAsk       int    `json:"yes_ask"`
	Volume       int    `json:"volume"`
}

type tradeMsg struct {
	MarketTicker string `json:"market_ticker"`
	TakerSide    string `json:"taker_side"`
	YesPrice     int    `json:"yes_price"`
	NoPrice      int    `json:"no_price"`
	Count        int    `json:"count"`
	Ts           int64  `json:"ts"`
}

type fillMsg struct {
	MarketTicker  string `json:"market_ticker"`
	TradeID       string `json:"trade_id"`
	OrderID       string `json:"order_id"`
	ClientOrderID string `json:"client_order_id"`
	Side          string `json:"side"`
	Action        string `json:"action"`
	Count         int    `json:"count"`
	Price         int    `json:"price"` // centavos
	Ts            int64  `json:"ts"`
}

type positionMsg struct {
	MarketTicker     string `json:"market_ticker"`
	Position         int    `json:"position"` // neto: positivo YES, negativo NO
	MarketExposureCC int64  `json:"market_exposure_cc"`
}

// Payloads REST de trade-api/v2.

type createOrderRequest struct {
	Ticker        string `json:"ticker"`
	ClientOrderID string `json:"client_order_id"`
	Side          string `json:"side"`
	Action        string `json:"action"`
	Type          string `json:"type"`
	Count         int    `json:"count"`
	YesPrice      int    `json:"yes_price,omitempty"`
	NoPrice       int    `json:"no_price,omitempty"`
	PostOnly      bool   `json:"post_only,omitempty"`
	ExpirationTs  int64  `json:"expiration_ts,omitempty"`
	OrderGroupID  string `json:"order_group_id,omitempty"`
}

type createOrderResponse struct {
	Order restOrder `json:"order"`
}

type restOrder struct {
	OrderID        string `json:"order_id"`
	ClientOrderID  string `json:"client_order_id"`
	Ticker         string `json:"ticker"`
	Side           string `json:"side"`
	Action         string `json:"action"`
	Status         string `json:"status"` // resting | canceled | executed
	YesPrice       int    `json:"yes_price"`
	NoPrice        int    `json:"no_price"`
	RemainingCount int    `json:"remaining_count"`
}

type ordersResponse struct {
	Orders []restOrder `json:"orders"`
	Cursor string      `json:"cursor"`
}
