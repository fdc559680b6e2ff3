package kalshi

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alejandrodnm/kalshimaker/internal/domain"
	"github.com/alejandrodnm/kalshimaker/internal/ports"
)

const (
	defaultWSURL = "wss://api.elections.kalshi.com/trade-api/ws/v2"

	wsHandshakeTimeout = 10 * time.Second
	wsWriteTimeout     = 5 * time.Second
	wsPongTimeout      = 30 * time.Second

	reconnectBase = time.Second
	reconnectMax  = 60 * time.Second
)

// FeedConfig configura el feed WebSocket de un mercado.
type FeedConfig struct {
	URL     string
	Ticker  string
	Private bool // suscribe fill y market_position (requiere Signer)
}

// Feed implementa ports.FeedSource sobre el WebSocket de Kalshi. Reconecta
// con backoff exponencial; tras cada reconexión la resuscripción del canal
// de orderbook produce un snapshot fresco, así que el book siempre
// resincroniza solo.
type Feed struct {
	cfg    FeedConfig
	signer *Signer

	events chan domain.Event
	done   chan struct{}
	closed sync.Once

	mu     sync.Mutex // protege conn para escrituras concurrentes
	conn   *websocket.Conn
	nextID int
}

var _ ports.FeedSource = (*Feed)(nil)

// NewFeed crea el feed. signer puede ser nil si Private es false.
func NewFeed(cfg FeedConfig, signer *Signer) (*Feed, error) {
	if cfg.URL == "" {
		cfg.URL = defaultWSURL
	}
	if cfg.Ticker == "" {
		return nil, fmt.Errorf("kalshi.NewFeed: ticker vacío")
	}
	if cfg.Private && signer == nil {
		return nil, fmt.Errorf("kalshi.NewFeed: canales privados requieren credenciales")
	}
	return &Feed{
		cfg:    cfg,
		signer: signer,
		events: make(chan domain.Event, 256),
		done:   make(chan struct{}),
	}, nil
}

// Events devuelve el canal de eventos. Se cierra al terminar el feed.
func (f *Feed) Events() <-chan domain.Event { return f.events }

// Start arranca el loop de conexión en background.
func (f *Feed) Start(ctx context.Context) {
	go f.run(ctx)
}

// Close termina el feed y cierra el canal de eventos.
func (f *Feed) Close() error {
	f.closed.Do(func() { close(f.done) })
	return nil
}

// Resync repite la suscripción del canal de orderbook; Kalshi responde con
// un orderbook_snapshot nuevo por el mismo canal.
func (f *Feed) Resync(_ context.Context, ticker string) error {
	if ticker != f.cfg.Ticker {
		return fmt.Errorf("kalshi.Feed.Resync: ticker %q no suscrito", ticker)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conn == nil {
		return fmt.Errorf("kalshi.Feed.Resync: sin conexión: %w", domain.ErrAPITransport)
	}
	return f.writeCommand(f.conn, "subscribe", []string{"orderbook_delta"})
}

func (f *Feed) run(ctx context.Context) {
	defer close(f.events)

	for retry := 0; ; retry++ {
		select {
		case <-ctx.Done():
			return
		case <-f.done:
			return
		default:
		}

		conn, err := f.connect(ctx)
		if err != nil {
			wait := backoff(retry)
			slog.Warn("kalshi: conexión WS fallida",
				"ticker", f.cfg.Ticker, "retry", retry, "wait", wait, "err", err)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return
			case <-f.done:
				return
			}
			continue
		}

		retry = -1 // conexión sana resetea el backoff
		f.readLoop(ctx, conn)

		f.mu.Lock()
		f.conn = nil
		f.mu.Unlock()
		conn.Close()
	}
}

func (f *Feed) connect(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(f.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("kalshi.Feed: URL inválida: %w", err)
	}

	var header http.Header
	if f.signer != nil {
		header, err = f.signer.wsHeaders(u.Path)
		if err != nil {
			return nil, err
		}
	}

	dialer := websocket.Dialer{HandshakeTimeout: wsHandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, f.cfg.URL, header)
	if err != nil {
		return nil, fmt.Errorf("kalshi.Feed: dial: %w", err)
	}

	channels := []string{"orderbook_delta", "trade", "ticker"}
	if f.cfg.Private {
		channels = append(channels, "fill", "market_position")
	}

	f.mu.Lock()
	if err := f.writeCommand(conn, "subscribe", channels); err != nil {
		f.mu.Unlock()
		conn.Close()
		return nil, err
	}
	f.conn = conn
	f.mu.Unlock()

	slog.Info("kalshi: WS conectado", "ticker", f.cfg.Ticker, "channels", channels)
	return conn, nil
}

// writeCommand envía un comando por el WS. El caller debe sostener f.mu.
func (f *Feed) writeCommand(conn *websocket.Conn, cmd string, channels []string) error {
	f.nextID++
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	err := conn.WriteJSON(wsCommand{
		ID:  f.nextID,
		Cmd: cmd,
		Params: wsCommandParams{
			Channels:      channels,
			MarketTickers: []string{f.cfg.Ticker},
		},
	})
	if err != nil {
		return fmt.Errorf("kalshi.Feed: comando %s: %w", cmd, err)
	}
	return nil
}

func (f *Feed) readLoop(ctx context.Context, conn *websocket.Conn) {
	conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	})

	for {
		select {
		case <-ctx.Done():
			return
		case <-f.done:
			return
		default:
		}

		var env wsEnvelope
		if err := conn.ReadJSON(&env); err != nil {
			slog.Warn("kalshi: lectura WS fallida, reconectando",
				"ticker", f.cfg.Ticker, "err", err)
			return
		}
		conn.SetReadDeadline(time.Now().Add(wsPongTimeout))

		if env.Type == "error" {
			slog.Warn("kalshi: error del servidor WS", "msg", string(env.Msg))
			continue
		}

		ev, ok, err := mapEnvelope(env, time.Now().UTC())
		if err != nil {
			slog.Warn("kalshi: mensaje WS malformado", "type", env.Type, "err", err)
			continue
		}
		if !ok || ev.Ticker != f.cfg.Ticker {
			continue
		}

		select {
		case f.events <- ev:
		case <-ctx.Done():
			return
		case <-f.done:
			return
		}
	}
}

// backoff devuelve la espera exponencial para el intento n, con techo.
func backoff(retry int) time.Duration {
	if retry <= 0 {
		return reconnectBase
	}
	wait := time.Duration(math.Pow(2, float64(retry))) * reconnectBase
	if wait > reconnectMax {
		return reconnectMax
	}
	return wait
}
