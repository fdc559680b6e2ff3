package kalshi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/alejandrodnm/kalshimaker/internal/domain"
	"github.com/alejandrodnm/kalshimaker/internal/ports"
)

const (
	defaultRESTBase = "https://api.elections.kalshi.com/trade-api/v2"

	// Rate limits al 60% del tier básico documentado (10 req/s de
	// escritura, 20 de lectura).
	writeRatePerSec = 6
	readRatePerSec  = 12

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// Trader implementa ports.OrderExecutor sobre el REST de Kalshi con rate
// limiting y retries. Las colocaciones NO se reintentan: un retry ciego
// podría duplicar una orden cuyo resultado no llegó a verse; el sweep de
// órdenes abiertas resuelve esos casos.
type Trader struct {
	http         *http.Client
	base         string
	signer       *Signer
	writeLimiter *rate.Limiter
	readLimiter  *rate.Limiter

	// orderIDs mapea client_order_id → order_id del exchange, porque el
	// endpoint de cancelación es por order_id.
	mu       sync.Mutex
	orderIDs map[string]string
}

var _ ports.OrderExecutor = (*Trader)(nil)

// NewTrader crea el Trader. Si base está vacío usa el URL de producción.
func NewTrader(base string, signer *Signer) *Trader {
	if base == "" {
		base = defaultRESTBase
	}
	return &Trader{
		http:         &http.Client{Timeout: 10 * time.Second},
		base:         base,
		signer:       signer,
		writeLimiter: rate.NewLimiter(writeRatePerSec, 3),
		readLimiter:  rate.NewLimiter(readRatePerSec, 5),
		orderIDs:     make(map[string]string),
	}
}

// PlaceOrder coloca una orden limit post-only. Un error que envuelve
// ErrAPITransport significa resultado desconocido; cualquier otro error es
// un rechazo definitivo del exchange.
func (t *Trader) PlaceOrder(ctx context.Context, req domain.PlaceOrderRequest) (domain.PlacedOrder, error) {
	body := createOrderRequest{
		Ticker:        req.Ticker,
		ClientOrderID: req.ClientOrderID,
		Side:          string(req.Leg),
		Action:        req.Action,
		Type:          "limit",
		Count:         req.Count,
		PostOnly:      req.PostOnly,
		ExpirationTs:  req.ExpirationTs,
		OrderGroupID:  req.GroupID,
	}
	switch req.Leg {
	case domain.LegYes:
		body.YesPrice = req.PriceCents
	case domain.LegNo:
		body.NoPrice = req.PriceCents
	}

	if err := t.writeLimiter.Wait(ctx); err != nil {
		return domain.PlacedOrder{}, fmt.Errorf("kalshi.Trader.PlaceOrder: rate limiter: %w", err)
	}

	var resp createOrderResponse
	// Sin retries: ver el comentario del tipo.
	if err := t.do(ctx, http.MethodPost, "/portfolio/orders", body, &resp); err != nil {
		return domain.PlacedOrder{}, fmt.Errorf("kalshi.Trader.PlaceOrder: %w", err)
	}

	t.mu.Lock()
	t.orderIDs[req.ClientOrderID] = resp.Order.OrderID
	t.mu.Unlock()

	return domain.PlacedOrder{OrderID: resp.Order.OrderID, Status: resp.Order.Status}, nil
}

// CancelOrder cancela por client order id. Idempotente: si el exchange ya
// no conoce la orden (404) devuelve nil.
func (t *Trader) CancelOrder(ctx context.Context, _ string, clientOrderID string) error {
	t.mu.Lock()
	orderID, ok := t.orderIDs[clientOrderID]
	t.mu.Unlock()
	if !ok {
		// Nunca vimos el ack de esta orden: no hay order_id que cancelar.
		// El sweep de órdenes abiertas la resuelve si existe de verdad.
		return nil
	}

	if err := t.writeLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("kalshi.Trader.CancelOrder: rate limiter: %w", err)
	}

	err := t.doWithRetry(ctx, http.MethodDelete, "/portfolio/orders/"+orderID, nil, nil)
	if err == nil || isNotFound(err) {
		t.mu.Lock()
		delete(t.orderIDs, clientOrderID)
		t.mu.Unlock()
		return nil
	}
	return fmt.Errorf("kalshi.Trader.CancelOrder: %w", err)
}

// OpenOrders devuelve las órdenes resting del ticker, paginando el cursor.
func (t *Trader) OpenOrders(ctx context.Context, ticker string) ([]domain.OpenOrder, error) {
	var open []domain.OpenOrder
	cursor := ""
	for {
		if err := t.readLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("kalshi.Trader.OpenOrders: rate limiter: %w", err)
		}

		path := "/portfolio/orders?status=resting&ticker=" + ticker
		if cursor != "" {
			path += "&cursor=" + cursor
		}
		var resp ordersResponse
		if err := t.doWithRetry(ctx, http.MethodGet, path, nil, &resp); err != nil {
			return nil, fmt.Errorf("kalshi.Trader.OpenOrders: %w", err)
		}

		for _, o := range resp.Orders {
			leg, err := mapLeg(o.Side)
			if err != nil {
				continue
			}
			price := o.YesPrice
			if leg == domain.LegNo {
				price = o.NoPrice
			}
			open = append(open, domain.OpenOrder{
				OrderID:       o.OrderID,
				ClientOrderID: o.ClientOrderID,
				Ticker:        o.Ticker,
				Leg:           leg,
				PriceCents:    price,
				Remaining:     o.RemainingCount,
			})
		}

		if resp.Cursor == "" {
			return open, nil
		}
		cursor = resp.Cursor
	}
}

// do ejecuta un request autenticado una sola vez.
func (t *Trader) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.base+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if err := t.signer.Authorize(req); err != nil {
		return err
	}

	resp, err := t.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrAPITransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: server error %d", domain.ErrAPITransport, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(resp.Body)
		return &apiError{status: resp.StatusCode, body: string(msg)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// doWithRetry reintenta errores de transporte y 429 con backoff
// exponencial. Solo para operaciones idempotentes.
func (t *Trader) doWithRetry(ctx context.Context, method, path string, body, out any) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			wait := time.Duration(math.Pow(2, float64(attempt-1))) * baseRetryWait
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = t.do(ctx, method, path, body, out)
		if lastErr == nil {
			return nil
		}
		var apiErr *apiError
		if errors.As(lastErr, &apiErr) && apiErr.status != http.StatusTooManyRequests {
			return lastErr // definitivo, no reintentar
		}
	}
	return fmt.Errorf("tras %d retries: %w", maxRetries, lastErr)
}

// apiError es una respuesta 4xx definitiva del exchange.
type apiError struct {
	status int
	body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("kalshi: %d: %s", e.status, e.body)
}

func (e *apiError) Unwrap() error { return domain.ErrOrderRejected }

func isNotFound(err error) bool {
	var ae *apiError
	return errors.As(err, &ae) && ae.status == http.StatusNotFound
}
