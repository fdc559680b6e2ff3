package domain

import "errors"

// Errores del dominio. Se comparan con errors.Is tras el wrapping habitual.
var (
	// ErrSequenceGap indica que un delta llegó con seq != sequence+1.
	// El book queda marcado como no sincronizado hasta el próximo snapshot.
	ErrSequenceGap = errors.New("orderbook: sequence gap")

	// ErrNegativeSize indica que un delta habría dejado un nivel por debajo
	// de cero. Es corrupción del feed: el book queda no sincronizado.
	ErrNegativeSize = errors.New("orderbook: level size below zero")

	// ErrBookUnsynced indica que el book no tiene un snapshot válido.
	ErrBookUnsynced = errors.New("orderbook: not synced")

	// ErrNoQuote indica que falta un lado del book para la query pedida.
	ErrNoQuote = errors.New("orderbook: no quote on requested side")

	// ErrCrossingPrice indica que un intent cruzaría el mejor precio opuesto.
	ErrCrossingPrice = errors.New("intent: price crosses opposing best quote")

	// ErrOrderRejected indica un rechazo del exchange al colocar la orden.
	ErrOrderRejected = errors.New("order: rejected by exchange")

	// ErrAPITransport indica un fallo de transporte hablando con el exchange.
	ErrAPITransport = errors.New("api: transport error")
)
