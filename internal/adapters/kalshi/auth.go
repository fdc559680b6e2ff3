package kalshi

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"
)

// Signer firma requests con el esquema de Kalshi: RSA-PSS SHA-256 sobre
// "<timestamp_ms><METHOD><path>", en los headers KALSHI-ACCESS-*.
type Signer struct {
	keyID string
	key   *rsa.PrivateKey
}

// NewSigner carga la clave privada RSA desde un fichero PEM (PKCS#1 o
// PKCS#8).
func NewSigner(keyID, privateKeyPath string) (*Signer, error) {
	raw, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("kalshi.NewSigner: leyendo clave: %w", err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("kalshi.NewSigner: %s no contiene un bloque PEM", privateKeyPath)
	}

	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		parsed, err8 := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err8 != nil {
			return nil, fmt.Errorf("kalshi.NewSigner: parseando clave: %w", err8)
		}
		var ok bool
		if key, ok = parsed.(*rsa.PrivateKey); !ok {
			return nil, fmt.Errorf("kalshi.NewSigner: la clave no es RSA (%T)", parsed)
		}
	}

	return &Signer{keyID: keyID, key: key}, nil
}

// Sign devuelve la firma en base64 para el mensaje timestamp+method+path.
func (s *Signer) Sign(timestampMs int64, method, path string) (string, error) {
	msg := strconv.FormatInt(timestampMs, 10) + method + path
	digest := sha256.Sum256([]byte(msg))

	sig, err := rsa.SignPSS(rand.Reader, s.key, crypto.SHA256, digest[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
	})
	if err != nil {
		return "", fmt.Errorf("kalshi.Signer.Sign: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// Authorize añade los headers de autenticación al request. El path firmado
// no incluye query string.
func (s *Signer) Authorize(req *http.Request) error {
	ts := time.Now().UnixMilli()
	sig, err := s.Sign(ts, req.Method, req.URL.Path)
	if err != nil {
		return err
	}
	req.Header.Set("KALSHI-ACCESS-KEY", s.keyID)
	req.Header.Set("KALSHI-ACCESS-SIGNATURE", sig)
	req.Header.Set("KALSHI-ACCESS-TIMESTAMP", strconv.FormatInt(ts, 10))
	return nil
}

// wsHeaders construye los headers de autenticación para el handshake del
// WebSocket, que firma GET sobre el path del WS.
func (s *Signer) wsHeaders(path string) (http.Header, error) {
	ts := time.Now().UnixMilli()
	sig, err := s.Sign(ts, http.MethodGet, path)
	if err != nil {
		return nil, err
	}
	h := http.Header{}
	h.Set("KALSHI-ACCESS-KEY", s.keyID)
	h.Set("KALSHI-ACCESS-SIGNATURE", sig)
	h.Set("KALSHI-ACCESS-TIMESTAMP", strconv.FormatInt(ts, 10))
	return h, nil
}
