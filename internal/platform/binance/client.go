// Package binance implements the overseas exchange gateways on the Binance
// REST APIs: spot and capital endpoints on api.binance.com, USDT-margined
// futures on fapi.binance.com.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/minkyu-kim/kimpbot/internal/crypto"
	"github.com/minkyu-kim/kimpbot/internal/domain"
)

const (
	// DefaultSpotBaseURL is the production spot/capital API root.
	DefaultSpotBaseURL = "https://api.binance.com"
	// DefaultFuturesBaseURL is the production USDT-margined futures API root.
	DefaultFuturesBaseURL = "https://fapi.binance.com"

	// rateLimitKey throttles every REST call through one shared budget. The
	// exchange weighs endpoints differently but bans by IP, so one bucket
	// is the safe shape.
	rateLimitKey = "binance:rest"
)

// Client is the shared signed REST client for both the spot and futures
// gateways.
type Client struct {
	spotBaseURL    string
	futuresBaseURL string
	auth           *crypto.BinanceAuth
	limiter        domain.RateLimiter
	httpClient     *http.Client
}

// NewClient creates a Binance REST client. Empty base URLs use the
// production endpoints. limiter may be nil, in which case requests are not
// throttled locally.
func NewClient(spotBaseURL, futuresBaseURL, apiKey, secret string, limiter domain.RateLimiter) *Client {
	if spotBaseURL == "" {
		spotBaseURL = DefaultSpotBaseURL
	}
	if futuresBaseURL == "" {
		futuresBaseURL = DefaultFuturesBaseURL
	}
	return &Client{
		spotBaseURL:    spotBaseURL,
		futuresBaseURL: futuresBaseURL,
		auth:           &crypto.BinanceAuth{Key: apiKey, Secret: secret},
		limiter:        limiter,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// doPublic sends an unsigned GET request.
func (c *Client) doPublic(ctx context.Context, baseURL, path string, params url.Values) ([]byte, error) {
	fullURL := baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return c.send(ctx, req)
}

// doSigned sends a signed request. Binance accepts signed parameters in the
// query string for every method, so the body is always empty.
func (c *Client) doSigned(ctx context.Context, method, baseURL, path string, params url.Values) ([]byte, error) {
	signed := c.auth.SignQuery(params.Encode())
	req, err := http.NewRequestWithContext(ctx, method, baseURL+path+"?"+signed, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set(crypto.APIKeyHeader, c.auth.Key)
	return c.send(ctx, req)
}

func (c *Client) send(ctx context.Context, req *http.Request) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, rateLimitKey); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}

// checkStatus maps non-2xx HTTP status codes to errors. 429 and 418 carry
// ErrRateLimited so callers can back off instead of retrying blind.
func checkStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	var apiErr struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	_ = json.Unmarshal(body, &apiErr)

	switch statusCode {
	case http.StatusTooManyRequests, http.StatusTeapot:
		return fmt.Errorf("%w: %s (%d)", domain.ErrRateLimited, apiErr.Msg, apiErr.Code)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s (%d)", domain.ErrNotFound, apiErr.Msg, apiErr.Code)
	default:
		return fmt.Errorf("HTTP %d: %s (%d)", statusCode, apiErr.Msg, apiErr.Code)
	}
}

// nativeSpotSymbol converts "XRP/USDT" to the exchange form "XRPUSDT".
func nativeSpotSymbol(symbol string) string {
	return strings.ReplaceAll(symbol, "/", "")
}

// nativeFuturesSymbol converts "XRP/USDT:USDT" to "XRPUSDT".
func nativeFuturesSymbol(symbol string) string {
	symbol, _, _ = strings.Cut(symbol, ":")
	return strings.ReplaceAll(symbol, "/", "")
}
