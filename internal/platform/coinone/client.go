// Package coinone implements the domestic KRW exchange gateway on the
// Coinone v2 public and v2.1 private REST APIs, plus the public WebSocket
// ticker stream.
package coinone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/minkyu-kim/kimpbot/internal/crypto"
	"github.com/minkyu-kim/kimpbot/internal/domain"
)

const (
	// DefaultBaseURL is the production REST API root.
	DefaultBaseURL = "https://api.coinone.co.kr"
	// DefaultWSURL is the production public stream endpoint.
	DefaultWSURL = "wss://stream.coinone.co.kr"

	rateLimitKey = "coinone:rest"
)

// Client is the signed REST client for the Coinone API. Private endpoints
// take a JSON body carrying the access token and a fresh UUID nonce; the
// body travels base64 encoded in a header next to its HMAC-SHA512 signature.
type Client struct {
	baseURL    string
	auth       *crypto.CoinoneAuth
	limiter    domain.RateLimiter
	httpClient *http.Client
}

// NewClient creates a Coinone REST client. An empty baseURL uses the
// production endpoint. limiter may be nil.
func NewClient(baseURL, accessToken, secret string, limiter domain.RateLimiter) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		auth:    &crypto.CoinoneAuth{AccessToken: accessToken, Secret: secret},
		limiter: limiter,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// doPublic sends an unsigned GET request.
func (c *Client) doPublic(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return c.send(ctx, req)
}

// doPrivate sends a signed POST request. params must not contain the
// access_token or nonce keys; they are injected here.
func (c *Client) doPrivate(ctx context.Context, path string, params map[string]any) ([]byte, error) {
	body := make(map[string]any, len(params)+2)
	for k, v := range params {
		body[k] = v
	}
	body["access_token"] = c.auth.AccessToken
	body["nonce"] = uuid.NewString()

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.auth.Headers(jsonBody) {
		req.Header.Set(k, v)
	}
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

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: HTTP 429", domain.ErrRateLimited)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	// Coinone reports API-level failures inside a 200 response.
	var envelope struct {
		Result    string `json:"result"`
		ErrorCode string `json:"error_code"`
		ErrorMsg  string `json:"error_msg"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Result == "error" {
		return nil, fmt.Errorf("API error %s: %s", envelope.ErrorCode, envelope.ErrorMsg)
	}
	return body, nil
}
