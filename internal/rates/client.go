// Package rates provides the USD/KRW exchange rate used to compare domestic
// and overseas quote prices.
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultQuoteURL is the public forex quotation endpoint serving the
// KRW/USD base price.
const DefaultQuoteURL = "https://quotation-api-cdn.dunamu.com/v1/forex/recent?codes=FRX.KRWUSD"

// Client fetches the current USD/KRW rate from a forex quotation API.
type Client struct {
	quoteURL   string
	httpClient *http.Client
}

// NewClient creates a forex quotation client. An empty quoteURL uses
// DefaultQuoteURL.
func NewClient(quoteURL string) *Client {
	if quoteURL == "" {
		quoteURL = DefaultQuoteURL
	}
	return &Client{
		quoteURL: quoteURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// FetchRate returns the current KRW price of one USD.
func (c *Client) FetchRate(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.quoteURL, nil)
	if err != nil {
		return 0, fmt.Errorf("rates: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("rates: http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("rates: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("rates: HTTP %d: %s", resp.StatusCode, string(body))
	}

	var quotes []struct {
		Code      string  `json:"code"`
		BasePrice float64 `json:"basePrice"`
	}
	if err := json.Unmarshal(body, &quotes); err != nil {
		return 0, fmt.Errorf("rates: decode response: %w", err)
	}
	if len(quotes) == 0 {
		return 0, fmt.Errorf("rates: empty quotation response")
	}
	if quotes[0].BasePrice <= 0 {
		return 0, fmt.Errorf("rates: non-positive base price %f", quotes[0].BasePrice)
	}

	return quotes[0].BasePrice, nil
}
