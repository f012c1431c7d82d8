package tsanghi

import (
	"context"
	"encoding/json"
	"fmt"

	"resty.dev/v3"
)

// The free endpoint is keyed by a shared demo token.
const demoToken = "demo"

// realtimeResponse represents the tsanghi realtime quote response.
// Success is reported through the embedded code, not the HTTP status.
type realtimeResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data []struct {
		Ticker string      `json:"ticker"`
		Close  json.Number `json:"close"`
	} `json:"data"`
}

// Client fetches realtime stock quotes from tsanghi, the keyless fallback
// behind AlphaVantage.
type Client struct {
	exchange string
	client   *resty.Client
}

// New creates a tsanghi quote client for one exchange (XNAS or XNYS).
func New(exchange, baseURL string) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json")

	return &Client{
		exchange: exchange,
		client:   client,
	}
}

// Name identifies the provider in logs.
func (c *Client) Name() string {
	return "tsanghi"
}

// Quote retrieves the latest close price for a ticker.
func (c *Client) Quote(ctx context.Context, ticker string) (float64, error) {
	var result realtimeResponse

	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"token":  demoToken,
			"ticker": ticker,
		}).
		SetResult(&result).
		Get(fmt.Sprintf("/stock/%s/realtime", c.exchange))

	if err != nil {
		return 0, fmt.Errorf("failed to fetch quote for %s: %w", ticker, err)
	}

	if !resp.IsSuccess() {
		return 0, fmt.Errorf("tsanghi API returned status %d", resp.StatusCode())
	}

	if result.Code != 200 || len(result.Data) == 0 {
		return 0, fmt.Errorf("tsanghi returned code %d for %s", result.Code, ticker)
	}

	price, err := result.Data[0].Close.Float64()
	if err != nil {
		return 0, fmt.Errorf("failed to parse close price: %w", err)
	}

	if price <= 0 {
		return 0, fmt.Errorf("invalid close price %v for %s", price, ticker)
	}

	return price, nil
}
