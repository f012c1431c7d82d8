package yahoo

import (
	"context"
	"fmt"
	"net/url"

	"resty.dev/v3"
)

// The chart endpoint rejects requests without a browser user agent.
const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// chartResponse represents the finance chart API response.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				Currency           string  `json:"currency"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"meta"`
		} `json:"result"`
		Error any `json:"error"`
	} `json:"chart"`
}

// Client fetches market prices from the finance chart endpoint.
type Client struct {
	client *resty.Client
}

// New creates a chart quote client.
func New(baseURL string) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", userAgent)

	return &Client{client: client}
}

// Name identifies the provider in logs.
func (c *Client) Name() string {
	return "yahoo"
}

// Quote retrieves the regular market price for a symbol, which may carry
// an exchange suffix such as .SS or .SZ.
func (c *Client) Quote(ctx context.Context, symbol string) (float64, error) {
	var result chartResponse

	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&result).
		Get("/v8/finance/chart/" + url.PathEscape(symbol))

	if err != nil {
		return 0, fmt.Errorf("failed to fetch chart for %s: %w", symbol, err)
	}

	if !resp.IsSuccess() {
		return 0, fmt.Errorf("chart API returned status %d", resp.StatusCode())
	}

	if len(result.Chart.Result) == 0 {
		return 0, fmt.Errorf("no chart result for %s", symbol)
	}

	price := result.Chart.Result[0].Meta.RegularMarketPrice
	if price <= 0 {
		return 0, fmt.Errorf("no market price for %s", symbol)
	}

	return price, nil
}
