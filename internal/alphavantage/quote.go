package alphavantage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"resty.dev/v3"

	"pricesync/internal/quote"
)

// The free tier allows ~5 requests per minute, so every successful quote
// is followed by a short pause before the next provider call.
const courtesyPause = 1500 * time.Millisecond

// globalQuoteResponse represents the AlphaVantage API response for stock quotes
type globalQuoteResponse struct {
	GlobalQuote struct {
		Symbol           string `json:"01. symbol"`
		Open             string `json:"02. open"`
		High             string `json:"03. high"`
		Low              string `json:"04. low"`
		Price            string `json:"05. price"`
		Volume           string `json:"06. volume"`
		LatestTradingDay string `json:"07. latest trading day"`
		PreviousClose    string `json:"08. previous close"`
		Change           string `json:"09. change"`
		ChangePercent    string `json:"10. change percent"`
	} `json:"Global Quote"`

	// Rate-limit notices arrive in a 200 body instead of the quote
	Note        string `json:"Note"`
	Information string `json:"Information"`
}

// Client fetches stock quotes from AlphaVantage.
type Client struct {
	apiKey string
	client *resty.Client
	sleep  func(time.Duration)
}

// New creates an AlphaVantage quote client.
func New(apiKey, baseURL string) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json")

	return &Client{
		apiKey: apiKey,
		client: client,
		sleep:  time.Sleep,
	}
}

// Name identifies the provider in logs.
func (c *Client) Name() string {
	return "alphavantage"
}

// Quote retrieves the current price for a ticker. A rate-limit notice in
// the body is reported as quote.ErrRateLimited so callers fall through to
// the next provider without retrying. Successful quotes are followed by a
// fixed pause; failures return immediately.
func (c *Client) Quote(ctx context.Context, ticker string) (float64, error) {
	var result globalQuoteResponse

	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"apikey":   c.apiKey,
			"function": "GLOBAL_QUOTE",
			"symbol":   ticker,
		}).
		SetResult(&result).
		Get("")

	if err != nil {
		return 0, fmt.Errorf("failed to fetch quote for %s: %w", ticker, err)
	}

	if !resp.IsSuccess() {
		return 0, fmt.Errorf("alphavantage API returned status %d", resp.StatusCode())
	}

	if result.Note != "" || result.Information != "" {
		return 0, fmt.Errorf("%w: alphavantage call frequency exceeded", quote.ErrRateLimited)
	}

	if result.GlobalQuote.Price == "" {
		return 0, fmt.Errorf("price not found in response for %s", ticker)
	}

	price, err := strconv.ParseFloat(result.GlobalQuote.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse stock price: %w", err)
	}

	if price <= 0 {
		return 0, fmt.Errorf("invalid price %v for %s", price, ticker)
	}

	c.sleep(courtesyPause)
	return price, nil
}
