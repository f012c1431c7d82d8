package twelvedata

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"resty.dev/v3"

	"pricesync/internal/quote"
)

// Rate limiting is signalled by this code inside a 200 body.
const rateLimitCode = 429

// quotePayload is a single quote object. Error envelopes share the same
// shape with Status set to "error".
type quotePayload struct {
	Symbol  string `json:"symbol"`
	Close   string `json:"close"`
	Code    int    `json:"code"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Client fetches batched stock quotes from Twelve Data.
type Client struct {
	apiKey string
	client *resty.Client
}

// New creates a Twelve Data quote client.
func New(apiKey, baseURL string) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json")

	return &Client{
		apiKey: apiKey,
		client: client,
	}
}

// Quotes retrieves close prices for up to one batch of symbols in a single
// call. The response shape depends on the batch size: one symbol yields a
// bare quote object, several yield a map keyed by symbol. A rate-limit
// envelope is reported as quote.ErrRateLimited. Symbols with errors or
// non-positive prices are simply absent from the result.
func (c *Client) Quotes(ctx context.Context, symbols []string) (map[string]float64, error) {
	if len(symbols) == 0 {
		return map[string]float64{}, nil
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol": strings.Join(symbols, ","),
			"apikey": c.apiKey,
		}).
		Get("/quote")

	if err != nil {
		return nil, fmt.Errorf("failed to fetch batch quote: %w", err)
	}

	if !resp.IsSuccess() {
		return nil, fmt.Errorf("twelvedata API returned status %d", resp.StatusCode())
	}

	body := resp.Bytes()

	// An error envelope replaces the whole payload; rate limits arrive
	// this way with a 200 status.
	var envelope quotePayload
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Status == "error" {
		if envelope.Code == rateLimitCode {
			return nil, fmt.Errorf("%w: %s", quote.ErrRateLimited, envelope.Message)
		}
		return nil, fmt.Errorf("twelvedata error %d: %s", envelope.Code, envelope.Message)
	}

	prices := make(map[string]float64, len(symbols))

	if len(symbols) == 1 {
		var q quotePayload
		if err := json.Unmarshal(body, &q); err != nil {
			return nil, fmt.Errorf("failed to decode quote: %w", err)
		}
		if price, ok := closePrice(q); ok {
			prices[symbols[0]] = price
		}
		return prices, nil
	}

	var batch map[string]json.RawMessage
	if err := json.Unmarshal(body, &batch); err != nil {
		return nil, fmt.Errorf("failed to decode batch quote: %w", err)
	}

	for _, sym := range symbols {
		raw, ok := batch[sym]
		if !ok {
			continue
		}
		var q quotePayload
		if err := json.Unmarshal(raw, &q); err != nil || q.Status == "error" {
			continue
		}
		if price, ok := closePrice(q); ok {
			prices[sym] = price
		}
	}

	return prices, nil
}

// closePrice parses a quote's close field; non-positive prices count as
// no data (halted or unknown instruments).
func closePrice(q quotePayload) (float64, bool) {
	price, err := strconv.ParseFloat(q.Close, 64)
	if err != nil || price <= 0 {
		return 0, false
	}
	return price, true
}
