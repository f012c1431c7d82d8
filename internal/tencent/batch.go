package tencent

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"resty.dev/v3"
)

// Quote lines carry ~-delimited fields; the current price sits at a fixed
// position.
const priceFieldIndex = 3

// Symbol derives the market-prefixed quote symbol for a fund code.
// Codes starting with 6 or 5 trade in Shanghai, codes starting with 0-3
// in Shenzhen; anything else defaults to Shenzhen.
func Symbol(code string) string {
	if code == "" {
		return code
	}
	switch code[0] {
	case '6', '5':
		return "sh" + code
	case '0', '1', '2', '3':
		return "sz" + code
	default:
		return "sz" + code
	}
}

// Client fetches batched quotes from the qt quote service, which answers
// with a line-oriented text payload rather than JSON.
type Client struct {
	client *resty.Client
}

// New creates a qt quote client.
func New(baseURL string) *Client {
	return &Client{client: resty.New().SetBaseURL(baseURL)}
}

// Quotes retrieves prices for a set of market-prefixed symbols in one
// combined request. The response is a list of script assignments, one per
// known symbol:
//
//	v_sh600000="1~浦发银行~600000~10.01~...";
//
// The result is keyed by the prefixed symbol. Symbols the service does
// not know, and entries quoting a non-positive price (halted
// instruments), are simply absent.
func (c *Client) Quotes(ctx context.Context, symbols []string) (map[string]float64, error) {
	if len(symbols) == 0 {
		return map[string]float64{}, nil
	}

	resp, err := c.client.R().
		SetContext(ctx).
		Get("/q=" + strings.Join(symbols, ","))

	if err != nil {
		return nil, fmt.Errorf("failed to fetch batch quote: %w", err)
	}

	if !resp.IsSuccess() {
		return nil, fmt.Errorf("quote service returned status %d", resp.StatusCode())
	}

	body := resp.String()
	if strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("empty quote response for %d symbols", len(symbols))
	}

	prices := make(map[string]float64, len(symbols))
	for _, line := range strings.Split(body, ";") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		eq := strings.Index(line, "=")
		if eq < 0 {
			continue
		}

		symbol := strings.TrimPrefix(line[:eq], "v_")
		fields := strings.Split(strings.Trim(line[eq+1:], `"`), "~")
		if len(fields) <= priceFieldIndex {
			continue
		}

		price, err := strconv.ParseFloat(fields[priceFieldIndex], 64)
		if err != nil || price <= 0 {
			continue
		}

		prices[symbol] = price
	}

	return prices, nil
}
