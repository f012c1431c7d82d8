package eastmoney

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"resty.dev/v3"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// The payload is a script defining several variables; the net worth
// series is the one we want.
const netWorthMarker = "Data_netWorthTrend"

var netWorthPattern = regexp.MustCompile(`(?s)var Data_netWorthTrend = \[(.*?)\];`)

// netWorthPoint is one entry of the net worth series.
type netWorthPoint struct {
	X int64   `json:"x"`
	Y float64 `json:"y"`
}

// Client fetches fund net worth values from the eastmoney fund data
// endpoint, which serves an embedded-JS payload rather than JSON.
type Client struct {
	client *resty.Client
}

// New creates an eastmoney fund client.
func New(baseURL string) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("User-Agent", userAgent)

	return &Client{client: client}
}

// Name identifies the provider in logs.
func (c *Client) Name() string {
	return "eastmoney"
}

// Quote retrieves the latest unit net worth for a fund code by extracting
// the net worth series from the script payload and taking its last point.
func (c *Client) Quote(ctx context.Context, code string) (float64, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		Get(fmt.Sprintf("/pingzhongdata/%s.js", code))

	if err != nil {
		return 0, fmt.Errorf("failed to fetch fund data for %s: %w", code, err)
	}

	if !resp.IsSuccess() {
		return 0, fmt.Errorf("eastmoney returned status %d", resp.StatusCode())
	}

	body := resp.String()
	if !strings.Contains(body, netWorthMarker) {
		return 0, fmt.Errorf("net worth data not present for %s", code)
	}

	m := netWorthPattern.FindStringSubmatch(body)
	if m == nil {
		return 0, fmt.Errorf("net worth data not extractable for %s", code)
	}

	var points []netWorthPoint
	if err := json.Unmarshal([]byte("["+m[1]+"]"), &points); err != nil {
		return 0, fmt.Errorf("failed to parse net worth data for %s: %w", code, err)
	}

	if len(points) == 0 {
		return 0, fmt.Errorf("empty net worth series for %s", code)
	}

	price := points[len(points)-1].Y
	if price <= 0 {
		return 0, fmt.Errorf("invalid net worth %v for %s", price, code)
	}

	return price, nil
}
