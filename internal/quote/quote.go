package quote

import (
	"context"
	"errors"
)

// ErrNoQuote reports that every provider in a fallback chain was tried and
// none produced a usable price. Callers treat this as "no data for this
// symbol", not as a failure of the run.
var ErrNoQuote = errors.New("no quote available")

// ErrRateLimited reports that a provider refused to serve a quote because
// its rate limit was reached. The signal usually arrives inside a 200
// response body rather than as an HTTP status.
var ErrRateLimited = errors.New("provider rate limit reached")

// Source is a single price provider in a fallback chain.
// Implementations must never return a zero or negative price: a provider
// response without a positive price is an error, not a quote.
type Source interface {
	// Quote retrieves the current price for one symbol.
	Quote(ctx context.Context, symbol string) (float64, error)

	// Name identifies the provider in logs.
	Name() string
}

// IsFundCode classifies a code: codes made up entirely of decimal digits
// name mainland funds, everything else is treated as an equity ticker.
// The classification is purely lexical, so a code can never be both.
func IsFundCode(code string) bool {
	if code == "" {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
