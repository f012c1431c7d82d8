package fund

import (
	"context"
	"log/slog"

	"pricesync/internal/quote"
	"pricesync/internal/tencent"
)

// Exchange suffix variants tried against the charts provider, in order:
// Shanghai listing, Shenzhen listing, bare code.
var chartSuffixes = []string{".SS", ".SZ", ""}

// BatchSource is the batch-capable quote provider used by ResolveMany.
// It expects market-prefixed symbols.
type BatchSource interface {
	Quotes(ctx context.Context, symbols []string) (map[string]float64, error)
}

// Resolver finds current net worth values for mainland fund codes.
// Single lookups walk a provider chain; batch lookups go through the
// combined quote service and degrade to the chain per code only when the
// batch call itself fails.
type Resolver struct {
	sources []quote.Source
	batch   BatchSource
	log     *slog.Logger
}

// New creates a fund price resolver. The charts source is tried under
// each exchange suffix variant before the fallback source is consulted.
func New(charts, fallback quote.Source, batch BatchSource, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{
		sources: []quote.Source{chartVariants{src: charts}, fallback},
		batch:   batch,
		log:     log,
	}
}

// chartVariants retries a charts source under the exchange suffix
// variants of a fund code, returning the first hit.
type chartVariants struct {
	src quote.Source
}

func (v chartVariants) Name() string {
	return v.src.Name()
}

func (v chartVariants) Quote(ctx context.Context, code string) (float64, error) {
	var lastErr error
	for _, suffix := range chartSuffixes {
		price, err := v.src.Quote(ctx, code+suffix)
		if err != nil {
			lastErr = err
			continue
		}
		return price, nil
	}
	return 0, lastErr
}

// Resolve walks the provider chain and returns the first price found.
// quote.ErrNoQuote means no provider had data for the code.
func (r *Resolver) Resolve(ctx context.Context, code string) (float64, error) {
	for _, src := range r.sources {
		price, err := src.Quote(ctx, code)
		if err != nil {
			r.log.Warn("quote source failed", "source", src.Name(), "code", code, "error", err)
			continue
		}
		return price, nil
	}
	return 0, quote.ErrNoQuote
}

// ResolveMany resolves fund codes in one combined batch call, keyed by
// market-prefixed symbols derived from each code. If the batch call
// fails, every code falls back to the single-lookup chain; if it merely
// omits a code, that code stays unresolved for this run.
func (r *Resolver) ResolveMany(ctx context.Context, codes []string) map[string]float64 {
	symbols := make([]string, 0, len(codes))
	codeBySymbol := make(map[string]string, len(codes))
	for _, code := range codes {
		symbol := tencent.Symbol(code)
		symbols = append(symbols, symbol)
		codeBySymbol[symbol] = code
	}

	prices := make(map[string]float64, len(codes))

	quotes, err := r.batch.Quotes(ctx, symbols)
	if err != nil {
		r.log.Warn("batch fund quote failed, resolving codes individually", "error", err)
		for _, code := range codes {
			price, rerr := r.Resolve(ctx, code)
			if rerr != nil {
				r.log.Info("no fund price available", "code", code)
				continue
			}
			prices[code] = price
		}
		return prices
	}

	for symbol, price := range quotes {
		code, ok := codeBySymbol[symbol]
		if !ok {
			continue
		}
		prices[code] = price
	}

	return prices
}
