package stock

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"pricesync/internal/quote"
	"pricesync/internal/ratelimit"
)

const (
	// The batch provider accepts up to 8 symbols per call on the free
	// tier and wants successive calls spaced out.
	batchGroupSize = 8
	groupInterval  = 500 * time.Millisecond

	// Back-off before the single retry after a rate-limit signal.
	rateLimitBackoff = 60 * time.Second
)

// BatchSource is the batch-capable quote provider used by ResolveMany.
type BatchSource interface {
	Quotes(ctx context.Context, symbols []string) (map[string]float64, error)
}

// Resolver finds current prices for equity tickers. Single lookups walk
// an ordered provider chain; batch lookups go through the batch provider
// in fixed-size groups and degrade to the chain per ticker when a group
// call fails outright.
type Resolver struct {
	sources []quote.Source
	batch   BatchSource
	pacer   *ratelimit.Pacer
	sleep   func(time.Duration)
	log     *slog.Logger
}

// New creates a stock price resolver. Sources are tried in order.
func New(sources []quote.Source, batch BatchSource, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{
		sources: sources,
		batch:   batch,
		pacer:   ratelimit.NewPacer(groupInterval),
		sleep:   time.Sleep,
		log:     log,
	}
}

// Resolve walks the provider chain and returns the first price found.
// Provider failures, rate-limit notices included, are logged and fall
// through to the next provider. quote.ErrNoQuote means every provider
// came up empty; that is a valid "no data" outcome, not a hard error.
func (r *Resolver) Resolve(ctx context.Context, ticker string) (float64, error) {
	for _, src := range r.sources {
		price, err := src.Quote(ctx, ticker)
		if err != nil {
			r.log.Warn("quote source failed", "source", src.Name(), "ticker", ticker, "error", err)
			continue
		}
		return price, nil
	}
	return 0, quote.ErrNoQuote
}

// ResolveMany resolves tickers through the batch provider, 8 per call.
// A rate-limited group is retried once after a fixed back-off and then
// abandoned; a group that fails any other way is resolved ticker by
// ticker through the single-lookup chain. Missing tickers are absent
// from the result.
func (r *Resolver) ResolveMany(ctx context.Context, tickers []string) map[string]float64 {
	prices := make(map[string]float64, len(tickers))

	for _, group := range chunk(tickers, batchGroupSize) {
		if err := r.pacer.Wait(ctx); err != nil {
			break
		}

		quotes, err := r.groupQuotes(ctx, group)
		if err != nil {
			if errors.Is(err, quote.ErrRateLimited) {
				r.log.Warn("batch provider still rate limited, abandoning group", "tickers", group)
				continue
			}

			r.log.Warn("batch quote failed, resolving tickers individually", "error", err)
			for _, ticker := range group {
				price, rerr := r.Resolve(ctx, ticker)
				if rerr != nil {
					r.log.Info("no stock price available", "ticker", ticker)
					continue
				}
				prices[ticker] = price
			}
			continue
		}

		for ticker, price := range quotes {
			prices[ticker] = price
		}
	}

	return prices
}

// groupQuotes calls the batch provider for one group, retrying exactly
// once after a rate-limit signal.
func (r *Resolver) groupQuotes(ctx context.Context, group []string) (map[string]float64, error) {
	quotes, err := r.batch.Quotes(ctx, group)
	if !errors.Is(err, quote.ErrRateLimited) {
		return quotes, err
	}

	r.log.Warn("batch provider rate limited, backing off", "wait", rateLimitBackoff)
	r.sleep(rateLimitBackoff)
	return r.batch.Quotes(ctx, group)
}

func chunk(symbols []string, size int) [][]string {
	if len(symbols) == 0 {
		return nil
	}
	out := make([][]string, 0, (len(symbols)+size-1)/size)
	for i := 0; i < len(symbols); i += size {
		j := i + size
		if j > len(symbols) {
			j = len(symbols)
		}
		out = append(out, symbols[i:j])
	}
	return out
}
