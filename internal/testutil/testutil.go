package testutil

import (
	"context"

	"pricesync/internal/quote"
)

// MockSource is a mock implementation of the quote.Source interface for testing
type MockSource struct {
	QuoteFunc func(ctx context.Context, symbol string) (float64, error)
	NameFunc  func() string

	// Symbols records every symbol the source was asked for, in order
	Symbols []string
}

// Quote implements the quote.Source interface
func (m *MockSource) Quote(ctx context.Context, symbol string) (float64, error) {
	m.Symbols = append(m.Symbols, symbol)
	if m.QuoteFunc != nil {
		return m.QuoteFunc(ctx, symbol)
	}
	return 0, quote.ErrNoQuote
}

// Name implements the quote.Source interface
func (m *MockSource) Name() string {
	if m.NameFunc != nil {
		return m.NameFunc()
	}
	return "mock"
}

// NewMockSource creates a source answering every symbol with a fixed
// price, or a fixed error when err is non-nil.
func NewMockSource(name string, price float64, err error) *MockSource {
	return &MockSource{
		QuoteFunc: func(ctx context.Context, symbol string) (float64, error) {
			if err != nil {
				return 0, err
			}
			return price, nil
		},
		NameFunc: func() string {
			return name
		},
	}
}

// MockBatch is a mock batch quote provider recording each group of
// symbols it was called with.
type MockBatch struct {
	QuotesFunc func(ctx context.Context, symbols []string) (map[string]float64, error)

	// Calls records every symbol group, in order
	Calls [][]string
}

// Quotes implements the batch source contract used by the resolvers
func (m *MockBatch) Quotes(ctx context.Context, symbols []string) (map[string]float64, error) {
	group := append([]string(nil), symbols...)
	m.Calls = append(m.Calls, group)
	if m.QuotesFunc != nil {
		return m.QuotesFunc(ctx, group)
	}
	return map[string]float64{}, nil
}
