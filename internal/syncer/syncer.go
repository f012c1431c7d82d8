package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"pricesync/internal/feishu"
	"pricesync/internal/quote"
)

// TableClient is the slice of the Bitable client the syncer needs.
type TableClient interface {
	SearchRecords(ctx context.Context, filter map[string]any, fields []string) ([]feishu.Record, error)
	BatchUpdateByCode(ctx context.Context, codeRecords map[string][]string, codePrices map[string]float64) (updated, failed int)
}

// PriceResolver resolves a set of codes to prices. Codes it cannot price
// are absent from the result.
type PriceResolver interface {
	ResolveMany(ctx context.Context, codes []string) map[string]float64
}

// Summary reports what one run did.
type Summary struct {
	Rows        int
	UniqueCodes int
	Priced      int
	Updated     int
	Failed      int
}

// Syncer reads the table, prices every code it finds, and writes the
// prices back.
type Syncer struct {
	table     TableClient
	stocks    PriceResolver
	funds     PriceResolver
	codeField string
	log       *slog.Logger
}

// New creates a syncer over the given table and resolvers.
func New(table TableClient, stocks, funds PriceResolver, codeField string, log *slog.Logger) *Syncer {
	if log == nil {
		log = slog.Default()
	}
	return &Syncer{
		table:     table,
		stocks:    stocks,
		funds:     funds,
		codeField: codeField,
		log:       log,
	}
}

// Run executes one sync pass: fetch rows, resolve prices for every
// distinct code, update the rows whose code got a price. Table access
// failures are fatal; unresolvable codes are not.
func (s *Syncer) Run(ctx context.Context) (Summary, error) {
	records, err := s.table.SearchRecords(ctx, nil, nil)
	if err != nil {
		return Summary{}, fmt.Errorf("fetching table rows: %w", err)
	}

	codes := s.collectCodes(records)
	s.log.Info("scanned table", "rows", len(records), "codes", len(codes))

	var fundCodes, stockCodes []string
	for _, code := range codes {
		if quote.IsFundCode(code) {
			fundCodes = append(fundCodes, code)
		} else {
			stockCodes = append(stockCodes, code)
		}
	}

	prices := make(map[string]float64, len(codes))
	for code, price := range s.funds.ResolveMany(ctx, fundCodes) {
		prices[code] = price
	}
	for code, price := range s.stocks.ResolveMany(ctx, stockCodes) {
		prices[code] = price
	}
	s.log.Info("resolved prices", "priced", len(prices), "codes", len(codes))

	codeRecords := s.groupRecords(records, prices)
	updated, failed := s.table.BatchUpdateByCode(ctx, codeRecords, prices)

	return Summary{
		Rows:        len(records),
		UniqueCodes: len(codes),
		Priced:      len(prices),
		Updated:     updated,
		Failed:      failed,
	}, nil
}

// collectCodes gathers every code mentioned anywhere in the code field of
// any row, deduplicated and sorted.
func (s *Syncer) collectCodes(records []feishu.Record) []string {
	seen := map[string]struct{}{}
	for _, rec := range records {
		for _, code := range codeTexts(rec.Fields[s.codeField]) {
			seen[code] = struct{}{}
		}
	}

	codes := make([]string, 0, len(seen))
	for code := range seen {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// groupRecords maps each priced code to the record IDs it should update.
// A row belongs to the first code of its code field; rows whose code has
// no price are left out.
func (s *Syncer) groupRecords(records []feishu.Record, prices map[string]float64) map[string][]string {
	groups := map[string][]string{}
	for _, rec := range records {
		code := firstCodeText(rec.Fields[s.codeField])
		if code == "" {
			continue
		}
		if _, ok := prices[code]; !ok {
			continue
		}
		groups[code] = append(groups[code], rec.RecordID)
	}
	return groups
}

// codeTexts extracts the text of every tagged item in a code field value.
// Bitable text fields arrive as lists of {"text": ..., "type": ...}
// items; a plain string value is accepted too.
func codeTexts(value any) []string {
	switch v := value.(type) {
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []any:
		var texts []string
		for _, item := range v {
			tagged, ok := item.(map[string]any)
			if !ok {
				continue
			}
			text, ok := tagged["text"].(string)
			if !ok || text == "" {
				continue
			}
			texts = append(texts, text)
		}
		return texts
	default:
		return nil
	}
}

func firstCodeText(value any) string {
	texts := codeTexts(value)
	if len(texts) == 0 {
		return ""
	}
	return texts[0]
}
