package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"pricesync/internal/alphavantage"
	"pricesync/internal/config"
	"pricesync/internal/eastmoney"
	"pricesync/internal/feishu"
	"pricesync/internal/fund"
	"pricesync/internal/quote"
	"pricesync/internal/stock"
	"pricesync/internal/syncer"
	"pricesync/internal/tencent"
	"pricesync/internal/tsanghi"
	"pricesync/internal/twelvedata"
	"pricesync/internal/yahoo"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	// Bitable table client
	table := feishu.New(feishu.Config{
		AppID:      cfg.FeishuAppID,
		AppSecret:  cfg.FeishuAppSecret,
		AppToken:   cfg.FeishuAppToken,
		TableID:    cfg.FeishuTableID,
		BaseURL:    cfg.FeishuBaseURL,
		PriceField: cfg.PriceField,
		Logger:     logger,
	})

	// Stock chain: Alpha Vantage only when a key is configured, then the
	// demo-token realtime fallback. Batch lookups go through Twelve Data.
	var stockSources []quote.Source
	if cfg.AlphaVantageAPIKey != "" {
		stockSources = append(stockSources, alphavantage.New(cfg.AlphaVantageAPIKey, cfg.AlphaVantageBaseURL))
	}
	stockSources = append(stockSources, tsanghi.New(cfg.StockExchange, cfg.TsanghiBaseURL))
	stocks := stock.New(stockSources, twelvedata.New(cfg.TwelveDataAPIKey, cfg.TwelveDataBaseURL), logger)

	// Fund chain: Yahoo chart with exchange-suffix variants, then the
	// eastmoney net worth series. Batch lookups go through Tencent.
	funds := fund.New(
		yahoo.New(cfg.YahooBaseURL),
		eastmoney.New(cfg.EastmoneyBaseURL),
		tencent.New(cfg.TencentBaseURL),
		logger,
	)

	s := syncer.New(table, stocks, funds, cfg.CodeField, logger)

	fmt.Println("Syncing last known prices into the table...")
	summary, err := s.Run(context.Background())
	if err != nil {
		log.Fatalf("Sync failed: %v", err)
	}

	fmt.Printf("Rows scanned:  %d\n", summary.Rows)
	fmt.Printf("Unique codes:  %d\n", summary.UniqueCodes)
	fmt.Printf("Codes priced:  %d\n", summary.Priced)
	fmt.Printf("Rows updated:  %d\n", summary.Updated)
	if summary.Failed > 0 {
		fmt.Printf("Rows failed:   %d\n", summary.Failed)
	}
}
