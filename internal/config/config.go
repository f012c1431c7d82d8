package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the price sync job.
type Config struct {
	// Feishu Bitable application credentials and table identity
	FeishuAppID     string `mapstructure:"feishu_app_id"`
	FeishuAppSecret string `mapstructure:"feishu_app_secret"`
	FeishuAppToken  string `mapstructure:"feishu_app_token"`
	FeishuTableID   string `mapstructure:"feishu_table_id"`

	// Market data provider keys
	AlphaVantageAPIKey string `mapstructure:"alpha_vantage_api_key"`
	TwelveDataAPIKey   string `mapstructure:"twelvedata_api_key"`

	// Base URLs for API endpoints (configurable for testing)
	FeishuBaseURL       string `mapstructure:"feishu_base_url"`
	AlphaVantageBaseURL string `mapstructure:"alpha_vantage_base_url"`
	TsanghiBaseURL      string `mapstructure:"tsanghi_base_url"`
	TwelveDataBaseURL   string `mapstructure:"twelvedata_base_url"`
	YahooBaseURL        string `mapstructure:"yahoo_base_url"`
	EastmoneyBaseURL    string `mapstructure:"eastmoney_base_url"`
	TencentBaseURL      string `mapstructure:"tencent_base_url"`

	// Table field names and market defaults
	CodeField     string `mapstructure:"code_field"`
	PriceField    string `mapstructure:"price_field"`
	StockExchange string `mapstructure:"stock_exchange"`
}

// Load reads configuration from environment variables and optional config file.
// Environment variables take precedence over config file values.
//
// Required environment variables:
//   - FEISHU_APP_ID
//   - FEISHU_APP_SECRET
//   - FEISHU_APP_TOKEN
//   - FEISHU_TABLE_ID
//
// Optional:
//   - ALPHA_VANTAGE_API_KEY (without it the stock chain starts at the fallback provider)
//   - TWELVEDATA_API_KEY (defaults to the provider's demo token)
//   - *_BASE_URL overrides, CODE_FIELD, PRICE_FIELD, STOCK_EXCHANGE
func Load() (*Config, error) {
	v := viper.New()

	// Set up environment variable support
	v.SetEnvPrefix("") // No prefix, use full names
	v.AutomaticEnv()

	// Set defaults for base URLs
	v.SetDefault("feishu_base_url", "https://open.feishu.cn/open-apis")
	v.SetDefault("alpha_vantage_base_url", "https://www.alphavantage.co/query")
	v.SetDefault("tsanghi_base_url", "https://tsanghi.com/api/fin")
	v.SetDefault("twelvedata_base_url", "https://api.twelvedata.com")
	v.SetDefault("yahoo_base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("eastmoney_base_url", "https://fund.eastmoney.com")
	v.SetDefault("tencent_base_url", "https://qt.gtimg.cn")

	// Defaults for field names and market parameters
	v.SetDefault("code_field", "代号")
	v.SetDefault("price_field", "last_price")
	v.SetDefault("stock_exchange", "XNAS")
	v.SetDefault("twelvedata_api_key", "demo")

	// Optionally read from config file if it exists
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.pricesync")

	// Read config file (ignore if not found)
	_ = v.ReadInConfig()

	// Bind environment variables for credentials and keys
	v.BindEnv("feishu_app_id", "FEISHU_APP_ID")
	v.BindEnv("feishu_app_secret", "FEISHU_APP_SECRET")
	v.BindEnv("feishu_app_token", "FEISHU_APP_TOKEN")
	v.BindEnv("feishu_table_id", "FEISHU_TABLE_ID")
	v.BindEnv("alpha_vantage_api_key", "ALPHA_VANTAGE_API_KEY")
	v.BindEnv("twelvedata_api_key", "TWELVEDATA_API_KEY")

	// Bind environment variables for base URLs
	v.BindEnv("feishu_base_url", "FEISHU_BASE_URL")
	v.BindEnv("alpha_vantage_base_url", "ALPHA_VANTAGE_BASE_URL")
	v.BindEnv("tsanghi_base_url", "TSANGHI_BASE_URL")
	v.BindEnv("twelvedata_base_url", "TWELVEDATA_BASE_URL")
	v.BindEnv("yahoo_base_url", "YAHOO_BASE_URL")
	v.BindEnv("eastmoney_base_url", "EASTMONEY_BASE_URL")
	v.BindEnv("tencent_base_url", "TENCENT_BASE_URL")

	// Bind environment variables for field names and market parameters
	v.BindEnv("code_field", "CODE_FIELD")
	v.BindEnv("price_field", "PRICE_FIELD")
	v.BindEnv("stock_exchange", "STOCK_EXCHANGE")

	// Unmarshal config into struct
	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate required fields
	var missing []string
	if config.FeishuAppID == "" {
		missing = append(missing, "FEISHU_APP_ID")
	}
	if config.FeishuAppSecret == "" {
		missing = append(missing, "FEISHU_APP_SECRET")
	}
	if config.FeishuAppToken == "" {
		missing = append(missing, "FEISHU_APP_TOKEN")
	}
	if config.FeishuTableID == "" {
		missing = append(missing, "FEISHU_TABLE_ID")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	return config, nil
}
