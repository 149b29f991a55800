package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Log          *LogConfig          `mapstructure:"log"`
	HTTP         *HTTPConfig         `mapstructure:"http"`
	Binance      *BinanceConfig      `mapstructure:"binance"`
	Coinbase     *CoinbaseConfig     `mapstructure:"coinbase"`
	Catalog      *CatalogConfig      `mapstructure:"catalog"`
	Favorites    *FavoritesConfig    `mapstructure:"favorites"`
	Subscription *SubscriptionConfig `mapstructure:"subscription"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type BinanceConfig struct {
	WSBaseURL  string `mapstructure:"ws_base_url"`
	APIBaseURL string `mapstructure:"api_base_url"`
}

type CoinbaseConfig struct {
	WSURL string `mapstructure:"ws_url"`
}

type CatalogConfig struct {
	QuoteAsset      string `mapstructure:"quote_asset"`
	ProductQuote    string `mapstructure:"product_quote"`
	RefreshSchedule string `mapstructure:"refresh_schedule"`
}

type FavoritesConfig struct {
	Backend   string `mapstructure:"backend"` // "memory" or "redis"
	RedisAddr string `mapstructure:"redis_addr"`
	RedisKey  string `mapstructure:"redis_key"`
}

type SubscriptionConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

func setDefaults() {
	viper.SetDefault("log.level", "info")
	viper.SetDefault("http.addr", ":8080")
	viper.SetDefault("binance.ws_base_url", "wss://stream.binance.com:9443/stream?streams=")
	viper.SetDefault("binance.api_base_url", "https://api.binance.com")
	viper.SetDefault("coinbase.ws_url", "wss://ws-feed.exchange.coinbase.com")
	viper.SetDefault("catalog.quote_asset", "USDT")
	viper.SetDefault("catalog.product_quote", "USD")
	viper.SetDefault("catalog.refresh_schedule", "@every 1h")
	viper.SetDefault("favorites.backend", "memory")
	viper.SetDefault("favorites.redis_addr", "localhost:6379")
	viper.SetDefault("favorites.redis_key", "coinwatch:favorites")
	viper.SetDefault("subscription.debounce", 300*time.Millisecond)
}

// LoadConfig reads the YAML config at configPath, falling back to defaults
// for anything unset. Environment variables override file values
// (COINWATCH_FAVORITES_REDIS_ADDR and friends).
func LoadConfig(configPath string) (*Config, error) {
	setDefaults()
	viper.SetEnvPrefix("coinwatch")
	// Nested keys use dots; env vars use underscores throughout.
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	if configPath != "" {
		viper.SetConfigFile(configPath)
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
	}
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}
