// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// トークンストアの種類
const (
	TokenStoreMemory   = "memory"
	TokenStorePostgres = "postgres"
	TokenStoreRedis    = "redis"
)

// 価格フィードの種類
const (
	PriceSourceSimulated = "simulated"
	PriceSourceCoinGecko = "coingecko"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Session
	SessionSecret string
	SessionMaxAge int

	// Token store
	TokenStore  string
	AppOrigin   string
	DatabaseURL string
	RedisURL    string

	// Simulated latency
	LoginDelay        time.Duration
	RegisterDelay     time.Duration
	BalanceDelay      time.Duration
	TransactionsDelay time.Duration

	// Background generators
	DriftInterval       time.Duration
	FeedBalanceInterval time.Duration
	FeedConfirmInterval time.Duration
	FeedTxInterval      time.Duration

	// Remote wallet API（空なら模擬データを使う）
	WalletAPIURL string

	// Price feed
	PriceSource   string
	PriceAPIURL   string
	PriceInterval time.Duration
	PriceTimeout  time.Duration

	// Rate Limit
	RateLimitAuth int

	// Logging
	LogLevel string

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envがあれば先に読み込む（既存の環境変数は上書きしない）。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	if cfg.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}

	cfg.TokenStore = strings.ToLower(getEnvString("TOKEN_STORE", TokenStoreMemory))
	switch cfg.TokenStore {
	case TokenStoreMemory:
	case TokenStorePostgres:
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
		if cfg.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	case TokenStoreRedis:
		cfg.RedisURL = os.Getenv("REDIS_URL")
		if cfg.RedisURL == "" {
			missing = append(missing, "REDIS_URL")
		}
	default:
		return nil, fmt.Errorf("unsupported TOKEN_STORE: %q", cfg.TokenStore)
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	cfg.PriceSource = strings.ToLower(getEnvString("PRICE_SOURCE", PriceSourceSimulated))
	if cfg.PriceSource != PriceSourceSimulated && cfg.PriceSource != PriceSourceCoinGecko {
		return nil, fmt.Errorf("unsupported PRICE_SOURCE: %q", cfg.PriceSource)
	}

	// Optional fields with defaults
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.AppOrigin = getEnvString("APP_ORIGIN", "http://localhost:3000")
	cfg.LoginDelay = getEnvDuration("LOGIN_DELAY", 1500*time.Millisecond)
	cfg.RegisterDelay = getEnvDuration("REGISTER_DELAY", 2*time.Second)
	cfg.BalanceDelay = getEnvDuration("BALANCE_DELAY", time.Second)
	cfg.TransactionsDelay = getEnvDuration("TRANSACTIONS_DELAY", 800*time.Millisecond)
	cfg.DriftInterval = getEnvDuration("DRIFT_INTERVAL", 45*time.Second)
	cfg.FeedBalanceInterval = getEnvDuration("FEED_BALANCE_INTERVAL", 45*time.Second)
	cfg.FeedConfirmInterval = getEnvDuration("FEED_CONFIRM_INTERVAL", 60*time.Second)
	cfg.FeedTxInterval = getEnvDuration("FEED_TX_INTERVAL", 30*time.Second)
	cfg.WalletAPIURL = os.Getenv("WALLET_API_URL")
	cfg.PriceAPIURL = getEnvString("PRICE_API_URL", "https://api.coingecko.com/api/v3/coins/bitcoin/market_chart")
	cfg.PriceInterval = getEnvDuration("PRICE_INTERVAL", 30*time.Second)
	cfg.PriceTimeout = getEnvDuration("PRICE_TIMEOUT", 10*time.Second)
	cfg.RateLimitAuth = getEnvInt("RATE_LIMIT_AUTH", 10)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", cfg.AppOrigin)

	// 周期はティッカーに渡すため正の値でなければならない。遅延は0を許す
	var invalid []string
	for _, d := range []struct {
		key       string
		value     time.Duration
		allowZero bool
	}{
		{"LOGIN_DELAY", cfg.LoginDelay, true},
		{"REGISTER_DELAY", cfg.RegisterDelay, true},
		{"BALANCE_DELAY", cfg.BalanceDelay, true},
		{"TRANSACTIONS_DELAY", cfg.TransactionsDelay, true},
		{"DRIFT_INTERVAL", cfg.DriftInterval, false},
		{"FEED_BALANCE_INTERVAL", cfg.FeedBalanceInterval, false},
		{"FEED_CONFIRM_INTERVAL", cfg.FeedConfirmInterval, false},
		{"FEED_TX_INTERVAL", cfg.FeedTxInterval, false},
		{"PRICE_INTERVAL", cfg.PriceInterval, false},
		{"PRICE_TIMEOUT", cfg.PriceTimeout, false},
	} {
		if d.value < 0 || (d.value == 0 && !d.allowZero) {
			invalid = append(invalid, d.key)
		}
	}
	if len(invalid) > 0 {
		return nil, fmt.Errorf("durations must be positive: %v", invalid)
	}

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
