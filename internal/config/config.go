package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds every tunable the sniper reads from the environment. Values
// are read once at startup and shared read-only afterwards.
type Config struct {
	// Feed settings
	FeedURL       string
	IngestWorkers int
	QueueSize     int
	ReconnectWait time.Duration

	// RPC settings
	RPCUrl         string
	RPCTimeout     time.Duration
	MaxRetries     int
	RetryBackoff   time.Duration
	ConfirmTimeout time.Duration
	SubmitRate     float64 // submissions per second

	// Wallet
	WalletPrivateKey string

	// Redis settings
	RedisAddr string
	LedgerTTL time.Duration

	// ClickHouse settings (journal disabled when addr is empty)
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string

	// Trading bounds
	MinPriceSOL    float64
	MaxPriceSOL    float64
	BuyAmountSOL   float64
	SellDelay      time.Duration
	MaxTipLamports uint64
}

// Load reads configuration from the environment and validates it. Invalid
// bounds are fatal: the process must not subscribe to the feed with a config
// it cannot trade on.
func Load() (*Config, error) {
	cfg := &Config{
		FeedURL:       os.Getenv("FEED_URL"),
		IngestWorkers: getIntEnv("INGEST_WORKERS", 4),
		QueueSize:     getIntEnv("QUEUE_SIZE", 1024),
		ReconnectWait: getDurationEnv("RECONNECT_WAIT", 5*time.Second),

		RPCUrl:         getEnv("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com"),
		RPCTimeout:     getDurationEnv("RPC_TIMEOUT", 30*time.Second),
		MaxRetries:     getIntEnv("MAX_RETRIES", 3),
		RetryBackoff:   getDurationEnv("RETRY_BACKOFF", 500*time.Millisecond),
		ConfirmTimeout: getDurationEnv("CONFIRM_TIMEOUT", 30*time.Second),
		SubmitRate:     getFloatEnv("SUBMIT_RATE", 10),

		WalletPrivateKey: os.Getenv("WALLET_PRIVATE_KEY"),

		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),
		LedgerTTL: getDurationEnv("LEDGER_TTL", 10*time.Minute),

		ClickHouseAddr:     os.Getenv("CLICKHOUSE_ADDR"),
		ClickHouseDatabase: getEnv("CLICKHOUSE_DATABASE", "sniper"),
		ClickHouseUsername: getEnv("CLICKHOUSE_USERNAME", "default"),
		ClickHousePassword: os.Getenv("CLICKHOUSE_PASSWORD"),

		MinPriceSOL:    getFloatEnv("MIN_SOL_PRICE", 0.5),
		MaxPriceSOL:    getFloatEnv("MAX_SOL_PRICE", 3.0),
		BuyAmountSOL:   getFloatEnv("BUY_SOL_AMOUNT", 0.1),
		SellDelay:      time.Duration(getIntEnv("SELL_DELAY_MS", 5000)) * time.Millisecond,
		MaxTipLamports: getUintEnv("MAX_TIP_LAMPORTS", defaultMaxTip),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// defaultMaxTip admits any realistic priority fee when the operator sets no
// explicit ceiling.
const defaultMaxTip = 1 << 62

const lamportsPerSOL = 1_000_000_000

// BuyLamports converts the configured buy amount to lamports.
func (c *Config) BuyLamports() uint64 {
	return uint64(c.BuyAmountSOL * lamportsPerSOL)
}

func (c *Config) validate() error {
	if c.FeedURL == "" {
		return fmt.Errorf("config: FEED_URL is required")
	}
	if c.WalletPrivateKey == "" {
		return fmt.Errorf("config: WALLET_PRIVATE_KEY is required")
	}
	if c.MinPriceSOL < 0 {
		return fmt.Errorf("config: MIN_SOL_PRICE must be >= 0, got %v", c.MinPriceSOL)
	}
	if c.MinPriceSOL > c.MaxPriceSOL {
		return fmt.Errorf("config: MIN_SOL_PRICE %v exceeds MAX_SOL_PRICE %v", c.MinPriceSOL, c.MaxPriceSOL)
	}
	if c.BuyAmountSOL <= 0 {
		return fmt.Errorf("config: BUY_SOL_AMOUNT must be > 0, got %v", c.BuyAmountSOL)
	}
	if c.SellDelay < 0 {
		return fmt.Errorf("config: SELL_DELAY_MS must be >= 0")
	}
	if c.LedgerTTL <= 0 {
		return fmt.Errorf("config: LEDGER_TTL must be > 0")
	}
	if c.IngestWorkers <= 0 {
		return fmt.Errorf("config: INGEST_WORKERS must be > 0")
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("config: QUEUE_SIZE must be > 0")
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("config: MAX_RETRIES must be >= 1")
	}
	if c.SubmitRate <= 0 {
		return fmt.Errorf("config: SUBMIT_RATE must be > 0")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getUintEnv(key string, defaultVal uint64) uint64 {
	if val := os.Getenv(key); val != "" {
		if u, err := strconv.ParseUint(val, 10, 64); err == nil {
			return u
		}
	}
	return defaultVal
}

func getFloatEnv(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
