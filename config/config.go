package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Instrument under trade
	Symbol string
	Venue  string

	// Band parameters
	BandPeriod     int
	BandMultiplier float64

	// Execution
	Mode        string // "paper" or "live"
	StartCash   float64
	Allocation  float64 // fraction of equity committed per entry
	SlippageBps float64

	// Market data feed
	FeedSource     string // "ws" or "redis"
	FeedURL        string
	ReconnectDelay time.Duration

	// Redis consumer group (FEED_SOURCE=redis)
	ConsumerGroup string
	ConsumerName  string

	// Broker credentials (live mode only)
	BrokerBaseURL    string
	BrokerAPIKey     string
	BrokerAccountID  string
	BrokerTOTPSecret string

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	JournalPath   string
	MetricsAddr   string

	// Notifications
	TelegramBotToken string
	TelegramChatID   string
	WebhookURL       string
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is loaded first if present.
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		log.Printf("[config] loaded .env file")
	}

	return &Config{
		Symbol: getEnv("SYMBOL", "EURUSD"),
		Venue:  getEnv("VENUE", "OANDA"),

		BandPeriod:     getEnvInt("BAND_PERIOD", 20),
		BandMultiplier: getEnvFloat("BAND_MULTIPLIER", 2.0),

		Mode:        strings.ToLower(getEnv("TRADE_MODE", "paper")),
		StartCash:   getEnvFloat("START_CASH", 100000),
		Allocation:  getEnvFloat("ALLOCATION", 1.0),
		SlippageBps: getEnvFloat("SLIPPAGE_BPS", 0.5),

		FeedSource:     strings.ToLower(getEnv("FEED_SOURCE", "ws")),
		FeedURL:        getEnv("FEED_URL", "ws://localhost:8089/ws"),
		ReconnectDelay: getEnvDuration("FEED_RECONNECT_DELAY", time.Second),

		ConsumerGroup: getEnv("REDIS_CONSUMER_GROUP", "trader"),
		ConsumerName:  getEnv("REDIS_CONSUMER_NAME", "trader-1"),

		BrokerBaseURL:    getEnv("BROKER_BASE_URL", ""),
		BrokerAPIKey:     getEnv("BROKER_API_KEY", ""),
		BrokerAccountID:  getEnv("BROKER_ACCOUNT_ID", ""),
		BrokerTOTPSecret: getEnv("BROKER_TOTP_SECRET", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/ticks.db"),
		JournalPath:   getEnv("JOURNAL_PATH", "data/trades.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		WebhookURL:       getEnv("WEBHOOK_URL", ""),
	}
}

// Validate rejects configurations the trader cannot run with. It fails
// up front so a bad value never surfaces mid-session.
func (c *Config) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("SYMBOL must not be empty")
	}
	if c.BandPeriod <= 0 {
		return fmt.Errorf("BAND_PERIOD must be positive, got %d", c.BandPeriod)
	}
	if c.BandMultiplier <= 0 {
		return fmt.Errorf("BAND_MULTIPLIER must be positive, got %v", c.BandMultiplier)
	}
	if c.Mode != "paper" && c.Mode != "live" {
		return fmt.Errorf("TRADE_MODE must be \"paper\" or \"live\", got %q", c.Mode)
	}
	if c.StartCash <= 0 {
		return fmt.Errorf("START_CASH must be positive, got %v", c.StartCash)
	}
	if c.Allocation <= 0 || c.Allocation > 1 {
		return fmt.Errorf("ALLOCATION must be in (0, 1], got %v", c.Allocation)
	}
	if c.FeedSource != "ws" && c.FeedSource != "redis" {
		return fmt.Errorf("FEED_SOURCE must be \"ws\" or \"redis\", got %q", c.FeedSource)
	}
	if c.SlippageBps < 0 {
		return fmt.Errorf("SLIPPAGE_BPS must not be negative, got %v", c.SlippageBps)
	}
	if c.Mode == "live" {
		for name, v := range map[string]string{
			"BROKER_BASE_URL":    c.BrokerBaseURL,
			"BROKER_API_KEY":     c.BrokerAPIKey,
			"BROKER_ACCOUNT_ID":  c.BrokerAccountID,
			"BROKER_TOTP_SECRET": c.BrokerTOTPSecret,
		} {
			if v == "" {
				return fmt.Errorf("%s is required in live mode", name)
			}
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid int for %s: %q, using default %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("[config] invalid float for %s: %q, using default %v", key, v, fallback)
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("[config] invalid duration for %s: %q, using default %v", key, v, fallback)
		return fallback
	}
	return d
}
