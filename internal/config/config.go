// Package config loads the environment-variable surface spec §6 defines.
// Loading mechanics themselves are an external-collaborator concern per
// spec §1 — this stays as close to the teacher's requireEnv/getEnvOrDefault
// shape (cmd/engine/main.go) as the larger key table allows, with a
// godotenv.Load() added for local-dev .env files (ChoSanghyuk-blackholedex
// carries the same dependency for the same reason).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full environment-variable surface from spec §6.
type Config struct {
	TradingEnabled bool
	PaperMode      bool

	BaseToken    string
	TickInterval time.Duration
	PoolsPath    string

	CapitalBase float64
	FeeReserve  float64
	InputSize   float64

	MinSpreadPct     float64
	MaxGrossReturn   float64
	MaxSkew          time.Duration
	MarginMultiplier float64

	DailyTradeCap  int
	DailyLossLimit float64
	FailCap        int

	DefaultFeeRate  float64
	TipPercentile   int
	TipTargetFrac   float64
	TipCapGrossFrac float64
	TipCapNetFrac   float64
	TipAbsCap       float64
	TipMin          float64
	GasMult         float64

	MinSubmitInterval time.Duration
	QueueCapacity     int
	JobDeadline       time.Duration

	PriceFeedURL string
	PrimaryURL   string
	SecondaryURL string

	KillSwitchPath string
	APIAuthToken   string
	Port           string
	Wallet         string

	DatabaseURL string

	LogLevel string
}

// Load reads .env (if present, ignored if absent — local dev only) then
// the process environment, applying the defaults spec §4 calls out. A
// present key that fails to parse is a configuration error (spec §6's
// exit-code contract: non-zero on "invalid numeric") — it is collected
// and returned from Load, before Validate runs, rather than silently
// replaced by its default, which would mask a typo'd env value at startup.
func Load() (*Config, error) {
	_ = godotenv.Load() // local dev convenience; no error if missing

	var parseErrs []string

	getFloat := func(key string, fallback float64) float64 {
		v := os.Getenv(key)
		if v == "" {
			return fallback
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			parseErrs = append(parseErrs, fmt.Sprintf("%s: invalid numeric value %q", key, v))
			return fallback
		}
		return f
	}
	getInt := func(key string, fallback int) int {
		v := os.Getenv(key)
		if v == "" {
			return fallback
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			parseErrs = append(parseErrs, fmt.Sprintf("%s: invalid numeric value %q", key, v))
			return fallback
		}
		return n
	}
	getBool := func(key string, fallback bool) bool {
		v := os.Getenv(key)
		if v == "" {
			return fallback
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			parseErrs = append(parseErrs, fmt.Sprintf("%s: invalid boolean value %q", key, v))
			return fallback
		}
		return b
	}

	c := &Config{
		TradingEnabled:    getBool("TRADING_ENABLED", true),
		PaperMode:         getBool("PAPER_MODE", false),
		BaseToken:         getOrDefault("BASE_TOKEN", "SOL"),
		TickInterval:      time.Duration(getInt("TICK_INTERVAL_MS", 250)) * time.Millisecond,
		PoolsPath:         getOrDefault("POOLS_PATH", "pools.json"),
		CapitalBase:       getFloat("CAPITAL_BASE", 10.0),
		FeeReserve:        getFloat("FEE_RESERVE", 0.5),
		InputSize:         getFloat("INPUT_SIZE", 1.0),
		MinSpreadPct:      getFloat("MIN_SPREAD_PCT", 0.0),
		MaxGrossReturn:    getFloat("MAX_GROSS_RETURN", 0.20),
		MaxSkew:           time.Duration(getInt("MAX_SKEW_MS", 1000)) * time.Millisecond,
		MarginMultiplier:  getFloat("MARGIN_MULTIPLIER", 1.05),
		DailyTradeCap:     getInt("DAILY_TRADE_CAP", 500),
		DailyLossLimit:    getFloat("DAILY_LOSS_LIMIT", 1.0),
		FailCap:           getInt("FAIL_CAP", 3),
		DefaultFeeRate:    getFloat("DEFAULT_FEE_RATE", 0.0025),
		TipPercentile:     getInt("TIP_PERCENTILE", 99),
		TipTargetFrac:     getFloat("TIP_TARGET_FRAC", 0.10),
		TipCapGrossFrac:   getFloat("TIP_CAP_GROSS_FRAC", 0.17),
		TipCapNetFrac:     getFloat("TIP_CAP_NET_FRAC", 0.30),
		TipAbsCap:         getFloat("TIP_ABS_CAP", 0.01),
		TipMin:            getFloat("TIP_MIN", 0.0001),
		GasMult:           getFloat("GAS_MULT", 1.5),
		MinSubmitInterval: time.Duration(getInt("MIN_SUBMIT_INTERVAL_MS", 1100)) * time.Millisecond,
		QueueCapacity:     getInt("QUEUE_CAPACITY", 100),
		JobDeadline:       time.Duration(getInt("JOB_DEADLINE_MS", 500)) * time.Millisecond,
		PriceFeedURL:      os.Getenv("PRICE_FEED_URL"),
		PrimaryURL:        os.Getenv("PRIMARY_URL"),
		SecondaryURL:      os.Getenv("SECONDARY_URL"),
		KillSwitchPath:    getOrDefault("KILL_SWITCH_PATH", "/tmp/triarb.killswitch"),
		APIAuthToken:      os.Getenv("API_AUTH_TOKEN"),
		Port:              getOrDefault("PORT", "5339"),
		Wallet:            os.Getenv("WALLET"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		LogLevel:          getOrDefault("LOG_LEVEL", "info"),
	}

	if len(parseErrs) > 0 {
		return nil, fmt.Errorf("invalid config values: %s", strings.Join(parseErrs, "; "))
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the parsed values: missing URLs, non-positive capital,
// and out-of-range fee reserve, input size, margin multiplier and queue
// capacity. Unparseable numerics are reported earlier, by Load.
func (c *Config) Validate() error {
	if c.PriceFeedURL == "" {
		return fmt.Errorf("PRICE_FEED_URL is required")
	}
	if c.PrimaryURL == "" {
		return fmt.Errorf("PRIMARY_URL is required")
	}
	if c.SecondaryURL == "" {
		return fmt.Errorf("SECONDARY_URL is required")
	}
	if c.CapitalBase <= 0 {
		return fmt.Errorf("CAPITAL_BASE must be > 0, got %v", c.CapitalBase)
	}
	if c.FeeReserve < 0 || c.FeeReserve >= c.CapitalBase {
		return fmt.Errorf("FEE_RESERVE must be in [0, CAPITAL_BASE), got %v", c.FeeReserve)
	}
	if c.InputSize <= 0 {
		return fmt.Errorf("INPUT_SIZE must be > 0, got %v", c.InputSize)
	}
	if c.MarginMultiplier <= 0 {
		return fmt.Errorf("MARGIN_MULTIPLIER must be > 0, got %v", c.MarginMultiplier)
	}
	if c.QueueCapacity <= 0 {
		return fmt.Errorf("QUEUE_CAPACITY must be > 0, got %d", c.QueueCapacity)
	}
	return nil
}

func getOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
