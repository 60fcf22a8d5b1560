package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"fxpilot/internal/adapters/logger"
)

// Config holds all application configuration.
type Config struct {
	// OANDA API
	OandaToken     string
	OandaAccountID string
	IsPractice     bool

	// OpenAI advisory
	OpenAIKey    string
	AdvisorModel string

	// Instrument
	Pair string // Broker notation, e.g. "EUR_USD"

	// Risk parameters
	AccountBalance     float64
	MaxRiskPerTrade    float64 // Fraction of balance risked per trade
	MinRiskRewardRatio float64
	MaxDailyDrawdown   float64 // Fraction of balance
	MaxOpenPositions   int

	// Position sizing
	MinLotSize  float64
	MaxLotSize  float64
	LotSizeStep float64

	// Stop loss sanity bounds, in pips
	MinSLDistancePips float64
	MaxSLDistancePips float64

	// Circuit breaker
	CBMaxFailures int
	CBResetWindow time.Duration

	// Scheduling
	RunInterval       time.Duration // Orchestrator cycle cadence
	ReconcileInterval time.Duration // Reconciler cadence
	MaxRetries        int           // Bounded retries for external calls

	// Kill switch
	KillSwitchFile string

	// Database
	DBPath string

	// Logging
	LogLevel logger.LogLevel
}

// pipValuePerLot maps a pair (compact notation, no separator) to the pip
// value in USD for one standard lot.
var pipValuePerLot = map[string]float64{
	"EURUSD": 10,
	"GBPUSD": 10,
	"USDJPY": 9.09, // Approximate
	"AUDUSD": 10,
}

// PipValue returns the pip value for a pair at the given lot size. Unknown
// pairs fall back to the USD-quote default of $10 per standard lot. Pair may
// be in either "EURUSD" or "EUR_USD" notation.
func (c *Config) PipValue(pair string, lotSize float64) float64 {
	base, ok := pipValuePerLot[strings.ReplaceAll(pair, "_", "")]
	if !ok {
		base = 10
	}
	return base * lotSize
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env if present; plain env vars are fine too.
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string

	cfg.OandaToken = getEnv("OANDA_API_TOKEN", "")
	cfg.OandaAccountID = getEnv("OANDA_ACCOUNT_ID", "")
	cfg.IsPractice = getEnvAsBool("OANDA_PRACTICE", true) // Default to practice for safety
	if cfg.OandaToken == "" {
		errs = append(errs, "OANDA_API_TOKEN must be set")
	}
	if cfg.OandaAccountID == "" {
		errs = append(errs, "OANDA_ACCOUNT_ID must be set")
	}

	cfg.OpenAIKey = getEnv("OPENAI_API_KEY", "")
	cfg.AdvisorModel = getEnv("ADVISOR_MODEL", "gpt-4o-mini")

	cfg.Pair = getEnv("PAIR", "EUR_USD")

	cfg.AccountBalance, err = getEnvAsFloat("ACCOUNT_BALANCE", 10000)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid ACCOUNT_BALANCE: %v", err))
	} else if cfg.AccountBalance <= 0 {
		errs = append(errs, "ACCOUNT_BALANCE must be positive")
	}

	cfg.MaxRiskPerTrade, err = getEnvAsFloat("MAX_RISK_PER_TRADE", 0.01)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_RISK_PER_TRADE: %v", err))
	} else if cfg.MaxRiskPerTrade <= 0 || cfg.MaxRiskPerTrade > 1 {
		errs = append(errs, "MAX_RISK_PER_TRADE must be in (0, 1]")
	}

	cfg.MinRiskRewardRatio, err = getEnvAsFloat("MIN_RISK_REWARD_RATIO", 2.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MIN_RISK_REWARD_RATIO: %v", err))
	} else if cfg.MinRiskRewardRatio <= 0 {
		errs = append(errs, "MIN_RISK_REWARD_RATIO must be positive")
	}

	cfg.MaxDailyDrawdown, err = getEnvAsFloat("MAX_DAILY_DRAWDOWN", 0.03)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_DAILY_DRAWDOWN: %v", err))
	} else if cfg.MaxDailyDrawdown <= 0 || cfg.MaxDailyDrawdown >= 1 {
		errs = append(errs, "MAX_DAILY_DRAWDOWN must be between 0 and 1 (exclusive)")
	}

	cfg.MaxOpenPositions, err = getEnvAsInt("MAX_OPEN_POSITIONS", 3)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_OPEN_POSITIONS: %v", err))
	} else if cfg.MaxOpenPositions <= 0 {
		errs = append(errs, "MAX_OPEN_POSITIONS must be positive")
	}

	cfg.MinLotSize, err = getEnvAsFloat("MIN_LOT_SIZE", 0.01)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MIN_LOT_SIZE: %v", err))
	}
	cfg.MaxLotSize, err = getEnvAsFloat("MAX_LOT_SIZE", 1.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_LOT_SIZE: %v", err))
	}
	cfg.LotSizeStep, err = getEnvAsFloat("LOT_SIZE_STEP", 0.01)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid LOT_SIZE_STEP: %v", err))
	}
	if cfg.MinLotSize <= 0 || cfg.MaxLotSize < cfg.MinLotSize || cfg.LotSizeStep <= 0 {
		errs = append(errs, "lot size bounds must satisfy 0 < MIN_LOT_SIZE <= MAX_LOT_SIZE and LOT_SIZE_STEP > 0")
	}

	cfg.MinSLDistancePips, err = getEnvAsFloat("MIN_SL_DISTANCE_PIPS", 10)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MIN_SL_DISTANCE_PIPS: %v", err))
	}
	cfg.MaxSLDistancePips, err = getEnvAsFloat("MAX_SL_DISTANCE_PIPS", 100)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_SL_DISTANCE_PIPS: %v", err))
	}

	cfg.CBMaxFailures, err = getEnvAsInt("CB_MAX_FAILURES", 5)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid CB_MAX_FAILURES: %v", err))
	} else if cfg.CBMaxFailures <= 0 {
		errs = append(errs, "CB_MAX_FAILURES must be positive")
	}

	cfg.CBResetWindow, err = getEnvAsDuration("CB_RESET_WINDOW", 60*time.Minute)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid CB_RESET_WINDOW: %v", err))
	}

	cfg.RunInterval, err = getEnvAsDuration("RUN_INTERVAL", 15*time.Minute)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid RUN_INTERVAL: %v", err))
	}
	cfg.ReconcileInterval, err = getEnvAsDuration("RECONCILE_INTERVAL", 2*time.Minute)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid RECONCILE_INTERVAL: %v", err))
	}

	cfg.MaxRetries, err = getEnvAsInt("MAX_RETRIES", 3)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_RETRIES: %v", err))
	} else if cfg.MaxRetries < 0 {
		errs = append(errs, "MAX_RETRIES cannot be negative")
	}

	cfg.KillSwitchFile = getEnv("KILL_SWITCH_FILE", "TRADING_ENABLED.flag")
	cfg.DBPath = getEnv("DB_PATH", "./data/fxpilot.db")
	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

// --- env helpers ---

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvAsInt(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvAsFloat(key string, fallback float64) (float64, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getEnvAsDuration(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}
