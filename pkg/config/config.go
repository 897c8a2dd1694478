package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the signal engine.
type Config struct {
	Port string

	// CoinDCX
	CoinDCXBaseURL   string
	CoinDCXAPIKey    string
	CoinDCXAPISecret string
	UseMockFeed      bool

	// Trading universe and loop
	Symbols            []string
	SignalScanInterval time.Duration
	MinSignalStrength  float64
	MaxOpenPositions   int
	EnableLong         bool
	EnableShort        bool

	// Paper wallet
	InitialBalance float64

	// Risk
	MaxPositionSizePercent  float64
	Leverage                float64
	StopLossPercent         float64
	TakeProfitPercent       float64
	TrailingStop            bool
	TrailingStopPercent     float64
	UseATRStopLoss          bool
	ATRStopLossMultiplier   float64
	ATRTakeProfitMultiplier float64

	// Strategy
	StrategyConfigPath string

	// Database
	DBPath string

	// Auth
	JWTSecret string
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	return &Config{
		Port:                    getEnv("PORT", "8080"),
		CoinDCXBaseURL:          getEnv("COINDCX_BASE_URL", "https://public.coindcx.com"),
		CoinDCXAPIKey:           os.Getenv("COINDCX_API_KEY"),
		CoinDCXAPISecret:        os.Getenv("COINDCX_API_SECRET"),
		UseMockFeed:             getEnv("USE_MOCK_FEED", "false") == "true",
		Symbols:                 splitAndTrim(getEnv("TRADING_PAIRS", "B-BTC_USDT,B-ETH_USDT")),
		SignalScanInterval:      time.Duration(getEnvInt("SIGNAL_SCAN_INTERVAL", 60)) * time.Second,
		MinSignalStrength:       getEnvFloat("MIN_SIGNAL_STRENGTH", 0.6),
		MaxOpenPositions:        getEnvInt("MAX_OPEN_POSITIONS", 3),
		EnableLong:              getEnv("ENABLE_LONG", "true") == "true",
		EnableShort:             getEnv("ENABLE_SHORT", "true") == "true",
		InitialBalance:          getEnvFloat("INITIAL_BALANCE", 1000.0),
		MaxPositionSizePercent:  getEnvFloat("MAX_POSITION_SIZE_PERCENT", 10.0),
		Leverage:                getEnvFloat("LEVERAGE", 5.0),
		StopLossPercent:         getEnvFloat("STOP_LOSS_PERCENT", 2.0),
		TakeProfitPercent:       getEnvFloat("TAKE_PROFIT_PERCENT", 4.0),
		TrailingStop:            getEnv("TRAILING_STOP", "true") == "true",
		TrailingStopPercent:     getEnvFloat("TRAILING_STOP_PERCENT", 1.5),
		UseATRStopLoss:          getEnv("USE_ATR_STOP_LOSS", "false") == "true",
		ATRStopLossMultiplier:   getEnvFloat("ATR_STOP_LOSS_MULTIPLIER", 1.5),
		ATRTakeProfitMultiplier: getEnvFloat("ATR_TAKE_PROFIT_MULTIPLIER", 3.0),
		StrategyConfigPath:      getEnv("STRATEGY_CONFIG_PATH", ""),
		DBPath:                  getEnv("DB_PATH", "./data/signals.db"),
		JWTSecret:               getEnv("JWT_SECRET", "dev-secret"),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitAndTrim(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
