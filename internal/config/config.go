package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// App holds all environment-driven application configuration.
type App struct {
	AlphaVantageAPIKey string
	OutputDir          string
	SymbolsConfigPath  string
	FactorsConfigPath  string
	ResultsConfigPath  string
	HTTPAddr           string
	LogLevel           string
	RequestTimeout     int // seconds
	RequestsPerMin     int
	CacheEnabled       bool
	CacheTTLMinutes    int
	DatabaseURL        string
	TelegramBotToken   string
	TelegramChatID     int64
	BacktestDays       int
	InitialBalance     float64
}

// Load initializes configuration from environment variables.
func Load() *App {
	// Load environment variables from .env file if present.
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}

	return &App{
		AlphaVantageAPIKey: os.Getenv("ALPHAVANTAGE_API_KEY"),
		OutputDir:          getEnvWithDefault("OUTPUT_DIR", "./output"),
		SymbolsConfigPath:  getEnvWithDefault("SYMBOLS_CONFIG", "config/symbols.yaml"),
		FactorsConfigPath:  getEnvWithDefault("FACTORS_CONFIG", "config/factors.yaml"),
		ResultsConfigPath:  getEnvWithDefault("RESULTS_CONFIG", "config/results.yaml"),
		HTTPAddr:           getEnvWithDefault("HTTP_ADDR", ":8080"),
		LogLevel:           getEnvWithDefault("LOG_LEVEL", "info"),
		RequestTimeout:     getEnvIntWithDefault("REQUEST_TIMEOUT", 30),
		RequestsPerMin:     getEnvIntWithDefault("REQUESTS_PER_MIN", 5),
		CacheEnabled:       getEnvBoolWithDefault("CACHE_ENABLED", true),
		CacheTTLMinutes:    getEnvIntWithDefault("CACHE_TTL_MINUTES", 60),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		TelegramBotToken:   os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:     getEnvInt64WithDefault("TELEGRAM_CHAT_ID", 0),
		BacktestDays:       getEnvIntWithDefault("BACKTEST_DAYS", 30),
		InitialBalance:     getEnvFloatWithDefault("INITIAL_BALANCE", 10000.0),
	}
}

// Helper functions for environment variable handling
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64WithDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatWithDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolWithDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}
