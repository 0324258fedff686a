// Package config loads application configuration from the environment,
// with optional .env file support.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/quantfold/ictsignal/models"
)

// Load initializes configuration from environment variables.
func Load() (*models.Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}

	cfg := models.Config{
		Addr:             getEnvWithDefault("ADDR", ":8080"),
		LogLevel:         getEnvWithDefault("LOG_LEVEL", "info"),
		CacheTTL:         getEnvIntWithDefault("CACHE_TTL", 300),
		CandleLimit:      getEnvIntWithDefault("CANDLE_LIMIT", 250),
		ProviderBaseURL:  os.Getenv("PROVIDER_BASE_URL"),
		ProviderAPIKey:   os.Getenv("PROVIDER_API_KEY"),
		RequestTimeout:   getEnvIntWithDefault("REQUEST_TIMEOUT", 30),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		TelegramToken:    os.Getenv("TELEGRAM_TOKEN"),
		TelegramChatID:   getEnvInt64WithDefault("TELEGRAM_CHAT_ID", 0),
		SignalRefreshSec: getEnvIntWithDefault("SIGNAL_REFRESH_SEC", 60),
		RateLimitPerSec:  getEnvFloatWithDefault("RATE_LIMIT_PER_SEC", 5),
	}

	return &cfg, nil
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
