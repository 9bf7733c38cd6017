package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config хранит все настройки процесса, загружаемые из окружения.
// Любое невалидное значение фатально на старте, до сборки пайплайна.
type Config struct {
	TelegramBotToken  string `validate:"required"`
	TelegramChannelID int64  `validate:"required"`

	OpenRouterAPIKey string `validate:"required"`
	OpenRouterModel  string `validate:"required"`

	BybitAPIKey    string `validate:"required"`
	BybitAPISecret string `validate:"required"`

	// Баланс счета и процент риска на одну сделку
	AccountBalance float64 `validate:"gt=0"`
	RiskPercent    float64 `validate:"gt=0,lte=100"`

	// Режим получения сообщений: push (подписка) или poll (периодический опрос)
	IngestMode              string `validate:"oneof=push poll"`
	PollIntervalSec         int    `validate:"gt=0"`
	PollLimit               int    `validate:"gt=0"`
	ConnectivityIntervalSec int    `validate:"gt=0"`

	OpsAddr  string `validate:"required"`
	LogLevel string
}

// Load читает .env и переменные окружения, затем валидирует конфиг
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	channelID, err := parseInt64(os.Getenv("TELEGRAM_CHANNEL_ID"))
	if err != nil {
		return nil, fmt.Errorf("invalid TELEGRAM_CHANNEL_ID: %v", err)
	}

	balance, err := parseFloat(os.Getenv("ACCOUNT_BALANCE"))
	if err != nil {
		return nil, fmt.Errorf("invalid ACCOUNT_BALANCE: %v", err)
	}

	riskPercent, err := parseFloat(os.Getenv("RISK_PERCENT"))
	if err != nil {
		return nil, fmt.Errorf("invalid RISK_PERCENT: %v", err)
	}

	cfg := &Config{
		TelegramBotToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChannelID: channelID,

		OpenRouterAPIKey: os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterModel:  getEnv("OPENROUTER_MODEL", "openai/gpt-4o-mini"),

		BybitAPIKey:    os.Getenv("BYBIT_API_KEY"),
		BybitAPISecret: os.Getenv("BYBIT_API_SECRET"),

		AccountBalance: balance,
		RiskPercent:    riskPercent,

		IngestMode:              getEnv("INGEST_MODE", "push"),
		PollIntervalSec:         getEnvInt("POLL_INTERVAL_SEC", 2),
		PollLimit:               getEnvInt("POLL_LIMIT", 10),
		ConnectivityIntervalSec: getEnvInt("CONNECTIVITY_INTERVAL_SEC", 30),

		OpsAddr:  getEnv("OPS_ADDR", ":8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %v", err)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func parseInt64(v string) (int64, error) {
	if v == "" {
		return 0, fmt.Errorf("value is empty")
	}
	return strconv.ParseInt(v, 10, 64)
}

func parseFloat(v string) (float64, error) {
	if v == "" {
		return 0, fmt.Errorf("value is empty")
	}
	return strconv.ParseFloat(v, 64)
}
