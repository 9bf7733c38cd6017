package config

import (
	"os"
	"testing"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("TELEGRAM_BOT_TOKEN", "123456:test-token")
	t.Setenv("TELEGRAM_CHANNEL_ID", "-1001234567890")
	t.Setenv("OPENROUTER_API_KEY", "sk-or-test")
	t.Setenv("BYBIT_API_KEY", "key")
	t.Setenv("BYBIT_API_SECRET", "secret")
	t.Setenv("ACCOUNT_BALANCE", "1000")
	t.Setenv("RISK_PERCENT", "5")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.TelegramChannelID != -1001234567890 {
		t.Errorf("expected channel id -1001234567890, got %d", cfg.TelegramChannelID)
	}
	if cfg.IngestMode != "push" {
		t.Errorf("expected default ingest mode push, got %s", cfg.IngestMode)
	}
	if cfg.PollIntervalSec != 2 {
		t.Errorf("expected default poll interval 2, got %d", cfg.PollIntervalSec)
	}
	if cfg.PollLimit != 10 {
		t.Errorf("expected default poll limit 10, got %d", cfg.PollLimit)
	}
	if cfg.OpsAddr != ":8080" {
		t.Errorf("expected default ops addr :8080, got %s", cfg.OpsAddr)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	setRequiredEnv(t)
	os.Unsetenv("BYBIT_API_KEY")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing BYBIT_API_KEY")
	}
}

func TestLoadInvalidBalance(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ACCOUNT_BALANCE", "-10")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for negative ACCOUNT_BALANCE")
	}
}

func TestLoadRiskPercentOutOfRange(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("RISK_PERCENT", "150")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for RISK_PERCENT above 100")
	}
}

func TestLoadInvalidIngestMode(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("INGEST_MODE", "both")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown INGEST_MODE")
	}
}
