package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("REMINDER_THRESHOLDS", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.PaystackBaseURL != "https://api.paystack.co" {
		t.Fatalf("expected default paystack base url, got %s", cfg.PaystackBaseURL)
	}
	if cfg.SlotCacheTTL != 5*time.Minute {
		t.Fatalf("expected default slot cache ttl, got %s", cfg.SlotCacheTTL)
	}
	if len(cfg.ReminderThresholds) != 2 || cfg.ReminderThresholds[0] != 24*time.Hour || cfg.ReminderThresholds[1] != time.Hour {
		t.Fatalf("expected default reminder thresholds, got %v", cfg.ReminderThresholds)
	}
	if cfg.ReminderWindow != 450*time.Second {
		t.Fatalf("expected default reminder window, got %s", cfg.ReminderWindow)
	}
	if len(cfg.PaymentChannels) != 2 {
		t.Fatalf("expected default payment channels, got %v", cfg.PaymentChannels)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	t.Setenv("PAYSTACK_SECRET_KEY", "sk_test_abc")
	t.Setenv("PAYMENT_CHANNELS", "card, bank_transfer")
	t.Setenv("GATEWAY_RETRY_MAX_ATTEMPTS", "5")
	t.Setenv("REMINDER_THRESHOLDS", "48h,2h,30m")
	t.Setenv("VIDEO_TOKEN_TTL", "90m")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.Env != "production" {
		t.Fatalf("expected env override, got %s", cfg.Env)
	}
	if cfg.DatabaseURL != "postgres://user@host/db" {
		t.Fatalf("expected db override, got %s", cfg.DatabaseURL)
	}
	if cfg.PaystackSecretKey != "sk_test_abc" {
		t.Fatalf("expected secret key override, got %s", cfg.PaystackSecretKey)
	}
	if len(cfg.PaymentChannels) != 2 || cfg.PaymentChannels[1] != "bank_transfer" {
		t.Fatalf("expected payment channels override, got %v", cfg.PaymentChannels)
	}
	if cfg.GatewayRetryMax != 5 {
		t.Fatalf("expected retry override, got %d", cfg.GatewayRetryMax)
	}
	if len(cfg.ReminderThresholds) != 3 || cfg.ReminderThresholds[2] != 30*time.Minute {
		t.Fatalf("expected threshold override, got %v", cfg.ReminderThresholds)
	}
	if cfg.VideoTokenTTL != 90*time.Minute {
		t.Fatalf("expected video token ttl override, got %s", cfg.VideoTokenTTL)
	}
}

func TestLoadIgnoresMalformedDurations(t *testing.T) {
	t.Setenv("REMINDER_THRESHOLDS", "not-a-duration,also-bad")
	cfg := Load()
	if len(cfg.ReminderThresholds) != 2 || cfg.ReminderThresholds[0] != 24*time.Hour {
		t.Fatalf("expected fallback thresholds, got %v", cfg.ReminderThresholds)
	}
}
