package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string
	DatabaseURL   string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	SlotCacheTTL  time.Duration

	// Payment gateway (Paystack-compatible wire contract)
	PaystackSecretKey     string
	PaystackBaseURL       string
	PaystackCallbackURL   string
	PaymentChannels       []string
	GatewayTimeout        time.Duration
	GatewayRetryMax       int
	GatewayRetryBaseDelay time.Duration

	// Video infrastructure
	VideoAPIKey      string
	VideoBaseURL     string
	VideoTokenSecret string
	VideoTokenTTL    time.Duration

	// Reminder scheduler
	ReminderInterval   time.Duration
	ReminderThresholds []time.Duration
	ReminderWindow     time.Duration

	// Notification dispatch collaborator
	NotifyEndpoint string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		SlotCacheTTL:  getEnvAsDuration("SLOT_CACHE_TTL", 5*time.Minute),

		PaystackSecretKey:     getEnv("PAYSTACK_SECRET_KEY", ""),
		PaystackBaseURL:       getEnv("PAYSTACK_BASE_URL", "https://api.paystack.co"),
		PaystackCallbackURL:   getEnv("PAYSTACK_CALLBACK_URL", ""),
		PaymentChannels:       getEnvAsSlice("PAYMENT_CHANNELS", []string{"card", "mobile_money"}),
		GatewayTimeout:        getEnvAsDuration("GATEWAY_TIMEOUT", 10*time.Second),
		GatewayRetryMax:       getEnvAsInt("GATEWAY_RETRY_MAX_ATTEMPTS", 3),
		GatewayRetryBaseDelay: getEnvAsDuration("GATEWAY_RETRY_BASE_DELAY", 500*time.Millisecond),

		VideoAPIKey:      getEnv("VIDEO_API_KEY", ""),
		VideoBaseURL:     getEnv("VIDEO_BASE_URL", ""),
		VideoTokenSecret: getEnv("VIDEO_TOKEN_SECRET", ""),
		VideoTokenTTL:    getEnvAsDuration("VIDEO_TOKEN_TTL", 2*time.Hour),

		ReminderInterval:   getEnvAsDuration("REMINDER_INTERVAL", 15*time.Minute),
		ReminderThresholds: getEnvAsDurations("REMINDER_THRESHOLDS", []time.Duration{24 * time.Hour, time.Hour}),
		ReminderWindow:     getEnvAsDuration("REMINDER_WINDOW", 450*time.Second),

		NotifyEndpoint: getEnv("NOTIFY_ENDPOINT", ""),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func getEnvAsDurations(key string, defaultValue []time.Duration) []time.Duration {
	parts := getEnvAsSlice(key, nil)
	if len(parts) == 0 {
		return defaultValue
	}
	out := make([]time.Duration, 0, len(parts))
	for _, p := range parts {
		if d, err := time.ParseDuration(p); err == nil && d > 0 {
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
