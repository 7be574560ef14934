package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	Port        string
	LogLevel    slog.Level

	DatabaseURL string
	RedisURL    string

	Casdoor CasdoorConfig
	PayPal  PayPalConfig
	Kafka   KafkaConfig
	AI      AIConfig
	Mail    MailConfig
	Jobs    JobsConfig
}

type CasdoorConfig struct {
	Endpoint     string
	ClientID     string
	ClientSecret string
	Cert         string
	Organization string
	Application  string
}

// PayPalConfig holds the checkout provider settings. Missing credentials are
// reported when a payment operation is attempted, not at startup.
type PayPalConfig struct {
	ClientID         string
	Secret           string
	APIBase          string
	BrandName        string
	Locale           string
	DefaultReturnURL string
	DefaultCancelURL string
	Timeout          time.Duration
	MaxRetries       int
	RetryWait        time.Duration
	PendingOrderTTL  time.Duration
}

type KafkaConfig struct {
	Brokers       []string
	Topic         string
	ConsumerGroup string
}

type AIConfig struct {
	APIKey      string
	APIURL      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	MaxRetries  int
	RetryWait   time.Duration
}

type MailConfig struct {
	SendGridAPIKey string
	FromName       string
	FromEmail      string
}

type JobsConfig struct {
	ReconcileSchedule string
	MaxReconcileTries int
	IdempotencyKeyTTL time.Duration
}

// ConfigError reports a missing or malformed configuration value.
type ConfigError struct {
	Key     string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s is not configured", e.Key)
}

// Credentials returns a ConfigError when the PayPal client id or secret is absent.
func (p PayPalConfig) Credentials() error {
	if p.ClientID == "" || p.Secret == "" {
		return &ConfigError{Key: "PAYPAL_CLIENT_ID", Message: "PayPal credentials not configured"}
	}
	return nil
}

func LoadConfig() (*Config, error) {
	// .env is optional; real environment variables take precedence
	_ = godotenv.Load()

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Port:        getEnv("PORT", "8080"),
		LogLevel:    parseLogLevel(getEnv("LOG_LEVEL", "info")),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
		Casdoor: CasdoorConfig{
			Endpoint:     os.Getenv("CASDOOR_ENDPOINT"),
			ClientID:     os.Getenv("CASDOOR_CLIENT_ID"),
			ClientSecret: os.Getenv("CASDOOR_CLIENT_SECRET"),
			Cert:         os.Getenv("CASDOOR_CERT"),
			Organization: os.Getenv("CASDOOR_ORGANIZATION"),
			Application:  os.Getenv("CASDOOR_APPLICATION"),
		},
		PayPal: PayPalConfig{
			ClientID:         os.Getenv("PAYPAL_CLIENT_ID"),
			Secret:           os.Getenv("PAYPAL_SECRET_KEY"),
			APIBase:          getEnv("PAYPAL_API_BASE", "https://api-m.sandbox.paypal.com"),
			BrandName:        getEnv("PAYPAL_BRAND_NAME", "CCPQ Academy"),
			Locale:           getEnv("PAYPAL_LOCALE", "en-ZA"),
			DefaultReturnURL: getEnv("PAYPAL_RETURN_URL", "https://ccpq.co.za/payment-success"),
			DefaultCancelURL: getEnv("PAYPAL_CANCEL_URL", "https://ccpq.co.za/courses"),
			Timeout:          getDuration("PAYPAL_TIMEOUT", 15*time.Second),
			MaxRetries:       getInt("PAYPAL_MAX_RETRIES", 2),
			RetryWait:        getDuration("PAYPAL_RETRY_WAIT", 500*time.Millisecond),
			PendingOrderTTL:  getDuration("PENDING_ORDER_TTL", 3*time.Hour),
		},
		Kafka: KafkaConfig{
			Brokers:       splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:         getEnv("KAFKA_TOPIC", "academy.events"),
			ConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "academy-service"),
		},
		AI: AIConfig{
			APIKey:      os.Getenv("AI_API_KEY"),
			APIURL:      getEnv("AI_API_URL", "https://ai.gateway.lovable.dev/v1/chat/completions"),
			Model:       getEnv("AI_MODEL", "google/gemini-2.5-flash-lite"),
			Temperature: getFloat("AI_TEMPERATURE", 0.7),
			MaxTokens:   getInt("AI_MAX_TOKENS", 1500),
			Timeout:     getDuration("AI_TIMEOUT", 60*time.Second),
			MaxRetries:  getInt("AI_MAX_RETRIES", 3),
			RetryWait:   getDuration("AI_RETRY_WAIT", time.Second),
		},
		Mail: MailConfig{
			SendGridAPIKey: os.Getenv("SENDGRID_API_KEY"),
			FromName:       getEnv("MAIL_FROM_NAME", "CCPQ Academy"),
			FromEmail:      getEnv("MAIL_FROM_EMAIL", "no-reply@ccpq.co.za"),
		},
		Jobs: JobsConfig{
			ReconcileSchedule: getEnv("RECONCILE_SCHEDULE", "@every 5m"),
			MaxReconcileTries: getInt("RECONCILE_MAX_ATTEMPTS", 8),
			IdempotencyKeyTTL: getDuration("IDEMPOTENCY_KEY_TTL", 24*time.Hour),
		},
	}

	if cfg.DatabaseURL == "" {
		return nil, &ConfigError{Key: "DATABASE_URL"}
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getFloat(key string, defaultValue float64) float64 {
	value, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	return result
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
