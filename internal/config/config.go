package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds comms service configuration loaded from the environment.
type Config struct {
	AppName             string
	LogLevel            string
	LogFormat           string
	HTTPPort            string
	Environment         string
	RabbitURL           string
	CommsQueue          string
	DeadLetterQueue     string
	PrefetchCount       int
	WorkerCount         int
	MaxDeliveries       int
	SendGridAPIKey      string
	SendGridFromAddress string
	SendGridEndpoint    string
	AlertEmail          string
	SlackWebhookURL     string
	RedisURL            string
	ProviderTimeout     time.Duration
	SuppressionTTL      time.Duration
}

// Load loads configuration and performs basic validation.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppName:             getEnv("APP_NAME", "comms_service"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogFormat:           getEnv("LOG_FORMAT", "text"),
		HTTPPort:            getEnv("HTTP_PORT", "8083"),
		Environment:         getEnv("ENVIRONMENT", "Development"),
		RabbitURL:           getEnv("RABBITMQ_URL", ""),
		CommsQueue:          getEnv("COMMS_QUEUE", "comms.queue"),
		DeadLetterQueue:     getEnv("COMMS_DLQ", "comms.failed.queue"),
		PrefetchCount:       getEnvAsInt("COMMS_PREFETCH", 50),
		WorkerCount:         getEnvAsInt("WORKER_COUNT", 5),
		MaxDeliveries:       getEnvAsInt("MAX_DELIVERIES", 4),
		SendGridAPIKey:      getEnv("SENDGRID_API_KEY", ""),
		SendGridFromAddress: getEnv("SENDGRID_FROM_ADDRESS", ""),
		SendGridEndpoint:    getEnv("SENDGRID_ENDPOINT", ""),
		AlertEmail:          getEnv("ALERT_EMAIL", ""),
		SlackWebhookURL:     getEnv("SLACK_WEBHOOK_URL", ""),
		RedisURL:            getEnv("REDIS_URL", ""),
		ProviderTimeout:     getEnvAsDuration("PROVIDER_TIMEOUT", 10*time.Second),
		SuppressionTTL:      getEnvAsDuration("SUPPRESSION_TTL", 24*time.Hour),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsProduction reports whether real subscribers may be emailed. Anything
// other than production gets the broadcast list redacted.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "Production")
}

func (c *Config) validate() error {
	var missing []string
	if c.RabbitURL == "" {
		missing = append(missing, "RABBITMQ_URL")
	}
	if c.SendGridAPIKey == "" {
		missing = append(missing, "SENDGRID_API_KEY")
	}
	if c.SendGridFromAddress == "" {
		missing = append(missing, "SENDGRID_FROM_ADDRESS")
	}
	if c.AlertEmail == "" {
		missing = append(missing, "ALERT_EMAIL")
	}
	if c.SlackWebhookURL == "" {
		missing = append(missing, "SLACK_WEBHOOK_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missing)
	}
	return nil
}

func getEnv(key, def string) string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	return value
}

func getEnvAsInt(key string, def int) int {
	if value, ok := os.LookupEnv(key); ok {
		i, err := strconv.Atoi(value)
		if err != nil {
			log.Printf("invalid int for %s, using default %d: %v", key, def, err)
			return def
		}
		return i
	}
	return def
}

func getEnvAsDuration(key string, def time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(value)
		if err != nil {
			log.Printf("invalid duration for %s, using default %s: %v", key, def, err)
			return def
		}
		return d
	}
	return def
}
