package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	PostgreDSN string
	LogLevel   string

	// Website configuration; action links embedded in notifications are
	// built from this base (e.g. "https://yourdomain.com").
	BaseURL string

	// Shared secret the scheduled trigger endpoint expects as a bearer token.
	ScanSecret string

	// IANA timezone name used to decide which calendar day "today" is
	// when matching renewal dates.
	ScanTimezone string

	// Hour of day (0-23, in ScanTimezone) for the in-process daily scan.
	ScanHour int

	// Per-channel send timeout for the notification dispatcher.
	ChannelTimeout time.Duration

	// HTTP server port
	ServerPort string

	// Telegram bot configuration
	TelegramBotToken string

	// SMTP configuration for the email channel
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SMTPSender   string

	// Stripe configuration
	StripeSecretKey     string
	StripeWebhookSecret string
}

func Load() (*Config, error) {
	// .env is optional outside local development
	_ = godotenv.Load()

	cfg := &Config{
		PostgreDSN:   os.Getenv("POSTGRE_DSN"),
		LogLevel:     getEnvOrDefault("LOG_LEVEL", "info"),
		BaseURL:      os.Getenv("BASE_URL"),
		ScanSecret:   os.Getenv("SCAN_SECRET"),
		ScanTimezone: getEnvOrDefault("SCAN_TIMEZONE", "UTC"),
		ServerPort:   getEnvOrDefault("SERVER_PORT", "8080"),

		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     getEnvOrDefault("SMTP_PORT", "587"),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		SMTPSender:   os.Getenv("SMTP_SENDER"),

		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
	}

	scanHour, err := strconv.Atoi(getEnvOrDefault("SCAN_HOUR", "9"))
	if err != nil || scanHour < 0 || scanHour > 23 {
		return nil, fmt.Errorf("SCAN_HOUR must be an hour between 0 and 23")
	}
	cfg.ScanHour = scanHour

	timeoutSecs, err := strconv.Atoi(getEnvOrDefault("NOTIFY_CHANNEL_TIMEOUT", "10"))
	if err != nil || timeoutSecs <= 0 {
		return nil, fmt.Errorf("NOTIFY_CHANNEL_TIMEOUT must be a positive number of seconds")
	}
	cfg.ChannelTimeout = time.Duration(timeoutSecs) * time.Second

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	required := map[string]string{
		"POSTGRE_DSN": c.PostgreDSN,
		"BASE_URL":    c.BaseURL,
		"SCAN_SECRET": c.ScanSecret,
	}

	for key, value := range required {
		if value == "" {
			return fmt.Errorf("required environment variable %s is not set", key)
		}
	}

	if _, err := time.LoadLocation(c.ScanTimezone); err != nil {
		return fmt.Errorf("invalid SCAN_TIMEZONE %q: %w", c.ScanTimezone, err)
	}

	return nil
}

// Location returns the reference timezone for calendar-day matching.
// validate() already proved the name loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.ScanTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) HasTelegramConfig() bool {
	return c.TelegramBotToken != ""
}

func (c *Config) HasSMTPConfig() bool {
	return c.SMTPHost != "" && c.SMTPSender != ""
}

func (c *Config) HasStripeConfig() bool {
	return c.StripeSecretKey != "" && c.StripeWebhookSecret != ""
}

// getEnvOrDefault returns the environment variable value or a default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
