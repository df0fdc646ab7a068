package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"facturabot/internal/logger"
	"facturabot/pkg/models"
)

type Config struct {
	// Chat transport
	TelegramToken string
	WebhookSecret string
	DefaultChatID int64 // chat the CLI `issue` command notifies

	// Ledger
	GoogleSheetURL       string
	GoogleSheetWorksheet string

	// Optional: receptor reference table
	LookupWorksheet string

	// Optional: archive target
	DriveFolderID string

	// Authorization gateway
	AFIPBaseURL   string
	AFIPToken     string
	IssuerCUIT    string
	IssuerName    string
	IssuerAddress string

	// Fiscal defaults
	SalesPoint  int
	InvoiceType int
	Concept     models.Concept

	// Per-step timeout budgets
	AuthTimeout    time.Duration
	RenderTimeout  time.Duration
	ArchiveTimeout time.Duration
	NotifyTimeout  time.Duration
	WatchdogAfter  time.Duration

	// HTTP
	HTTPPort int

	// Logging
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	config := &Config{
		TelegramToken:        getEnv("TELEGRAM_TOKEN", ""),
		WebhookSecret:        getEnv("TELEGRAM_WEBHOOK_SECRET", ""),
		DefaultChatID:        getEnvInt64("TELEGRAM_DEFAULT_CHAT_ID", 0),
		GoogleSheetURL:       getEnv("GOOGLE_SHEET_URL", ""),
		GoogleSheetWorksheet: getEnv("GOOGLE_SHEET_WORKSHEET", "Facturas"),
		LookupWorksheet:      getEnv("LOOKUP_WORKSHEET", ""),
		DriveFolderID:        getEnv("DRIVE_FOLDER_ID", ""),
		AFIPBaseURL:          getEnv("AFIP_BASE_URL", ""),
		AFIPToken:            getEnv("AFIP_TOKEN", ""),
		IssuerCUIT:           getEnv("ISSUER_CUIT", ""),
		IssuerName:           getEnv("ISSUER_NAME", ""),
		IssuerAddress:        getEnv("ISSUER_ADDRESS", ""),
		SalesPoint:           getEnvInt("SALES_POINT", 1),
		InvoiceType:          getEnvInt("INVOICE_TYPE", 11),
		Concept:              models.Concept(getEnvInt("CONCEPT", 1)),
		AuthTimeout:          getEnvSeconds("AUTH_TIMEOUT_SECONDS", 20),
		RenderTimeout:        getEnvSeconds("RENDER_TIMEOUT_SECONDS", 12),
		ArchiveTimeout:       getEnvSeconds("ARCHIVE_TIMEOUT_SECONDS", 15),
		NotifyTimeout:        getEnvSeconds("NOTIFY_TIMEOUT_SECONDS", 12),
		WatchdogAfter:        getEnvSeconds("WATCHDOG_SECONDS", 35),
		HTTPPort:             getEnvInt("HTTP_PORT", 8080),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogFormat:            getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:        getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:            getEnv("LOG_OUTPUT", "stdout"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required")
	}
	if c.GoogleSheetURL == "" {
		return fmt.Errorf("GOOGLE_SHEET_URL is required")
	}
	if c.AFIPBaseURL == "" {
		return fmt.Errorf("AFIP_BASE_URL is required")
	}
	if c.IssuerCUIT == "" {
		return fmt.Errorf("ISSUER_CUIT is required")
	}
	if c.SalesPoint <= 0 {
		return fmt.Errorf("SALES_POINT must be a positive integer")
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config.
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvSeconds(key string, defaultSeconds int) time.Duration {
	return time.Duration(getEnvInt(key, defaultSeconds)) * time.Second
}
