// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port     string
	LogLevel string

	// Classifier
	GeminiAPIKey       string // Optional; every classifier call falls back when empty
	GeminiModel        string
	ClassifierTimeout  time.Duration
	HistoryWindow      int
	CategorizeWorkers  int
	RiskBlockThreshold int

	// Screener
	ScreenAmountThreshold decimal.Decimal
	ScreenKeywords        []string

	// Account
	InitialBalance decimal.Decimal
	Currency       string

	// Demo login
	DemoUsername     string
	DemoPassword     string
	TwoFactorEnabled bool

	// Optional sinks
	BQProject        string
	BQDataset        string
	NotionToken      string
	NotionDatabaseID string
	GCSBucket        string
}

const (
	DefaultPort               = "8080"
	DefaultLogLevel           = "info"
	DefaultGeminiModel        = "gemini-2.5-flash"
	DefaultClassifierTimeout  = 8 * time.Second
	DefaultHistoryWindow      = 5
	DefaultCategorizeWorkers  = 2
	DefaultRiskBlockThreshold = 60
	DefaultInitialBalance     = "125000"
	DefaultCurrency           = "INR"
	DefaultDemoUsername       = "demo"
	DefaultDemoPassword       = "password"
	DefaultBQDataset          = "securebank"
	DefaultScreenThreshold    = "50000"
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	initial, err := getEnvDecimal("INITIAL_BALANCE", DefaultInitialBalance)
	if err != nil {
		return nil, err
	}
	screenThreshold, err := getEnvDecimal("SCREEN_AMOUNT_THRESHOLD", DefaultScreenThreshold)
	if err != nil {
		return nil, err
	}
	timeout, err := getEnvDuration("CLASSIFIER_TIMEOUT", DefaultClassifierTimeout)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:                  getEnv("PORT", DefaultPort),
		LogLevel:              getEnv("LOG_LEVEL", DefaultLogLevel),
		GeminiAPIKey:          os.Getenv("GEMINI_API_KEY"),
		GeminiModel:           getEnv("GEMINI_MODEL", DefaultGeminiModel),
		ClassifierTimeout:     timeout,
		HistoryWindow:         getEnvInt("HISTORY_WINDOW", DefaultHistoryWindow),
		CategorizeWorkers:     getEnvInt("CATEGORIZE_WORKERS", DefaultCategorizeWorkers),
		RiskBlockThreshold:    getEnvInt("RISK_BLOCK_THRESHOLD", DefaultRiskBlockThreshold),
		ScreenAmountThreshold: screenThreshold,
		ScreenKeywords:        getEnvList("SCREEN_KEYWORDS"),
		InitialBalance:        initial,
		Currency:              getEnv("CURRENCY", DefaultCurrency),
		DemoUsername:          getEnv("DEMO_USERNAME", DefaultDemoUsername),
		DemoPassword:          getEnv("DEMO_PASSWORD", DefaultDemoPassword),
		TwoFactorEnabled:      getEnvBool("TWO_FACTOR_ENABLED", true),
		BQProject:             os.Getenv("BQ_PROJECT"),
		BQDataset:             getEnv("BQ_DATASET", DefaultBQDataset),
		NotionToken:           os.Getenv("NOTION_TOKEN"),
		NotionDatabaseID:      os.Getenv("NOTION_DATABASE_ID"),
		GCSBucket:             os.Getenv("GCS_BUCKET"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all configuration values are usable
func (c *Config) Validate() error {
	if c.RiskBlockThreshold < 1 || c.RiskBlockThreshold > 100 {
		return fmt.Errorf("RISK_BLOCK_THRESHOLD must be between 1 and 100")
	}
	if c.InitialBalance.IsNegative() {
		return fmt.Errorf("INITIAL_BALANCE must not be negative")
	}
	if !c.ScreenAmountThreshold.IsPositive() {
		return fmt.Errorf("SCREEN_AMOUNT_THRESHOLD must be positive")
	}
	if c.ClassifierTimeout <= 0 {
		return fmt.Errorf("CLASSIFIER_TIMEOUT must be positive")
	}
	if c.HistoryWindow <= 0 {
		return fmt.Errorf("HISTORY_WINDOW must be positive")
	}
	if c.DemoUsername == "" || c.DemoPassword == "" {
		return fmt.Errorf("DEMO_USERNAME and DEMO_PASSWORD are required")
	}
	if (c.NotionToken == "") != (c.NotionDatabaseID == "") {
		return fmt.Errorf("NOTION_TOKEN and NOTION_DATABASE_ID must be set together")
	}
	return nil
}

// ClassifierEnabled reports whether a Gemini key is configured.
func (c *Config) ClassifierEnabled() bool {
	return c.GeminiAPIKey != ""
}

// NotionEnabled reports whether flagged transfers are mirrored to Notion.
func (c *Config) NotionEnabled() bool {
	return c.NotionToken != "" && c.NotionDatabaseID != ""
}

// BigQueryEnabled reports whether risk decisions are streamed to BigQuery.
func (c *Config) BigQueryEnabled() bool {
	return c.BQProject != ""
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getEnvDecimal(key, defaultValue string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(getEnv(key, defaultValue))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

// getEnvList splits a comma-separated value, dropping blanks.
func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
