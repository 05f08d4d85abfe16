package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultMaxDepth is the directory depth searched below the input root.
const DefaultMaxDepth = 6

// Config holds application configuration.
type Config struct {
	// Application
	AppEnv    string
	LogLevel  string
	LogFormat string
	LogFile   string

	// Processing
	OutputDir   string
	MaxDepth    int
	EnginesFile string
	PluginPaths []string

	// Tesseract defaults used when no engines file is configured
	TesseractBinary string
	TesseractLang   string
	TesseractPSM    int

	// Circuit breaker
	BreakerEnabled     bool
	BreakerThreshold   int
	BreakerTimeout     time.Duration
	BreakerMaxRequests int

	// Blob storage
	BlobURL    string
	BlobPrefix string

	// Redis
	RedisURL    string
	RedisPrefix string
	RedisTTL    time.Duration

	// SQL
	SQLitePath  string
	DatabaseURL string

	// RabbitMQ
	RabbitMQURL      string
	RabbitMQExchange string

	// HTTP API
	HTTPAddr string

	// MCP
	MCPAddr      string
	MCPAuthToken string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:    getEnv("MULTIOCR_ENV", "development"),
		LogLevel:  getEnv("MULTIOCR_LOG_LEVEL", "info"),
		LogFormat: getEnv("MULTIOCR_LOG_FORMAT", "text"),
		LogFile:   getEnv("MULTIOCR_LOG_FILE", ""),

		OutputDir:   getEnv("MULTIOCR_OUTPUT_DIR", "ocr_output"),
		MaxDepth:    getIntEnv("MULTIOCR_MAX_DEPTH", DefaultMaxDepth),
		EnginesFile: getEnv("MULTIOCR_ENGINES_FILE", ""),
		PluginPaths: getPathListEnv("MULTIOCR_PLUGIN_PATH"),

		TesseractBinary: getEnv("MULTIOCR_TESSERACT_BINARY", "tesseract"),
		TesseractLang:   getEnv("MULTIOCR_TESSERACT_LANG", "eng"),
		TesseractPSM:    getIntEnv("MULTIOCR_TESSERACT_PSM", 1),

		BreakerEnabled:     getBoolEnv("MULTIOCR_BREAKER_ENABLED", false),
		BreakerThreshold:   getIntEnv("MULTIOCR_BREAKER_THRESHOLD", 5),
		BreakerTimeout:     getDurationEnv("MULTIOCR_BREAKER_TIMEOUT", 30*time.Second),
		BreakerMaxRequests: getIntEnv("MULTIOCR_BREAKER_MAX_REQUESTS", 1),

		BlobURL:    getEnv("MULTIOCR_BLOB_URL", ""),
		BlobPrefix: getEnv("MULTIOCR_BLOB_PREFIX", ""),

		RedisURL:    getEnv("MULTIOCR_REDIS_URL", ""),
		RedisPrefix: getEnv("MULTIOCR_REDIS_PREFIX", "multiocr:"),
		RedisTTL:    getDurationEnv("MULTIOCR_REDIS_TTL", 0),

		SQLitePath:  getEnv("MULTIOCR_SQLITE_PATH", ""),
		DatabaseURL: getEnv("MULTIOCR_DATABASE_URL", ""),

		RabbitMQURL:      getEnv("MULTIOCR_RABBITMQ_URL", ""),
		RabbitMQExchange: getEnv("MULTIOCR_RABBITMQ_EXCHANGE", "multiocr.artifacts"),

		HTTPAddr: getEnv("MULTIOCR_HTTP_ADDR", "127.0.0.1:8080"),

		MCPAddr:      getEnv("MULTIOCR_MCP_ADDR", "127.0.0.1:8082"),
		MCPAuthToken: getEnv("MULTIOCR_MCP_AUTH_TOKEN", ""),
	}

	if len(cfg.PluginPaths) == 0 {
		cfg.PluginPaths = defaultPluginPaths()
	}

	return cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getPathListEnv splits a PATH-style list.
func getPathListEnv(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var paths []string
	for _, p := range strings.Split(value, string(os.PathListSeparator)) {
		if p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

func defaultPluginPaths() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return []string{filepath.Join(".multiocr", "engines")}
	}
	return []string{filepath.Join(home, ".multiocr", "engines")}
}
