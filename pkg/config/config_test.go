package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envVars = []string{
	"MULTIOCR_ENV", "MULTIOCR_LOG_LEVEL", "MULTIOCR_LOG_FORMAT", "MULTIOCR_LOG_FILE",
	"MULTIOCR_OUTPUT_DIR", "MULTIOCR_MAX_DEPTH", "MULTIOCR_ENGINES_FILE", "MULTIOCR_PLUGIN_PATH",
	"MULTIOCR_TESSERACT_BINARY", "MULTIOCR_TESSERACT_LANG", "MULTIOCR_TESSERACT_PSM",
	"MULTIOCR_BREAKER_ENABLED", "MULTIOCR_BREAKER_THRESHOLD", "MULTIOCR_BREAKER_TIMEOUT",
	"MULTIOCR_BREAKER_MAX_REQUESTS",
	"MULTIOCR_BLOB_URL", "MULTIOCR_BLOB_PREFIX",
	"MULTIOCR_REDIS_URL", "MULTIOCR_REDIS_PREFIX", "MULTIOCR_REDIS_TTL",
	"MULTIOCR_SQLITE_PATH", "MULTIOCR_DATABASE_URL",
	"MULTIOCR_RABBITMQ_URL", "MULTIOCR_RABBITMQ_EXCHANGE",
	"MULTIOCR_HTTP_ADDR", "MULTIOCR_MCP_ADDR", "MULTIOCR_MCP_AUTH_TOKEN",
}

// clearEnv blanks every MultiOCR variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, v := range envVars {
		t.Setenv(v, "")
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Empty(t, cfg.LogFile)

	assert.Equal(t, "ocr_output", cfg.OutputDir)
	assert.Equal(t, DefaultMaxDepth, cfg.MaxDepth)
	assert.Empty(t, cfg.EnginesFile)
	require.Len(t, cfg.PluginPaths, 1)
	assert.Equal(t, "engines", filepath.Base(cfg.PluginPaths[0]))

	assert.Equal(t, "tesseract", cfg.TesseractBinary)
	assert.Equal(t, "eng", cfg.TesseractLang)
	assert.Equal(t, 1, cfg.TesseractPSM)

	assert.False(t, cfg.BreakerEnabled)
	assert.Equal(t, 5, cfg.BreakerThreshold)
	assert.Equal(t, 30*time.Second, cfg.BreakerTimeout)
	assert.Equal(t, 1, cfg.BreakerMaxRequests)

	assert.Empty(t, cfg.BlobURL)
	assert.Empty(t, cfg.RedisURL)
	assert.Equal(t, "multiocr:", cfg.RedisPrefix)
	assert.Zero(t, cfg.RedisTTL)
	assert.Empty(t, cfg.SQLitePath)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Empty(t, cfg.RabbitMQURL)
	assert.Equal(t, "multiocr.artifacts", cfg.RabbitMQExchange)

	assert.Equal(t, "127.0.0.1:8080", cfg.HTTPAddr)
	assert.Equal(t, "127.0.0.1:8082", cfg.MCPAddr)
	assert.Empty(t, cfg.MCPAuthToken)
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv(t)

	t.Setenv("MULTIOCR_ENV", "production")
	t.Setenv("MULTIOCR_LOG_LEVEL", "debug")
	t.Setenv("MULTIOCR_LOG_FORMAT", "json")
	t.Setenv("MULTIOCR_LOG_FILE", "/var/log/multiocr.log")
	t.Setenv("MULTIOCR_OUTPUT_DIR", "/srv/out")
	t.Setenv("MULTIOCR_MAX_DEPTH", "2")
	t.Setenv("MULTIOCR_ENGINES_FILE", "/etc/multiocr/engines.yaml")
	t.Setenv("MULTIOCR_PLUGIN_PATH", "/opt/a"+string(os.PathListSeparator)+"/opt/b")
	t.Setenv("MULTIOCR_TESSERACT_PSM", "3")
	t.Setenv("MULTIOCR_BREAKER_ENABLED", "true")
	t.Setenv("MULTIOCR_BREAKER_THRESHOLD", "2")
	t.Setenv("MULTIOCR_BREAKER_TIMEOUT", "1m")
	t.Setenv("MULTIOCR_REDIS_URL", "redis://cache:6379/1")
	t.Setenv("MULTIOCR_REDIS_TTL", "24h")
	t.Setenv("MULTIOCR_DATABASE_URL", "postgres://ocr@db/ocr")
	t.Setenv("MULTIOCR_MCP_AUTH_TOKEN", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "/var/log/multiocr.log", cfg.LogFile)
	assert.Equal(t, "/srv/out", cfg.OutputDir)
	assert.Equal(t, 2, cfg.MaxDepth)
	assert.Equal(t, "/etc/multiocr/engines.yaml", cfg.EnginesFile)
	assert.Equal(t, []string{"/opt/a", "/opt/b"}, cfg.PluginPaths)
	assert.Equal(t, 3, cfg.TesseractPSM)
	assert.True(t, cfg.BreakerEnabled)
	assert.Equal(t, 2, cfg.BreakerThreshold)
	assert.Equal(t, time.Minute, cfg.BreakerTimeout)
	assert.Equal(t, "redis://cache:6379/1", cfg.RedisURL)
	assert.Equal(t, 24*time.Hour, cfg.RedisTTL)
	assert.Equal(t, "postgres://ocr@db/ocr", cfg.DatabaseURL)
	assert.Equal(t, "secret", cfg.MCPAuthToken)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	clearEnv(t)

	t.Setenv("MULTIOCR_MAX_DEPTH", "deep")
	t.Setenv("MULTIOCR_BREAKER_ENABLED", "maybe")
	t.Setenv("MULTIOCR_BREAKER_TIMEOUT", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxDepth, cfg.MaxDepth)
	assert.False(t, cfg.BreakerEnabled)
	assert.Equal(t, 30*time.Second, cfg.BreakerTimeout)
}

func TestGetPathListEnv(t *testing.T) {
	sep := string(os.PathListSeparator)
	t.Setenv("TEST_PATHS", sep+"/one"+sep+sep+"/two"+sep)
	assert.Equal(t, []string{"/one", "/two"}, getPathListEnv("TEST_PATHS"))

	t.Setenv("TEST_PATHS", "")
	assert.Nil(t, getPathListEnv("TEST_PATHS"))
}

func TestLoad_DotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("MULTIOCR_OUTPUT_DIR=from-dotenv\n"), 0o644))

	t.Chdir(dir)

	// godotenv does not override variables already present, even when empty.
	require.NoError(t, os.Unsetenv("MULTIOCR_OUTPUT_DIR"))
	t.Cleanup(func() { _ = os.Unsetenv("MULTIOCR_OUTPUT_DIR") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.OutputDir)
}
