package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all settings for one capture run or serve instance. It is
// built once and passed into the session explicitly; nothing here is
// process-global.
type Config struct {
	// Cassette output
	CassetteDir string

	// CDP connection settings
	CDPAddress string
	CDPPort    int
	Headless   bool

	// Page-load heuristics
	NavTimeout     time.Duration
	SettleDelay    time.Duration
	CaptureTimeout time.Duration

	// Payload safety limit for response bodies (0 disables the cap)
	MaxBodyBytes int

	// Debug journal sink
	JournalEnabled bool
	JournalDir     string
	JournalSizeMB  int
	JournalBuffer  int

	// Serve mode
	APIBindAddr string

	// Log settings
	LogDir   string
	LogLevel slog.Level
}

// Load reads configuration from environment variables and an optional .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	cfg := &Config{
		CassetteDir:    getEnvOrDefault("RECORDER_CASSETTE_DIR", "vcr_cassettes"),
		CDPAddress:     getEnvOrDefault("RECORDER_CDP_ADDRESS", "127.0.0.1"),
		CDPPort:        getEnvIntOrDefault("RECORDER_CDP_PORT", 9222),
		Headless:       getEnvBoolOrDefault("RECORDER_HEADLESS", true),
		NavTimeout:     getEnvDurationOrDefault("RECORDER_NAV_TIMEOUT", 30*time.Second),
		SettleDelay:    getEnvDurationOrDefault("RECORDER_SETTLE_DELAY", 3*time.Second),
		CaptureTimeout: getEnvDurationOrDefault("RECORDER_CAPTURE_TIMEOUT", 90*time.Second),
		MaxBodyBytes:   getEnvIntOrDefault("RECORDER_MAX_BODY_BYTES", 50*1024*1024),
		JournalEnabled: getEnvBoolOrDefault("RECORDER_JOURNAL", false),
		JournalDir:     getEnvOrDefault("RECORDER_JOURNAL_DIR", "logs"),
		JournalSizeMB:  getEnvIntOrDefault("RECORDER_JOURNAL_SIZE_MB", 50),
		JournalBuffer:  getEnvIntOrDefault("RECORDER_JOURNAL_BUFFER", 1024),
		APIBindAddr:    getEnvOrDefault("RECORDER_API_BIND", "127.0.0.1:8093"),
		LogDir:         getEnvOrDefault("RECORDER_LOG_DIR", "logs"),
		LogLevel:       parseLogLevel(getEnvOrDefault("RECORDER_LOG_LEVEL", "info")),
	}

	return cfg, nil
}

// CDPURL returns the CDP HTTP endpoint used by the chromedp remote allocator.
func (c *Config) CDPURL() string {
	return fmt.Sprintf("http://%s:%d", c.CDPAddress, c.CDPPort)
}

func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
