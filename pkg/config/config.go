package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// SessionTimeLayout is the layout of the trading session bounds.
const SessionTimeLayout = "15:04:05"

// Config holds all configuration for the application
// ⭐ SSOT: every environment variable is read here and nowhere else
type Config struct {
	Env string // development, staging, production

	// Batch
	Pipeline PipelineConfig

	// Instrument conventions of the source files
	Market MarketConfig

	// Scheduled re-runs
	Watch WatchConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// PipelineConfig holds batch and per-file session settings
type PipelineConfig struct {
	InputFolder   string
	OutputFolder  string
	FilePattern   string
	MemoryPercent int  // share of total RAM handed to the engine
	Validate      bool // row-count gates between stages
	KeepTemp      bool // keep per-file scratch databases
	Parallel      bool // accepted but never honoured, files run one at a time
	Strict        bool // non-zero exit when any file failed
	JoinTieBreak  string
}

// MarketConfig describes how index, future and option rows are recognised
type MarketConfig struct {
	IndexSymbol  string
	FutureSymbol string
	OptionRoot   string
	SessionStart string
	SessionEnd   string
}

// WatchConfig holds the cron schedule used by the watch command
type WatchConfig struct {
	Schedule     string
	SkipExisting bool
}

// Load reads configuration from environment variables
// ⭐ SSOT: the only function that calls os.Getenv()
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Env: getEnv("ENV", "development"),

		Pipeline: PipelineConfig{
			InputFolder:   getEnv("INPUT_FOLDER", "data/parquet"),
			OutputFolder:  getEnv("OUTPUT_FOLDER", "data/combined"),
			FilePattern:   getEnv("FILE_PATTERN", "*.parquet"),
			MemoryPercent: getEnvAsInt("MEMORY_PERCENT", 75),
			Validate:      getEnvAsBool("VALIDATE_DATA", true),
			KeepTemp:      getEnvAsBool("KEEP_TEMP_FILES", false),
			Parallel:      getEnvAsBool("PARALLEL", false),
			Strict:        getEnvAsBool("STRICT_EXIT", false),
			JoinTieBreak:  getEnv("JOIN_TIE_BREAK", "first"),
		},

		Market: MarketConfig{
			IndexSymbol:  getEnv("INDEX_SYMBOL", "NIFTY"),
			FutureSymbol: getEnv("FUTURE_SYMBOL", "NIFTY-I"),
			OptionRoot:   getEnv("OPTION_ROOT", "NIFTY"),
			SessionStart: getEnv("SESSION_START", "09:15:00"),
			SessionEnd:   getEnv("SESSION_END", "15:29:00"),
		},

		Watch: WatchConfig{
			Schedule:     getEnv("WATCH_SCHEDULE", "0 45 15 * * 1-5"),
			SkipExisting: getEnvAsBool("WATCH_SKIP_EXISTING", true),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadFile loads path into the environment, then reads configuration as Load does.
// Variables already set in the environment keep precedence over the file.
func LoadFile(path string) (*Config, error) {
	if err := godotenv.Load(path); err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	return Load()
}

// Validate checks that configuration values are usable.
// Commands call it again after applying flag overrides.
func (c *Config) Validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Pipeline.MemoryPercent < 1 || c.Pipeline.MemoryPercent > 100 {
		return fmt.Errorf("MEMORY_PERCENT must be between 1 and 100, got %d", c.Pipeline.MemoryPercent)
	}

	if c.Pipeline.FilePattern == "" {
		return fmt.Errorf("FILE_PATTERN is required")
	}
	if _, err := filepath.Match(c.Pipeline.FilePattern, ""); err != nil {
		return fmt.Errorf("FILE_PATTERN %q: %w", c.Pipeline.FilePattern, err)
	}

	switch strings.ToLower(c.Pipeline.JoinTieBreak) {
	case "first", "last":
	default:
		return fmt.Errorf("JOIN_TIE_BREAK must be first or last, got %q", c.Pipeline.JoinTieBreak)
	}

	if c.Market.IndexSymbol == "" || c.Market.FutureSymbol == "" || c.Market.OptionRoot == "" {
		return fmt.Errorf("INDEX_SYMBOL, FUTURE_SYMBOL and OPTION_ROOT are required")
	}

	start, err := time.Parse(SessionTimeLayout, c.Market.SessionStart)
	if err != nil {
		return fmt.Errorf("SESSION_START: %w", err)
	}
	end, err := time.Parse(SessionTimeLayout, c.Market.SessionEnd)
	if err != nil {
		return fmt.Errorf("SESSION_END: %w", err)
	}
	if end.Before(start) {
		return fmt.Errorf("SESSION_END %s is before SESSION_START %s", c.Market.SessionEnd, c.Market.SessionStart)
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{".env"}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}
