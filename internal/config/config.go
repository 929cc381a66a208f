package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath    string
	OutputDir string
	InboxDir  string

	Delimiter  string
	ChunkSize  int
	Workers    int
	RangesPath string
	Harmonize  bool

	WatchIntervalSec int

	LogLevel string
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:    getEnv("LABNORM_DB_PATH", filepath.Join(cwd, "data", "labnorm.db")),
		OutputDir: getEnv("LABNORM_OUTPUT_DIR", filepath.Join(cwd, "out")),
		InboxDir:  getEnv("LABNORM_INBOX_DIR", filepath.Join(cwd, "inbox")),

		Delimiter:  getEnv("LABNORM_DELIMITER", "|"),
		ChunkSize:  getEnvInt("LABNORM_CHUNK_SIZE", 1_000_000),
		Workers:    getEnvInt("LABNORM_WORKERS", 4),
		RangesPath: getEnv("LABNORM_RANGES_PATH", ""),
		Harmonize:  getEnvBool("LABNORM_HARMONIZE", false),

		WatchIntervalSec: getEnvInt("LABNORM_WATCH_INTERVAL_SEC", 60),

		LogLevel: getEnv("LABNORM_LOG_LEVEL", "info"),
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if len([]rune(c.Delimiter)) != 1 {
		return fmt.Errorf("delimiter must be a single character, got %q", c.Delimiter)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.ChunkSize)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	return nil
}

// Comma returns the delimiter as a rune for encoding/csv.
func (c Config) Comma() rune {
	return []rune(c.Delimiter)[0]
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}
