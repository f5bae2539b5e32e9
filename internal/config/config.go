package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/kurihiro0119/github-star-monitor/internal/storage"
)

const maxBatchWidth = 10

// Config holds the application configuration
type Config struct {
	// GitHub
	GitHubToken  string
	GitHubAPIURL string // empty means api.github.com
	Repo         string // owner/name

	// Monitor
	CheckInterval    time.Duration
	StateFile        string
	DriftTolerance   int
	PageSize         int
	BatchWidth       int
	BatchDelay       time.Duration
	ActivityCapacity int
	MemberInfoMaxAge time.Duration // 0 keeps metadata forever

	// Archive storage
	StorageType string // "none", "sqlite" or "postgres"
	SQLitePath  string
	PostgresURL string

	// API Server
	APIEnabled bool
	APIPort    string
	APIHost    string

	// CLI
	APIEndpoint string

	// Logging
	LogLevel  string
	LogFormat string // "text" or "json"
}

// Load loads the configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		GitHubToken:  getEnv("GITHUB_TOKEN", ""),
		GitHubAPIURL: getEnv("GITHUB_API_URL", ""),
		Repo:         getEnv("GITHUB_REPO", ""),
		StateFile:    getEnv("STATE_FILE", ""),
		StorageType:  getEnv("STORAGE_TYPE", storage.TypeNone),
		SQLitePath:   getEnv("SQLITE_PATH", "./stars.db"),
		PostgresURL:  getEnv("POSTGRES_URL", ""),
		APIPort:      getEnv("API_PORT", "8080"),
		APIHost:      getEnv("API_HOST", "localhost"),
		APIEndpoint:  getEnv("API_ENDPOINT", "http://localhost:8080"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogFormat:    getEnv("LOG_FORMAT", "text"),
	}

	var err error
	if cfg.CheckInterval, err = getDuration("CHECK_INTERVAL", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.BatchDelay, err = getDuration("BATCH_DELAY", 100*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.MemberInfoMaxAge, err = getDuration("MEMBER_INFO_MAX_AGE", 0); err != nil {
		return nil, err
	}
	if cfg.DriftTolerance, err = getInt("DRIFT_TOLERANCE", 10); err != nil {
		return nil, err
	}
	if cfg.PageSize, err = getInt("PAGE_SIZE", 100); err != nil {
		return nil, err
	}
	if cfg.BatchWidth, err = getInt("BATCH_WIDTH", maxBatchWidth); err != nil {
		return nil, err
	}
	if cfg.ActivityCapacity, err = getInt("ACTIVITY_CAPACITY", 100); err != nil {
		return nil, err
	}
	if cfg.APIEnabled, err = getBool("API_ENABLED", false); err != nil {
		return nil, err
	}

	return cfg, nil
}

// getEnv returns the value of an environment variable or a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDuration accepts Go duration strings ("90s") or plain seconds ("90")
func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, &ConfigError{Field: key, Message: fmt.Sprintf("invalid duration %q", value)}
	}
	return d, nil
}

func getInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, &ConfigError{Field: key, Message: fmt.Sprintf("invalid integer %q", value)}
	}
	return n, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, &ConfigError{Field: key, Message: fmt.Sprintf("invalid boolean %q", value)}
	}
	return b, nil
}

// ParseRepo splits an "owner/name" identity
func ParseRepo(repo string) (owner, name string, err error) {
	parts := strings.Split(repo, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", &ConfigError{Field: "GITHUB_REPO", Message: fmt.Sprintf("repository must be in the form owner/repo, got %q", repo)}
	}
	return parts[0], parts[1], nil
}

// DefaultStateFile returns the per-repository state file name
func DefaultStateFile(repo string) string {
	return fmt.Sprintf("star_monitor_%s.json", strings.ReplaceAll(repo, "/", "_"))
}

// StatePath returns the configured state file or the per-repository default
func (c *Config) StatePath() string {
	if c.StateFile != "" {
		return c.StateFile
	}
	return DefaultStateFile(c.Repo)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if _, _, err := ParseRepo(c.Repo); err != nil {
		return err
	}
	if c.CheckInterval <= 0 {
		return &ConfigError{Field: "CHECK_INTERVAL", Message: "must be positive"}
	}
	if c.DriftTolerance < 0 {
		return &ConfigError{Field: "DRIFT_TOLERANCE", Message: "must not be negative"}
	}
	if c.PageSize <= 0 || c.PageSize > 100 {
		return &ConfigError{Field: "PAGE_SIZE", Message: "must be between 1 and 100"}
	}
	if c.BatchWidth <= 0 || c.BatchWidth > maxBatchWidth {
		return &ConfigError{Field: "BATCH_WIDTH", Message: fmt.Sprintf("must be between 1 and %d", maxBatchWidth)}
	}
	if c.ActivityCapacity <= 0 {
		return &ConfigError{Field: "ACTIVITY_CAPACITY", Message: "must be positive"}
	}
	if c.MemberInfoMaxAge < 0 {
		return &ConfigError{Field: "MEMBER_INFO_MAX_AGE", Message: "must not be negative"}
	}
	switch c.StorageType {
	case storage.TypeNone, storage.TypeSQLite:
	case storage.TypePostgres:
		if c.PostgresURL == "" {
			return &ConfigError{Field: "POSTGRES_URL", Message: "PostgreSQL URL is required when STORAGE_TYPE is 'postgres'"}
		}
	default:
		return &ConfigError{Field: "STORAGE_TYPE", Message: "must be 'none', 'sqlite' or 'postgres'"}
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return &ConfigError{Field: "LOG_FORMAT", Message: "must be 'text' or 'json'"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
