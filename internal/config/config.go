package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Spreadsheet import configuration
	Import ImportConfig

	// Upcoming deliverables window
	Upcoming UpcomingConfig

	// Logging configuration
	Log LogConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            string
	APIPrefix       string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	Name           string
	SSLMode        string
	MaxOpenConns   int
	MaxIdleConns   int
	MaxLifetime    time.Duration
	MigrationsPath string
}

// ImportConfig holds spreadsheet import settings
type ImportConfig struct {
	MaxUploadSize     int64 // in bytes
	UploadDir         string
	AllowedExtensions []string
	SkipInvalid       bool
	AliasesFile       string
	Aliases           AliasConfig
}

// UpcomingConfig bounds the day window accepted by the upcoming query
type UpcomingConfig struct {
	DefaultDays int
	MinDays     int
	MaxDays     int
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string
	Format string // "json" or "pretty"
}

// Load reads configuration from environment variables. Values from .env and
// .env.local are loaded first when those files exist; real environment
// variables always win.
func Load() (*Config, error) {
	if err := loadEnvFiles(".env", ".env.local"); err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			APIPrefix:       getEnv("API_PREFIX", "/api/v1"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			CORSOrigins: append([]string{
				"http://localhost:3000",
				"http://localhost:5173",
				"http://127.0.0.1:3000",
				"http://127.0.0.1:5173",
			}, getListEnv("CORS_ORIGINS_EXTRA")...),
		},
		Database: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnv("DB_PORT", "5432"),
			User:           getEnv("DB_USER", "postgres"),
			Password:       getEnv("DB_PASSWORD", "postgres"),
			Name:           getEnv("DB_NAME", "deliverables"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:   getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:   getIntEnv("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:    getDurationEnv("DB_MAX_LIFETIME", 5*time.Minute),
			MigrationsPath: getEnv("MIGRATIONS_PATH", "./migrations"),
		},
		Import: ImportConfig{
			MaxUploadSize:     getInt64Env("MAX_UPLOAD_SIZE_MB", 10) * 1024 * 1024,
			UploadDir:         getEnv("UPLOAD_DIR", "./data/uploads"),
			AllowedExtensions: []string{".csv", ".xlsx", ".xlsm"},
			SkipInvalid:       getBoolEnv("IMPORT_SKIP_INVALID", true),
			AliasesFile:       getEnv("COLUMN_ALIASES_FILE", ""),
		},
		Upcoming: UpcomingConfig{
			DefaultDays: getIntEnv("UPCOMING_DEFAULT_DAYS", 30),
			MinDays:     getIntEnv("UPCOMING_MIN_DAYS", 1),
			MaxDays:     getIntEnv("UPCOMING_MAX_DAYS", 365),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if cfg.Import.AliasesFile != "" {
		aliases, err := LoadAliases(cfg.Import.AliasesFile)
		if err != nil {
			return nil, err
		}
		cfg.Import.Aliases = aliases
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.Import.MaxUploadSize <= 0 {
		return fmt.Errorf("MAX_UPLOAD_SIZE_MB must be positive")
	}
	return c.Upcoming.Validate()
}

// Validate checks the window bounds are coherent
func (u UpcomingConfig) Validate() error {
	if u.MinDays < 1 {
		return fmt.Errorf("UPCOMING_MIN_DAYS must be at least 1, got %d", u.MinDays)
	}
	if u.MaxDays < u.MinDays {
		return fmt.Errorf("UPCOMING_MAX_DAYS (%d) must not be below UPCOMING_MIN_DAYS (%d)", u.MaxDays, u.MinDays)
	}
	if u.DefaultDays < u.MinDays || u.DefaultDays > u.MaxDays {
		return fmt.Errorf("UPCOMING_DEFAULT_DAYS (%d) must be within [%d, %d]", u.DefaultDays, u.MinDays, u.MaxDays)
	}
	return nil
}

// DefaultUpcoming returns the stock [1, 365] window with a 30 day default
func DefaultUpcoming() UpcomingConfig {
	return UpcomingConfig{DefaultDays: 30, MinDays: 1, MaxDays: 365}
}

// GetDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// IsAllowedExtension reports whether ext (with leading dot) may be uploaded
func (c *ImportConfig) IsAllowedExtension(ext string) bool {
	ext = strings.ToLower(ext)
	for _, allowed := range c.AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func loadEnvFiles(files ...string) error {
	existing := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("failed to load env files: %w", err)
	}
	return nil
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getListEnv(key string) []string {
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
