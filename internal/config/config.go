// Package config loads server settings from an optional YAML file and the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// Config holds all server settings. Environment variables override values
// read from the file named by CONFIG_FILE.
type Config struct {
	Port           string        `yaml:"port"`
	Store          string        `yaml:"store"`
	DatabaseURL    string        `yaml:"database_url"`
	SQLitePath     string        `yaml:"sqlite_path"`
	SeedCSV        string        `yaml:"seed_csv"`
	AllowedOrigins []string      `yaml:"cors_allowed_origins"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	LogLevel       string        `yaml:"log_level"`
	LogFormat      string        `yaml:"log_format"`
	Auth           AuthConfig    `yaml:"auth"`
}

// AuthConfig configures the login endpoint and token signing.
// Authentication is disabled when JWTSecret is empty.
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
	Username  string        `yaml:"username"`
	Password  string        `yaml:"password"`
}

// Enabled reports whether requests must carry a bearer token.
func (a AuthConfig) Enabled() bool {
	return a.JWTSecret != ""
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Port:           "8080",
		Store:          StoreMemory,
		SQLitePath:     "./data/postcodes.db",
		RequestTimeout: 10 * time.Second,
		LogLevel:       "info",
		LogFormat:      "text",
		Auth: AuthConfig{
			TokenTTL: time.Hour,
		},
	}
}

// Load reads CONFIG_FILE (if set), then applies environment overrides.
func Load() (Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (Config, error) {
	cfg := Default()

	if path := getenv("CONFIG_FILE"); path != "" {
		if err := cfg.readFile(path); err != nil {
			return Config{}, err
		}
	}

	setString(getenv, "PORT", &cfg.Port)
	setString(getenv, "STORE", &cfg.Store)
	setString(getenv, "DATABASE_URL", &cfg.DatabaseURL)
	setString(getenv, "SQLITE_PATH", &cfg.SQLitePath)
	setString(getenv, "SEED_CSV", &cfg.SeedCSV)
	setString(getenv, "LOG_LEVEL", &cfg.LogLevel)
	setString(getenv, "LOG_FORMAT", &cfg.LogFormat)
	setString(getenv, "JWT_SECRET", &cfg.Auth.JWTSecret)
	setString(getenv, "AUTH_USERNAME", &cfg.Auth.Username)
	setString(getenv, "AUTH_PASSWORD", &cfg.Auth.Password)

	if origins := getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = strings.Split(origins, ",")
	}
	if err := setDuration(getenv, "REQUEST_TIMEOUT", &cfg.RequestTimeout); err != nil {
		return Config{}, err
	}
	if err := setDuration(getenv, "JWT_TTL", &cfg.Auth.TokenTTL); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	//nolint:gosec // G304: Path comes from operator configuration.
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening config %q: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	if err := yaml.NewDecoder(f).Decode(c); err != nil {
		return fmt.Errorf("parsing config %q: %w", path, err)
	}
	return nil
}

// Validate checks that the selected store has what it needs.
func (c Config) Validate() error {
	switch c.Store {
	case StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	case StoreSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite store")
		}
	default:
		return fmt.Errorf("unknown store %q (use memory, postgres, or sqlite)", c.Store)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout)
	}
	if c.Auth.Enabled() && (c.Auth.Username == "" || c.Auth.Password == "") {
		return fmt.Errorf("AUTH_USERNAME and AUTH_PASSWORD are required when JWT_SECRET is set")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// NewLogger builds the process logger from LogLevel and LogFormat.
func (c Config) NewLogger() *slog.Logger {
	level, _ := parseLevel(c.LogLevel)
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

func setString(getenv func(string) string, key string, dst *string) {
	if v := getenv(key); v != "" {
		*dst = v
	}
}

func setDuration(getenv func(string) string, key string, dst *time.Duration) error {
	v := getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}
