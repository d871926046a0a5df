package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	DefaultDuplicateThreshold = 0.75
	DefaultFuzzyMatchLimit    = 5
	DefaultPort               = 8080
)

type Config struct {
	DB                 DBConfig
	Port               int
	JWTSecret          string
	LogLevel           string
	DuplicateThreshold float64
	FuzzyMatchLimit    int
	TagRulesFile       string
	CORSOrigin         string
}

type DBConfig struct {
	User     string
	Password string
	Host     string
	Port     string
	Name     string
	SSLMode  string
}

// DSN builds the lib/pq connection URL. Credentials are escaped, so passwords may contain '@', '/' or ':'.
func (c DBConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, c.Port),
		Path:     "/" + c.Name,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}

func (c DBConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Host, validation.Required),
		validation.Field(&c.Name, validation.Required),
		validation.Field(&c.SSLMode, validation.In("disable", "require", "verify-ca", "verify-full")),
	)
}

// Validate checks the matcher tuning and server settings. Database settings are checked separately by
// the commands that actually connect.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.DuplicateThreshold, validation.Required, validation.Min(0.01), validation.Max(1.0)),
		validation.Field(&c.FuzzyMatchLimit, validation.Required, validation.Min(1), validation.Max(50)),
	)
}

// Address returns the HTTP listen address.
func (c *Config) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Load reads the configuration from the environment. Call godotenv.Load first when a .env file is wanted.
func Load() (*Config, error) {
	cfg := &Config{
		DB: DBConfig{
			User:     env("user", ""),
			Password: env("password", ""),
			Host:     env("host", "localhost"),
			Port:     env("port", "5432"),
			Name:     env("dbname", "postgres"),
			SSLMode:  env("DB_SSLMODE", "require"),
		},
		JWTSecret:    env("SUPABASE_JWT_SECRET", ""),
		LogLevel:     env("LOG_LEVEL", "info"),
		TagRulesFile: env("TAG_RULES_FILE", ""),
		CORSOrigin:   env("CORS_ORIGIN", "*"),
	}

	var err error
	if cfg.Port, err = envInt("PORT", DefaultPort); err != nil {
		return nil, err
	}
	if cfg.FuzzyMatchLimit, err = envInt("FUZZY_MATCH_LIMIT", DefaultFuzzyMatchLimit); err != nil {
		return nil, err
	}
	if cfg.DuplicateThreshold, err = envFloat("DUPLICATE_THRESHOLD", DefaultDuplicateThreshold); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func env(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := env(key, "")
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envFloat(key string, fallback float64) (float64, error) {
	v := env(key, "")
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}
