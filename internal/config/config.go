// Package config loads diamondd configuration from a YAML file with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Perfect-Abstractions/Compose-sub004/internal/diamond"
)

// Guard kinds.
const (
	GuardOwner  = "owner"
	GuardRole   = "role"
	GuardPolicy = "policy"
)

// Config is the diamondd configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Diamond  DiamondConfig  `yaml:"diamond"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string        `yaml:"addr" env:"DIAMOND_ADDR"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"DIAMOND_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"DIAMOND_WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"DIAMOND_SHUTDOWN_TIMEOUT"`
}

// DiamondConfig configures the diamond itself.
type DiamondConfig struct {
	Owner    string      `yaml:"owner" env:"DIAMOND_OWNER"`
	Manifest string      `yaml:"manifest" env:"DIAMOND_MANIFEST"`
	MaxDepth int         `yaml:"max_depth" env:"DIAMOND_MAX_DEPTH"`
	Guard    GuardConfig `yaml:"guard"`
}

// GuardConfig selects the cut guard. Role is used by the role guard,
// Policy by the policy guard.
type GuardConfig struct {
	Kind   string `yaml:"kind" env:"DIAMOND_GUARD"`
	Role   string `yaml:"role" env:"DIAMOND_GUARD_ROLE"`
	Policy string `yaml:"policy" env:"DIAMOND_GUARD_POLICY"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

// DatabaseConfig configures the state journal. An empty DSN keeps state in
// memory only.
type DatabaseConfig struct {
	DSN string `yaml:"dsn" env:"DATABASE_URL"`
}

// AuthConfig configures caller authentication and rate limiting.
type AuthConfig struct {
	JWTSecret string  `yaml:"jwt_secret" env:"JWT_SECRET"`
	RateLimit float64 `yaml:"rate_limit" env:"RATE_LIMIT_RPS"`
	RateBurst int     `yaml:"rate_burst" env:"RATE_LIMIT_BURST"`
}

// MetricsConfig toggles the /metrics endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" env:"METRICS_ENABLED"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Diamond: DiamondConfig{
			MaxDepth: diamond.DefaultMaxDepth,
			Guard:    GuardConfig{Kind: GuardOwner},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Auth: AuthConfig{
			RateLimit: 50,
			RateBurst: 100,
		},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// Load reads path over the defaults and applies environment overrides.
// An empty path skips the file. envFile, when set, is loaded into the
// environment first; a missing envFile is not an error.
func Load(path, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load env (%s): %w", envFile, err)
		}
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("failed to decode environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Addr == "" {
		errs = append(errs, "server.addr is required")
	}
	if c.Diamond.Owner != "" {
		if _, err := diamond.ParseAddress(c.Diamond.Owner); err != nil {
			errs = append(errs, fmt.Sprintf("diamond.owner: %v", err))
		}
	}
	if c.Diamond.MaxDepth < 1 {
		errs = append(errs, "diamond.max_depth must be positive")
	}

	switch c.Diamond.Guard.Kind {
	case GuardOwner:
	case GuardRole:
		if c.Diamond.Guard.Role == "" {
			errs = append(errs, "diamond.guard.role is required for the role guard")
		}
	case GuardPolicy:
		if c.Diamond.Guard.Policy == "" {
			errs = append(errs, "diamond.guard.policy is required for the policy guard")
		}
	default:
		errs = append(errs, fmt.Sprintf("diamond.guard.kind: unknown guard %q", c.Diamond.Guard.Kind))
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("log.format: unknown format %q", c.Log.Format))
	}

	if c.Auth.RateLimit < 0 || c.Auth.RateBurst < 0 {
		errs = append(errs, "auth: rate limits must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}
