// Package config loads client and dev-server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Prefix is prepended to every variable name.
const Prefix = "CT_"

// Store backends.
const (
	StoreFile     = "file"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config is the client configuration.
type Config struct {
	APIBaseURL  string        `env:"API_BASE_URL" envDefault:"https://loginexpress-ts-jwt.onrender.com/api"`
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`

	Store      string `env:"STORE" envDefault:"file"`
	Dir        string `env:"DIR"`
	Seal       bool   `env:"STORE_SEAL" envDefault:"true"`
	Passphrase string `env:"STORE_PASSPHRASE"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisPrefix   string `env:"REDIS_PREFIX" envDefault:"civictrack:"`

	DatabaseURL string `env:"DATABASE_URL"`
	Namespace   string `env:"STORE_NAMESPACE" envDefault:"default"`

	LogLevel     string `env:"LOG_LEVEL" envDefault:"warn"`
	OTLPEndpoint string `env:"OTLP_ENDPOINT"`
	OTLPInsecure bool   `env:"OTLP_INSECURE" envDefault:"false"`

	DevAPI DevAPI `envPrefix:"DEVAPI_"`
}

// DevAPI configures the local development backend.
type DevAPI struct {
	Addr          string        `env:"ADDR" envDefault:":8088"`
	JWTKey        string        `env:"JWT_KEY"`
	TokenTTL      time.Duration `env:"TOKEN_TTL" envDefault:"1h"`
	MaxFailures   int           `env:"MAX_LOGIN_FAILURES" envDefault:"5"`
	FailureWindow time.Duration `env:"FAILURE_WINDOW" envDefault:"15m"`
	Lockout       time.Duration `env:"LOCKOUT" envDefault:"15m"`
}

// Load reads an optional .env file and parses CT_* variables from the process
// environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return parse(env.Options{Prefix: Prefix})
}

// FromMap parses configuration from vars instead of the process environment.
func FromMap(vars map[string]string) (*Config, error) {
	return parse(env.Options{Prefix: Prefix, Environment: vars})
}

func parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config: invalid API base URL %q", c.APIBaseURL)
	}
	if c.HTTPTimeout <= 0 {
		return errors.New("config: HTTP timeout must be positive")
	}
	switch c.Store {
	case StoreFile, StoreMemory:
	case StoreRedis:
		if c.RedisAddr == "" {
			return errors.New("config: redis store needs CT_REDIS_ADDR")
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("config: postgres store needs CT_DATABASE_URL")
		}
	default:
		return fmt.Errorf("config: unknown store backend %q", c.Store)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// NewLogger builds a console logger writing to stderr at the configured level.
func (c *Config) NewLogger() (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.DisableStacktrace = true
	return zc.Build()
}
