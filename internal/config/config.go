package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/chat-directory/internal/auth"
)

// Database drivers accepted by ServerConfig.DBDriver.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// ServerConfig configures cmd/server.
type ServerConfig struct {
	Port            int           `env:"PORT"             envDefault:"8080"`
	DBDriver        string        `env:"DB_DRIVER"        envDefault:"sqlite"`
	DBPath          string        `env:"DB_PATH"          envDefault:"data/directory.db"`
	DatabaseURL     string        `env:"DATABASE_URL"`
	TokenFormat     string        `env:"TOKEN_FORMAT"     envDefault:"jwt"`
	JWTSecret       string        `env:"JWT_SECRET"`
	PasetoKey       string        `env:"PASETO_KEY"`
	TokenTTL        time.Duration `env:"TOKEN_TTL"        envDefault:"720h"`
	BcryptCost      int           `env:"BCRYPT_COST"      envDefault:"12"`
	TrustedOrigins  []string      `env:"TRUSTED_ORIGINS"  envSeparator:","`
	RedisURL        string        `env:"REDIS_URL"`
	OTelEndpoint    string        `env:"OTEL_ENDPOINT"`
	LogLevel        slog.Level    `env:"LOG_LEVEL"        envDefault:"info"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// LoadServer reads ServerConfig from .env and the environment and validates it.
func LoadServer() (ServerConfig, error) {
	loadDotEnv()

	var cfg ServerConfig
	if err := ParseEnv(&cfg); err != nil {
		return ServerConfig{}, err
	}
	if err := cfg.Validate(); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c ServerConfig) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d is out of range", c.Port))
	}

	switch c.DBDriver {
	case DriverSQLite:
		if c.DBPath == "" {
			errs = append(errs, errors.New("DB_PATH is required for the sqlite driver"))
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver))
	}

	switch c.TokenFormat {
	case auth.FormatJWT:
		if len(c.JWTSecret) < auth.MinSecretLength {
			errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d bytes", auth.MinSecretLength))
		}
	case auth.FormatPASETO:
		if len(c.PasetoKey) != 64 {
			errs = append(errs, errors.New("PASETO_KEY must be 32 bytes, hex encoded"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown TOKEN_FORMAT %q", c.TokenFormat))
	}

	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}

	return errors.Join(errs...)
}

// TokenSettings projects the token fields for auth.NewTokens.
func (c ServerConfig) TokenSettings() auth.TokenSettings {
	return auth.TokenSettings{
		Format:    c.TokenFormat,
		JWTSecret: c.JWTSecret,
		PasetoKey: c.PasetoKey,
		TTL:       c.TokenTTL,
	}
}

// ClientConfig configures cmd/directory.
type ClientConfig struct {
	APIURL   string        `env:"DIRECTORY_API_URL" envDefault:"http://localhost:8080"`
	Token    string        `env:"DIRECTORY_TOKEN"`
	Timeout  time.Duration `env:"DIRECTORY_TIMEOUT" envDefault:"10s"`
	RedisURL string        `env:"REDIS_URL"`
	LogLevel slog.Level    `env:"LOG_LEVEL"         envDefault:"warn"`
}

// LoadClient reads ClientConfig from .env and the environment.
func LoadClient() (ClientConfig, error) {
	loadDotEnv()

	var cfg ClientConfig
	if err := ParseEnv(&cfg); err != nil {
		return ClientConfig{}, err
	}
	if cfg.APIURL == "" {
		return ClientConfig{}, errors.New("DIRECTORY_API_URL is required")
	}
	if cfg.Timeout <= 0 {
		return ClientConfig{}, errors.New("DIRECTORY_TIMEOUT must be positive")
	}
	return cfg, nil
}
