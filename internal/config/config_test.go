package config_test

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/chat-directory/internal/config"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestParseEnv_InvalidValue(t *testing.T) {
	t.Setenv("PORT", "not-a-number")

	var cfg config.ServerConfig
	err := config.ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("error = %q, want parse env prefix", err)
	}
}

func TestLoadServer_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)

	cfg, err := config.LoadServer()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, config.DriverSQLite, cfg.DBDriver)
	assert.Equal(t, "data/directory.db", cfg.DBPath)
	assert.Equal(t, "jwt", cfg.TokenFormat)
	assert.Equal(t, 720*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 12, cfg.BcryptCost)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
}

func TestLoadServer_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("PORT", "9090")
	t.Setenv("TRUSTED_ORIGINS", "http://a.test,http://b.test")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("TOKEN_TTL", "1h")

	cfg, err := config.LoadServer()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.TrustedOrigins)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, time.Hour, cfg.TokenSettings().TTL)
}

func TestServerConfig_Validate(t *testing.T) {
	valid := config.ServerConfig{
		Port:        8080,
		DBDriver:    config.DriverSQLite,
		DBPath:      ":memory:",
		TokenFormat: "jwt",
		JWTSecret:   testSecret,
		TokenTTL:    time.Hour,
	}
	require.NoError(t, valid.Validate())

	cases := []struct {
		name   string
		mutate func(*config.ServerConfig)
		want   string
	}{
		{"missing secret", func(c *config.ServerConfig) { c.JWTSecret = "" }, "JWT_SECRET"},
		{"short secret", func(c *config.ServerConfig) { c.JWTSecret = "short" }, "JWT_SECRET"},
		{"unknown driver", func(c *config.ServerConfig) { c.DBDriver = "mysql" }, "DB_DRIVER"},
		{"postgres without DSN", func(c *config.ServerConfig) { c.DBDriver = config.DriverPostgres }, "DATABASE_URL"},
		{"unknown token format", func(c *config.ServerConfig) { c.TokenFormat = "saml" }, "TOKEN_FORMAT"},
		{"paseto without key", func(c *config.ServerConfig) { c.TokenFormat = "paseto" }, "PASETO_KEY"},
		{"bad port", func(c *config.ServerConfig) { c.Port = 0 }, "PORT"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoadClient(t *testing.T) {
	t.Setenv("DIRECTORY_API_URL", "http://directory.test")
	t.Setenv("DIRECTORY_TOKEN", "tok")

	cfg, err := config.LoadClient()
	require.NoError(t, err)
	assert.Equal(t, "http://directory.test", cfg.APIURL)
	assert.Equal(t, "tok", cfg.Token)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
}
