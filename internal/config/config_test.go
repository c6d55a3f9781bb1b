package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.HTTP.Port)
	assert.Equal(t, "/api", cfg.HTTP.APIPrefix)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 5*time.Second, cfg.Workflow.StepTimeout)
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:3000"}, cfg.HTTP.AllowedOrigins)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("WORKFLOW_STEP_TIMEOUT", "750ms")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://plant.example.com")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/db")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.HTTP.Port)
	assert.Equal(t, 750*time.Millisecond, cfg.Workflow.StepTimeout)
	assert.Equal(t, []string{"https://plant.example.com"}, cfg.HTTP.AllowedOrigins)
	assert.Equal(t, "postgres://u:p@localhost/db", cfg.Database.URL)
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("LOG_LEVEL=debug\nLOGIN_RATE_LIMIT=3-M\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("LOG_LEVEL")
		os.Unsetenv("LOGIN_RATE_LIMIT")
	})

	cfg, err := Load(filepath.Join(dir, "missing.env"), path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "3-M", cfg.HTTP.LoginRateLimit)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"production with dev secret", func(c *Config) { c.Env = Production }, false},
		{"production with real secret", func(c *Config) { c.Env = Production; c.Auth.JWTSecret = "s3cr3t" }, true},
		{"zero step timeout", func(c *Config) { c.Workflow.StepTimeout = 0 }, false},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, false},
		{"bcrypt cost too low", func(c *Config) { c.Auth.BcryptCost = 2 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)
			tt.mutate(cfg)
			if tt.ok {
				assert.NoError(t, cfg.Validate())
			} else {
				assert.Error(t, cfg.Validate())
			}
		})
	}
}
