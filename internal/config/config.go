package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

const (
	Production = "production"

	devJWTSecret = "dev-secret-change-me"
)

type DatabaseOptions struct {
	URL             string        `env:"DATABASE_URL"`
	Path            string        `env:"DATA_PATH" envDefault:"workforce.db"`
	ConnectAttempts uint64        `env:"DB_CONNECT_ATTEMPTS" envDefault:"10"`
	SlowThreshold   time.Duration `env:"DB_SLOW_THRESHOLD" envDefault:"200ms"`
}

type AuthOptions struct {
	JWTSecret     string        `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`
	TokenTTL      time.Duration `env:"TOKEN_TTL" envDefault:"24h"`
	BcryptCost    int           `env:"BCRYPT_COST" envDefault:"10"`
	AdminUsername string        `env:"ADMIN_USERNAME" envDefault:"admin"`
	AdminPassword string        `env:"ADMIN_PASSWORD" envDefault:"admin123"`
}

type WorkflowOptions struct {
	StepTimeout  time.Duration `env:"WORKFLOW_STEP_TIMEOUT" envDefault:"5s"`
	RetryBackoff time.Duration `env:"WORKFLOW_RETRY_BACKOFF" envDefault:"200ms"`
}

type LogOptions struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Pretty bool   `env:"LOG_PRETTY" envDefault:"false"`
}

type HTTPOptions struct {
	Port           string   `env:"PORT" envDefault:"8000"`
	GinMode        string   `env:"GIN_MODE"`
	APIPrefix      string   `env:"API_PREFIX" envDefault:"/api"`
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173,http://localhost:3000"`
	LoginRateLimit string   `env:"LOGIN_RATE_LIMIT" envDefault:"10-M"`
	MetricsEnabled bool     `env:"METRICS_ENABLED" envDefault:"true"`
}

type Config struct {
	Env            string        `env:"APP_ENV" envDefault:"development"`
	SeedSampleData bool          `env:"SEED_SAMPLE_DATA" envDefault:"true"`
	ShiftCacheTTL  time.Duration `env:"SHIFT_CACHE_TTL" envDefault:"5m"`

	Database DatabaseOptions
	Auth     AuthOptions
	Workflow WorkflowOptions
	Log      LogOptions
	HTTP     HTTPOptions
}

// LoadEnv loads the first of the given .env files that exists. Values
// already present in the process environment win.
func LoadEnv(envFiles ...string) error {
	for _, p := range envFiles {
		if _, err := os.Stat(p); err == nil {
			return godotenv.Load(p)
		}
	}
	return nil
}

// Load reads .env (if any) and the process environment into a Config
func Load(envFiles ...string) (*Config, error) {
	if err := LoadEnv(envFiles...); err != nil {
		return nil, fmt.Errorf("load env file: %w", err)
	}
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Env == Production && (c.Auth.JWTSecret == "" || c.Auth.JWTSecret == devJWTSecret) {
		return fmt.Errorf("JWT_SECRET must be set in production")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive, got %s", c.Auth.TokenTTL)
	}
	if c.Workflow.StepTimeout <= 0 {
		return fmt.Errorf("WORKFLOW_STEP_TIMEOUT must be positive, got %s", c.Workflow.StepTimeout)
	}
	if c.Workflow.RetryBackoff < 0 {
		return fmt.Errorf("WORKFLOW_RETRY_BACKOFF must not be negative")
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", c.Auth.BcryptCost)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == Production
}
