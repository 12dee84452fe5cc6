// Package config loads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Store backends.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Config holds every setting of the wizard server.
type Config struct {
	Addr string `env:"ADDR" envDefault:":8080" validate:"required,hostname_port"`

	Store      string `env:"STORE" envDefault:"memory" validate:"oneof=memory sqlite"`
	SQLitePath string `env:"SQLITE_PATH" envDefault:"formwizard.db" validate:"required_if=Store sqlite"`

	SessionTTL     time.Duration `env:"SESSION_TTL" envDefault:"30m" validate:"gt=0"`
	MaxSessions    int           `env:"MAX_SESSIONS" envDefault:"10000" validate:"gte=0"`
	DefinitionPath string        `env:"DEFINITION"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text" validate:"oneof=text json zap"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`
	DevMode        bool     `env:"DEV_MODE"`
	SecureCookie   bool     `env:"SECURE_COOKIE"`

	// RateLimit is the sustained events per second allowed per client on
	// the event and live endpoints. Zero disables rate limiting.
	RateLimit     float64 `env:"RATE_LIMIT" envDefault:"10" validate:"gte=0"`
	RateBurst     int     `env:"RATE_BURST" envDefault:"30" validate:"gte=1"`
	MaxConnsPerIP int     `env:"MAX_CONNS_PER_IP" envDefault:"20" validate:"gte=0"`
	TrustProxy    bool    `env:"TRUST_PROXY"`

	// CSRFSecret signs form tokens. A random secret is used when empty, so
	// tokens do not survive restarts.
	CSRFSecret string `env:"CSRF_SECRET" validate:"omitempty,min=32"`

	WebhookURL     string        `env:"WEBHOOK_URL" validate:"omitempty,url"`
	WebhookTimeout time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"10s" validate:"gt=0"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s" validate:"gt=0"`
}

// Prefix is prepended to every variable name.
const Prefix = "WIZARD_"

// Load reads dotenv files (missing files are skipped), parses WIZARD_*
// variables and validates the result. Variables already set in the
// environment win over dotenv values.
func Load(dotenvFiles ...string) (Config, error) {
	for _, f := range dotenvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg, err := env.ParseAsWithOptions[Config](env.Options{Prefix: Prefix})
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
