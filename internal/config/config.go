package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds environment-based settings
type Config struct {
	Environment    string `env:"APP_ENV" envDefault:"development"`
	ServerAddress  string `env:"SERVER_ADDRESS" envDefault:":8080"`
	JWTSecret      string `env:"JWT_SECRET,required,notEmpty"`
	DatabaseURL    string `env:"DATABASE_URL"`
	MigrationsPath string `env:"MIGRATIONS_PATH" envDefault:"./migrations"`
	// AssetsFile seeds the in-memory asset catalog when DATABASE_URL is unset.
	AssetsFile string `env:"ASSETS_FILE"`

	Redis struct {
		Address  string `env:"ADDRESS"`
		Username string `env:"USERNAME"`
		Password string `env:"PASSWORD"`
	} `envPrefix:"REDIS_"`

	MQTT struct {
		BrokerURL string `env:"BROKER_URL"`
		ClientID  string `env:"CLIENT_ID" envDefault:"medusa-scheduler"`
		Topic     string `env:"TOPIC" envDefault:"tv/schedule/status"`
	} `envPrefix:"MQTT_"`

	Schedule struct {
		Timezone  string        `env:"TIMEZONE" envDefault:"Local"`
		Lookahead time.Duration `env:"LOOKAHEAD" envDefault:"168h"`
	} `envPrefix:"SCHEDULE_"`

	StatusCacheTTL    time.Duration `env:"STATUS_CACHE_TTL" envDefault:"60s"`
	StatusRefreshSpec string        `env:"STATUS_REFRESH_SPEC" envDefault:"@every 1m"`
}

// Load reads configuration from environment variables, after an optional .env file.
func Load() (*Config, error) {
	// Missing .env is normal outside development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		var aggErr env.AggregateError
		if errors.As(err, &aggErr) && len(aggErr.Errors) > 0 {
			return nil, aggErr.Errors[0]
		}
		return nil, err
	}
	if cfg.Schedule.Lookahead <= 0 {
		return nil, fmt.Errorf("SCHEDULE_LOOKAHEAD must be positive, got %s", cfg.Schedule.Lookahead)
	}
	if cfg.StatusCacheTTL <= 0 {
		return nil, fmt.Errorf("STATUS_CACHE_TTL must be positive, got %s", cfg.StatusCacheTTL)
	}
	if _, err := cfg.Location(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Location resolves SCHEDULE_TIMEZONE.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return nil, fmt.Errorf("SCHEDULE_TIMEZONE: %w", err)
	}
	return loc, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
