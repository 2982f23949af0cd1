// Package config loads and validates the server configuration from the
// environment.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

// Config carries every knob the server reads at startup. Values come from the
// environment (optionally seeded from a .env file by main).
type Config struct {
	Port          int    `envconfig:"PORT" default:"5103" validate:"gte=1,lte=65535"`
	MongoURI      string `envconfig:"MONGODB_URI" validate:"required"`
	MongoDatabase string `envconfig:"MONGODB_DATABASE" default:"chat_db"`

	JWTSecret   string        `envconfig:"JWT_SECRET" validate:"required,min=16"`
	JWTIssuer   string        `envconfig:"JWT_ISSUER" default:"webchat"`
	JWTAudience string        `envconfig:"JWT_AUDIENCE" default:"webchat-users"`
	TokenTTL    time.Duration `envconfig:"TOKEN_TTL" default:"24h" validate:"gt=0"`

	// RateLimitRPM throttles the register/login endpoints per client key.
	RateLimitRPM int `envconfig:"RATE_LIMIT_RPM" default:"10" validate:"gte=1"`

	// AllowedOrigins restricts websocket upgrades; empty allows any origin.
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS"`
}

// Load reads the configuration from the environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("read environment: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("validate configuration: %w", err)
	}
	return cfg, nil
}
