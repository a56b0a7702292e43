// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

// Config holds everything the API server needs at startup.
type Config struct {
	Port         string        `mapstructure:"port"`
	MongoURI     string        `mapstructure:"mongodb_uri"`
	MongoDB      string        `mapstructure:"mongodb_database"`
	JWTSecret    string        `mapstructure:"jwt_secret"`
	JWTKeys      string        `mapstructure:"jwt_keys"` // kid:secret,kid2:secret2
	JWTActiveKid string        `mapstructure:"jwt_active_kid"`
	RateLimitRPM int           `mapstructure:"rate_limit_rpm"`
	SendBuffer   int           `mapstructure:"ws_send_buffer"`
	ReadTimeout  time.Duration `mapstructure:"ws_read_timeout"`
}

// Load reads configuration from environment variables, applying defaults.
// MONGODB_URI and one of JWT_SECRET/JWT_KEYS are required.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("port", "8080")
	v.SetDefault("mongodb_uri", "")
	v.SetDefault("mongodb_database", "messaging")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("jwt_keys", "")
	v.SetDefault("jwt_active_kid", "")
	v.SetDefault("rate_limit_rpm", 120)
	v.SetDefault("ws_send_buffer", 64)
	v.SetDefault("ws_read_timeout", time.Minute)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.MongoURI == "" {
		return nil, errors.New("MONGODB_URI must be set")
	}
	if cfg.JWTSecret == "" && cfg.JWTKeys == "" {
		return nil, errors.New("either JWT_SECRET or JWT_KEYS must be set")
	}
	return &cfg, nil
}
