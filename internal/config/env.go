package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// EnvPrefix префікс змінних оточення: VIDEOGEN_SERVER_PORT, VIDEOGEN_AUTH_MODE, ...
const EnvPrefix = "VIDEOGEN_"

// LoadEnvConfig завантажує конфігурацію зі змінних оточення (і .env файлу якщо є).
// Блоки database і redis створюються тільки коли їх вимагає backend.
func LoadEnvConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// .env не обов'язковий, у кластері змінні задаються напряму
		logrus.Debug("No .env file loaded")
	}

	cfg := &Config{
		Database: &DatabaseConfig{},
		Redis:    &RedisConfig{},
	}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if cfg.Profiles.Backend != ProfilesBackendPostgres {
		cfg.Database = nil
	}
	if cfg.Auth.SessionStorage != SessionStorageRedis {
		cfg.Redis = nil
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}
