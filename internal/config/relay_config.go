package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// RelayConfig holds configuration for the outbox relay service.
// It only includes what the relay needs.
type RelayConfig struct {
	DatabaseURL      string `mapstructure:"databaseURL"`
	RabbitMQURL      string `mapstructure:"rabbitmqURL"`
	SessionQueueName string `mapstructure:"sessionQueue"`
	LogLevel         string `mapstructure:"logLevel"`
}

func LoadRelayConfig() (*RelayConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetDefault("sessionQueue", "parking.sessions")
	v.SetDefault("logLevel", "info")
	for key, env := range map[string]string{
		"databaseURL":  "DB_CONNECTION_STRING",
		"rabbitmqURL":  "RABBITMQ_URL",
		"sessionQueue": "SESSION_QUEUE_NAME",
		"logLevel":     "LOG_LEVEL",
	} {
		if err := v.BindEnv(key, env); err != nil {
			return nil, err
		}
	}

	var cfg RelayConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode relay config: %w", err)
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DB_CONNECTION_STRING environment variable is required")
	}
	if cfg.RabbitMQURL == "" {
		return nil, errors.New("RABBITMQ_URL environment variable is required")
	}
	return &cfg, nil
}
