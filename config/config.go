package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ServerConfig holds all configuration for the server.
// Tags use mapstructure for Viper unmarshalling.
type ServerConfig struct {
	HTTPPort        string `mapstructure:"HTTP_PORT"`
	MongoURI        string `mapstructure:"MONGO_URI"`
	MongoDBName     string `mapstructure:"MONGO_DB_NAME"`
	MongoTxEnabled  bool   `mapstructure:"MONGO_TX_ENABLED"` // requires a replica set
	LogLevel        string `mapstructure:"LOG_LEVEL"`
	LogPretty       bool   `mapstructure:"LOG_PRETTY"`
	OtelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// Omada controller connection
	OmadaBaseURL      string `mapstructure:"OMADA_BASE_URL"`
	OmadaControllerID string `mapstructure:"OMADA_CONTROLLER_ID"`
	OmadaSite         string `mapstructure:"OMADA_SITE"`
	OmadaUsername     string `mapstructure:"OMADA_USERNAME"`
	OmadaPassword     string `mapstructure:"OMADA_PASSWORD"`
	OmadaVerifyTLS    bool   `mapstructure:"OMADA_VERIFY_TLS"`
	OmadaTimeoutSec   int    `mapstructure:"OMADA_TIMEOUT_SEC"`

	// Background retry queue
	RetryMaxAttempts  int `mapstructure:"RETRY_MAX_ATTEMPTS"`
	RetryBaseDelaySec int `mapstructure:"RETRY_BASE_DELAY_SEC"`
	RetryMaxDelaySec  int `mapstructure:"RETRY_MAX_DELAY_SEC"`

	// Controller status cache; an empty RedisAddr selects the in-memory store
	StatusCacheTTLSec int    `mapstructure:"STATUS_CACHE_TTL_SEC"`
	RedisAddr         string `mapstructure:"REDIS_ADDR"`
}

// LoadConfig reads configuration from file, environment variables, and
// defaults.
func LoadConfig() (*ServerConfig, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/guestgate/")
	v.AddConfigPath("$HOME/.guestgate")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017/guestgate_dev")
	v.SetDefault("MONGO_DB_NAME", "guestgate_dev")
	v.SetDefault("MONGO_TX_ENABLED", false)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", true)
	v.SetDefault("OTEL_SERVICE_NAME", "guestgate-server")
	v.SetDefault("OMADA_BASE_URL", "https://localhost:8043")
	v.SetDefault("OMADA_CONTROLLER_ID", "")
	v.SetDefault("OMADA_SITE", "Default")
	v.SetDefault("OMADA_USERNAME", "")
	v.SetDefault("OMADA_PASSWORD", "")
	v.SetDefault("OMADA_VERIFY_TLS", true)
	v.SetDefault("OMADA_TIMEOUT_SEC", 10)
	v.SetDefault("RETRY_MAX_ATTEMPTS", 3)
	v.SetDefault("RETRY_BASE_DELAY_SEC", 2)
	v.SetDefault("RETRY_MAX_DELAY_SEC", 60)
	v.SetDefault("STATUS_CACHE_TTL_SEC", 30)
	v.SetDefault("REDIS_ADDR", "")

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, we proceed with defaults and env.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &cfg, nil
}
