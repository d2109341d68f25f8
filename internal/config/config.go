package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

// Config holds every setting the server reads at startup.
type Config struct {
	AppPort  string
	LogLevel string

	DBDriver    string
	DatabaseDSN string
	BcryptCost  int

	ModelRepo            string
	ModelRevision        string
	ModelDir             string
	ModelHubURL          string
	ModelHubToken        string
	ModelOffline         bool
	ModelDevice          string
	ModelMaxLength       int
	ModelDownloadTimeout time.Duration

	RabbitMQURL   string
	RabbitMQQueue string
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", ":8000")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DATABASE_DSN", "spamguard.db")
	v.SetDefault("BCRYPT_COST", bcrypt.DefaultCost)
	v.SetDefault("MODEL_REPO", "mrm8488/bert-tiny-finetuned-sms-spam-detection")
	v.SetDefault("MODEL_REVISION", "main")
	v.SetDefault("MODEL_DIR", "./models")
	v.SetDefault("MODEL_HUB_URL", "https://huggingface.co")
	v.SetDefault("MODEL_HUB_TOKEN", "")
	v.SetDefault("MODEL_OFFLINE", false)
	v.SetDefault("MODEL_DEVICE", "auto")
	v.SetDefault("MODEL_MAX_LENGTH", 512)
	v.SetDefault("MODEL_DOWNLOAD_TIMEOUT", "2m")
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("RABBITMQ_QUEUE", "spamguard_events")
}

// Load reads defaults, an optional config.yaml in the working directory, and
// environment variables, in increasing order of precedence.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	v.AutomaticEnv()

	cfg := &Config{
		AppPort:              v.GetString("APP_PORT"),
		LogLevel:             v.GetString("LOG_LEVEL"),
		DBDriver:             v.GetString("DB_DRIVER"),
		DatabaseDSN:          v.GetString("DATABASE_DSN"),
		BcryptCost:           v.GetInt("BCRYPT_COST"),
		ModelRepo:            v.GetString("MODEL_REPO"),
		ModelRevision:        v.GetString("MODEL_REVISION"),
		ModelDir:             v.GetString("MODEL_DIR"),
		ModelHubURL:          v.GetString("MODEL_HUB_URL"),
		ModelHubToken:        v.GetString("MODEL_HUB_TOKEN"),
		ModelOffline:         v.GetBool("MODEL_OFFLINE"),
		ModelDevice:          v.GetString("MODEL_DEVICE"),
		ModelMaxLength:       v.GetInt("MODEL_MAX_LENGTH"),
		ModelDownloadTimeout: v.GetDuration("MODEL_DOWNLOAD_TIMEOUT"),
		RabbitMQURL:          v.GetString("RABBITMQ_URL"),
		RabbitMQQueue:        v.GetString("RABBITMQ_QUEUE"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "sqlite", "postgres", "memory":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q (want sqlite, postgres or memory)", c.DBDriver)
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("BCRYPT_COST %d out of range [%d, %d]", c.BcryptCost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.ModelMaxLength < 2 {
		return fmt.Errorf("MODEL_MAX_LENGTH must be at least 2, got %d", c.ModelMaxLength)
	}
	if c.ModelRepo == "" {
		return errors.New("MODEL_REPO is required")
	}
	return nil
}
