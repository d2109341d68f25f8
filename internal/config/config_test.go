package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.AppPort)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, bcrypt.DefaultCost, cfg.BcryptCost)
	assert.Equal(t, "mrm8488/bert-tiny-finetuned-sms-spam-detection", cfg.ModelRepo)
	assert.Equal(t, 512, cfg.ModelMaxLength)
	assert.Equal(t, 2*time.Minute, cfg.ModelDownloadTimeout)
	assert.Empty(t, cfg.RabbitMQURL)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("APP_PORT", ":9999")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("MODEL_DEVICE", "cpu")
	t.Setenv("MODEL_MAX_LENGTH", "128")

	cfg, err := Load(viper.New())
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.AppPort)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, "cpu", cfg.ModelDevice)
	assert.Equal(t, 128, cfg.ModelMaxLength)
}

func TestLoad_RejectsInvalid(t *testing.T) {
	t.Setenv("DB_DRIVER", "mysql")
	_, err := Load(viper.New())
	assert.ErrorContains(t, err, "DB_DRIVER")
}

func TestValidate(t *testing.T) {
	base := Config{DBDriver: "sqlite", BcryptCost: bcrypt.MinCost, ModelMaxLength: 512, ModelRepo: "x/y"}
	assert.NoError(t, base.Validate())

	c := base
	c.DBDriver = "memory"
	assert.NoError(t, c.Validate())

	c = base
	c.BcryptCost = 100
	assert.Error(t, c.Validate())

	c = base
	c.ModelMaxLength = 1
	assert.Error(t, c.Validate())

	c = base
	c.ModelRepo = ""
	assert.Error(t, c.Validate())
}
