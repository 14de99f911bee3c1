package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dispatchhq/notifyd/internal/config"
)

func TestLoadWithOptions_AppliesDefaultsWithoutEnvFile(t *testing.T) {
	t.Setenv("NOTIFY_REDIS", "redis://localhost:6379/5")

	cfg, err := config.LoadWithOptions(config.LoadOptions{})
	require.NoError(t, err)

	assert.Equal(t, "NotifyChannel", cfg.Channel)
	assert.Equal(t, "NotifyStream", cfg.StreamName)
	assert.Equal(t, "NotifyGroup", cfg.StreamGroup)
	assert.Equal(t, 8991, cfg.DefaultPort)
	assert.Equal(t, 8, cfg.QueueSize)
	assert.Equal(t, "log", cfg.QueueCallback)
}

func TestLoadWithOptions_ReadsProviderCredentialsFromEnv(t *testing.T) {
	t.Setenv("NOTIFY_REDIS", "redis://localhost:6379/5")
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_PORT", "2525")
	t.Setenv("TWILIO_ACCOUNT_SID", "AC123")

	cfg, err := config.LoadWithOptions(config.LoadOptions{})
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.com", cfg.SMTP.Host)
	assert.Equal(t, 2525, cfg.SMTP.Port)
	assert.Equal(t, "AC123", cfg.Twilio.AccountSID)
}

func TestLoadWithOptions_MissingRedisDSNFails(t *testing.T) {
	t.Setenv("NOTIFY_REDIS", "")
	_, err := config.LoadWithOptions(config.LoadOptions{})
	assert.Error(t, err)
}
