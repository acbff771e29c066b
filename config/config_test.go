package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultConfig(t *testing.T) {
	config, err := LoadConfig("")
	require.NoError(t, err)
	require.NotNil(t, config)

	assert.Equal(t, "memory", config.Services.StorageProvider)
	assert.Equal(t, 300*time.Second, config.Services.ChallengeConfig.NonceTTL)
	assert.Equal(t, MaxTokenTTL, config.Services.TokenConfig.TokenTTL)
	assert.Equal(t, "spendgate:expenses", config.Services.ExpenseConfig.Audience)
}

func TestLoadConfigFromTOML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.toml")
	tomlContent := `
[services]
storage = "bolt"
bolt_file_path = "/tmp/spendgate-test.db"

[services.challenge]
nonce_ttl = "120s"

[services.token]
token_ttl = "30s"

[services.exchange]
trusted_issuers = ["key:zIssuerOne", "key:zIssuerTwo"]

[services.expense]
audience = "expenses.test"
`
	require.NoError(t, os.WriteFile(configPath, []byte(tomlContent), 0644))

	config, err := LoadConfig(configPath)
	require.NoError(t, err)
	require.NotNil(t, config)

	assert.Equal(t, "bolt", config.Services.StorageProvider)
	assert.Equal(t, 120*time.Second, config.Services.ChallengeConfig.NonceTTL)
	assert.Equal(t, 30*time.Second, config.Services.TokenConfig.TokenTTL)
	assert.Equal(t, []string{"key:zIssuerOne", "key:zIssuerTwo"}, config.Services.ExchangeConfig.TrustedIssuers)
	assert.Equal(t, "expenses.test", config.Services.ExpenseConfig.Audience)
}

func TestTokenTTLNeverExceedsCap(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.toml")
	tomlContent := `
[services.token]
token_ttl = "3600s"
`
	require.NoError(t, os.WriteFile(configPath, []byte(tomlContent), 0644))

	config, err := LoadConfig(configPath)
	require.NoError(t, err)
	require.NotNil(t, config)

	assert.Equal(t, MaxTokenTTL, config.Services.TokenConfig.TokenTTL)
}

func TestLoadConfigRejectsNonTOML(t *testing.T) {
	_, err := LoadConfig("config.yaml")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "expected TOML format")
}
