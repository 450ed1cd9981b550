package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 10, cfg.Vault.MaxAuthorizedPrograms)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Vault.MaxAuthorizedPrograms = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Database.Path = ""
	assert.Error(t, cfg.Validate())

	cfg.Database.InMemory = true
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnvOverridesDefaults(t *testing.T) {
	t.Setenv("COLLATERAL_MAX_AUTHORIZED_PROGRAMS", "3")
	t.Setenv("COLLATERAL_DB_IN_MEMORY", "true")
	t.Setenv("COLLATERAL_LOG_LEVEL", "debug")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Vault.MaxAuthorizedPrograms)
	assert.True(t, cfg.Database.InMemory)
	assert.Equal(t, "debug", cfg.Log.Level)
	// 未设置的保持默认
	assert.Equal(t, uint64(1000), cfg.Database.SequenceBandwidth)
}

func TestLoadFromEnvRejectsGarbage(t *testing.T) {
	t.Setenv("COLLATERAL_MAX_AUTHORIZED_PROGRAMS", "many")
	_, err := LoadFromEnv()
	assert.Error(t, err)
}
