package cmd

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/clickaudit/clickaudit/internal/config"
)

func TestSaveProfileStoresFileAndSecret(t *testing.T) {
	keyring.MockInit()
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := &config.Config{}

	err := saveProfile(cfg, path, "prod", config.ConnectionFlags{
		URLs:     []string{"ch-1.internal", "ch-2.internal"},
		User:     "auditor",
		Password: "s3cret",
		Secure:   true,
	})
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.Current)
	assert.Equal(t, []string{"ch-1.internal", "ch-2.internal"}, cfg.Profiles["prod"].URLs)
	assert.True(t, cfg.Profiles["prod"].Secure)

	stored, err := config.GetSecret("prod")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", stored)

	restore := config.DefaultConfig
	config.DefaultConfig = &config.Config{}
	t.Cleanup(func() { config.DefaultConfig = restore })
	require.NoError(t, config.LoadConfig(path))
	assert.Equal(t, "prod", config.DefaultConfig.Current)
}

func TestSaveProfileKeepsExistingCurrent(t *testing.T) {
	keyring.MockInit()
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := &config.Config{
		Current:  "dev",
		Profiles: map[string]config.Profile{"dev": {URLs: []string{"localhost"}, User: "default"}},
	}

	err := saveProfile(cfg, path, "prod", config.ConnectionFlags{
		URLs: []string{"ch-1.internal"},
		User: "auditor",
	})
	require.NoError(t, err)
	assert.Equal(t, "dev", cfg.Current)
}

func TestSaveProfileRequiresURLAndUser(t *testing.T) {
	keyring.MockInit()
	path := filepath.Join(t.TempDir(), "config.yaml")

	err := saveProfile(&config.Config{}, path, "prod", config.ConnectionFlags{User: "auditor"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--url")
}

func TestSetCurrentContext(t *testing.T) {
	keyring.MockInit()
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := &config.Config{
		Profiles: map[string]config.Profile{"prod": {URLs: []string{"ch-1"}, User: "auditor"}},
	}

	require.NoError(t, setCurrentContext(cfg, path, "prod"))
	assert.Equal(t, "prod", cfg.Current)

	err := setCurrentContext(cfg, path, "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestDeleteContextRemovesProfileAndSecret(t *testing.T) {
	keyring.MockInit()
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := &config.Config{
		Current:  "prod",
		Profiles: map[string]config.Profile{"prod": {URLs: []string{"ch-1"}, User: "auditor"}},
	}
	require.NoError(t, config.SetSecret("prod", "s3cret"))

	require.NoError(t, deleteContext(cfg, path, "prod"))
	assert.Empty(t, cfg.Current)
	assert.NotContains(t, cfg.Profiles, "prod")

	stored, err := config.GetSecret("prod")
	require.NoError(t, err)
	assert.Empty(t, stored)

	err = deleteContext(cfg, path, "prod")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
