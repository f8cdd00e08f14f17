package nnpcore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigAppliesDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "backend", cfg.Role)
	assert.Equal(t, StoreBackendMemory, cfg.Store.Backend)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestConfigValidateRejectsBadRole(t *testing.T) {
	cfg := &Config{Role: "sidecar"}
	assert.ErrorIs(t, cfg.Validate(), ErrConfigurationFatal)
}

func TestConfigValidateRejectsBadStoreBackend(t *testing.T) {
	cfg := &Config{Role: "backend"}
	cfg.Store.Backend = "etcd"
	assert.ErrorIs(t, cfg.Validate(), ErrConfigurationFatal)
}

func TestConfigValidateRejectsOverlongModelName(t *testing.T) {
	cfg := &Config{Role: "frontend", Model: "this-model-name-is-way-too-long-to-fit"}
	cfg.Store.Backend = StoreBackendMemory
	assert.ErrorIs(t, cfg.Validate(), ErrConfigurationFatal)
}
