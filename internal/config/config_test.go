package config_test

import (
	"testing"

	"github.com/MikhailWahib/nimbusdb/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := config.DefaultConfig()

	assert.Equal(t, int64(4096*1024*1024), cfg.CompactThreshold)
	assert.Equal(t, 256, cfg.MaxBatchSize)
	assert.False(t, cfg.LenientReplay)
	assert.False(t, cfg.NoSync)
	require.NotNil(t, cfg.Logger)
	require.NoError(t, cfg.Validate())
}

func TestFillDefaults(t *testing.T) {
	cfg := &config.Config{CompactThreshold: 1024}
	cfg.FillDefaults()

	assert.Equal(t, int64(1024), cfg.CompactThreshold, "explicit values must survive")
	assert.Equal(t, 256, cfg.MaxBatchSize)
	assert.NotNil(t, cfg.Logger)
}

func TestValidate(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.CompactThreshold = -1
	assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidConfig)

	cfg = config.DefaultConfig()
	cfg.MaxBatchSize = -5
	assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidConfig)
}
