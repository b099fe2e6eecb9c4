// Package config provides configuration structures and defaults for NimbusDB.
package config

import (
	"errors"

	"go.uber.org/zap"
)

const (
	defaultCompactThreshold = 4096 * 1024 * 1024
	defaultMaxBatchSize     = 256
)

// ErrInvalidConfig is returned by Validate when a field holds an unusable value.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all tunable parameters for a NimbusDB store.
type Config struct {
	// CompactThreshold is the log size in bytes above which a successful
	// append starts a background compaction.
	CompactThreshold int64
	// DisableAutoCompact turns off threshold-triggered compaction.
	// Compact can still be called explicitly.
	DisableAutoCompact bool
	// NoSync skips the fsync after each append batch.
	NoSync bool
	// MaxBatchSize caps how many queued lines are written in one group commit.
	MaxBatchSize int
	// LenientReplay skips a torn, unterminated final line on load instead of
	// failing.
	LenientReplay bool
	// Logger receives engine events. Nil means no logging.
	Logger *zap.Logger
}

// DefaultConfig returns a Config struct populated with default values.
func DefaultConfig() *Config {
	return &Config{
		CompactThreshold: defaultCompactThreshold,
		MaxBatchSize:     defaultMaxBatchSize,
		Logger:           zap.NewNop(),
	}
}

// FillDefaults sets any zero-value fields in the Config to their default values.
func (c *Config) FillDefaults() {
	def := DefaultConfig()
	if c.CompactThreshold == 0 {
		c.CompactThreshold = def.CompactThreshold
	}
	if c.MaxBatchSize == 0 {
		c.MaxBatchSize = def.MaxBatchSize
	}
	if c.Logger == nil {
		c.Logger = def.Logger
	}
}

// Validate reports whether the Config can be used to open a store.
func (c *Config) Validate() error {
	if c.CompactThreshold < 0 {
		return ErrInvalidConfig
	}
	if c.MaxBatchSize < 0 {
		return ErrInvalidConfig
	}
	return nil
}
