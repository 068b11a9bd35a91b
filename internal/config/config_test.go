package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 300, cfg.DPI)
	assert.False(t, cfg.OCR)
	assert.True(t, cfg.Upscale)
	assert.True(t, cfg.Deskew)
	assert.True(t, cfg.GPU)
	assert.Equal(t, 3508, cfg.OutputHeight)
	assert.InDelta(t, 0.5, cfg.MarginTrimPercent, 1e-9)
	assert.False(t, cfg.InternalResolution)
	assert.False(t, cfg.ColorCorrection)
	assert.False(t, cfg.OffsetAlignment)
	require.NoError(t, cfg.Validate())
}

func TestApplyAdvanced(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Advanced = true
	cfg.ApplyAdvanced()
	assert.True(t, cfg.InternalResolution)
	assert.True(t, cfg.ColorCorrection)
	assert.True(t, cfg.OffsetAlignment)
	assert.True(t, cfg.Upscale)

	cfg = DefaultConfig()
	cfg.ApplyAdvanced()
	assert.False(t, cfg.InternalResolution)
}

func TestEffectiveThreads(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, runtime.NumCPU(), cfg.EffectiveThreads())
	cfg.Threads = 3
	assert.Equal(t, 3, cfg.EffectiveThreads())
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"dpi too low", func(c *Config) { c.DPI = 10 }},
		{"dpi too high", func(c *Config) { c.DPI = 5000 }},
		{"output height", func(c *Config) { c.OutputHeight = 10 }},
		{"margin trim negative", func(c *Config) { c.MarginTrimPercent = -1 }},
		{"margin trim huge", func(c *Config) { c.MarginTrimPercent = 50 }},
		{"threads negative", func(c *Config) { c.Threads = -1 }},
		{"log level", func(c *Config) { c.LogLevel = "chatty" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveDefaultRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "superbook.yaml")
	require.NoError(t, SaveDefault(path))

	data, err := os.ReadFile(path) //nolint:gosec // G304: test-owned path
	require.NoError(t, err)

	var cfg Config
	require.NoError(t, yaml.Unmarshal(data, &cfg))
	assert.Equal(t, 300, cfg.DPI)
	assert.Equal(t, 3508, cfg.OutputHeight)
}

func TestInternalResolutionConstants(t *testing.T) {
	assert.Equal(t, 4960, InternalResolutionWidth)
	assert.Equal(t, 7016, InternalResolutionHeight)
}
