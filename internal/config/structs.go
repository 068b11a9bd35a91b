package config

import (
	"fmt"
	"runtime"
)

// Config is the complete configuration for the converter. It loads
// from configuration files, environment variables, and flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Conversion settings
	DPI                int  `mapstructure:"dpi" yaml:"dpi" json:"dpi"`
	OCR                bool `mapstructure:"ocr" yaml:"ocr" json:"ocr"`
	Upscale            bool `mapstructure:"upscale" yaml:"upscale" json:"upscale"`
	Deskew             bool `mapstructure:"deskew" yaml:"deskew" json:"deskew"`
	GPU                bool `mapstructure:"gpu" yaml:"gpu" json:"gpu"`
	Threads            int  `mapstructure:"threads" yaml:"threads" json:"threads"`
	InternalResolution bool `mapstructure:"internal_resolution" yaml:"internal_resolution" json:"internal_resolution"`
	ColorCorrection    bool `mapstructure:"color_correction" yaml:"color_correction" json:"color_correction"`
	OffsetAlignment    bool `mapstructure:"offset_alignment" yaml:"offset_alignment" json:"offset_alignment"`
	OutputHeight       int  `mapstructure:"output_height" yaml:"output_height" json:"output_height"`
	Advanced           bool `mapstructure:"advanced" yaml:"advanced" json:"advanced"`

	// MarginTrimPercent is the percent-of-edge trim floor.
	MarginTrimPercent float64 `mapstructure:"margin_trim" yaml:"margin_trim" json:"margin_trim"`

	// External collaborator binaries
	External ExternalConfig `mapstructure:"external" yaml:"external" json:"external"`

	// Memory budget for the worker pool, in bytes.
	MemoryBudgetBytes uint64 `mapstructure:"memory_budget_bytes" yaml:"memory_budget_bytes" json:"memory_budget_bytes"`
}

// ExternalConfig names the external process collaborators.
type ExternalConfig struct {
	UpscalerBinary string `mapstructure:"upscaler_binary" yaml:"upscaler_binary" json:"upscaler_binary"`
	OCRBinary      string `mapstructure:"ocr_binary" yaml:"ocr_binary" json:"ocr_binary"`
}

// InternalResolutionWidth and InternalResolutionHeight define the fixed
// analysis canvas used when internal-resolution normalization is on.
const (
	InternalResolutionWidth  = 4960
	InternalResolutionHeight = 7016
)

// DefaultMemoryBudgetBytes keeps the working set under the 3 GB target.
const DefaultMemoryBudgetBytes = 3 << 30

// DefaultConfig returns the configuration defaults.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:          "info",
		DPI:               300,
		OCR:               false,
		Upscale:           true,
		Deskew:            true,
		GPU:               true,
		Threads:           0, // auto
		OutputHeight:      3508,
		MarginTrimPercent: 0.5,
		External: ExternalConfig{
			UpscalerBinary: "realesrgan-ncnn-vulkan",
			OCRBinary:      "yomitoku",
		},
		MemoryBudgetBytes: DefaultMemoryBudgetBytes,
	}
}

// ApplyAdvanced expands the advanced shorthand into the four features
// it enables.
func (c *Config) ApplyAdvanced() {
	if c.Advanced {
		c.InternalResolution = true
		c.ColorCorrection = true
		c.OffsetAlignment = true
		c.Upscale = true
	}
}

// EffectiveThreads resolves the worker count, defaulting to hardware
// parallelism.
func (c *Config) EffectiveThreads() int {
	if c.Threads > 0 {
		return c.Threads
	}
	return runtime.NumCPU()
}

// Validate checks option ranges.
func (c *Config) Validate() error {
	if c.DPI < 36 || c.DPI > 1200 {
		return fmt.Errorf("dpi %d out of range [36, 1200]", c.DPI)
	}
	if c.OutputHeight < 100 {
		return fmt.Errorf("output height %d too small", c.OutputHeight)
	}
	if c.MarginTrimPercent < 0 || c.MarginTrimPercent > 25 {
		return fmt.Errorf("margin trim %.2f out of range [0, 25]", c.MarginTrimPercent)
	}
	if c.Threads < 0 {
		return fmt.Errorf("threads must be non-negative, got %d", c.Threads)
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	return nil
}
