// SPDX-License-Identifier: MIT
package config

import (
	"chladni/internal/analysis"
	"chladni/internal/log"
	"chladni/internal/plate"
	"strings"
	"time"
)

// Level returns the effective log level; debug wins over log_level.
func (c *Config) Level() log.LogLevel {
	if c.Debug {
		return log.LevelDebug
	}
	level, _ := log.ParseLevel(c.LogLevel)
	return level
}

// Nyquist returns half the configured sample rate.
func (c *Config) Nyquist() float64 {
	return c.Audio.SampleRate / 2
}

// BlockPeriod returns the wall-clock length of one block.
func (c *Config) BlockPeriod() time.Duration {
	return time.Duration(float64(c.Audio.BlockSize) / c.Audio.SampleRate * float64(time.Second))
}

// Frequencies returns the mode frequencies: the configured list, or the
// plate series derived from base_frequency.
func (c *Config) Frequencies() []float64 {
	if len(c.Modes.ModeFrequencies) > 0 {
		return append([]float64(nil), c.Modes.ModeFrequencies...)
	}
	return plate.PlateFrequencies(c.Modes.ModeCount, c.Modes.BaseFrequency)
}

// WindowFunc returns the parsed FFT window, Hann if unknown.
func (c *Config) WindowFunc() analysis.WindowFunc {
	w, _ := analysis.ParseWindowFunc(c.Audio.Window)
	return w
}

// MapperConfig returns the mode mapper settings.
func (c *Config) MapperConfig() analysis.MapperConfig {
	return analysis.MapperConfig{
		WindowWidth:      c.Modes.WindowWidth,
		ReferenceCeiling: c.Modes.ReferenceCeiling,
		SmoothingAlpha:   c.Modes.SmoothingAlpha,
		MaxAmplitude:     c.Modes.MaxAmplitude,
	}
}

// Source returns the normalised audio source name.
func (c *Config) Source() string {
	return strings.ToLower(c.Audio.Source)
}

// Sink returns the normalised render sink name.
func (c *Config) Sink() string {
	return strings.ToLower(c.Render.Sink)
}
