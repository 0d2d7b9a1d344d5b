// SPDX-License-Identifier: MIT
package config

import (
	"chladni/internal/analysis"
	"chladni/internal/log"
	"chladni/internal/plate"
	"chladni/pkg/bitint"
	"errors"
	"math"
	"net"
	"slices"
	"strings"
)

// Validate checks every section and returns all problems at once, joined.
// Each problem is a *ConfigurationError.
func (c *Config) Validate() error {
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	if _, ok := log.ParseLevel(c.LogLevel); !ok && !c.Debug {
		add(invalid("log_level", c.LogLevel, "want debug, info, warn, error or fatal"))
	}

	add(c.validateAudio())
	add(c.validateModes())

	if !(c.Plate.EpsilonBand > 0) || math.IsInf(c.Plate.EpsilonBand, 0) {
		add(invalid("plate.epsilon_band", c.Plate.EpsilonBand, "must be positive"))
	}
	if c.Plate.Resolution < 8 || c.Plate.Resolution > MaxResolution {
		add(invalid("plate.resolution", c.Plate.Resolution, "must be in [8, %d]", MaxResolution))
	}

	if !(c.Render.FrameRate > 0) || c.Render.FrameRate > MaxFrameRate {
		add(invalid("render.frame_rate", c.Render.FrameRate, "must be in (0, %d]", MaxFrameRate))
	}
	switch strings.ToLower(c.Render.Sink) {
	case SinkTUI, SinkLog:
	case SinkWebSocket:
		if c.Transport.WebSocketAddr == "" {
			add(invalid("transport.websocket_addr", c.Transport.WebSocketAddr, "required by the websocket sink"))
		}
	case SinkUDP:
		if _, _, err := net.SplitHostPort(c.Transport.UDPTargetAddress); err != nil {
			add(invalid("transport.udp_target_address", c.Transport.UDPTargetAddress, "want host:port (%v)", err))
		}
	default:
		add(invalid("render.sink", c.Render.Sink, "want tui, websocket, udp or log"))
	}

	return errors.Join(errs...)
}

func (c *Config) validateAudio() error {
	var errs []error
	a := c.Audio

	switch strings.ToLower(a.Source) {
	case SourceDevice:
	case SourceWAV:
		if a.WAVFile == "" {
			errs = append(errs, invalid("audio.wav_file", a.WAVFile, "required when source is wav"))
		}
	case SourceTone:
		if !(a.ToneFrequency > 0) || a.ToneFrequency >= a.SampleRate/2 {
			errs = append(errs, invalid("audio.tone_frequency", a.ToneFrequency, "must be in (0, Nyquist)"))
		}
	default:
		errs = append(errs, invalid("audio.source", a.Source, "want device, wav or tone"))
	}

	if a.InputDevice < MinDeviceID {
		errs = append(errs, invalid("audio.input_device", a.InputDevice, "must be -1 (default) or a device index"))
	}
	if a.InputChannels < 1 {
		errs = append(errs, invalid("audio.input_channels", a.InputChannels, "must be at least 1"))
	}
	if a.SampleRate < MinSampleRate || a.SampleRate > MaxSampleRate {
		errs = append(errs, invalid("audio.sample_rate", a.SampleRate, "must be in [%d, %d] Hz", MinSampleRate, MaxSampleRate))
	}
	if !bitint.IsPowerOfTwo(a.BlockSize) || a.BlockSize < MinBlockSize || a.BlockSize > MaxBlockSize {
		suggestion := bitint.NearestPowerOfTwo(max(a.BlockSize, MinBlockSize))
		suggestion = min(max(suggestion, MinBlockSize), MaxBlockSize)
		errs = append(errs, invalid("audio.block_size", a.BlockSize,
			"must be a power of two in [%d, %d], try %d", MinBlockSize, MaxBlockSize, suggestion))
	}
	if _, err := analysis.ParseWindowFunc(a.Window); err != nil {
		errs = append(errs, invalid("audio.window", a.Window, "%v", err))
	}
	if a.GateThreshold < 0 || a.GateThreshold > 1 {
		errs = append(errs, invalid("audio.gate_threshold", a.GateThreshold, "must be in [0, 1]"))
	}
	return errors.Join(errs...)
}

func (c *Config) validateModes() error {
	var errs []error
	m := c.Modes

	if m.ModeCount < 1 || m.ModeCount > plate.MaxModes {
		errs = append(errs, invalid("modes.mode_count", m.ModeCount, "must be in [1, %d]", plate.MaxModes))
	} else {
		errs = append(errs, c.validateFrequencies())
	}

	if !(m.SmoothingAlpha > 0 && m.SmoothingAlpha <= 1) {
		errs = append(errs, invalid("modes.smoothing_alpha", m.SmoothingAlpha, "must be in (0, 1]"))
	}
	if !(m.WindowWidth > 0) {
		errs = append(errs, invalid("modes.window_width", m.WindowWidth, "must be positive"))
	}
	if !(m.ReferenceCeiling > 0) {
		errs = append(errs, invalid("modes.reference_ceiling", m.ReferenceCeiling, "must be positive"))
	}
	if !(m.MaxAmplitude > 0) {
		errs = append(errs, invalid("modes.max_amplitude", m.MaxAmplitude, "must be positive"))
	}
	return errors.Join(errs...)
}

func (c *Config) validateFrequencies() error {
	m := c.Modes
	nyquist := c.Nyquist()

	if len(m.ModeFrequencies) == 0 {
		if !(m.BaseFrequency > 0) {
			return invalid("modes.base_frequency", m.BaseFrequency, "must be positive")
		}
		if top := slices.Max(c.Frequencies()); top >= nyquist {
			return invalid("modes.base_frequency", m.BaseFrequency,
				"highest derived mode %.1f Hz is not below Nyquist (%.1f Hz); lower it or mode_count", top, nyquist)
		}
		return nil
	}

	if len(m.ModeFrequencies) != m.ModeCount {
		return invalid("modes.mode_frequencies", len(m.ModeFrequencies),
			"lists %d frequencies for mode_count %d", len(m.ModeFrequencies), m.ModeCount)
	}
	for i, f := range m.ModeFrequencies {
		switch {
		case !(f > 0) || math.IsInf(f, 0):
			return invalid("modes.mode_frequencies", f, "entry %d must be positive", i)
		case i > 0 && f <= m.ModeFrequencies[i-1]:
			return invalid("modes.mode_frequencies", f, "entry %d must exceed the previous one", i)
		case f >= nyquist:
			return invalid("modes.mode_frequencies", f, "entry %d is not below Nyquist (%.1f Hz)", i, nyquist)
		}
	}
	return nil
}
