// SPDX-License-Identifier: MIT

// Package config loads and validates the runtime configuration: built-in
// defaults, then a YAML file, then ENV_* overrides, then command line flags
// (applied by the caller).
package config

import (
	"errors"
	"fmt"
)

// Boundaries and defaults for the visualiser.
const (
	DefaultLogLevel = "info"

	// Audio
	DefaultSource        = SourceDevice
	DefaultDeviceID      = MinDeviceID // system default input
	DefaultChannels      = 1
	DefaultSampleRate    = 44100
	DefaultBlockSize     = 1024
	DefaultWindow        = "hann"
	DefaultToneFrequency = 440

	// Modes
	DefaultModeCount        = 32
	DefaultBaseFrequency    = 80
	DefaultSmoothingAlpha   = 0.3
	DefaultWindowWidth      = 40
	DefaultReferenceCeiling = 1
	DefaultMaxAmplitude     = 1

	// Plate
	DefaultEpsilonBand = 0.02
	DefaultResolution  = 64

	// Render
	DefaultFrameRate = 60
	DefaultSink      = SinkTUI

	// Transport
	DefaultWebSocketAddr    = ":8080"
	DefaultUDPTargetAddress = "127.0.0.1:9090"

	// Hardware and processing limits
	MinDeviceID   = -1     // -1 represents system default device
	MinSampleRate = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate = 192000 // Maximum supported sample rate (Hz)
	MinBlockSize  = 64
	MaxBlockSize  = 16384
	MaxFrameRate  = 240
	MaxResolution = 1024
)

// Audio sources.
const (
	SourceDevice = "device"
	SourceWAV    = "wav"
	SourceTone   = "tone"
)

// Render sinks.
const (
	SinkTUI       = "tui"
	SinkWebSocket = "websocket"
	SinkUDP       = "udp"
	SinkLog       = "log"
)

// ErrInvalidConfig matches every *ConfigurationError with errors.Is.
var ErrInvalidConfig = errors.New("invalid configuration")

// ConfigurationError names the offending key and why it was rejected.
type ConfigurationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s = %v: %s", e.Field, e.Value, e.Reason)
}

// Is makes errors.Is(err, ErrInvalidConfig) hold.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrInvalidConfig
}

func invalid(field string, value any, format string, args ...any) error {
	return &ConfigurationError{Field: field, Value: value, Reason: fmt.Sprintf(format, args...)}
}
