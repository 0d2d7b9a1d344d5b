// SPDX-License-Identifier: MIT
package config

import (
	"chladni/internal/log"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`     // Shorthand for log_level: debug.
	LogLevel  string          `yaml:"log_level"` // Logging level ("debug", "info", "warn", "error").
	Audio     AudioConfig     `yaml:"audio"`     // Audio capture and analysis settings.
	Modes     ModesConfig     `yaml:"modes"`     // Mode bank and mapping settings.
	Plate     PlateConfig     `yaml:"plate"`     // Plate rendering settings.
	Render    RenderConfig    `yaml:"render"`    // Render loop settings.
	Transport TransportConfig `yaml:"transport"` // Network sink settings.
}

// AudioConfig holds settings related to audio input and spectral analysis.
type AudioConfig struct {
	Source        string  `yaml:"source"`         // "device", "wav" or "tone".
	InputDevice   int     `yaml:"input_device"`   // PortAudio device index (-1 for default).
	InputChannels int     `yaml:"input_channels"` // Channels to capture; only channel 0 is analysed.
	LowLatency    bool    `yaml:"low_latency"`    // Request low latency settings from PortAudio device.
	SampleRate    float64 `yaml:"sample_rate"`    // Sample rate in Hz (e.g., 44100, 48000).
	BlockSize     int     `yaml:"block_size"`     // Samples per analysis block (power of two).
	Window        string  `yaml:"window"`         // Window function for the FFT (e.g., "hann", "hamming").
	GateThreshold float64 `yaml:"gate_threshold"` // Peak below which a block counts as silence (0 disables).
	WAVFile       string  `yaml:"wav_file"`       // File replayed when source is "wav".
	ToneFrequency float64 `yaml:"tone_frequency"` // Frequency in Hz when source is "tone".
}

// ModesConfig describes the mode bank and how spectra drive it.
type ModesConfig struct {
	ModeCount        int       `yaml:"mode_count"`        // Number of plate modes.
	ModeFrequencies  []float64 `yaml:"mode_frequencies"`  // Explicit resonant frequencies; derived when empty.
	BaseFrequency    float64   `yaml:"base_frequency"`    // Fundamental used to derive frequencies.
	SmoothingAlpha   float64   `yaml:"smoothing_alpha"`   // EMA weight of the newest block, (0,1].
	WindowWidth      float64   `yaml:"window_width"`      // Half-width in Hz of each mode's band.
	ReferenceCeiling float64   `yaml:"reference_ceiling"` // Raw excitation mapped to 1.0.
	MaxAmplitude     float64   `yaml:"max_amplitude"`     // Upper clamp on coefficients.
}

// PlateConfig holds field evaluation settings.
type PlateConfig struct {
	EpsilonBand float64 `yaml:"epsilon_band"` // Displacement band drawn as sand.
	Resolution  int     `yaml:"resolution"`   // Raster size for off-screen evaluation.
}

// RenderConfig holds render loop settings.
type RenderConfig struct {
	FrameRate float64 `yaml:"frame_rate"` // Frames per second.
	Sink      string  `yaml:"sink"`       // "tui", "websocket", "udp" or "log".
	LogFile   string  `yaml:"log_file"`   // Log destination while the terminal view runs.
}

// TransportConfig holds settings related to sending frames over the network.
type TransportConfig struct {
	WebSocketAddr    string `yaml:"websocket_addr"`     // Listen address for the WebSocket sink.
	UDPTargetAddress string `yaml:"udp_target_address"` // Target address and port for UDP packets (e.g., "127.0.0.1:9090").
}

// DefaultFiles are searched, in order, when no path is given.
var DefaultFiles = []string{"chladni.yaml", "config.yaml"}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		Audio: AudioConfig{
			Source:        DefaultSource,
			InputDevice:   DefaultDeviceID,
			InputChannels: DefaultChannels,
			SampleRate:    DefaultSampleRate,
			BlockSize:     DefaultBlockSize,
			Window:        DefaultWindow,
			ToneFrequency: DefaultToneFrequency,
		},
		Modes: ModesConfig{
			ModeCount:        DefaultModeCount,
			BaseFrequency:    DefaultBaseFrequency,
			SmoothingAlpha:   DefaultSmoothingAlpha,
			WindowWidth:      DefaultWindowWidth,
			ReferenceCeiling: DefaultReferenceCeiling,
			MaxAmplitude:     DefaultMaxAmplitude,
		},
		Plate: PlateConfig{
			EpsilonBand: DefaultEpsilonBand,
			Resolution:  DefaultResolution,
		},
		Render: RenderConfig{
			FrameRate: DefaultFrameRate,
			Sink:      DefaultSink,
		},
		Transport: TransportConfig{
			WebSocketAddr:    DefaultWebSocketAddr,
			UDPTargetAddress: DefaultUDPTargetAddress,
		},
	}
}

// LoadConfig is Load followed by Validate.
func LoadConfig(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Load reads configuration from a YAML file specified by path. If path is
// empty, it searches DefaultFiles and falls back to built-in defaults.
// Environment overrides are applied after the file. The result is not
// validated, so callers layering further overrides validate once at the end.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		for _, candidate := range DefaultFiles {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		log.Debugf("configuration: Loaded %s", path)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides reads ENV_* variables. Values that fail to parse are
// ignored with a warning.
func (cfg *Config) applyEnvOverrides() {
	// ENV_DEBUG
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Debug = bVal
			log.Infof("configuration: Overriding debug from env: %v", bVal)
		} else {
			log.Warnf("configuration: Ignoring ENV_DEBUG=%q: %v", val, err)
		}
	}
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		cfg.LogLevel = val
		log.Infof("configuration: Overriding log_level from env: %s", val)
	}

	// ENV_{AUDIO,MODES,PLATE}
	// These tune the analysis pipeline.

	// ENV_SAMPLE_RATE
	if val, ok := os.LookupEnv("ENV_SAMPLE_RATE"); ok {
		if fVal, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Audio.SampleRate = fVal
			log.Infof("configuration: Overriding audio.sample_rate from env: %g", fVal)
		} else {
			log.Warnf("configuration: Ignoring ENV_SAMPLE_RATE=%q: %v", val, err)
		}
	}
	// ENV_BLOCK_SIZE
	if val, ok := os.LookupEnv("ENV_BLOCK_SIZE"); ok {
		if iVal, err := strconv.Atoi(val); err == nil {
			cfg.Audio.BlockSize = iVal
			log.Infof("configuration: Overriding audio.block_size from env: %d", iVal)
		} else {
			log.Warnf("configuration: Ignoring ENV_BLOCK_SIZE=%q: %v", val, err)
		}
	}
	// ENV_SMOOTHING_ALPHA
	if val, ok := os.LookupEnv("ENV_SMOOTHING_ALPHA"); ok {
		if fVal, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Modes.SmoothingAlpha = fVal
			log.Infof("configuration: Overriding modes.smoothing_alpha from env: %g", fVal)
		} else {
			log.Warnf("configuration: Ignoring ENV_SMOOTHING_ALPHA=%q: %v", val, err)
		}
	}
	// ENV_EPSILON_BAND
	if val, ok := os.LookupEnv("ENV_EPSILON_BAND"); ok {
		if fVal, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Plate.EpsilonBand = fVal
			log.Infof("configuration: Overriding plate.epsilon_band from env: %g", fVal)
		} else {
			log.Warnf("configuration: Ignoring ENV_EPSILON_BAND=%q: %v", val, err)
		}
	}

	// ENV_{RENDER,TRANSPORT}
	// These pick where frames go.

	// ENV_RENDER_SINK
	if val, ok := os.LookupEnv("ENV_RENDER_SINK"); ok {
		cfg.Render.Sink = val
		log.Infof("configuration: Overriding render.sink from env: %s", val)
	}
	// ENV_UDP_TARGET_ADDRESS
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		cfg.Transport.UDPTargetAddress = val
		log.Infof("configuration: Overriding transport.udp_target_address from env: %s", val)
	}
	// ENV_WEBSOCKET_ADDR
	if val, ok := os.LookupEnv("ENV_WEBSOCKET_ADDR"); ok {
		cfg.Transport.WebSocketAddr = val
		log.Infof("configuration: Overriding transport.websocket_addr from env: %s", val)
	}
}
