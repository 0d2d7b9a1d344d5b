// SPDX-License-Identifier: MIT
package cmd

import (
	"chladni/internal/config"
	"chladni/internal/log"
	"chladni/pkg/build"
	"fmt"

	"github.com/spf13/cobra"
)

// Commands selected on the command line.
const (
	CommandNone  = ""      // help or version was printed
	CommandRun   = "run"   // start the visualiser
	CommandList  = "list"  // list audio devices
	CommandModes = "modes" // print the mode bank
)

// Options is what the command line asked for. Config is the loaded
// configuration with any explicitly set flags applied on top.
type Options struct {
	Command     string
	Interactive bool // list: open the device picker
	Config      *config.Config
}

// flagValues receives flag values; only flags the user set are copied into
// the configuration, so file and ENV_* values survive.
type flagValues struct {
	configPath string
	verbose    bool
	logFile    string

	source     string
	deviceID   int
	channels   int
	sampleRate float64
	blockSize  int
	lowLatency bool
	wavFile    string
	tone       float64
	gate       float64

	modes     int
	alpha     float64
	epsilon   float64
	sink      string
	frameRate float64
}

// ParseArgs parses args (without the program name) and loads the
// configuration the selected command needs.
func ParseArgs(args []string) (*Options, error) {
	buildInfo := build.GetBuildFlags()
	options := &Options{Command: CommandNone}
	var flags flagValues

	// Flags are layered over file and ENV_* values before the single
	// validation, so a flag can repair a bad file value. Listing devices
	// needs none of the configuration and runs on defaults if it is broken.
	load := func(cmd *cobra.Command, command string) error {
		cfg, err := config.Load(flags.configPath)
		if err != nil {
			if command != CommandList {
				return err
			}
			log.Warnf("Ignoring configuration: %v", err)
			cfg = config.Default()
		}
		flags.apply(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			if command != CommandList {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			log.Warnf("Configuration is invalid, listing devices anyway: %v", err)
		}
		options.Command = command
		options.Config = cfg
		return nil
	}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return load(cmd, CommandRun)
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	// List command
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio input devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			return load(cmd, CommandList)
		},
	}
	listCmd.Flags().BoolVarP(&options.Interactive, "interactive", "i", false,
		"Pick a device and sample rate interactively and print the config lines")
	rootCmd.AddCommand(listCmd)

	// Modes command
	modesCmd := &cobra.Command{
		Use:   "modes",
		Short: "Print the plate modes and the frequencies that drive them",
		RunE: func(cmd *cobra.Command, args []string) error {
			return load(cmd, CommandModes)
		},
	}
	rootCmd.AddCommand(modesCmd)

	pf := rootCmd.PersistentFlags()

	// Configuration
	pf.StringVarP(&flags.configPath, "config", "f", "",
		fmt.Sprintf("Configuration file (default: first of %v found)", config.DefaultFiles))
	pf.BoolVarP(&flags.verbose, "verbose", "v", false,
		"Show verbose output")
	pf.StringVar(&flags.logFile, "log-file", "",
		"Write logs here while the terminal view is running")

	// Audio source
	pf.StringVar(&flags.source, "source", config.DefaultSource,
		"Audio source: device, wav or tone")
	pf.IntVarP(&flags.deviceID, "device", "d", config.DefaultDeviceID,
		"Specify input device ID. Use 'list' command to see available devices.")
	pf.IntVarP(&flags.channels, "channels", "c", config.DefaultChannels,
		"Number of channels to capture (only the first is analysed)")
	pf.Float64VarP(&flags.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	pf.IntVarP(&flags.blockSize, "block-size", "b", config.DefaultBlockSize,
		"Samples per analysis block, a power of two (affects latency)")
	pf.BoolVarP(&flags.lowLatency, "low-latency", "l", false,
		"Use low latency mode for real-time processing")
	pf.StringVarP(&flags.wavFile, "wav", "w", "",
		"Replay a WAV file instead of capturing (implies --source wav)")
	pf.Float64VarP(&flags.tone, "tone", "t", config.DefaultToneFrequency,
		"Drive the plate with a sine tone of this frequency (implies --source tone)")
	pf.Float64VarP(&flags.gate, "gate", "g", 0,
		"Peak level below which a block counts as silence (0 disables)")

	// Modes and rendering
	pf.IntVarP(&flags.modes, "modes", "m", config.DefaultModeCount,
		"Number of plate modes (frequencies derived from modes.base_frequency)")
	pf.Float64VarP(&flags.alpha, "alpha", "a", config.DefaultSmoothingAlpha,
		"Smoothing weight of the newest block, (0,1]")
	pf.Float64VarP(&flags.epsilon, "epsilon", "e", config.DefaultEpsilonBand,
		"Displacement band drawn as sand")
	pf.StringVar(&flags.sink, "sink", config.DefaultSink,
		"Where frames go: tui, websocket, udp or log")
	pf.Float64VarP(&flags.frameRate, "frame-rate", "r", config.DefaultFrameRate,
		"Frames per second")

	// Execute the CLI
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	return options, nil
}

// apply copies every flag the user set into cfg.
func (f *flagValues) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed

	if changed("verbose") && f.verbose {
		cfg.Debug = true
	}
	if changed("log-file") {
		cfg.Render.LogFile = f.logFile
	}

	if changed("source") {
		cfg.Audio.Source = f.source
	}
	if changed("device") {
		cfg.Audio.InputDevice = f.deviceID
	}
	if changed("channels") {
		cfg.Audio.InputChannels = f.channels
	}
	if changed("sample-rate") {
		cfg.Audio.SampleRate = f.sampleRate
	}
	if changed("block-size") {
		cfg.Audio.BlockSize = f.blockSize
	}
	if changed("low-latency") {
		cfg.Audio.LowLatency = f.lowLatency
	}
	if changed("wav") {
		cfg.Audio.Source = config.SourceWAV
		cfg.Audio.WAVFile = f.wavFile
	}
	if changed("tone") {
		cfg.Audio.Source = config.SourceTone
		cfg.Audio.ToneFrequency = f.tone
	}
	if changed("gate") {
		cfg.Audio.GateThreshold = f.gate
	}

	if changed("modes") {
		cfg.Modes.ModeCount = f.modes
		cfg.Modes.ModeFrequencies = nil
	}
	if changed("alpha") {
		cfg.Modes.SmoothingAlpha = f.alpha
	}
	if changed("epsilon") {
		cfg.Plate.EpsilonBand = f.epsilon
	}
	if changed("sink") {
		cfg.Render.Sink = f.sink
	}
	if changed("frame-rate") {
		cfg.Render.FrameRate = f.frameRate
	}
}
