// SPDX-License-Identifier: MIT
package main

import (
	"chladni/cmd"
	"chladni/internal/audio"
	"chladni/internal/config"
	"chladni/internal/engine"
	"chladni/internal/log"
	"chladni/internal/tui"
	"chladni/pkg/build"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// main is the entry point for the plate visualiser.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Parse command line arguments and load the configuration
//   - Initialize PortAudio when a device is involved
//   - Execute one-off commands if requested
//
// 2. Concurrent Phase (Hot Path):
//   - Build the engine (source, pipeline, snapshot cell, sinks)
//   - Run the audio loop and the render loop until a signal arrives,
//     the user quits or a finite source drains
//
// 3. Shutdown Phase (Cold Path):
//   - Release the audio source and the sinks
//   - Terminate PortAudio
func main() {
	// Runs after every other deferred cleanup
	exitCode := 0
	defer func() { os.Exit(exitCode) }()

	// ==================== STARTUP PHASE (Cold Path) ====================

	// Development builds carry no ldflags
	if err := build.Initialize(); err != nil {
		log.Debugf("Build info incomplete: %v", err)
	}

	options, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}
	if options.Command == cmd.CommandNone {
		return
	}
	cfg := options.Config
	log.SetLevel(cfg.Level())

	// PortAudio is only needed to talk to devices
	if options.Command == cmd.CommandList || (options.Command == cmd.CommandRun && cfg.Source() == config.SourceDevice) {
		if err := audio.Initialize(); err != nil {
			log.Fatalf("%v", err)
		}
		defer audio.Terminate()
	}

	// Handle one-off commands that don't require the engine to be running
	if options.Command != cmd.CommandRun {
		if err := executeCommand(options); err != nil {
			log.Errorf("%v", err)
			exitCode = 1
		}
		return
	}

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	// Setup signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, err := engine.New(cfg)
	if err != nil {
		log.Errorf("%v", err)
		exitCode = 1
		return
	}

	if cfg.Sink() != config.SinkTUI {
		fmt.Printf("%s running, press Ctrl+C to stop.\n", build.GetBuildFlags().Name)
	}

	runErr := eng.Run(ctx)

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	if err := eng.Close(); err != nil {
		log.Errorf("Error closing engine: %v", err)
	}
	if runErr != nil {
		log.Errorf("%v", runErr)
		exitCode = 1
	}
}

// executeCommand handles one-off commands that don't require the engine to
// be running, such as listing available audio devices.
func executeCommand(options *cmd.Options) error {
	switch options.Command {
	case cmd.CommandList:
		if !options.Interactive {
			return audio.ListDevices(os.Stdout)
		}
		selection, err := tui.PickDevice()
		if err != nil {
			return err
		}
		if selection.Chosen {
			fmt.Print(selection.ConfigSnippet())
		}
		return nil
	case cmd.CommandModes:
		return cmd.PrintModes(os.Stdout, options.Config)
	default:
		return fmt.Errorf("unknown command %q", options.Command)
	}
}
