// SPDX-License-Identifier: MIT
/*
Package engine assembles the visualiser from a validated configuration:

	supplier -> audio loop -> state cell -> render loop -> sinks
	                                     \-> terminal view

The audio loop is the only writer of the cell. The render loop, or the
terminal view when the tui sink is selected, is the only reader. Both run
under one errgroup and stop together.
*/
package engine

import (
	"chladni/internal/analysis"
	"chladni/internal/audio"
	"chladni/internal/config"
	"chladni/internal/log"
	"chladni/internal/plate"
	"chladni/internal/render"
	"chladni/internal/state"
	"chladni/internal/transport"
	"chladni/internal/transport/udp"
	"chladni/internal/tui"
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Hooks for tests; the device source needs PortAudio.
var (
	openDevice = func(cfg audio.DeviceConfig) (audio.Supplier, error) { return audio.OpenDevice(cfg) }
	runTUI     = tui.Run
)

type Engine struct {
	cfg        *config.Config
	sampleRate float64

	bank     *plate.Bank
	cell     *state.Cell
	pipeline *analysis.Pipeline
	supplier audio.Supplier

	audioLoop  *audio.Loop
	renderLoop *render.Loop // nil when the terminal view renders
}

// New builds every stage. The returned engine owns the supplier and the
// sinks; Close releases them.
func New(cfg *config.Config) (engine *Engine, err error) {
	engine = &Engine{cfg: cfg, sampleRate: cfg.Audio.SampleRate}

	engine.bank, err = plate.NewBank(cfg.Frequencies())
	if err != nil {
		return nil, &config.ConfigurationError{Field: "modes", Value: cfg.Modes.ModeCount, Reason: err.Error()}
	}

	engine.supplier, err = engine.openSupplier()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			engine.supplier.Close()
		}
	}()

	if top := engine.bank.Highest(); top >= engine.sampleRate/2 {
		log.Warnf("Engine: mode at %.1f Hz is above Nyquist (%.1f Hz) and will stay at rest", top, engine.sampleRate/2)
	}

	analyzer, err := analysis.NewAnalyzer(cfg.Audio.BlockSize, engine.sampleRate, cfg.WindowFunc())
	if err != nil {
		return nil, err
	}
	mapper, err := analysis.NewMapper(engine.bank, cfg.MapperConfig())
	if err != nil {
		return nil, err
	}
	engine.pipeline = analysis.NewPipeline(analyzer, mapper)
	engine.cell = state.NewCell(engine.bank.Len())
	engine.audioLoop = audio.NewLoop(engine.supplier, engine.pipeline, engine.cell, audio.NewGate(cfg.Audio.GateThreshold))

	if cfg.Sink() != config.SinkTUI {
		sink, err := engine.openSink()
		if err != nil {
			return nil, err
		}
		engine.renderLoop, err = render.NewLoop(engine.cell, engine.bank, cfg.Plate.EpsilonBand, cfg.Render.FrameRate, sink)
		if err != nil {
			sink.Close()
			return nil, err
		}
	}

	log.Infof("Engine: %d modes (%.1f-%.1f Hz), %s source at %.0f Hz, block %d (%s), %s sink",
		engine.bank.Len(), engine.bank.Mode(0).Frequency, engine.bank.Highest(),
		cfg.Source(), engine.sampleRate, cfg.Audio.BlockSize,
		audio.BlockPeriod(cfg.Audio.BlockSize, engine.sampleRate), cfg.Sink())
	return engine, nil
}

func (e *Engine) openSupplier() (audio.Supplier, error) {
	a := e.cfg.Audio
	switch e.cfg.Source() {
	case config.SourceWAV:
		src, err := audio.OpenWAV(a.WAVFile, a.BlockSize)
		if err != nil {
			return nil, err
		}
		if src.SampleRate() != a.SampleRate {
			log.Infof("Engine: %s is sampled at %.0f Hz, overriding sample_rate %.0f", a.WAVFile, src.SampleRate(), a.SampleRate)
		}
		e.sampleRate = src.SampleRate()
		src.SetPaced(true)
		return src, nil
	case config.SourceTone:
		src, err := audio.NewToneSource(a.ToneFrequency, 0.5, a.SampleRate, a.BlockSize)
		if err != nil {
			return nil, err
		}
		src.SetPaced(true)
		return src, nil
	default:
		return openDevice(audio.DeviceConfig{
			DeviceID:   a.InputDevice,
			Channels:   a.InputChannels,
			SampleRate: a.SampleRate,
			BlockSize:  a.BlockSize,
			LowLatency: a.LowLatency,
		})
	}
}

func (e *Engine) openSink() (render.Sink, error) {
	t := e.cfg.Transport
	switch e.cfg.Sink() {
	case config.SinkWebSocket:
		ws := transport.NewWebSocketSink(t.WebSocketAddr, e.bank, e.cfg.Plate.EpsilonBand)
		if err := ws.Start(); err != nil {
			ws.Close()
			return nil, err
		}
		return ws, nil
	case config.SinkUDP:
		sender, err := udp.NewSender(t.UDPTargetAddress)
		if err != nil {
			return nil, err
		}
		sink, err := udp.NewSink(sender)
		if err != nil {
			sender.Close()
			return nil, err
		}
		return sink, nil
	default:
		res := e.cfg.Plate.Resolution
		raster, err := plate.NewRaster(e.bank, res, res)
		if err != nil {
			return nil, err
		}
		return transport.NewLoggingSink().WithRaster(raster), nil
	}
}

// Run starts both loops and blocks until ctx is cancelled, the user leaves
// the terminal view, a finite source drains (network and log sinks only),
// or a loop fails.
func (e *Engine) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := e.audioLoop.Run(ctx)
		if e.renderLoop != nil {
			cancel()
		}
		return err
	})
	g.Go(func() error {
		defer cancel()
		if e.renderLoop != nil {
			return e.renderLoop.Run(ctx)
		}
		return runTUI(ctx, e.cell, e.bank, tui.Options{
			FrameRate: e.cfg.Render.FrameRate,
			Epsilon:   e.cfg.Plate.EpsilonBand,
			LogFile:   e.cfg.Render.LogFile,
		})
	})

	err := g.Wait()
	s := e.audioLoop.Stats()
	log.Infof("Engine: stopped after %d blocks (%d gaps, %d rejected, %d gated)",
		s.Blocks, s.Gaps, s.Rejected, s.Gated)
	return err
}

// Close releases the supplier and every sink.
func (e *Engine) Close() error {
	var errs []error
	if err := e.supplier.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close audio source: %w", err))
	}
	if e.renderLoop != nil {
		if err := e.renderLoop.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close render sinks: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Bank returns the mode bank.
func (e *Engine) Bank() *plate.Bank {
	return e.bank
}

// Cell returns the snapshot cell shared by the loops.
func (e *Engine) Cell() *state.Cell {
	return e.cell
}

// SampleRate returns the rate the pipeline runs at, which a WAV file may
// have overridden.
func (e *Engine) SampleRate() float64 {
	return e.sampleRate
}

// Stats returns the audio loop counters.
func (e *Engine) Stats() audio.Stats {
	return e.audioLoop.Stats()
}
