// SPDX-License-Identifier: MIT
package render

import (
	"chladni/internal/log"
	"chladni/internal/plate"
	"chladni/internal/state"
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

// Loop ticks at a fixed frame rate, reads the current snapshot and hands a
// Frame to every sink. It never waits on the audio loop: if no new snapshot
// was published since the last tick the previous one is rendered again.
type Loop struct {
	cell     *state.Cell
	bank     *plate.Bank
	epsilon  float64
	interval time.Duration
	sinks    []Sink

	skipUnchanged bool
	lastSeq       uint64
	started       bool

	frames  atomic.Uint64
	skipped atomic.Uint64
	failed  atomic.Uint64
}

// NewLoop returns a render loop at frameRate frames per second.
func NewLoop(cell *state.Cell, bank *plate.Bank, epsilon, frameRate float64, sinks ...Sink) (*Loop, error) {
	if !(frameRate > 0) {
		return nil, fmt.Errorf("render: frame rate must be positive, got %g", frameRate)
	}
	if cell.Modes() != bank.Len() {
		return nil, fmt.Errorf("render: cell holds %d modes, bank has %d", cell.Modes(), bank.Len())
	}
	return &Loop{
		cell:     cell,
		bank:     bank,
		epsilon:  epsilon,
		interval: time.Duration(float64(time.Second) / frameRate),
		sinks:    sinks,
	}, nil
}

// SetSkipUnchanged makes Tick skip frames whose snapshot was already
// rendered.
func (l *Loop) SetSkipUnchanged(skip bool) {
	l.skipUnchanged = skip
}

// Interval returns the frame period.
func (l *Loop) Interval() time.Duration {
	return l.interval
}

// Run ticks until ctx is cancelled. Sinks are not closed here.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	log.Infof("Render loop started (%s per frame, %d sinks)", l.interval, len(l.sinks))
	for {
		select {
		case <-ctx.Done():
			log.Infof("Render loop stopped after %d frames", l.frames.Load())
			return nil
		case <-ticker.C:
			l.Tick()
		}
	}
}

// Tick renders the current snapshot once. It reports whether a frame was
// delivered.
func (l *Loop) Tick() bool {
	snap := l.cell.Load()
	if l.skipUnchanged && l.started && snap.Seq == l.lastSeq {
		l.skipped.Add(1)
		return false
	}
	l.started = true
	l.lastSeq = snap.Seq

	frame := Frame{
		Seq:          snap.Seq,
		At:           snap.At,
		Coefficients: snap.Coefficients,
		Bank:         l.bank,
		Epsilon:      l.epsilon,
	}
	for _, sink := range l.sinks {
		if err := sink.Render(frame); err != nil {
			n := l.failed.Add(1)
			log.Warnf("Render sink %T failed (%d errors so far): %v", sink, n, err)
		}
	}
	l.frames.Add(1)
	return true
}

// Frames returns how many frames were delivered.
func (l *Loop) Frames() uint64 {
	return l.frames.Load()
}

// Errors returns how many sink calls failed.
func (l *Loop) Errors() uint64 {
	return l.failed.Load()
}

// Close closes every sink and returns their joined errors.
func (l *Loop) Close() error {
	var errs []error
	for _, sink := range l.sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
