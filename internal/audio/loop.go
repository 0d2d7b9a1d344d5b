// SPDX-License-Identifier: MIT
package audio

import (
	"chladni/internal/analysis"
	"chladni/internal/log"
	"chladni/internal/state"
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync/atomic"
)

// Stats counts what the loop has done with the blocks it received.
type Stats struct {
	Blocks   uint64 // blocks delivered by the supplier
	Gaps     uint64 // discontinuities
	Rejected uint64 // blocks the analyzer refused, as counted by the pipeline
	Gated    uint64 // blocks below the gate threshold
}

// Loop pulls blocks from a Supplier at the supplier's pace, turns each into
// a coefficient vector and publishes it. It is the only writer of the cell.
type Loop struct {
	supplier Supplier
	pipeline *analysis.Pipeline
	cell     *state.Cell
	gate     *Gate
	block    Block

	blocks atomic.Uint64
	gaps   atomic.Uint64
	gated  atomic.Uint64
}

// NewLoop wires a supplier to the pipeline and the cell. gate may be nil.
func NewLoop(supplier Supplier, pipeline *analysis.Pipeline, cell *state.Cell, gate *Gate) *Loop {
	return &Loop{
		supplier: supplier,
		pipeline: pipeline,
		cell:     cell,
		gate:     gate,
		block:    make(Block, pipeline.Analyzer().BlockSize()),
	}
}

// Run processes blocks until ctx is cancelled or the supplier is drained,
// both of which return nil. Any other supplier error ends the loop.
func (l *Loop) Run(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	log.Debugf("Audio loop started (block size %d)", len(l.block))
	defer func() {
		s := l.Stats()
		log.Debugf("Audio loop stopped: %d blocks, %d gaps, %d rejected, %d gated",
			s.Blocks, s.Gaps, s.Rejected, s.Gated)
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}
		err := l.Step(ctx)
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			log.Infof("Audio source drained")
			return nil
		case ctx.Err() != nil:
			return nil
		default:
			return fmt.Errorf("audio loop: %w", err)
		}
	}
}

// Step handles exactly one block: fetch, gate, analyse, publish.
//
// A discontinuity or a gated block decays the coefficients and publishes
// them. A block the analyzer rejects is dropped and the previous snapshot
// stays current.
func (l *Loop) Step(ctx context.Context) error {
	err := l.supplier.Next(ctx, l.block)
	switch {
	case err == nil:
	case errors.Is(err, ErrDeviceDiscontinuity):
		n := l.gaps.Add(1)
		log.Debugf("Input discontinuity (%d so far): %v", n, err)
		return l.publish(l.pipeline.Silence())
	default:
		return err
	}

	l.blocks.Add(1)
	if !l.gate.Open(l.block) {
		l.gated.Add(1)
		return l.publish(l.pipeline.Silence())
	}

	coeffs, err := l.pipeline.Process(l.block)
	if err != nil {
		if errors.Is(err, analysis.ErrContractViolation) {
			log.Debugf("Dropped block (%d so far): %v", l.pipeline.Rejected(), err)
			return nil
		}
		return err
	}
	return l.publish(coeffs)
}

func (l *Loop) publish(coeffs []float64) error {
	if err := l.cell.Publish(coeffs); err != nil {
		return fmt.Errorf("publish coefficients: %w", err)
	}
	return nil
}

// Stats returns a consistent-enough view of the counters for reporting.
func (l *Loop) Stats() Stats {
	return Stats{
		Blocks:   l.blocks.Load(),
		Gaps:     l.gaps.Load(),
		Rejected: l.pipeline.Rejected(),
		Gated:    l.gated.Load(),
	}
}
