// SPDX-License-Identifier: MIT

// Package state holds the single hand-off point between the audio loop and
// the render loop: the latest mode coefficient vector, replaced wholesale on
// every publish so readers never see a half-written frame.
package state

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Snapshot is one published coefficient vector. A Snapshot is immutable once
// stored; readers must not modify Coefficients.
type Snapshot struct {
	Seq          uint64
	At           time.Time
	Coefficients []float64
}

// Cell is a single-writer, multi-reader snapshot cell. Publish swaps in a
// fresh Snapshot; Load returns whichever snapshot is current. Neither side
// blocks the other.
type Cell struct {
	modes   int
	seq     atomic.Uint64
	current atomic.Pointer[Snapshot]
}

// NewCell returns a cell for modes coefficients, holding an all-zero
// snapshot so readers always have something to render.
func NewCell(modes int) *Cell {
	c := &Cell{modes: modes}
	c.current.Store(&Snapshot{At: time.Now(), Coefficients: make([]float64, modes)})
	return c
}

// Publish copies coeffs into a new snapshot and makes it current.
func (c *Cell) Publish(coeffs []float64) error {
	if len(coeffs) != c.modes {
		return fmt.Errorf("state: published %d coefficients, cell holds %d", len(coeffs), c.modes)
	}
	snap := &Snapshot{
		Seq:          c.seq.Add(1),
		At:           time.Now(),
		Coefficients: make([]float64, c.modes),
	}
	copy(snap.Coefficients, coeffs)
	c.current.Store(snap)
	return nil
}

// Load returns the current snapshot.
func (c *Cell) Load() *Snapshot {
	return c.current.Load()
}

// LoadInto copies the current coefficients into dst and returns the
// snapshot's sequence number. dst must hold Modes() values.
func (c *Cell) LoadInto(dst []float64) uint64 {
	snap := c.current.Load()
	copy(dst, snap.Coefficients)
	return snap.Seq
}

// Modes returns the coefficient vector length.
func (c *Cell) Modes() int {
	return c.modes
}
