// SPDX-License-Identifier: MIT

// Package render drives frame sinks from the latest published mode state at
// a fixed frame rate, independent of the audio block rate.
package render

import (
	"chladni/internal/plate"
	"time"
)

// Frame is what a sink receives once per tick. Coefficients belong to an
// immutable snapshot and must not be modified.
type Frame struct {
	Seq          uint64
	At           time.Time
	Coefficients []float64
	Bank         *plate.Bank
	Epsilon      float64
}

// Dominant returns the index and amplitude of the most excited mode, or -1
// when the plate is at rest.
func (f Frame) Dominant() (int, float64) {
	index, peak := -1, 0.0
	for i, c := range f.Coefficients {
		if c > peak {
			index, peak = i, c
		}
	}
	return index, peak
}

// Sink consumes frames. Render is called from the render loop goroutine
// only; it should return quickly and never block on the audio side.
type Sink interface {
	Render(Frame) error
	Close() error
}
