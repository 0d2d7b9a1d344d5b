// SPDX-License-Identifier: MIT
package transport

import (
	"chladni/internal/log"
	"chladni/internal/plate"
	"chladni/internal/render"
	"context"
)

// LoggingSink reports the dominant mode of every frame at debug level. With
// a raster attached it also reports how much of the plate is covered by
// sand.
type LoggingSink struct {
	raster  *plate.Raster
	density []float64
}

func NewLoggingSink() *LoggingSink {
	log.Infof("Transport: Using LoggingSink")
	return &LoggingSink{}
}

// WithRaster evaluates each logged frame on r. The sink must then be driven
// from a single goroutine.
func (s *LoggingSink) WithRaster(r *plate.Raster) *LoggingSink {
	w, h := r.Size()
	s.raster = r
	s.density = make([]float64, w*h)
	return s
}

func (s *LoggingSink) Render(f render.Frame) error {
	if !log.Enabled(log.LevelDebug) {
		return nil
	}
	i, amp := f.Dominant()
	if i < 0 {
		log.Debugf("Frame %d: plate at rest", f.Seq)
		return nil
	}
	m := f.Bank.Mode(i)
	if s.raster == nil {
		log.Debugf("Frame %d: dominant mode %d (m=%d, n=%d, %.1f Hz) amplitude %.3f",
			f.Seq, i, m.Angular, m.Radial, m.Frequency, amp)
		return nil
	}

	if err := s.raster.Evaluate(context.Background(), f.Coefficients, f.Epsilon, s.density); err != nil {
		return err
	}
	log.Debugf("Frame %d: dominant mode %d (m=%d, n=%d, %.1f Hz) amplitude %.3f, sand %.1f%%",
		f.Seq, i, m.Angular, m.Radial, m.Frequency, amp, 100*s.coverage())
	return nil
}

// coverage is the mean sand density over the samples on the plate.
func (s *LoggingSink) coverage() float64 {
	var sum float64
	var n int
	for p, d := range s.density {
		if s.raster.Inside(p) {
			sum += d
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func (s *LoggingSink) Close() error {
	return nil
}

var _ render.Sink = (*LoggingSink)(nil)
