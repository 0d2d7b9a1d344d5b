// SPDX-License-Identifier: MIT
package audio

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Gate is a peak noise gate. A block whose absolute peak does not exceed the
// threshold counts as silence.
type Gate struct {
	enabled   bool
	threshold float64
}

// NewGate returns a gate at threshold (0.0-1.0). A zero threshold disables
// it.
func NewGate(threshold float64) *Gate {
	g := &Gate{}
	g.SetThreshold(threshold)
	g.enabled = g.threshold > 0
	return g
}

func (g *Gate) Enable() {
	g.enabled = true
}

func (g *Gate) Disable() {
	g.enabled = false
}

// Enabled reports whether the gate is active.
func (g *Gate) Enabled() bool {
	return g.enabled
}

// SetThreshold adjusts the threshold, clamped to 0.0-1.0 where 0 = always
// open and 1 = always closed.
func (g *Gate) SetThreshold(threshold float64) {
	g.threshold = math.Max(0, math.Min(1, threshold))
}

// Threshold returns the current threshold.
func (g *Gate) Threshold() float64 {
	return g.threshold
}

// Open reports whether block should be analysed.
func (g *Gate) Open(block Block) bool {
	if g == nil || !g.enabled || len(block) == 0 {
		return true
	}
	return floats.Norm(block, math.Inf(1)) > g.threshold
}
