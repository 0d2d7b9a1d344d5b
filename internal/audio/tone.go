// SPDX-License-Identifier: MIT
package audio

import (
	"chladni/pkg/utils"
	"context"
	"fmt"
	"time"
)

// ToneSource generates a continuous sine, one block per block period.
type ToneSource struct {
	sampleRate float64
	frequency  float64
	amplitude  float64
	phase      float64
	period     time.Duration
	pace       *pacer
}

// NewToneSource returns a tone at frequency Hz and peak amplitude, paced for
// blockSize-sample blocks.
func NewToneSource(frequency, amplitude, sampleRate float64, blockSize int) (*ToneSource, error) {
	if !(frequency > 0) || frequency >= sampleRate/2 {
		return nil, fmt.Errorf("tone frequency %g Hz must be in (0, %g)", frequency, sampleRate/2)
	}
	period := BlockPeriod(blockSize, sampleRate)
	return &ToneSource{
		sampleRate: sampleRate,
		frequency:  frequency,
		amplitude:  amplitude,
		period:     period,
		pace:       newPacer(period),
	}, nil
}

// SetPaced turns wall-clock pacing on or off.
func (t *ToneSource) SetPaced(paced bool) {
	t.pace.stop()
	if paced {
		t.pace = newPacer(t.period)
		return
	}
	t.pace = nil
}

// Next writes the next phase-continuous block.
func (t *ToneSource) Next(ctx context.Context, dst Block) error {
	if err := t.pace.wait(ctx); err != nil {
		return err
	}
	t.phase = utils.FillSine(dst, t.sampleRate, t.frequency, t.amplitude, t.phase)
	return nil
}

func (t *ToneSource) Close() error {
	t.pace.stop()
	return nil
}
