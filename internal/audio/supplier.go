// SPDX-License-Identifier: MIT

/*
Package audio captures fixed-size mono blocks and drives them through the
analysis pipeline into the shared mode state.

Sources:
  - PortAudio blocking input (live device)
  - WAV file replay, paced at the block period
  - Synthetic tone, paced at the block period

Thread Safety:
  - A Supplier and its Loop are owned by one goroutine
  - The Loop publishes into a state.Cell, the only value shared with rendering
  - Block buffers are allocated once; the hot path does not allocate
*/
package audio

import (
	"context"
	"errors"
	"time"
)

// Block is one fixed-length run of mono samples in [-1, 1].
type Block []float64

// ErrDeviceDiscontinuity reports that samples were lost between the previous
// block and this one (input overflow, dropped buffer). The block contents
// must not be analysed.
var ErrDeviceDiscontinuity = errors.New("audio: device discontinuity")

// Supplier produces blocks in time order.
//
// Next fills dst with exactly len(dst) samples. It returns an error wrapping
// ErrDeviceDiscontinuity for gaps, io.EOF once a finite source is drained,
// and ctx.Err() when ctx is cancelled while waiting.
type Supplier interface {
	Next(ctx context.Context, dst Block) error
	Close() error
}

// downmix copies channel 0 of an interleaved buffer into dst.
func downmix(dst Block, interleaved []float32, channels int) {
	if channels <= 1 {
		for i := range dst {
			dst[i] = float64(interleaved[i])
		}
		return
	}
	for i := range dst {
		dst[i] = float64(interleaved[i*channels])
	}
}

// BlockPeriod is the wall-clock duration of blockSize samples.
func BlockPeriod(blockSize int, sampleRate float64) time.Duration {
	return time.Duration(float64(blockSize) / sampleRate * float64(time.Second))
}

// pacer releases one block per period so file and synthetic sources run at
// the rate a live device would.
type pacer struct {
	period time.Duration
	ticker *time.Ticker
}

func newPacer(period time.Duration) *pacer {
	return &pacer{period: period}
}

// wait blocks until the next period boundary. The first call returns
// immediately and starts the clock. A nil pacer never waits.
func (p *pacer) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p == nil || p.period <= 0 {
		return nil
	}
	if p.ticker == nil {
		p.ticker = time.NewTicker(p.period)
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ticker.C:
		return nil
	}
}

func (p *pacer) stop() {
	if p != nil && p.ticker != nil {
		p.ticker.Stop()
		p.ticker = nil
	}
}
