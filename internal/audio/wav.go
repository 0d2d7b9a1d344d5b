// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVSource replays a PCM WAV file block by block. The file's own sample
// rate is authoritative; multi-channel files keep channel 0. A final
// partial block is zero padded, after which Next returns io.EOF.
type WAVSource struct {
	file       *os.File
	decoder    *wav.Decoder
	buffer     *goaudio.IntBuffer
	channels   int
	sampleRate float64
	scale      float64
	blockSize  int
	drained    bool
	pace       *pacer
}

// OpenWAV opens path for replay in blockSize-sample blocks.
func OpenWAV(path string, blockSize int) (*WAVSource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open WAV file: %w", err)
	}

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		file.Close()
		return nil, fmt.Errorf("%s is not a valid WAV file", path)
	}
	if err := decoder.FwdToPCM(); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to locate PCM data in %s: %w", path, err)
	}

	channels := max(1, int(decoder.NumChans))
	sampleRate := float64(decoder.SampleRate)
	bitDepth := int(decoder.BitDepth)
	if bitDepth <= 0 || sampleRate <= 0 {
		file.Close()
		return nil, fmt.Errorf("%s has unsupported format (%d bit, %g Hz)", path, bitDepth, sampleRate)
	}

	return &WAVSource{
		file:    file,
		decoder: decoder,
		buffer: &goaudio.IntBuffer{
			Format: &goaudio.Format{NumChannels: channels, SampleRate: int(sampleRate)},
			Data:   make([]int, blockSize*channels),
		},
		channels:   channels,
		sampleRate: sampleRate,
		scale:      1 / float64(int64(1)<<(bitDepth-1)),
		blockSize:  blockSize,
		pace:       newPacer(BlockPeriod(blockSize, sampleRate)),
	}, nil
}

// SampleRate returns the file's sample rate in Hz.
func (w *WAVSource) SampleRate() float64 {
	return w.sampleRate
}

// SetPaced turns wall-clock pacing on or off.
func (w *WAVSource) SetPaced(paced bool) {
	w.pace.stop()
	if paced {
		w.pace = newPacer(BlockPeriod(w.blockSize, w.sampleRate))
		return
	}
	w.pace = nil
}

// Next decodes the next block.
func (w *WAVSource) Next(ctx context.Context, dst Block) error {
	if w.drained {
		return io.EOF
	}
	if len(dst) != w.blockSize {
		return fmt.Errorf("WAV source reads %d-sample blocks, got buffer for %d", w.blockSize, len(dst))
	}
	if err := w.pace.wait(ctx); err != nil {
		return err
	}

	w.buffer.Data = w.buffer.Data[:cap(w.buffer.Data)]
	n, err := w.decoder.PCMBuffer(w.buffer)
	if err != nil {
		return fmt.Errorf("failed to decode WAV data: %w", err)
	}
	frames := n / w.channels
	if frames == 0 {
		w.drained = true
		return io.EOF
	}

	for i := range frames {
		dst[i] = float64(w.buffer.Data[i*w.channels]) * w.scale
	}
	for i := frames; i < len(dst); i++ {
		dst[i] = 0
	}
	if frames < len(dst) {
		w.drained = true
	}
	return nil
}

// Close releases the file.
func (w *WAVSource) Close() error {
	w.pace.stop()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}
