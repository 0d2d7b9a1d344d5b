// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"errors"
	"fmt"

	"github.com/gordonklaus/portaudio"
)

// DeviceConfig selects and shapes a live input stream.
type DeviceConfig struct {
	DeviceID   int
	Channels   int
	SampleRate float64
	BlockSize  int
	LowLatency bool
}

// DeviceSource reads blocks from a PortAudio input using the blocking API.
// Interleaved input is reduced to channel 0.
type DeviceSource struct {
	stream   *portaudio.Stream
	device   *portaudio.DeviceInfo
	buffer   []float32
	channels int
}

// OpenDevice opens and starts an input stream. PortAudio must already be
// initialised.
func OpenDevice(cfg DeviceConfig) (*DeviceSource, error) {
	device, err := InputDevice(cfg.DeviceID)
	if err != nil {
		return nil, err
	}
	channels := max(1, cfg.Channels)
	if channels > device.MaxInputChannels {
		return nil, fmt.Errorf("device %s has %d input channels, %d requested",
			device.Name, device.MaxInputChannels, channels)
	}

	latency := device.DefaultHighInputLatency
	if cfg.LowLatency {
		latency = device.DefaultLowInputLatency
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: channels,
			Device:   device,
			Latency:  latency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0, // No output device
			Device:   nil,
		},
		FramesPerBuffer: cfg.BlockSize,
		SampleRate:      cfg.SampleRate,
	}

	buffer := make([]float32, cfg.BlockSize*channels)
	stream, err := portaudio.OpenStream(params, buffer)
	if err != nil {
		return nil, fmt.Errorf("failed to open stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("failed to start stream: %w", err)
	}

	return &DeviceSource{
		stream:   stream,
		device:   device,
		buffer:   buffer,
		channels: channels,
	}, nil
}

// Next blocks for one buffer of input. An input overflow still delivers the
// samples PortAudio kept but reports the gap.
func (d *DeviceSource) Next(ctx context.Context, dst Block) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(dst)*d.channels != len(d.buffer) {
		return fmt.Errorf("device block holds %d frames, got buffer for %d", len(d.buffer)/d.channels, len(dst))
	}

	err := d.stream.Read()
	if err != nil && !errors.Is(err, portaudio.InputOverflowed) {
		return fmt.Errorf("failed to read input stream: %w", err)
	}
	downmix(dst, d.buffer, d.channels)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceDiscontinuity, err)
	}
	return nil
}

// Name returns the device name.
func (d *DeviceSource) Name() string {
	return d.device.Name
}

// Close stops and closes the stream.
func (d *DeviceSource) Close() error {
	if d.stream == nil {
		return nil
	}
	if err := d.stream.Stop(); err != nil {
		return err
	}
	if err := d.stream.Close(); err != nil {
		return err
	}
	d.stream = nil
	return nil
}
