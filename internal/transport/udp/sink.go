// SPDX-License-Identifier: MIT

// Package udp streams frame coefficients as compact binary datagrams.
package udp

import (
	"bytes"
	applog "chladni/internal/log"
	"chladni/internal/render"
	"encoding/binary"
	"fmt"
	"math"
)

/*
UDP Packet Structure (BigEndian)

+-----------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description             |
|-------------------|----------------|--------------|-------------------------|
| Sequence Number   | uint32         | 4            | Monotonically increasing|
| Timestamp         | int64          | 8            | Nanoseconds since epoch |
| Mode Count        | uint16         | 2            | Number of floats (N)    |
| Coefficients      | []float32      | N * 4        | Mode amplitudes         |
+-----------------------------------------------------------------------------+
*/

// HeaderSize is the fixed part of every packet.
const HeaderSize = 4 + 8 + 2

// Packet is a decoded datagram.
type Packet struct {
	Sequence     uint32
	Timestamp    int64
	Coefficients []float32
}

// Sink sends one packet per rendered frame through a Sender.
type Sink struct {
	sender      *Sender
	sequenceNum uint32

	// Reused between frames.
	f32Buffer    []float32
	packetBuffer *bytes.Buffer
}

// NewSink returns a sink writing to sender.
func NewSink(sender *Sender) (*Sink, error) {
	if sender == nil {
		return nil, fmt.Errorf("udp sink: sender cannot be nil")
	}
	applog.Infof("UDPSink: Streaming frames to %s", sender.Target())
	return &Sink{sender: sender, packetBuffer: new(bytes.Buffer)}, nil
}

// Render packs the frame's coefficients and sends them.
func (s *Sink) Render(f render.Frame) error {
	if len(f.Coefficients) > math.MaxUint16 {
		return fmt.Errorf("udp sink: %d coefficients do not fit a packet", len(f.Coefficients))
	}
	if cap(s.f32Buffer) < len(f.Coefficients) {
		s.f32Buffer = make([]float32, len(f.Coefficients))
	}
	s.f32Buffer = s.f32Buffer[:len(f.Coefficients)]
	for i, v := range f.Coefficients {
		s.f32Buffer[i] = float32(v)
	}

	s.sequenceNum++
	if err := encode(s.packetBuffer, s.sequenceNum, f.At.UnixNano(), s.f32Buffer); err != nil {
		return fmt.Errorf("udp sink: packing frame %d: %w", f.Seq, err)
	}

	if err := s.sender.Send(s.packetBuffer.Bytes()); err != nil {
		return err
	}
	applog.Debugf("UDPSink: Sent packet %d (%d bytes)", s.sequenceNum, s.packetBuffer.Len())
	return nil
}

// Close closes the underlying sender.
func (s *Sink) Close() error {
	return s.sender.Close()
}

func encode(buf *bytes.Buffer, seq uint32, timestamp int64, coeffs []float32) error {
	buf.Reset()
	err := binary.Write(buf, binary.BigEndian, seq)
	if err == nil {
		err = binary.Write(buf, binary.BigEndian, timestamp)
	}
	if err == nil {
		err = binary.Write(buf, binary.BigEndian, uint16(len(coeffs)))
	}
	if err == nil {
		err = binary.Write(buf, binary.BigEndian, coeffs)
	}
	return err
}

// Decode parses a datagram produced by Sink.
func Decode(data []byte) (Packet, error) {
	if len(data) < HeaderSize {
		return Packet{}, fmt.Errorf("udp: packet of %d bytes is shorter than the header", len(data))
	}
	p := Packet{
		Sequence:  binary.BigEndian.Uint32(data[0:4]),
		Timestamp: int64(binary.BigEndian.Uint64(data[4:12])),
	}
	count := int(binary.BigEndian.Uint16(data[12:14]))
	if want := HeaderSize + 4*count; len(data) != want {
		return Packet{}, fmt.Errorf("udp: packet holds %d bytes, header promises %d", len(data), want)
	}
	p.Coefficients = make([]float32, count)
	for i := range p.Coefficients {
		off := HeaderSize + 4*i
		p.Coefficients[i] = math.Float32frombits(binary.BigEndian.Uint32(data[off : off+4]))
	}
	return p, nil
}

var _ render.Sink = (*Sink)(nil)
