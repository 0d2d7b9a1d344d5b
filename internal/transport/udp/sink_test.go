// SPDX-License-Identifier: MIT
package udp

import (
	"chladni/internal/render"
	"errors"
	"net"
	"testing"
	"time"
)

func listen(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("ListenUDP: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestSinkSendsPackets(t *testing.T) {
	server := listen(t)
	sender, err := NewSender(server.LocalAddr().String())
	if err != nil {
		t.Fatalf("NewSender: %v", err)
	}
	sink, err := NewSink(sender)
	if err != nil {
		t.Fatalf("NewSink: %v", err)
	}
	defer sink.Close()

	at := time.Unix(1700000000, 123456789)
	coeffs := []float64{0, 0.25, 0.5, 1}
	for range 2 {
		if err := sink.Render(render.Frame{Seq: 7, At: at, Coefficients: coeffs}); err != nil {
			t.Fatalf("Render: %v", err)
		}
	}

	buf := make([]byte, 1500)
	server.SetReadDeadline(time.Now().Add(2 * time.Second))
	for wantSeq := uint32(1); wantSeq <= 2; wantSeq++ {
		n, _, err := server.ReadFromUDP(buf)
		if err != nil {
			t.Fatalf("ReadFromUDP: %v", err)
		}
		if n != HeaderSize+4*len(coeffs) {
			t.Fatalf("packet is %d bytes, want %d", n, HeaderSize+4*len(coeffs))
		}
		p, err := Decode(buf[:n])
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if p.Sequence != wantSeq {
			t.Errorf("Sequence = %d, want %d", p.Sequence, wantSeq)
		}
		if p.Timestamp != at.UnixNano() {
			t.Errorf("Timestamp = %d, want %d", p.Timestamp, at.UnixNano())
		}
		for i, c := range coeffs {
			if p.Coefficients[i] != float32(c) {
				t.Errorf("coefficient %d = %f, want %f", i, p.Coefficients[i], c)
			}
		}
	}
}

func TestDecodeRejectsMalformedPackets(t *testing.T) {
	tests := map[string][]byte{
		"short header":     make([]byte, HeaderSize-1),
		"truncated body":   append(make([]byte, 12), 0, 2, 0, 0, 0, 0),
		"trailing garbage": append(make([]byte, HeaderSize), 1),
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Decode(data); err == nil {
				t.Errorf("Decode accepted %v", data)
			}
		})
	}
}

func TestSenderClosed(t *testing.T) {
	server := listen(t)
	sender, err := NewSender(server.LocalAddr().String())
	if err != nil {
		t.Fatalf("NewSender: %v", err)
	}
	if err := sender.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := sender.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := sender.Send([]byte{1}); !errors.Is(err, ErrClosed) {
		t.Errorf("Send after Close = %v, want ErrClosed", err)
	}
}

func TestSenderCountsAndLimits(t *testing.T) {
	server := listen(t)
	sender, err := NewSender(server.LocalAddr().String())
	if err != nil {
		t.Fatalf("NewSender: %v", err)
	}
	defer sender.Close()

	if err := sender.Send(make([]byte, MaxDatagram+1)); err == nil {
		t.Error("oversized packet accepted")
	}
	for range 3 {
		if err := sender.Send(make([]byte, 10)); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}
	if packets, bytes := sender.Sent(); packets != 3 || bytes != 30 {
		t.Errorf("Sent() = %d packets, %d bytes, want 3, 30", packets, bytes)
	}
}

func TestNewSinkNilSender(t *testing.T) {
	if _, err := NewSink(nil); err == nil {
		t.Error("nil sender accepted")
	}
}

func BenchmarkSinkRender(b *testing.B) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		b.Fatal(err)
	}
	defer conn.Close()
	sender, err := NewSender(conn.LocalAddr().String())
	if err != nil {
		b.Fatal(err)
	}
	sink, _ := NewSink(sender)
	defer sink.Close()
	frame := render.Frame{At: time.Now(), Coefficients: make([]float64, 32)}

	b.ReportAllocs()

	for b.Loop() {
		_ = sink.Render(frame)
	}
}
