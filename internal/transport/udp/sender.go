// SPDX-License-Identifier: MIT
package udp

import (
	applog "chladni/internal/log"
	"errors"
	"fmt"
	"net"
	"sync"
)

// MaxDatagram is the largest payload Send accepts. It keeps a frame inside
// one Ethernet MTU so receivers never see IP fragments.
const MaxDatagram = 1472

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("udp: sender closed")

// Sender writes frame packets to one target as single datagrams.
type Sender struct {
	mu     sync.Mutex // guards conn and the counters
	conn   *net.UDPConn
	target *net.UDPAddr

	packets uint64
	bytes   uint64
}

// NewSender resolves and dials target ("host:port").
func NewSender(target string) (*Sender, error) {
	addr, err := net.ResolveUDPAddr("udp", target)
	if err != nil {
		return nil, fmt.Errorf("udp: resolve frame target %q: %w", target, err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("udp: dial frame target %q: %w", target, err)
	}
	applog.Debugf("UDPSender: Sending frames from %s to %s", conn.LocalAddr(), addr)
	return &Sender{conn: conn, target: addr}, nil
}

// Target returns the resolved destination.
func (s *Sender) Target() string {
	return s.target.String()
}

// Send writes packet as one datagram.
func (s *Sender) Send(packet []byte) error {
	if len(packet) > MaxDatagram {
		return fmt.Errorf("udp: %d-byte packet exceeds %d bytes", len(packet), MaxDatagram)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return ErrClosed
	}
	if _, err := s.conn.Write(packet); err != nil {
		return fmt.Errorf("udp: send to %s: %w", s.target, err)
	}
	s.packets++
	s.bytes += uint64(len(packet))
	return nil
}

// Sent returns how many packets and bytes were written.
func (s *Sender) Sent() (packets, bytes uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.packets, s.bytes
}

// Close releases the socket. It is safe to call more than once.
func (s *Sender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	applog.Debugf("UDPSender: Closing %s after %d packets (%d bytes)", s.target, s.packets, s.bytes)
	err := s.conn.Close()
	s.conn = nil
	if err != nil {
		return fmt.Errorf("udp: close: %w", err)
	}
	return nil
}
