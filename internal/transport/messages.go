// SPDX-License-Identifier: MIT

// Package transport carries rendered frames off the process: JSON over
// WebSocket, a binary UDP packet stream (package udp), or the log.
package transport

import (
	"chladni/internal/plate"
	"chladni/internal/render"
)

// ModeInfo describes one mode of the bank for remote renderers.
type ModeInfo struct {
	Index      int     `json:"index"`
	Angular    int     `json:"m"`
	Radial     int     `json:"n"`
	Wavenumber float64 `json:"k"`
	Frequency  float64 `json:"frequency"`
}

// BankMessage is sent once per client on connect. With it a client can
// evaluate the plate field itself from frame coefficients.
type BankMessage struct {
	Type    string     `json:"type"`
	Epsilon float64    `json:"epsilon"`
	Modes   []ModeInfo `json:"modes"`
}

// FrameMessage carries one frame's coefficients.
type FrameMessage struct {
	Type         string    `json:"type"`
	Seq          uint64    `json:"seq"`
	Timestamp    int64     `json:"timestamp"`
	Coefficients []float64 `json:"coefficients"`
}

// NewBankMessage describes bank.
func NewBankMessage(bank *plate.Bank, epsilon float64) BankMessage {
	modes := bank.Modes()
	msg := BankMessage{Type: "bank", Epsilon: epsilon, Modes: make([]ModeInfo, len(modes))}
	for i, m := range modes {
		msg.Modes[i] = ModeInfo{
			Index:      m.Index,
			Angular:    m.Angular,
			Radial:     m.Radial,
			Wavenumber: m.Wavenumber,
			Frequency:  m.Frequency,
		}
	}
	return msg
}

// NewFrameMessage wraps f. The coefficient slice is shared, not copied.
func NewFrameMessage(f render.Frame) FrameMessage {
	return FrameMessage{
		Type:         "frame",
		Seq:          f.Seq,
		Timestamp:    f.At.UnixNano(),
		Coefficients: f.Coefficients,
	}
}
