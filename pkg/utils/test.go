// SPDX-License-Identifier: MIT

// Package utils holds signal generators and small helpers shared by tests
// and the synthetic tone source.
package utils

import (
	"math"
	"sync"
)

// Recorder keeps a copy of the last vector it was sent. It is safe for
// concurrent use so it can stand in for a render sink under -race.
type Recorder struct {
	mu       sync.Mutex
	lastData []float64
	count    int
}

// Send stores a copy of data.
func (r *Recorder) Send(data []float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastData = append(r.lastData[:0], data...)
	r.count++
	return nil
}

// Last returns a copy of the most recent vector and how many were sent.
func (r *Recorder) Last() ([]float64, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]float64, len(r.lastData))
	copy(out, r.lastData)
	return out, r.count
}

// GenerateComplexWave returns a 440 Hz tone with two harmonics, peaking
// just under full scale.
func GenerateComplexWave(size int, sampleRate float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2
		buffer[i] = signal * 0.9
	}
	return buffer
}

// GenerateSineWave returns size samples of a sine at frequency Hz with the
// given peak amplitude, starting at phase zero.
func GenerateSineWave(size int, sampleRate, frequency, amplitude float64) []float64 {
	buffer := make([]float64, size)
	FillSine(buffer, sampleRate, frequency, amplitude, 0)
	return buffer
}

// FillSine writes a sine into dst starting at phase (radians) and returns
// the phase of the sample that would follow, so consecutive calls produce
// a continuous tone across block boundaries.
func FillSine(dst []float64, sampleRate, frequency, amplitude, phase float64) float64 {
	step := 2 * math.Pi * frequency / sampleRate
	for i := range dst {
		dst[i] = amplitude * math.Sin(phase)
		phase += step
	}
	return math.Mod(phase, 2*math.Pi)
}

// FindPeakBin returns the index of the largest value in
// magnitudes[startBin:endBin+1], clamping the range to the slice.
func FindPeakBin(magnitudes []float64, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}
	if startBin < 0 {
		startBin = 0
	}
	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]
	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}
	return peakBin
}
