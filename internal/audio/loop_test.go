// SPDX-License-Identifier: MIT
package audio

import (
	"chladni/internal/analysis"
	"chladni/internal/plate"
	"chladni/internal/state"
	"chladni/pkg/utils"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"testing"
	"time"
)

const (
	testBlockSize  = 1024
	testSampleRate = 44100
	testAlpha      = 0.3
)

var testFrequencies = []float64{100, 200, 400, 800}

// scriptedSupplier replays a fixed sequence of blocks and errors, then EOF.
type scriptedSupplier struct {
	steps  []scriptStep
	next   int
	closed bool
}

type scriptStep struct {
	fill func(Block)
	err  error
}

func (s *scriptedSupplier) Next(ctx context.Context, dst Block) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.next >= len(s.steps) {
		return io.EOF
	}
	step := s.steps[s.next]
	s.next++
	if step.fill != nil {
		step.fill(dst)
	}
	return step.err
}

func (s *scriptedSupplier) Close() error {
	s.closed = true
	return nil
}

func toneSteps(count int, freq float64) []scriptStep {
	phase := 0.0
	steps := make([]scriptStep, count)
	for i := range steps {
		steps[i].fill = func(b Block) {
			phase = utils.FillSine(b, testSampleRate, freq, 0.5, phase)
		}
	}
	return steps
}

func newTestLoop(t *testing.T, supplier Supplier, gate *Gate) (*Loop, *state.Cell) {
	t.Helper()
	bank, err := plate.NewBank(testFrequencies)
	if err != nil {
		t.Fatalf("NewBank: %v", err)
	}
	analyzer, err := analysis.NewAnalyzer(testBlockSize, testSampleRate, analysis.Hann)
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}
	mapper, err := analysis.NewMapper(bank, analysis.MapperConfig{
		WindowWidth: 50, ReferenceCeiling: 1, SmoothingAlpha: testAlpha, MaxAmplitude: 1,
	})
	if err != nil {
		t.Fatalf("NewMapper: %v", err)
	}
	cell := state.NewCell(bank.Len())
	return NewLoop(supplier, analysis.NewPipeline(analyzer, mapper), cell, gate), cell
}

func TestLoopRunsUntilSourceDrains(t *testing.T) {
	supplier := &scriptedSupplier{steps: toneSteps(10, 400)}
	loop, cell := newTestLoop(t, supplier, nil)

	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	snap := cell.Load()
	if snap.Seq != 10 {
		t.Errorf("published %d snapshots, want 10", snap.Seq)
	}
	if snap.Coefficients[2] < 0.4 {
		t.Errorf("400 Hz mode = %f after ten blocks, want a strong response", snap.Coefficients[2])
	}
	if s := loop.Stats(); s.Blocks != 10 || s.Gaps != 0 || s.Rejected != 0 {
		t.Errorf("Stats = %+v", s)
	}
}

func TestLoopDiscontinuityDecays(t *testing.T) {
	steps := toneSteps(5, 400)
	steps = append(steps, scriptStep{err: fmt.Errorf("%w: input overflowed", ErrDeviceDiscontinuity)})
	loop, cell := newTestLoop(t, &scriptedSupplier{steps: steps}, nil)
	ctx := context.Background()

	for range 5 {
		if err := loop.Step(ctx); err != nil {
			t.Fatalf("Step: %v", err)
		}
	}
	before := cell.Load().Coefficients[2]

	if err := loop.Step(ctx); err != nil {
		t.Fatalf("Step across a gap: %v", err)
	}
	snap := cell.Load()
	if want := before * (1 - testAlpha); math.Abs(snap.Coefficients[2]-want) > 1e-12 {
		t.Errorf("after a gap coefficient = %f, want %f", snap.Coefficients[2], want)
	}
	if snap.Seq != 6 {
		t.Errorf("Seq = %d, want 6", snap.Seq)
	}
	if s := loop.Stats(); s.Gaps != 1 || s.Blocks != 5 {
		t.Errorf("Stats = %+v", s)
	}
}

func TestLoopDropsBadBlocks(t *testing.T) {
	steps := toneSteps(3, 400)
	steps = append(steps, scriptStep{fill: func(b Block) { b[7] = math.NaN() }})
	loop, cell := newTestLoop(t, &scriptedSupplier{steps: steps}, nil)

	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if seq := cell.Load().Seq; seq != 3 {
		t.Errorf("Seq = %d, want 3 (rejected block must not publish)", seq)
	}
	if s := loop.Stats(); s.Rejected != 1 || s.Blocks != 4 {
		t.Errorf("Stats = %+v", s)
	}
}

func TestLoopReportsPipelineRejections(t *testing.T) {
	steps := toneSteps(1, 400)
	steps = append(steps, scriptStep{fill: func(b Block) { b[0] = math.Inf(1) }})
	loop, _ := newTestLoop(t, &scriptedSupplier{steps: steps}, nil)

	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	// A block refused outside the loop shows up in the same count.
	if _, err := loop.pipeline.Process(make([]float64, 3)); err == nil {
		t.Fatal("short block accepted")
	}
	if got, want := loop.Stats().Rejected, loop.pipeline.Rejected(); got != 2 || got != want {
		t.Errorf("Stats().Rejected = %d, pipeline counted %d, want 2 for both", got, want)
	}
}

func TestLoopGateTreatsQuietBlocksAsSilence(t *testing.T) {
	steps := toneSteps(4, 400)
	steps = append(steps, scriptStep{fill: func(b Block) {
		utils.FillSine(b, testSampleRate, 400, 0.001, 0)
	}})
	loop, cell := newTestLoop(t, &scriptedSupplier{steps: steps}, NewGate(0.01))
	ctx := context.Background()

	for range 4 {
		if err := loop.Step(ctx); err != nil {
			t.Fatalf("Step: %v", err)
		}
	}
	before := cell.Load().Coefficients[2]
	if err := loop.Step(ctx); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if want, got := before*(1-testAlpha), cell.Load().Coefficients[2]; math.Abs(got-want) > 1e-12 {
		t.Errorf("gated block coefficient = %f, want %f", got, want)
	}
	if s := loop.Stats(); s.Gated != 1 {
		t.Errorf("Gated = %d, want 1", s.Gated)
	}
}

func TestLoopReturnsSupplierFailure(t *testing.T) {
	boom := errors.New("device unplugged")
	loop, _ := newTestLoop(t, &scriptedSupplier{steps: []scriptStep{{err: boom}}}, nil)

	err := loop.Run(context.Background())
	if !errors.Is(err, boom) {
		t.Errorf("Run error = %v, want %v", err, boom)
	}
}

func TestLoopStopsOnCancel(t *testing.T) {
	tone, err := NewToneSource(400, 0.5, testSampleRate, testBlockSize)
	if err != nil {
		t.Fatalf("NewToneSource: %v", err)
	}
	defer tone.Close()
	loop, cell := newTestLoop(t, tone, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v on cancel, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	if cell.Load().Seq == 0 {
		t.Error("no block was published before cancel")
	}
}
