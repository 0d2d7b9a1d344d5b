// SPDX-License-Identifier: MIT
package tui

import (
	"chladni/internal/log"
	"chladni/internal/plate"
	"chladni/internal/state"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// sandRamp maps density 0..1 to glyphs, empty plate to full sand.
const sandRamp = " .:-=+*#%@"

const (
	minEpsilon = 1e-4
	maxEpsilon = 1.0
	epsStep    = 1.25

	// title, blank line, border top and bottom, status line
	chromeRows = 5
)

type plateKeyMap struct {
	Sharpen key.Binding
	Blur    key.Binding
	Quit    key.Binding
}

func (k plateKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Sharpen, k.Blur, k.Quit}
}

func (k plateKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var plateKeys = plateKeyMap{
	Sharpen: key.NewBinding(key.WithKeys("-", "_"), key.WithHelp("-", "thinner lines")),
	Blur:    key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "thicker lines")),
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"), key.WithHelp("q", "quit")),
}

// Options configures the plate view.
type Options struct {
	FrameRate float64
	Epsilon   float64
	LogFile   string // "" discards log output while the view owns the screen
}

type frameMsg time.Time

// PlateModel is the Bubble Tea model drawing the live plate. On every tick
// it reads the latest snapshot and rasterises the sand density to fit the
// terminal, two columns per row so the disc looks round.
type PlateModel struct {
	ctx      context.Context
	cell     *state.Cell
	bank     *plate.Bank
	interval time.Duration
	epsilon  float64

	raster  *plate.Raster
	density []float64
	coeffs  []float64
	seq     uint64
	frames  uint64

	help help.Model
	err  error
}

// NewPlateModel returns a model reading from cell.
func NewPlateModel(ctx context.Context, cell *state.Cell, bank *plate.Bank, opts Options) PlateModel {
	interval := time.Second / 60
	if opts.FrameRate > 0 {
		interval = time.Duration(float64(time.Second) / opts.FrameRate)
	}
	return PlateModel{
		ctx:      ctx,
		cell:     cell,
		bank:     bank,
		interval: interval,
		epsilon:  clampEpsilon(opts.Epsilon),
		coeffs:   make([]float64, bank.Len()),
		help:     help.New(),
	}
}

func (m PlateModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

// Init starts the frame clock.
func (m PlateModel) Init() tea.Cmd {
	return m.tick()
}

// Update handles resizes, frame ticks and keys.
func (m PlateModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		m.resize(msg.Width, msg.Height)
		m.draw()

	case frameMsg:
		m.seq = m.cell.LoadInto(m.coeffs)
		m.frames++
		m.draw()
		return m, m.tick()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, plateKeys.Quit):
			return m, tea.Quit
		case key.Matches(msg, plateKeys.Blur):
			m.epsilon = clampEpsilon(m.epsilon * epsStep)
			m.draw()
		case key.Matches(msg, plateKeys.Sharpen):
			m.epsilon = clampEpsilon(m.epsilon / epsStep)
			m.draw()
		}
	}
	return m, nil
}

func (m *PlateModel) resize(width, height int) {
	rows := height - chromeRows
	cols := min(2*rows, width-2)
	if rows < 1 || cols < 1 {
		m.raster, m.density = nil, nil
		return
	}
	raster, err := plate.NewRaster(m.bank, cols, rows)
	if err != nil {
		m.err = err
		return
	}
	m.raster = raster
	m.density = make([]float64, cols*rows)
}

func (m *PlateModel) draw() {
	if m.raster == nil {
		return
	}
	if err := m.raster.Evaluate(m.ctx, m.coeffs, m.epsilon, m.density); err != nil {
		m.err = err
	}
}

// View draws the plate, or a placeholder until the first resize.
func (m PlateModel) View() string {
	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress q to exit.", m.err)
	}
	if m.raster == nil {
		return "Initializing..."
	}

	cols, rows := m.raster.Size()
	var sb strings.Builder
	sb.Grow((cols + 1) * rows)
	last := len(sandRamp) - 1
	for row := range rows {
		if row > 0 {
			sb.WriteByte('\n')
		}
		for col := range cols {
			d := m.density[row*cols+col]
			sb.WriteByte(sandRamp[int(math.Round(d*float64(last)))])
		}
	}

	title := titleStyle.Render("Chladni Plate")
	status := infoStyle.Render(fmt.Sprintf("frame %d • snapshot %d • ε %.4f • %s",
		m.frames, m.seq, m.epsilon, m.dominant()))
	return fmt.Sprintf("%s\n\n%s\n%s  %s", title, plateStyle.Render(sandStyle.Render(sb.String())),
		status, m.help.View(plateKeys))
}

func (m PlateModel) dominant() string {
	index, peak := -1, 0.0
	for i, c := range m.coeffs {
		if c > peak {
			index, peak = i, c
		}
	}
	if index < 0 {
		return "at rest"
	}
	mode := m.bank.Mode(index)
	return fmt.Sprintf("(%d,%d) %.0f Hz", mode.Angular, mode.Radial, mode.Frequency)
}

// Epsilon returns the current nodal band width.
func (m PlateModel) Epsilon() float64 {
	return m.epsilon
}

func clampEpsilon(eps float64) float64 {
	return math.Max(minEpsilon, math.Min(maxEpsilon, eps))
}

// Run shows the plate until the user quits or ctx is cancelled. Log output
// is redirected for the duration so it does not tear the screen.
func Run(ctx context.Context, cell *state.Cell, bank *plate.Bank, opts Options) error {
	var logOut io.Writer = io.Discard
	if opts.LogFile != "" {
		f, err := os.OpenFile(opts.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	log.SetOutput(logOut)
	defer log.SetOutput(os.Stderr)

	p := tea.NewProgram(
		NewPlateModel(ctx, cell, bank, opts),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	_, err := p.Run()
	if err != nil && errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
