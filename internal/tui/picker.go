// SPDX-License-Identifier: MIT
package tui

import (
	"chladni/internal/audio"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type pickerStep int

const (
	pickDevice pickerStep = iota
	pickRate
)

// standardRates are offered for every device, plus its own default rate.
var standardRates = []float64{44100, 48000, 88200, 96000}

type pickerKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Choose key.Binding
	Back   key.Binding
	Quit   key.Binding
}

func (k pickerKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Choose, k.Back, k.Quit}
}

func (k pickerKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var pickerKeys = pickerKeyMap{
	Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Choose: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "choose")),
	Back:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
	Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// Selection is the outcome of the device picker.
type Selection struct {
	DeviceID   int
	Name       string
	SampleRate float64
	Chosen     bool
}

// ConfigSnippet renders the selection as config file lines.
func (s Selection) ConfigSnippet() string {
	return fmt.Sprintf("# %s\naudio:\n  source: device\n  input_device: %d\n  sample_rate: %.0f\n",
		s.Name, s.DeviceID, s.SampleRate)
}

// PickerModel walks the user through an input device, then a sample rate.
type PickerModel struct {
	step     pickerStep
	devices  []audio.Device
	device   int // cursor in devices
	rates    []float64
	rate     int // cursor in rates
	chosen   Selection
	err      error
	viewport viewport.Model
	help     help.Model
	ready    bool
}

type devicesMsg struct {
	devices []audio.Device
}

type errMsg struct {
	err error
}

func NewPickerModel() PickerModel {
	return PickerModel{step: pickDevice, help: help.New()}
}

func (m PickerModel) Init() tea.Cmd {
	return fetchInputDevices
}

// fetchInputDevices keeps capture-capable devices only.
func fetchInputDevices() tea.Msg {
	all, err := audio.HostDevices()
	if err != nil {
		return errMsg{err}
	}
	inputs := slices.DeleteFunc(all, func(d audio.Device) bool { return !d.IsInput() })
	return devicesMsg{inputs}
}

// ratesFor lists the standard rates with the device default merged in.
func ratesFor(d audio.Device) []float64 {
	rates := slices.Clone(standardRates)
	if d.DefaultSampleRate > 0 && !slices.Contains(rates, d.DefaultSampleRate) {
		rates = append(rates, d.DefaultSampleRate)
		slices.Sort(rates)
	}
	return rates
}

// Selection returns what the user picked; Chosen is false if they quit.
func (m PickerModel) Selection() Selection {
	return m.chosen
}

func (m PickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		height := max(1, msg.Height-4)
		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.viewport.Style = lipgloss.NewStyle()
			m.ready = true
		} else {
			m.viewport.Width, m.viewport.Height = msg.Width, height
		}
		m.help.Width = msg.Width

	case devicesMsg:
		m.devices = msg.devices
		m.device = 0

	case errMsg:
		m.err = msg.err

	case tea.KeyMsg:
		if key.Matches(msg, pickerKeys.Quit) {
			return m, tea.Quit
		}
		if done := m.handleKey(msg); done {
			return m, tea.Quit
		}
	}

	m.render()
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// handleKey moves the cursor of the current step and reports whether the
// picker is finished.
func (m *PickerModel) handleKey(msg tea.KeyMsg) bool {
	cursor, limit := &m.device, len(m.devices)
	if m.step == pickRate {
		cursor, limit = &m.rate, len(m.rates)
	}

	switch {
	case key.Matches(msg, pickerKeys.Up):
		*cursor = max(0, *cursor-1)
	case key.Matches(msg, pickerKeys.Down):
		*cursor = max(0, min(limit-1, *cursor+1))
	case key.Matches(msg, pickerKeys.Back):
		m.step = pickDevice
	case key.Matches(msg, pickerKeys.Choose):
		if limit == 0 {
			return false
		}
		d := m.devices[m.device]
		if m.step == pickDevice {
			m.step = pickRate
			m.rates = ratesFor(d)
			m.rate = max(0, slices.Index(m.rates, d.DefaultSampleRate))
			return false
		}
		m.chosen = Selection{DeviceID: d.ID, Name: d.Name, SampleRate: m.rates[m.rate], Chosen: true}
		return true
	}
	return false
}

func (m *PickerModel) render() {
	if !m.ready {
		return
	}
	if m.step == pickRate {
		m.viewport.SetContent(m.renderRates())
		return
	}
	m.viewport.SetContent(m.renderDevices())
}

func (m PickerModel) View() string {
	if !m.ready {
		return "Initializing..."
	}
	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress q to exit.", m.err)
	}

	title := titleStyle.Render("Input Devices")
	if m.step == pickRate {
		title = titleStyle.Render("Sample Rate: " + m.devices[m.device].Name)
	}
	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), infoStyle.Render(m.help.View(pickerKeys)))
}

func (m PickerModel) renderDevices() string {
	if len(m.devices) == 0 {
		return "No input devices found."
	}

	var sb strings.Builder
	for i, d := range m.devices {
		entry := fmt.Sprintf("[%d] %s\n    %s, %d in, %.0f Hz, %.1f ms\n",
			d.ID, d.Name, d.HostAPI, d.MaxInputChannels, d.DefaultSampleRate, d.LowInputLatency)
		if i == m.device {
			entry = highlightStyle.Render(entry)
		}
		sb.WriteString(entry)
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m PickerModel) renderRates() string {
	var sb strings.Builder
	for i, rate := range m.rates {
		marker := " "
		if i == m.rate {
			marker = "▶"
		}
		line := fmt.Sprintf("  %s %.0f Hz\n", marker, rate)
		if i == m.rate {
			line = highlightStyle.Render(line)
		}
		sb.WriteString(line)
	}
	return sb.String()
}

// PickDevice runs the picker and returns the user's choice. PortAudio must
// be initialised.
func PickDevice() (Selection, error) {
	final, err := tea.NewProgram(NewPickerModel(), tea.WithAltScreen()).Run()
	if err != nil {
		return Selection{}, err
	}
	if m, ok := final.(PickerModel); ok {
		return m.Selection(), nil
	}
	return Selection{}, nil
}
