// Package statistics provides the single-series statistics tab.
package statistics

import (
	"context"
	"sort"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/okrause/seriesdash/internal/app"
	"github.com/okrause/seriesdash/internal/logger"
	"github.com/okrause/seriesdash/internal/services"
	"github.com/okrause/seriesdash/internal/services/metrics"
)

// keyMap defines the key bindings specific to the statistics tab.
type keyMap struct {
	NextKind     key.Binding
	PrevKind     key.Binding
	NextCategory key.Binding
	PrevCategory key.Binding
	ToggleChart  key.Binding
	CycleDerived key.Binding
	Up           key.Binding
	Down         key.Binding
}

// defaultKeyMap returns the default key bindings for the statistics tab.
func defaultKeyMap() keyMap {
	return keyMap{
		NextKind: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "next statistic"),
		),
		PrevKind: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "prev statistic"),
		),
		NextCategory: key.NewBinding(
			key.WithKeys("l", "right"),
			key.WithHelp("l/→", "next category"),
		),
		PrevCategory: key.NewBinding(
			key.WithKeys("h", "left"),
			key.WithHelp("h/←", "prev category"),
		),
		ToggleChart: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "toggle series preview"),
		),
		CycleDerived: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "cycle derived series"),
		),
		Up: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("pgup", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("pgdn", "scroll down"),
		),
	}
}

// seriesLoadedMsg carries the raw series preview data for one category.
type seriesLoadedMsg struct {
	category string
	files    []string
	series   [][]float64
}

// derivedMode selects which server-computed series overlay the preview.
type derivedMode int

const (
	derivedNone derivedMode = iota
	derivedRollingMean
	derivedDifference
)

// String returns the overlay label shown in the chart header.
func (d derivedMode) String() string {
	switch d {
	case derivedRollingMean:
		return "rolling mean"
	case derivedDifference:
		return "difference"
	default:
		return "off"
	}
}

// Model represents the statistics tab state.
type Model struct {
	state    *app.State
	services *services.Manager
	width    int
	height   int
	keys     keyMap
	viewport viewport.Model

	selectedIndex int
	showChart     bool
	derived       derivedMode
	chartCategory string
	chartFiles    []string
	chartSeries   [][]float64
}

// New creates a new statistics model.
func New(state *app.State, svc *services.Manager) *Model {
	return &Model{
		state:     state,
		services:  svc,
		keys:      defaultKeyMap(),
		viewport:  viewport.New(0, 0),
		showChart: true,
	}
}

// Init initializes the statistics tab.
func (m *Model) Init() tea.Cmd {
	return m.loadSeriesCmd()
}

// loadSeriesCmd loads the raw series of the selected category for the
// preview chart, plus any derived overlay. Timestamps order the points;
// values feed the plot.
func (m *Model) loadSeriesCmd() tea.Cmd {
	category := m.state.GetSelectedCategory()
	files := m.state.Files(category)
	derived := m.derived
	return func() tea.Msg {
		msg := seriesLoadedMsg{category: category, files: files}
		if m.services == nil {
			return msg
		}

		for _, file := range files {
			series, ok := m.services.Datasets().Get(file)
			if !ok {
				continue
			}
			msg.series = append(msg.series, sortedValues(series))
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		switch derived {
		case derivedRollingMean:
			for _, file := range files {
				series, err := m.services.RollingMean(ctx, category, file, "1d")
				if err != nil {
					logger.Warn("rolling mean fetch failed", "file", file, "error", err)
					continue
				}
				msg.files = append(msg.files, file+" (rolling mean)")
				msg.series = append(msg.series, sortedValues(series))
			}
		case derivedDifference:
			if len(files) >= 2 {
				series, err := m.services.Difference(ctx, category, files[0], files[1])
				if err != nil {
					logger.Warn("difference fetch failed", "files", files[:2], "error", err)
					break
				}
				msg.files = append(msg.files, "diff("+files[0]+", "+files[1]+")")
				msg.series = append(msg.series, sortedValues(series))
			}
		}
		return msg
	}
}

// sortedValues flattens a timestamp -> value series into plot order.
func sortedValues(series map[string]float64) []float64 {
	timestamps := make([]string, 0, len(series))
	for ts := range series {
		timestamps = append(timestamps, ts)
	}
	sort.Strings(timestamps)

	values := make([]float64, len(timestamps))
	for i, ts := range timestamps {
		values[i] = series[ts]
	}
	return values
}

// Update handles messages for the statistics tab.
func (m *Model) Update(msg tea.Msg) (app.Tab, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case seriesLoadedMsg:
		m.chartCategory = msg.category
		m.chartFiles = msg.files
		m.chartSeries = msg.series

	case app.MetricsLoadedMsg:
		if m.chartCategory != m.state.GetSelectedCategory() {
			cmds = append(cmds, m.loadSeriesCmd())
		}

	case app.TabSwitchMsg:
		if msg.Tab == app.TabStatistics {
			cmds = append(cmds, m.loadSeriesCmd())
		}

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) (app.Tab, tea.Cmd) {
	var cmds []tea.Cmd
	kinds := m.statisticKinds()
	count := len(kinds)

	switch {
	case key.Matches(msg, m.keys.NextKind):
		if count > 0 {
			m.selectedIndex = (m.selectedIndex + 1) % count
		}
	case key.Matches(msg, m.keys.PrevKind):
		if count > 0 {
			m.selectedIndex = (m.selectedIndex - 1 + count) % count
		}
	case key.Matches(msg, m.keys.NextCategory):
		m.moveCategory(1)
		cmds = append(cmds, m.loadSeriesCmd())
	case key.Matches(msg, m.keys.PrevCategory):
		m.moveCategory(-1)
		cmds = append(cmds, m.loadSeriesCmd())
	case key.Matches(msg, m.keys.ToggleChart):
		m.showChart = !m.showChart
	case key.Matches(msg, m.keys.CycleDerived):
		m.derived = (m.derived + 1) % 3
		cmds = append(cmds, m.loadSeriesCmd())
	default:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) moveCategory(delta int) {
	categories := m.state.Categories()
	if len(categories) == 0 {
		return
	}

	current := m.state.GetSelectedCategory()
	idx := 0
	for i, c := range categories {
		if c == current {
			idx = i
			break
		}
	}
	idx = (idx + delta + len(categories)) % len(categories)
	m.state.SelectCategory(categories[idx])
}

// statisticKinds returns the single-series kind statuses in display order.
func (m *Model) statisticKinds() []metrics.KindStatus {
	statuses := m.state.Statuses()

	var out []metrics.KindStatus
	for _, st := range statuses {
		if !st.Info.Pairwise() {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Info.Label < out[j].Info.Label
	})
	return out
}

func (m *Model) selectedKind() (metrics.KindStatus, bool) {
	kinds := m.statisticKinds()
	if len(kinds) == 0 {
		return metrics.KindStatus{}, false
	}
	if m.selectedIndex >= len(kinds) {
		m.selectedIndex = len(kinds) - 1
	}
	return kinds[m.selectedIndex], true
}

// SetSize sets the available size for the statistics tab.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
}

// ShortHelp returns the key bindings for the short help view.
func (m *Model) ShortHelp() []key.Binding {
	return []key.Binding{
		m.keys.NextKind,
		m.keys.PrevKind,
		m.keys.NextCategory,
		m.keys.ToggleChart,
		m.keys.CycleDerived,
	}
}

// FullHelp returns the key bindings for the full help view.
func (m *Model) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{m.keys.NextKind, m.keys.PrevKind},
		{m.keys.NextCategory, m.keys.PrevCategory},
		{m.keys.ToggleChart, m.keys.CycleDerived},
		{m.keys.Up, m.keys.Down},
	}
}
