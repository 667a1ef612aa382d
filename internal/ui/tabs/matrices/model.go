// Package matrices provides the pairwise metric results tab.
package matrices

import (
	"sort"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/okrause/seriesdash/internal/app"
	"github.com/okrause/seriesdash/internal/models"
	"github.com/okrause/seriesdash/internal/services/metrics"
	"github.com/okrause/seriesdash/internal/ui/components"
)

// keyMap defines the key bindings specific to the matrices tab.
type keyMap struct {
	NextKind     key.Binding
	PrevKind     key.Binding
	NextCategory key.Binding
	PrevCategory key.Binding
	FirstKind    key.Binding
	LastKind     key.Binding
	Retry        key.Binding
}

// defaultKeyMap returns the default key bindings for the matrices tab.
func defaultKeyMap() keyMap {
	return keyMap{
		NextKind: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "next metric"),
		),
		PrevKind: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "prev metric"),
		),
		NextCategory: key.NewBinding(
			key.WithKeys("l", "right"),
			key.WithHelp("l/→", "next category"),
		),
		PrevCategory: key.NewBinding(
			key.WithKeys("h", "left"),
			key.WithHelp("h/←", "prev category"),
		),
		FirstKind: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "first metric"),
		),
		LastKind: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "last metric"),
		),
		Retry: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "recompute metric"),
		),
	}
}

// Model represents the matrices tab state.
type Model struct {
	state         *app.State
	spinner       components.LoadingSpinner
	keys          keyMap
	viewport      viewport.Model
	width         int
	height        int
	selectedIndex int
}

// New creates a new matrices model.
func New(state *app.State) *Model {
	return &Model{
		state:         state,
		spinner:       components.NewSpinner("Computing metrics..."),
		keys:          defaultKeyMap(),
		selectedIndex: 0,
		viewport:      viewport.New(0, 0),
	}
}

// Init initializes the model.
func (m *Model) Init() tea.Cmd {
	return m.spinner.Init()
}

// Update handles messages and updates the model.
func (m *Model) Update(msg tea.Msg) (app.Tab, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		cmds = append(cmds, m.handleKeyMsg(msg))

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) tea.Cmd {
	kinds := m.pairwiseKinds()
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
	case key.Matches(msg, m.keys.FirstKind):
		if count > 0 {
			m.selectedIndex = 0
		}
	case key.Matches(msg, m.keys.LastKind):
		if count > 0 {
			m.selectedIndex = count - 1
		}
	case key.Matches(msg, m.keys.NextCategory):
		m.moveCategory(1)
	case key.Matches(msg, m.keys.PrevCategory):
		m.moveCategory(-1)
	case key.Matches(msg, m.keys.Retry):
		if kind, ok := m.selectedKind(); ok {
			return func() tea.Msg {
				return app.RetryKindMsg{Kind: kind.Info.ID}
			}
		}
	default:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return cmd
	}
	return nil
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

// pairwiseKinds returns the pairwise kind statuses in stable display order.
func (m *Model) pairwiseKinds() []metrics.KindStatus {
	statuses := m.state.Statuses()

	var out []metrics.KindStatus
	for _, st := range statuses {
		if st.Info.Pairwise() {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Info.Label < out[j].Info.Label
	})
	return out
}

func (m *Model) selectedKind() (metrics.KindStatus, bool) {
	kinds := m.pairwiseKinds()
	if len(kinds) == 0 {
		return metrics.KindStatus{}, false
	}
	if m.selectedIndex >= len(kinds) {
		m.selectedIndex = len(kinds) - 1
	}
	return kinds[m.selectedIndex], true
}

func (m *Model) selectedMatrix() (*models.Matrix, bool) {
	st, ok := m.selectedKind()
	if !ok {
		return nil, false
	}
	matrix, ok := st.Matrices[m.state.GetSelectedCategory()]
	return matrix, ok
}

// SetSize sets the available size for the tab.
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
		m.keys.Retry,
	}
}

// FullHelp returns the key bindings for the full help view.
func (m *Model) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{m.keys.NextKind, m.keys.PrevKind},
		{m.keys.NextCategory, m.keys.PrevCategory},
		{m.keys.FirstKind, m.keys.LastKind},
		{m.keys.Retry},
	}
}
