package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/okrause/seriesdash/internal/ui/styles"
)

type AnimationTickMsg time.Time

func animationTick() tea.Cmd {
	return tea.Tick(time.Millisecond*50, func(t time.Time) tea.Msg {
		return AnimationTickMsg(t)
	})
}

// CycleBar renders compute-cycle progress as an animated bar with a label.
type CycleBar struct {
	progress       progress.Model
	label          string
	animationFrame int
	isAnimating    bool
	targetPercent  float64
	currentPercent float64
}

// NewCycleBar creates a new cycle bar with gradient colors.
func NewCycleBar() CycleBar {
	return NewCycleBarWithWidth(30)
}

// NewCycleBarWithWidth creates a cycle bar with a specific width.
func NewCycleBarWithWidth(width int) CycleBar {
	p := progress.New(
		progress.WithScaledGradient("#ff6b6b", "#51cf66"),
		progress.WithWidth(width),
		progress.WithoutPercentage(),
	)

	return CycleBar{
		progress:       p,
		label:          "",
		animationFrame: 0,
		isAnimating:    false,
		targetPercent:  0,
		currentPercent: 0,
	}
}

// Init initializes the progress bar model.
func (c CycleBar) Init() tea.Cmd {
	return nil
}

// Update handles progress bar animation messages.
func (c CycleBar) Update(msg tea.Msg) (CycleBar, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg.(type) {
	case AnimationTickMsg:
		if c.isAnimating {
			c.animationFrame++

			if c.currentPercent < c.targetPercent {
				step := (c.targetPercent - c.currentPercent) / 10
				if step < 0.5 {
					step = 0.5
				}
				c.currentPercent += step
				if c.currentPercent > c.targetPercent {
					c.currentPercent = c.targetPercent
				}
				cmds = append(cmds, animationTick())
			} else if c.currentPercent > c.targetPercent {
				step := (c.currentPercent - c.targetPercent) / 10
				if step < 0.5 {
					step = 0.5
				}
				c.currentPercent -= step
				if c.currentPercent < c.targetPercent {
					c.currentPercent = c.targetPercent
				}
				cmds = append(cmds, animationTick())
			} else {
				c.isAnimating = false
			}
		}
	}

	var cmd tea.Cmd
	model, cmd := c.progress.Update(msg)
	c.progress = model.(progress.Model)
	cmds = append(cmds, cmd)

	return c, tea.Batch(cmds...)
}

// SetPercent sets the completion percentage (0-100) and starts the animation.
func (c *CycleBar) SetPercent(percent float64) tea.Cmd {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	c.targetPercent = percent
	if c.currentPercent != c.targetPercent {
		c.isAnimating = true
		return animationTick()
	}
	return nil
}

// SetLabel updates the bar's label.
func (c *CycleBar) SetLabel(label string) {
	c.label = label
}

// Percent returns the target percentage.
func (c CycleBar) Percent() float64 {
	return c.targetPercent
}

// View renders the bar with its label and percentage.
func (c CycleBar) View() string {
	bar := c.progress.ViewAs(c.currentPercent / 100)
	percent := fmt.Sprintf("%3.0f%%", c.currentPercent)

	parts := []string{}
	if c.label != "" {
		parts = append(parts, lipgloss.NewStyle().Foreground(styles.TextSecondary).Render(c.label))
	}
	parts = append(parts, bar, lipgloss.NewStyle().Foreground(styles.TextPrimary).Render(percent))

	return strings.Join(parts, " ")
}
