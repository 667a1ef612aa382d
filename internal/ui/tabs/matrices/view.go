package matrices

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/okrause/seriesdash/internal/services/metrics"
	"github.com/okrause/seriesdash/internal/ui/components"
	"github.com/okrause/seriesdash/internal/ui/styles"
)

// View renders the matrices tab.
func (m *Model) View() string {
	if m.state.IsInitialLoading() {
		return components.RenderSpinnerCentered(m.spinner, m.width, m.height)
	}

	var sections []string

	sections = append(sections, m.renderTitle())
	sections = append(sections, m.renderCategoryBar())

	kinds := m.pairwiseKinds()
	if len(kinds) == 0 {
		sections = append(sections, m.renderEmpty())
	} else {
		sections = append(sections, m.renderKindList(kinds))
		sections = append(sections, m.renderSelectedMatrix())
	}

	content := lipgloss.JoinVertical(lipgloss.Left, sections...)
	m.viewport.SetContent(content)

	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(m.viewport.View())
}

func (m *Model) renderTitle() string {
	title := styles.TitleStyle.Render("Pairwise Matrices")
	subtitle := styles.HelpStyle.Render("File-by-file metric results per category")

	return lipgloss.JoinVertical(lipgloss.Left, title, subtitle, "")
}

func (m *Model) renderCategoryBar() string {
	categories := m.state.Categories()
	if len(categories) == 0 {
		return styles.HelpStyle.Render("No categories. Drop <category>__<name>.csv files into the data directory.")
	}

	selected := m.state.GetSelectedCategory()
	var parts []string
	for _, c := range categories {
		if c == selected {
			parts = append(parts, styles.ButtonActiveStyle.Render(c))
		} else {
			parts = append(parts, styles.ButtonInactiveStyle.Render(c))
		}
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, parts...) + "\n"
}

func (m *Model) renderEmpty() string {
	return styles.CardStyle.Width(max(m.width-6, 40)).Render(
		styles.HelpStyle.Render("No pairwise metrics enabled."),
	)
}

func (m *Model) renderKindList(kinds []metrics.KindStatus) string {
	var rows []string

	rows = append(rows, styles.CardTitleStyle.Render("Metrics"))

	for i, st := range kinds {
		prefix := "  "
		if i == m.selectedIndex {
			prefix = styles.FocusedStyle.Render("▸ ")
		}

		stateLabel := styles.GetMetricStateStyle(st.State.String()).Render(st.State.String())
		line := fmt.Sprintf("%s%-24s %s", prefix, st.Info.Label, stateLabel)

		if st.FailedCalls > 0 && st.State == metrics.StatePartial {
			line += styles.WarningTextStyle.Render(fmt.Sprintf("  (%d calls failed)", st.FailedCalls))
		}

		rows = append(rows, line)
	}

	return styles.CardStyle.Width(max(m.width-6, 40)).Render(
		lipgloss.JoinVertical(lipgloss.Left, rows...),
	)
}

func (m *Model) renderSelectedMatrix() string {
	st, ok := m.selectedKind()
	if !ok {
		return ""
	}

	var rows []string
	category := m.state.GetSelectedCategory()
	rows = append(rows, styles.CardTitleStyle.Render(fmt.Sprintf("%s / %s", st.Info.Label, category)))

	switch {
	case st.State == metrics.StateLoading:
		rows = append(rows, m.spinner.ViewWithLabel())

	case st.State == metrics.StateFailed:
		rows = append(rows, styles.ErrorTextStyle.Render(m.describeFailure(st)))
		rows = append(rows, "")
		rows = append(rows, styles.HelpStyle.Render("Press x to recompute this metric."))

	default:
		matrix, have := m.selectedMatrix()
		if !have {
			rows = append(rows, styles.HelpStyle.Render("No results for this category yet."))
		} else {
			rows = append(rows, components.RenderMatrix(matrix, max(m.width-10, 40)))
			if !st.UpdatedAt.IsZero() {
				rows = append(rows, styles.HelpStyle.Render(
					"Updated "+st.UpdatedAt.Format("15:04:05")))
			}
		}
	}

	return styles.CardStyle.Width(max(m.width-6, 40)).Render(
		lipgloss.JoinVertical(lipgloss.Left, rows...),
	)
}

func (m *Model) describeFailure(st metrics.KindStatus) string {
	if st.Err == nil {
		return "Computation failed."
	}

	msg := st.Err.Message
	if msg == "" {
		msg = st.Err.Kind.String()
	}
	var b strings.Builder
	b.WriteString("Computation failed: ")
	b.WriteString(msg)
	if st.Err.Retryable() {
		b.WriteString(" (retryable)")
	}
	return b.String()
}
