package statistics

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/okrause/seriesdash/internal/services/metrics"
	"github.com/okrause/seriesdash/internal/ui/components"
	"github.com/okrause/seriesdash/internal/ui/styles"
)

// View renders the statistics tab.
func (m *Model) View() string {
	if m.state.IsInitialLoading() {
		return styles.DocStyle.
			Width(m.width).
			Height(m.height).
			Render(styles.HelpStyle.Render("Loading statistics..."))
	}

	var sections []string

	sections = append(sections, m.renderHeader())

	kinds := m.statisticKinds()
	if len(kinds) == 0 {
		sections = append(sections, m.renderEmpty())
	} else {
		sections = append(sections, m.renderKindList(kinds))
		sections = append(sections, m.renderSelectedStats())
	}

	if m.showChart {
		sections = append(sections, m.renderSeriesPreview())
	}

	content := lipgloss.JoinVertical(lipgloss.Left, sections...)
	m.viewport.SetContent(content)

	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(m.viewport.View())
}

func (m *Model) renderHeader() string {
	title := styles.TitleStyle.Render("Statistics")

	category := m.state.GetSelectedCategory()
	if category == "" {
		category = "none"
	}
	categoryStyle := lipgloss.NewStyle().
		Foreground(styles.Primary).
		Bold(true).
		Padding(0, 1).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.Primary)
	indicator := categoryStyle.Render(fmt.Sprintf("[h/l] %s", category))

	header := lipgloss.JoinHorizontal(lipgloss.Center, title, "  ", indicator)
	subtitle := styles.HelpStyle.Render("Per-file scalar statistics for the selected category")

	return lipgloss.JoinVertical(lipgloss.Left, header, subtitle, "")
}

func (m *Model) renderEmpty() string {
	return styles.CardStyle.Width(max(m.width-6, 40)).Render(
		styles.HelpStyle.Render("No statistic metrics enabled."),
	)
}

func (m *Model) renderKindList(kinds []metrics.KindStatus) string {
	var rows []string

	rows = append(rows, styles.CardTitleStyle.Render("Statistics"))

	for i, st := range kinds {
		prefix := "  "
		if i == m.selectedIndex {
			prefix = styles.FocusedStyle.Render("▸ ")
		}

		stateLabel := styles.GetMetricStateStyle(st.State.String()).Render(st.State.String())
		rows = append(rows, fmt.Sprintf("%s%-24s %s", prefix, st.Info.Label, stateLabel))
	}

	return styles.CardStyle.Width(max(m.width-6, 40)).Render(
		lipgloss.JoinVertical(lipgloss.Left, rows...),
	)
}

func (m *Model) renderSelectedStats() string {
	st, ok := m.selectedKind()
	if !ok {
		return ""
	}

	category := m.state.GetSelectedCategory()

	var rows []string
	rows = append(rows, styles.CardTitleStyle.Render(fmt.Sprintf("%s / %s", st.Info.Label, category)))

	switch {
	case st.State == metrics.StateLoading:
		rows = append(rows, styles.HelpStyle.Render("Computing..."))

	case st.State == metrics.StateFailed:
		msg := "Computation failed."
		if st.Err != nil {
			msg = "Computation failed: " + st.Err.Message
		}
		rows = append(rows, styles.ErrorTextStyle.Render(msg))

	default:
		files := m.state.Files(category)
		results := st.Stats[category]
		rows = append(rows, components.RenderStatTable(files, results))
	}

	return styles.CardStyle.Width(max(m.width-6, 40)).Render(
		lipgloss.JoinVertical(lipgloss.Left, rows...),
	)
}

func (m *Model) renderSeriesPreview() string {
	cardWidth := max(m.width-6, 40)

	var rows []string
	title := styles.CardTitleStyle.Render("Series Preview")
	if m.derived != derivedNone {
		title += styles.HelpStyle.Render("  derived: " + m.derived.String())
	}
	rows = append(rows, title, "")

	if len(m.chartSeries) == 0 {
		rows = append(rows, styles.HelpStyle.Render("  No series data available"))
	} else {
		chartWidth := max(cardWidth-12, 30)
		chartHeight := 8

		chart := components.RenderMultiLineChart(m.chartSeries, chartWidth, chartHeight,
			fmt.Sprintf("%s (%d files)", m.chartCategory, len(m.chartFiles)))

		for _, line := range strings.Split(chart, "\n") {
			rows = append(rows, "  "+line)
		}

		if len(m.chartFiles) > 0 {
			rows = append(rows, "")
			items := make([]components.LegendItem, 0, len(m.chartFiles))
			colors := []lipgloss.Color{"9", "12", "10", "11", "13", "14"}
			for i, f := range m.chartFiles {
				items = append(items, components.LegendItem{
					Label: f,
					Color: colors[i%len(colors)],
				})
			}
			rows = append(rows, "  "+components.RenderLegend(items))
		}
	}

	rows = append(rows, "")

	return styles.CardStyle.Width(cardWidth).Render(
		lipgloss.JoinVertical(lipgloss.Left, rows...),
	)
}
