package info

import (
	"fmt"
	"runtime"
	"strconv"

	"github.com/charmbracelet/lipgloss"

	"github.com/okrause/seriesdash/internal/ui/styles"
	"github.com/okrause/seriesdash/internal/version"
)

// View renders the info tab.
func (m *Model) View() string {
	var sections []string

	sections = append(sections, m.renderTitle())
	sections = append(sections, m.renderConfigCard())
	sections = append(sections, m.renderDataCard())
	sections = append(sections, m.renderAboutCard())

	content := lipgloss.JoinVertical(lipgloss.Left, sections...)

	m.viewport.SetContent(content)

	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(m.viewport.View())
}

// renderTitle renders the info tab title.
func (m *Model) renderTitle() string {
	title := styles.TitleStyle.Render("Info")
	subtitle := styles.HelpStyle.Render("Configuration and application information")

	return lipgloss.JoinVertical(lipgloss.Left, title, subtitle, "")
}

// renderConfigCard renders the configuration paths card.
func (m *Model) renderConfigCard() string {
	cardWidth := m.cardWidth()

	var rows []string
	rows = append(rows, styles.CardTitleStyle.Render("Configuration"))
	rows = append(rows, "")

	if m.config != nil {
		rows = append(rows, m.renderConfigRow("API Base URL", m.config.APIBaseURL))
		rows = append(rows, m.renderConfigRow("Data Directory", m.config.DataDir))
		rows = append(rows, m.renderConfigRow("Store", m.config.StorePath))
		rows = append(rows, m.renderConfigRow("Tolerance", fmt.Sprintf("%d min", m.config.ToleranceMinutes)))
		rows = append(rows, m.renderConfigRow("Plugin Cache TTL", m.config.PluginCacheTTL.String()))
		rows = append(rows, m.renderConfigRow("Corrupt Policy", m.config.CorruptDataPolicy))
		rows = append(rows, m.renderConfigRow("Kind Concurrency", strconv.Itoa(m.config.MaxConcurrentKinds)))
	} else {
		rows = append(rows, styles.HelpStyle.Render("Configuration not loaded"))
	}

	return styles.CardStyle.Width(cardWidth).Render(
		lipgloss.JoinVertical(lipgloss.Left, rows...),
	)
}

// renderDataCard renders the dataset summary card.
func (m *Model) renderDataCard() string {
	cardWidth := m.cardWidth()

	var rows []string
	rows = append(rows, styles.CardTitleStyle.Render("Data"))
	rows = append(rows, "")

	stats := m.state.GetStats()
	if stats == nil {
		rows = append(rows, styles.HelpStyle.Render("No datasets scanned yet"))
	} else {
		rows = append(rows, m.renderConfigRow("Datasets", strconv.Itoa(stats.DatasetCount)))
		rows = append(rows, m.renderConfigRow("Categories", strconv.Itoa(stats.CategoryCount)))
		rows = append(rows, m.renderConfigRow("Metrics Enabled", strconv.Itoa(stats.KindsEnabled)))
	}

	if last := m.state.GetLastUpdated(); !last.IsZero() {
		rows = append(rows, "")
		rows = append(rows, styles.HelpStyle.Render("Last update "+last.Format("15:04:05")))
	}

	return styles.CardStyle.Width(cardWidth).Render(
		lipgloss.JoinVertical(lipgloss.Left, rows...),
	)
}

// renderConfigRow renders a configuration key-value row.
func (m *Model) renderConfigRow(label, value string) string {
	labelStyle := lipgloss.NewStyle().
		Width(18).
		Foreground(styles.TextMuted)

	valueStyle := lipgloss.NewStyle().
		Foreground(styles.TextPrimary)

	return labelStyle.Render(label+":") + " " + valueStyle.Render(value)
}

// renderAboutCard renders the about/version information card.
func (m *Model) renderAboutCard() string {
	cardWidth := m.cardWidth()

	var rows []string
	rows = append(rows, styles.CardTitleStyle.Render("About seriesdash"))
	rows = append(rows, "")

	rows = append(rows, m.renderConfigRow("Version", version.GetVersion()))
	rows = append(rows, m.renderConfigRow("Build Date", version.GetDate()))
	rows = append(rows, m.renderConfigRow("Git Commit", version.GetCommit()))
	rows = append(rows, m.renderConfigRow("Go Version", runtime.Version()))
	rows = append(rows, m.renderConfigRow("Platform", fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)))

	return styles.CardStyle.Width(cardWidth).Render(
		lipgloss.JoinVertical(lipgloss.Left, rows...),
	)
}

func (m *Model) cardWidth() int {
	w := m.width - 6
	if w < 50 {
		w = 50
	}
	if w > 80 {
		w = 80
	}
	return w
}
