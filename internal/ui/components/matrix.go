package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/okrause/seriesdash/internal/models"
	"github.com/okrause/seriesdash/internal/ui/styles"
)

const (
	matrixCellWidth  = 9
	matrixLabelWidth = 14
)

// RenderMatrix renders a pairwise result matrix as an aligned table with
// truncated file labels on both axes. Cells the diagonal convention left
// absent render as a dash.
func RenderMatrix(m *models.Matrix, maxWidth int) string {
	if m == nil || len(m.Files) == 0 {
		return styles.HelpStyle.Render("No results")
	}

	// Limit columns to what fits
	maxCols := (maxWidth - matrixLabelWidth) / (matrixCellWidth + 1)
	if maxCols < 1 {
		maxCols = 1
	}
	files := m.Files
	truncated := false
	if len(files) > maxCols {
		files = files[:maxCols]
		truncated = true
	}

	var b strings.Builder

	// Header row
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(styles.Primary)
	b.WriteString(strings.Repeat(" ", matrixLabelWidth))
	for _, f := range files {
		b.WriteString(" ")
		b.WriteString(headerStyle.Render(padLabel(f, matrixCellWidth)))
	}
	b.WriteString("\n")

	labelStyle := lipgloss.NewStyle().Foreground(styles.TextSecondary)
	for _, a := range m.Files {
		b.WriteString(labelStyle.Render(padLabel(a, matrixLabelWidth)))
		for _, f := range files {
			b.WriteString(" ")
			if v, ok := m.Get(a, f); ok {
				b.WriteString(fmt.Sprintf("%*s", matrixCellWidth, formatCell(v)))
			} else {
				b.WriteString(fmt.Sprintf("%*s", matrixCellWidth, "-"))
			}
		}
		b.WriteString("\n")
	}

	if truncated {
		b.WriteString(styles.HelpStyle.Render(
			fmt.Sprintf("(%d more columns hidden, widen the terminal)", len(m.Files)-len(files))))
		b.WriteString("\n")
	}

	return b.String()
}

// RenderStatTable renders per-file statistic values as label/value rows.
// Files absent from the results render as unavailable.
func RenderStatTable(files []string, results models.StatResults) string {
	if len(files) == 0 {
		return styles.HelpStyle.Render("No results")
	}

	maxLabelLen := 0
	for _, f := range files {
		if len(f) > maxLabelLen {
			maxLabelLen = len(f)
		}
	}

	var lines []string
	labelStyle := lipgloss.NewStyle().Foreground(styles.TextSecondary)
	for _, f := range files {
		label := labelStyle.Render(fmt.Sprintf("%-*s", maxLabelLen, f))
		if v, ok := results[f]; ok {
			lines = append(lines, fmt.Sprintf("%s  %s", label, formatCell(v)))
		} else {
			lines = append(lines, fmt.Sprintf("%s  %s", label, styles.ErrorTextStyle.Render("n/a")))
		}
	}

	return strings.Join(lines, "\n")
}

func formatCell(v float64) string {
	av := v
	if av < 0 {
		av = -av
	}
	switch {
	case av != 0 && (av >= 100000 || av < 0.001):
		return fmt.Sprintf("%.2e", v)
	case av >= 100:
		return fmt.Sprintf("%.1f", v)
	default:
		return fmt.Sprintf("%.3f", v)
	}
}

func padLabel(s string, width int) string {
	if len(s) > width {
		if width <= 1 {
			return s[:width]
		}
		return s[:width-1] + "…"
	}
	return fmt.Sprintf("%-*s", width, s)
}
