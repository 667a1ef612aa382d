package statistics

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/okrause/seriesdash/internal/app"
	"github.com/okrause/seriesdash/internal/models"
	"github.com/okrause/seriesdash/internal/services/metrics"
)

func testState() *app.State {
	state := app.NewState()
	state.SetLoading("initial", false)
	state.SetCategories(map[string][]string{
		"Temperature": {"a.csv", "b.csv"},
	})

	mean, _ := models.KindByID(models.KindMean)
	variance, _ := models.KindByID(models.KindVariance)
	euclidean, _ := models.KindByID(models.KindEuclidean)

	state.SetStatuses(map[models.Kind]metrics.KindStatus{
		models.KindMean: {
			Info:  mean,
			State: metrics.StateSuccess,
			Stats: models.CategoryStats{
				"Temperature": {"a.csv": 20.5, "b.csv": 18.0},
			},
		},
		models.KindVariance: {
			Info:  variance,
			State: metrics.StateLoading,
		},
		// Pairwise kinds belong on the matrices tab.
		models.KindEuclidean: {
			Info:  euclidean,
			State: metrics.StateSuccess,
		},
	})
	return state
}

func TestStatisticKinds_ExcludesPairwise(t *testing.T) {
	m := New(testState(), nil)

	kinds := m.statisticKinds()
	if len(kinds) != 2 {
		t.Fatalf("statisticKinds returned %d kinds, want 2", len(kinds))
	}
	for _, st := range kinds {
		if st.Info.Pairwise() {
			t.Errorf("pairwise kind %s in list", st.Info.ID)
		}
	}
}

func TestKindNavigation(t *testing.T) {
	m := New(testState(), nil)

	m.handleKeyMsg(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	if m.selectedIndex != 1 {
		t.Errorf("after j: selection = %d, want 1", m.selectedIndex)
	}

	m.handleKeyMsg(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	if m.selectedIndex != 0 {
		t.Errorf("after wrap: selection = %d, want 0", m.selectedIndex)
	}
}

func TestToggleChart(t *testing.T) {
	m := New(testState(), nil)

	if !m.showChart {
		t.Fatal("chart should be shown by default")
	}

	m.handleKeyMsg(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'t'}})
	if m.showChart {
		t.Error("chart should be hidden after toggle")
	}
}

func TestView_ShowsStatValues(t *testing.T) {
	m := New(testState(), nil)
	m.SetSize(100, 40)

	// Mean sorts first by label.
	view := m.View()
	if !strings.Contains(view, "Mean") {
		t.Errorf("view missing kind label:\n%s", view)
	}
	if !strings.Contains(view, "20.500") {
		t.Errorf("view missing stat value:\n%s", view)
	}
}

func TestView_SeriesPreview(t *testing.T) {
	m := New(testState(), nil)
	m.SetSize(100, 50)

	tab, _ := m.Update(seriesLoadedMsg{
		category: "Temperature",
		files:    []string{"a.csv"},
		series:   [][]float64{{1, 2, 3, 2, 1}},
	})
	m = tab.(*Model)

	view := m.View()
	if !strings.Contains(view, "Series Preview") {
		t.Errorf("view missing preview section:\n%s", view)
	}
}

func TestCategorySwitchReloadsSeries(t *testing.T) {
	state := testState()
	m := New(state, nil)

	_, cmd := m.handleKeyMsg(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'l'}})
	if cmd == nil {
		t.Fatal("category switch should schedule a series reload")
	}
}

func TestCycleDerivedSeries(t *testing.T) {
	m := New(testState(), nil)

	if m.derived != derivedNone {
		t.Fatal("derived overlay should be off by default")
	}

	_, cmd := m.handleKeyMsg(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'d'}})
	if m.derived != derivedRollingMean {
		t.Errorf("after d: derived = %v, want rolling mean", m.derived)
	}
	if cmd == nil {
		t.Error("overlay change should schedule a series reload")
	}

	m.handleKeyMsg(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'d'}})
	if m.derived != derivedDifference {
		t.Errorf("derived = %v, want difference", m.derived)
	}

	m.handleKeyMsg(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'d'}})
	if m.derived != derivedNone {
		t.Errorf("derived = %v, want off after full cycle", m.derived)
	}
}

func TestView_DerivedOverlayLabel(t *testing.T) {
	m := New(testState(), nil)
	m.SetSize(100, 50)
	m.derived = derivedRollingMean

	tab, _ := m.Update(seriesLoadedMsg{
		category: "Temperature",
		files:    []string{"a.csv", "a.csv (rolling mean)"},
		series:   [][]float64{{1, 2, 3}, {1, 1.5, 2}},
	})
	m = tab.(*Model)

	view := m.View()
	if !strings.Contains(view, "rolling mean") {
		t.Errorf("view missing derived overlay label:\n%s", view)
	}
}
