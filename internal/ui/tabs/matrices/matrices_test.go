package matrices

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
		"Humidity":    {"h1.csv"},
		"Temperature": {"a.csv", "b.csv"},
	})

	euclidean, _ := models.KindByID(models.KindEuclidean)
	matrix := models.NewMatrix([]string{"a.csv", "b.csv"}, euclidean.Family)
	matrix.Set("a.csv", "b.csv", 2.5)

	cosine, _ := models.KindByID(models.KindCosine)

	state.SetStatuses(map[models.Kind]metrics.KindStatus{
		models.KindEuclidean: {
			Info:     euclidean,
			State:    metrics.StateSuccess,
			Matrices: models.CategoryMatrices{"Humidity": nil, "Temperature": matrix},
		},
		models.KindCosine: {
			Info:  cosine,
			State: metrics.StateLoading,
		},
		// Statistic kinds must not show up on this tab.
		models.KindMean: {
			Info:  mustKind(models.KindMean),
			State: metrics.StateSuccess,
		},
	})
	return state
}

func mustKind(id models.Kind) models.KindInfo {
	info, ok := models.KindByID(id)
	if !ok {
		panic("unknown kind " + string(id))
	}
	return info
}

func TestPairwiseKinds_ExcludesStatistics(t *testing.T) {
	m := New(testState())

	kinds := m.pairwiseKinds()
	if len(kinds) != 2 {
		t.Fatalf("pairwiseKinds returned %d kinds, want 2", len(kinds))
	}
	for _, st := range kinds {
		if !st.Info.Pairwise() {
			t.Errorf("non-pairwise kind %s in list", st.Info.ID)
		}
	}
}

func TestKindNavigation(t *testing.T) {
	m := New(testState())

	if m.selectedIndex != 0 {
		t.Fatalf("initial selection = %d, want 0", m.selectedIndex)
	}

	m.handleKeyMsg(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	if m.selectedIndex != 1 {
		t.Errorf("after j: selection = %d, want 1", m.selectedIndex)
	}

	// Wraps around
	m.handleKeyMsg(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	if m.selectedIndex != 0 {
		t.Errorf("after wrap: selection = %d, want 0", m.selectedIndex)
	}

	m.handleKeyMsg(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'G'}})
	if m.selectedIndex != 1 {
		t.Errorf("after G: selection = %d, want 1", m.selectedIndex)
	}
}

func TestCategoryNavigation(t *testing.T) {
	state := testState()
	m := New(state)

	if got := state.GetSelectedCategory(); got != "Humidity" {
		t.Fatalf("initial category = %q, want Humidity", got)
	}

	m.handleKeyMsg(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'l'}})
	if got := state.GetSelectedCategory(); got != "Temperature" {
		t.Errorf("after l: category = %q, want Temperature", got)
	}

	m.handleKeyMsg(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'h'}})
	if got := state.GetSelectedCategory(); got != "Humidity" {
		t.Errorf("after h: category = %q, want Humidity", got)
	}
}

func TestRetryKeyEmitsRetryMsg(t *testing.T) {
	m := New(testState())

	cmd := m.handleKeyMsg(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'x'}})
	if cmd == nil {
		t.Fatal("retry key returned nil command")
	}

	msg, ok := cmd().(app.RetryKindMsg)
	if !ok {
		t.Fatalf("retry command returned %T, want RetryKindMsg", cmd())
	}
	// Kinds are sorted by label; Cosine similarity sorts first.
	if msg.Kind != models.KindCosine {
		t.Errorf("retry kind = %s, want %s", msg.Kind, models.KindCosine)
	}
}

func TestView_ShowsMatrixForSelectedCategory(t *testing.T) {
	state := testState()
	state.SelectCategory("Temperature")
	m := New(state)
	m.SetSize(100, 40)

	// Select Euclidean distance (index 1 after sorting by label).
	m.selectedIndex = 1

	view := m.View()
	if !strings.Contains(view, "Euclidean distance") {
		t.Errorf("view missing kind label:\n%s", view)
	}
	if !strings.Contains(view, "2.500") {
		t.Errorf("view missing matrix cell value:\n%s", view)
	}
}

func TestView_InitialLoading(t *testing.T) {
	state := app.NewState()
	m := New(state)
	m.SetSize(80, 24)

	view := m.View()
	if view == "" {
		t.Error("loading view is empty")
	}
}

func TestView_NoPairwiseKinds(t *testing.T) {
	state := app.NewState()
	state.SetLoading("initial", false)
	m := New(state)
	m.SetSize(80, 24)

	view := m.View()
	if !strings.Contains(view, "No pairwise metrics") {
		t.Errorf("empty view missing placeholder:\n%s", view)
	}
}
