package models

import "testing"

func TestNewMatrixDistance(t *testing.T) {
	files := []string{"a.csv", "b.csv", "c.csv"}
	m := NewMatrix(files, FamilyDistance)

	for _, f := range files {
		if v, ok := m.Get(f, f); !ok || v != 0 {
			t.Errorf("diagonal [%s][%s] = %v, %v; want 0, true", f, f, v, ok)
		}
	}
	if v, ok := m.Get("a.csv", "b.csv"); !ok || v != 0 {
		t.Errorf("off-diagonal default = %v, %v; want 0, true", v, ok)
	}
}

func TestNewMatrixSimilarity(t *testing.T) {
	m := NewMatrix([]string{"x", "y"}, FamilySimilarity)

	if v, _ := m.Get("x", "x"); v != 1 {
		t.Errorf("similarity diagonal = %v, want 1", v)
	}
	if v, _ := m.Get("x", "y"); v != 0 {
		t.Errorf("similarity off-diagonal default = %v, want 0", v)
	}
}

func TestNewMatrixCorrelationHasNoDiagonal(t *testing.T) {
	m := NewMatrix([]string{"x", "y"}, FamilyCorrelation)

	if _, ok := m.Get("x", "x"); ok {
		t.Error("correlation matrix must not assume a diagonal value")
	}
	if _, ok := m.Get("x", "y"); !ok {
		t.Error("off-diagonal cells should still default to 0")
	}
}

func TestMatrixSetSymmetric(t *testing.T) {
	m := NewMatrix([]string{"a", "b"}, FamilyDistance)
	m.Set("a", "b", 5)

	ab, _ := m.Get("a", "b")
	ba, _ := m.Get("b", "a")
	if ab != 5 || ba != 5 {
		t.Errorf("Set not symmetric: [a][b]=%v [b][a]=%v", ab, ba)
	}
}

func TestNewMatrixSingleFile(t *testing.T) {
	m := NewMatrix([]string{"only"}, FamilyDistance)
	if len(m.Files) != 1 {
		t.Fatalf("files = %d, want 1", len(m.Files))
	}
	if v, ok := m.Get("only", "only"); !ok || v != 0 {
		t.Errorf("single-file diagonal = %v, %v; want 0, true", v, ok)
	}
}
