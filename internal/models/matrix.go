package models

// Matrix is a file-by-file result table for one pairwise metric over one
// category, built over an ordered file list. Symmetric kinds hold the same
// value at [a][b] and [b][a].
type Matrix struct {
	Files []string                      `json:"files"`
	Cells map[string]map[string]float64 `json:"cells"`
}

// NewMatrix creates a matrix over the given ordered files, pre-filled per
// the family's convention: every off-diagonal cell starts at 0 (the value a
// failed pair leaves in place) and the diagonal at the family's self-value.
// Families without a client-side diagonal get no diagonal entries at all.
func NewMatrix(files []string, family Family) *Matrix {
	m := &Matrix{
		Files: append([]string(nil), files...),
		Cells: make(map[string]map[string]float64, len(files)),
	}
	diag := family.Diagonal()
	for _, a := range files {
		row := make(map[string]float64, len(files))
		for _, b := range files {
			if a == b {
				if diag != nil {
					row[b] = *diag
				}
				continue
			}
			row[b] = 0
		}
		m.Cells[a] = row
	}
	return m
}

// Set writes a pair value symmetrically.
func (m *Matrix) Set(a, b string, v float64) {
	if m.Cells[a] == nil {
		m.Cells[a] = make(map[string]float64)
	}
	if m.Cells[b] == nil {
		m.Cells[b] = make(map[string]float64)
	}
	m.Cells[a][b] = v
	m.Cells[b][a] = v
}

// Get returns the cell value and whether it is present.
func (m *Matrix) Get(a, b string) (float64, bool) {
	row, ok := m.Cells[a]
	if !ok {
		return 0, false
	}
	v, ok := row[b]
	return v, ok
}

// StatResults maps file name to a single-series statistic value. A file
// whose computation returned null or failed is absent from the map, since
// zero is a valid statistic and must stay distinguishable from
// "unavailable".
type StatResults map[string]float64

// CategoryMatrices maps category name to the matrix computed for it.
type CategoryMatrices map[string]*Matrix

// CategoryStats maps category name to single-series statistics per file.
type CategoryStats map[string]StatResults
