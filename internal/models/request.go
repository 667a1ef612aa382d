package models

// Window is an optional time interval restricting a computation, carried as
// the service's ISO-8601 start/end query parameters.
type Window struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// IsZero reports whether no window is set.
func (w Window) IsZero() bool {
	return w.Start == "" && w.End == ""
}

// MetricRequest identifies one remote computation. File2 is empty for
// single-series statistics.
type MetricRequest struct {
	Kind      KindInfo
	Category  string
	File1     string
	File2     string
	Window    Window
	Tolerance int // time-alignment tolerance in minutes, 0 = service default
}
