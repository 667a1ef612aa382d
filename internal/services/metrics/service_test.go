package metrics

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okrause/seriesdash/internal/client"
	"github.com/okrause/seriesdash/internal/models"
	"github.com/okrause/seriesdash/internal/store"
)

func testConfig() Config {
	return Config{
		MaxConcurrent:   3,
		PairConcurrency: 1,
		Tolerance:       30,
		CorruptPolicy:   CorruptWait,
	}
}

func testInput() Input {
	return Input{
		Categories: map[string][]string{
			"Temperature": {"a.csv", "b.csv"},
		},
	}
}

// waitForEvent drains the channel until an event of the wanted type arrives.
func waitForEvent(t *testing.T, ch <-chan Event, want EventType) Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev.Type == want {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event type %d", want)
		}
	}
}

func TestService_RefreshComputesDefaultSelection(t *testing.T) {
	caller := &fakeCaller{}
	svc := New(caller, nil, nil, testConfig())
	defer func() { _ = svc.Close() }()

	if !svc.Refresh(testInput()) {
		t.Fatal("first Refresh should start a cycle")
	}
	waitForEvent(t, svc.Events(), EventCycleDone)

	statuses := svc.Statuses()

	if st, ok := statuses[models.KindMean]; !ok || st.State != StateSuccess {
		t.Errorf("mean status = %+v, want success", st)
	}
	if st, ok := statuses[models.KindEuclidean]; !ok || st.State != StateSuccess {
		t.Errorf("euclidean status = %+v, want success", st)
	}

	// Expensive kinds stay out of the default selection.
	if _, ok := statuses[models.KindDTW]; ok {
		t.Error("dtw should not run under the default selection")
	}
	if _, ok := statuses[models.KindAutocorrelation]; ok {
		t.Error("autocorrelation should not run under the default selection")
	}

	if st := statuses[models.KindEuclidean]; st.Matrices["Temperature"] == nil {
		t.Error("euclidean matrix missing for category")
	}
	if st := statuses[models.KindMean]; st.Stats["Temperature"] == nil {
		t.Error("mean stats missing for category")
	}
}

func TestService_RefreshGuardSuppressesUnchangedInput(t *testing.T) {
	caller := &fakeCaller{}
	svc := New(caller, nil, nil, testConfig())
	defer func() { _ = svc.Close() }()

	input := testInput()
	if !svc.Refresh(input) {
		t.Fatal("first Refresh should start a cycle")
	}
	waitForEvent(t, svc.Events(), EventCycleDone)

	// Same input, everything settled: no refetch.
	if svc.Refresh(testInput()) {
		t.Error("unchanged input should not start a second cycle")
	}

	// Structurally different input does.
	changed := Input{Categories: map[string][]string{
		"Temperature": {"a.csv", "b.csv", "c.csv"},
	}}
	if !svc.Refresh(changed) {
		t.Error("changed input should start a cycle")
	}
	waitForEvent(t, svc.Events(), EventCycleDone)
}

func TestService_RefreshRetriesFailedKindsOnSameInput(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	caller := &fakeCaller{
		statFn: func(models.MetricRequest) (*float64, error) {
			if fail.Load() {
				return nil, &client.ErrorRecord{Kind: client.ErrServerError}
			}
			v := 1.0
			return &v, nil
		},
	}
	svc := New(caller, nil, nil, testConfig())
	defer func() { _ = svc.Close() }()

	svc.Refresh(testInput())
	waitForEvent(t, svc.Events(), EventCycleDone)

	if st, _ := svc.Status(models.KindMean); st.State != StateFailed {
		t.Fatalf("mean state = %v, want failed", st.State)
	}

	// A kind left failed keeps the same input eligible for another cycle.
	fail.Store(false)
	if !svc.Refresh(testInput()) {
		t.Fatal("failed kinds should allow a refetch on unchanged input")
	}
	waitForEvent(t, svc.Events(), EventCycleDone)

	if st, _ := svc.Status(models.KindMean); st.State != StateSuccess {
		t.Errorf("mean state after retry = %v, want success", st.State)
	}
}

func TestService_EmptySelectionHidesEverything(t *testing.T) {
	caller := &fakeCaller{}
	svc := New(caller, nil, nil, testConfig())
	defer func() { _ = svc.Close() }()

	svc.SetSelection(models.Selection{})

	svc.Refresh(testInput())
	waitForEvent(t, svc.Events(), EventCycleDone)

	if pairs, stats := caller.calls(); pairs != 0 || stats != 0 {
		t.Errorf("calls = %d pairs, %d stats; want none", pairs, stats)
	}
	if len(svc.Statuses()) != 0 {
		t.Errorf("statuses = %v, want empty", svc.Statuses())
	}
}

func TestService_ExplicitSelectionRunsOnlyListedKinds(t *testing.T) {
	caller := &fakeCaller{}
	svc := New(caller, nil, nil, testConfig())
	defer func() { _ = svc.Close() }()

	svc.Refresh(testInput())
	waitForEvent(t, svc.Events(), EventCycleDone)

	svc.SetSelection(models.Selection{models.KindDTW})
	waitForEvent(t, svc.Events(), EventCycleDone)

	st, ok := svc.Status(models.KindDTW)
	if !ok || st.State != StateSuccess {
		t.Fatalf("dtw status = %+v, want success", st)
	}
	if _, ok := st.Matrices["Temperature"].Get("a.csv", "b.csv"); !ok {
		t.Error("dtw matrix not populated")
	}
}

func TestService_RetrySingleKind(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	caller := &fakeCaller{
		pairFn: func(models.MetricRequest) (*float64, error) {
			if fail.Load() {
				return nil, &client.ErrorRecord{Kind: client.ErrServerError}
			}
			v := 3.0
			return &v, nil
		},
	}
	svc := New(caller, nil, nil, testConfig())
	defer func() { _ = svc.Close() }()

	svc.SetSelection(models.Selection{models.KindEuclidean})
	svc.Refresh(testInput())
	ev := waitForEvent(t, svc.Events(), EventKindFailed)
	if ev.Kind != models.KindEuclidean {
		t.Fatalf("failed kind = %s", ev.Kind)
	}
	waitForEvent(t, svc.Events(), EventCycleDone)

	fail.Store(false)
	svc.Retry(models.KindEuclidean)
	waitForEvent(t, svc.Events(), EventCycleDone)

	st, _ := svc.Status(models.KindEuclidean)
	if st.State != StateSuccess {
		t.Fatalf("state after retry = %v", st.State)
	}
	if v, _ := st.Matrices["Temperature"].Get("a.csv", "b.csv"); v != 3.0 {
		t.Errorf("cell = %v, want 3.0", v)
	}
}

func TestService_ResetClearsStateAndRemote(t *testing.T) {
	caller := &fakeCaller{}
	svc := New(caller, nil, nil, testConfig())
	defer func() { _ = svc.Close() }()

	svc.Refresh(testInput())
	waitForEvent(t, svc.Events(), EventCycleDone)

	if err := svc.Reset(context.Background()); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	waitForEvent(t, svc.Events(), EventResetDone)

	caller.mu.Lock()
	clears := caller.clearCalls
	caller.mu.Unlock()
	if clears != 1 {
		t.Errorf("ClearRemote calls = %d, want 1", clears)
	}
	if len(svc.Statuses()) != 0 {
		t.Error("statuses should be empty after reset")
	}
	// After a reset there is no input; the next Refresh always runs.
	if !svc.Refresh(testInput()) {
		t.Error("Refresh after Reset should start a cycle")
	}
	waitForEvent(t, svc.Events(), EventCycleDone)
}

func TestService_PersistsAndRehydratesResults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seriesdash.db")

	st, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}

	caller := &fakeCaller{}
	svc := New(caller, nil, st, testConfig())
	svc.Refresh(testInput())
	waitForEvent(t, svc.Events(), EventCycleDone)
	_ = svc.Close()
	if err := st.Close(); err != nil {
		t.Fatal(err)
	}

	// A fresh service over the same store starts out with the results.
	st2, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = st2.Close() }()

	svc2 := New(&fakeCaller{}, nil, st2, testConfig())
	defer func() { _ = svc2.Close() }()

	status, ok := svc2.Status(models.KindEuclidean)
	if !ok || status.State != StateSuccess {
		t.Fatalf("rehydrated status = %+v, want success", status)
	}
	if v, _ := status.Matrices["Temperature"].Get("a.csv", "b.csv"); v != 1.0 {
		t.Errorf("rehydrated cell = %v, want 1.0", v)
	}
}

func TestService_CorruptResultsWaitPolicy(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "seriesdash.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = st.Close() }()

	// A value that is valid JSON but not decodable into the stored shape.
	if err := st.Save(store.ResultKey(string(models.KindEuclidean)), []int{1, 2}); err != nil {
		t.Fatal(err)
	}

	cfg := testConfig()
	cfg.CorruptPolicy = CorruptWait
	svc := New(&fakeCaller{}, nil, st, cfg)
	defer func() { _ = svc.Close() }()

	ev := waitForEvent(t, svc.Events(), EventCorruptData)
	if ev.Kind != models.KindEuclidean {
		t.Errorf("corrupt kind = %s, want euclidean_distance", ev.Kind)
	}
	if _, ok := svc.Status(models.KindEuclidean); ok {
		t.Error("corrupt kind should carry no status until retried")
	}

	// The broken value must be gone from the store.
	if _, found, err := st.LoadRaw(store.ResultKey(string(models.KindEuclidean))); err != nil || found {
		t.Errorf("corrupt key still present (found=%v, err=%v)", found, err)
	}
}

func TestService_CorruptResultsRefetchPolicy(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "seriesdash.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = st.Close() }()

	if err := st.Save(store.KeyCategories, testInput().Categories); err != nil {
		t.Fatal(err)
	}
	if err := st.Save(store.ResultKey(string(models.KindEuclidean)), []int{1, 2}); err != nil {
		t.Fatal(err)
	}

	cfg := testConfig()
	cfg.CorruptPolicy = CorruptRefetch
	caller := &fakeCaller{}
	svc := New(caller, nil, st, cfg)
	defer func() { _ = svc.Close() }()

	// Construction kicked off a cycle restricted to the corrupt kind.
	waitForEvent(t, svc.Events(), EventCycleDone)

	status, ok := svc.Status(models.KindEuclidean)
	if !ok || status.State != StateSuccess {
		t.Fatalf("refetched status = %+v, want success", status)
	}
	if pairs, _ := caller.calls(); pairs != 1 {
		t.Errorf("pair calls = %d, want 1 (only the corrupt kind)", pairs)
	}
}

type fakeRunner struct {
	plugins []models.Plugin
	runs    int
}

func (f *fakeRunner) Plugins() []models.Plugin { return f.plugins }

func (f *fakeRunner) Run(_ context.Context, _ models.Plugin, _ string, files []string, _ models.Window) (map[string]map[string]float64, error) {
	f.runs++
	out := make(map[string]map[string]float64)
	for _, a := range files {
		out[a] = make(map[string]float64)
		for _, b := range files {
			if a != b {
				out[a][b] = 7.0
			}
		}
	}
	return out, nil
}

func TestService_PluginKindRuns(t *testing.T) {
	runner := &fakeRunner{plugins: []models.Plugin{{Name: "range_diff", Code: "def metric(a, b): ..."}}}
	svc := New(&fakeCaller{}, runner, nil, testConfig())
	defer func() { _ = svc.Close() }()

	svc.Refresh(testInput())
	waitForEvent(t, svc.Events(), EventCycleDone)

	kind := models.PluginKind("range_diff").ID
	status, ok := svc.Status(kind)
	if !ok || status.State != StateSuccess {
		t.Fatalf("plugin status = %+v, want success", status)
	}
	if v, _ := status.Matrices["Temperature"].Get("a.csv", "b.csv"); v != 7.0 {
		t.Errorf("plugin cell = %v, want 7.0", v)
	}
	if runner.runs != 1 {
		t.Errorf("plugin runs = %d, want 1", runner.runs)
	}
}

func TestService_AddPluginKindJoinsExplicitSelection(t *testing.T) {
	svc := New(&fakeCaller{}, nil, nil, testConfig())
	defer func() { _ = svc.Close() }()

	svc.SetSelection(models.Selection{models.KindMean})
	kind := models.PluginKind("range_diff").ID
	svc.AddPluginKind(kind)

	sel := svc.Selection()
	if !sel.Enabled(kind) {
		t.Error("new plugin kind should join an explicit selection")
	}
	if !sel.Enabled(models.KindMean) {
		t.Error("existing selection entries must survive")
	}
}
