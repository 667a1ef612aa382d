package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/okrause/seriesdash/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "seriesdash.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	})
	return s
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)

	index := map[string][]string{"Temperature": {"a.csv", "b.csv"}}
	if err := s.Save(KeyCategories, index); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	var got map[string][]string
	ok, err := s.Load(KeyCategories, &got)
	if err != nil || !ok {
		t.Fatalf("Load = %v, %v", ok, err)
	}
	if len(got["Temperature"]) != 2 || got["Temperature"][0] != "a.csv" {
		t.Errorf("loaded %v", got)
	}
}

func TestStore_LoadAbsent(t *testing.T) {
	s := newTestStore(t)

	var out string
	ok, err := s.Load("never-written", &out)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if ok {
		t.Error("absent key reported present")
	}
}

func TestStore_CorruptValueDiscarded(t *testing.T) {
	s := newTestStore(t)

	// Simulate a corrupted persisted value.
	if _, err := s.db.ExecContext(context.Background(),
		"INSERT INTO kv (key, value) VALUES (?, ?)", KeySelection, "{not json"); err != nil {
		t.Fatal(err)
	}

	var sel models.Selection
	ok, err := s.Load(KeySelection, &sel)
	if err != nil {
		t.Fatalf("Load should not fail on corrupt data: %v", err)
	}
	if ok {
		t.Error("corrupt value reported present")
	}

	// Key must have been removed.
	keys, err := s.Keys()
	if err != nil {
		t.Fatal(err)
	}
	for _, k := range keys {
		if k == KeySelection {
			t.Error("corrupt key should have been removed")
		}
	}
}

func TestStore_SaveOverwrites(t *testing.T) {
	s := newTestStore(t)

	if err := s.Save(KeySessionToken, "T1"); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(KeySessionToken, "T2"); err != nil {
		t.Fatal(err)
	}

	var token string
	if ok, _ := s.Load(KeySessionToken, &token); !ok || token != "T2" {
		t.Errorf("token = %q, want T2", token)
	}
}

func TestStore_ResetPreservesIdentityKeys(t *testing.T) {
	s := newTestStore(t)

	writes := map[string]any{
		KeyTimeseries:                   map[string]float64{"2023-01-01T00:00:00": 1},
		KeyCategories:                   map[string][]string{"c": {"f"}},
		KeySelection:                    []string{"mean"},
		ResultKey("dtw"):                map[string]any{},
		PluginCacheKey("abc123"):        map[string]any{"value": 1},
		KeySessionToken:                 "tok",
		KeyPlugins:                      []models.Plugin{{Name: "p", Code: "x"}},
		KeyPrefs:                        map[string]string{"theme": "dark"},
	}
	for k, v := range writes {
		if err := s.Save(k, v); err != nil {
			t.Fatalf("Save(%s) failed: %v", k, err)
		}
	}

	if err := s.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	remaining := map[string]bool{}
	keys, err := s.Keys()
	if err != nil {
		t.Fatal(err)
	}
	for _, k := range keys {
		remaining[k] = true
	}

	for _, cleared := range []string{
		KeyTimeseries, KeyCategories, KeySelection,
		ResultKey("dtw"), PluginCacheKey("abc123"),
	} {
		if remaining[cleared] {
			t.Errorf("Reset should have cleared %s", cleared)
		}
	}
	for _, kept := range []string{KeySessionToken, KeyPlugins, KeyPrefs} {
		if !remaining[kept] {
			t.Errorf("Reset should have preserved %s", kept)
		}
	}
}

func TestStore_RemoveAbsentKey(t *testing.T) {
	s := newTestStore(t)
	if err := s.Remove("ghost"); err != nil {
		t.Errorf("Remove of absent key should succeed: %v", err)
	}
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seriesdash.db")

	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Save(KeyPrefs, map[string]string{"tab": "matrices"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = s2.Close() }()

	var prefs map[string]string
	if ok, _ := s2.Load(KeyPrefs, &prefs); !ok || prefs["tab"] != "matrices" {
		t.Errorf("prefs after reopen = %v", prefs)
	}
}
