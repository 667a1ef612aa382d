package services

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okrause/seriesdash/internal/config"
	"github.com/okrause/seriesdash/internal/models"
)

func testManagerConfig(t *testing.T) *config.Config {
	t.Helper()
	tmpDir := t.TempDir()
	return &config.Config{
		APIBaseURL:         "http://localhost:59999",
		DataDir:            filepath.Join(tmpDir, "data"),
		StorePath:          filepath.Join(tmpDir, "seriesdash.db"),
		PairConcurrency:    1,
		MaxConcurrentKinds: 2,
		ToleranceMinutes:   30,
		PluginCacheTTL:     time.Hour,
		CorruptDataPolicy:  "refetch",
	}
}

func TestNewManager(t *testing.T) {
	mgr, err := NewManager(testManagerConfig(t))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	defer mgr.Close()

	if mgr.Datasets() == nil {
		t.Error("Datasets service should be initialized")
	}
	if mgr.Plugins() == nil {
		t.Error("Plugins service should be initialized")
	}
	if mgr.Metrics() == nil {
		t.Error("Metrics service should be initialized")
	}
	if mgr.Store() == nil {
		t.Error("Store should be initialized")
	}
}

func TestManager_GetStats(t *testing.T) {
	cfg := testManagerConfig(t)

	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		t.Fatal(err)
	}
	content := "2023-01-01T00:00:00,1.5\n"
	for _, name := range []string{"Temperature__a.csv", "Temperature__b.csv", "Humidity__a.csv"} {
		if err := os.WriteFile(filepath.Join(cfg.DataDir, name), []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	mgr, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	defer mgr.Close()

	stats := mgr.GetStats()
	if stats.DatasetCount != 3 {
		t.Errorf("DatasetCount = %d, want 3", stats.DatasetCount)
	}
	if stats.CategoryCount != 2 {
		t.Errorf("CategoryCount = %d, want 2", stats.CategoryCount)
	}
	// Default selection: every built-in kind except the expensive two.
	if want := len(models.Kinds()) - 2; stats.KindsEnabled != want {
		t.Errorf("KindsEnabled = %d, want %d", stats.KindsEnabled, want)
	}
}

func TestManager_Subscription(t *testing.T) {
	mgr, err := NewManager(testManagerConfig(t))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	defer mgr.Close()

	ch, cmd := mgr.Subscribe()
	if ch == nil {
		t.Error("Subscribe returned nil channel")
	}
	if cmd == nil {
		t.Error("Subscribe returned nil command")
	}

	// Unsubscribe
	mgr.Unsubscribe(ch)

	// Check if channel is closed
	select {
	case _, ok := <-ch:
		if ok {
			t.Error("Channel should be closed")
		}
	default:
		// might block if not closed and empty, but Unsubscribe closes it
	}
}

func TestManager_Broadcast(t *testing.T) {
	mgr, err := NewManager(testManagerConfig(t))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	defer mgr.Close()

	ch, _ := mgr.Subscribe()
	defer mgr.Unsubscribe(ch)

	event := StatsEvent{DatasetCount: 1}
	mgr.broadcast(event)

	deadline := time.After(time.Second)
	for {
		select {
		case e := <-ch:
			if got, ok := e.(StatsEvent); ok && got == event {
				return
			}
			// Startup events (dataset load, cycle) may arrive first.
		case <-deadline:
			t.Fatal("Timeout waiting for broadcast")
		}
	}
}

func TestManager_SetWindow(t *testing.T) {
	mgr, err := NewManager(testManagerConfig(t))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	defer mgr.Close()

	window := models.Window{Start: "2023-01-01T00:00:00", End: "2023-02-01T00:00:00"}
	mgr.SetWindow(window)

	if got := mgr.Window(); got != window {
		t.Errorf("Window() = %+v, want %+v", got, window)
	}
}

func TestManager_SessionTokenPersists(t *testing.T) {
	cfg := testManagerConfig(t)

	mgr, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	// A rotated token observed by the client lands in the store.
	mgr.saveToken("rotated-token")
	if err := mgr.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	mgr2, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager (reopen) failed: %v", err)
	}
	defer mgr2.Close()

	if got := mgr2.client.Tokens().Token(); got != "rotated-token" {
		t.Errorf("token after reopen = %q, want rotated-token", got)
	}
}

func TestWaitForEvent(t *testing.T) {
	ch := make(chan ServiceEvent, 1)
	ch <- StatsEvent{}

	cmd := WaitForEvent(ch)
	msg := cmd()
	if msg == nil {
		t.Error("WaitForEvent cmd returned nil msg")
	}
}

func TestServiceEvent_Interface(t *testing.T) {
	var _ ServiceEvent = DatasetsChangedEvent{}
	var _ ServiceEvent = MetricUpdatedEvent{}
	var _ ServiceEvent = MetricFailedEvent{}
	var _ ServiceEvent = CycleDoneEvent{}
	var _ ServiceEvent = ResetDoneEvent{}
	var _ ServiceEvent = CorruptDataEvent{}
	var _ ServiceEvent = ErrorEvent{}
	var _ ServiceEvent = StatsEvent{}
}
