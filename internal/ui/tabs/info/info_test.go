package info

import (
	"strings"
	"testing"
	"time"

	"github.com/okrause/seriesdash/internal/app"
	"github.com/okrause/seriesdash/internal/config"
	"github.com/okrause/seriesdash/internal/services"
)

func TestNew(t *testing.T) {
	state := app.NewState()
	cfg := &config.Config{}
	m := New(state, cfg)
	if m == nil {
		t.Fatal("New returned nil")
	}
}

func TestModel_Init(t *testing.T) {
	m := New(app.NewState(), &config.Config{})
	if m.Init() != nil {
		t.Error("Init should return nil")
	}
}

func TestModel_Update(t *testing.T) {
	m := New(app.NewState(), &config.Config{})

	updated, _ := m.Update(nil)
	if updated == nil {
		t.Error("Update returned nil model")
	}
}

func TestModel_View(t *testing.T) {
	state := app.NewState()
	cfg := &config.Config{
		APIBaseURL:        "http://localhost:5000",
		DataDir:           "/tmp/data",
		StorePath:         "/tmp/seriesdash.db",
		ToleranceMinutes:  30,
		PluginCacheTTL:    time.Hour,
		CorruptDataPolicy: "refetch",
	}
	m := New(state, cfg)
	m.SetSize(80, 40)

	view := m.View()
	if view == "" {
		t.Error("View returned empty string")
	}
	if !strings.Contains(view, "http://localhost:5000") {
		t.Errorf("view missing API base URL:\n%s", view)
	}
}

func TestModel_View_WithStats(t *testing.T) {
	state := app.NewState()
	state.SetStats(services.StatsEvent{DatasetCount: 3, CategoryCount: 2, KindsEnabled: 11})

	m := New(state, &config.Config{})
	m.SetSize(80, 50)

	view := m.View()
	if !strings.Contains(view, "3") {
		t.Errorf("view missing dataset count:\n%s", view)
	}
}

func TestModel_SetSize(t *testing.T) {
	m := New(app.NewState(), &config.Config{})
	m.SetSize(100, 50)
	if m.width != 100 || m.height != 50 {
		t.Errorf("size = %dx%d, want 100x50", m.width, m.height)
	}
}

func TestModel_Help(t *testing.T) {
	m := New(app.NewState(), &config.Config{})
	if len(m.ShortHelp()) == 0 {
		t.Error("ShortHelp should not be empty")
	}
	if len(m.FullHelp()) == 0 {
		t.Error("FullHelp should not be empty")
	}
}
