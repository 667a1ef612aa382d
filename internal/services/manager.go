// Package services provides service orchestration for the TUI.
package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gen2brain/beeep"

	"github.com/okrause/seriesdash/internal/client"
	"github.com/okrause/seriesdash/internal/config"
	"github.com/okrause/seriesdash/internal/logger"
	"github.com/okrause/seriesdash/internal/models"
	"github.com/okrause/seriesdash/internal/services/datasets"
	"github.com/okrause/seriesdash/internal/services/metrics"
	"github.com/okrause/seriesdash/internal/services/plugins"
	"github.com/okrause/seriesdash/internal/store"
)

type (
	// DatasetsChangedEvent is emitted when the dataset index changes.
	DatasetsChangedEvent struct {
		Categories map[string][]string
	}

	// MetricUpdatedEvent is emitted when a metric kind has fresh results.
	MetricUpdatedEvent struct {
		Kind   models.Kind
		Status metrics.KindStatus
	}

	// MetricFailedEvent is emitted when a metric kind fails outright.
	MetricFailedEvent struct {
		Kind  models.Kind
		Error error
	}

	// CycleDoneEvent is emitted when every kind of a fetch cycle settled.
	CycleDoneEvent struct{}

	// ResetDoneEvent is emitted after local and remote state were cleared.
	ResetDoneEvent struct{}

	// CorruptDataEvent is emitted when persisted results were corrupt and
	// the wait policy is holding the kind until an explicit retry.
	CorruptDataEvent struct {
		Kind models.Kind
	}

	// ErrorEvent is emitted when an error occurs in any service.
	ErrorEvent struct {
		Service string
		Error   error
	}

	// StatsEvent carries global counters for the status bar.
	StatsEvent struct {
		DatasetCount  int
		CategoryCount int
		KindsEnabled  int
	}
)

// ServiceEvent is the interface implemented by all service events.
type ServiceEvent interface {
	isServiceEvent()
}

func (DatasetsChangedEvent) isServiceEvent() {}
func (MetricUpdatedEvent) isServiceEvent()   {}
func (MetricFailedEvent) isServiceEvent()    {}
func (CycleDoneEvent) isServiceEvent()       {}
func (ResetDoneEvent) isServiceEvent()       {}
func (CorruptDataEvent) isServiceEvent()     {}
func (ErrorEvent) isServiceEvent()           {}
func (StatsEvent) isServiceEvent()           {}

// Manager orchestrates services and event routing.
type Manager struct {
	mu          sync.RWMutex
	store       *store.Store
	client      *client.Client
	datasets    *datasets.Service
	plugins     *plugins.Service
	metrics     *metrics.Service
	window      models.Window
	eventChan   chan ServiceEvent
	stopChan    chan struct{}
	subscribers []chan<- ServiceEvent
}

// NewManager creates a new service manager.
func NewManager(cfg *config.Config) (*Manager, error) {
	m := &Manager{
		eventChan: make(chan ServiceEvent, 100),
		stopChan:  make(chan struct{}),
	}

	var err error
	m.store, err = store.Open(cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	tokens := client.NewTokenManager(m.loadToken())
	tokens.OnChange(m.saveToken)
	m.client = client.New(cfg.APIBaseURL, tokens)

	m.plugins = plugins.New(m.client, m.store, plugins.Config{
		CacheTTL: cfg.PluginCacheTTL,
	})

	m.metrics = metrics.New(m.client, m.plugins, m.store, metrics.Config{
		MaxConcurrent:   cfg.MaxConcurrentKinds,
		PairConcurrency: cfg.PairConcurrency,
		Tolerance:       cfg.ToleranceMinutes,
		CorruptPolicy:   metrics.CorruptPolicy(cfg.CorruptDataPolicy),
	})

	m.datasets, err = datasets.New(cfg.DataDir, m.client, m.store)
	if err != nil {
		_ = m.store.Close()
		return nil, fmt.Errorf("failed to initialize datasets: %w", err)
	}

	go m.routeEvents()

	return m, nil
}

// loadToken reads the persisted session token, empty when absent.
func (m *Manager) loadToken() string {
	var token string
	if ok, err := m.store.Load(store.KeySessionToken, &token); err != nil {
		logger.Warn("failed to load session token", "error", err)
	} else if !ok {
		return ""
	}
	return token
}

// saveToken persists a rotated session token.
func (m *Manager) saveToken(token string) {
	if err := m.store.Save(store.KeySessionToken, token); err != nil {
		logger.Warn("failed to persist session token", "error", err)
	}
}

// routeEvents routes events from individual services to subscribers.
func (m *Manager) routeEvents() {
	for {
		select {
		case event := <-m.datasets.Events():
			m.handleDatasetEvent(event)

		case event := <-m.metrics.Events():
			m.handleMetricEvent(event)

		case <-m.stopChan:
			return
		}
	}
}

// handleDatasetEvent pushes changed data to the service and recomputes.
func (m *Manager) handleDatasetEvent(event datasets.Event) {
	switch event.Type {
	case datasets.EventLoaded, datasets.EventChanged:
		m.broadcast(DatasetsChangedEvent{Categories: m.datasets.Categories()})
		go m.syncAndRefresh()

	case datasets.EventError:
		m.broadcast(ErrorEvent{Service: "datasets", Error: event.Error})
	}
}

// syncAndRefresh uploads the current series and starts a fetch cycle.
func (m *Manager) syncAndRefresh() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if m.datasets.Count() > 0 {
		if err := m.datasets.Upload(ctx); err != nil {
			m.broadcast(ErrorEvent{Service: "datasets", Error: err})
			return
		}
	}

	m.metrics.Refresh(metrics.Input{
		Categories: m.datasets.Categories(),
		Window:     m.Window(),
	})
}

// handleMetricEvent converts and broadcasts metric events.
func (m *Manager) handleMetricEvent(event metrics.Event) {
	switch event.Type {
	case metrics.EventKindLoading:
		if status, ok := m.metrics.Status(event.Kind); ok {
			m.broadcast(MetricUpdatedEvent{Kind: event.Kind, Status: status})
		}

	case metrics.EventKindUpdated:
		if status, ok := m.metrics.Status(event.Kind); ok {
			m.broadcast(MetricUpdatedEvent{Kind: event.Kind, Status: status})
		}

	case metrics.EventKindFailed:
		m.broadcast(MetricFailedEvent{Kind: event.Kind, Error: event.Error})
		m.notifyFailure(event.Kind, event.Error)

	case metrics.EventCycleDone:
		m.broadcast(CycleDoneEvent{})

	case metrics.EventResetDone:
		m.broadcast(ResetDoneEvent{})

	case metrics.EventCorruptData:
		m.broadcast(CorruptDataEvent{Kind: event.Kind})
	}
}

// notifyFailure raises a desktop notification for a discarded metric kind.
func (m *Manager) notifyFailure(kind models.Kind, err error) {
	if rec, ok := client.AsRecord(err); !ok || rec.Kind != client.ErrTotalFailure {
		return
	}

	info, ok := models.KindByID(kind)
	if !ok {
		return
	}
	title := fmt.Sprintf("Metric failed: %s", info.Label)
	body := "Too many computations failed; the result was discarded."
	_ = beeep.Notify(title, body, "")
}

// broadcast sends an event to all subscribers.
func (m *Manager) broadcast(event ServiceEvent) {
	// Send to main event channel
	select {
	case m.eventChan <- event:
	default:
	}

	// Send to subscribers
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, sub := range m.subscribers {
		select {
		case sub <- event:
		default:
			// Subscriber channel full, skip
		}
	}
}

// Subscribe creates a channel for receiving service events.
// Returns a tea.Cmd that can be used in Bubble Tea's Init or Update.
func (m *Manager) Subscribe() (chan ServiceEvent, tea.Cmd) {
	ch := make(chan ServiceEvent, 50)

	m.mu.Lock()
	m.subscribers = append(m.subscribers, ch)
	m.mu.Unlock()

	return ch, waitForEvent(ch)
}

// waitForEvent returns a tea.Cmd that waits for the next event.
func waitForEvent(ch <-chan ServiceEvent) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}

// WaitForEvent returns a tea.Cmd for the next event on a channel.
func WaitForEvent(ch <-chan ServiceEvent) tea.Cmd {
	return waitForEvent(ch)
}

// Unsubscribe removes a subscriber channel.
func (m *Manager) Unsubscribe(ch chan ServiceEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, sub := range m.subscribers {
		if sub == ch {
			m.subscribers = append(m.subscribers[:i], m.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

// Window returns the current analysis time window.
func (m *Manager) Window() models.Window {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.window
}

// SetWindow updates the analysis time window and recomputes against it.
func (m *Manager) SetWindow(window models.Window) {
	m.mu.Lock()
	m.window = window
	m.mu.Unlock()

	m.metrics.Refresh(metrics.Input{
		Categories: m.datasets.Categories(),
		Window:     window,
	})
}

// RollingMean returns the windowed moving average of one uploaded series,
// for chart overlays.
func (m *Manager) RollingMean(ctx context.Context, category, file, windowSize string) (map[string]float64, error) {
	return m.client.RollingMean(ctx, category, file, windowSize)
}

// Difference returns the nearest-timestamp difference series of two files.
func (m *Manager) Difference(ctx context.Context, category, file1, file2 string) (map[string]float64, error) {
	return m.client.Difference(ctx, category, file1, file2, 0)
}

// AddPlugin validates, stores and enables a new plugin metric.
func (m *Manager) AddPlugin(ctx context.Context, name, code string) error {
	plugin, err := m.plugins.Add(ctx, name, code)
	if err != nil {
		return err
	}

	m.metrics.AddPluginKind(plugin.Kind())
	m.metrics.Retry(plugin.Kind())
	return nil
}

// RemovePlugin deletes a plugin definition.
func (m *Manager) RemovePlugin(name string) bool {
	return m.plugins.Remove(name)
}

// Reset clears all computed and uploaded state, locally and remotely.
func (m *Manager) Reset(ctx context.Context) error {
	return m.metrics.Reset(ctx)
}

// RetryFailed re-issues the metric kinds currently in the failed state.
func (m *Manager) RetryFailed() {
	m.metrics.RetryFailed()
}

// GetStats returns aggregated counters.
func (m *Manager) GetStats() StatsEvent {
	categories := m.datasets.Categories()

	enabled := 0
	sel := m.metrics.Selection()
	for _, info := range models.Kinds() {
		if sel.Enabled(info.ID) {
			enabled++
		}
	}
	for _, p := range m.plugins.Plugins() {
		if sel.Enabled(p.Kind()) {
			enabled++
		}
	}

	return StatsEvent{
		DatasetCount:  m.datasets.Count(),
		CategoryCount: len(categories),
		KindsEnabled:  enabled,
	}
}

// Datasets returns the datasets service.
func (m *Manager) Datasets() *datasets.Service {
	return m.datasets
}

// Plugins returns the plugins service.
func (m *Manager) Plugins() *plugins.Service {
	return m.plugins
}

// Metrics returns the metrics service.
func (m *Manager) Metrics() *metrics.Service {
	return m.metrics
}

// Store returns the persistence layer for direct access.
func (m *Manager) Store() *store.Store {
	return m.store
}

// Close closes the manager and all its services.
func (m *Manager) Close() error {
	close(m.stopChan)

	m.mu.Lock()
	for _, sub := range m.subscribers {
		close(sub)
	}
	m.subscribers = nil
	m.mu.Unlock()

	var errs []error

	if m.datasets != nil {
		if err := m.datasets.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if m.metrics != nil {
		if err := m.metrics.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if m.store != nil {
		if err := m.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// InitialState returns the current statuses and stats for TUI initialization.
func (m *Manager) InitialState() (map[models.Kind]metrics.KindStatus, StatsEvent) {
	return m.metrics.Statuses(), m.GetStats()
}
