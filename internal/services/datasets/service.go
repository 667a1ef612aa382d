// Package datasets watches a local data directory of time-series files,
// parses them, maintains the category index driving metric computation and
// pushes the series to the remote service.
package datasets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/okrause/seriesdash/internal/client"
	"github.com/okrause/seriesdash/internal/logger"
	"github.com/okrause/seriesdash/internal/store"
)

// EventType defines the type of dataset event.
type EventType int

const (
	// EventLoaded indicates the initial directory scan finished.
	EventLoaded EventType = iota
	// EventChanged indicates the directory contents changed on disk.
	EventChanged
	// EventUploaded indicates the series were pushed to the service.
	EventUploaded
	// EventError indicates a scan, parse or upload failure.
	EventError
)

// Event is emitted on the service's event channel.
type Event struct {
	Type  EventType
	Error error
}

// Uploader pushes parsed series to the remote service.
type Uploader interface {
	Upload(ctx context.Context, payload client.UploadPayload) error
}

// Service watches the data directory and owns the parsed series.
type Service struct {
	dir      string
	uploader Uploader
	store    *store.Store

	mu         sync.RWMutex
	series     map[string]Series   // file name -> series
	categories map[string][]string // category -> sorted file names

	watcher       *fsnotify.Watcher
	eventChan     chan Event
	stopChan      chan struct{}
	debounceTimer *time.Timer
}

// New creates the service, scans dir once and starts watching it. uploader
// and st may be nil (no remote push, no persistence).
func New(dir string, uploader Uploader, st *store.Store) (*Service, error) {
	if dir == "" {
		return nil, fmt.Errorf("data directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	s := &Service{
		dir:       dir,
		uploader:  uploader,
		store:     st,
		series:    make(map[string]Series),
		eventChan: make(chan Event, 100),
		stopChan:  make(chan struct{}),
	}

	if err := s.scan(); err != nil {
		return nil, err
	}

	if err := s.startWatcher(); err != nil {
		return nil, fmt.Errorf("failed to start file watcher: %w", err)
	}

	s.sendEvent(Event{Type: EventLoaded})
	return s, nil
}

// Events returns the event channel for subscribing to dataset changes.
func (s *Service) Events() <-chan Event {
	return s.eventChan
}

// Categories returns the category -> file names index, file lists sorted.
func (s *Service) Categories() map[string][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]string, len(s.categories))
	for c, files := range s.categories {
		out[c] = append([]string(nil), files...)
	}
	return out
}

// Get returns the parsed series for a file name.
func (s *Service) Get(file string) (Series, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	series, ok := s.series[file]
	if !ok {
		return nil, false
	}
	out := make(Series, len(series))
	for ts, v := range series {
		out[ts] = v
	}
	return out, true
}

// Count returns the number of loaded dataset files.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.series)
}

// Upload pushes every loaded series to the remote service as one payload
// keyed timestamp -> category -> file -> value.
func (s *Service) Upload(ctx context.Context) error {
	if s.uploader == nil {
		return fmt.Errorf("no uploader configured")
	}

	s.mu.RLock()
	payload := make(client.UploadPayload)
	for category, files := range s.categories {
		for _, file := range files {
			series, ok := s.series[file]
			if !ok {
				continue
			}
			for ts, v := range series {
				if payload[ts] == nil {
					payload[ts] = make(map[string]map[string]float64)
				}
				if payload[ts][category] == nil {
					payload[ts][category] = make(map[string]float64)
				}
				payload[ts][category][file] = v
			}
		}
	}
	s.mu.RUnlock()

	if err := s.uploader.Upload(ctx, payload); err != nil {
		s.sendEvent(Event{Type: EventError, Error: err})
		return err
	}

	s.sendEvent(Event{Type: EventUploaded})
	return nil
}

// scan reads every dataset file in the directory, replacing the in-memory
// state and the persisted index. Unparseable files are skipped with a
// warning so one broken file cannot hide the rest.
func (s *Service) scan() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("failed to read data directory: %w", err)
	}

	series := make(map[string]Series)
	categories := make(map[string][]string)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		category, file, ok := splitName(entry.Name())
		if !ok {
			logger.Debug("skipping file without category prefix", "file", entry.Name())
			continue
		}

		parsed, err := parseFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			logger.Warn("skipping unparseable dataset", "file", entry.Name(), "error", err)
			continue
		}

		series[file] = parsed
		categories[category] = append(categories[category], file)
	}

	for c := range categories {
		sort.Strings(categories[c])
	}

	s.mu.Lock()
	s.series = series
	s.categories = categories
	s.mu.Unlock()

	s.persistIndex()
	return nil
}

// persistIndex mirrors the category index and raw series into the store so
// a restart can rehydrate results without rescanning remote state.
func (s *Service) persistIndex() {
	if s.store == nil {
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.store.Save(store.KeyCategories, s.categories); err != nil {
		logger.Warn("failed to persist category index", "error", err)
	}
	if err := s.store.Save(store.KeyTimeseries, s.series); err != nil {
		logger.Warn("failed to persist series data", "error", err)
	}
}

// startWatcher starts the file system watcher on the data directory.
func (s *Service) startWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	s.watcher = watcher

	if err := watcher.Add(s.dir); err != nil {
		if closeErr := watcher.Close(); closeErr != nil {
			logger.Error("failed to close watcher", "error", closeErr)
		}
		return err
	}

	go s.watchLoop()
	return nil
}

// watchLoop handles file system events with debouncing.
func (s *Service) watchLoop() {
	const debounceInterval = 200 * time.Millisecond

	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}

			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			if s.debounceTimer != nil {
				s.debounceTimer.Stop()
			}
			s.debounceTimer = time.AfterFunc(debounceInterval, s.handleDirChange)

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.sendEvent(Event{Type: EventError, Error: err})

		case <-s.stopChan:
			return
		}
	}
}

// handleDirChange rescans the directory after an external change settles.
func (s *Service) handleDirChange() {
	if err := s.scan(); err != nil {
		s.sendEvent(Event{Type: EventError, Error: err})
		return
	}
	s.sendEvent(Event{Type: EventChanged})
}

// sendEvent sends an event to the event channel non-blocking.
func (s *Service) sendEvent(event Event) {
	select {
	case s.eventChan <- event:
	default:
		// Channel full, drop oldest event
		select {
		case <-s.eventChan:
		default:
		}
		select {
		case s.eventChan <- event:
		default:
		}
	}
}

// Close stops the file watcher and cleans up resources.
func (s *Service) Close() error {
	close(s.stopChan)

	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
	}

	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}
