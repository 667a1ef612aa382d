package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okrause/seriesdash/internal/client"
	"github.com/okrause/seriesdash/internal/logger"
	"github.com/okrause/seriesdash/internal/models"
	"github.com/okrause/seriesdash/internal/store"
)

// State is the lifecycle of one metric kind within a fetch cycle.
type State int

const (
	// StateIdle means the kind has not been computed for the current input.
	StateIdle State = iota
	// StateLoading means calls for the kind are in flight.
	StateLoading
	// StateSuccess means every pair/file computed.
	StateSuccess
	// StatePartial means some pairs/files failed below the abort threshold.
	StatePartial
	// StateFailed means the kind crossed the threshold or failed outright.
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateSuccess:
		return "success"
	case StatePartial:
		return "partial"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// KindStatus is the orchestrator's view of one metric kind.
type KindStatus struct {
	Info        models.KindInfo
	State       State
	Err         *client.ErrorRecord
	FailedCalls int
	Matrices    models.CategoryMatrices
	Stats       models.CategoryStats
	UpdatedAt   time.Time
}

// EventType defines the type of metrics event.
type EventType int

const (
	// EventKindLoading indicates a kind entered the loading state.
	EventKindLoading EventType = iota
	// EventKindUpdated indicates a kind finished with usable results.
	EventKindUpdated
	// EventKindFailed indicates a kind finished in the failed state.
	EventKindFailed
	// EventCycleDone indicates every kind of the cycle has settled.
	EventCycleDone
	// EventResetDone indicates local and remote state were cleared.
	EventResetDone
	// EventCorruptData indicates a persisted result was corrupt and, under
	// the wait policy, is waiting for an explicit user action.
	EventCorruptData
)

// Event is emitted on the service's event channel.
type Event struct {
	Type  EventType
	Kind  models.Kind
	Error error
}

// CorruptPolicy decides what happens when persisted results turn out
// corrupt on load: recompute immediately, or wait for the user.
type CorruptPolicy string

const (
	// CorruptRefetch recomputes a corrupt kind as soon as input is known.
	CorruptRefetch CorruptPolicy = "refetch"
	// CorruptWait drops the corrupt data and waits for an explicit retry.
	CorruptWait CorruptPolicy = "wait"
)

// Config holds configuration for the metrics orchestrator.
type Config struct {
	MaxConcurrent   int // metric kinds fetched at once
	PairConcurrency int // pair calls in flight within one matrix
	Tolerance       int // time-alignment tolerance in minutes
	CorruptPolicy   CorruptPolicy
}

// DefaultConfig returns the default configuration. PairConcurrency stays at
// 1: within a matrix, calls go out one at a time to keep load on the shared
// rate limit predictable.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent:   3,
		PairConcurrency: 1,
		Tolerance:       30,
		CorruptPolicy:   CorruptRefetch,
	}
}

// PluginRunner executes user-defined plugin metrics (with caching).
type PluginRunner interface {
	Plugins() []models.Plugin
	Run(ctx context.Context, p models.Plugin, category string, files []string, window models.Window) (map[string]map[string]float64, error)
}

// Input is what a fetch cycle is computed over.
type Input struct {
	Categories map[string][]string
	Window     models.Window
}

// persistedResult is the stored shape of one kind's results.
type persistedResult struct {
	Matrices  models.CategoryMatrices `json:"matrices,omitempty"`
	Stats     models.CategoryStats    `json:"stats,omitempty"`
	UpdatedAt time.Time               `json:"updatedAt"`
}

// Service coordinates concurrent per-kind fetches, tracks kind states,
// owns the metric selection, and mirrors results into the store.
type Service struct {
	caller  MetricCaller
	plugins PluginRunner
	store   *store.Store
	config  Config

	eventChan chan Event

	mu          sync.RWMutex
	statuses    map[models.Kind]*KindStatus
	selection   models.Selection
	lastInput   *Input
	cycleID     string
	cancelCycle context.CancelFunc
}

// New creates the orchestrator and rehydrates persisted selection, input
// and results. plugins and st may be nil (plugins disabled, no
// persistence).
func New(caller MetricCaller, plugins PluginRunner, st *store.Store, config Config) *Service {
	if config.MaxConcurrent == 0 {
		config = DefaultConfig()
	}

	s := &Service{
		caller:    caller,
		plugins:   plugins,
		store:     st,
		config:    config,
		eventChan: make(chan Event, 100),
		statuses:  make(map[models.Kind]*KindStatus),
	}

	s.rehydrate()
	return s
}

// Events returns the event channel.
func (s *Service) Events() <-chan Event {
	return s.eventChan
}

// rehydrate loads selection, last input and per-kind results from the
// store, applying the corrupt-data policy where decoding fails.
func (s *Service) rehydrate() {
	if s.store == nil {
		return
	}

	var sel models.Selection
	if ok, err := s.store.Load(store.KeySelection, &sel); err != nil {
		logger.Warn("failed to load metric selection", "error", err)
	} else if ok {
		s.selection = sel
	}

	var index map[string][]string
	if ok, err := s.store.Load(store.KeyCategories, &index); err != nil {
		logger.Warn("failed to load category index", "error", err)
	} else if ok {
		s.lastInput = &Input{Categories: index}
	}

	var corrupt []models.Kind
	for _, info := range s.allKinds() {
		raw, found, err := s.store.LoadRaw(store.ResultKey(string(info.ID)))
		if err != nil {
			logger.Warn("failed to load persisted results", "kind", info.ID, "error", err)
			continue
		}
		if !found {
			continue
		}

		var saved persistedResult
		if err := json.Unmarshal([]byte(raw), &saved); err != nil {
			logger.Warn("corrupt persisted results, removing", "kind", info.ID, "error", err)
			if remErr := s.store.Remove(store.ResultKey(string(info.ID))); remErr != nil {
				logger.Warn("failed to remove corrupt results", "kind", info.ID, "error", remErr)
			}
			corrupt = append(corrupt, info.ID)
			continue
		}

		s.statuses[info.ID] = &KindStatus{
			Info:      info,
			State:     StateSuccess,
			Matrices:  saved.Matrices,
			Stats:     saved.Stats,
			UpdatedAt: saved.UpdatedAt,
		}
	}

	if len(corrupt) == 0 {
		return
	}

	switch s.config.CorruptPolicy {
	case CorruptRefetch:
		if s.lastInput != nil {
			only := make(map[models.Kind]bool, len(corrupt))
			for _, k := range corrupt {
				only[k] = true
			}
			s.startCycleLocked(*s.lastInput, only)
		}
	default:
		for _, k := range corrupt {
			s.sendEvent(Event{Type: EventCorruptData, Kind: k})
		}
	}
}

// allKinds returns the built-in registry plus any defined plugin kinds.
func (s *Service) allKinds() []models.KindInfo {
	out := models.Kinds()
	if s.plugins != nil {
		for _, p := range s.plugins.Plugins() {
			out = append(out, models.PluginKind(p.Name))
		}
	}
	return out
}

// activeKinds filters allKinds through the current selection.
func (s *Service) activeKinds() []models.KindInfo {
	var out []models.KindInfo
	for _, info := range s.allKinds() {
		if s.selection.Enabled(info.ID) {
			out = append(out, info)
		}
	}
	return out
}

// Selection returns the current metric selection (nil = defaults).
func (s *Service) Selection() models.Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append(models.Selection(nil), s.selection...)
}

// SetSelection replaces the metric selection and persists it. Passing nil
// restores the defaults (and removes the persisted key). Newly enabled
// kinds are computed against the last input.
func (s *Service) SetSelection(sel models.Selection) {
	s.mu.Lock()
	s.selection = sel
	if s.store != nil {
		if sel == nil {
			if err := s.store.Remove(store.KeySelection); err != nil {
				logger.Warn("failed to clear metric selection", "error", err)
			}
		} else if err := s.store.Save(store.KeySelection, sel); err != nil {
			logger.Warn("failed to save metric selection", "error", err)
		}
	}
	input := s.lastInput
	if input != nil {
		s.startCycleLocked(*input, nil)
	}
	s.mu.Unlock()
}

// AddPluginKind makes a newly defined plugin visible: an explicit selection
// gains the kind automatically, the default selection already includes it.
func (s *Service) AddPluginKind(kind models.Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.selection = s.selection.WithPlugin(kind)
	if s.store != nil && s.selection != nil {
		if err := s.store.Save(store.KeySelection, s.selection); err != nil {
			logger.Warn("failed to save metric selection", "error", err)
		}
	}
}

// Status returns a copy of one kind's status.
func (s *Service) Status(kind models.Kind) (KindStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.statuses[kind]
	if !ok {
		return KindStatus{}, false
	}
	return *st, true
}

// Statuses returns a copy of all kind statuses.
func (s *Service) Statuses() map[models.Kind]KindStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[models.Kind]KindStatus, len(s.statuses))
	for k, st := range s.statuses {
		out[k] = *st
	}
	return out
}

// Refresh starts a fetch cycle for the given input across all enabled
// kinds. A structurally unchanged input with no kind left idle or failed
// is suppressed (e.g. a UI tab switch must not refetch). Returns whether a
// cycle started.
func (s *Service) Refresh(input Input) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastInput != nil && reflect.DeepEqual(*s.lastInput, input) && !s.anyUnsettledLocked() {
		logger.Debug("input unchanged, skipping refetch")
		return false
	}

	s.startCycleLocked(input, nil)
	return true
}

// anyUnsettledLocked reports whether some enabled kind still needs work.
func (s *Service) anyUnsettledLocked() bool {
	for _, info := range s.activeKinds() {
		st, ok := s.statuses[info.ID]
		if !ok || st.State == StateIdle || st.State == StateFailed {
			return true
		}
	}
	return false
}

// Retry recomputes exactly one kind against the last input.
func (s *Service) Retry(kind models.Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastInput == nil {
		return
	}
	s.startCycleLocked(*s.lastInput, map[models.Kind]bool{kind: true})
}

// RetryFailed re-issues exactly the kinds currently in the failed state.
func (s *Service) RetryFailed() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastInput == nil {
		return
	}

	only := make(map[models.Kind]bool)
	for kind, st := range s.statuses {
		if st.State == StateFailed {
			only[kind] = true
		}
	}
	if len(only) == 0 {
		return
	}
	s.startCycleLocked(*s.lastInput, only)
}

// startCycleLocked cancels any in-flight cycle and launches a new one.
// Caller holds s.mu. When only is non-nil, the cycle is restricted to
// those kinds (retry paths).
func (s *Service) startCycleLocked(input Input, only map[models.Kind]bool) {
	if s.cancelCycle != nil {
		s.cancelCycle()
	}

	ctx, cancel := context.WithCancel(context.Background())
	cycleID := uuid.NewString()
	s.cycleID = cycleID
	s.cancelCycle = cancel
	s.lastInput = &input

	var kinds []models.KindInfo
	for _, info := range s.activeKinds() {
		if only != nil && !only[info.ID] {
			continue
		}
		kinds = append(kinds, info)
	}

	for _, info := range kinds {
		st, ok := s.statuses[info.ID]
		if !ok {
			st = &KindStatus{Info: info}
			s.statuses[info.ID] = st
		}
		st.State = StateLoading
		st.Err = nil
		s.sendEvent(Event{Type: EventKindLoading, Kind: info.ID})
	}

	go s.runCycle(ctx, cycleID, input, kinds)
}

// runCycle fans the cycle's kinds out over a bounded pool. Kinds are
// independent and fetched concurrently; categories within a kind run
// sequentially.
func (s *Service) runCycle(ctx context.Context, cycleID string, input Input, kinds []models.KindInfo) {
	sem := make(chan struct{}, s.config.MaxConcurrent)
	var wg sync.WaitGroup

	for _, info := range kinds {
		wg.Add(1)
		go func(info models.KindInfo) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			s.runKind(ctx, cycleID, info, input)
		}(info)
	}

	wg.Wait()

	s.mu.RLock()
	current := s.cycleID == cycleID
	s.mu.RUnlock()
	if current {
		s.sendEvent(Event{Type: EventCycleDone})
	}
}

// runKind computes one kind across every category and commits the outcome
// unless the cycle was superseded while it ran.
func (s *Service) runKind(ctx context.Context, cycleID string, info models.KindInfo, input Input) {
	categories := make([]string, 0, len(input.Categories))
	for c := range input.Categories {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	matrices := make(models.CategoryMatrices)
	stats := make(models.CategoryStats)
	failedCalls := 0
	failedCategories := 0
	var lastErr *client.ErrorRecord

	for _, category := range categories {
		if ctx.Err() != nil {
			return
		}
		files := input.Categories[category]

		req := MatrixRequest{
			Kind:        info,
			Category:    category,
			Files:       files,
			Window:      input.Window,
			Tolerance:   s.config.Tolerance,
			Concurrency: s.config.PairConcurrency,
		}

		switch info.Family {
		case models.FamilyStatistic:
			result, failed, err := FetchStats(ctx, s.caller, req)
			failedCalls += failed
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				failedCategories++
				lastErr = asRecordOrWrap(err)
				continue
			}
			stats[category] = result

		case models.FamilyPlugin:
			matrix, err := s.runPluginCategory(ctx, info, category, files, input.Window)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				failedCategories++
				lastErr = asRecordOrWrap(err)
				continue
			}
			matrices[category] = matrix

		default:
			matrix, failed, err := FetchMatrix(ctx, s.caller, req)
			failedCalls += failed
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				failedCategories++
				lastErr = asRecordOrWrap(err)
				continue
			}
			matrices[category] = matrix
		}
	}

	state := StateSuccess
	switch {
	case len(categories) > 0 && failedCategories == len(categories):
		state = StateFailed
	case failedCategories > 0 || failedCalls > 0:
		state = StatePartial
	}

	s.commit(cycleID, info, state, lastErr, failedCalls, matrices, stats)
}

// runPluginCategory executes a plugin over one category, shaping the
// server's result map into a matrix.
func (s *Service) runPluginCategory(ctx context.Context, info models.KindInfo, category string, files []string, window models.Window) (*models.Matrix, error) {
	if s.plugins == nil {
		return nil, fmt.Errorf("no plugin runner configured")
	}

	name, _ := models.PluginName(info.ID)
	var plugin *models.Plugin
	for _, p := range s.plugins.Plugins() {
		if p.Name == name {
			plugin = &p
			break
		}
	}
	if plugin == nil {
		return nil, fmt.Errorf("plugin %q no longer defined", name)
	}

	results, err := s.plugins.Run(ctx, *plugin, category, files, window)
	if err != nil {
		return nil, err
	}

	matrix := models.NewMatrix(files, models.FamilyPlugin)
	for f1, row := range results {
		for f2, v := range row {
			if matrix.Cells[f1] == nil {
				matrix.Cells[f1] = make(map[string]float64)
			}
			matrix.Cells[f1][f2] = v
		}
	}
	return matrix, nil
}

// commit writes a kind's outcome, dropping it when the cycle was
// superseded so a slow response can never clobber fresher results.
func (s *Service) commit(cycleID string, info models.KindInfo, state State, rec *client.ErrorRecord, failedCalls int, matrices models.CategoryMatrices, stats models.CategoryStats) {
	s.mu.Lock()

	if s.cycleID != cycleID {
		s.mu.Unlock()
		logger.Debug("dropping stale result", "kind", info.ID)
		return
	}

	st, ok := s.statuses[info.ID]
	if !ok {
		st = &KindStatus{Info: info}
		s.statuses[info.ID] = st
	}
	st.State = state
	st.Err = rec
	st.FailedCalls = failedCalls
	st.UpdatedAt = time.Now()
	if state != StateFailed {
		st.Matrices = matrices
		st.Stats = stats
	}

	if s.store != nil && state != StateFailed {
		saved := persistedResult{Matrices: matrices, Stats: stats, UpdatedAt: st.UpdatedAt}
		if err := s.store.Save(store.ResultKey(string(info.ID)), saved); err != nil {
			logger.Warn("failed to persist results", "kind", info.ID, "error", err)
		}
	}
	s.mu.Unlock()

	if state == StateFailed {
		s.sendEvent(Event{Type: EventKindFailed, Kind: info.ID, Error: rec})
		return
	}
	s.sendEvent(Event{Type: EventKindUpdated, Kind: info.ID})
}

// Reset discards every computed result and selection locally, asks the
// service to drop its server-side series state, and leaves identity and
// plugin definitions intact.
func (s *Service) Reset(ctx context.Context) error {
	s.mu.Lock()
	if s.cancelCycle != nil {
		s.cancelCycle()
		s.cancelCycle = nil
	}
	s.cycleID = ""
	s.lastInput = nil
	s.selection = nil
	s.statuses = make(map[models.Kind]*KindStatus)
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.Reset(); err != nil {
			return fmt.Errorf("failed to clear local state: %w", err)
		}
	}

	if err := s.caller.ClearRemote(ctx); err != nil {
		return fmt.Errorf("failed to clear remote state: %w", err)
	}

	s.sendEvent(Event{Type: EventResetDone})
	return nil
}

// sendEvent sends an event to the event channel non-blocking.
func (s *Service) sendEvent(event Event) {
	select {
	case s.eventChan <- event:
	default:
		// Channel full, drop oldest
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

// Close cancels any in-flight cycle.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancelCycle != nil {
		s.cancelCycle()
		s.cancelCycle = nil
	}
	return nil
}

// asRecordOrWrap normalizes an error into an ErrorRecord.
func asRecordOrWrap(err error) *client.ErrorRecord {
	if rec, ok := client.AsRecord(err); ok {
		return rec
	}
	return &client.ErrorRecord{Kind: client.ErrUnknown, Message: err.Error()}
}
