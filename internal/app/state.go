// Package app provides the main Bubble Tea application model and state management.
package app

import (
	"sort"
	"sync"
	"time"

	"github.com/okrause/seriesdash/internal/models"
	"github.com/okrause/seriesdash/internal/services"
	"github.com/okrause/seriesdash/internal/services/metrics"
)

// NotificationType defines the type of notification.
type NotificationType int

const (
	// NotificationSuccess represents a success notification.
	NotificationSuccess NotificationType = iota
	// NotificationError represents an error notification.
	NotificationError
	// NotificationWarning represents a warning notification.
	NotificationWarning
	// NotificationInfo represents an informational notification.
	NotificationInfo
	// NotificationLoading represents a loading notification with spinner.
	NotificationLoading
)

const (
	// LoadingNotificationID is the fixed ID for loading notifications.
	LoadingNotificationID = "__loading__"
)

// String returns the string representation of a NotificationType.
func (n NotificationType) String() string {
	switch n {
	case NotificationSuccess:
		return "success"
	case NotificationError:
		return "error"
	case NotificationWarning:
		return "warning"
	case NotificationInfo:
		return "info"
	default:
		return "unknown"
	}
}

// Notification represents a user-facing notification message.
type Notification struct {
	ID        string
	Type      NotificationType
	Message   string
	CreatedAt time.Time
	Duration  time.Duration
}

// IsExpired returns true if the notification has expired.
func (n *Notification) IsExpired() bool {
	if n.Duration <= 0 {
		return false
	}
	return time.Since(n.CreatedAt) > n.Duration
}

// LoadingState tracks loading states for different resources.
type LoadingState struct {
	Initial bool
	Metrics bool
	Upload  bool
}

// State is the UI-facing snapshot of datasets, metric results and stats,
// shared between tabs.
type State struct {
	mu sync.RWMutex

	categories map[string][]string
	statuses   map[models.Kind]metrics.KindStatus
	stats      *services.StatsEvent

	SelectedCategory string

	Loading LoadingState

	LastUpdated time.Time

	notifications   []Notification
	notificationSeq int
}

// NewState returns an empty state in the initial-loading phase.
func NewState() *State {
	return &State{
		categories:    make(map[string][]string),
		statuses:      make(map[models.Kind]metrics.KindStatus),
		notifications: make([]Notification, 0),
		Loading: LoadingState{
			Initial: true,
		},
	}
}

// SetLoading sets the loading state for a specific resource.
func (s *State) SetLoading(resource string, loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch resource {
	case "initial":
		s.Loading.Initial = loading
	case "metrics":
		s.Loading.Metrics = loading
	case "upload":
		s.Loading.Upload = loading
	}
}

// AnyLoading returns true if any resource is currently loading.
func (s *State) AnyLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.Loading.Initial || s.Loading.Metrics || s.Loading.Upload
}

// IsInitialLoading returns true if initial data is still loading.
func (s *State) IsInitialLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Loading.Initial
}

// SetCategories replaces the dataset index.
func (s *State) SetCategories(categories map[string][]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.categories = categories
	s.LastUpdated = time.Now()

	if _, ok := categories[s.SelectedCategory]; !ok {
		s.SelectedCategory = ""
		for _, c := range sortedKeys(categories) {
			s.SelectedCategory = c
			break
		}
	}
}

// Categories returns the sorted category names.
func (s *State) Categories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.categories)
}

// Files returns the sorted file list for a category.
func (s *State) Files(category string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.categories[category]...)
}

// SetStatus stores one metric kind's status.
func (s *State) SetStatus(kind models.Kind, status metrics.KindStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[kind] = status
	s.LastUpdated = time.Now()
}

// SetStatuses replaces all metric statuses.
func (s *State) SetStatuses(statuses map[models.Kind]metrics.KindStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = statuses
	s.LastUpdated = time.Now()
}

// Status returns one metric kind's status.
func (s *State) Status(kind models.Kind) (metrics.KindStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status, ok := s.statuses[kind]
	return status, ok
}

// Statuses returns a copy of all metric statuses.
func (s *State) Statuses() map[models.Kind]metrics.KindStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[models.Kind]metrics.KindStatus, len(s.statuses))
	for k, v := range s.statuses {
		out[k] = v
	}
	return out
}

// ClearStatuses drops all metric statuses (after a reset).
func (s *State) ClearStatuses() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = make(map[models.Kind]metrics.KindStatus)
}

// AnyKindLoading reports whether any metric kind is still being fetched.
func (s *State) AnyKindLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, status := range s.statuses {
		if status.State == metrics.StateLoading {
			return true
		}
	}
	return false
}

// SetStats updates the statistics.
func (s *State) SetStats(stats services.StatsEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = &stats
}

// GetStats returns the current statistics.
func (s *State) GetStats() *services.StatsEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// AddNotification adds a new notification and returns its ID.
func (s *State) AddNotification(notifType NotificationType, message string, duration time.Duration) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.notificationSeq++
	id := time.Now().Format("20060102150405") + "-" + string(rune('A'+s.notificationSeq%26))

	notification := Notification{
		ID:        id,
		Type:      notifType,
		Message:   message,
		CreatedAt: time.Now(),
		Duration:  duration,
	}

	s.notifications = append(s.notifications, notification)

	// Keep only the last 10 notifications
	if len(s.notifications) > 10 {
		s.notifications = s.notifications[len(s.notifications)-10:]
	}

	return id
}

// RemoveNotification removes a notification by ID.
func (s *State) RemoveNotification(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, n := range s.notifications {
		if n.ID == id {
			s.notifications = append(s.notifications[:i], s.notifications[i+1:]...)
			return
		}
	}
}

// ClearExpiredNotifications removes all expired notifications.
func (s *State) ClearExpiredNotifications() {
	s.mu.Lock()
	defer s.mu.Unlock()

	active := make([]Notification, 0, len(s.notifications))
	for _, n := range s.notifications {
		if !n.IsExpired() {
			active = append(active, n)
		}
	}
	s.notifications = active
}

// GetNotifications returns a copy of all active notifications.
func (s *State) GetNotifications() []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()

	active := make([]Notification, 0, len(s.notifications))
	for _, n := range s.notifications {
		if !n.IsExpired() {
			active = append(active, n)
		}
	}

	return active
}

// ClearAllNotifications removes all notifications.
func (s *State) ClearAllNotifications() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = make([]Notification, 0)
}

// SetLoadingNotification sets a loading notification message.
func (s *State) SetLoadingNotification(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, n := range s.notifications {
		if n.ID == LoadingNotificationID {
			s.notifications[i].Message = message
			return
		}
	}

	s.notifications = append(s.notifications, Notification{
		ID:        LoadingNotificationID,
		Type:      NotificationLoading,
		Message:   message,
		CreatedAt: time.Now(),
		Duration:  0,
	})
}

// ClearLoadingNotification removes the loading notification.
func (s *State) ClearLoadingNotification() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, n := range s.notifications {
		if n.ID == LoadingNotificationID {
			s.notifications = append(s.notifications[:i], s.notifications[i+1:]...)
			return
		}
	}
}

// GetLastUpdated returns the last time the state was updated.
func (s *State) GetLastUpdated() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.LastUpdated
}

// TimeSinceUpdate returns the duration since the last update.
func (s *State) TimeSinceUpdate() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.LastUpdated.IsZero() {
		return 0
	}
	return time.Since(s.LastUpdated)
}

// SelectCategory moves the category selection.
func (s *State) SelectCategory(category string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[category]; ok {
		s.SelectedCategory = category
	}
}

// GetSelectedCategory returns the selected category name.
func (s *State) GetSelectedCategory() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.SelectedCategory
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
