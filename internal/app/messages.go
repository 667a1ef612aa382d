package app

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/okrause/seriesdash/internal/models"
	"github.com/okrause/seriesdash/internal/services"
	"github.com/okrause/seriesdash/internal/services/metrics"
)

// TickMsg is sent periodically to trigger state refresh.
type TickMsg struct {
	Time time.Time
}

// StartLoadingMsg signals that a resource is starting to load.
type StartLoadingMsg struct {
	Resource string
}

// StopLoadingMsg signals that a resource has finished loading.
type StopLoadingMsg struct {
	Resource string
}

// MetricsLoadedMsg contains the full metric status snapshot.
type MetricsLoadedMsg struct {
	Statuses map[models.Kind]metrics.KindStatus
	Stats    services.StatsEvent
}

// StatsLoadedMsg contains loaded statistics.
type StatsLoadedMsg struct {
	Stats services.StatsEvent
}

// ResetResultMsg contains the result of a full reset.
type ResetResultMsg struct {
	Error error
}

// PluginAddedMsg contains the result of defining a plugin.
type PluginAddedMsg struct {
	Name  string
	Error error
}

// RetryKindMsg requests recomputation of one metric kind.
type RetryKindMsg struct {
	Kind models.Kind
}

// AddNotificationMsg requests adding a new notification.
type AddNotificationMsg struct {
	Type     NotificationType
	Message  string
	Duration time.Duration
}

// RemoveNotificationMsg requests removal of a notification.
type RemoveNotificationMsg struct {
	ID string
}

// ClearNotificationsMsg requests clearing all notifications.
type ClearNotificationsMsg struct{}

// ServiceEventMsg wraps a service event from the service manager.
type ServiceEventMsg struct {
	Event services.ServiceEvent
}

// ErrorMsg represents a general error.
type ErrorMsg struct {
	Error   error
	Context string
}

// TabSwitchMsg requests switching to a specific tab.
type TabSwitchMsg struct {
	Tab TabID
}

// ToggleHelpMsg toggles the help display.
type ToggleHelpMsg struct{}

// SubscriptionEventMsg is the callback wrapper for service subscription.
type SubscriptionEventMsg struct {
	Channel chan services.ServiceEvent
}

// ClearExpiredNotificationsMsg triggers clearing of expired notifications.
type ClearExpiredNotificationsMsg struct{}

// DelayedMsg wraps a message to be sent after a delay.
type DelayedMsg struct {
	Delay time.Duration
	Msg   tea.Msg
}

// SelectedCategoryChangedMsg signals that the selected category changed.
type SelectedCategoryChangedMsg struct {
	Category string
}
