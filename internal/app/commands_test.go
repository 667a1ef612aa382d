package app

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/okrause/seriesdash/internal/services"
)

func TestCommands_Tick(t *testing.T) {
	cmds := NewCommands(nil)
	cmd := cmds.Tick(time.Millisecond)
	if cmd == nil {
		t.Error("Tick returned nil")
	}
}

func TestCommands_DefaultTick(t *testing.T) {
	cmds := NewCommands(nil)
	cmd := cmds.DefaultTick()
	if cmd == nil {
		t.Error("DefaultTick returned nil")
	}
}

func TestCommands_Notifications(t *testing.T) {
	cmds := NewCommands(nil)

	tests := []struct {
		name string
		fn   func(string) tea.Cmd
		want NotificationType
	}{
		{"Success", cmds.NotifySuccess, NotificationSuccess},
		{"Error", cmds.NotifyError, NotificationError},
		{"Warning", cmds.NotifyWarning, NotificationWarning},
		{"Info", cmds.NotifyInfo, NotificationInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := tt.fn("msg")
			msg := cmd()

			addMsg, ok := msg.(AddNotificationMsg)
			if !ok {
				t.Fatalf("Expected AddNotificationMsg, got %T", msg)
			}
			if addMsg.Type != tt.want {
				t.Errorf("Type = %v, want %v", addMsg.Type, tt.want)
			}
			if addMsg.Message != "msg" {
				t.Errorf("Message = %q, want msg", addMsg.Message)
			}
		})
	}
}

func TestCommands_ClearNotification(t *testing.T) {
	cmds := NewCommands(nil)
	cmd := cmds.ClearNotification("id", time.Millisecond)
	if cmd == nil {
		t.Error("ClearNotification returned nil")
	}
}

func TestCommands_Quit(t *testing.T) {
	cmds := NewCommands(nil)
	cmd := cmds.Quit()
	msg := cmd()
	if _, ok := msg.(tea.QuitMsg); !ok {
		t.Errorf("Expected QuitMsg, got %T", msg)
	}
}

func TestCommands_Delayed(t *testing.T) {
	cmds := NewCommands(nil)
	cmd := cmds.Delayed(time.Millisecond, TickMsg{})
	if cmd == nil {
		t.Error("Delayed returned nil")
	}
}

func TestWaitForServiceEventCmd_ClosedChannel(t *testing.T) {
	ch := make(chan services.ServiceEvent)
	close(ch)

	cmd := waitForServiceEventCmd(ch)
	if msg := cmd(); msg != nil {
		t.Errorf("closed channel should yield nil msg, got %T", msg)
	}
}

func TestWaitForServiceEventCmd_DeliversEvent(t *testing.T) {
	ch := make(chan services.ServiceEvent, 1)
	ch <- services.StatsEvent{DatasetCount: 1}

	cmd := waitForServiceEventCmd(ch)
	msg, ok := cmd().(ServiceEventMsg)
	if !ok {
		t.Fatalf("expected ServiceEventMsg, got %T", msg)
	}
	if stats, ok := msg.Event.(services.StatsEvent); !ok || stats.DatasetCount != 1 {
		t.Errorf("unexpected event payload: %+v", msg.Event)
	}
}
