package notification

import (
	"testing"

	"propertyhub/internal/domain"
)

func TestHubOnlineCountTracksSessions(t *testing.T) {
	hub := NewHub()
	if hub.OnlineCount() != 0 {
		t.Fatalf("expected empty hub, got %d sessions", hub.OnlineCount())
	}

	hub.Register(1, domain.RoleAdmin, nil)
	hub.Register(2, domain.RoleStaff, nil)
	if hub.OnlineCount() != 2 {
		t.Fatalf("expected 2 sessions, got %d", hub.OnlineCount())
	}

	// A reconnect replaces the old session instead of adding one.
	hub.Register(1, domain.RoleAdmin, nil)
	if hub.OnlineCount() != 2 {
		t.Fatalf("expected 2 sessions after reconnect, got %d", hub.OnlineCount())
	}

	hub.Unregister(2)
	if hub.OnlineCount() != 1 {
		t.Fatalf("expected 1 session after unregister, got %d", hub.OnlineCount())
	}
}
