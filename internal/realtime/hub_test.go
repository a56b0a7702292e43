package realtime

import (
	"errors"
	"testing"
)

type fakeSession struct {
	id        string
	principal string
	payloads  [][]byte
	fail      bool
}

func (f *fakeSession) ID() string        { return f.id }
func (f *fakeSession) Principal() string { return f.principal }

func (f *fakeSession) Send(payload []byte) error {
	if f.fail {
		return errors.New("send fail")
	}
	f.payloads = append(f.payloads, payload)
	return nil
}

func (f *fakeSession) last() string {
	if len(f.payloads) == 0 {
		return ""
	}
	return string(f.payloads[len(f.payloads)-1])
}

func TestHub_NotifyPrincipal(t *testing.T) {
	hub := NewHub()

	phoneA := &fakeSession{id: "s1", principal: "alice"}
	laptopA := &fakeSession{id: "s2", principal: "alice"}
	phoneB := &fakeSession{id: "s3", principal: "bob"}

	hub.Register(phoneA)
	hub.Register(laptopA)
	hub.Register(phoneB)

	if n := hub.NotifyPrincipal("alice", []byte("badge")); n != 2 {
		t.Fatalf("expected delivery to both of alice's sessions, got %d", n)
	}
	if phoneA.last() != "badge" || laptopA.last() != "badge" {
		t.Fatalf("alice's sessions did not receive the payload")
	}
	if len(phoneB.payloads) != 0 {
		t.Fatalf("bob's session should not have received alice's payload")
	}

	hub.Drop("s1")

	if n := hub.NotifyPrincipal("alice", []byte("badge2")); n != 1 {
		t.Fatalf("expected delivery to one session after drop, got %d", n)
	}
	if phoneA.last() == "badge2" {
		t.Fatalf("dropped session should not have received payload")
	}
}

func TestHub_NotifyOfflinePrincipal(t *testing.T) {
	hub := NewHub()

	if n := hub.NotifyPrincipal("nobody", []byte("x")); n != 0 {
		t.Fatalf("expected zero deliveries for offline principal, got %d", n)
	}
}

func TestHub_RoomBroadcast(t *testing.T) {
	hub := NewHub()

	alice := &fakeSession{id: "s1", principal: "alice"}
	bob := &fakeSession{id: "s2", principal: "bob"}
	carol := &fakeSession{id: "s3", principal: "carol"}

	hub.Register(alice)
	hub.Register(bob)
	hub.Register(carol)

	if !hub.Join("s1", "conv1") || !hub.Join("s2", "conv1") {
		t.Fatalf("expected registered sessions to join the room")
	}
	if hub.Join("missing", "conv1") {
		t.Fatalf("unregistered session must not join a room")
	}

	if n := hub.BroadcastToRoom("conv1", []byte("hello"), ""); n != 2 {
		t.Fatalf("expected broadcast to reach 2 sessions, got %d", n)
	}
	if alice.last() != "hello" || bob.last() != "hello" {
		t.Fatalf("room members did not receive broadcast")
	}
	if len(carol.payloads) != 0 {
		t.Fatalf("non-member received room broadcast")
	}

	// Exclusion skips the originating session only.
	if n := hub.BroadcastToRoom("conv1", []byte("typing"), "s1"); n != 1 {
		t.Fatalf("expected broadcast with exclusion to reach 1 session, got %d", n)
	}
	if alice.last() == "typing" {
		t.Fatalf("excluded session received broadcast")
	}
	if bob.last() != "typing" {
		t.Fatalf("remaining member did not receive broadcast")
	}
}

func TestHub_LeaveAndInRoom(t *testing.T) {
	hub := NewHub()

	alice := &fakeSession{id: "s1", principal: "alice"}
	hub.Register(alice)
	hub.Join("s1", "conv1")

	if !hub.InRoom("s1", "conv1") {
		t.Fatalf("expected session to be in room after join")
	}

	hub.Leave("s1", "conv1")
	if hub.InRoom("s1", "conv1") {
		t.Fatalf("expected session to be out of room after leave")
	}

	// Leaving a room never joined is a no-op.
	hub.Leave("s1", "conv2")

	if n := hub.BroadcastToRoom("conv1", []byte("x"), ""); n != 0 {
		t.Fatalf("expected empty room after leave, got %d deliveries", n)
	}
}

func TestHub_DropRemovesFromRooms(t *testing.T) {
	hub := NewHub()

	alice := &fakeSession{id: "s1", principal: "alice"}
	bob := &fakeSession{id: "s2", principal: "bob"}
	hub.Register(alice)
	hub.Register(bob)
	hub.Join("s1", "conv1")
	hub.Join("s2", "conv1")

	hub.Drop("s1")

	if hub.InRoom("s1", "conv1") {
		t.Fatalf("dropped session should not remain in room")
	}
	if n := hub.BroadcastToRoom("conv1", []byte("x"), ""); n != 1 {
		t.Fatalf("expected broadcast to reach only remaining member, got %d", n)
	}
}

func TestHub_FailedSendDropsSession(t *testing.T) {
	hub := NewHub()

	healthy := &fakeSession{id: "s1", principal: "alice"}
	broken := &fakeSession{id: "s2", principal: "alice", fail: true}
	hub.Register(healthy)
	hub.Register(broken)
	hub.Join("s1", "conv1")
	hub.Join("s2", "conv1")

	if n := hub.BroadcastToRoom("conv1", []byte("x"), ""); n != 1 {
		t.Fatalf("expected one successful delivery, got %d", n)
	}

	// The failing session should have been dropped from the hub entirely.
	if hub.InRoom("s2", "conv1") {
		t.Fatalf("failing session should have been dropped from the room")
	}
	if n := hub.NotifyPrincipal("alice", []byte("y")); n != 1 {
		t.Fatalf("expected only the healthy session to remain, got %d deliveries", n)
	}
	if healthy.last() != "y" {
		t.Fatalf("healthy session did not receive payload after cleanup")
	}
}
