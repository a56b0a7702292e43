package realtime

import "sync"

// Session is the minimal surface the hub needs from a connection: identity
// and the ability to enqueue a payload. Connection implements it; tests use
// fakes.
type Session interface {
	ID() string
	Principal() string
	Send(payload []byte) error
}

// Hub tracks live sessions, the personal channel per principal, and the
// room each session has joined. A principal may hold several sessions at
// once (multiple devices); each joins rooms independently.
type Hub struct {
	mu           sync.RWMutex
	sessions     map[string]Session            // sessionID -> session
	principals   map[string]map[string]Session // principalID -> sessionID -> session
	rooms        map[string]map[string]Session // conversationID -> sessionID -> session
	sessionRooms map[string]map[string]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		sessions:     make(map[string]Session),
		principals:   make(map[string]map[string]Session),
		rooms:        make(map[string]map[string]Session),
		sessionRooms: make(map[string]map[string]struct{}),
	}
}

// Register adds an authenticated session to the registry and to its
// principal's personal channel.
func (h *Hub) Register(s Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sessions[s.ID()] = s
	conns := h.principals[s.Principal()]
	if conns == nil {
		conns = make(map[string]Session)
		h.principals[s.Principal()] = conns
	}
	conns[s.ID()] = s
	h.sessionRooms[s.ID()] = make(map[string]struct{})
}

// Drop removes a session and all its room memberships. Invoked on
// disconnect and when a send fails.
func (h *Hub) Drop(sessionID string) {
	h.mu.Lock()
	h.dropLocked(sessionID)
	h.mu.Unlock()
}

func (h *Hub) dropLocked(sessionID string) {
	s, ok := h.sessions[sessionID]
	if !ok {
		return
	}
	delete(h.sessions, sessionID)

	if conns, ok := h.principals[s.Principal()]; ok {
		delete(conns, sessionID)
		if len(conns) == 0 {
			delete(h.principals, s.Principal())
		}
	}

	for roomID := range h.sessionRooms[sessionID] {
		h.leaveLocked(roomID, sessionID)
	}
	delete(h.sessionRooms, sessionID)
}

// Join binds the session to a conversation room. The caller is responsible
// for the membership check; the hub only tracks the binding. Reports
// whether the session is still registered.
func (h *Hub) Join(sessionID, conversationID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[sessionID]
	if !ok {
		return false
	}

	room := h.rooms[conversationID]
	if room == nil {
		room = make(map[string]Session)
		h.rooms[conversationID] = room
	}
	room[sessionID] = s
	h.sessionRooms[sessionID][conversationID] = struct{}{}
	return true
}

// Leave unbinds the session from the room. Never fails; leaving a room the
// session never joined is a no-op.
func (h *Hub) Leave(sessionID, conversationID string) {
	h.mu.Lock()
	h.leaveLocked(conversationID, sessionID)
	h.mu.Unlock()
}

func (h *Hub) leaveLocked(conversationID, sessionID string) {
	room := h.rooms[conversationID]
	if room == nil {
		return
	}
	delete(room, sessionID)
	if len(room) == 0 {
		delete(h.rooms, conversationID)
	}
	if memberships, ok := h.sessionRooms[sessionID]; ok {
		delete(memberships, conversationID)
	}
}

// InRoom reports whether the session has joined the conversation room.
func (h *Hub) InRoom(sessionID, conversationID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	memberships, ok := h.sessionRooms[sessionID]
	if !ok {
		return false
	}
	_, in := memberships[conversationID]
	return in
}

// BroadcastToRoom delivers payload to every session bound to the room,
// except excludeSession when non-empty. Sessions whose send fails are
// dropped so broken connections do not linger. Returns deliveries made.
func (h *Hub) BroadcastToRoom(conversationID string, payload []byte, excludeSession string) int {
	h.mu.RLock()
	room := h.rooms[conversationID]
	targets := make([]Session, 0, len(room))
	for id, s := range room {
		if id == excludeSession {
			continue
		}
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	return h.deliver(targets, payload)
}

// NotifyPrincipal delivers payload to every session of the principal,
// regardless of room membership. Used for badge/unread updates.
func (h *Hub) NotifyPrincipal(principalID string, payload []byte) int {
	h.mu.RLock()
	conns := h.principals[principalID]
	targets := make([]Session, 0, len(conns))
	for _, s := range conns {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	return h.deliver(targets, payload)
}

func (h *Hub) deliver(targets []Session, payload []byte) int {
	delivered := 0
	var failed []string
	for _, s := range targets {
		if err := s.Send(payload); err != nil {
			failed = append(failed, s.ID())
			continue
		}
		delivered++
	}
	for _, id := range failed {
		h.Drop(id)
	}
	return delivered
}
