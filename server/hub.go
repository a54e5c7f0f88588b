package server

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// session is one connected client from the hub's point of view.
type session interface {
	// Enqueue offers a frame for delivery; false means the outbound
	// buffer is full and the session should be dropped.
	Enqueue(frame any) bool
	// Kill tears the session down.
	Kill()
}

// Hub groups live sessions by room and fans frames out to them.
// Delivery is best-effort and non-blocking: a session whose buffer is
// full is removed and killed, and no back-pressure reaches the caller
// or the other sessions. Frames broadcast by one handler reach every
// surviving session in issue order.
type Hub struct {
	mu    sync.Mutex
	rooms map[string]map[session]struct{}
	log   *logrus.Logger
}

// NewHub creates an empty hub.
func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		rooms: make(map[string]map[session]struct{}),
		log:   log,
	}
}

// Join adds the session to the room's group.
func (h *Hub) Join(roomID string, s session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[roomID]
	if !ok {
		members = make(map[session]struct{})
		h.rooms[roomID] = members
	}
	members[s] = struct{}{}
}

// Leave removes the session from the room's group.
func (h *Hub) Leave(roomID string, s session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(roomID, s)
}

// remove deletes the session; caller holds the mutex.
func (h *Hub) remove(roomID string, s session) {
	members, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(members, s)
	if len(members) == 0 {
		delete(h.rooms, roomID)
	}
}

// Broadcast delivers the frame to every session in the room. The
// member set is snapshotted so no socket write happens under the
// mutex; sessions that cannot keep up are dropped.
func (h *Hub) Broadcast(roomID string, frame any) {
	h.mu.Lock()
	members := make([]session, 0, len(h.rooms[roomID]))
	for s := range h.rooms[roomID] {
		members = append(members, s)
	}
	h.mu.Unlock()

	var dead []session
	for _, s := range members {
		if !s.Enqueue(frame) {
			dead = append(dead, s)
		}
	}

	if len(dead) == 0 {
		return
	}

	h.mu.Lock()
	for _, s := range dead {
		h.remove(roomID, s)
	}
	h.mu.Unlock()

	for _, s := range dead {
		s.Kill()
	}
	h.log.WithField("room_id", roomID).Warnf("dropped %d slow session(s)", len(dead))
}

// MemberCount returns how many sessions are in the room.
func (h *Hub) MemberCount(roomID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[roomID])
}

// CloseAll kills every session. Used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	var all []session
	for _, members := range h.rooms {
		for s := range members {
			all = append(all, s)
		}
	}
	h.rooms = make(map[string]map[session]struct{})
	h.mu.Unlock()

	for _, s := range all {
		s.Kill()
	}
}
