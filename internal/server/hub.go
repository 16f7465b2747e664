package server

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"

	"github.com/lox/roomwager/internal/engine"
	"github.com/lox/roomwager/internal/protocol"
)

// ErrNotConnected is returned when a notice targets a user with no open
// connection in the room
var ErrNotConnected = errors.New("user not connected")

// Hub tracks websocket connections per room and fans out room traffic. It
// is the engine's Transport.
type Hub struct {
	logger zerolog.Logger
	clock  quartz.Clock

	mu    sync.RWMutex
	rooms map[string]map[*Connection]struct{}
}

// NewHub creates an empty hub
func NewHub(logger zerolog.Logger, clock quartz.Clock) *Hub {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &Hub{
		logger: logger.With().Str("component", "hub").Logger(),
		clock:  clock,
		rooms:  make(map[string]map[*Connection]struct{}),
	}
}

// register adds c to its room. first is true when c is the user's only
// connection in that room.
func (h *Hub) register(c *Connection) (first bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[c.room]
	if !ok {
		members = make(map[*Connection]struct{})
		h.rooms[c.room] = members
	}
	first = true
	for other := range members {
		if other.userID == c.userID {
			first = false
			break
		}
	}
	members[c] = struct{}{}
	return first
}

// unregister removes c. last is true when the user has no connection left
// in the room.
func (h *Hub) unregister(c *Connection) (last bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[c.room]
	if !ok {
		return false
	}
	if _, ok := members[c]; !ok {
		return false
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, c.room)
		return true
	}
	for other := range members {
		if other.userID == c.userID {
			return false
		}
	}
	return true
}

// Broadcast implements engine.Transport
func (h *Hub) Broadcast(_ context.Context, room string, msg engine.Message) error {
	h.publish(room, "", &protocol.Event{
		Kind:    protocol.KindBroadcast,
		Room:    room,
		Sender:  msg.Sender,
		Content: msg.Content,
		Media:   msg.Media,
	})
	return nil
}

// Notify implements engine.Transport
func (h *Hub) Notify(_ context.Context, room, userID string, msg engine.Message) error {
	delivered := h.publish(room, userID, &protocol.Event{
		Kind:    protocol.KindNotice,
		Room:    room,
		Sender:  msg.Sender,
		Content: msg.Content,
		Media:   msg.Media,
	})
	if delivered == 0 {
		return ErrNotConnected
	}
	return nil
}

// Chat relays a line typed by a member to everyone in the room
func (h *Hub) Chat(room, sender, text string) {
	h.publish(room, "", &protocol.Event{
		Kind:    protocol.KindChat,
		Room:    room,
		Sender:  sender,
		Content: text,
	})
}

// Presence announces a member arriving or leaving
func (h *Hub) Presence(room, name string, joined bool) {
	verb := "left"
	if joined {
		verb = "joined"
	}
	h.publish(room, "", &protocol.Event{
		Kind:    protocol.KindPresence,
		Room:    room,
		Sender:  name,
		Content: name + " " + verb + " the room",
	})
}

// publish sends ev to every connection in room, or only to userID's
// connections when userID is set. It returns the number of connections the
// event was queued on.
func (h *Hub) publish(room, userID string, ev *protocol.Event) int {
	ev.Time = h.clock.Now().UTC()
	data, err := protocol.Marshal(ev)
	if err != nil {
		h.logger.Error().Err(err).Str("room", room).Msg("Failed to encode event")
		return 0
	}

	h.mu.RLock()
	targets := make([]*Connection, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		if userID == "" || c.userID == userID {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	sent := 0
	for _, c := range targets {
		if err := c.enqueue(data); err != nil {
			h.logger.Debug().Err(err).Str("room", room).Str("conn_id", c.id).Msg("Dropped event")
			continue
		}
		sent++
	}
	return sent
}

// RoomInfo describes the members of a room
type RoomInfo struct {
	Room    string   `json:"room"`
	Members []string `json:"members"`
}

// Rooms returns the rooms with at least one connection, sorted by name
func (h *Hub) Rooms() []RoomInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]RoomInfo, 0, len(h.rooms))
	for room, members := range h.rooms {
		seen := make(map[string]bool)
		info := RoomInfo{Room: room}
		for c := range members {
			if !seen[c.userID] {
				seen[c.userID] = true
				info.Members = append(info.Members, c.name)
			}
		}
		sort.Strings(info.Members)
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Room < out[j].Room })
	return out
}

// CloseAll closes every connection
func (h *Hub) CloseAll() {
	h.mu.RLock()
	var all []*Connection
	for _, members := range h.rooms {
		for c := range members {
			all = append(all, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range all {
		c.Close()
	}
}
