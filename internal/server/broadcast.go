package server

import (
	"github.com/Tyrowin/lobby/internal/presence"
	"github.com/Tyrowin/lobby/internal/protocol"
)

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func userView(c presence.Connection) protocol.User {
	return protocol.User{
		ID:   c.ID,
		Name: optional(c.Name),
		Room: optional(c.Room),
		Skin: optional(c.Skin),
	}
}

func roomView(r presence.Room) protocol.Room {
	members := r.Members
	if members == nil {
		members = []string{}
	}
	return protocol.Room{
		ID:      r.ID,
		Name:    r.Name,
		Creator: r.Creator,
		Members: members,
	}
}

func (h *Hub) usersSnapshot() []protocol.User {
	conns := h.coord.Connections()
	users := make([]protocol.User, 0, len(conns))
	for _, c := range conns {
		users = append(users, userView(c))
	}
	return users
}

func (h *Hub) roomsSnapshot() []protocol.Room {
	rooms := h.coord.Rooms()
	views := make([]protocol.Room, 0, len(rooms))
	for _, r := range rooms {
		views = append(views, roomView(r))
	}
	return views
}

func (h *Hub) broadcastUsers() {
	h.broadcastEvent(protocol.EventUsersUpdate, h.usersSnapshot())
}

func (h *Hub) broadcastRooms() {
	h.broadcastEvent(protocol.EventRoomsUpdate, h.roomsSnapshot())
}

func (h *Hub) broadcastEvent(event string, data any) {
	payload, err := protocol.Encode(event, data)
	if err != nil {
		h.logger.Error("encode broadcast", "event", event, "error", err)
		return
	}
	h.broadcast(payload)
}

// broadcast queues payload for every live client, sender included.
func (h *Hub) broadcast(payload []byte) {
	for _, client := range h.clients {
		h.deliver(client, payload)
	}
}

func (h *Hub) unicast(client *Client, event string, data any) {
	payload, err := protocol.Encode(event, data)
	if err != nil {
		client.logger.Error("encode message", "event", event, "error", err)
		return
	}
	h.deliver(client, payload)
}

// deliver queues payload without blocking. A client whose queue is full is
// evicted rather than allowed to stall everyone else.
func (h *Hub) deliver(client *Client, payload []byte) {
	if client.closed {
		return
	}
	select {
	case client.send <- payload:
	default:
		h.evict(client)
	}
}
