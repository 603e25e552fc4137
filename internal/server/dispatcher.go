package server

import (
	"errors"

	"github.com/Tyrowin/lobby/internal/presence"
	"github.com/Tyrowin/lobby/internal/protocol"
)

// dispatch applies one client event to the registries and fans out the
// resulting snapshots. Events from clients that already disconnected are
// dropped: disconnect is always a connection's last event.
func (h *Hub) dispatch(client *Client, env protocol.Envelope) {
	if !h.isLive(client) {
		return
	}

	switch env.Event {
	case protocol.EventSetUsername:
		h.handleSetUsername(client, env)
	case protocol.EventUpdateSkin:
		h.handleUpdateSkin(client, env)
	case protocol.EventChatMessage:
		h.handleChatMessage(client, env)
	case protocol.EventCreateRoom:
		h.handleCreateRoom(client, env)
	case protocol.EventJoinRoom:
		h.handleJoinRoom(client, env)
	default:
		client.logger.Warn("unknown event", "event", env.Event)
	}
}

func (h *Hub) handleSetUsername(client *Client, env protocol.Envelope) {
	name, err := env.Text()
	if err != nil {
		client.logger.Warn("ignoring setUsername", "error", err)
		return
	}
	if err := h.coord.SetName(client.id, name); err != nil {
		client.logger.Debug("ignoring setUsername", "error", err)
		return
	}

	conn, _ := h.coord.Connection(client.id)
	client.logger.Info("username set", "name", conn.Name)
	h.broadcastUsers()
}

func (h *Hub) handleUpdateSkin(client *Client, env protocol.Envelope) {
	tag, err := env.Tag()
	if err != nil {
		client.logger.Warn("ignoring updateSkin", "error", err)
		return
	}
	if err := h.coord.SetAppearance(client.id, tag); err != nil {
		client.logger.Debug("ignoring updateSkin", "error", err)
		return
	}

	client.logger.Info("skin updated", "skin", tag)
	h.broadcastUsers()
}

// handleChatMessage relays the payload exactly as received. The sender name
// inside it is whatever the client claimed.
func (h *Hub) handleChatMessage(client *Client, env protocol.Envelope) {
	payload, err := protocol.EncodeRaw(protocol.EventChatMessage, env.Data)
	if err != nil {
		client.logger.Warn("ignoring chatMessage", "error", err)
		return
	}

	client.logger.Debug("relaying chat message")
	h.broadcast(payload)
}

func (h *Hub) handleCreateRoom(client *Client, env protocol.Envelope) {
	name, err := env.Text()
	if err != nil {
		client.logger.Warn("ignoring createRoom", "error", err)
		return
	}

	room, err := h.coord.CreateRoom(client.id, name)
	if err != nil {
		if errors.Is(err, presence.ErrInvalidInput) {
			client.logger.Debug("ignoring createRoom", "error", err)
		} else {
			client.logger.Error("create room failed", "error", err)
		}
		return
	}

	client.logger.Info("room created", "roomId", room.ID, "name", room.Name)
	h.broadcastRooms()
	h.broadcastUsers()
	h.unicast(client, protocol.EventRoomCreated, roomView(room))
}

func (h *Hub) handleJoinRoom(client *Client, env protocol.Envelope) {
	roomID, err := env.Text()
	if err != nil {
		client.logger.Warn("ignoring joinRoom", "error", err)
		return
	}

	room, err := h.coord.JoinRoom(client.id, roomID)
	if err != nil {
		if errors.Is(err, presence.ErrNotFound) {
			client.logger.Info("join of unknown room", "roomId", roomID)
			h.unicast(client, protocol.EventError, protocol.ErrMsgRoomNotFound)
			return
		}
		client.logger.Error("join room failed", "roomId", roomID, "error", err)
		return
	}

	client.logger.Info("joined room", "roomId", room.ID)
	h.broadcastRooms()
	h.broadcastUsers()
	h.unicast(client, protocol.EventRoomJoined, roomView(room))
}

// disconnect is the only exit path for a client: it leaves the current room,
// drops the connection entry, and tells everyone else. Safe to call more
// than once.
func (h *Hub) disconnect(client *Client) {
	if client == nil {
		return
	}
	if current, ok := h.clients[client.id]; !ok || current != client {
		return
	}

	h.detach(client)
	left := h.coord.LeaveCurrentRoom(client.id)
	h.coord.Remove(client.id)

	client.logger.Info("client unregistered", "roomId", left, "clients", len(h.clients))
	h.broadcastUsers()
	h.broadcastRooms()
}
