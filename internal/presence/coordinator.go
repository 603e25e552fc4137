package presence

import (
	"fmt"
	"strings"
)

// Coordinator owns the connection and room registries.
type Coordinator struct {
	connections map[string]*Connection
	connOrder   []string
	rooms       map[string]*Room
	roomOrder   []string
	newRoomID   IDGenerator
}

// NewCoordinator returns an empty Coordinator that mints room ids with gen.
// A nil gen uses NewRoomIDGenerator(DefaultRoomIDLength).
func NewCoordinator(gen IDGenerator) (*Coordinator, error) {
	if gen == nil {
		var err error
		gen, err = NewRoomIDGenerator(DefaultRoomIDLength)
		if err != nil {
			return nil, err
		}
	}
	return &Coordinator{
		connections: make(map[string]*Connection),
		rooms:       make(map[string]*Room),
		newRoomID:   gen,
	}, nil
}

// Register creates an anonymous, roomless entry for connID. It reports false
// and changes nothing when connID is already registered.
func (c *Coordinator) Register(connID string) bool {
	if _, ok := c.connections[connID]; ok {
		return false
	}
	c.connections[connID] = &Connection{ID: connID}
	c.connOrder = append(c.connOrder, connID)
	return true
}

// SetName stores the trimmed display name for connID.
func (c *Coordinator) SetName(connID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("set name: %w", ErrInvalidInput)
	}
	conn, ok := c.connections[connID]
	if !ok {
		return fmt.Errorf("set name for %s: %w", connID, ErrNotFound)
	}
	conn.Name = name
	return nil
}

// SetAppearance records the appearance tag chosen by connID. Naming is not
// required first.
func (c *Coordinator) SetAppearance(connID, tag string) error {
	conn, ok := c.connections[connID]
	if !ok {
		return fmt.Errorf("set appearance for %s: %w", connID, ErrNotFound)
	}
	conn.Skin = tag
	return nil
}

// Remove leaves the current room, if any, and drops connID from the
// registry. It reports whether connID was registered.
func (c *Coordinator) Remove(connID string) bool {
	if _, ok := c.connections[connID]; !ok {
		return false
	}
	c.LeaveCurrentRoom(connID)
	delete(c.connections, connID)
	c.connOrder = removeID(c.connOrder, connID)
	return true
}

// CreateRoom opens a room named name with creatorID as its only member. The
// creator first leaves whatever room it was in.
func (c *Coordinator) CreateRoom(creatorID, name string) (Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Room{}, fmt.Errorf("create room: %w", ErrInvalidInput)
	}
	creator, ok := c.connections[creatorID]
	if !ok {
		return Room{}, fmt.Errorf("create room for %s: %w", creatorID, ErrNotFound)
	}

	roomID, err := c.mintRoomID()
	if err != nil {
		return Room{}, err
	}

	c.LeaveCurrentRoom(creatorID)

	room := &Room{
		ID:      roomID,
		Name:    name,
		Creator: creatorID,
		Members: []string{creatorID},
	}
	c.rooms[roomID] = room
	c.roomOrder = append(c.roomOrder, roomID)
	creator.Room = roomID

	return room.clone(), nil
}

// JoinRoom moves connID into roomID, leaving any other room first. Joining
// the room one is already in is not an error.
func (c *Coordinator) JoinRoom(connID, roomID string) (Room, error) {
	room, ok := c.rooms[roomID]
	if !ok {
		return Room{}, fmt.Errorf("join room %q: %w", roomID, ErrNotFound)
	}
	conn, ok := c.connections[connID]
	if !ok {
		return Room{}, fmt.Errorf("join room for %s: %w", connID, ErrNotFound)
	}

	if conn.Room != roomID {
		c.LeaveCurrentRoom(connID)
	}
	room.addMember(connID)
	conn.Room = roomID

	return room.clone(), nil
}

// LeaveCurrentRoom takes connID out of its room and deletes the room when it
// empties. It returns the id of the room left, or "" when there was none.
func (c *Coordinator) LeaveCurrentRoom(connID string) string {
	conn, ok := c.connections[connID]
	if !ok || conn.Room == "" {
		return ""
	}

	roomID := conn.Room
	conn.Room = ""

	room, ok := c.rooms[roomID]
	if !ok {
		return roomID
	}
	room.removeMember(connID)
	if len(room.Members) == 0 {
		delete(c.rooms, roomID)
		c.roomOrder = removeID(c.roomOrder, roomID)
	}
	return roomID
}

// Connection returns a copy of the entry for connID.
func (c *Coordinator) Connection(connID string) (Connection, bool) {
	conn, ok := c.connections[connID]
	if !ok {
		return Connection{}, false
	}
	return *conn, true
}

// Room returns a copy of the room with the given id.
func (c *Coordinator) Room(roomID string) (Room, bool) {
	room, ok := c.rooms[roomID]
	if !ok {
		return Room{}, false
	}
	return room.clone(), true
}

// Connections returns a snapshot of every registered connection in
// registration order.
func (c *Coordinator) Connections() []Connection {
	out := make([]Connection, 0, len(c.connOrder))
	for _, id := range c.connOrder {
		out = append(out, *c.connections[id])
	}
	return out
}

// Rooms returns a snapshot of every live room in creation order.
func (c *Coordinator) Rooms() []Room {
	out := make([]Room, 0, len(c.roomOrder))
	for _, id := range c.roomOrder {
		out = append(out, c.rooms[id].clone())
	}
	return out
}

// ConnectionCount returns the number of registered connections.
func (c *Coordinator) ConnectionCount() int {
	return len(c.connections)
}

// RoomCount returns the number of live rooms.
func (c *Coordinator) RoomCount() int {
	return len(c.rooms)
}

// Validate checks the cross-registry invariants and returns the first
// violation found.
func (c *Coordinator) Validate() error {
	for id, conn := range c.connections {
		if conn.Room == "" {
			continue
		}
		room, ok := c.rooms[conn.Room]
		if !ok {
			return fmt.Errorf("connection %s references missing room %s", id, conn.Room)
		}
		if !room.hasMember(id) {
			return fmt.Errorf("connection %s claims room %s but is not a member", id, conn.Room)
		}
	}
	for id, room := range c.rooms {
		if len(room.Members) == 0 {
			return fmt.Errorf("room %s is empty", id)
		}
		seen := make(map[string]struct{}, len(room.Members))
		for _, member := range room.Members {
			if _, dup := seen[member]; dup {
				return fmt.Errorf("room %s lists member %s twice", id, member)
			}
			seen[member] = struct{}{}
			conn, ok := c.connections[member]
			if !ok {
				return fmt.Errorf("room %s lists unknown member %s", id, member)
			}
			if conn.Room != id {
				return fmt.Errorf("room %s lists member %s whose room is %q", id, member, conn.Room)
			}
		}
	}
	if len(c.connOrder) != len(c.connections) || len(c.roomOrder) != len(c.rooms) {
		return fmt.Errorf("registry order out of sync")
	}
	return nil
}

func (c *Coordinator) mintRoomID() (string, error) {
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id := c.newRoomID()
		if _, taken := c.rooms[id]; !taken && id != "" {
			return id, nil
		}
	}
	return "", fmt.Errorf("mint room id: no free id after %d attempts", maxIDAttempts)
}

func removeID(ids []string, target string) []string {
	for i, id := range ids {
		if id == target {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
