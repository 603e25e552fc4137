package protocol

import (
	"encoding/json"
	"fmt"
)

// View is a client's picture of the lobby, rebuilt from server events.
type View struct {
	Self      string
	Users     []User
	Rooms     []Room
	Chat      []json.RawMessage
	LastError string
}

// Apply folds one server event into the view. Snapshot events replace
// Users or Rooms outright; unknown events are ignored.
func (v *View) Apply(env Envelope) error {
	switch env.Event {
	case EventConnected:
		var hello Connected
		if err := env.Bind(&hello); err != nil {
			return err
		}
		v.Self = hello.ID
	case EventUsersUpdate:
		var users []User
		if err := env.Bind(&users); err != nil {
			return err
		}
		v.Users = users
	case EventRoomsUpdate:
		var rooms []Room
		if err := env.Bind(&rooms); err != nil {
			return err
		}
		v.Rooms = rooms
	case EventChatMessage:
		v.Chat = append(v.Chat, append(json.RawMessage(nil), env.Data...))
	case EventError:
		msg, err := env.Text()
		if err != nil {
			return err
		}
		v.LastError = msg
	case EventRoomCreated, EventRoomJoined:
		var room Room
		if err := env.Bind(&room); err != nil {
			return err
		}
		if room.ID == "" {
			return fmt.Errorf("%s without room id: %w", env.Event, ErrPayloadType)
		}
	}
	return nil
}

// User returns the snapshot entry for id.
func (v *View) User(id string) (User, bool) {
	for _, u := range v.Users {
		if u.ID == id {
			return u, true
		}
	}
	return User{}, false
}

// Room returns the snapshot entry for id.
func (v *View) Room(id string) (Room, bool) {
	for _, r := range v.Rooms {
		if r.ID == id {
			return r, true
		}
	}
	return Room{}, false
}

// CurrentRoom returns the room the viewing client belongs to according to
// the latest users snapshot.
func (v *View) CurrentRoom() (Room, bool) {
	me, ok := v.User(v.Self)
	if !ok || me.Room == nil {
		return Room{}, false
	}
	return v.Room(*me.Room)
}
