package protocol

// Client to server events.
const (
	EventSetUsername = "setUsername"
	EventUpdateSkin  = "updateSkin"
	EventCreateRoom  = "createRoom"
	EventJoinRoom    = "joinRoom"
	EventChatMessage = "chatMessage"
)

// Server to client events. EventChatMessage is echoed back unchanged.
const (
	EventConnected   = "connected"
	EventUsersUpdate = "usersUpdate"
	EventRoomsUpdate = "roomsUpdate"
	EventRoomCreated = "roomCreated"
	EventRoomJoined  = "roomJoined"
	EventError       = "error"
)

// ErrMsgRoomNotFound is the error payload sent for a join against an unknown room.
const ErrMsgRoomNotFound = "Room not found"

// User is one entry of a usersUpdate snapshot. Nil fields are unset.
type User struct {
	ID   string  `json:"id"`
	Name *string `json:"name"`
	Room *string `json:"room"`
	Skin *string `json:"skin"`
}

// Room is one entry of a roomsUpdate snapshot, and the payload of
// roomCreated and roomJoined.
type Room struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Creator string   `json:"creator"`
	Members []string `json:"members"`
}

// Connected greets a new connection with the id the server assigned it.
type Connected struct {
	ID string `json:"id"`
}

// ChatMessage is the payload shape chat clients use. The server never
// decodes it; it relays whatever the sender wrote.
type ChatMessage struct {
	User string `json:"user"`
	Text string `json:"text"`
}
