package presence

// Connection is one live client session. Empty string fields mean unset.
type Connection struct {
	ID   string
	Name string
	Room string
	Skin string
}

// Named reports whether the connection has claimed a display name.
func (c Connection) Named() bool {
	return c.Name != ""
}

// InRoom reports whether the connection is currently a room member.
func (c Connection) InRoom() bool {
	return c.Room != ""
}
