package presence

// Room is a named group of connections. Members keeps join order for
// display; the order has no other meaning.
type Room struct {
	ID      string
	Name    string
	Creator string
	Members []string
}

func (r *Room) hasMember(connID string) bool {
	for _, id := range r.Members {
		if id == connID {
			return true
		}
	}
	return false
}

func (r *Room) addMember(connID string) {
	if r.hasMember(connID) {
		return
	}
	r.Members = append(r.Members, connID)
}

func (r *Room) removeMember(connID string) {
	kept := r.Members[:0]
	for _, id := range r.Members {
		if id != connID {
			kept = append(kept, id)
		}
	}
	r.Members = kept
}

func (r *Room) clone() Room {
	out := *r
	out.Members = append(make([]string, 0, len(r.Members)), r.Members...)
	return out
}
