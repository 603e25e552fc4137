// Package presence holds the authoritative state of the lobby: who is
// connected, what they call themselves, and which room each of them sits in.
//
// A Coordinator owns two registries, connections keyed by connection id and
// rooms keyed by room token. Rooms reference connections by id and never own
// them. Every mutation goes through Coordinator methods, and the Coordinator
// is not safe for concurrent use: callers serialize access through a single
// goroutine (see the server hub's event loop).
//
// Two invariants hold between any two method calls:
//
//   - a connection whose Room is r appears in r.Members, and every member id
//     of every room names a registered connection;
//   - no room is ever empty. Membership only shrinks through
//     LeaveCurrentRoom, which deletes the room once its last member is gone.
package presence
