// Package protocol defines the JSON wire format spoken over the lobby
// WebSocket.
//
// Every message is an Envelope naming an event and carrying an arbitrary
// JSON payload:
//
//	{"event": "createRoom", "data": "Alpha"}
//	{"event": "roomsUpdate", "data": [{"id": "k3x9q0", "name": "Alpha", ...}]}
//
// The server may coalesce several queued envelopes into one WebSocket frame,
// separated by a newline; SplitFrame undoes that.
//
// View is the client side of the protocol. Snapshot events replace the
// corresponding part of the view wholesale, so applying the same snapshot
// twice is harmless.
package protocol
