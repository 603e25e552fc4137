// Package server implements the WebSocket transport and event loop of the
// lobby.
//
// A single Hub goroutine owns the presence registries and every connected
// Client. Clients decode inbound frames on their read pump and queue them for
// the hub; the hub applies each event in arrival order and queues the
// resulting snapshots on each client's bounded send channel, which the
// client's write pump drains. A client that falls behind is evicted and
// cleaned up like any other disconnect.
//
// The package is organized into specialized files for configuration, hub
// management, dispatch, broadcasting, clients, routing, and HTTP handlers.
package server
