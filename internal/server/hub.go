// Package server coordinates client registration, protocol dispatch, and
// connection cleanup for the lobby via the Hub type.
package server

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Tyrowin/lobby/internal/presence"
	"github.com/Tyrowin/lobby/internal/protocol"
)

// Hub owns the presence registries and every live client. All registry
// mutations and all sends happen on the goroutine running Run, one event at
// a time, so neither the registries nor the client map need a lock.
type Hub struct {
	config  Config
	logger  *slog.Logger
	origins *originPolicy
	coord   *presence.Coordinator
	clients map[string]*Client
	evicted []*Client

	register chan *Client
	// inbound carries both protocol events and the final disconnect of each
	// client, so a disconnect is always handled after everything that client
	// sent before it.
	inbound chan inboundEvent

	connections atomic.Int64
	rooms       atomic.Int64

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// Stats is a point-in-time count of the registries.
type Stats struct {
	Connections int `json:"connections"`
	Rooms       int `json:"rooms"`
}

// NewHub creates a Hub configured by cfg. A nil cfg uses defaults and a nil
// logger uses slog.Default.
func NewHub(cfg *Config, logger *slog.Logger) (*Hub, error) {
	if cfg == nil {
		cfg = NewConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	config := cfg.Sanitize()

	gen, err := presence.NewRoomIDGenerator(config.RoomIDLength)
	if err != nil {
		return nil, err
	}
	coord, err := presence.NewCoordinator(gen)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		config:     config,
		logger:     logger,
		origins:    newOriginPolicy(config.AllowedOrigins, logger),
		coord:      coord,
		clients:    make(map[string]*Client),
		register: make(chan *Client),
		inbound:  make(chan inboundEvent, 64),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}, nil
}

// Config returns the sanitized configuration the hub runs with.
func (h *Hub) Config() Config {
	return h.config
}

// Stats returns the registry sizes as of the last processed event. Safe to
// call from any goroutine.
func (h *Hub) Stats() Stats {
	return Stats{
		Connections: int(h.connections.Load()),
		Rooms:       int(h.rooms.Load()),
	}
}

// Register hands a freshly upgraded client to the hub, which starts its
// pumps. It reports false when the hub has already stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.ctx.Done():
		return false
	}
}

func (h *Hub) submit(ev inboundEvent) bool {
	if h.ctx.Err() != nil {
		return false
	}
	select {
	case h.inbound <- ev:
		return true
	case <-h.ctx.Done():
		return false
	}
}

// submitDisconnect queues client's disconnect behind its earlier events.
func (h *Hub) submitDisconnect(client *Client) {
	select {
	case h.inbound <- inboundEvent{client: client, disconnect: true}:
	case <-h.ctx.Done():
	}
}

// Run starts the hub's main event loop. It returns after Shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			h.handleRegister(client)

		case ev := <-h.inbound:
			if ev.disconnect {
				h.disconnect(ev.client)
			} else {
				h.dispatch(ev.client, ev.envelope)
			}
		}

		h.settle()
	}
}

// settle finishes an event: it cleans up clients evicted while sending,
// refreshes the stats counters and, at debug level, re-checks the registry
// invariants.
func (h *Hub) settle() {
	h.flushEvictions()

	h.connections.Store(int64(h.coord.ConnectionCount()))
	h.rooms.Store(int64(h.coord.RoomCount()))

	if h.logger.Enabled(h.ctx, slog.LevelDebug) {
		if err := h.coord.Validate(); err != nil {
			h.logger.Error("presence registries inconsistent", "error", err)
		}
	}
}

func (h *Hub) handleRegister(client *Client) {
	if client == nil {
		h.logger.Warn("received nil client registration; skipping")
		return
	}

	h.attach(client)

	if client.conn == nil {
		return
	}
	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()
}

// attach registers the client in the hub and the connection registry. The
// newcomer gets its id and the room list; the users snapshot, which now lists
// the newcomer, goes to everyone.
func (h *Hub) attach(client *Client) {
	client.closed = false
	h.clients[client.id] = client
	h.coord.Register(client.id)
	client.logger.Info("client registered", "clients", len(h.clients))

	h.unicast(client, protocol.EventConnected, protocol.Connected{ID: client.id})
	h.broadcastUsers()
	h.unicast(client, protocol.EventRoomsUpdate, h.roomsSnapshot())
}

// isLive reports whether client is still attached and accepting messages.
func (h *Hub) isLive(client *Client) bool {
	if client == nil || client.closed {
		return false
	}
	current, ok := h.clients[client.id]
	return ok && current == client
}

// detach removes the client from the hub and closes its send queue so the
// write pump winds down.
func (h *Hub) detach(client *Client) {
	delete(h.clients, client.id)
	if !client.closed {
		client.closed = true
		close(client.send)
	}
}

// evict drops a client that cannot keep up. Cleanup runs once the current
// event has finished fanning out.
func (h *Hub) evict(client *Client) {
	if client.closed {
		return
	}
	client.closed = true
	close(client.send)
	h.evicted = append(h.evicted, client)
	client.logger.Warn("client evicted due to full send buffer")
}

func (h *Hub) flushEvictions() {
	for len(h.evicted) > 0 {
		client := h.evicted[0]
		h.evicted = h.evicted[1:]
		h.disconnect(client)
	}
}

// shutdownClients gracefully closes all active client connections
func (h *Hub) shutdownClients() {
	h.logger.Info("shutting down all client connections")

	count := len(h.clients)
	for _, client := range h.clients {
		h.detach(client)
		if client.conn != nil {
			if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
				client.logger.Warn("close client connection", "error", err)
			}
		}
	}

	h.logger.Info("closed client connections", "clients", count)
}

// Shutdown initiates graceful shutdown of the hub and waits for all goroutines to complete.
// It returns after all client connections are closed and goroutines have finished,
// or when the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.logger.Info("initiating hub shutdown")

	h.cancel()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-h.done:
	case <-timer.C:
		h.logger.Warn("hub event loop did not stop before timeout")
		return context.DeadlineExceeded
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.logger.Info("hub shutdown completed successfully")
		return nil
	case <-timer.C:
		h.logger.Warn("hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
