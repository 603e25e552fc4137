// Package testutil provides helpers shared by the lobby's tests: HTTP request
// shortcuts and a WebSocket Peer that speaks the event protocol.
package testutil

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/lobby/internal/protocol"
)

// DefaultOrigin is the origin the default configuration allows.
const DefaultOrigin = "http://localhost:8080"

// DefaultTimeout bounds every wait performed by a Peer.
const DefaultTimeout = 2 * time.Second

// MakeRequest creates and executes an HTTP request, returning the response.
// The caller closes the body.
func MakeRequest(t *testing.T, method, url string) *http.Response {
	t.Helper()

	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequest(method, url, http.NoBody)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	return resp
}

// WebSocketURL converts an httptest server URL into the lobby's ws endpoint.
func WebSocketURL(serverURL string) string {
	return "ws" + strings.TrimPrefix(serverURL, "http") + "/ws"
}

// ConnectWebSocket dials url presenting origin. An empty origin sends no
// Origin header.
func ConnectWebSocket(url, origin string) (*websocket.Conn, *http.Response, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn, resp, err
}

// Peer is a test client. It keeps every envelope it has received, in order,
// and folds them into a protocol.View.
type Peer struct {
	t       *testing.T
	conn    *websocket.Conn
	pending []protocol.Envelope
	View    protocol.View
}

// Dial connects a Peer to the lobby at url and consumes the connect greeting,
// so View.Self, View.Users, and View.Rooms are populated on return.
func Dial(t *testing.T, url string) *Peer {
	t.Helper()

	conn, _, err := ConnectWebSocket(url, DefaultOrigin)
	require.NoError(t, err)

	p := &Peer{t: t, conn: conn}
	t.Cleanup(p.Close)

	p.WaitFor(protocol.EventConnected)
	p.WaitFor(protocol.EventRoomsUpdate)
	return p
}

// ID is the connection id the server assigned.
func (p *Peer) ID() string {
	return p.View.Self
}

// Conn exposes the underlying connection.
func (p *Peer) Conn() *websocket.Conn {
	return p.conn
}

// Send writes one envelope in its own frame.
func (p *Peer) Send(event string, data any) {
	p.t.Helper()

	raw, err := protocol.Encode(event, data)
	require.NoError(p.t, err)
	require.NoError(p.t, p.conn.WriteMessage(websocket.TextMessage, raw))
}

// SendRaw writes a frame exactly as given.
func (p *Peer) SendRaw(frame []byte) {
	p.t.Helper()
	require.NoError(p.t, p.conn.WriteMessage(websocket.TextMessage, frame))
}

// read fills the pending queue from the next frame.
func (p *Peer) read(timeout time.Duration) error {
	if err := p.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	_, frame, err := p.conn.ReadMessage()
	if err != nil {
		return err
	}
	envs, err := protocol.DecodeFrame(frame)
	p.pending = append(p.pending, envs...)
	return err
}

// Next returns the next envelope, applying it to View.
func (p *Peer) Next() protocol.Envelope {
	p.t.Helper()

	for len(p.pending) == 0 {
		require.NoError(p.t, p.read(DefaultTimeout), "waiting for next event")
	}
	env := p.pending[0]
	p.pending = p.pending[1:]
	require.NoError(p.t, p.View.Apply(env))
	return env
}

// WaitFor consumes envelopes until one named event arrives and returns it.
// Skipped envelopes still update View.
func (p *Peer) WaitFor(event string) protocol.Envelope {
	p.t.Helper()

	deadline := time.Now().Add(DefaultTimeout)
	for time.Now().Before(deadline) {
		env := p.Next()
		if env.Event == event {
			return env
		}
	}
	require.FailNow(p.t, "timed out waiting for event", event)
	return protocol.Envelope{}
}

// Expect asserts that the next envelopes are exactly events, in order.
func (p *Peer) Expect(events ...string) []protocol.Envelope {
	p.t.Helper()

	got := make([]protocol.Envelope, 0, len(events))
	for _, want := range events {
		env := p.Next()
		require.Equal(p.t, want, env.Event)
		got = append(got, env)
	}
	return got
}

// ExpectNone asserts nothing arrives within wait. A timed out websocket read
// is permanent, so the peer cannot read again afterwards.
func (p *Peer) ExpectNone(wait time.Duration) {
	p.t.Helper()

	if len(p.pending) > 0 {
		require.Failf(p.t, "unexpected event", "got %q", p.pending[0].Event)
	}
	err := p.read(wait)
	require.Error(p.t, err, "expected no events")
	require.Empty(p.t, p.pending, "expected no events")
}

// Close sends a normal close and drops the connection. Safe to call twice.
func (p *Peer) Close() {
	if p.conn == nil {
		return
	}
	_ = p.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = p.conn.Close()
	p.conn = nil
}
