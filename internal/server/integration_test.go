package server_test

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/lobby/internal/protocol"
	"github.com/Tyrowin/lobby/internal/server"
	"github.com/Tyrowin/lobby/internal/testutil"
)

// startLobby runs a hub behind an httptest server and returns the ws URL.
func startLobby(t *testing.T, customize func(cfg *server.Config)) (*server.Hub, *httptest.Server, string) {
	t.Helper()

	cfg := server.NewConfig()
	if customize != nil {
		customize(cfg)
	}
	hub, err := server.NewHub(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	server.StartHub(hub)

	ts := httptest.NewServer(server.SetupRoutes(hub))
	t.Cleanup(func() {
		ts.Close()
		_ = hub.Shutdown(2 * time.Second)
	})
	return hub, ts, testutil.WebSocketURL(ts.URL)
}

func TestHealthEndpoints(t *testing.T) {
	_, ts, _ := startLobby(t, nil)

	resp := testutil.MakeRequest(t, http.MethodGet, ts.URL+"/")
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/plain", resp.Header.Get("Content-Type"))
	assert.Equal(t, "Lobby server is running!", string(body))

	resp = testutil.MakeRequest(t, http.MethodGet, ts.URL+"/healthz")
	body, err = io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestWebSocketEndpointRejectsNonGET(t *testing.T) {
	_, ts, _ := startLobby(t, nil)

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		resp := testutil.MakeRequest(t, method, ts.URL+"/ws")
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode, method)
	}

	resp := testutil.MakeRequest(t, http.MethodGet, ts.URL+"/ws")
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "plain GET without upgrade headers")
}

func TestWebSocketOriginValidation(t *testing.T) {
	_, _, wsURL := startLobby(t, nil)

	_, resp, err := testutil.ConnectWebSocket(wsURL, "http://evil.example")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	_, _, err = testutil.ConnectWebSocket(wsURL, "")
	assert.Error(t, err, "non-browser clients need a wildcard")

	conn, _, err := testutil.ConnectWebSocket(wsURL, testutil.DefaultOrigin)
	require.NoError(t, err)
	_ = conn.Close()
}

func TestWildcardOriginAllowsCLIClients(t *testing.T) {
	_, _, wsURL := startLobby(t, func(cfg *server.Config) {
		cfg.AllowedOrigins = []string{"*"}
	})

	conn, _, err := testutil.ConnectWebSocket(wsURL, "")
	require.NoError(t, err)
	_ = conn.Close()
}

func TestLobbyEndToEnd(t *testing.T) {
	_, ts, wsURL := startLobby(t, nil)

	ann := testutil.Dial(t, wsURL)
	bo := testutil.Dial(t, wsURL)
	require.NotEqual(t, ann.ID(), bo.ID())

	// Existing clients learn about the newcomer straight away.
	ann.Expect(protocol.EventUsersUpdate)
	assert.Equal(t, bo.View.Users, ann.View.Users)
	_, ok := ann.View.User(bo.ID())
	assert.True(t, ok)

	ann.Send(protocol.EventSetUsername, "Ann")
	ann.WaitFor(protocol.EventUsersUpdate)
	bo.WaitFor(protocol.EventUsersUpdate)
	user, ok := bo.View.User(ann.ID())
	require.True(t, ok)
	require.NotNil(t, user.Name)
	assert.Equal(t, "Ann", *user.Name)

	ann.Send(protocol.EventCreateRoom, "Alpha")
	ack := ann.WaitFor(protocol.EventRoomCreated)
	var alpha protocol.Room
	require.NoError(t, ack.Bind(&alpha))
	assert.Len(t, alpha.ID, 6)
	assert.Equal(t, ann.ID(), alpha.Creator)

	bo.WaitFor(protocol.EventUsersUpdate)
	bo.Send(protocol.EventJoinRoom, alpha.ID)
	bo.WaitFor(protocol.EventRoomJoined)
	room, ok := bo.View.CurrentRoom()
	require.True(t, ok)
	assert.Equal(t, []string{ann.ID(), bo.ID()}, room.Members)

	ann.Expect(protocol.EventRoomsUpdate, protocol.EventUsersUpdate)
	assert.Len(t, ann.View.Rooms[0].Members, 2)

	bo.Send(protocol.EventJoinRoom, "nope")
	failure := bo.WaitFor(protocol.EventError)
	msg, err := failure.Text()
	require.NoError(t, err)
	assert.Equal(t, protocol.ErrMsgRoomNotFound, msg)

	bo.Send(protocol.EventChatMessage, protocol.ChatMessage{User: "Ann", Text: "not really Ann"})
	for _, p := range []*testutil.Peer{ann, bo} {
		chat := p.WaitFor(protocol.EventChatMessage)
		assert.JSONEq(t, `{"user":"Ann","text":"not really Ann"}`, string(chat.Data))
	}

	resp := testutil.MakeRequest(t, http.MethodGet, ts.URL+"/stats")
	var stats server.Stats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	_ = resp.Body.Close()
	assert.Equal(t, server.Stats{Connections: 2, Rooms: 1}, stats)

	ann.Close()
	bo.Expect(protocol.EventUsersUpdate, protocol.EventRoomsUpdate)
	assert.Len(t, bo.View.Users, 1)
	require.Len(t, bo.View.Rooms, 1)
	assert.Equal(t, []string{bo.ID()}, bo.View.Rooms[0].Members)

	bo.Close()
}

func TestBatchedFrameIsProcessedInOrder(t *testing.T) {
	_, _, wsURL := startLobby(t, nil)
	p := testutil.Dial(t, wsURL)

	name, _ := protocol.Encode(protocol.EventSetUsername, "Cy")
	room, _ := protocol.Encode(protocol.EventCreateRoom, "Gamma")
	frame := strings.Join([]string{string(name), "{not json", string(room)}, "\n")
	p.SendRaw([]byte(frame))

	p.Expect(
		protocol.EventUsersUpdate,
		protocol.EventRoomsUpdate,
		protocol.EventUsersUpdate,
		protocol.EventRoomCreated,
	)
	self, ok := p.View.User(p.ID())
	require.True(t, ok)
	require.NotNil(t, self.Name)
	assert.Equal(t, "Cy", *self.Name)
	current, ok := p.View.CurrentRoom()
	require.True(t, ok)
	assert.Equal(t, "Gamma", current.Name)
}

func TestDisconnectFollowsEarlierRequests(t *testing.T) {
	_, _, wsURL := startLobby(t, nil)
	watcher := testutil.Dial(t, wsURL)
	leaver := testutil.Dial(t, wsURL)
	watcher.Expect(protocol.EventUsersUpdate)

	leaver.Send(protocol.EventCreateRoom, "Fleeting")
	leaver.Send(protocol.EventChatMessage, protocol.ChatMessage{User: "gone", Text: "bye"})
	leaver.Close()

	got := watcher.Expect(
		protocol.EventRoomsUpdate,
		protocol.EventUsersUpdate,
		protocol.EventChatMessage,
		protocol.EventUsersUpdate,
		protocol.EventRoomsUpdate,
	)

	var created []protocol.Room
	require.NoError(t, got[0].Bind(&created))
	require.Len(t, created, 1)
	assert.Equal(t, "Fleeting", created[0].Name)
	assert.JSONEq(t, `{"user":"gone","text":"bye"}`, string(got[2].Data))

	assert.Empty(t, watcher.View.Rooms, "room is removed with its only member")
	require.Len(t, watcher.View.Users, 1)
	assert.Equal(t, watcher.ID(), watcher.View.Users[0].ID)
}

func TestMessageSizeLimit(t *testing.T) {
	_, _, wsURL := startLobby(t, func(cfg *server.Config) {
		cfg.MaxMessageSize = 128
	})
	watcher := testutil.Dial(t, wsURL)
	big := testutil.Dial(t, wsURL)
	watcher.Expect(protocol.EventUsersUpdate)

	big.Send(protocol.EventSetUsername, strings.Repeat("x", 256))

	// The oversized frame closes the sender, which everyone sees as a disconnect.
	watcher.Expect(protocol.EventUsersUpdate, protocol.EventRoomsUpdate)
	require.Len(t, watcher.View.Users, 1)
	assert.Equal(t, watcher.ID(), watcher.View.Users[0].ID)
	assert.Nil(t, watcher.View.Users[0].Name)
}

func TestRateLimitDropsExcessFrames(t *testing.T) {
	_, _, wsURL := startLobby(t, func(cfg *server.Config) {
		cfg.RateLimit.Burst = 2
		cfg.RateLimit.RefillInterval = time.Hour
	})
	p := testutil.Dial(t, wsURL)

	for _, name := range []string{"one", "two", "three", "four"} {
		p.Send(protocol.EventSetUsername, name)
	}

	p.Expect(protocol.EventUsersUpdate, protocol.EventUsersUpdate)
	self, _ := p.View.User(p.ID())
	require.NotNil(t, self.Name)
	assert.Equal(t, "two", *self.Name)
	p.ExpectNone(200 * time.Millisecond)
}

func TestGracefulShutdownClosesClients(t *testing.T) {
	hub, _, wsURL := startLobby(t, nil)

	conns := make([]*websocket.Conn, 0, 3)
	for i := 0; i < 3; i++ {
		conn, _, err := testutil.ConnectWebSocket(wsURL, testutil.DefaultOrigin)
		require.NoError(t, err)
		conns = append(conns, conn)
	}
	require.Eventually(t, func() bool {
		return hub.Stats().Connections == 3
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, hub.Shutdown(2*time.Second))

	for _, conn := range conns {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var err error
		for err == nil {
			_, _, err = conn.ReadMessage()
		}
		var netErr net.Error
		if errors.As(err, &netErr) {
			assert.False(t, netErr.Timeout(), "connection should be closed by the server")
		}
		_ = conn.Close()
	}

	// The handshake still completes but the hub turns the client away.
	conn, _, err := testutil.ConnectWebSocket(wsURL, testutil.DefaultOrigin)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}
