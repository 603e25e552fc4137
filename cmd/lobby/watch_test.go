package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/lobby/internal/protocol"
)

func TestPrintEvent(t *testing.T) {
	name, room := "Ann", "r1"
	events := []struct {
		event string
		data  any
	}{
		{protocol.EventConnected, protocol.Connected{ID: "c1"}},
		{protocol.EventUsersUpdate, []protocol.User{{ID: "c1", Name: &name, Room: &room}, {ID: "c2"}}},
		{protocol.EventRoomsUpdate, []protocol.Room{{ID: "r1", Name: "Alpha", Creator: "c1", Members: []string{"c1"}}}},
		{protocol.EventRoomCreated, protocol.Room{ID: "r1", Name: "Alpha", Creator: "c1", Members: []string{"c1"}}},
		{protocol.EventChatMessage, protocol.ChatMessage{User: "Ann", Text: "hi"}},
		{protocol.EventError, protocol.ErrMsgRoomNotFound},
	}

	var out bytes.Buffer
	var view protocol.View
	for _, e := range events {
		raw, err := protocol.Encode(e.event, e.data)
		require.NoError(t, err)
		env, err := protocol.Decode(raw)
		require.NoError(t, err)
		require.NoError(t, view.Apply(env))
		printEvent(&out, &view, env)
	}

	assert.Equal(t, "connected as c1\n"+
		"users (2): Ann@r1, (anonymous)\n"+
		"rooms (1):\n"+
		"  r1 \"Alpha\" members=1\n"+
		"roomCreated: now in r1 \"Alpha\"\n"+
		"<Ann> hi\n"+
		"error: Room not found\n", out.String())
}
