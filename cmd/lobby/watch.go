package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/urfave/cli/v3"

	"github.com/Tyrowin/lobby/internal/protocol"
)

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "connect to a lobby and print its users, rooms and chat",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "ws://localhost:8080/ws", Usage: "lobby websocket endpoint"},
			&cli.StringFlag{Name: "origin", Value: "http://localhost:8080", Usage: "Origin header to present, empty for none"},
			&cli.StringFlag{Name: "name", Usage: "display name to claim"},
			&cli.StringFlag{Name: "join", Usage: "room id to join after connecting"},
		},
		Action: runWatch,
	}
}

func runWatch(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	headers := http.Header{}
	if origin := cmd.String("origin"); origin != "" {
		headers.Set("Origin", origin)
	}
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, cmd.String("url"), headers)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("dial %s: %w", cmd.String("url"), err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}()

	if name := cmd.String("name"); name != "" {
		if err := sendEvent(conn, protocol.EventSetUsername, name); err != nil {
			return err
		}
	}
	if room := cmd.String("join"); room != "" {
		if err := sendEvent(conn, protocol.EventJoinRoom, room); err != nil {
			return err
		}
	}

	var view protocol.View
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		envs, err := protocol.DecodeFrame(frame)
		for _, env := range envs {
			if err := view.Apply(env); err != nil {
				fmt.Fprintln(os.Stderr, "bad event:", err)
				continue
			}
			printEvent(os.Stdout, &view, env)
		}
		view.Chat = view.Chat[:0]
		if err != nil {
			fmt.Fprintln(os.Stderr, "bad frame:", err)
		}
	}
}

func sendEvent(conn *websocket.Conn, event string, data any) error {
	raw, err := protocol.Encode(event, data)
	if err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		return fmt.Errorf("send %s: %w", event, err)
	}
	return nil
}

func printEvent(w io.Writer, view *protocol.View, env protocol.Envelope) {
	switch env.Event {
	case protocol.EventConnected:
		fmt.Fprintf(w, "connected as %s\n", view.Self)
	case protocol.EventUsersUpdate:
		names := make([]string, 0, len(view.Users))
		for _, u := range view.Users {
			names = append(names, describeUser(u))
		}
		fmt.Fprintf(w, "users (%d): %s\n", len(view.Users), strings.Join(names, ", "))
	case protocol.EventRoomsUpdate:
		fmt.Fprintf(w, "rooms (%d):\n", len(view.Rooms))
		for _, r := range view.Rooms {
			fmt.Fprintf(w, "  %s %q members=%d\n", r.ID, r.Name, len(r.Members))
		}
	case protocol.EventRoomCreated, protocol.EventRoomJoined:
		if room, ok := view.CurrentRoom(); ok {
			fmt.Fprintf(w, "%s: now in %s %q\n", env.Event, room.ID, room.Name)
		}
	case protocol.EventChatMessage:
		var msg protocol.ChatMessage
		if err := env.Bind(&msg); err != nil {
			fmt.Fprintf(w, "chat: %s\n", env.Data)
			return
		}
		fmt.Fprintf(w, "<%s> %s\n", msg.User, msg.Text)
	case protocol.EventError:
		fmt.Fprintf(w, "error: %s\n", view.LastError)
	default:
		fmt.Fprintf(w, "%s: %s\n", env.Event, env.Data)
	}
}

func describeUser(u protocol.User) string {
	name := "(anonymous)"
	if u.Name != nil {
		name = *u.Name
	}
	if u.Room != nil {
		name += "@" + *u.Room
	}
	return name
}

