package channel

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

const testWait = 3 * time.Second

func testSettings() *Settings {
	s := DefaultSettings()
	s.HandshakeTimeout = time.Second
	s.ReconnectTimeout = 50 * time.Millisecond
	s.RequestTimeout = time.Second
	return s
}

// wsServer upgrades every request and hands the connection to fn on
// its own goroutine.
func wsServer(t *testing.T, fn func(ws *websocket.Conn, r *http.Request)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		fn(ws, r)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func readFrame(t *testing.T, ws *websocket.Conn) frame {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(testWait))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Errorf("server read: %v", err)
		return frame{}
	}
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		t.Errorf("server decode: %v", err)
	}
	return f
}

func writeFrame(t *testing.T, ws *websocket.Conn, f frame) {
	t.Helper()
	data, err := json.Marshal(f)
	if err != nil {
		t.Errorf("server encode: %v", err)
		return
	}
	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Errorf("server write: %v", err)
	}
}

func waitFor[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(testWait):
		t.Fatalf("timed out waiting for %s", what)
		panic("unreachable")
	}
}

func TestChannelPublishAndPush(t *testing.T) {
	gotAuth := make(chan string, 1)
	published := make(chan frame, 1)

	url := wsServer(t, func(ws *websocket.Conn, r *http.Request) {
		gotAuth <- r.Header.Get("Authorization")
		writeFrame(t, ws, frame{Event: EventDoor, Data: json.RawMessage(`{"open":true,"break":false}`)})
		published <- readFrame(t, ws)
		select {}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := New(ctx, url, "secret", testSettings())
	defer c.Close()

	pushes := make(chan DoorState, 1)
	c.Subscribe(EventDoor, func(payload any) {
		if d, ok := payload.(DoorState); ok {
			pushes <- d
		}
	})
	connected := make(chan struct{}, 1)
	c.Subscribe(EventConnected, func(any) {
		select {
		case connected <- struct{}{}:
		default:
		}
	})

	waitFor(t, connected, "connect")
	if auth := waitFor(t, gotAuth, "auth header"); auth != "Bearer secret" {
		t.Fatalf("expected bearer token on dial, got %q", auth)
	}

	push := waitFor(t, pushes, "door push")
	if !push.Open || push.Break {
		t.Fatalf("expected open=true break=false, got %+v", push)
	}

	if err := c.SetDoor(false); err != nil {
		t.Fatalf("SetDoor: %v", err)
	}
	f := waitFor(t, published, "published frame")
	if f.Event != EventDoor {
		t.Fatalf("expected event=%s, got %s", EventDoor, f.Event)
	}
	var cmd DoorCommand
	if err := json.Unmarshal(f.Data, &cmd); err != nil {
		t.Fatalf("decode published payload: %v", err)
	}
	if cmd.Open {
		t.Fatal("expected open=false in published command")
	}
}

func TestChannelRequestReply(t *testing.T) {
	url := wsServer(t, func(ws *websocket.Conn, r *http.Request) {
		f := readFrame(t, ws)
		if f.Event != EventGetCard {
			t.Errorf("expected get_card request, got %s", f.Event)
			return
		}
		if f.ID == "" {
			t.Error("expected request to carry a correlation id")
			return
		}
		writeFrame(t, ws, frame{
			Event:   EventGetCard,
			ReplyTo: f.ID,
			Data:    json.RawMessage(`{"uid":"04A1B2"}`),
		})
		select {}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := New(ctx, url, "", testSettings())
	defer c.Close()

	connected := make(chan struct{}, 1)
	c.Subscribe(EventConnected, func(any) {
		select {
		case connected <- struct{}{}:
		default:
		}
	})
	waitFor(t, connected, "connect")

	type result struct {
		uid string
		err error
	}
	done := make(chan result, 1)
	c.GetCard(func(uid string, err error) {
		done <- result{uid, err}
	})

	res := waitFor(t, done, "card reply")
	if res.err != nil {
		t.Fatalf("GetCard: %v", res.err)
	}
	if res.uid != "04A1B2" {
		t.Fatalf("expected uid=04A1B2, got %q", res.uid)
	}
}

func TestChannelRequestTimeout(t *testing.T) {
	url := wsServer(t, func(ws *websocket.Conn, r *http.Request) {
		readFrame(t, ws) // swallow the request, never reply
		select {}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	settings := testSettings()
	settings.RequestTimeout = 50 * time.Millisecond
	c := New(ctx, url, "", settings)
	defer c.Close()

	connected := make(chan struct{}, 1)
	c.Subscribe(EventConnected, func(any) {
		select {
		case connected <- struct{}{}:
		default:
		}
	})
	waitFor(t, connected, "connect")

	errs := make(chan error, 1)
	c.Request(EventGetCard, nil, func(_ any, err error) {
		errs <- err
	})

	if err := waitFor(t, errs, "timeout error"); !errors.Is(err, ErrRequestTimeout) {
		t.Fatalf("expected ErrRequestTimeout, got %v", err)
	}
}

func TestChannelRequestWhileDisconnected(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// Nothing listens here; the channel keeps retrying the dial.
	c := New(ctx, "ws://127.0.0.1:1/ws", "", testSettings())
	defer c.Close()

	errs := make(chan error, 1)
	c.Request(EventGetCard, nil, func(_ any, err error) {
		errs <- err
	})

	if err := waitFor(t, errs, "disconnected error"); !errors.Is(err, ErrDisconnected) {
		t.Fatalf("expected ErrDisconnected, got %v", err)
	}
}

func TestChannelUnknownEventDropped(t *testing.T) {
	url := wsServer(t, func(ws *websocket.Conn, r *http.Request) {
		writeFrame(t, ws, frame{Event: "telemetry", Data: json.RawMessage(`{"x":1}`)})
		writeFrame(t, ws, frame{Event: EventDoor, Data: json.RawMessage(`{"open":true,"break":false}`)})
		select {}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := New(ctx, url, "", testSettings())
	defer c.Close()

	events := make(chan string, 4)
	c.Subscribe("telemetry", func(any) { events <- "telemetry" })
	c.Subscribe(EventDoor, func(any) { events <- EventDoor })

	// Dispatch is ordered: the door push arriving proves the unknown
	// frame before it was dropped, not queued.
	if got := waitFor(t, events, "door push"); got != EventDoor {
		t.Fatalf("expected only the door event dispatched, got %s", got)
	}
}

func TestChannelRejoinsRoomsAfterReconnect(t *testing.T) {
	joins := make(chan string, 4)
	conns := 0
	url := wsServer(t, func(ws *websocket.Conn, r *http.Request) {
		conns++
		f := readFrame(t, ws)
		if f.Event == EventEnterRoom {
			var join EnterRoom
			if err := json.Unmarshal(f.Data, &join); err == nil {
				joins <- join.Room
			}
		}
		if conns == 1 {
			ws.Close()
			return
		}
		select {}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := New(ctx, url, "", testSettings())
	defer c.Close()

	connected := make(chan struct{}, 4)
	c.Subscribe(EventConnected, func(any) { connected <- struct{}{} })

	waitFor(t, connected, "first connect")
	c.JoinScope(RoomUsers)
	if room := waitFor(t, joins, "initial join"); room != RoomUsers {
		t.Fatalf("expected join for %s, got %s", RoomUsers, room)
	}

	// The server hangs up; the channel reconnects and must replay the
	// room membership before announcing the new link.
	waitFor(t, connected, "reconnect")
	if room := waitFor(t, joins, "replayed join"); room != RoomUsers {
		t.Fatalf("expected replayed join for %s, got %s", RoomUsers, room)
	}
}

func TestChannelPendingRequestsFailOnDisconnect(t *testing.T) {
	accepted := make(chan *websocket.Conn, 1)
	received := make(chan struct{})
	url := wsServer(t, func(ws *websocket.Conn, r *http.Request) {
		accepted <- ws
		readFrame(t, ws)
		close(received)
		select {}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := New(ctx, url, "", testSettings())
	defer c.Close()

	connected := make(chan struct{}, 2)
	c.Subscribe(EventConnected, func(any) { connected <- struct{}{} })
	waitFor(t, connected, "connect")
	ws := waitFor(t, accepted, "server side of the connection")

	errs := make(chan error, 1)
	c.Request(EventGetCard, nil, func(_ any, err error) {
		errs <- err
	})

	waitFor(t, received, "request to reach the server")
	ws.Close()
	if err := waitFor(t, errs, "disconnect error"); !errors.Is(err, ErrDisconnected) {
		t.Fatalf("expected ErrDisconnected, got %v", err)
	}
}
