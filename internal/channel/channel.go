package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
)

const sendBufferSize = 16

var (
	// ErrDisconnected fails pending requests when the connection drops.
	ErrDisconnected = errors.New("channel: disconnected")
	// ErrRequestTimeout fails pending requests that never got a reply.
	ErrRequestTimeout = errors.New("channel: request timed out")
)

// Settings holds channel timing configuration.
type Settings struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	ReadTimeout      time.Duration
	PingInterval     time.Duration
	ReconnectTimeout time.Duration
	RequestTimeout   time.Duration
}

// DefaultSettings returns the timings used when none are configured.
func DefaultSettings() *Settings {
	return &Settings{
		HandshakeTimeout: 2 * time.Second,
		WriteTimeout:     5 * time.Second,
		ReadTimeout:      15 * time.Second,
		PingInterval:     5 * time.Second,
		ReconnectTimeout: 5 * time.Second,
		RequestTimeout:   10 * time.Second,
	}
}

// Handler receives one decoded event payload per matching push.
type Handler func(payload any)

// ReplyFunc receives the outcome of a request exactly once.
type ReplyFunc func(payload any, err error)

// frame is the wire envelope. id is set by the sender of a frame that
// expects a reply; reply_to routes a server reply back to its pending
// request instead of to subscribers.
type frame struct {
	Event   string          `json:"event"`
	ID      string          `json:"id,omitempty"`
	ReplyTo string          `json:"reply_to,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type subscription struct {
	event string
	fn    Handler
}

type pendingRequest struct {
	event string
	reply ReplyFunc
	timer *time.Timer
}

// Channel is a long-lived auto-reconnecting event transport. Named
// events can be published fire-and-forget, published with a reply
// callback, or subscribed to. Server pushes are dispatched to
// subscribers one at a time on a single goroutine, so no two handlers
// ever run concurrently. The only exception is the error path of a
// request (timeout or disconnect), which may fire off-loop.
type Channel struct {
	ctx    context.Context
	cancel context.CancelFunc

	url      string
	token    string
	settings *Settings

	mu        sync.Mutex
	subs      map[string][]*subscription
	pending   map[string]*pendingRequest
	rooms     []string
	send      chan frame
	connected bool
}

// New creates a channel and starts its connection loop. url is the
// websocket endpoint; token, when non-empty, is sent as a bearer
// token on dial.
func New(ctx context.Context, url, token string, settings *Settings) *Channel {
	if settings == nil {
		settings = DefaultSettings()
	}
	cancelCtx, cancel := context.WithCancel(ctx)
	c := &Channel{
		ctx:      cancelCtx,
		cancel:   cancel,
		url:      url,
		token:    token,
		settings: settings,
		subs:     make(map[string][]*subscription),
		pending:  make(map[string]*pendingRequest),
	}
	go c.run()
	return c
}

// Close tears the connection down and stops the reconnect loop.
func (c *Channel) Close() {
	c.cancel()
}

// Subscribe registers a handler for an event name. All handlers for
// an event run in registration order. The returned function removes
// the subscription.
func (c *Channel) Subscribe(event string, fn Handler) func() {
	sub := &subscription{event: event, fn: fn}
	c.mu.Lock()
	c.subs[event] = append(c.subs[event], sub)
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		list := c.subs[event]
		for i, s := range list {
			if s == sub {
				c.subs[event] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

// Publish sends a fire-and-forget event. The frame is silently
// dropped when the connection is down; callers must not assume
// delivery. The next server push is the only success signal.
func (c *Channel) Publish(event string, payload any) error {
	f, err := newFrame(event, payload)
	if err != nil {
		return err
	}
	c.enqueue(f)
	return nil
}

// Request publishes a frame carrying a correlation id and invokes
// reply exactly once: with the decoded response when it arrives, or
// with an error on request timeout or connection loss.
func (c *Channel) Request(event string, payload any, reply ReplyFunc) {
	f, err := newFrame(event, payload)
	if err != nil {
		reply(nil, err)
		return
	}
	f.ID = ulid.Make().String()

	p := &pendingRequest{event: event, reply: reply}
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		reply(nil, ErrDisconnected)
		return
	}
	c.pending[f.ID] = p
	id := f.ID
	p.timer = time.AfterFunc(c.settings.RequestTimeout, func() {
		c.failRequest(id, ErrRequestTimeout)
	})
	c.mu.Unlock()

	c.enqueue(f)
}

// GetCard asks the attached reader for the next card presented to it.
// The reply arrives whenever a card is actually scanned.
func (c *Channel) GetCard(reply func(uid string, err error)) {
	c.Request(EventGetCard, nil, func(payload any, err error) {
		if err != nil {
			reply("", err)
			return
		}
		card, ok := payload.(CardReply)
		if !ok {
			reply("", fmt.Errorf("get_card: unexpected payload %T", payload))
			return
		}
		reply(card.UID, nil)
	})
}

// JoinScope asks the server to start pushing a room's events to this
// connection. Scopes are additive and sticky: there is no leave, and
// the channel re-issues every recorded join after each reconnect
// before emitting EventConnected.
func (c *Channel) JoinScope(room string) {
	c.mu.Lock()
	if !slices.Contains(c.rooms, room) {
		c.rooms = append(c.rooms, room)
	}
	c.mu.Unlock()
	_ = c.Publish(EventEnterRoom, EnterRoom{Room: room})
}

func newFrame(event string, payload any) (frame, error) {
	f := frame{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return frame{}, fmt.Errorf("encode %s payload: %w", event, err)
		}
		f.Data = data
	}
	return f, nil
}

func (c *Channel) enqueue(f frame) {
	c.mu.Lock()
	send := c.send
	c.mu.Unlock()
	if send == nil {
		glog.V(1).Infof("[ch]drop %s (offline)", f.Event)
		return
	}
	select {
	case send <- f:
	default:
		glog.Infof("[ch]drop %s (send queue full)", f.Event)
	}
}

func (c *Channel) run() {
	defer c.cancel()

	for {
		ws, err := c.dial()
		if err != nil {
			glog.Infof("[ch]dial %s error = %s", c.url, err)
			select {
			case <-c.ctx.Done():
				return
			case <-time.After(c.settings.ReconnectTimeout):
				continue
			}
		}

		c.serve(ws)

		c.failAllPending(ErrDisconnected)
		c.dispatch(EventDisconnected, nil)

		select {
		case <-c.ctx.Done():
			return
		case <-time.After(c.settings.ReconnectTimeout):
		}
	}
}

func (c *Channel) dial() (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: c.settings.HandshakeTimeout}
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	ws, _, err := dialer.DialContext(c.ctx, c.url, header)
	return ws, err
}

// serve owns one connection until it dies. Writes happen on a
// dedicated goroutine; reads and handler dispatch stay here.
func (c *Channel) serve(ws *websocket.Conn) {
	defer ws.Close()

	handleCtx, handleCancel := context.WithCancel(c.ctx)
	defer handleCancel()

	send := make(chan frame, sendBufferSize)

	c.mu.Lock()
	c.send = send
	c.connected = true
	rooms := slices.Clone(c.rooms)
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.connected = false
		c.send = nil
		c.mu.Unlock()
	}()

	go func() {
		defer handleCancel()
		for {
			select {
			case <-handleCtx.Done():
				return
			case f := <-send:
				data, err := json.Marshal(f)
				if err != nil {
					glog.Infof("[ch]encode %s error = %s", f.Event, err)
					continue
				}
				ws.SetWriteDeadline(time.Now().Add(c.settings.WriteTimeout))
				if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
					glog.Infof("[ch]-> error = %s", err)
					return
				}
				glog.V(2).Infof("[ch]-> %s", f.Event)
			case <-time.After(c.settings.PingInterval):
				ws.SetWriteDeadline(time.Now().Add(c.settings.WriteTimeout))
				if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(c.settings.ReadTimeout))
	})

	// Replay room membership before telling anyone we are back, so a
	// reconnect never silently resumes without its scopes.
	for _, room := range rooms {
		f, _ := newFrame(EventEnterRoom, EnterRoom{Room: room})
		select {
		case send <- f:
		case <-handleCtx.Done():
			return
		}
	}
	c.dispatch(EventConnected, nil)

	for {
		select {
		case <-handleCtx.Done():
			return
		default:
		}

		ws.SetReadDeadline(time.Now().Add(c.settings.ReadTimeout))
		_, data, err := ws.ReadMessage()
		if err != nil {
			glog.Infof("[ch]<- error = %s", err)
			return
		}
		if len(data) == 0 {
			continue
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			glog.Infof("[ch]<- bad frame: %s", err)
			continue
		}
		c.receive(f)
	}
}

func (c *Channel) receive(f frame) {
	if f.ReplyTo != "" {
		c.mu.Lock()
		p, ok := c.pending[f.ReplyTo]
		if ok {
			delete(c.pending, f.ReplyTo)
			p.timer.Stop()
		}
		c.mu.Unlock()
		if !ok {
			// Late reply after timeout or reconnect.
			glog.V(1).Infof("[ch]<- orphan reply %s", f.Event)
			return
		}
		payload, err := decodeReply(p.event, f.Data)
		p.reply(payload, err)
		return
	}

	payload, err := decodeInbound(f.Event, f.Data)
	if err != nil {
		glog.Infof("[ch]<- drop %s: %s", f.Event, err)
		return
	}
	glog.V(2).Infof("[ch]<- %s", f.Event)
	c.dispatch(f.Event, payload)
}

func (c *Channel) dispatch(event string, payload any) {
	c.mu.Lock()
	subs := slices.Clone(c.subs[event])
	c.mu.Unlock()
	for _, s := range subs {
		s.fn(payload)
	}
}

func (c *Channel) failRequest(id string, err error) {
	c.mu.Lock()
	p, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()
	if ok {
		p.reply(nil, err)
	}
}

func (c *Channel) failAllPending(err error) {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[string]*pendingRequest)
	c.mu.Unlock()
	for _, p := range pending {
		p.timer.Stop()
		p.reply(nil, err)
	}
}
