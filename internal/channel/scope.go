package channel

import "sync"

// Scope ties a room membership to a set of event subscriptions so a
// view can bring its listeners up and down as a unit. Only the active
// view should hold live handlers for chatty pushes; room membership
// itself is sticky on the server, so Deactivate detaches the local
// handlers and nothing more.
type Scope struct {
	ch   *Channel
	room string

	mu      sync.Mutex
	cancels []func()
}

// Scoped creates a scope for a room. Call On to attach handlers, then
// Activate to join the room.
func (c *Channel) Scoped(room string) *Scope {
	return &Scope{ch: c, room: room}
}

// On subscribes a handler that lives until Deactivate.
func (s *Scope) On(event string, fn Handler) {
	cancel := s.ch.Subscribe(event, fn)
	s.mu.Lock()
	s.cancels = append(s.cancels, cancel)
	s.mu.Unlock()
}

// Activate joins the room. The server starts (or continues) pushing
// the room's events; handlers attached with On receive them.
func (s *Scope) Activate() {
	s.ch.JoinScope(s.room)
}

// Deactivate removes every handler attached with On. The scope can be
// reused: attach new handlers and Activate again.
func (s *Scope) Deactivate() {
	s.mu.Lock()
	cancels := s.cancels
	s.cancels = nil
	s.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
}
