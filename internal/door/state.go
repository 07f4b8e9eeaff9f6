// Package door tracks the physical door state reported by the
// controller and gates the toggle operation on operator permissions.
package door

// State mirrors the controller's last door push. Local toggles never
// mutate it; only server pushes do, so a rejected toggle simply never
// shows up.
type State struct {
	Open  bool
	Break bool
	Known bool
}

// Apply records a server push.
func (s *State) Apply(open, brk bool) {
	s.Open = open
	s.Break = brk
	s.Known = true
}

// CanToggle reports whether the operator may toggle the door. This is
// a UX guard only; the server re-checks every command and its pushes
// remain the truth.
func CanToggle(permissions map[string]bool) bool {
	return permissions["enter"]
}
