package user

import (
	"errors"
	"fmt"
	"maps"
	"sync"
)

// Conn is the outbound slice of the event channel the editor drives.
type Conn interface {
	ModifyUsers(users []ModifiedUser) error
	CreateUsers(users []NewUser) error
	DeleteUser(username string) error
}

// StagingTarget is the sentinel user index addressing the new-user
// staging area instead of a working-set row.
const StagingTarget = -1

// Staging is the input area for a user that does not exist yet.
type Staging struct {
	Username    string
	Password    string
	Permissions map[string]bool
	Cards       []string
}

func (s Staging) clone() Staging {
	c := s
	c.Permissions = maps.Clone(s.Permissions)
	c.Cards = append([]string(nil), s.Cards...)
	return c
}

// Editor holds the operator's in-progress edit copy of a snapshot,
// the new-user staging area, and the save/delete operations against
// the server. All methods are safe for the UI loop and the channel
// dispatch loop to interleave.
//
// Working rows are never reordered or removed relative to the
// baseline; new rows are appended past the baseline length so the
// diff stays positional.
type Editor struct {
	mu       sync.Mutex
	identity map[string]bool
	baseline []User
	working  []User
	staging  Staging

	// gen invalidates card-slot writers handed out before the slot
	// layout last changed.
	gen uint64
}

// NewEditor creates an editor for an operator whose permission map is
// the session's permission vocabulary.
func NewEditor(identity map[string]bool) *Editor {
	e := &Editor{identity: maps.Clone(identity)}
	e.staging = e.seedStaging()
	return e
}

// Reset replaces both baseline and working set with a fresh copy of
// the snapshot, discarding any in-progress edits, and reseeds the
// staging area.
func (e *Editor) Reset(snap *Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if snap == nil {
		e.baseline = nil
		e.working = nil
	} else {
		e.baseline = cloneAll(snap.Users)
		e.working = cloneAll(snap.Users)
	}
	e.staging = e.seedStaging()
	e.gen++
}

// Working returns a copy of the working set.
func (e *Editor) Working() []User {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneAll(e.working)
}

// BaselineLen returns the number of rows that have a server-side
// counterpart; rows at or past this index are pending creations.
func (e *Editor) BaselineLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.baseline)
}

// Staging returns a copy of the new-user staging area.
func (e *Editor) Staging() Staging {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.staging.clone()
}

// SetUsername renames a working row.
func (e *Editor) SetUsername(i int, name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i >= 0 && i < len(e.working) {
		e.working[i].Username = name
	}
}

// SetPassword stages a new password for a working row. It is sent on
// the next save only for rows that actually changed.
func (e *Editor) SetPassword(i int, password string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i >= 0 && i < len(e.working) {
		e.working[i].Password = password
	}
}

// SetPermission flips a permission on a working row. Keys the
// operator does not hold cannot be touched, and keys outside the
// session vocabulary are never invented.
func (e *Editor) SetPermission(i int, key string, value bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.identity[key] {
		return
	}
	if i < 0 || i >= len(e.working) {
		return
	}
	if _, ok := e.working[i].Permissions[key]; !ok {
		return
	}
	e.working[i].Permissions[key] = value
}

// SetCard overwrites one card slot.
func (e *Editor) SetCard(i, j int, uid string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i < 0 || i >= len(e.working) {
		return
	}
	if j < 0 || j >= len(e.working[i].Cards) {
		return
	}
	e.working[i].Cards[j] = uid
}

// AddCard appends an empty card slot to a working row and returns its
// index, or -1 when the row does not exist.
func (e *Editor) AddCard(i int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i < 0 || i >= len(e.working) {
		return -1
	}
	e.working[i].Cards = append(e.working[i].Cards, "")
	return len(e.working[i].Cards) - 1
}

// RemoveCard deletes a card slot. Outstanding reader requests for any
// slot become stale: indices shift, so their writes are dropped.
func (e *Editor) RemoveCard(i, j int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i < 0 || i >= len(e.working) {
		return
	}
	cards := e.working[i].Cards
	if j < 0 || j >= len(cards) {
		return
	}
	e.working[i].Cards = append(cards[:j:j], cards[j+1:]...)
	e.gen++
}

// SetStagedUsername sets the staged username.
func (e *Editor) SetStagedUsername(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.staging.Username = name
}

// SetStagedPassword sets the staged password. Empty means "no panel
// login" and is accepted.
func (e *Editor) SetStagedPassword(password string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.staging.Password = password
}

// SetStagedPermission flips a staged permission, with the same grant
// guard as SetPermission.
func (e *Editor) SetStagedPermission(key string, value bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.identity[key] {
		return
	}
	if _, ok := e.staging.Permissions[key]; !ok {
		return
	}
	e.staging.Permissions[key] = value
}

// AddStagedCard appends an empty staged card slot and returns its
// index.
func (e *Editor) AddStagedCard() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.staging.Cards = append(e.staging.Cards, "")
	return len(e.staging.Cards) - 1
}

// SetStagedCard overwrites one staged card slot.
func (e *Editor) SetStagedCard(j int, uid string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if j < 0 || j >= len(e.staging.Cards) {
		return
	}
	e.staging.Cards[j] = uid
}

// RemoveStagedCard deletes a staged card slot.
func (e *Editor) RemoveStagedCard(j int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if j < 0 || j >= len(e.staging.Cards) {
		return
	}
	e.staging.Cards = append(e.staging.Cards[:j:j], e.staging.Cards[j+1:]...)
	e.gen++
}

// AddStaged appends the staged user to the working set, past the
// baseline so it lands in Created on the next save, and reseeds the
// staging area with defaults.
func (e *Editor) AddStaged() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.staging.Username == "" {
		return errors.New("new user needs a username")
	}
	s := e.staging.clone()
	e.working = append(e.working, User{
		Username:    s.Username,
		Permissions: s.Permissions,
		Cards:       s.Cards,
		Password:    s.Password,
	})
	e.staging = e.seedStaging()
	e.gen++
	return nil
}

// CardSlot returns a writer bound to one card slot, for delivering an
// asynchronous reader reply. Use StagingTarget as the user index to
// address the staging area. If the slot layout changed since the
// writer was handed out (slot removed, staging consumed, snapshot
// replaced), the write is silently dropped.
func (e *Editor) CardSlot(userIdx, cardIdx int) func(uid string) {
	e.mu.Lock()
	gen := e.gen
	e.mu.Unlock()

	return func(uid string) {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.gen != gen {
			return
		}
		if userIdx == StagingTarget {
			if cardIdx >= 0 && cardIdx < len(e.staging.Cards) {
				e.staging.Cards[cardIdx] = uid
			}
			return
		}
		if userIdx < 0 || userIdx >= len(e.working) {
			return
		}
		if cardIdx < 0 || cardIdx >= len(e.working[userIdx].Cards) {
			return
		}
		e.working[userIdx].Cards[cardIdx] = uid
	}
}

// Save diffs the working set against the baseline and publishes the
// modified and created subsets as two independent fire-and-forget
// events, each only when non-empty. Success is observable only
// through the next snapshot push. The computed delta is returned for
// display.
func (e *Editor) Save(conn Conn) (Delta, error) {
	e.mu.Lock()
	d := ComputeDelta(e.baseline, e.working)
	e.mu.Unlock()

	var errs []error
	if len(d.Modified) > 0 {
		if err := conn.ModifyUsers(d.Modified); err != nil {
			errs = append(errs, fmt.Errorf("publish modified users: %w", err))
		}
	}
	if len(d.Created) > 0 {
		created := make([]NewUser, len(d.Created))
		for i, u := range d.Created {
			created[i] = NewUser{
				Username:    u.Username,
				Permissions: u.Permissions,
				Cards:       u.Cards,
				Password:    u.Password,
			}
		}
		if err := conn.CreateUsers(created); err != nil {
			errs = append(errs, fmt.Errorf("publish created users: %w", err))
		}
	}
	return d, errors.Join(errs...)
}

// Delete publishes an immediate remove for one user. The caller must
// have confirmed the action with the operator first. The row is not
// removed locally; the next snapshot push is the refresh.
func (e *Editor) Delete(conn Conn, username string) error {
	return conn.DeleteUser(username)
}

func (e *Editor) seedStaging() Staging {
	perms := make(map[string]bool, len(e.identity))
	for key := range e.identity {
		perms[key] = false
	}
	if e.identity["enter"] {
		perms["enter"] = true
	}
	return Staging{Permissions: perms}
}
