package user

import "maps"

// User is the wire entity for a panel user. Permissions always carry
// the full key set of the operator's own permission map; the server
// sends every key with an explicit boolean. Password is write-only:
// the server never echoes it back, so it is empty on every snapshot
// and omitted from modify payloads unless the operator typed one.
//
// Per-field edit state is deliberately not part of this struct; it
// lives in the view layer, keyed by row index, and never crosses the
// wire.
type User struct {
	Username    string          `json:"username"`
	Permissions map[string]bool `json:"permissions"`
	Cards       []string        `json:"cards"`
	Password    string          `json:"password,omitempty"`
}

// ModifiedUser is a User plus the rename key: the username the server
// last confirmed, so it can locate the row even when the primary key
// changed.
type ModifiedUser struct {
	User
	CurrentUsername string `json:"current_username"`
}

// NewUser is the create-payload shape. Unlike User, the password
// field is always present on the wire; an empty string means "no
// panel login".
type NewUser struct {
	Username    string          `json:"username"`
	Permissions map[string]bool `json:"permissions"`
	Cards       []string        `json:"cards"`
	Password    string          `json:"password"`
}

// Clone returns a deep copy.
func (u User) Clone() User {
	c := u
	if u.Permissions != nil {
		c.Permissions = maps.Clone(u.Permissions)
	}
	if u.Cards != nil {
		c.Cards = append([]string(nil), u.Cards...)
	}
	return c
}

func cloneAll(users []User) []User {
	out := make([]User, len(users))
	for i, u := range users {
		out[i] = u.Clone()
	}
	return out
}
