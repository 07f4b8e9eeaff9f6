package channel

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cherrydoor/cherryctl/internal/schedule"
	"github.com/cherrydoor/cherryctl/internal/user"
)

// Wire event names understood by the backend. The inbound set is
// closed: frames carrying any other name are dropped.
const (
	EventEnterRoom     = "enter_room"
	EventUsers         = "users"
	EventModifyUsers   = "modify_users"
	EventCreateUsers   = "create_users"
	EventDeleteUser    = "delete_user"
	EventGetCard       = "get_card"
	EventDoor          = "door"
	EventSerialCommand = "serial_command"
	EventSettings      = "settings"
	EventReset         = "reset"
)

// Synthetic events delivered through the same Subscribe surface.
// They never cross the wire; the channel emits them itself so views
// can show a link indicator. Payload is nil.
const (
	EventConnected    = "connected"
	EventDisconnected = "disconnected"
)

// Rooms the backend pushes scoped events to.
const (
	RoomDoor          = "door"
	RoomUsers         = "users"
	RoomSettings      = "settings"
	RoomSerialConsole = "serial_console"
)

// EnterRoom asks the server to start pushing a room's events here.
type EnterRoom struct {
	Room string `json:"room"`
}

// UsersPush is a full snapshot replace of the user collection.
type UsersPush struct {
	Users []user.User `json:"users"`
}

// ModifyUsers publishes diffed updates to existing users.
type ModifyUsers struct {
	Users []user.ModifiedUser `json:"users"`
}

// CreateUsers publishes newly created users. Password is always
// present on the wire, empty string meaning "no panel login".
type CreateUsers struct {
	Users []user.NewUser `json:"users"`
}

// DeleteUser removes a single user by name.
type DeleteUser struct {
	Username string `json:"username"`
}

// DoorState is the server's door status push.
type DoorState struct {
	Open  bool `json:"open"`
	Break bool `json:"break"`
}

// DoorCommand toggles the physical door state.
type DoorCommand struct {
	Open bool `json:"open"`
}

// SerialPush is a line of hardware/console output.
type SerialPush struct {
	Timestamp string   `json:"timestamp"`
	Command   string   `json:"command"`
	Arguments []string `json:"arguments"`
}

// SerialCommand sends a raw command to the hardware.
type SerialCommand struct {
	Command string `json:"command"`
}

// SettingsPayload carries the schedule exceptions, both directions.
type SettingsPayload struct {
	Breaks []schedule.Break `json:"breaks"`
}

// CardReply is the asynchronous reply to a get_card request.
type CardReply struct {
	UID string `json:"uid"`
}

// ErrUnknownEvent marks inbound frames whose event name is not part
// of the protocol.
var ErrUnknownEvent = errors.New("unknown event")

type decoder func(json.RawMessage) (any, error)

func decodeAs[T any](data json.RawMessage) (any, error) {
	var v T
	if len(data) > 0 {
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
	}
	return v, nil
}

var inboundDecoders = map[string]decoder{
	EventUsers:         decodeAs[UsersPush],
	EventDoor:          decodeAs[DoorState],
	EventSerialCommand: decodeAs[SerialPush],
	EventSettings:      decodeAs[SettingsPayload],
}

var replyDecoders = map[string]decoder{
	EventGetCard: decodeAs[CardReply],
}

func decodeInbound(event string, data json.RawMessage) (any, error) {
	dec, ok := inboundDecoders[event]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}
	payload, err := dec(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", event, err)
	}
	return payload, nil
}

func decodeReply(event string, data json.RawMessage) (any, error) {
	dec, ok := replyDecoders[event]
	if !ok {
		return nil, fmt.Errorf("%w: no reply shape for %q", ErrUnknownEvent, event)
	}
	payload, err := dec(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s reply: %w", event, err)
	}
	return payload, nil
}
