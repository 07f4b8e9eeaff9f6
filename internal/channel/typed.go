package channel

import (
	"github.com/cherrydoor/cherryctl/internal/schedule"
	"github.com/cherrydoor/cherryctl/internal/user"
)

// Typed outbound surface. Every event the console can publish has a
// method here, so payload shapes are checked at compile time and the
// raw Publish never needs to leave this package's callers.

// ModifyUsers publishes diffed updates to existing users.
func (c *Channel) ModifyUsers(users []user.ModifiedUser) error {
	return c.Publish(EventModifyUsers, ModifyUsers{Users: users})
}

// CreateUsers publishes newly created users.
func (c *Channel) CreateUsers(users []user.NewUser) error {
	return c.Publish(EventCreateUsers, CreateUsers{Users: users})
}

// DeleteUser removes one user by name.
func (c *Channel) DeleteUser(username string) error {
	return c.Publish(EventDeleteUser, DeleteUser{Username: username})
}

// SetDoor toggles the physical door state.
func (c *Channel) SetDoor(open bool) error {
	return c.Publish(EventDoor, DoorCommand{Open: open})
}

// SendSerial sends one raw command line to the hardware.
func (c *Channel) SendSerial(command string) error {
	return c.Publish(EventSerialCommand, SerialCommand{Command: command})
}

// SaveBreaks publishes the schedule exceptions.
func (c *Channel) SaveBreaks(breaks []schedule.Break) error {
	return c.Publish(EventSettings, SettingsPayload{Breaks: breaks})
}

// Reset asks the hardware to reset itself.
func (c *Channel) Reset() error {
	return c.Publish(EventReset, nil)
}
