package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/cherrydoor/cherryctl/internal/channel"
	"github.com/cherrydoor/cherryctl/internal/schedule"
	"github.com/cherrydoor/cherryctl/internal/user"
)

// Channel handlers run on the channel's dispatch goroutine; these
// messages carry their payloads into the bubbletea loop through the
// root model's event queue.

type linkMsg bool

type doorMsg channel.DoorState

type usersMsg []user.User

type serialMsg channel.SerialPush

type settingsMsg []schedule.Break

// cardMsg reports a finished card read. The uid, if any, was already
// written into its slot by the editor; this only triggers a repaint.
type cardMsg struct {
	uid string
	err error
}

// post delivers a bridged message without ever blocking the dispatch
// loop; a full queue drops the repaint, not the data behind it.
func post(events chan<- tea.Msg, msg tea.Msg) {
	select {
	case events <- msg:
	default:
	}
}

func waitForEvent(events <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-events
	}
}
