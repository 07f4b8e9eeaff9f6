package ui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/cherrydoor/cherryctl/internal/admin/app"
	"github.com/cherrydoor/cherryctl/internal/channel"
	"github.com/cherrydoor/cherryctl/internal/door"
)

var openStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)

type doorModel struct {
	app   *app.App
	scope *channel.Scope

	width  int
	height int

	Done bool

	state  door.State
	status string
}

func newDoorModel(a *app.App, events chan<- tea.Msg) *doorModel {
	m := &doorModel{app: a}

	m.scope = a.Channel.Scoped(channel.RoomDoor)
	m.scope.On(channel.EventDoor, func(payload any) {
		if state, ok := payload.(channel.DoorState); ok {
			post(events, doorMsg(state))
		}
	})
	m.scope.Activate()

	return m
}

func (m *doorModel) Close() {
	m.scope.Deactivate()
}

func (m *doorModel) SetSize(w, h int) {
	m.width, m.height = w, h
}

func (m *doorModel) handleDoor(msg doorMsg) tea.Cmd {
	m.state.Apply(msg.Open, msg.Break)
	m.status = ""
	return nil
}

func (m *doorModel) Update(msg tea.Msg) tea.Cmd {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return nil
	}

	switch key.String() {
	case "q", "esc":
		m.Done = true
	case "enter", " ", "t":
		if !door.CanToggle(m.app.Identity.Permissions) {
			m.status = "the enter permission is required to toggle the door"
			return nil
		}
		if err := m.app.Channel.SetDoor(!m.state.Open); err != nil {
			m.status = err.Error()
			return nil
		}
		// No optimistic flip: the next door push is the truth.
		m.status = "toggle sent"
	}
	return nil
}

func (m *doorModel) View() string {
	doorText := "unknown"
	if m.state.Known {
		if m.state.Open {
			doorText = openStyle.Render("OPEN")
		} else {
			doorText = "closed"
		}
	}

	scheduleText := "lesson / after school"
	if m.state.Break {
		scheduleText = "break"
	}

	s := fmt.Sprintf("Door status\n\n  Door:     %s\n  Schedule: %s\n", doorText, scheduleText)
	if m.status != "" {
		s += "\n" + statusStyle.Render(m.status) + "\n"
	}
	s += "\n(enter/space to toggle, esc to go back)"
	return s
}
