package ui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/huh"

	"github.com/cherrydoor/cherryctl/internal/admin/app"
	"github.com/cherrydoor/cherryctl/internal/channel"
	"github.com/cherrydoor/cherryctl/internal/schedule"
)

// settingsModel edits the door's schedule exceptions as a JSON buffer
// and offers the hardware reset. The buffer follows server pushes
// until the operator starts typing; after that it is theirs until the
// next save or an explicit reload.
type settingsModel struct {
	app   *app.App
	scope *channel.Scope

	editor  textarea.Model
	dirty   bool
	confirm *huh.Form
	reset   bool

	status string
	errMsg string

	width  int
	height int

	Done bool
}

func newSettingsModel(a *app.App, events chan<- tea.Msg) *settingsModel {
	ta := textarea.New()
	ta.Placeholder = `[{"from": "10:00", "to": "10:15"}]`
	ta.SetValue(schedule.Format(nil))
	ta.Focus()

	m := &settingsModel{app: a, editor: ta}

	m.scope = a.Channel.Scoped(channel.RoomSettings)
	m.scope.On(channel.EventSettings, func(payload any) {
		if s, ok := payload.(channel.SettingsPayload); ok {
			post(events, settingsMsg(s.Breaks))
		}
	})
	m.scope.Activate()

	return m
}

func (m *settingsModel) Close() {
	m.scope.Deactivate()
}

func (m *settingsModel) SetSize(w, h int) {
	m.width, m.height = w, h
	m.editor.SetWidth(w - 2)
	m.editor.SetHeight(h - 6)
}

func (m *settingsModel) handleSettings(msg settingsMsg) tea.Cmd {
	if m.dirty {
		m.status = "server settings changed; ctrl+l reloads and discards your edits"
		return nil
	}
	m.editor.SetValue(schedule.Format([]schedule.Break(msg)))
	m.status = fmt.Sprintf("loaded %d breaks from server", len(msg))
	return nil
}

func (m *settingsModel) Update(msg tea.Msg) tea.Cmd {
	if m.confirm != nil {
		return m.updateConfirm(msg)
	}

	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "esc":
			m.Done = true
			return nil
		case "ctrl+s":
			m.save()
			return nil
		case "ctrl+l":
			m.dirty = false
			m.errMsg = ""
			m.status = "waiting for server settings"
			// A rejoin replays the settings room's state push.
			m.scope.Activate()
			return nil
		case "ctrl+r":
			if !m.app.Identity.Permissions["admin"] {
				m.errMsg = "the admin permission is required to reset the hardware"
				return nil
			}
			m.reset = false
			m.confirm = huh.NewForm(huh.NewGroup(
				huh.NewConfirm().
					Title("Reset the door controller?").
					Description("The hardware restarts and drops the link briefly").
					Value(&m.reset),
			))
			return m.confirm.Init()
		}
	}

	before := m.editor.Value()
	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	if m.editor.Value() != before {
		m.dirty = true
	}
	return cmd
}

func (m *settingsModel) updateConfirm(msg tea.Msg) tea.Cmd {
	updated, cmd := m.confirm.Update(msg)
	if f, ok := updated.(*huh.Form); ok {
		m.confirm = f
	}
	if m.confirm.State != huh.StateCompleted {
		return cmd
	}
	m.confirm = nil
	if !m.reset {
		m.status = "reset cancelled"
		return nil
	}
	if err := m.app.Channel.Reset(); err != nil {
		m.errMsg = fmt.Sprintf("reset: %v", err)
		return nil
	}
	m.status = "reset requested"
	return nil
}

// save validates the buffer locally before anything goes on the wire:
// a malformed schedule never reaches the server.
func (m *settingsModel) save() {
	breaks, err := schedule.Parse(m.editor.Value())
	if err != nil {
		m.errMsg = err.Error()
		return
	}
	if err := m.app.Channel.SaveBreaks(breaks); err != nil {
		m.errMsg = fmt.Sprintf("save: %v", err)
		return
	}
	m.errMsg = ""
	m.dirty = false
	m.status = fmt.Sprintf("saved %d breaks", len(breaks))
}

func (m *settingsModel) View() string {
	if m.confirm != nil {
		return m.confirm.View()
	}

	s := "Schedule exceptions (JSON)\n\n" + m.editor.View() + "\n"
	if m.errMsg != "" {
		s += linkDownStyle.Render(m.errMsg) + "\n"
	} else if m.status != "" {
		s += statusStyle.Render(m.status) + "\n"
	}
	return s + "(ctrl+s save, ctrl+l reload, ctrl+r reset hardware, esc back)"
}
