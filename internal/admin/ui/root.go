package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/lipgloss"

	"github.com/cherrydoor/cherryctl/internal/admin/app"
	"github.com/cherrydoor/cherryctl/internal/channel"
)

type screen int

const (
	screenHome screen = iota
	screenDoor
	screenUsers
	screenSettings
	screenConsole
)

type rootModel struct {
	app    *app.App
	events chan tea.Msg

	width  int
	height int

	active screen
	link   bool

	homeList list.Model

	door     *doorModel
	users    *usersModel
	settings *settingsModel
	console  *consoleModel
}

type menuItem struct {
	title string
	desc  string
	to    screen
}

func (m menuItem) Title() string       { return m.title }
func (m menuItem) Description() string { return m.desc }
func (m menuItem) FilterValue() string { return m.title }

var (
	linkUpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	linkDownStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	statusStyle   = lipgloss.NewStyle().Faint(true)
)

// NewRootModel builds the top-level model. It owns the bridged event
// queue and the permanent link-state subscription; everything else is
// created when its screen activates.
func NewRootModel(a *app.App) tea.Model {
	items := []list.Item{
		menuItem{title: "Door", desc: "Live door status and toggle", to: screenDoor},
		menuItem{title: "Users", desc: "Manage users, permissions and cards", to: screenUsers},
		menuItem{title: "Settings", desc: "Schedule exceptions and hardware reset", to: screenSettings},
		menuItem{title: "Serial console", desc: "Raw commands to the controller", to: screenConsole},
		menuItem{title: "Quit", desc: "Exit", to: -1},
	}

	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = "cherryctl"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(true)

	m := &rootModel{
		app:      a,
		events:   make(chan tea.Msg, 32),
		active:   screenHome,
		homeList: l,
	}

	a.Channel.Subscribe(channel.EventConnected, func(any) {
		post(m.events, linkMsg(true))
	})
	a.Channel.Subscribe(channel.EventDisconnected, func(any) {
		post(m.events, linkMsg(false))
	})

	return m
}

func (m *rootModel) Init() tea.Cmd {
	return waitForEvent(m.events)
}

func (m *rootModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.homeList.SetSize(msg.Width, msg.Height-3)
		if m.door != nil {
			m.door.SetSize(msg.Width, msg.Height-1)
		}
		if m.users != nil {
			m.users.SetSize(msg.Width, msg.Height-1)
		}
		if m.settings != nil {
			m.settings.SetSize(msg.Width, msg.Height-1)
		}
		if m.console != nil {
			m.console.SetSize(msg.Width, msg.Height-1)
		}
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}

	case linkMsg:
		m.link = bool(msg)
		return m, waitForEvent(m.events)

	case doorMsg, usersMsg, serialMsg, settingsMsg, cardMsg:
		cmd := m.routeEvent(msg)
		return m, tea.Batch(cmd, waitForEvent(m.events))
	}

	switch m.active {
	case screenHome:
		return m.updateHome(msg)
	case screenDoor:
		cmd := m.door.Update(msg)
		if m.door.Done {
			m.door.Close()
			m.door = nil
			m.active = screenHome
		}
		return m, cmd
	case screenUsers:
		cmd := m.users.Update(msg)
		if m.users.Done {
			m.users.Close()
			m.users = nil
			m.active = screenHome
		}
		return m, cmd
	case screenSettings:
		cmd := m.settings.Update(msg)
		if m.settings.Done {
			m.settings.Close()
			m.settings = nil
			m.active = screenHome
		}
		return m, cmd
	case screenConsole:
		cmd := m.console.Update(msg)
		if m.console.Done {
			m.console.Close()
			m.console = nil
			m.active = screenHome
		}
		return m, cmd
	default:
		return m, nil
	}
}

// routeEvent hands a bridged server push to whichever view consumes
// it. Views that are not active have no handlers subscribed, so
// normally only the active view's events show up here.
func (m *rootModel) routeEvent(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case doorMsg:
		if m.door != nil {
			return m.door.handleDoor(msg)
		}
	case usersMsg:
		if m.users != nil {
			return m.users.handleUsers(msg)
		}
	case cardMsg:
		if m.users != nil {
			return m.users.handleCard(msg)
		}
	case serialMsg:
		if m.console != nil {
			return m.console.handleSerial(msg)
		}
	case settingsMsg:
		if m.settings != nil {
			return m.settings.handleSettings(msg)
		}
	}
	return nil
}

func (m *rootModel) updateHome(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.homeList, cmd = m.homeList.Update(msg)

	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "enter" {
		if it, ok := m.homeList.SelectedItem().(menuItem); ok {
			if it.to == -1 {
				return m, tea.Quit
			}
			m.activate(it.to)
			return m, nil
		}
	}

	return m, cmd
}

func (m *rootModel) activate(s screen) {
	m.active = s

	switch s {
	case screenDoor:
		if m.door == nil {
			m.door = newDoorModel(m.app, m.events)
			m.door.SetSize(m.width, m.height-1)
		}
	case screenUsers:
		if m.users == nil {
			m.users = newUsersModel(m.app, m.events)
			m.users.SetSize(m.width, m.height-1)
		}
	case screenSettings:
		if m.settings == nil {
			m.settings = newSettingsModel(m.app, m.events)
			m.settings.SetSize(m.width, m.height-1)
		}
	case screenConsole:
		if m.console == nil {
			m.console = newConsoleModel(m.app, m.events)
			m.console.SetSize(m.width, m.height-1)
		}
	}
}

func (m *rootModel) View() string {
	var link string
	if m.link {
		link = linkUpStyle.Render("● connected")
	} else {
		link = linkDownStyle.Render("○ disconnected")
	}
	header := link + statusStyle.Render("  "+m.app.Config.Server.URL) + "\n"

	switch m.active {
	case screenHome:
		return header + m.homeList.View()
	case screenDoor:
		return header + m.door.View()
	case screenUsers:
		return header + m.users.View()
	case screenSettings:
		return header + m.settings.View()
	case screenConsole:
		return header + m.console.View()
	default:
		return header
	}
}
