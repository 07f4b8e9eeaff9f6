package ui

import (
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/huh"

	"github.com/cherrydoor/cherryctl/internal/admin/app"
	"github.com/cherrydoor/cherryctl/internal/channel"
	"github.com/cherrydoor/cherryctl/internal/user"
)

type usersState int

const (
	usersStateList usersState = iota
	usersStateDetail
	usersStateInput
	usersStatePerms
	usersStateConfirmDelete
)

type usersModel struct {
	app    *app.App
	events chan<- tea.Msg
	scope  *channel.Scope

	store  *user.Store
	editor *user.Editor

	width  int
	height int

	Done bool

	state    usersState
	list     list.Model
	selected int // working-set index, or user.StagingTarget
	form     *huh.Form
	err      error
	status   string

	// form staging
	pendingAction string
	pendingCard   int
	inputValue    string
	saveFlag      bool
	selectedPerms []string
	deleteFlag    bool
}

type userItem struct {
	title string
	desc  string
	kind  string
	index int
}

func (i userItem) Title() string       { return i.title }
func (i userItem) Description() string { return i.desc }
func (i userItem) FilterValue() string { return i.title }

func newUsersModel(a *app.App, events chan<- tea.Msg) *usersModel {
	m := &usersModel{
		app:      a,
		events:   events,
		store:    user.NewStore(),
		editor:   user.NewEditor(a.Identity.Permissions),
		state:    usersStateList,
		selected: user.StagingTarget,
	}

	m.scope = a.Channel.Scoped(channel.RoomUsers)
	m.scope.On(channel.EventUsers, func(payload any) {
		if push, ok := payload.(channel.UsersPush); ok {
			post(events, usersMsg(push.Users))
		}
	})
	m.scope.Activate()

	m.reloadList()
	return m
}

func (m *usersModel) Close() {
	m.scope.Deactivate()
	m.store.Clear()
}

func (m *usersModel) SetSize(w, h int) {
	m.width, m.height = w, h
	m.list.SetSize(w, h-2)
}

// handleUsers installs a fresh snapshot. In-progress edits are
// overwritten: the snapshot is the truth and the working set restarts
// from it.
func (m *usersModel) handleUsers(msg usersMsg) tea.Cmd {
	m.store.Replace([]user.User(msg))
	m.editor.Reset(m.store.Current())
	m.form = nil
	m.err = nil
	m.status = fmt.Sprintf("snapshot: %d users", len(msg))
	switch m.state {
	case usersStateDetail:
		m.reloadDetail()
	default:
		m.state = usersStateList
		m.reloadList()
	}
	return nil
}

func (m *usersModel) handleCard(msg cardMsg) tea.Cmd {
	if msg.err != nil {
		m.status = fmt.Sprintf("card read failed: %v", msg.err)
	} else {
		m.status = fmt.Sprintf("card read: %s", msg.uid)
	}
	switch m.state {
	case usersStateDetail:
		m.reloadDetail()
	case usersStateList:
		m.reloadList()
	}
	return nil
}

func (m *usersModel) Update(msg tea.Msg) tea.Cmd {
	if m.err != nil {
		if key, ok := msg.(tea.KeyMsg); ok {
			switch key.String() {
			case "esc", "q", "enter":
				m.err = nil
				m.state = usersStateList
				m.form = nil
				m.reloadList()
			}
		}
		return nil
	}

	switch m.state {
	case usersStateList:
		return m.updateList(msg)
	case usersStateDetail:
		return m.updateDetail(msg)
	case usersStateInput, usersStatePerms, usersStateConfirmDelete:
		return m.updateForm(msg)
	default:
		return nil
	}
}

func (m *usersModel) updateList(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)

	key, ok := msg.(tea.KeyMsg)
	if !ok || m.list.FilterState() == list.Filtering {
		return cmd
	}

	switch key.String() {
	case "q", "esc":
		m.Done = true
		return nil
	case "s":
		delta, err := m.editor.Save(m.app.Channel)
		if err != nil {
			m.err = err
			return nil
		}
		if delta.Empty() {
			m.status = "no changes to publish"
		} else {
			m.status = fmt.Sprintf("published %d modified, %d created", len(delta.Modified), len(delta.Created))
		}
		return nil
	case "enter":
		it, ok := m.list.SelectedItem().(userItem)
		if !ok {
			return cmd
		}
		switch it.kind {
		case "user":
			m.selected = it.index
		case "staging":
			m.selected = user.StagingTarget
		default:
			return cmd
		}
		m.state = usersStateDetail
		m.reloadDetail()
		return nil
	}

	return cmd
}

func (m *usersModel) updateDetail(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)

	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return cmd
	}

	switch key.String() {
	case "esc":
		m.backToList()
		return nil
	case "x":
		if it, ok := m.list.SelectedItem().(userItem); ok && it.kind == "card" {
			if m.selected == user.StagingTarget {
				m.editor.RemoveStagedCard(it.index)
			} else {
				m.editor.RemoveCard(m.selected, it.index)
			}
			m.reloadDetail()
		}
		return nil
	case "enter":
		it, ok := m.list.SelectedItem().(userItem)
		if !ok {
			return cmd
		}
		return m.runDetailAction(it)
	}

	return cmd
}

func (m *usersModel) runDetailAction(it userItem) tea.Cmd {
	switch it.kind {
	case "rename":
		return m.startInput("rename", 0, "Username", m.currentUsername())
	case "stage_username":
		return m.startInput("stage_username", 0, "Username", m.editor.Staging().Username)
	case "password":
		return m.startInput("password", 0, "Password (empty = no panel login)", "")
	case "perms":
		return m.startPerms()
	case "card":
		return m.startInput("card_edit", it.index, "Card UID", it.desc)
	case "card_add":
		return m.startInput("card_add", 0, "Card UID", "")
	case "card_reader":
		m.requestCardFromReader()
	case "stage_commit":
		if err := m.editor.AddStaged(); err != nil {
			m.status = err.Error()
			m.reloadDetail()
			return nil
		}
		m.status = "user staged; save to publish"
		m.backToList()
	case "delete":
		return m.startConfirmDelete()
	case "back":
		m.backToList()
	}
	return nil
}

// requestCardFromReader opens an empty card slot and asks the reader
// for the next presented card. The reply lands in that exact slot; if
// the slot is gone by then, the editor drops it.
func (m *usersModel) requestCardFromReader() {
	var idx int
	if m.selected == user.StagingTarget {
		idx = m.editor.AddStagedCard()
	} else {
		idx = m.editor.AddCard(m.selected)
	}
	if idx < 0 {
		return
	}

	slot := m.editor.CardSlot(m.selected, idx)
	events := m.events
	m.app.Channel.GetCard(func(uid string, err error) {
		if err == nil {
			slot(uid)
		}
		post(events, cardMsg{uid: uid, err: err})
	})

	m.status = "waiting for a card tap..."
	m.reloadDetail()
}

func (m *usersModel) updateForm(msg tea.Msg) tea.Cmd {
	if m.form == nil {
		m.err = fmt.Errorf("internal error: form not initialized")
		return nil
	}
	updated, cmd := m.form.Update(msg)
	f, ok := updated.(*huh.Form)
	if !ok {
		m.err = fmt.Errorf("internal error: unexpected form model type")
		return nil
	}
	m.form = f

	if m.form.State != huh.StateCompleted {
		return cmd
	}

	switch m.state {
	case usersStateInput:
		if m.saveFlag {
			m.applyInput()
		}
	case usersStatePerms:
		if m.saveFlag {
			m.applyPerms()
		}
	case usersStateConfirmDelete:
		if m.deleteFlag {
			username := m.currentUsername()
			if err := m.editor.Delete(m.app.Channel, username); err != nil {
				m.err = err
				return nil
			}
			m.status = fmt.Sprintf("delete requested for %s; waiting for refresh", username)
		}
	}

	m.form = nil
	m.state = usersStateDetail
	m.reloadDetail()
	return nil
}

func (m *usersModel) applyInput() {
	value := strings.TrimSpace(m.inputValue)
	staged := m.selected == user.StagingTarget

	switch m.pendingAction {
	case "rename":
		if value != "" {
			m.editor.SetUsername(m.selected, value)
		}
	case "stage_username":
		m.editor.SetStagedUsername(value)
	case "password":
		if staged {
			m.editor.SetStagedPassword(m.inputValue)
		} else {
			m.editor.SetPassword(m.selected, m.inputValue)
		}
	case "card_edit":
		if staged {
			m.editor.SetStagedCard(m.pendingCard, value)
		} else {
			m.editor.SetCard(m.selected, m.pendingCard, value)
		}
	case "card_add":
		if value == "" {
			return
		}
		if staged {
			m.editor.SetStagedCard(m.editor.AddStagedCard(), value)
		} else {
			m.editor.SetCard(m.selected, m.editor.AddCard(m.selected), value)
		}
	}
}

func (m *usersModel) applyPerms() {
	granted := make(map[string]bool, len(m.selectedPerms))
	for _, key := range m.selectedPerms {
		granted[key] = true
	}
	for _, key := range m.grantableKeys() {
		if m.selected == user.StagingTarget {
			m.editor.SetStagedPermission(key, granted[key])
		} else {
			m.editor.SetPermission(m.selected, key, granted[key])
		}
	}
}

func (m *usersModel) startInput(action string, cardIdx int, title, initial string) tea.Cmd {
	m.state = usersStateInput
	m.pendingAction = action
	m.pendingCard = cardIdx
	m.inputValue = initial
	m.saveFlag = true

	input := huh.NewInput().Title(title).Value(&m.inputValue)
	if action == "password" {
		input = input.EchoMode(huh.EchoModePassword)
	}
	m.form = huh.NewForm(
		huh.NewGroup(input),
		huh.NewGroup(huh.NewConfirm().Title("Apply?").Value(&m.saveFlag)),
	)
	return m.form.Init()
}

func (m *usersModel) startPerms() tea.Cmd {
	m.state = usersStatePerms
	m.saveFlag = true

	current := m.currentPermissions()
	m.selectedPerms = nil
	keys := m.grantableKeys()
	options := make([]huh.Option[string], 0, len(keys))
	for _, key := range keys {
		options = append(options, huh.NewOption(key, key))
		if current[key] {
			m.selectedPerms = append(m.selectedPerms, key)
		}
	}

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Permissions").
				Description("Only permissions you hold yourself can be granted").
				Options(options...).
				Value(&m.selectedPerms),
		),
		huh.NewGroup(huh.NewConfirm().Title("Apply?").Value(&m.saveFlag)),
	)
	return m.form.Init()
}

func (m *usersModel) startConfirmDelete() tea.Cmd {
	m.state = usersStateConfirmDelete
	m.deleteFlag = false
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Delete %s?", m.currentUsername())).
				Description("The user is removed immediately; this is not part of save").
				Value(&m.deleteFlag),
		),
	)
	return m.form.Init()
}

func (m *usersModel) backToList() {
	m.state = usersStateList
	m.selected = user.StagingTarget
	m.form = nil
	m.reloadList()
}

func (m *usersModel) View() string {
	if m.err != nil {
		return fmt.Sprintf("Users error: %v\n\nPress Enter/Esc to go back.", m.err)
	}

	switch m.state {
	case usersStateList:
		m.list.Title = "Users"
		s := m.list.View()
		if m.status != "" {
			s += "\n" + statusStyle.Render(m.status)
		}
		return s + "\n(enter to edit, s to save changes, esc to go back)"
	case usersStateDetail:
		header := m.detailHeader()
		m.list.Title = "Actions"
		s := header + m.list.View()
		if m.status != "" {
			s += "\n" + statusStyle.Render(m.status)
		}
		return s + "\n(enter to select, x to remove a card, esc to go back)"
	default:
		return m.form.View() + "\n\n(esc to go back)"
	}
}

func (m *usersModel) detailHeader() string {
	if m.selected == user.StagingTarget {
		staging := m.editor.Staging()
		name := staging.Username
		if name == "" {
			name = "(unnamed)"
		}
		return fmt.Sprintf("New user: %s\nPermissions: %s\n\n", name, permsSummary(staging.Permissions))
	}

	working := m.editor.Working()
	if m.selected < 0 || m.selected >= len(working) {
		return "No user selected\n\n"
	}
	u := working[m.selected]
	marker := ""
	if m.selected >= m.editor.BaselineLen() {
		marker = " (not yet published)"
	}
	return fmt.Sprintf("User: %s%s\nPermissions: %s\n\n", u.Username, marker, permsSummary(u.Permissions))
}

func (m *usersModel) reloadList() {
	working := m.editor.Working()
	baseLen := m.editor.BaselineLen()

	items := make([]list.Item, 0, len(working)+1)
	staging := m.editor.Staging()
	stagingTitle := "+ New user"
	if staging.Username != "" {
		stagingTitle = fmt.Sprintf("+ New user: %s", staging.Username)
	}
	items = append(items, userItem{title: stagingTitle, desc: "Stage a new account", kind: "staging"})

	for i, u := range working {
		title := u.Username
		if i >= baseLen {
			title += " *"
		}
		desc := fmt.Sprintf("%s • %d cards", permsSummary(u.Permissions), len(u.Cards))
		items = append(items, userItem{title: title, desc: desc, kind: "user", index: i})
	}

	m.list = list.New(items, list.NewDefaultDelegate(), m.width, m.height-2)
	m.list.SetShowStatusBar(false)
	m.list.SetFilteringEnabled(true)
	m.list.SetShowHelp(true)
	m.list.Title = "Users"
}

func (m *usersModel) reloadDetail() {
	var items []list.Item

	if m.selected == user.StagingTarget {
		staging := m.editor.Staging()
		items = append(items,
			userItem{title: "Set username", desc: staging.Username, kind: "stage_username"},
			userItem{title: "Set password", desc: "Empty means no panel login", kind: "password"},
			userItem{title: "Permissions", desc: permsSummary(staging.Permissions), kind: "perms"},
		)
		for j, card := range staging.Cards {
			items = append(items, userItem{title: fmt.Sprintf("Card %d", j+1), desc: card, kind: "card", index: j})
		}
		items = append(items,
			userItem{title: "Add card (type UID)", kind: "card_add"},
			userItem{title: "Add card from reader", desc: "Next card presented to the reader", kind: "card_reader"},
			userItem{title: "Add user to list", desc: "Stage for the next save", kind: "stage_commit"},
			userItem{title: "Back", kind: "back"},
		)
	} else {
		working := m.editor.Working()
		if m.selected < 0 || m.selected >= len(working) {
			m.backToList()
			return
		}
		u := working[m.selected]
		items = append(items,
			userItem{title: "Rename", desc: u.Username, kind: "rename"},
			userItem{title: "Set password", desc: "Empty means no panel login", kind: "password"},
			userItem{title: "Permissions", desc: permsSummary(u.Permissions), kind: "perms"},
		)
		for j, card := range u.Cards {
			items = append(items, userItem{title: fmt.Sprintf("Card %d", j+1), desc: card, kind: "card", index: j})
		}
		items = append(items,
			userItem{title: "Add card (type UID)", kind: "card_add"},
			userItem{title: "Add card from reader", desc: "Next card presented to the reader", kind: "card_reader"},
		)
		if m.selected < m.editor.BaselineLen() {
			items = append(items, userItem{title: "Delete user", desc: "Immediate, asks for confirmation", kind: "delete"})
		}
		items = append(items, userItem{title: "Back", kind: "back"})
	}

	m.list = list.New(items, list.NewDefaultDelegate(), m.width, m.height-6)
	m.list.SetShowStatusBar(false)
	m.list.SetFilteringEnabled(false)
	m.list.SetShowHelp(true)
}

func (m *usersModel) currentUsername() string {
	working := m.editor.Working()
	if m.selected >= 0 && m.selected < len(working) {
		return working[m.selected].Username
	}
	return ""
}

func (m *usersModel) currentPermissions() map[string]bool {
	if m.selected == user.StagingTarget {
		return m.editor.Staging().Permissions
	}
	working := m.editor.Working()
	if m.selected >= 0 && m.selected < len(working) {
		return working[m.selected].Permissions
	}
	return nil
}

// grantableKeys returns the permission keys the operator holds,
// sorted. These are the only keys an edit can touch.
func (m *usersModel) grantableKeys() []string {
	var keys []string
	for key, held := range m.app.Identity.Permissions {
		if held {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

func permsSummary(perms map[string]bool) string {
	var granted []string
	for key, v := range perms {
		if v {
			granted = append(granted, key)
		}
	}
	if len(granted) == 0 {
		return "no permissions"
	}
	sort.Strings(granted)
	return strings.Join(granted, ", ")
}
