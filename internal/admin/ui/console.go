package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/golang/glog"

	"github.com/cherrydoor/cherryctl/internal/admin/app"
	"github.com/cherrydoor/cherryctl/internal/channel"
	"github.com/cherrydoor/cherryctl/internal/console"
)

const historySeedLimit = 500

// consoleModel is the serial console view: a transcript viewport over
// a single input line, driven by the console session state machine.
type consoleModel struct {
	app   *app.App
	scope *channel.Scope

	con   *console.Console
	vp    viewport.Model
	input textinput.Model
	ready bool

	width  int
	height int

	Done bool
}

// historyRecorder adapts the sqlite store to the console's Recorder.
type historyRecorder struct {
	db interface {
		AppendHistory(line string) error
	}
}

func (r historyRecorder) Append(line string) error {
	return r.db.AppendHistory(line)
}

func newConsoleModel(a *app.App, events chan<- tea.Msg) *consoleModel {
	m := &consoleModel{app: a}

	m.con = console.New(func(line string) {
		if err := a.Channel.SendSerial(line); err != nil {
			m.con.AppendReceived(fmt.Sprintf("! not sent: %v", err))
		}
	})
	for _, cmd := range a.Commands {
		m.con.Register(cmd)
	}
	if a.History != nil {
		m.con.SetRecorder(historyRecorder{db: a.History})
		lines, err := a.History.RecentHistory(historySeedLimit)
		if err != nil {
			glog.Warningf("console: load history: %v", err)
		} else {
			m.con.LoadHistory(lines)
		}
	}

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Focus()
	m.input = ti

	m.scope = a.Channel.Scoped(channel.RoomSerialConsole)
	m.scope.On(channel.EventSerialCommand, func(payload any) {
		if p, ok := payload.(channel.SerialPush); ok {
			post(events, serialMsg(p))
		}
	})
	m.scope.Activate()

	return m
}

func (m *consoleModel) Close() {
	m.scope.Deactivate()
}

func (m *consoleModel) SetSize(w, h int) {
	m.width, m.height = w, h
	vpHeight := h - 3
	if vpHeight < 1 {
		vpHeight = 1
	}
	if !m.ready {
		m.vp = viewport.New(w, vpHeight)
		m.ready = true
	} else {
		m.vp.Width = w
		m.vp.Height = vpHeight
	}
	m.input.Width = w - 4
	m.syncTranscript(true)
}

func (m *consoleModel) handleSerial(msg serialMsg) tea.Cmd {
	text := msg.Command
	if len(msg.Arguments) > 0 {
		text += " " + strings.Join(msg.Arguments, " ")
	}
	if msg.Timestamp != "" {
		text = fmt.Sprintf("(%s) %s", msg.Timestamp, text)
	}
	m.con.AppendReceived(text)
	m.syncTranscript(false)
	return nil
}

func (m *consoleModel) Update(msg tea.Msg) tea.Cmd {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		var cmd tea.Cmd
		m.vp, cmd = m.vp.Update(msg)
		return cmd
	}

	switch key.String() {
	case "esc":
		m.Done = true
		return nil
	case "tab":
		// No completion; swallow it so focus stays put.
		return nil
	case "enter":
		m.con.SetBuffer(m.input.Value())
		m.con.Submit()
		m.input.SetValue(m.con.Buffer())
		m.syncTranscript(true)
		return nil
	case "up":
		m.con.SetBuffer(m.input.Value())
		m.con.HistoryUp()
		m.input.SetValue(m.con.Buffer())
		m.input.CursorEnd()
		return nil
	case "down":
		m.con.SetBuffer(m.input.Value())
		m.con.HistoryDown()
		m.input.SetValue(m.con.Buffer())
		m.input.CursorEnd()
		return nil
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.vp, cmd = m.vp.Update(msg)
		return cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

// syncTranscript re-renders the transcript into the viewport. force
// always jumps to the bottom; otherwise only a view already near the
// bottom (within half a screen of it) follows new output, so reading
// scrollback is not disturbed.
func (m *consoleModel) syncTranscript(force bool) {
	if !m.ready {
		return
	}

	wasNearBottom := m.vp.TotalLineCount()-m.vp.YOffset < m.vp.Height+m.vp.Height/2

	var b strings.Builder
	for _, e := range m.con.Transcript() {
		if e.Dir == console.DirSent {
			b.WriteString("> ")
		}
		b.WriteString(e.Text)
		b.WriteString("\n")
	}
	m.vp.SetContent(b.String())

	if force || wasNearBottom {
		m.vp.GotoBottom()
	}
}

func (m *consoleModel) View() string {
	if !m.ready {
		return "Serial console\n"
	}
	return m.vp.View() + "\n" + m.input.View() + "\n" +
		statusStyle.Render("(enter send, up/down history, pgup/pgdown scroll, esc back)")
}
