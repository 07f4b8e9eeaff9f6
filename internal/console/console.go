// Package console implements the line-oriented interactive session
// behind the serial console view: input buffering, a history ring
// with draft stashing, local built-ins, and remote dispatch.
package console

import (
	"fmt"
	"log"
	"strings"
	"time"
)

// Direction tags a transcript entry.
type Direction int

const (
	DirSent Direction = iota
	DirReceived
)

// Entry is one transcript line. The transcript is append-only and
// never persisted past the session.
type Entry struct {
	Dir  Direction
	Text string
	Time time.Time
}

// Command is a locally handled console command. Run executes
// synchronously and its return value lands in the transcript.
type Command struct {
	Name string
	Desc string
	Run  func(args []string) string
}

// Recorder persists submitted command lines across sessions.
type Recorder interface {
	Append(line string) error
}

// Console is the session state machine. It is not safe for
// concurrent use; drive it from a single loop and deliver remote
// replies through AppendReceived on that same loop.
type Console struct {
	buffer string

	// history is append-only; cursor ranges over [0, len(history)]
	// where len(history) means "editing a fresh line". draft holds
	// the fresh line that was being typed when browsing started.
	history []string
	cursor  int
	draft   string

	transcript []Entry
	commands   []Command
	remote     func(line string)
	recorder   Recorder

	now func() time.Time
}

// New creates a console. remote receives every submitted line that no
// built-in or registered command claimed; nil disables remote
// dispatch.
func New(remote func(line string)) *Console {
	return &Console{remote: remote, now: time.Now}
}

// Register adds a local command. Names are matched case-insensitively
// against the first token of a submitted line.
func (c *Console) Register(cmd Command) {
	c.commands = append(c.commands, cmd)
}

// SetRecorder attaches persistent history recording.
func (c *Console) SetRecorder(r Recorder) {
	c.recorder = r
}

// LoadHistory seeds the history ring, oldest first, and points the
// cursor at a fresh line.
func (c *Console) LoadHistory(lines []string) {
	c.history = append(c.history, lines...)
	c.cursor = len(c.history)
}

// Buffer returns the current input line.
func (c *Console) Buffer() string {
	return c.buffer
}

// SetBuffer replaces the current input line.
func (c *Console) SetBuffer(s string) {
	c.buffer = s
}

// Transcript returns the entries to render, oldest first.
func (c *Console) Transcript() []Entry {
	return c.transcript
}

// History returns the submitted lines, oldest first.
func (c *Console) History() []string {
	return append([]string(nil), c.history...)
}

// Submit processes the current buffer. The line is echoed to the
// transcript, appended to history when non-blank, and dispatched:
// "clear" wipes the transcript, "help" lists commands, a registered
// command runs locally, and anything else goes to the remote
// dispatcher. Remote output is not appended here; it arrives later as
// an independent push with no correlation to this submission. The
// buffer is cleared on every branch.
func (c *Console) Submit() {
	line := c.buffer
	c.buffer = ""

	c.transcript = append(c.transcript, Entry{Dir: DirSent, Text: line, Time: c.now()})

	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}

	c.history = append(c.history, line)
	c.cursor = len(c.history)
	if c.recorder != nil {
		if err := c.recorder.Append(line); err != nil {
			log.Printf("console: record history: %v", err)
		}
	}

	name := strings.ToLower(fields[0])
	args := fields[1:]

	switch name {
	case "clear":
		c.transcript = nil
	case "help":
		c.appendReceived(c.helpText())
	default:
		for _, cmd := range c.commands {
			if strings.ToLower(cmd.Name) == name {
				c.appendReceived(cmd.Run(args))
				return
			}
		}
		if c.remote != nil {
			c.remote(line)
		}
	}
}

// HistoryUp moves one entry back in history. Leaving a fresh line
// stashes it as the draft; moving while inside history writes the
// buffer back into the current slot so edits to a recalled line
// survive browsing. The cursor clamps at the oldest entry.
func (c *Console) HistoryUp() {
	c.stash()
	if c.cursor > 0 {
		c.cursor--
	}
	c.buffer = c.entryAt(c.cursor)
}

// HistoryDown is the symmetric move forward; past the newest entry
// the draft is restored.
func (c *Console) HistoryDown() {
	c.stash()
	if c.cursor < len(c.history) {
		c.cursor++
	}
	c.buffer = c.entryAt(c.cursor)
}

// AppendReceived appends remote output to the transcript.
func (c *Console) AppendReceived(text string) {
	c.appendReceived(text)
}

func (c *Console) appendReceived(text string) {
	c.transcript = append(c.transcript, Entry{Dir: DirReceived, Text: text, Time: c.now()})
}

func (c *Console) stash() {
	if c.cursor < len(c.history) {
		c.history[c.cursor] = c.buffer
	} else {
		c.draft = c.buffer
	}
}

func (c *Console) entryAt(pos int) string {
	if pos < len(c.history) {
		return c.history[pos]
	}
	return c.draft
}

func (c *Console) helpText() string {
	var b strings.Builder
	b.WriteString("help: show available commands\n")
	b.WriteString("clear: clear the console output")
	for _, cmd := range c.commands {
		if cmd.Desc != "" {
			fmt.Fprintf(&b, "\n%s: %s", cmd.Name, cmd.Desc)
		} else {
			fmt.Fprintf(&b, "\n%s", cmd.Name)
		}
	}
	b.WriteString("\nanything else is sent to the device over serial")
	return b.String()
}
