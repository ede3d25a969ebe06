// Package ui renders the live transcript and session status in the terminal.
package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/redilah/CulinaryAI/runtime/events"
	"github.com/redilah/CulinaryAI/runtime/transcript"
)

// Color palette
const (
	ColorPrimary   = "#F97316"
	ColorSuccess   = "#10B981"
	ColorError     = "#EF4444"
	ColorWarning   = "#F59E0B"
	ColorLightGray = "#9CA3AF"
)

var (
	speakerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorPrimary))
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLightGray))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorSuccess))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorWarning))
	errStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorError))
)

// SpeakerName labels assistant lines.
const SpeakerName = "Nary"

// Console writes transcript deltas and status lines to w. It implements
// transcript.Sink and keeps the full transcript in a transcript.Log.
type Console struct {
	mu     sync.Mutex
	w      io.Writer
	log    *transcript.Log
	inLine bool
	// styled is false when w is not a terminal, e.g. a pipe or log file.
	styled bool
}

// NewConsole creates a console writing to w. Output is styled only when w
// is a terminal.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w, log: &transcript.Log{}, styled: isTerminal(w)}
}

// isTerminal reports whether w is a file descriptor attached to a TTY.
func isTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	return ok && term.IsTerminal(int(f.Fd()))
}

func (c *Console) render(style lipgloss.Style, text string) string {
	if !c.styled {
		return text
	}
	return style.Render(text)
}

// Append implements transcript.Sink. A new line starts with the speaker
// label; other deltas continue the current line.
func (c *Console) Append(text string, newLine bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.log.Append(text, newLine)
	if newLine || !c.inLine {
		if c.inLine {
			fmt.Fprintln(c.w)
		}
		fmt.Fprint(c.w, c.render(speakerStyle, SpeakerName+":")+" ")
		c.inLine = true
	}
	fmt.Fprint(c.w, text)
}

// Lines returns the transcript so far.
func (c *Console) Lines() []string {
	return c.log.Lines()
}

// Status prints a status line, ending any open transcript line first.
func (c *Console) Status(format string, args ...any) {
	c.printLine(statusStyle, format, args...)
}

// Success prints a highlighted status line.
func (c *Console) Success(format string, args ...any) {
	c.printLine(okStyle, format, args...)
}

// Warn prints a warning line.
func (c *Console) Warn(format string, args ...any) {
	c.printLine(warnStyle, format, args...)
}

// Error prints an error line.
func (c *Console) Error(format string, args ...any) {
	c.printLine(errStyle, format, args...)
}

func (c *Console) printLine(style lipgloss.Style, format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inLine {
		fmt.Fprintln(c.w)
		c.inLine = false
	}
	fmt.Fprintln(c.w, c.render(style, strings.TrimRight(fmt.Sprintf(format, args...), "\n")))
}

// Attach prints session lifecycle events from bus and returns the
// unsubscribe func.
func (c *Console) Attach(bus *events.EventBus) func() {
	return bus.SubscribeAll(c.OnEvent)
}

// OnEvent renders the events a user should see.
func (c *Console) OnEvent(evt *events.Event) {
	//nolint:exhaustive // Only user-visible events
	switch evt.Type {
	case events.EventSessionActive:
		c.Success("● Live. Silakan bicara.")
	case events.EventSessionStartFailed:
		if data, ok := evt.Data.(events.SessionStartFailedData); ok {
			c.Error("✗ Gagal memulai (%s): %v", data.Reason, data.Error)
		}
	case events.EventSessionStopped:
		if data, ok := evt.Data.(events.SessionStoppedData); ok {
			if data.Error != nil {
				c.Warn("■ Sesi berakhir (%s): %v", data.Reason, data.Error)
			} else {
				c.Status("■ Sesi berakhir (%s, %s)", data.Reason, data.Duration.Round(1e9))
			}
		}
	case events.EventNameDetected:
		if data, ok := evt.Data.(events.NameDetectedData); ok {
			c.Status("Nama diingat: %s", data.Name)
		}
	}
}
