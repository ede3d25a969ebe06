// Package transcript turns the live endpoint's transcription stream into
// displayed lines: markdown stripping, turn segmentation and remembered-name
// detection.
package transcript

import (
	"strings"
	"sync"
)

// markdownReplacer removes emphasis characters the voice model sometimes
// emits in its output transcription.
var markdownReplacer = strings.NewReplacer("*", "", "#", "", "_", "", "~", "")

// StripMarkdown removes *, #, _ and ~ from s.
func StripMarkdown(s string) string {
	return markdownReplacer.Replace(s)
}

// Sink receives transcript text in arrival order. newLine is true when text
// starts a new displayed line.
type Sink interface {
	Append(text string, newLine bool)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(text string, newLine bool)

// Append implements Sink.
func (f SinkFunc) Append(text string, newLine bool) { f(text, newLine) }

// Aggregator segments output transcription into turns. A turn starts with
// the first delta after an input transcription signal. Not safe for
// concurrent use; the session drives it from its event loop.
type Aggregator struct {
	sink    Sink
	newTurn bool
}

// NewAggregator returns an aggregator whose first delta starts a new line.
func NewAggregator(sink Sink) *Aggregator {
	return &Aggregator{sink: sink, newTurn: true}
}

// MarkTurn records that the user started a new utterance.
func (a *Aggregator) MarkTurn() {
	a.newTurn = true
}

// Apply strips markdown from delta and forwards it. It returns the cleaned
// text and whether it started a new line. The pending flag is cleared by the
// delta that consumed it.
func (a *Aggregator) Apply(delta string) (string, bool) {
	text := StripMarkdown(delta)
	newLine := a.newTurn
	a.newTurn = false
	if a.sink != nil {
		a.sink.Append(text, newLine)
	}
	return text, newLine
}

// Pending reports whether the next delta will start a new line.
func (a *Aggregator) Pending() bool {
	return a.newTurn
}

// Log is a Sink that keeps the displayed lines. A delta starts a new line
// when newLine is set or the log is empty; otherwise it extends the last one.
type Log struct {
	mu    sync.Mutex
	lines []string
}

// Append implements Sink.
func (l *Log) Append(text string, newLine bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if newLine || len(l.lines) == 0 {
		l.lines = append(l.lines, text)
		return
	}
	l.lines[len(l.lines)-1] += text
}

// Lines returns a copy of the displayed lines.
func (l *Log) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

// Last returns the most recent line, or "".
func (l *Log) Last() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.lines) == 0 {
		return ""
	}
	return l.lines[len(l.lines)-1]
}
