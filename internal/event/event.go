// Package event carries submission progress from the pipeline to its callers.
package event

import (
	"sync"

	"github.com/jonesrussell/seo-pinger/internal/domain"
)

// Event is one of LogEvent, ProgressEvent or ItemEvent.
type Event interface {
	isEvent()
}

// LogEvent appends a line to the submission log.
type LogEvent struct {
	Entry domain.LogEntry
}

// ProgressEvent reports intermediate progress for an item.
type ProgressEvent struct {
	ItemID   string
	Current  int
	Total    int
	Progress int
}

// ItemEvent reports an item after a status or progress change.
type ItemEvent struct {
	Item domain.SubmissionItem
}

func (LogEvent) isEvent()      {}
func (ProgressEvent) isEvent() {}
func (ItemEvent) isEvent()     {}

// Sink receives events. Emit must not block for long; the pipeline calls it
// inline.
type Sink interface {
	Emit(e Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(e Event)

// Emit calls f(e).
func (f SinkFunc) Emit(e Event) { f(e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// Log emits message as a new log entry.
func Log(s Sink, message string) {
	s.Emit(LogEvent{Entry: domain.NewLogEntry(message, "")})
}

// LogSite emits message with the description of the site it concerns.
func LogSite(s Sink, message, siteDescription string) {
	s.Emit(LogEvent{Entry: domain.NewLogEntry(message, siteDescription)})
}

// MultiSink fans each event out to every sink in order.
type MultiSink []Sink

// Emit forwards e to every sink.
func (m MultiSink) Emit(e Event) {
	for _, s := range m {
		s.Emit(e)
	}
}

// ChannelSink pushes events onto C. It blocks while C is full.
type ChannelSink struct {
	C chan<- Event
}

// Emit sends e on the channel.
func (c ChannelSink) Emit(e Event) { c.C <- e }

// Collector records every event. Safe for concurrent use.
type Collector struct {
	mu     sync.Mutex
	events []Event
}

// Emit records e.
func (c *Collector) Emit(e Event) {
	c.mu.Lock()
	c.events = append(c.events, e)
	c.mu.Unlock()
}

// Events returns a copy of everything recorded so far.
func (c *Collector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

// Logs returns the recorded log entries.
func (c *Collector) Logs() []domain.LogEntry {
	var out []domain.LogEntry
	for _, e := range c.Events() {
		if l, ok := e.(LogEvent); ok {
			out = append(out, l.Entry)
		}
	}
	return out
}

// Messages returns the recorded log messages.
func (c *Collector) Messages() []string {
	logs := c.Logs()
	out := make([]string, len(logs))
	for i, l := range logs {
		out[i] = l.Message
	}
	return out
}
