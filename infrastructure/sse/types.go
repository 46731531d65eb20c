// Package sse streams batch submission events to browsers over Server-Sent Events.
package sse

import (
	"context"
	"errors"
	"time"
)

// ErrTooManyClients is returned by Subscribe when the client limit is reached.
var ErrTooManyClients = errors.New("too many SSE clients")

// Event represents a Server-Sent Event.
// Wire format: event: <Type>\nid: <ID>\ndata: <JSON payload>\n\n
type Event struct {
	// Type is the event name, e.g. "batch:log".
	Type string `json:"type"`
	// Data is the JSON payload.
	Data any `json:"data"`
	// ID is an optional event ID for client-side tracking.
	ID string `json:"id,omitempty"`
	// Retry tells the client how long to wait before reconnecting (milliseconds).
	Retry int `json:"retry,omitempty"`
}

// Publisher sends events to the broker.
type Publisher interface {
	// Publish queues an event for every connected client, waiting for
	// buffer space until ctx is done.
	// It fails when the publish buffer is full or ctx is done.
	Publish(ctx context.Context, event Event) error
}

// Subscriber receives events from the broker.
type Subscriber interface {
	// Subscribe returns a channel of events and a cleanup func.
	// The channel is closed when ctx ends, cleanup runs, or the broker stops.
	Subscribe(ctx context.Context, opts ...ClientOption) (<-chan Event, func(), error)
}

// Broker manages SSE connections and event distribution.
type Broker interface {
	Publisher
	Subscriber
	// Start begins processing events (non-blocking).
	Start(ctx context.Context) error
	// Stop gracefully shuts down the broker.
	Stop() error
	// ClientCount returns the number of connected clients.
	ClientCount() int
}

// EventFilter reports whether an event should reach a client.
type EventFilter func(event Event) bool

// ClientOptions configures a single SSE client connection.
type ClientOptions struct {
	Filter     EventFilter
	BufferSize int
}

// Batch event types.
const (
	EventTypeBatchLog       = "batch:log"
	EventTypeBatchProgress  = "batch:progress"
	EventTypeBatchItem      = "batch:item"
	EventTypeBatchCompleted = "batch:completed"
)

const (
	eventTypeConnected = "connected"
)

// batchScoped is implemented by payloads that belong to one batch.
type batchScoped interface {
	GetBatchID() string
}

// BatchLogData is the payload for batch:log events.
type BatchLogData struct {
	BatchID         string `json:"batch_id"`
	EntryID         string `json:"entry_id"`
	Message         string `json:"message"`
	SiteDescription string `json:"site_description,omitempty"`
	Timestamp       int64  `json:"timestamp"`
}

// GetBatchID implements batchScoped.
func (d BatchLogData) GetBatchID() string { return d.BatchID }

// BatchProgressData is the payload for batch:progress events.
type BatchProgressData struct {
	BatchID  string `json:"batch_id"`
	ItemID   string `json:"item_id"`
	Current  int    `json:"current"`
	Total    int    `json:"total"`
	Progress int    `json:"progress"`
}

// GetBatchID implements batchScoped.
func (d BatchProgressData) GetBatchID() string { return d.BatchID }

// BatchItemData is the payload for batch:item events.
type BatchItemData struct {
	BatchID  string `json:"batch_id"`
	ItemID   string `json:"item_id"`
	URL      string `json:"url"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
}

// GetBatchID implements batchScoped.
func (d BatchItemData) GetBatchID() string { return d.BatchID }

// BatchCompletedData is the payload for batch:completed events.
type BatchCompletedData struct {
	BatchID    string `json:"batch_id"`
	State      string `json:"state"`
	Succeeded  int    `json:"succeeded"`
	Failed     int    `json:"failed"`
	DurationMs int64  `json:"duration_ms"`
	Timestamp  string `json:"timestamp"`
}

// GetBatchID implements batchScoped.
func (d BatchCompletedData) GetBatchID() string { return d.BatchID }

// NewBatchLogEvent creates a batch:log event.
func NewBatchLogEvent(data BatchLogData) Event {
	return Event{Type: EventTypeBatchLog, ID: data.EntryID, Data: data}
}

// NewBatchProgressEvent creates a batch:progress event.
func NewBatchProgressEvent(data BatchProgressData) Event {
	return Event{Type: EventTypeBatchProgress, Data: data}
}

// NewBatchItemEvent creates a batch:item event.
func NewBatchItemEvent(data BatchItemData) Event {
	return Event{Type: EventTypeBatchItem, Data: data}
}

// NewBatchCompletedEvent creates a batch:completed event.
func NewBatchCompletedEvent(batchID, state string, succeeded, failed int, duration time.Duration) Event {
	return Event{
		Type: EventTypeBatchCompleted,
		Data: BatchCompletedData{
			BatchID:    batchID,
			State:      state,
			Succeeded:  succeeded,
			Failed:     failed,
			DurationMs: duration.Milliseconds(),
			Timestamp:  time.Now().UTC().Format(time.RFC3339),
		},
	}
}
