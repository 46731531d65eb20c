package sse

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	infralogger "github.com/jonesrussell/seo-pinger/infrastructure/logger"
)

const sseContentType = "text/event-stream"

// HandlerOptions tunes the streaming handler.
type HandlerOptions struct {
	HeartbeatInterval time.Duration
	// StopOn ends the stream after an event of this type is written.
	StopOn string
	// Backlog, when set, is called after subscribing and its events are
	// written before live ones. Events published in between may repeat.
	Backlog func() []Event
}

// Handler creates a Gin handler that subscribes to broker and streams events
// to the client until it disconnects.
func Handler(broker Broker, logger infralogger.Logger, hopts HandlerOptions, opts ...ClientOption) gin.HandlerFunc {
	if hopts.HeartbeatInterval <= 0 {
		hopts.HeartbeatInterval = DefaultHeartbeatInterval
	}

	return func(c *gin.Context) {
		eventChan, cleanup, err := broker.Subscribe(c.Request.Context(), opts...)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, ErrTooManyClients) {
				status = http.StatusServiceUnavailable
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		defer cleanup()

		SetHeaders(c.Writer)
		c.Status(http.StatusOK)

		if writeErr := writeEvent(c.Writer, Event{
			Type: eventTypeConnected,
			Data: map[string]any{"timestamp": time.Now().UTC().Format(time.RFC3339)},
		}); writeErr != nil {
			logger.Debug("Failed to write connection event", infralogger.Error(writeErr))
			return
		}

		if hopts.Backlog != nil {
			for _, ev := range hopts.Backlog() {
				if writeErr := writeEvent(c.Writer, ev); writeErr != nil {
					return
				}
				if hopts.StopOn != "" && ev.Type == hopts.StopOn {
					return
				}
			}
		}

		stream(c, eventChan, logger, hopts)
	}
}

func stream(c *gin.Context, eventChan <-chan Event, logger infralogger.Logger, hopts HandlerOptions) {
	ticker := time.NewTicker(hopts.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if err := writeEvent(c.Writer, event); err != nil {
				logger.Debug("SSE write failed (client likely disconnected)",
					infralogger.Error(err),
					infralogger.String("event_type", event.Type),
				)
				return
			}
			if hopts.StopOn != "" && event.Type == hopts.StopOn {
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprintf(c.Writer, ": heartbeat %s\n\n", time.Now().UTC().Format(time.RFC3339)); err != nil {
				return
			}
			c.Writer.Flush()
		case <-c.Request.Context().Done():
			return
		}
	}
}

// WriteEvent encodes event in SSE wire format.
func WriteEvent(w io.Writer, event Event) error {
	if event.Type != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", event.Type); err != nil {
			return fmt.Errorf("write event type: %w", err)
		}
	}
	if event.ID != "" {
		if _, err := fmt.Fprintf(w, "id: %s\n", event.ID); err != nil {
			return fmt.Errorf("write event id: %w", err)
		}
	}
	if event.Retry > 0 {
		if _, err := fmt.Fprintf(w, "retry: %d\n", event.Retry); err != nil {
			return fmt.Errorf("write retry: %w", err)
		}
	}

	data, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}
	if _, err = fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write event data: %w", err)
	}
	return nil
}

func writeEvent(w gin.ResponseWriter, event Event) error {
	if err := WriteEvent(w, event); err != nil {
		return err
	}
	w.Flush()
	return nil
}

// SetHeaders sets the standard SSE response headers.
func SetHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", sseContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}
