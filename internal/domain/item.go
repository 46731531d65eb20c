package domain

import (
	"time"

	"github.com/google/uuid"
)

// ItemStatus is the lifecycle state of a SubmissionItem.
type ItemStatus string

const (
	StatusPending    ItemStatus = "pending"
	StatusProcessing ItemStatus = "processing"
	StatusSuccess    ItemStatus = "success"
	StatusFailed     ItemStatus = "failed"
)

// CanTransitionTo reports whether moving from s to next is legal.
// Pending may go straight to Failed when a batch is cancelled.
func (s ItemStatus) CanTransitionTo(next ItemStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing || next == StatusFailed
	case StatusProcessing:
		return next == StatusSuccess || next == StatusFailed
	default:
		return false
	}
}

// SubmissionItem tracks one URL of a batch.
type SubmissionItem struct {
	ID       string     `json:"id"`
	URL      string     `json:"url"`
	Status   ItemStatus `json:"status"`
	Progress int        `json:"progress"`
}

// NewSubmissionItem returns a pending item with a fresh ID.
func NewSubmissionItem(rawURL string) SubmissionItem {
	return SubmissionItem{
		ID:     uuid.NewString(),
		URL:    rawURL,
		Status: StatusPending,
	}
}

// LogEntry is one user-facing line of the submission log.
type LogEntry struct {
	ID              string    `json:"id"`
	Timestamp       time.Time `json:"-"`
	Message         string    `json:"message"`
	SiteDescription string    `json:"siteDescription,omitempty"`
}

// NewLogEntry stamps message with an ID and the current time.
func NewLogEntry(message, siteDescription string) LogEntry {
	return LogEntry{
		ID:              uuid.NewString(),
		Timestamp:       time.Now(),
		Message:         message,
		SiteDescription: siteDescription,
	}
}
