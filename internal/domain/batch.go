package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// BatchState is the lifecycle state of a batch run by the API.
type BatchState string

const (
	BatchRunning   BatchState = "running"
	BatchCompleted BatchState = "completed"
	BatchCancelled BatchState = "cancelled"
)

// Batch is a point-in-time copy of a batch held by the batch manager.
type Batch struct {
	ID         string           `json:"id"`
	State      BatchState       `json:"state"`
	Items      []SubmissionItem `json:"items"`
	Logs       []LogEntry       `json:"logs"`
	CreatedAt  time.Time        `json:"created_at"`
	FinishedAt *time.Time       `json:"finished_at,omitempty"`
}

// LogText joins the log messages with newlines, the export format.
func (b Batch) LogText() string {
	return JoinLog(b.Logs)
}

// JoinLog renders entries as plain text, one message per line.
func JoinLog(entries []LogEntry) string {
	var sb strings.Builder
	for i, e := range entries {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(e.Message)
	}
	return sb.String()
}

type logEntryJSON struct {
	ID              string `json:"id"`
	Timestamp       int64  `json:"timestamp"`
	Message         string `json:"message"`
	SiteDescription string `json:"siteDescription,omitempty"`
}

// MarshalJSON writes Timestamp as Unix milliseconds.
func (e LogEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(logEntryJSON{
		ID:              e.ID,
		Timestamp:       e.Timestamp.UnixMilli(),
		Message:         e.Message,
		SiteDescription: e.SiteDescription,
	})
}

// UnmarshalJSON reads Timestamp as Unix milliseconds.
func (e *LogEntry) UnmarshalJSON(data []byte) error {
	var raw logEntryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = LogEntry{
		ID:              raw.ID,
		Timestamp:       time.UnixMilli(raw.Timestamp),
		Message:         raw.Message,
		SiteDescription: raw.SiteDescription,
	}
	return nil
}
