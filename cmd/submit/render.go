package submit

import (
	"fmt"
	"io"
	"sync"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jonesrussell/seo-pinger/internal/domain"
	"github.com/jonesrussell/seo-pinger/internal/event"
	"github.com/jonesrussell/seo-pinger/internal/submission"
)

// consoleSink prints log lines and, optionally, progress as they arrive.
type consoleSink struct {
	mu       sync.Mutex
	out      io.Writer
	progress bool
	urls     map[string]string
}

func (s *consoleSink) Emit(e event.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch v := e.(type) {
	case event.LogEvent:
		fmt.Fprintln(s.out, v.Entry.Message)
	case event.ProgressEvent:
		if s.progress {
			fmt.Fprintf(s.out, "[%3d%%] %s\n", v.Progress, s.urls[v.ItemID])
		}
	}
}

// RenderSummary writes the per-URL outcome table.
func RenderSummary(out io.Writer, result submission.Result) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"#", "URL", "Status", "Progress"})
	for i, item := range result.Items {
		t.AppendRow(table.Row{i + 1, item.URL, statusLabel(item.Status), fmt.Sprintf("%d%%", item.Progress)})
	}

	footer := fmt.Sprintf("%d succeeded, %d failed", result.Succeeded, result.Failed)
	if result.Cancelled {
		footer += " (cancelled)"
	}
	t.AppendFooter(table.Row{"", footer, "", ""})

	t.Render()
}

func statusLabel(s domain.ItemStatus) string {
	switch s {
	case domain.StatusSuccess:
		return "✅ success"
	case domain.StatusFailed:
		return "❌ failed"
	default:
		return string(s)
	}
}
