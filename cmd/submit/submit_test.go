package submit_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonesrussell/seo-pinger/cmd/common"
	"github.com/jonesrussell/seo-pinger/cmd/submit"
	"github.com/jonesrussell/seo-pinger/internal/domain"
	"github.com/jonesrussell/seo-pinger/internal/event"
	"github.com/jonesrussell/seo-pinger/internal/submission"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectURLs(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "urls.txt")
	require.NoError(t, os.WriteFile(file, []byte("https://f.example/a\n\nhttps://f.example/b\n"), 0o600))

	testCases := []struct {
		name  string
		args  []string
		files []string
		stdin string
		piped bool
		want  []string
	}{
		{
			name: "args only",
			args: []string{"https://a.example/"},
			want: []string{"https://a.example/"},
		},
		{
			name:  "file",
			files: []string{file},
			want:  []string{"https://f.example/a", "https://f.example/b"},
		},
		{
			name:  "dash reads stdin",
			args:  []string{"https://a.example/", "-"},
			stdin: "https://s.example/\n",
			want:  []string{"https://a.example/", "https://s.example/"},
		},
		{
			name:  "piped with nothing else",
			stdin: "https://s.example/\nhttps://t.example/",
			piped: true,
			want:  []string{"https://s.example/", "https://t.example/"},
		},
		{
			name:  "piped ignored when args given",
			args:  []string{"https://a.example/"},
			stdin: "https://s.example/\n",
			piped: true,
			want:  []string{"https://a.example/"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := submit.CollectURLs(tc.args, tc.files, strings.NewReader(tc.stdin), tc.piped)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCollectURLs_LongStdinLine(t *testing.T) {
	long := "https://l.example/?q=" + strings.Repeat("a", 100*1024)
	stdin := "https://s.example/\r\n" + long + "\n"

	got, err := submit.CollectURLs(nil, nil, strings.NewReader(stdin), true)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://s.example/", long}, got)
}

func TestCollectURLs_MissingFile(t *testing.T) {
	_, err := submit.CollectURLs(nil, []string{filepath.Join(t.TempDir(), "nope.txt")}, strings.NewReader(""), false)
	require.Error(t, err)
}

// scriptedRunner logs one line per item and marks it successful.
type scriptedRunner struct{}

func (scriptedRunner) Run(_ context.Context, items []domain.SubmissionItem, sink event.Sink) submission.Result {
	result := submission.Result{Items: items}
	for i := range result.Items {
		event.Log(sink, "Processing "+items[i].URL)
		sink.Emit(event.ProgressEvent{ItemID: items[i].ID, Current: 1, Total: 1, Progress: 99})
		result.Items[i].Status = domain.StatusSuccess
		result.Items[i].Progress = 100
	}
	result.Succeeded = len(items)
	return result
}

func TestRun_StreamsLogAndProgress(t *testing.T) {
	items, err := submission.Prepare([]string{"https://a.example/", "https://b.example/"}, submission.DedupPreserve)
	require.NoError(t, err)

	var out bytes.Buffer
	result, logs := submit.Run(context.Background(), scriptedRunner{}, items, &out, true)

	assert.Equal(t, 2, result.Succeeded)
	require.Len(t, logs, 2)
	assert.Equal(t, "Processing https://a.example/", logs[0].Message)
	assert.Equal(t,
		"Processing https://a.example/\n[ 99%] https://a.example/\nProcessing https://b.example/\n[ 99%] https://b.example/\n",
		out.String())
}

func TestRun_WithoutProgress(t *testing.T) {
	items, err := submission.Prepare([]string{"https://a.example/"}, submission.DedupPreserve)
	require.NoError(t, err)

	var out bytes.Buffer
	submit.Run(context.Background(), scriptedRunner{}, items, &out, false)
	assert.Equal(t, "Processing https://a.example/\n", out.String())
}

func TestRenderSummary(t *testing.T) {
	var out bytes.Buffer
	submit.RenderSummary(&out, submission.Result{
		Items: []domain.SubmissionItem{
			{URL: "https://a.example/", Status: domain.StatusSuccess, Progress: 100},
			{URL: "https://b.example/", Status: domain.StatusFailed, Progress: 100},
		},
		Succeeded: 1,
		Failed:    1,
	})

	s := out.String()
	assert.Contains(t, s, "https://a.example/")
	assert.Contains(t, s, "✅ success")
	assert.Contains(t, s, "❌ failed")
	assert.Contains(t, s, "1 succeeded, 1 failed")
}

func TestCommand_RejectsInvalidInput(t *testing.T) {
	flags := &common.GlobalFlags{ConfigPath: filepath.Join(t.TempDir(), "absent.yml")}
	cmd := submit.Command(flags)

	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"https://ok.example/", "not a url"})

	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.True(t, submission.IsValidationError(err))
	assert.Contains(t, stderr.String(), "not a url")
	assert.Empty(t, stdout.String())
}
