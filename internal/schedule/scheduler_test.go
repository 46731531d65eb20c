package schedule_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonesrussell/seo-pinger/infrastructure/logger"
	"github.com/jonesrussell/seo-pinger/internal/domain"
	"github.com/jonesrussell/seo-pinger/internal/schedule"
	"github.com/jonesrussell/seo-pinger/internal/submission"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStarter struct {
	mu    sync.Mutex
	calls [][]string
	pol   []submission.DedupPolicy
}

func (f *fakeStarter) Start(urls []string, policy submission.DedupPolicy) (domain.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, urls)
	f.pol = append(f.pol, policy)
	return domain.Batch{ID: "b1"}, nil
}

func (f *fakeStarter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestScheduler_Validate(t *testing.T) {
	t.Parallel()

	s := schedule.New(&fakeStarter{}, logger.NewNop())

	testCases := []struct {
		name    string
		job     schedule.Job
		wantErr bool
	}{
		{name: "valid", job: schedule.Job{Name: "daily", Cron: "0 6 * * *", URLs: []string{"https://a.example/"}}},
		{name: "descriptor", job: schedule.Job{Name: "hourly", Cron: "@hourly", URLs: []string{"https://a.example/"}}},
		{name: "no name", job: schedule.Job{Cron: "0 6 * * *", URLs: []string{"https://a.example/"}}, wantErr: true},
		{name: "no urls", job: schedule.Job{Name: "x", Cron: "0 6 * * *", URLs: []string{" "}}, wantErr: true},
		{name: "bad cron", job: schedule.Job{Name: "x", Cron: "every day", URLs: []string{"https://a.example/"}}, wantErr: true},
		{name: "ftp url", job: schedule.Job{Name: "x", Cron: "@hourly", URLs: []string{"ftp://x"}}, wantErr: true},
		{name: "not a url", job: schedule.Job{Name: "x", Cron: "@hourly", URLs: []string{"https://a.example/", "not a url"}}, wantErr: true},
		{name: "bad dedup", job: schedule.Job{Name: "x", Cron: "@hourly", URLs: []string{"https://a.example/"}, Dedup: "sometimes"}, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := s.Validate(tc.job)
			if tc.wantErr {
				require.ErrorIs(t, err, schedule.ErrInvalidJob)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestScheduler_AddRejectsNonHTTPURLs(t *testing.T) {
	t.Parallel()

	starter := &fakeStarter{}
	s := schedule.New(starter, logger.NewNop())

	err := s.Add(schedule.Job{Name: "legacy", Cron: "@hourly", URLs: []string{"ftp://x"}})
	require.ErrorIs(t, err, schedule.ErrInvalidJob)
	assert.True(t, submission.IsValidationError(err))
	assert.Empty(t, s.Entries())
}

func TestScheduler_TriggerStartsBatch(t *testing.T) {
	t.Parallel()

	starter := &fakeStarter{}
	s := schedule.New(starter, logger.NewNop())
	require.NoError(t, s.Add(schedule.Job{
		Name:  "daily",
		Cron:  "0 6 * * *",
		URLs:  []string{"https://a.example/sitemap.xml"},
		Dedup: "unique",
	}))

	b, err := s.Trigger("daily")
	require.NoError(t, err)
	assert.Equal(t, "b1", b.ID)
	assert.Equal(t, [][]string{{"https://a.example/sitemap.xml"}}, starter.calls)
	assert.Equal(t, []submission.DedupPolicy{submission.DedupUnique}, starter.pol)

	_, err = s.Trigger("missing")
	require.ErrorIs(t, err, schedule.ErrUnknownJob)
}

func TestScheduler_Entries(t *testing.T) {
	t.Parallel()

	s := schedule.New(&fakeStarter{}, logger.NewNop())
	require.NoError(t, s.Add(schedule.Job{Name: "daily", Cron: "0 6 * * *", URLs: []string{"https://a.example/"}}))
	// re-adding replaces
	require.NoError(t, s.Add(schedule.Job{Name: "daily", Cron: "0 7 * * *", URLs: []string{"https://a.example/"}}))

	s.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	})

	entries := s.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "0 7 * * *", entries[0].Cron)
	assert.Eventually(t, func() bool {
		e := s.Entries()
		return len(e) == 1 && !e[0].Next.IsZero()
	}, time.Second, 10*time.Millisecond)
}

func TestScheduler_FiresOnSchedule(t *testing.T) {
	t.Parallel()

	starter := &fakeStarter{}
	s := schedule.New(starter, logger.NewNop())
	require.NoError(t, s.Add(schedule.Job{Name: "tick", Cron: "@every 1s", URLs: []string{"https://a.example/"}}))

	s.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	})

	assert.Eventually(t, func() bool { return starter.count() >= 1 }, 3*time.Second, 50*time.Millisecond)
}
