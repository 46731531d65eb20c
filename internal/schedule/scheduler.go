// Package schedule re-announces configured URL lists on cron schedules.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jonesrussell/seo-pinger/infrastructure/logger"
	"github.com/jonesrussell/seo-pinger/internal/domain"
	"github.com/jonesrussell/seo-pinger/internal/submission"
	"github.com/robfig/cron/v3"
)

var (
	// ErrInvalidJob is returned for a job with a missing name, a bad cron
	// expression or unusable URLs.
	ErrInvalidJob = errors.New("invalid schedule")
	// ErrUnknownJob is returned when triggering a job that was never added.
	ErrUnknownJob = errors.New("unknown schedule")
)

// Job announces URLs every time Cron fires.
type Job struct {
	Name  string   `yaml:"name"`
	Cron  string   `yaml:"cron"`
	URLs  []string `yaml:"urls"`
	Dedup string   `yaml:"dedup"`
}

// Starter starts a batch. *batch.Manager satisfies it.
type Starter interface {
	Start(urls []string, policy submission.DedupPolicy) (domain.Batch, error)
}

// EntryInfo describes a registered job.
type EntryInfo struct {
	Name string    `json:"name"`
	Cron string    `json:"cron"`
	Next time.Time `json:"next"`
}

// Scheduler wraps a cron runner. Jobs start ordinary batches.
type Scheduler struct {
	cron    *cron.Cron
	parser  cron.Parser
	starter Starter
	logger  logger.Logger

	mu      sync.RWMutex
	jobs    map[string]Job
	entries map[string]cron.EntryID
}

// New creates a Scheduler using standard five-field cron expressions.
func New(starter Starter, log logger.Logger) *Scheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	cl := cronLogger{log: log}

	return &Scheduler{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		parser:  parser,
		starter: starter,
		logger:  log,
		jobs:    make(map[string]Job),
		entries: make(map[string]cron.EntryID),
	}
}

// Validate checks job without registering it.
func (s *Scheduler) Validate(job Job) error {
	if strings.TrimSpace(job.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidJob)
	}
	urls := submission.Normalize(job.URLs, submission.DedupPreserve)
	if len(urls) == 0 {
		return fmt.Errorf("%w: %s has no urls", ErrInvalidJob, job.Name)
	}
	if err := submission.Validate(urls); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidJob, job.Name, err)
	}
	switch submission.DedupPolicy(job.Dedup) {
	case "", submission.DedupPreserve, submission.DedupUnique:
	default:
		return fmt.Errorf("%w: %s: unknown dedup policy %q", ErrInvalidJob, job.Name, job.Dedup)
	}
	if _, err := s.parser.Parse(job.Cron); err != nil {
		return fmt.Errorf("%w: %s: parse cron %q: %w", ErrInvalidJob, job.Name, job.Cron, err)
	}
	return nil
}

// Add registers job, replacing any job with the same name.
func (s *Scheduler) Add(job Job) error {
	if err := s.Validate(job); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.entries[job.Name]; ok {
		s.cron.Remove(old)
	}

	name := job.Name
	id, err := s.cron.AddFunc(job.Cron, func() { s.fire(name) })
	if err != nil {
		return fmt.Errorf("add cron job %s: %w", job.Name, err)
	}

	s.jobs[name] = job
	s.entries[name] = id

	s.logger.Info("Schedule registered",
		logger.String("schedule", name),
		logger.String("cron", job.Cron),
		logger.Int("urls", len(job.URLs)),
	)
	return nil
}

// Trigger runs the named job immediately.
func (s *Scheduler) Trigger(name string) (domain.Batch, error) {
	s.mu.RLock()
	job, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return domain.Batch{}, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.run(job)
}

func (s *Scheduler) fire(name string) {
	if _, err := s.Trigger(name); err != nil {
		s.logger.Error("Scheduled submission failed",
			logger.String("schedule", name),
			logger.Error(err),
		)
	}
}

func (s *Scheduler) run(job Job) (domain.Batch, error) {
	policy := submission.DedupPolicy(job.Dedup)
	if policy == "" {
		policy = submission.DedupPreserve
	}

	b, err := s.starter.Start(job.URLs, policy)
	if err != nil {
		return domain.Batch{}, fmt.Errorf("start batch for %s: %w", job.Name, err)
	}

	s.logger.Info("Scheduled submission started",
		logger.String("schedule", job.Name),
		logger.String("batch_id", b.ID),
	)
	return b, nil
}

// Entries lists the registered jobs with their next run time.
func (s *Scheduler) Entries() []EntryInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]EntryInfo, 0, len(s.entries))
	for name, id := range s.entries {
		out = append(out, EntryInfo{
			Name: name,
			Cron: s.jobs[name].Cron,
			Next: s.cron.Entry(id).Next,
		})
	}
	return out
}

// Start runs the cron loop in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops firing jobs and waits for running triggers, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts logger.Logger to cron.Logger.
type cronLogger struct {
	log logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.log.Debug("cron: "+msg, fields(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.log.Error("cron: "+msg, append(fields(keysAndValues), logger.Error(err))...)
}

func fields(keysAndValues []any) []logger.Field {
	out := make([]logger.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprint(keysAndValues[i])
		}
		out = append(out, logger.Any(key, keysAndValues[i+1]))
	}
	return out
}
