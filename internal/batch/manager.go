// Package batch runs submission batches in the background for the HTTP API
// and keeps their snapshots in memory.
package batch

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonesrussell/seo-pinger/infrastructure/logger"
	"github.com/jonesrussell/seo-pinger/infrastructure/sse"
	"github.com/jonesrussell/seo-pinger/internal/domain"
	"github.com/jonesrussell/seo-pinger/internal/event"
	"github.com/jonesrussell/seo-pinger/internal/metrics"
	"github.com/jonesrussell/seo-pinger/internal/submission"
)

// Defaults.
const (
	DefaultRetention  = time.Hour
	DefaultMaxBatches = 100

	janitorInterval = time.Minute
	// publishTimeout bounds the wait for broker buffer space before an
	// event is dropped. The completion event ends client streams, so it
	// waits longer.
	publishTimeout          = time.Second
	completedPublishTimeout = 5 * time.Second
)

var (
	// ErrNotFound is returned for an unknown batch ID.
	ErrNotFound = errors.New("batch not found")
	// ErrTooManyBatches is returned when every slot holds a running batch.
	ErrTooManyBatches = errors.New("too many batches")
)

// Runner submits prepared items. *submission.Orchestrator satisfies it.
type Runner interface {
	Run(ctx context.Context, items []domain.SubmissionItem, sink event.Sink) submission.Result
}

// Config tunes a Manager.
type Config struct {
	Retention  time.Duration
	MaxBatches int
}

type entry struct {
	batch     domain.Batch
	itemIndex map[string]int
	cancel    context.CancelFunc
	done      chan struct{}
}

// Manager owns every batch started through it.
type Manager struct {
	runner    Runner
	publisher sse.Publisher
	logger    logger.Logger
	metrics   *metrics.Metrics
	cfg       Config

	baseCtx    context.Context
	cancelBase context.CancelFunc
	wg         sync.WaitGroup

	mu      sync.RWMutex
	batches map[string]*entry
	now     func() time.Time
}

// NewManager creates a Manager. publisher may be nil.
func NewManager(runner Runner, publisher sse.Publisher, log logger.Logger, m *metrics.Metrics, cfg Config) *Manager {
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.MaxBatches <= 0 {
		cfg.MaxBatches = DefaultMaxBatches
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		runner:     runner,
		publisher:  publisher,
		logger:     log,
		metrics:    m,
		cfg:        cfg,
		baseCtx:    ctx,
		cancelBase: cancel,
		batches:    make(map[string]*entry),
		now:        time.Now,
	}
}

// Start validates urls and runs them in the background. Validation errors
// from the submission package are returned as is.
func (m *Manager) Start(urls []string, policy submission.DedupPolicy) (domain.Batch, error) {
	items, err := submission.Prepare(urls, policy)
	if err != nil {
		return domain.Batch{}, err
	}

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(m.baseCtx)
	ctx = logger.WithContext(ctx, m.logger.With(logger.String("batch_id", id)))
	e := &entry{
		batch: domain.Batch{
			ID:        id,
			State:     domain.BatchRunning,
			Items:     items,
			CreatedAt: m.now().UTC(),
		},
		itemIndex: make(map[string]int, len(items)),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	for i, item := range items {
		e.itemIndex[item.ID] = i
	}

	m.mu.Lock()
	m.pruneLocked()
	if len(m.batches) >= m.cfg.MaxBatches && !m.evictOldestFinishedLocked() {
		m.mu.Unlock()
		cancel()
		return domain.Batch{}, ErrTooManyBatches
	}
	m.batches[id] = e
	snapshot := cloneBatch(e.batch)
	m.mu.Unlock()

	m.metrics.BatchStarted()
	m.wg.Add(1)
	// the runner owns its own copy; the snapshot is updated from events
	go m.run(ctx, e, append([]domain.SubmissionItem(nil), items...))

	m.logger.Info("Batch started",
		logger.String("batch_id", id),
		logger.Int("urls", len(items)),
	)
	return snapshot, nil
}

func (m *Manager) run(ctx context.Context, e *entry, items []domain.SubmissionItem) {
	defer m.wg.Done()
	defer close(e.done)
	defer m.metrics.BatchFinished()

	batchID := e.batch.ID
	started := m.now()

	sink := event.SinkFunc(func(ev event.Event) { m.record(batchID, ev) })
	result := m.runner.Run(ctx, items, sink)

	state := domain.BatchCompleted
	if result.Cancelled {
		state = domain.BatchCancelled
	}

	m.mu.Lock()
	finished := m.now().UTC()
	e.batch.State = state
	e.batch.FinishedAt = &finished
	copy(e.batch.Items, result.Items)
	m.mu.Unlock()

	m.publish(sse.NewBatchCompletedEvent(batchID, string(state), result.Succeeded, result.Failed, m.now().Sub(started)))

	m.logger.Info("Batch finished",
		logger.String("batch_id", batchID),
		logger.String("state", string(state)),
		logger.Int("succeeded", result.Succeeded),
		logger.Int("failed", result.Failed),
	)
}

// record applies ev to the snapshot and forwards it to SSE clients.
func (m *Manager) record(batchID string, ev event.Event) {
	var out sse.Event

	m.mu.Lock()
	e, ok := m.batches[batchID]
	if !ok {
		m.mu.Unlock()
		return
	}

	switch v := ev.(type) {
	case event.LogEvent:
		e.batch.Logs = append(e.batch.Logs, v.Entry)
		out = sse.NewBatchLogEvent(sse.BatchLogData{
			BatchID:         batchID,
			EntryID:         v.Entry.ID,
			Message:         v.Entry.Message,
			SiteDescription: v.Entry.SiteDescription,
			Timestamp:       v.Entry.Timestamp.UnixMilli(),
		})
	case event.ProgressEvent:
		if i, found := e.itemIndex[v.ItemID]; found {
			e.batch.Items[i].Progress = v.Progress
		}
		out = sse.NewBatchProgressEvent(sse.BatchProgressData{
			BatchID:  batchID,
			ItemID:   v.ItemID,
			Current:  v.Current,
			Total:    v.Total,
			Progress: v.Progress,
		})
	case event.ItemEvent:
		if i, found := e.itemIndex[v.Item.ID]; found {
			e.batch.Items[i] = v.Item
		}
		out = sse.NewBatchItemEvent(sse.BatchItemData{
			BatchID:  batchID,
			ItemID:   v.Item.ID,
			URL:      v.Item.URL,
			Status:   string(v.Item.Status),
			Progress: v.Item.Progress,
		})
	}
	m.mu.Unlock()

	if out.Type != "" {
		m.publish(out)
	}
}

func (m *Manager) publish(ev sse.Event) {
	if m.publisher == nil {
		return
	}
	timeout := publishTimeout
	if ev.Type == sse.EventTypeBatchCompleted {
		timeout = completedPublishTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := m.publisher.Publish(ctx, ev); err != nil {
		m.logger.Warn("Dropped batch event",
			logger.String("type", ev.Type),
			logger.Error(err),
		)
	}
}

// Backlog returns the events a late subscriber missed: every log entry, the
// current item states and, once finished, the completion event.
func (m *Manager) Backlog(id string) []sse.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.batches[id]
	if !ok {
		return nil
	}
	b := e.batch

	out := make([]sse.Event, 0, len(b.Logs)+len(b.Items)+1)
	for _, l := range b.Logs {
		out = append(out, sse.NewBatchLogEvent(sse.BatchLogData{
			BatchID:         id,
			EntryID:         l.ID,
			Message:         l.Message,
			SiteDescription: l.SiteDescription,
			Timestamp:       l.Timestamp.UnixMilli(),
		}))
	}
	for _, item := range b.Items {
		out = append(out, sse.NewBatchItemEvent(sse.BatchItemData{
			BatchID:  id,
			ItemID:   item.ID,
			URL:      item.URL,
			Status:   string(item.Status),
			Progress: item.Progress,
		}))
	}

	if b.FinishedAt != nil {
		var succeeded, failed int
		for _, item := range b.Items {
			switch item.Status {
			case domain.StatusSuccess:
				succeeded++
			case domain.StatusFailed:
				failed++
			}
		}
		out = append(out, sse.NewBatchCompletedEvent(id, string(b.State), succeeded, failed, b.FinishedAt.Sub(b.CreatedAt)))
	}
	return out
}

// Get returns a snapshot of the batch.
func (m *Manager) Get(id string) (domain.Batch, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.batches[id]
	if !ok {
		return domain.Batch{}, false
	}
	return cloneBatch(e.batch), true
}

// List returns snapshots of every retained batch, newest first.
func (m *Manager) List() []domain.Batch {
	m.mu.RLock()
	out := make([]domain.Batch, 0, len(m.batches))
	for _, e := range m.batches {
		out = append(out, cloneBatch(e.batch))
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Cancel abandons a running batch. Cancelling a finished batch is a no-op.
func (m *Manager) Cancel(id string) error {
	m.mu.RLock()
	e, ok := m.batches[id]
	m.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}

	e.cancel()
	m.logger.Info("Batch cancel requested", logger.String("batch_id", id))
	return nil
}

// Wait blocks until the batch has finished or ctx is done.
func (m *Manager) Wait(ctx context.Context, id string) error {
	m.mu.RLock()
	e, ok := m.batches[id]
	m.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}

	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunJanitor evicts expired batches until ctx is done.
func (m *Manager) RunJanitor(ctx context.Context) {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.mu.Lock()
			m.pruneLocked()
			m.mu.Unlock()
		}
	}
}

// Shutdown cancels running batches and waits for them to stop.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.cancelBase()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// pruneLocked drops finished batches older than the retention period.
func (m *Manager) pruneLocked() {
	cutoff := m.now().Add(-m.cfg.Retention)
	for id, e := range m.batches {
		if e.batch.FinishedAt != nil && e.batch.FinishedAt.Before(cutoff) {
			delete(m.batches, id)
			m.logger.Debug("Batch evicted", logger.String("batch_id", id))
		}
	}
}

func (m *Manager) evictOldestFinishedLocked() bool {
	var (
		oldestID string
		oldest   time.Time
	)
	for id, e := range m.batches {
		if e.batch.FinishedAt == nil {
			continue
		}
		if oldestID == "" || e.batch.FinishedAt.Before(oldest) {
			oldestID, oldest = id, *e.batch.FinishedAt
		}
	}
	if oldestID == "" {
		return false
	}
	delete(m.batches, oldestID)
	return true
}

func cloneBatch(b domain.Batch) domain.Batch {
	b.Items = append([]domain.SubmissionItem(nil), b.Items...)
	b.Logs = append([]domain.LogEntry(nil), b.Logs...)
	if b.FinishedAt != nil {
		finished := *b.FinishedAt
		b.FinishedAt = &finished
	}
	return b
}
