// Package submission runs a batch of URLs through the resolver and the ping
// executor, one URL at a time.
package submission

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jonesrussell/seo-pinger/infrastructure/logger"
	"github.com/jonesrussell/seo-pinger/internal/domain"
	"github.com/jonesrussell/seo-pinger/internal/event"
	"github.com/jonesrussell/seo-pinger/internal/metrics"
)

// DefaultDelay is the pause between two URLs of a batch.
const DefaultDelay = 2 * time.Second

// maxIntermediateProgress keeps an item below 100 until it completes.
const maxIntermediateProgress = 99

var errNoEndpoints = errors.New("no submission sites are available")

// ProgressGranularity controls intermediate progress reporting.
type ProgressGranularity string

const (
	// ProgressEndpoint reports progress after every settled endpoint.
	ProgressEndpoint ProgressGranularity = "endpoint"
	// ProgressCoarse reports 0 and 100 only.
	ProgressCoarse ProgressGranularity = "coarse"
)

// ProgressGranularities lists the accepted granularity names.
var ProgressGranularities = []string{string(ProgressEndpoint), string(ProgressCoarse)}

// Resolver picks the endpoints for a URL.
type Resolver interface {
	Resolve(ctx context.Context, targetURL string, sink event.Sink) []domain.Endpoint
}

// Executor pings endpoints for a URL.
type Executor interface {
	Execute(ctx context.Context, targetURL string, endpoints []domain.Endpoint, sink event.Sink, onEndpointDone func(done, total int))
}

// Result summarises a finished batch.
type Result struct {
	Items     []domain.SubmissionItem
	Succeeded int
	Failed    int
	Cancelled bool
}

// Options tunes an Orchestrator.
type Options struct {
	Delay       time.Duration
	Granularity ProgressGranularity
	Metrics     *metrics.Metrics
}

// Orchestrator sequences the URLs of a batch.
type Orchestrator struct {
	resolver    Resolver
	executor    Executor
	logger      logger.Logger
	delay       time.Duration
	granularity ProgressGranularity
	metrics     *metrics.Metrics
}

// NewOrchestrator creates an Orchestrator. A negative delay disables the
// pause; zero takes DefaultDelay.
func NewOrchestrator(resolver Resolver, executor Executor, log logger.Logger, opts Options) *Orchestrator {
	delay := opts.Delay
	switch {
	case delay == 0:
		delay = DefaultDelay
	case delay < 0:
		delay = 0
	}
	granularity := opts.Granularity
	if granularity == "" {
		granularity = ProgressEndpoint
	}

	return &Orchestrator{
		resolver:    resolver,
		executor:    executor,
		logger:      log,
		delay:       delay,
		granularity: granularity,
		metrics:     opts.Metrics,
	}
}

// Prepare normalises and validates urls and returns the pending items.
// It performs no I/O and emits no events.
func Prepare(urls []string, policy DedupPolicy) ([]domain.SubmissionItem, error) {
	normalized := Normalize(urls, policy)
	if err := Validate(normalized); err != nil {
		return nil, err
	}

	items := make([]domain.SubmissionItem, len(normalized))
	for i, u := range normalized {
		items[i] = domain.NewSubmissionItem(u)
	}
	return items, nil
}

// SubmitBatch validates urls, then submits them in order. Validation errors
// are returned before any event or network call. After a successful return
// every item is Success or Failed.
func (o *Orchestrator) SubmitBatch(ctx context.Context, urls []string, sink event.Sink) (Result, error) {
	items, err := Prepare(urls, DedupPreserve)
	if err != nil {
		return Result{}, err
	}
	return o.Run(ctx, items, sink), nil
}

// Run submits already prepared items. Items must be Pending. A logger
// stored in ctx replaces the orchestrator's own for this run.
func (o *Orchestrator) Run(ctx context.Context, items []domain.SubmissionItem, sink event.Sink) Result {
	log := o.logger
	if l, ok := logger.Lookup(ctx); ok {
		log = l
	}
	b := &batchRun{orchestrator: o, logger: log, items: items, sink: sink}
	return b.run(ctx)
}

// batchRun owns the items of one batch. It is used from a single goroutine.
type batchRun struct {
	orchestrator *Orchestrator
	logger       logger.Logger
	items        []domain.SubmissionItem
	sink         event.Sink
	// current is the item being processed, for operational log fields.
	current *domain.SubmissionItem
}

func (b *batchRun) run(ctx context.Context) Result {
	o := b.orchestrator
	b.log(fmt.Sprintf("Processing %d URL(s)...", len(b.items)))

	cancelled := false
	for i := range b.items {
		if ctx.Err() == nil && i > 0 && o.delay > 0 {
			b.wait(ctx, o.delay)
		}
		if ctx.Err() != nil {
			cancelled = true
			b.skipRemaining(i)
			break
		}
		b.submitItem(ctx, i)
	}

	b.log("✅ Submission process finished.")

	result := Result{Items: append([]domain.SubmissionItem(nil), b.items...), Cancelled: cancelled}
	for _, item := range b.items {
		if item.Status == domain.StatusSuccess {
			result.Succeeded++
		} else {
			result.Failed++
		}
	}
	return result
}

func (b *batchRun) wait(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (b *batchRun) submitItem(ctx context.Context, i int) {
	o := b.orchestrator
	targetURL := b.items[i].URL

	b.current = &b.items[i]
	defer func() { b.current = nil }()

	b.log(fmt.Sprintf("--- Submitting: %s ---", targetURL))
	b.transition(i, domain.StatusProcessing, 0)

	// an item that has started runs to completion; cancellation is only
	// observed between items
	status := domain.StatusSuccess
	if err := b.process(context.WithoutCancel(ctx), i); err != nil {
		status = domain.StatusFailed
		if !errors.Is(err, errNoEndpoints) {
			b.log(fmt.Sprintf("❌ Error submitting %s: %s", targetURL, err.Error()))
		}
		b.logger.Error("Submission failed",
			logger.String("item_id", b.items[i].ID),
			logger.String("url", targetURL),
			logger.Error(err),
		)
	}

	b.transition(i, status, 100)
	o.metrics.ItemFinished(status)
	b.log(fmt.Sprintf("--- Finished: %s (%s) ---", targetURL, status))
}

// process resolves and pings one URL. Panics are converted to errors so one
// bad item cannot stop the batch.
func (b *batchRun) process(ctx context.Context, i int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unexpected error: %v", r)
		}
	}()

	o := b.orchestrator
	item := b.items[i]

	sink := event.SinkFunc(b.forward)

	endpoints := o.resolver.Resolve(ctx, item.URL, sink)
	if len(endpoints) == 0 {
		b.log("No submission sites are available. Aborting.")
		return errNoEndpoints
	}

	var onDone func(done, total int)
	if o.granularity == ProgressEndpoint {
		onDone = func(done, total int) {
			progress := int(math.Round(float64(done) / float64(total) * 100))
			progress = min(progress, maxIntermediateProgress)
			b.items[i].Progress = progress
			b.sink.Emit(event.ProgressEvent{ItemID: item.ID, Current: done, Total: total, Progress: progress})
		}
	}

	o.executor.Execute(ctx, item.URL, endpoints, sink, onDone)
	return nil
}

func (b *batchRun) skipRemaining(from int) {
	for i := from; i < len(b.items); i++ {
		b.log(fmt.Sprintf("⏹ Submission cancelled; skipping %s", b.items[i].URL))
		b.transition(i, domain.StatusFailed, 100)
		b.orchestrator.metrics.ItemFinished(domain.StatusFailed)
	}
}

func (b *batchRun) transition(i int, next domain.ItemStatus, progress int) {
	item := &b.items[i]
	if !item.Status.CanTransitionTo(next) {
		b.logger.Error("Illegal item transition",
			logger.String("item_id", item.ID),
			logger.String("from", string(item.Status)),
			logger.String("to", string(next)),
		)
		return
	}
	item.Status = next
	item.Progress = progress
	b.sink.Emit(event.ItemEvent{Item: *item})
}

func (b *batchRun) log(message string) {
	b.forward(event.LogEvent{Entry: domain.NewLogEntry(message, "")})
}

// forward mirrors log entries to the operational logger before passing e on.
func (b *batchRun) forward(e event.Event) {
	if l, ok := e.(event.LogEvent); ok {
		fields := []logger.Field{logger.String("log_entry_id", l.Entry.ID)}
		if b.current != nil {
			fields = append(fields,
				logger.String("item_id", b.current.ID),
				logger.String("url", b.current.URL),
			)
		}
		b.logger.Debug(l.Entry.Message, fields...)
	}
	b.sink.Emit(e)
}
