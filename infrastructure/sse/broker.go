package sse

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	infralogger "github.com/jonesrussell/seo-pinger/infrastructure/logger"
)

// ErrBrokerNotRunning is returned by Publish before Start or after Stop.
var ErrBrokerNotRunning = errors.New("SSE broker is not running")

type broker struct {
	logger  infralogger.Logger
	clients map[string]*client
	mu      sync.RWMutex

	publish chan Event

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	eventBufferSize  int
	clientBufferSize int
	shutdownTimeout  time.Duration
	maxClients       int
}

// NewBroker creates a new SSE broker.
func NewBroker(logger infralogger.Logger, opts ...BrokerOption) Broker {
	b := &broker{
		logger:           logger,
		clients:          make(map[string]*client),
		eventBufferSize:  DefaultEventBufferSize,
		clientBufferSize: DefaultClientBufferSize,
		shutdownTimeout:  DefaultShutdownTimeout,
		maxClients:       DefaultMaxClients,
	}

	for _, opt := range opts {
		opt(b)
	}

	b.publish = make(chan Event, b.eventBufferSize)

	return b
}

func (b *broker) Start(ctx context.Context) error {
	b.mu.Lock()
	b.ctx, b.cancel = context.WithCancel(ctx)
	b.mu.Unlock()

	b.wg.Add(1)
	go b.broadcastLoop()

	b.logger.Info("SSE broker started",
		infralogger.Int("event_buffer_size", b.eventBufferSize),
		infralogger.Int("client_buffer_size", b.clientBufferSize),
		infralogger.Int("max_clients", b.maxClients),
	)

	return nil
}

func (b *broker) Stop() error {
	b.mu.RLock()
	cancel := b.cancel
	b.mu.RUnlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("SSE broker stopped gracefully")
	case <-time.After(b.shutdownTimeout):
		b.logger.Warn("SSE broker shutdown timeout exceeded")
	}

	return nil
}

// Publish queues event for broadcast. When the buffer is full it waits for
// space until ctx is done, then drops the event.
func (b *broker) Publish(ctx context.Context, event Event) error {
	b.mu.RLock()
	brokerCtx := b.ctx
	b.mu.RUnlock()
	if brokerCtx == nil || brokerCtx.Err() != nil {
		return ErrBrokerNotRunning
	}

	select {
	case b.publish <- event:
		return nil
	default:
	}

	select {
	case b.publish <- event:
		return nil
	case <-brokerCtx.Done():
		return ErrBrokerNotRunning
	case <-ctx.Done():
		return fmt.Errorf("publish buffer full (dropped event: %s): %w", event.Type, ctx.Err())
	}
}

func (b *broker) Subscribe(ctx context.Context, opts ...ClientOption) (<-chan Event, func(), error) {
	clientOpts := ClientOptions{BufferSize: b.clientBufferSize}
	for _, opt := range opts {
		opt(&clientOpts)
	}

	c := newClient(ctx, clientOpts.BufferSize, clientOpts.Filter)

	b.mu.Lock()
	if b.maxClients > 0 && len(b.clients) >= b.maxClients {
		b.mu.Unlock()
		c.close()
		b.logger.Warn("Max SSE clients reached, rejecting new connection",
			infralogger.Int("max_clients", b.maxClients),
		)
		return nil, func() {}, ErrTooManyClients
	}
	b.clients[c.id] = c
	total := len(b.clients)
	b.mu.Unlock()

	b.logger.Debug("Client subscribed",
		infralogger.String("client_id", c.id),
		infralogger.Int("total_clients", total),
	)

	b.wg.Add(1)
	go b.cleanupClient(c)

	return c.events, func() { b.removeClient(c.id) }, nil
}

func (b *broker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

func (b *broker) broadcastLoop() {
	defer b.wg.Done()

	for {
		select {
		case event := <-b.publish:
			b.broadcast(event)
		case <-b.ctx.Done():
			b.disconnectAllClients()
			return
		}
	}
}

func (b *broker) broadcast(event Event) {
	b.mu.RLock()
	clients := make([]*client, 0, len(b.clients))
	for _, c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.RUnlock()

	for _, c := range clients {
		if c.send(event) {
			continue
		}
		b.logger.Warn("Client buffer full, closing slow connection",
			infralogger.String("client_id", c.id),
			infralogger.String("event_type", event.Type),
		)
		b.removeClient(c.id)
	}
}

func (b *broker) cleanupClient(c *client) {
	defer b.wg.Done()

	<-c.ctx.Done()
	b.removeClient(c.id)
}

func (b *broker) removeClient(clientID string) {
	b.mu.Lock()
	c, exists := b.clients[clientID]
	if exists {
		delete(b.clients, clientID)
	}
	b.mu.Unlock()

	if exists {
		c.close()
		b.logger.Debug("Client disconnected", infralogger.String("client_id", clientID))
	}
}

func (b *broker) disconnectAllClients() {
	b.mu.Lock()
	clients := b.clients
	b.clients = make(map[string]*client)
	b.mu.Unlock()

	for _, c := range clients {
		c.close()
	}

	b.logger.Info("All SSE clients disconnected", infralogger.Int("count", len(clients)))
}
