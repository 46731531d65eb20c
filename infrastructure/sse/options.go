package sse

import "time"

// Default configuration values.
const (
	DefaultEventBufferSize   = 1000
	DefaultClientBufferSize  = 256
	DefaultHeartbeatInterval = 15 * time.Second
	DefaultShutdownTimeout   = 5 * time.Second
	DefaultMaxClients        = 100
)

// BrokerOption configures a broker.
type BrokerOption func(*broker)

// WithEventBufferSize sets the event buffer size.
func WithEventBufferSize(size int) BrokerOption {
	return func(b *broker) {
		if size > 0 {
			b.eventBufferSize = size
		}
	}
}

// WithClientBufferSize sets the default client buffer size.
func WithClientBufferSize(size int) BrokerOption {
	return func(b *broker) {
		if size > 0 {
			b.clientBufferSize = size
		}
	}
}

// WithMaxClients sets the maximum number of concurrent clients. Zero means unlimited.
func WithMaxClients(maxClients int) BrokerOption {
	return func(b *broker) {
		b.maxClients = maxClients
	}
}

// ClientOption configures a client subscription.
type ClientOption func(*ClientOptions)

// WithFilter sets an event filter for the client.
func WithFilter(filter EventFilter) ClientOption {
	return func(opts *ClientOptions) {
		opts.Filter = filter
	}
}

// WithBatchFilter only passes events whose payload belongs to batchID.
func WithBatchFilter(batchID string) ClientOption {
	return WithFilter(func(event Event) bool {
		scoped, ok := event.Data.(batchScoped)
		return ok && scoped.GetBatchID() == batchID
	})
}
