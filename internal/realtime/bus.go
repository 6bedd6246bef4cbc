package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/isagip/barangay-dashboard-api/internal/models"
)

// ErrClosed is returned by a bus after Close.
var ErrClosed = errors.New("realtime: bus closed")

const subscriberBuffer = 32

// Bus fans change events out to subscribers of a collection.
type Bus interface {
	Publish(ctx context.Context, event models.ChangeEvent) error
	Subscribe(ctx context.Context, collection string) (<-chan models.ChangeEvent, error)
	Close() error
}

// NewChangeEvent builds an event stamped with the current time. The payload is
// optional and encoded as JSON.
func NewChangeEvent(collection, id, op string, payload interface{}) models.ChangeEvent {
	event := models.ChangeEvent{Collection: collection, ID: id, Op: op, At: time.Now().UTC()}
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			event.Payload = raw
		}
	}
	return event
}

// MemoryBus delivers events in-process. Slow subscribers drop events rather
// than block publishers.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[string]map[chan models.ChangeEvent]struct{}
	closed bool
	logger *zap.Logger
}

// NewMemoryBus constructs an in-process bus.
func NewMemoryBus(logger *zap.Logger) *MemoryBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryBus{subs: make(map[string]map[chan models.ChangeEvent]struct{}), logger: logger}
}

// Publish delivers the event to every current subscriber of its collection.
func (b *MemoryBus) Publish(_ context.Context, event models.ChangeEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	for ch := range b.subs[event.Collection] {
		select {
		case ch <- event:
		default:
			b.logger.Warn("dropping change event for slow subscriber",
				zap.String("collection", event.Collection), zap.String("id", event.ID))
		}
	}
	return nil
}

// Subscribe registers a subscriber until ctx is cancelled.
func (b *MemoryBus) Subscribe(ctx context.Context, collection string) (<-chan models.ChangeEvent, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	ch := make(chan models.ChangeEvent, subscriberBuffer)
	if b.subs[collection] == nil {
		b.subs[collection] = make(map[chan models.ChangeEvent]struct{})
	}
	b.subs[collection][ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[collection][ch]; ok {
			delete(b.subs[collection], ch)
			close(ch)
		}
	}()
	return ch, nil
}

// Subscribers reports how many subscribers a collection has.
func (b *MemoryBus) Subscribers(collection string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[collection])
}

// Close closes every subscriber channel.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, set := range b.subs {
		for ch := range set {
			close(ch)
		}
	}
	b.subs = map[string]map[chan models.ChangeEvent]struct{}{}
	return nil
}

// RedisBus shares change events between processes over Redis pub/sub. One
// channel per collection: prefix + collection.
type RedisBus struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewRedisBus wraps a connected client.
func NewRedisBus(client *redis.Client, prefix string, logger *zap.Logger) *RedisBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBus{client: client, prefix: prefix, logger: logger}
}

func (b *RedisBus) channel(collection string) string {
	return b.prefix + collection
}

// Publish encodes the event as JSON on the collection channel.
func (b *RedisBus) Publish(ctx context.Context, event models.ChangeEvent) error {
	if b.client == nil {
		return ErrClosed
	}
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode change event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel(event.Collection), raw).Err(); err != nil {
		return fmt.Errorf("publish change event: %w", err)
	}
	return nil
}

// Subscribe listens on the collection channel until ctx is cancelled. The
// subscription is confirmed before returning so no event published afterwards
// is missed.
func (b *RedisBus) Subscribe(ctx context.Context, collection string) (<-chan models.ChangeEvent, error) {
	if b.client == nil {
		return nil, ErrClosed
	}
	pubsub := b.client.Subscribe(ctx, b.channel(collection))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", collection, err)
	}

	out := make(chan models.ChangeEvent, subscriberBuffer)
	go func() {
		defer close(out)
		defer pubsub.Close()
		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var event models.ChangeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					b.logger.Warn("discarding malformed change event", zap.String("channel", msg.Channel), zap.Error(err))
					continue
				}
				select {
				case out <- event:
				default:
					b.logger.Warn("dropping change event for slow subscriber",
						zap.String("collection", event.Collection), zap.String("id", event.ID))
				}
			}
		}
	}()
	return out, nil
}

// Close is a no-op; the client is owned by the caller.
func (b *RedisBus) Close() error { return nil }

var (
	_ Bus = (*MemoryBus)(nil)
	_ Bus = (*RedisBus)(nil)
)
