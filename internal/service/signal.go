package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/totegamma/quire"
)

// Bus is the process wide publish point for change events. It is created once at
// startup and closed at shutdown; everything that publishes or listens gets it injected.
type Bus struct {
	mu     sync.RWMutex
	subs   []*Subscription
	closed bool
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscription receives every valid event published after it was created.
type Subscription struct {
	bus  *Bus
	ch   chan quire.Event
	once sync.Once
}

// Subscribe registers a listener with room for buffer pending events. Events that do not
// fit are dropped for this subscriber only.
func (b *Bus) Subscribe(buffer int) *Subscription {
	sub := &Subscription{
		bus: b,
		ch:  make(chan quire.Event, buffer),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.ch)
		sub.once.Do(func() {})
		return sub
	}
	b.subs = append(b.subs, sub)
	return sub
}

func (s *Subscription) Events() <-chan quire.Event {
	return s.ch
}

func (s *Subscription) Close() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	for i, sub := range s.bus.subs {
		if sub == s {
			s.bus.subs = append(s.bus.subs[:i], s.bus.subs[i+1:]...)
			break
		}
	}
	s.once.Do(func() { close(s.ch) })
}

// Publish validates and delivers an event to all current subscribers in subscription order.
// Invalid events are logged and discarded; publishing never blocks on a subscriber.
func (b *Bus) Publish(ctx context.Context, name string, typ quire.EventType, subject quire.Subject, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	event := quire.Event{
		Name:    name,
		Type:    typ,
		Subject: subject,
		Data:    data,
	}

	if !event.Valid() {
		slog.WarnContext(
			ctx, "Dropping invalid event",
			slog.String("name", name),
			slog.String("type", string(typ)),
			slog.String("subjectType", subject.Type),
			slog.String("subjectId", subject.ID),
			slog.String("module", "signal"),
		)
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, sub := range b.subs {
		select {
		case sub.ch <- event:
		default:
			slog.WarnContext(
				ctx, "Subscriber is full, event dropped",
				slog.String("name", name),
				slog.String("subjectId", subject.ID),
				slog.String("module", "signal"),
			)
		}
	}
}

// Close ends every subscription. Publishing after Close is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, sub := range b.subs {
		sub.once.Do(func() { close(sub.ch) })
	}
	b.subs = nil
}

type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// SignalService relays events to redis so that other processes can follow the feed.
type SignalService struct {
	rdb publisher
}

func NewSignalService(redisClient publisher) *SignalService {
	return &SignalService{
		rdb: redisClient,
	}
}

// Publish sends event as JSON on the redis channel.
func (s *SignalService) Publish(ctx context.Context, channel string, event quire.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "failed to encode event")
	}
	return errors.Wrapf(s.rdb.Publish(ctx, channel, payload).Err(), "failed to publish on %s", channel)
}

// Forward publishes every event of sub on the redis channel named after the event until
// ctx is done or the subscription is closed.
func (s *SignalService) Forward(ctx context.Context, sub *Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			err := s.Publish(ctx, event.Name, event)
			if err != nil {
				slog.ErrorContext(
					ctx, "Failed to forward event",
					slog.String("error", err.Error()),
					slog.String("module", "signal"),
				)
			}
		}
	}
}
