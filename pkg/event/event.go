// pkg/event/event.go
// Package event provides a fire-and-forget publish-subscribe bus used to
// announce queue and job changes to observers.
package event

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Topics published by the job processor.
const (
	TopicQueueUpdate = "queue.update"
	TopicJobStatus   = "job.status"

	// TopicAll subscribes a handler to every topic.
	TopicAll = "*"
)

// QueueUpdate reports queue occupancy and the number of jobs being processed.
type QueueUpdate struct {
	QueueSize  int `json:"queue_size"`
	ActiveJobs int `json:"active_jobs"`
}

// JobStatus reports a job lifecycle transition.
type JobStatus struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Event is a published message.
type Event struct {
	Topic string    `json:"type"`
	Time  time.Time `json:"timestamp"`
	Data  any       `json:"data"`
}

// Handler is a function that handles an event.
type Handler func(ctx context.Context, e Event)

// Publisher is the write side of the bus. Publish must not block the caller
// and must not report delivery failures.
type Publisher interface {
	Publish(ctx context.Context, topic string, data any)
}

// EventBus defines the interface for an event system.
type EventBus interface {
	Publisher
	Subscribe(topic string, handler Handler) (unsubscribe func())
}

type subscription struct {
	id      uint64
	handler Handler
}

// Bus represents the event bus.
type Bus struct {
	mu          sync.RWMutex
	nextID      uint64
	subscribers map[string][]subscription
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		subscribers: make(map[string][]subscription),
	}
}

// Subscribe adds a handler for a topic, or for every topic with TopicAll.
func (b *Bus) Subscribe(topic string, handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subscribers[topic] = append(b.subscribers[topic], subscription{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subscribers[topic]
		for i, s := range subs {
			if s.id == id {
				b.subscribers[topic] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers the event to every matching handler asynchronously.
// A panicking handler is logged and otherwise ignored.
func (b *Bus) Publish(ctx context.Context, topic string, data any) {
	e := Event{Topic: topic, Time: time.Now(), Data: data}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subscribers[topic])+len(b.subscribers[TopicAll]))
	for _, s := range b.subscribers[topic] {
		handlers = append(handlers, s.handler)
	}
	if topic != TopicAll {
		for _, s := range b.subscribers[TopicAll] {
			handlers = append(handlers, s.handler)
		}
	}
	b.mu.RUnlock()

	for _, handler := range handlers {
		go func(h Handler) {
			defer func() {
				if r := recover(); r != nil {
					log.Warn().
						Str("component", "event").
						Str("topic", topic).
						Interface("panic", r).
						Msg("Event handler panicked")
				}
			}()
			h(context.WithoutCancel(ctx), e)
		}(handler)
	}
}

// Nop is a Publisher that drops every event.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, string, any) {}
