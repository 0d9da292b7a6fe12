package events

import "sync"

// Topic identifies a class of entity-change notifications.
type Topic string

const (
	TopicPOCreated       Topic = "po:created"
	TopicPOUpdated       Topic = "po:updated"
	TopicPOStatusChanged Topic = "po:status_changed"
)

// Handler receives the payload published on a topic.
type Handler func(payload interface{})

// Logger is the narrow logging interface the bus needs.
type Logger interface {
	Errorf(format string, args ...interface{})
}

// Bus is an in-process, best-effort, at-most-once-per-subscriber fan-out of
// entity-change events. It is constructed explicitly and injected where
// needed; its lifecycle is scoped to the server instance. Publishing to zero
// subscribers is a no-op, and a misbehaving subscriber is isolated from the
// publisher and from other subscribers.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[Topic]map[int64]Handler
	nextID      int64
	logger      Logger
}

// NewBus returns an empty bus.
func NewBus(logger Logger) *Bus {
	return &Bus{
		subscribers: make(map[Topic]map[int64]Handler),
		logger:      logger,
	}
}

// Subscribe registers a handler for a topic and returns its unsubscribe
// function. Unsubscribing is idempotent.
func (b *Bus) Subscribe(topic Topic, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subscribers[topic] == nil {
		b.subscribers[topic] = make(map[int64]Handler)
	}
	b.nextID++
	id := b.nextID
	b.subscribers[topic][id] = h
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subscribers[topic], id)
	}
}

// Publish delivers the payload to every current subscriber of the topic. A
// panicking handler is caught and logged, never propagated.
func (b *Bus) Publish(topic Topic, payload interface{}) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subscribers[topic]))
	for _, h := range b.subscribers[topic] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		b.deliver(topic, h, payload)
	}
}

func (b *Bus) deliver(topic Topic, h Handler, payload interface{}) {
	defer func() {
		if r := recover(); r != nil && b.logger != nil {
			b.logger.Errorf("Event handler panic on topic %s: %v", topic, r)
		}
	}()
	h(payload)
}

// SubscriberCount reports the current number of subscribers on a topic.
func (b *Bus) SubscriberCount(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[topic])
}
