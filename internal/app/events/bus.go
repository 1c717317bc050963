package events

import (
	"log/slog"
	"sync"
)

const (
	TopicChatMessage     = "chat:message"
	TopicChatResponse    = "chat:response"
	TopicConnectionState = "connection:state"
	TopicSettingsChanged = "settings:changed"
	TopicAppError        = "app:error"
)

// Handler receives one published payload. Handlers run on the publisher's
// goroutine; anything slow belongs in a goroutine of the handler's own.
type Handler func(payload any)

type subscription struct {
	id int
	fn Handler
}

// Bus is the in-process pub/sub router. Publish fans out synchronously to
// the handlers subscribed to the topic, in subscription order. Delivery is
// best-effort, at-most-once per subscriber: a handler that panics is logged
// and the remaining handlers still run.
type Bus struct {
	mu        sync.RWMutex
	subs      map[string][]subscription
	nextSubID int
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string][]subscription)}
}

func (b *Bus) Publish(topic string, payload any) {
	if topic == "" {
		return
	}
	b.mu.RLock()
	handlers := make([]subscription, len(b.subs[topic]))
	copy(handlers, b.subs[topic])
	b.mu.RUnlock()

	for _, sub := range handlers {
		invoke(topic, sub, payload)
	}
}

// Subscribe registers a handler for a topic and returns its unsubscribe
// func. The handler stays active until unsubscribed.
func (b *Bus) Subscribe(topic string, fn Handler) func() {
	b.mu.Lock()
	if b.subs == nil {
		b.subs = make(map[string][]subscription)
	}
	id := b.nextSubID
	b.nextSubID++
	b.subs[topic] = append(b.subs[topic], subscription{id: id, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[topic]
		for i, sub := range subs {
			if sub.id == id {
				b.subs[topic] = append(subs[:i:i], subs[i+1:]...)
				break
			}
		}
		if len(b.subs[topic]) == 0 {
			delete(b.subs, topic)
		}
	}
}

func invoke(topic string, sub subscription, payload any) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("events: subscriber panicked", slog.String("topic", topic), slog.Any("panic", r))
		}
	}()
	sub.fn(payload)
}
