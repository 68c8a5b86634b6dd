package events

import (
	"sync"
	"time"
)

// Message is what subscribers receive.
type Message struct {
	Type Event     `json:"type"`
	Time time.Time `json:"time"`
	Data any       `json:"data"`
}

type subscriber struct {
	ch     chan Message
	topics map[Event]bool
}

// Bus is a lightweight pub/sub broker using channels.
type Bus struct {
	mu   sync.RWMutex
	subs map[*subscriber]struct{}
	now  func() time.Time
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[*subscriber]struct{}), now: time.Now}
}

// Subscribe registers a listener for the given topics (all topics when none
// are given) and returns the channel and an unsubscribe function.
func (b *Bus) Subscribe(buffer int, topics ...Event) (<-chan Message, func()) {
	s := &subscriber{ch: make(chan Message, buffer)}
	if len(topics) > 0 {
		s.topics = make(map[Event]bool, len(topics))
		for _, t := range topics {
			s.topics[t] = true
		}
	}

	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, s)
			close(s.ch)
			b.mu.Unlock()
		})
	}
	return s.ch, unsub
}

// Publish fan-outs the payload to subscribers without blocking; slow
// subscribers drop messages.
func (b *Bus) Publish(e Event, payload any) {
	if b == nil {
		return
	}
	msg := Message{Type: e, Time: b.now().UTC(), Data: payload}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs {
		if s.topics != nil && !s.topics[e] {
			continue
		}
		select {
		case s.ch <- msg:
		default:
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
