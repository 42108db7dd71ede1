package bus

import (
	"strings"
	"sync"
)

// Token identifies a subscription and is passed back to Unsubscribe.
type Token int

// Bus is an in-process publish/subscribe event bus with namespace filtering.
// The store and channel publish on it; the presentation layer subscribes to
// learn when to re-render.
type Bus struct {
	mu   sync.RWMutex
	subs map[Token]*subscription
	next Token
}

type subscription struct {
	namespace string
	ch        chan Event
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		subs: make(map[Token]*subscription),
	}
}

// Publish sends an event to all subscribers whose namespace is a prefix of event.Kind.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if strings.HasPrefix(evt.Kind, sub.namespace) {
			select {
			case sub.ch <- evt:
			default:
				// Drop event if subscriber is full (non-blocking).
			}
		}
	}
}

// Subscribe returns a channel that receives events matching the given namespace
// prefix, and a token for Unsubscribe. bufSize controls the channel buffer.
func (b *Bus) Subscribe(namespace string, bufSize int) (<-chan Event, Token) {
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	tok := b.next
	b.next++
	b.subs[tok] = &subscription{namespace: namespace, ch: ch}
	b.mu.Unlock()
	return ch, tok
}

// Unsubscribe removes the subscription for the given token. Unknown tokens are a no-op.
func (b *Bus) Unsubscribe(tok Token) {
	b.mu.Lock()
	delete(b.subs, tok)
	b.mu.Unlock()
}
