// Package pubsub fans messages out to in-process subscribers.
package pubsub

import (
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type SubscriptionID int64

// Pubsub delivers every published message to all current subscribers.
// Publish never blocks: a subscriber whose buffer is full misses the message.
type Pubsub[T any] struct {
	nextID      SubscriptionID
	buffer      int
	subscribers map[SubscriptionID]chan T
	mu          sync.RWMutex
	log         zerolog.Logger
}

// New creates a Pubsub whose subscriber channels hold up to buffer messages.
func New[T any](buffer int) *Pubsub[T] {
	return &Pubsub[T]{
		buffer:      buffer,
		subscribers: make(map[SubscriptionID]chan T),
		log:         log.With().Str("component", "pubsub").Logger(),
	}
}

// Subscribe registers a subscriber. The channel is closed by Unsubscribe.
func (p *Pubsub[T]) Subscribe() (SubscriptionID, <-chan T) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch := make(chan T, p.buffer)
	id := p.nextID
	p.subscribers[id] = ch
	p.nextID++

	return id, ch
}

// Unsubscribe removes the subscriber and closes its channel.
func (p *Pubsub[T]) Unsubscribe(id SubscriptionID) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch, ok := p.subscribers[id]
	if !ok {
		return
	}
	delete(p.subscribers, id)
	close(ch)
}

// Publish sends msg to every subscriber.
func (p *Pubsub[T]) Publish(msg T) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for id, ch := range p.subscribers {
		select {
		case ch <- msg:
		default:
			p.log.Warn().
				Int64("subscription_id", int64(id)).
				Msg("Message dropped, channel full")
		}
	}
}

// Len returns the number of subscribers.
func (p *Pubsub[T]) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subscribers)
}
