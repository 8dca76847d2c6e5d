package event

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// DefaultBufferSize is the per-subscription channel buffer.
const DefaultBufferSize = 256

// Config configures bus behavior.
type Config struct {
	// BufferSize is the channel buffer size per subscription.
	// Default: 256
	BufferSize int

	// OnDrop is called when a subscription's buffer is full and an
	// event is discarded for it.
	OnDrop func(evt Event, subscriberID string)
}

// Bus fans events out to subscribers. Publish never blocks: when a
// subscriber's buffer is full the event is dropped for that subscriber
// and counted.
type Bus struct {
	config Config

	mu        sync.RWMutex
	byType    map[Type]map[string]*Subscription
	wildcards map[string]*Subscription
	closed    bool

	nextID  atomic.Int64
	dropped atomic.Int64
}

// NewBus creates a new in-process event bus.
func NewBus(config Config) *Bus {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultBufferSize
	}
	return &Bus{
		config:    config,
		byType:    make(map[Type]map[string]*Subscription),
		wildcards: make(map[string]*Subscription),
	}
}

// Subscription is an active registration on a Bus. Consume events by
// ranging over Events(); the channel closes on Unsubscribe or bus Close.
type Subscription struct {
	id     string
	types  []Type
	events chan Event
	bus    *Bus
	once   sync.Once
}

// Events returns the delivery channel.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Unsubscribe removes the subscription and closes its channel.
func (s *Subscription) Unsubscribe() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	s.bus.remove(s)
}

// remove detaches and closes a subscription. Caller holds bus.mu.
func (b *Bus) remove(s *Subscription) {
	delete(b.wildcards, s.id)
	for _, t := range s.types {
		if typeSubs, ok := b.byType[t]; ok {
			delete(typeSubs, s.id)
		}
	}
	s.once.Do(func() { close(s.events) })
}

// Subscribe registers for the given event types. With no types the
// subscription receives every event. Returns nil if the bus is closed.
func (b *Bus) Subscribe(types ...Type) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	sub := &Subscription{
		id:     fmt.Sprintf("sub-%d", b.nextID.Add(1)),
		types:  types,
		events: make(chan Event, b.config.BufferSize),
		bus:    b,
	}

	if len(types) == 0 {
		b.wildcards[sub.id] = sub
	} else {
		for _, t := range types {
			if b.byType[t] == nil {
				b.byType[t] = make(map[string]*Subscription)
			}
			b.byType[t][sub.id] = sub
		}
	}

	return sub
}

// Publish fans an event out to all matching subscribers without
// blocking. Publishing on a closed bus is a no-op.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, sub := range b.matching(evt.Type) {
		select {
		case sub.events <- evt:
		default:
			b.dropped.Add(1)
			if b.config.OnDrop != nil {
				b.config.OnDrop(evt, sub.id)
			}
		}
	}
}

// matching returns subscriptions for an event type. Caller holds bus.mu.
func (b *Bus) matching(t Type) []*Subscription {
	subs := make([]*Subscription, 0, len(b.wildcards)+len(b.byType[t]))
	for _, sub := range b.byType[t] {
		subs = append(subs, sub)
	}
	for _, sub := range b.wildcards {
		subs = append(subs, sub)
	}
	return subs
}

// Dropped returns the total number of events discarded because a
// subscriber's buffer was full.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

// Close shuts down the bus and closes every subscription channel.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for _, sub := range b.wildcards {
		sub.once.Do(func() { close(sub.events) })
	}
	seen := make(map[string]bool)
	for _, typeSubs := range b.byType {
		for id, sub := range typeSubs {
			if !seen[id] {
				seen[id] = true
				sub.once.Do(func() { close(sub.events) })
			}
		}
	}

	b.wildcards = make(map[string]*Subscription)
	b.byType = make(map[Type]map[string]*Subscription)
	return nil
}
