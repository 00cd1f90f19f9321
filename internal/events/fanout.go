package events

import (
	"sync"
	"time"
)

// Fanout delivers domain events to channel subscribers. Delivery is
// fire-and-forget and at-most-once: a subscriber that cannot keep up loses
// events, and late subscribers miss everything published before they joined.
type Fanout interface {
	// Publish delivers the event to current subscribers of its channel.
	Publish(event Event)

	// Subscribe registers interest in a channel. The returned cancel
	// function detaches the subscription and closes the event stream.
	Subscribe(channel string) (<-chan Event, func())
}

const defaultSubscriberBuffer = 16

// ChannelFanout is an in-process Fanout over buffered Go channels.
type ChannelFanout struct {
	mu          sync.RWMutex
	subscribers map[string]map[uint64]chan Event
	nextID      uint64
	buffer      int
}

// NewChannelFanout creates a ChannelFanout with the default subscriber buffer
func NewChannelFanout() *ChannelFanout {
	return &ChannelFanout{
		subscribers: make(map[string]map[uint64]chan Event),
		buffer:      defaultSubscriberBuffer,
	}
}

// Publish delivers the event to current subscribers of its channel. Sends
// never block; a full subscriber buffer drops the event for that subscriber.
func (f *ChannelFanout) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, ch := range f.subscribers[event.Channel] {
		select {
		case ch <- event:
		default:
		}
	}
}

// Subscribe registers interest in a channel
func (f *ChannelFanout) Subscribe(channel string) (<-chan Event, func()) {
	ch := make(chan Event, f.buffer)

	f.mu.Lock()
	id := f.nextID
	f.nextID++
	if f.subscribers[channel] == nil {
		f.subscribers[channel] = make(map[uint64]chan Event)
	}
	f.subscribers[channel][id] = ch
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if subs, ok := f.subscribers[channel]; ok {
			if _, ok := subs[id]; ok {
				delete(subs, id)
				close(ch)
			}
			if len(subs) == 0 {
				delete(f.subscribers, channel)
			}
		}
	}

	return ch, cancel
}

// NullFanout discards every event. Used in tests and anywhere realtime
// delivery is not wired up.
type NullFanout struct{}

// NewNullFanout creates a NullFanout
func NewNullFanout() *NullFanout {
	return &NullFanout{}
}

// Publish discards the event
func (*NullFanout) Publish(Event) {}

// Subscribe returns a stream that never delivers
func (*NullFanout) Subscribe(string) (<-chan Event, func()) {
	ch := make(chan Event)
	var once sync.Once
	return ch, func() {
		once.Do(func() { close(ch) })
	}
}
