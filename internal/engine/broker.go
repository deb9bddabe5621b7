package engine

import (
	"sync"
	"time"

	"github.com/taskgate/taskgate/internal/model"
)

// subscriberBufferSize is the channel buffer for each event subscriber.
// Events are dropped if a subscriber falls this far behind.
const subscriberBufferSize = 16

// Event is one status transition of a task.
type Event struct {
	Status model.Status `json:"status"`
	At     time.Time    `json:"at"`
}

// Broker fans task status transitions out to subscribers. It is safe for
// concurrent use.
//
// Closed topics are retained as markers so that late subscribers (those
// subscribing after a task finishes) receive a closed channel instead of
// blocking forever. Each marker is a few bytes, which is acceptable for the
// expected task volume.
type Broker struct {
	mu     sync.Mutex
	topics map[string]*topic
}

type topic struct {
	subs   map[int]chan Event
	nextID int
	closed bool
}

// NewBroker creates a new event broker.
func NewBroker() *Broker {
	return &Broker{
		topics: make(map[string]*topic),
	}
}

// Subscribe returns a channel that receives status events for the given task
// and an unsubscribe function. If the task has already finished (Close was
// called), the returned channel is immediately closed.
func (b *Broker) Subscribe(taskID string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[taskID]
	if !ok {
		t = &topic{subs: make(map[int]chan Event)}
		b.topics[taskID] = t
	}

	ch := make(chan Event, subscriberBufferSize)
	if t.closed {
		close(ch)
		return ch, func() {}
	}

	id := t.nextID
	t.nextID++
	t.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(t.subs, id)
	}
}

// Publish delivers an event to all current subscribers of the task. Slow
// subscribers have the event dropped rather than blocking the engine.
func (b *Broker) Publish(taskID string, ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[taskID]
	if !ok || t.closed {
		return
	}

	for _, ch := range t.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close marks the task's stream finished, closing all subscriber channels.
// Subsequent subscribes observe an immediately closed channel.
func (b *Broker) Close(taskID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[taskID]
	if !ok {
		t = &topic{subs: make(map[int]chan Event), closed: true}
		b.topics[taskID] = t
		return
	}
	if t.closed {
		return
	}

	t.closed = true
	for id, ch := range t.subs {
		close(ch)
		delete(t.subs, id)
	}
}

// Drop removes a topic entirely, used when pruning task state.
func (b *Broker) Drop(taskID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.topics, taskID)
}
