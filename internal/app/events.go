package app

import (
	"sync"

	"github.com/example/mobi2epub/internal/ports/primary"
)

// EventQueue is an unbounded, thread-safe FIFO of events from the worker to the controller.
// Publish never blocks; Drain hands over everything pending at once.
type EventQueue struct {
	mu      sync.Mutex
	pending []primary.Event
}

// NewEventQueue creates an empty event queue.
func NewEventQueue() *EventQueue {
	return &EventQueue{}
}

// Publish appends an event.
func (q *EventQueue) Publish(ev primary.Event) {
	q.mu.Lock()
	q.pending = append(q.pending, ev)
	q.mu.Unlock()
}

// Drain removes and returns all pending events in publication order.
// Events published during the call are left for the next Drain.
func (q *EventQueue) Drain() []primary.Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	evs := q.pending
	q.pending = nil
	return evs
}

// Len returns the number of pending events.
func (q *EventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
