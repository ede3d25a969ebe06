// Package events provides a lightweight pub/sub event bus for live session
// observability. Metrics, the CLI and the remembered-name store listen here
// instead of being called by the session directly.
package events

import (
	"sync"
	"sync/atomic"

	"github.com/redilah/CulinaryAI/runtime/logger"
)

// Listener is a function that handles events.
type Listener func(*Event)

const defaultQueueSize = 1024

type subscription struct {
	id       uint64
	listener Listener
}

// EventBus delivers events to listeners in publish order on a single
// dispatch goroutine, so a slow listener never blocks the publisher. When the
// queue is full the event is dropped.
type EventBus struct {
	mu              sync.RWMutex
	listeners       map[EventType][]subscription
	globalListeners []subscription
	nextID          uint64

	queue     chan *Event
	done      chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
	dropped   atomic.Uint64
}

// NewEventBus creates a new event bus and starts its dispatcher.
func NewEventBus() *EventBus {
	eb := &EventBus{
		listeners: make(map[EventType][]subscription),
		queue:     make(chan *Event, defaultQueueSize),
		done:      make(chan struct{}),
	}
	go eb.dispatch()
	return eb
}

// Subscribe registers a listener for a specific event type. The returned
// function removes it.
func (eb *EventBus) Subscribe(eventType EventType, listener Listener) func() {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.nextID++
	id := eb.nextID
	eb.listeners[eventType] = append(eb.listeners[eventType], subscription{id: id, listener: listener})
	return func() {
		eb.mu.Lock()
		defer eb.mu.Unlock()
		eb.listeners[eventType] = without(eb.listeners[eventType], id)
	}
}

// SubscribeAll registers a listener for all event types. The returned
// function removes it.
func (eb *EventBus) SubscribeAll(listener Listener) func() {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.nextID++
	id := eb.nextID
	eb.globalListeners = append(eb.globalListeners, subscription{id: id, listener: listener})
	return func() {
		eb.mu.Lock()
		defer eb.mu.Unlock()
		eb.globalListeners = without(eb.globalListeners, id)
	}
}

func without(subs []subscription, id uint64) []subscription {
	out := make([]subscription, 0, len(subs))
	for _, s := range subs {
		if s.id != id {
			out = append(out, s)
		}
	}
	return out
}

// Publish queues an event for delivery. It never blocks. Publishing on a
// nil or closed bus is a no-op.
func (eb *EventBus) Publish(event *Event) {
	if eb == nil || event == nil || eb.closed.Load() {
		return
	}
	defer func() {
		// Close may race with a publish that passed the check above.
		_ = recover()
	}()
	select {
	case eb.queue <- event:
	default:
		if n := eb.dropped.Add(1); n == 1 || n%100 == 0 {
			logger.Warn("EventBus: queue full, dropping events", "type", event.Type, "dropped", n)
		}
	}
}

// Dropped returns the number of events dropped because the queue was full.
func (eb *EventBus) Dropped() uint64 {
	return eb.dropped.Load()
}

func (eb *EventBus) dispatch() {
	defer close(eb.done)
	for event := range eb.queue {
		eb.mu.RLock()
		specific := append([]subscription(nil), eb.listeners[event.Type]...)
		global := append([]subscription(nil), eb.globalListeners...)
		eb.mu.RUnlock()

		for _, s := range specific {
			safeInvoke(s.listener, event)
		}
		for _, s := range global {
			safeInvoke(s.listener, event)
		}
	}
}

// Close stops accepting events and waits until queued events are delivered.
func (eb *EventBus) Close() {
	eb.closeOnce.Do(func() {
		eb.closed.Store(true)
		close(eb.queue)
	})
	<-eb.done
}

// Clear removes all listeners (primarily for tests).
func (eb *EventBus) Clear() {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.listeners = make(map[EventType][]subscription)
	eb.globalListeners = nil
}

func safeInvoke(listener Listener, event *Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("EventBus: listener panicked", "type", event.Type, "panic", r)
		}
	}()
	listener(event)
}
