package statestore

import (
	"context"
	"time"

	"github.com/redilah/CulinaryAI/runtime/events"
	"github.com/redilah/CulinaryAI/runtime/logger"
)

// defaultWriteTimeout bounds one store write from the listener.
const defaultWriteTimeout = 5 * time.Second

// NameListener persists names announced on the event bus under
// KeyRememberedUserName.
type NameListener struct {
	store   Store
	timeout time.Duration
	onSaved func(name string)
}

// NewNameListener creates a listener writing to store.
func NewNameListener(store Store) *NameListener {
	return &NameListener{store: store, timeout: defaultWriteTimeout}
}

// OnSaved registers a callback invoked after each successful write.
func (l *NameListener) OnSaved(fn func(name string)) *NameListener {
	l.onSaved = fn
	return l
}

// Attach subscribes the listener to bus and returns the unsubscribe func.
func (l *NameListener) Attach(bus *events.EventBus) func() {
	return bus.Subscribe(events.EventNameDetected, l.Handle)
}

// Handle stores the name carried by a NameDetected event. Write failures are
// logged and do not propagate.
func (l *NameListener) Handle(event *events.Event) {
	data, ok := event.Data.(events.NameDetectedData)
	if !ok || data.Name == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()
	ctx = logger.WithSessionID(ctx, event.SessionID)

	if err := l.store.Set(ctx, KeyRememberedUserName, data.Name); err != nil {
		logger.WarnContext(ctx, "NameListener: failed to persist name", "error", err)
		return
	}
	logger.DebugContext(ctx, "NameListener: name persisted", "name", data.Name)
	if l.onSaved != nil {
		l.onSaved(data.Name)
	}
}
