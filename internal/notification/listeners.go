package notification

import (
	"context"
	"sort"
	"sync"

	"github.com/sapliy/reminder-engine/pkg/observability"
)

type ReceivedHandler func(ctx context.Context, data ReceivedData)

type ActionHandler func(ctx context.Context, data ActionData)

// Listeners is the subscription manager for facility events. Handlers run
// synchronously in subscription order; a panicking handler is logged and
// skipped. After Close every emit is dropped and every subscribe is a no-op.
type Listeners struct {
	logger *observability.Logger

	mu       sync.Mutex
	next     uint64
	received map[uint64]ReceivedHandler
	actions  map[uint64]ActionHandler
	closed   bool
}

func NewListeners(logger *observability.Logger) *Listeners {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Listeners{
		logger:   logger,
		received: make(map[uint64]ReceivedHandler),
		actions:  make(map[uint64]ActionHandler),
	}
}

// OnReceived registers h and returns its unsubscribe func. Calling the
// returned func more than once is harmless.
func (l *Listeners) OnReceived(h ReceivedHandler) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return func() {}
	}
	l.next++
	id := l.next
	l.received[id] = h
	return l.unsubscriber(func() { delete(l.received, id) })
}

// OnAction registers h for action-performed events.
func (l *Listeners) OnAction(h ActionHandler) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return func() {}
	}
	l.next++
	id := l.next
	l.actions[id] = h
	return l.unsubscriber(func() { delete(l.actions, id) })
}

func (l *Listeners) unsubscriber(remove func()) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			remove()
			l.mu.Unlock()
		})
	}
}

func (l *Listeners) EmitReceived(ctx context.Context, data ReceivedData) {
	l.mu.Lock()
	handlers := ordered(l.received)
	l.mu.Unlock()

	for _, h := range handlers {
		l.safely(string(EventReceived), func() { h(ctx, data) })
	}
}

func (l *Listeners) EmitAction(ctx context.Context, data ActionData) {
	l.mu.Lock()
	handlers := ordered(l.actions)
	l.mu.Unlock()

	for _, h := range handlers {
		l.safely(string(EventActionPerformed), func() { h(ctx, data) })
	}
}

// Len reports the number of live subscriptions.
func (l *Listeners) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.received) + len(l.actions)
}

// Close drops every subscription. It is idempotent.
func (l *Listeners) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	clear(l.received)
	clear(l.actions)
}

func (l *Listeners) safely(event string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("Listener panicked", "event", event, "panic", r)
		}
	}()
	fn()
}

func ordered[H any](m map[uint64]H) []H {
	ids := make([]uint64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]H, 0, len(ids))
	for _, id := range ids {
		out = append(out, m[id])
	}
	return out
}
