package notification

import (
	"context"
	"reflect"
	"testing"

	"github.com/sapliy/reminder-engine/internal/reminder"
)

func TestListeners_OrderAndUnsubscribe(t *testing.T) {
	l := NewListeners(nil)
	var got []string

	unsubA := l.OnReceived(func(ctx context.Context, d ReceivedData) { got = append(got, "a") })
	l.OnReceived(func(ctx context.Context, d ReceivedData) { got = append(got, "b") })
	l.OnAction(func(ctx context.Context, d ActionData) { got = append(got, "action:"+d.ActionID) })

	l.EmitReceived(context.Background(), ReceivedData{Notification: reminder.Descriptor{ID: 1001}})
	l.EmitAction(context.Background(), ActionData{NotificationID: 1001, ActionID: "open"})
	if !reflect.DeepEqual(got, []string{"a", "b", "action:open"}) {
		t.Fatalf("unexpected dispatch order %v", got)
	}

	unsubA()
	unsubA()
	if l.Len() != 2 {
		t.Errorf("expected 2 live subscriptions, got %d", l.Len())
	}

	got = nil
	l.EmitReceived(context.Background(), ReceivedData{})
	if !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("unsubscribed handler still called: %v", got)
	}
}

func TestListeners_PanicIsContained(t *testing.T) {
	l := NewListeners(nil)
	called := false
	l.OnReceived(func(ctx context.Context, d ReceivedData) { panic("bad handler") })
	l.OnReceived(func(ctx context.Context, d ReceivedData) { called = true })

	l.EmitReceived(context.Background(), ReceivedData{})
	if !called {
		t.Error("handler after a panicking one was skipped")
	}
}

func TestListeners_Close(t *testing.T) {
	l := NewListeners(nil)
	unsub := l.OnReceived(func(ctx context.Context, d ReceivedData) {
		t.Error("handler called after Close")
	})
	l.Close()
	l.Close()
	unsub()

	l.EmitReceived(context.Background(), ReceivedData{})
	late := l.OnAction(func(ctx context.Context, d ActionData) {
		t.Error("subscription after Close must be inert")
	})
	late()
	l.EmitAction(context.Background(), ActionData{})

	if l.Len() != 0 {
		t.Errorf("expected no subscriptions after Close, got %d", l.Len())
	}
}
