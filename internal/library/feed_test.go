package library

import (
	"context"
	"testing"
	"time"
)

func TestChangeFeedDeliversMutations(t *testing.T) {
	service, _ := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream, cleanup := service.Feed().Subscribe(ctx)
	defer cleanup()

	mustCreateComponent(t, service, ComponentInput{ID: "a", Name: "A", HTML: "<p/>"})

	select {
	case event := <-stream:
		if len(event.Kinds) != 1 || event.Kinds[0] != ChangeKindComponents {
			t.Fatalf("unexpected kinds %#v", event.Kinds)
		}
		if len(event.IDs) != 1 || event.IDs[0] != "a" {
			t.Fatalf("unexpected ids %#v", event.IDs)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for change event")
	}
}

func TestChangeFeedCleanupStopsDelivery(t *testing.T) {
	feed := NewChangeFeed()
	stream, cleanup := feed.Subscribe(context.Background())
	cleanup()
	cleanup()

	feed.Publish(ChangeEvent{Kinds: []ChangeKind{ChangeKindTrash}})
	select {
	case event := <-stream:
		t.Fatalf("unexpected event after cleanup: %#v", event)
	default:
	}
}

func TestChangeFeedDropsWhenSubscriberIsFull(t *testing.T) {
	feed := NewChangeFeed()
	stream, cleanup := feed.Subscribe(context.Background())
	defer cleanup()

	for index := 0; index < 40; index++ {
		feed.Publish(ChangeEvent{Kinds: []ChangeKind{ChangeKindFolders}})
	}
	if len(stream) != 16 {
		t.Fatalf("expected buffered events to cap at 16, got %d", len(stream))
	}
}

func TestChangeFeedListenerRunsSynchronously(t *testing.T) {
	feed := NewChangeFeed()
	var received []ChangeKind
	stop := feed.Listen(func(event ChangeEvent) {
		received = append(received, event.Kinds...)
	})
	feed.Publish(ChangeEvent{Kinds: []ChangeKind{ChangeKindTemplates}})
	stop()
	feed.Publish(ChangeEvent{Kinds: []ChangeKind{ChangeKindTrash}})

	if len(received) != 1 || received[0] != ChangeKindTemplates {
		t.Fatalf("unexpected listener events %#v", received)
	}
}
