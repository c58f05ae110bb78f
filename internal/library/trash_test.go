package library

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRestoreRoundTripRefreshesUpdatedAt(t *testing.T) {
	service, store := newTestService(t)
	original := mustCreateComponent(t, service, ComponentInput{ID: "c1", Name: "Intro", Category: "header", HTML: "<p>hi</p>", Tags: []string{"x"}})

	if err := service.DeleteComponent(context.Background(), "c1"); err != nil {
		t.Fatalf("unexpected delete error: %v", err)
	}
	restored, err := service.RestoreComponent(context.Background(), "c1")
	if err != nil {
		t.Fatalf("unexpected restore error: %v", err)
	}
	if restored.UpdatedAt <= original.UpdatedAt {
		t.Fatalf("expected fresh updatedAt")
	}
	restored.UpdatedAt = original.UpdatedAt
	if !reflect.DeepEqual(restored, original) {
		t.Fatalf("restored record differs: %#v vs %#v", restored, original)
	}
	if _, ok := store.trash["c1"]; ok {
		t.Fatalf("expected trash entry to be removed")
	}
	if _, ok := store.components["c1"]; !ok {
		t.Fatalf("expected live row to be back")
	}
}

func TestRestoreMissingIsNotFound(t *testing.T) {
	service, _ := newTestService(t)
	if _, err := service.RestoreComponent(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRestoreDoesNotOverwriteLiveComponent(t *testing.T) {
	ctx := context.Background()
	service, store := newTestService(t)
	mustCreateComponent(t, service, ComponentInput{ID: "c1", Name: "Old", HTML: "<p>old</p>"})
	if err := service.DeleteComponent(ctx, "c1"); err != nil {
		t.Fatalf("unexpected delete error: %v", err)
	}
	mustCreateComponent(t, service, ComponentInput{ID: "c1", Name: "New", HTML: "<p>new</p>"})

	_, err := service.RestoreComponent(ctx, "c1")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) || serviceErr.Code() != "library.restore_component.live_exists" {
		t.Fatalf("expected live_exists code, got %v", err)
	}
	if store.components["c1"].Name != "New" {
		t.Fatalf("expected live component to be kept, got %#v", store.components["c1"])
	}
	if entry, ok := store.trash["c1"]; !ok || entry.Name != "Old" {
		t.Fatalf("expected trash entry to be kept, got %#v", store.trash)
	}
}

func TestDeleteReplacingTrashEntryIsLogged(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zap.WarnLevel)
	store := newMemoryStore()
	service, err := NewService(ServiceConfig{
		Store:  store,
		Clock:  newSteppingClock().Now,
		Logger: zap.New(core),
		Feed:   NewChangeFeed(),
	})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	for _, name := range []string{"First", "Second"} {
		mustCreateComponent(t, service, ComponentInput{ID: "c1", Name: name, HTML: "<p/>"})
		if err := service.DeleteComponent(ctx, "c1"); err != nil {
			t.Fatalf("unexpected delete error: %v", err)
		}
	}

	if logs.FilterMessage("trash entry replaced").Len() != 1 {
		t.Fatalf("expected one replacement warning, got %d", logs.FilterMessage("trash entry replaced").Len())
	}
	if store.trash["c1"].Name != "Second" {
		t.Fatalf("expected newest deletion to win, got %#v", store.trash["c1"])
	}
}

func TestPurgeTrash(t *testing.T) {
	service, store := newTestService(t)
	for _, id := range []string{"a", "b", "c"} {
		mustCreateComponent(t, service, ComponentInput{ID: id, Name: id, HTML: "<p/>"})
		if err := service.DeleteComponent(context.Background(), id); err != nil {
			t.Fatalf("unexpected delete error: %v", err)
		}
	}

	entries, err := service.ListTrash(context.Background())
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(entries) != 3 || entries[0].ID != "c" {
		t.Fatalf("expected most recently deleted first, got %#v", entries)
	}

	if err := service.PurgeTrashEntry(context.Background(), "a"); err != nil {
		t.Fatalf("unexpected purge error: %v", err)
	}
	if _, ok := store.trash["a"]; ok {
		t.Fatalf("expected a to be purged")
	}
	if err := service.PurgeTrash(context.Background()); err != nil {
		t.Fatalf("unexpected purge all error: %v", err)
	}
	if len(store.trash) != 0 {
		t.Fatalf("expected empty trash")
	}
}
