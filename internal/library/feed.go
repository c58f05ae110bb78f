package library

import (
	"context"
	"sync"
	"time"
)

// ChangeKind names the record collection touched by a mutation.
type ChangeKind string

const (
	ChangeKindComponents ChangeKind = "components"
	ChangeKindTemplates  ChangeKind = "templates"
	ChangeKindTrash      ChangeKind = "trash"
	ChangeKindFolders    ChangeKind = "folders"
)

// ChangeEvent notifies subscribers that stored data changed.
type ChangeEvent struct {
	Kinds     []ChangeKind
	IDs       []string
	Timestamp time.Time
}

// ChangeFeed fans change events out to in-process subscribers. Slow subscribers
// drop events rather than block publishers.
type ChangeFeed struct {
	mu          sync.RWMutex
	subscribers map[int64]*feedSubscriber
	listeners   map[int64]func(ChangeEvent)
	nextID      int64
	bufferSize  int
}

type feedSubscriber struct {
	id     int64
	stream chan ChangeEvent
}

func NewChangeFeed() *ChangeFeed {
	return &ChangeFeed{
		subscribers: make(map[int64]*feedSubscriber),
		listeners:   make(map[int64]func(ChangeEvent)),
		bufferSize:  16,
	}
}

// Subscribe registers a subscriber until ctx ends or the returned cleanup runs.
func (f *ChangeFeed) Subscribe(ctx context.Context) (<-chan ChangeEvent, func()) {
	subscriber := &feedSubscriber{
		stream: make(chan ChangeEvent, f.bufferSize),
	}
	f.mu.Lock()
	f.nextID++
	subscriber.id = f.nextID
	f.subscribers[subscriber.id] = subscriber
	f.mu.Unlock()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subscribers, subscriber.id)
			f.mu.Unlock()
		})
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return subscriber.stream, cleanup
}

// Listen registers a callback invoked synchronously by Publish, before
// buffered subscribers are notified. Callbacks must not block or publish.
func (f *ChangeFeed) Listen(listener func(ChangeEvent)) func() {
	f.mu.Lock()
	f.nextID++
	id := f.nextID
	f.listeners[id] = listener
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		delete(f.listeners, id)
		f.mu.Unlock()
	}
}

func (f *ChangeFeed) Publish(event ChangeEvent) {
	if f == nil || len(event.Kinds) == 0 {
		return
	}
	f.mu.RLock()
	listeners := make([]func(ChangeEvent), 0, len(f.listeners))
	for _, listener := range f.listeners {
		listeners = append(listeners, listener)
	}
	copies := make([]*feedSubscriber, 0, len(f.subscribers))
	for _, subscriber := range f.subscribers {
		copies = append(copies, subscriber)
	}
	f.mu.RUnlock()

	for _, listener := range listeners {
		listener(event)
	}
	for _, subscriber := range copies {
		select {
		case subscriber.stream <- event:
		default:
		}
	}
}
