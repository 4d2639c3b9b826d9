package thumbnail

import (
	"sync"
)

// EventKind classifies collection change events.
type EventKind int

const (
	// EventAdd signals one entry appended at Index.
	EventAdd EventKind = iota
	// EventReset signals the whole collection was cleared.
	EventReset
)

// CollectionEvent describes one structural change to the entry list.
type CollectionEvent struct {
	Kind  EventKind
	Index int // entry index for EventAdd, -1 for EventReset
}

// Notifier fans change events out to subscribers. If a dispatch function is
// supplied, every callback is handed to it (for marshaling onto a UI loop);
// otherwise callbacks run synchronously on the emitting goroutine. Entry
// updates are emitted from render goroutines, so subscribers without a
// dispatch function must be safe to call concurrently.
type Notifier struct {
	mu         sync.Mutex
	dispatch   func(func())
	collection []func(CollectionEvent)
	entries    []func(pageNumber int)
}

// NewNotifier creates a notifier. dispatch may be nil for synchronous
// delivery.
func NewNotifier(dispatch func(func())) *Notifier {
	return &Notifier{dispatch: dispatch}
}

// SubscribeCollection registers a callback for structural changes.
func (notifier *Notifier) SubscribeCollection(fn func(CollectionEvent)) {
	notifier.mu.Lock()
	notifier.collection = append(notifier.collection, fn)
	notifier.mu.Unlock()
}

// SubscribeEntry registers a callback fired once per page whose thumbnail
// was committed.
func (notifier *Notifier) SubscribeEntry(fn func(pageNumber int)) {
	notifier.mu.Lock()
	notifier.entries = append(notifier.entries, fn)
	notifier.mu.Unlock()
}

func (notifier *Notifier) emitCollection(event CollectionEvent) {
	notifier.mu.Lock()
	subscribers := append([]func(CollectionEvent){}, notifier.collection...)
	notifier.mu.Unlock()
	for _, fn := range subscribers {
		notifier.deliver(func() { fn(event) })
	}
}

func (notifier *Notifier) emitEntry(pageNumber int) {
	notifier.mu.Lock()
	subscribers := append([]func(int){}, notifier.entries...)
	notifier.mu.Unlock()
	for _, fn := range subscribers {
		notifier.deliver(func() { fn(pageNumber) })
	}
}

func (notifier *Notifier) deliver(fn func()) {
	if notifier.dispatch != nil {
		notifier.dispatch(fn)
		return
	}
	fn()
}
