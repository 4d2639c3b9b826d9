// Package thumbnail implements a visibility-windowed, cancellable,
// deduplicated page-thumbnail cache. A Source holds one entry per document
// page; only pages inside the currently visible window are rendered, at
// most one render runs per page, moving the window supersedes outstanding
// work, and pages without a thumbnail yet are served a shared placeholder.
package thumbnail

import (
	"fmt"
	"image"
	"sync"
)

// Entry is the externally observed view of one page: its descriptor, a
// display label and the current cache lookup result.
type Entry struct {
	source     *Source
	descriptor Descriptor
}

// Descriptor returns the page descriptor the entry was created from.
func (entry *Entry) Descriptor() Descriptor {
	return entry.descriptor
}

// PageNumber returns the 1-based page number.
func (entry *Entry) PageNumber() int {
	return entry.descriptor.PageNumber
}

// Label returns the display label for the page.
func (entry *Entry) Label() string {
	return fmt.Sprintf("Page %d", entry.descriptor.PageNumber)
}

// Image returns the page's thumbnail if one has been rendered, or the
// shared placeholder. Never blocks.
func (entry *Entry) Image() image.Image {
	return entry.source.cache.Lookup(entry.descriptor.PageNumber)
}

// Source is the ordered collection of page entries and the owner of the
// cache, window tracker and scheduler behind them. Structural changes and
// geometry updates arrive on one control path; rendering happens on
// goroutines dispatched by the scheduler.
type Source struct {
	mu      sync.Mutex
	entries []*Entry

	cache    *Cache
	tracker  *Tracker
	sched    *Scheduler
	notifier *Notifier
}

// NewSource creates a source rendering through the given backend. dispatch,
// if non-nil, is the notification context every change event is marshalled
// onto; nil means synchronous delivery.
func NewSource(backend Backend, dispatch func(func())) *Source {
	source := &Source{
		cache:    NewCache(),
		notifier: NewNotifier(dispatch),
	}
	source.sched = NewScheduler(backend, source.cache, source.notifier.emitEntry)
	// The tracker's change notification feeding the scheduler is the single
	// feedback edge between the components: one structural change triggers
	// at most one recompute, which triggers at most one new generation.
	source.tracker = NewTracker(source.scheduleWindow)
	return source
}

// Len returns the number of entries.
func (source *Source) Len() int {
	source.mu.Lock()
	defer source.mu.Unlock()
	return len(source.entries)
}

// At returns the entry at the zero-based index, or nil if out of range.
func (source *Source) At(index int) *Entry {
	source.mu.Lock()
	defer source.mu.Unlock()
	if index < 0 || index >= len(source.entries) {
		return nil
	}
	return source.entries[index]
}

// ByPage returns the entry for the 1-based page number, or nil.
func (source *Source) ByPage(pageNumber int) *Entry {
	return source.At(pageNumber - 1)
}

// Append adds one entry at the end, registers its natural size with the
// window tracker and raises a collection-changed notification. Page numbers
// are expected 1-based and dense; anything else is logged and still
// appended, since the ledger order is owned by the page source.
func (source *Source) Append(descriptor Descriptor) {
	source.mu.Lock()
	if descriptor.PageNumber != len(source.entries)+1 {
		Logger.Warn("Appending page out of sequence", "page", descriptor.PageNumber, "expected", len(source.entries)+1)
	}
	entry := &Entry{source: source, descriptor: descriptor}
	source.entries = append(source.entries, entry)
	index := len(source.entries) - 1
	source.mu.Unlock()

	source.notifier.emitCollection(CollectionEvent{Kind: EventAdd, Index: index})
	source.tracker.Register(float64(descriptor.Height))
}

// Reset clears all entries and the cache and drops the outstanding render
// generation. Renders already in flight will not commit after this point,
// the one exception to the late-commits-apply rule: their page numbers no
// longer mean anything.
func (source *Source) Reset() {
	source.mu.Lock()
	source.entries = nil
	source.mu.Unlock()

	// Order matters: the scheduler's epoch must move before the cache is
	// emptied so an in-flight render racing the reset cannot resurrect an
	// entry.
	source.sched.Reset()
	source.cache.Clear()
	source.tracker.Reset()
	source.notifier.emitCollection(CollectionEvent{Kind: EventReset, Index: -1})
}

// OnWindowGeometryChanged feeds a viewport update into the window tracker.
// A distinct resulting window or scale starts a new render generation.
func (source *Source) OnWindowGeometryChanged(viewportWidth, viewportHeight int, scroll, scale float64) {
	source.tracker.SetGeometry(viewportWidth, viewportHeight, scroll, scale)
}

// Window returns the currently visible entry index range.
func (source *Source) Window() Window {
	return source.tracker.Window()
}

// Scale returns the current zoom scale.
func (source *Source) Scale() float64 {
	return source.tracker.Scale()
}

// SubscribeCollection registers for structural change events.
func (source *Source) SubscribeCollection(fn func(CollectionEvent)) {
	source.notifier.SubscribeCollection(fn)
}

// SubscribeEntry registers for per-page thumbnail-ready events.
func (source *Source) SubscribeEntry(fn func(pageNumber int)) {
	source.notifier.SubscribeEntry(fn)
}

// Placeholder returns the shared loading image every not-yet-rendered page
// is served.
func (source *Source) Placeholder() image.Image {
	return source.cache.Placeholder()
}

// Stats reports the cache's ready and in-progress page counts.
func (source *Source) Stats() (ready, inProgress int) {
	return source.cache.Stats()
}

// Wait blocks until all dispatched renders have settled. Intended for
// shutdown and tests.
func (source *Source) Wait() {
	source.sched.Wait()
}

// scheduleWindow is the tracker's change notification. It snapshots the
// descriptors inside the new window and hands them to the scheduler in
// window order, so pages nearest the top of the viewport are dispatched
// first (a quality-of-service heuristic, not an ordering guarantee).
func (source *Source) scheduleWindow(win Window, scale float64) {
	source.mu.Lock()
	first, last := win.First, win.Last
	if first < 0 {
		first = 0
	}
	if last > len(source.entries) {
		last = len(source.entries)
	}
	var pages []Descriptor
	for i := first; i < last; i++ {
		pages = append(pages, source.entries[i].descriptor)
	}
	source.mu.Unlock()

	source.sched.Schedule(pages, scale)
}
