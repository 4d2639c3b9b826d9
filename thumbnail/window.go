package thumbnail

import (
	"sync"
)

// Tracker computes the currently visible page range from viewport geometry
// and the zoom scale. Pages are laid out as a vertical stack of their
// natural heights; the window is every page intersecting the strip
// [scroll, scroll+viewportHeight) after scaling. A notification fires once
// per distinct change of the (range, scale) pair, never for a recompute
// that lands on the same values.
type Tracker struct {
	mu             sync.Mutex
	heights        []float64 // natural page heights at scale 1.0, append-only
	scale          float64
	viewportWidth  int
	viewportHeight int
	scroll         float64
	win            Window

	notifiedWin   Window // last (window, scale) pair handed to notify
	notifiedScale float64

	notify func(Window, float64) // single feedback edge into the scheduler, set once at construction
}

// NewTracker creates a tracker with no pages and a scale of 1.0. The notify
// callback receives the new window and scale after each distinct change; it
// is invoked outside the tracker's lock.
func NewTracker(notify func(Window, float64)) *Tracker {
	return &Tracker{scale: 1.0, notifiedScale: 1.0, notify: notify}
}

// Register appends one page's natural height to the layout and recomputes
// the window. Called by the collection when an entry is appended.
func (tracker *Tracker) Register(naturalHeight float64) {
	tracker.mu.Lock()
	if naturalHeight <= 0 {
		naturalHeight = 1 // zero-height pages would stall the layout walk
	}
	tracker.heights = append(tracker.heights, naturalHeight)
	tracker.recomputeLocked()
}

// SetGeometry updates viewport size, scroll offset and scale in one step,
// recomputing the window exactly once. Non-positive scales keep the old
// scale.
func (tracker *Tracker) SetGeometry(width, height int, scroll, scale float64) {
	tracker.mu.Lock()
	tracker.viewportWidth = width
	tracker.viewportHeight = height
	tracker.scroll = scroll
	if scale > 0 {
		tracker.scale = scale
	} else {
		Logger.Warn("Ignoring non-positive scale", "scale", scale)
	}
	tracker.recomputeLocked()
}

// SetViewport updates the viewport geometry and scroll offset, recomputing
// the visible range.
func (tracker *Tracker) SetViewport(width, height int, scroll float64) {
	tracker.mu.Lock()
	tracker.viewportWidth = width
	tracker.viewportHeight = height
	tracker.scroll = scroll
	tracker.recomputeLocked()
}

// SetScale updates the zoom scale. Natural pixel sizes computed at the old
// scale are no longer current, so a scale change always notifies even when
// the index range stays put.
func (tracker *Tracker) SetScale(scale float64) {
	tracker.mu.Lock()
	if scale <= 0 {
		Logger.Warn("Ignoring non-positive scale", "scale", scale)
		tracker.mu.Unlock()
		return
	}
	tracker.scale = scale
	tracker.recomputeLocked()
}

// Reset drops all registered page heights and collapses the window.
func (tracker *Tracker) Reset() {
	tracker.mu.Lock()
	tracker.heights = nil
	tracker.recomputeLocked()
}

// Window returns the current visible range.
func (tracker *Tracker) Window() Window {
	tracker.mu.Lock()
	defer tracker.mu.Unlock()
	return tracker.win
}

// Scale returns the current zoom scale.
func (tracker *Tracker) Scale() float64 {
	tracker.mu.Lock()
	defer tracker.mu.Unlock()
	return tracker.scale
}

// recomputeLocked recalculates the window from the current geometry and
// fires the change notification if the result differs. It is entered with
// the lock held and releases it before notifying, so the callback may call
// back into the tracker without deadlocking.
func (tracker *Tracker) recomputeLocked() {
	tracker.win = tracker.computeWindow()
	win, scale := tracker.win, tracker.scale
	changed := win != tracker.notifiedWin || scale != tracker.notifiedScale
	if changed {
		tracker.notifiedWin = win
		tracker.notifiedScale = scale
	}
	tracker.mu.Unlock()

	if changed && tracker.notify != nil {
		tracker.notify(win, scale)
	}
}

// computeWindow walks the scaled page heights and clamps defensively: a
// transient geometry update during a structural change must yield an empty
// or truncated window, never an out-of-bounds one.
func (tracker *Tracker) computeWindow() Window {
	pageCount := len(tracker.heights)
	if pageCount == 0 || tracker.viewportHeight <= 0 {
		return Window{}
	}

	scroll := tracker.scroll
	if scroll < 0 {
		scroll = 0
	}
	top := scroll
	bottom := scroll + float64(tracker.viewportHeight)

	first := pageCount
	last := pageCount
	offset := 0.0
	for i, h := range tracker.heights {
		pageTop := offset
		offset += h * tracker.scale
		if offset <= top {
			continue // page ends above the viewport
		}
		if pageTop >= bottom {
			last = i
			break
		}
		if first == pageCount {
			first = i
		}
	}
	if first == pageCount {
		return Window{First: pageCount, Last: pageCount}
	}
	if last < first {
		last = first
	}
	return Window{First: first, Last: last}
}
