package thumbnail

import (
	"image"
	"image/color"
	"sync"

	"github.com/disintegration/imaging"
)

// Placeholder dimensions roughly match an A4 page thumbnail.
const (
	placeholderWidth  = 160
	placeholderHeight = 226
)

// cacheEntry tracks the render state for one page number. A page with
// rendering set has exactly one render task executing for it; img holds the
// last committed image, which may have been rendered at an older scale and
// keeps being served while a re-render at the current scale is under way.
type cacheEntry struct {
	rendering bool
	img       image.Image
	scale     float64
}

// Cache maps page numbers to completed thumbnails and tracks which pages
// currently have a render in flight, so a second request for the same page
// is suppressed. All state lives behind one mutex so the check-and-mark in
// TryBeginRender is a single atomic step.
type Cache struct {
	mu      sync.Mutex
	entries map[int]*cacheEntry

	placeholderOnce sync.Once
	placeholder     image.Image
}

// NewCache creates an empty thumbnail cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[int]*cacheEntry)}
}

// Placeholder returns the shared "still loading" image, building it on first
// use. Every page that has no thumbnail yet is served the same value.
func (cache *Cache) Placeholder() image.Image {
	cache.placeholderOnce.Do(func() {
		cache.placeholder = imaging.New(placeholderWidth, placeholderHeight, color.NRGBA{R: 0xee, G: 0xee, B: 0xee, A: 0xff})
	})
	return cache.placeholder
}

// Lookup returns the rendered thumbnail for the page, or the shared
// placeholder if none has been committed yet. Never blocks, never fails.
// An image rendered at an older zoom level is still returned rather than
// flashing back to the placeholder while the re-render runs.
func (cache *Cache) Lookup(pageNumber int) image.Image {
	cache.mu.Lock()
	entry := cache.entries[pageNumber]
	cache.mu.Unlock()
	if entry != nil && entry.img != nil {
		return entry.img
	}
	return cache.Placeholder()
}

// TryBeginRender atomically checks whether the page already has a thumbnail
// at the given scale or a render in flight. If neither, it records the page
// as in progress and returns true: the caller now owns rendering it. A
// thumbnail committed at a different scale no longer counts as ready, so a
// zoom change makes affected pages renderable again.
func (cache *Cache) TryBeginRender(pageNumber int, scale float64) bool {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	entry := cache.entries[pageNumber]
	if entry == nil {
		cache.entries[pageNumber] = &cacheEntry{rendering: true}
		return true
	}
	if entry.rendering {
		return false
	}
	if entry.img != nil && entry.scale == scale {
		return false
	}
	entry.rendering = true
	return true
}

// Commit stores a completed thumbnail and clears the page's in-progress
// mark. A commit for a page with no render recorded (the cache was cleared
// after the render started) is dropped, and a duplicate commit at the same
// scale leaves the first image in place.
func (cache *Cache) Commit(pageNumber int, img image.Image, scale float64) {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	entry := cache.entries[pageNumber]
	if entry == nil {
		return
	}
	if !entry.rendering {
		return
	}
	entry.rendering = false
	entry.img = img
	entry.scale = scale
}

// Abandon clears the page's in-progress mark without storing a result,
// leaving the page eligible for a future render attempt.
func (cache *Cache) Abandon(pageNumber int) {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	entry := cache.entries[pageNumber]
	if entry == nil {
		return
	}
	entry.rendering = false
	if entry.img == nil {
		delete(cache.entries, pageNumber)
	}
}

// Clear drops every thumbnail and in-progress mark. Used when the document
// is reset or replaced.
func (cache *Cache) Clear() {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	cache.entries = make(map[int]*cacheEntry)
}

// Stats reports how many pages have a committed thumbnail and how many have
// a render in flight.
func (cache *Cache) Stats() (ready, inProgress int) {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	for _, entry := range cache.entries {
		if entry.rendering {
			inProgress++
		}
		if entry.img != nil {
			ready++
		}
	}
	return ready, inProgress
}
