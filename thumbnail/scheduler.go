package thumbnail

import (
	"fmt"
	"image"
	"sync"
	"sync/atomic"
)

// Backend renders one page into a pixel buffer at the requested size. It
// may be slow and is only ever called from render goroutines, never from
// the control path. Implementations must be safe for concurrent calls with
// different descriptors.
type Backend interface {
	Render(descriptor Descriptor, width, height int) (image.Image, error)
}

// Scheduler dispatches render work for the visible window. Each call to
// Schedule starts a new generation and logically cancels the previous one;
// render goroutines compare their generation against the live counter at
// each poll point instead of sharing a swappable cancellation token, so
// there is no race on the signal itself. A render that has already invoked
// the backend when its generation is superseded still commits its result:
// cancellation stops future work, it does not throw away paid-for pixels.
type Scheduler struct {
	backend Backend
	cache   *Cache

	generation atomic.Uint64
	epoch      atomic.Uint64 // bumped by Reset; commits from an older epoch are dropped

	mu             sync.Mutex
	live           map[int]Descriptor // pages of the live batch, for requeueing after a stale abandon
	liveScale      float64
	liveGeneration uint64
	liveEpoch      uint64

	onReady func(pageNumber int) // fired once per committed page, may be nil

	wg sync.WaitGroup
}

// NewScheduler creates a scheduler publishing completed renders into the
// given cache. onReady, if non-nil, is called once for every committed page.
func NewScheduler(backend Backend, cache *Cache, onReady func(pageNumber int)) *Scheduler {
	return &Scheduler{backend: backend, cache: cache, onReady: onReady}
}

// Schedule cancels any outstanding batch and starts a new one covering the
// given descriptors at the given scale. Pages already rendered at this scale
// or already rendering under any generation are skipped; in-progress renders
// belong to the page, not to a generation, so a page still rendering for a
// superseded window is never started twice.
func (scheduler *Scheduler) Schedule(pages []Descriptor, scale float64) {
	generation := scheduler.generation.Add(1)
	epoch := scheduler.epoch.Load()

	scheduler.mu.Lock()
	scheduler.live = make(map[int]Descriptor, len(pages))
	for _, descriptor := range pages {
		scheduler.live[descriptor.PageNumber] = descriptor
	}
	scheduler.liveScale = scale
	scheduler.liveGeneration = generation
	scheduler.liveEpoch = epoch
	scheduler.mu.Unlock()

	for _, descriptor := range pages {
		if !scheduler.cache.TryBeginRender(descriptor.PageNumber, scale) {
			continue
		}
		scheduler.wg.Add(1)
		go scheduler.renderPage(generation, epoch, descriptor, scale)
	}
}

// Cancel supersedes the current batch without starting a new one. Renders
// that have not reached the backend yet abandon their pages.
func (scheduler *Scheduler) Cancel() {
	scheduler.generation.Add(1)
}

// Reset supersedes the current batch and additionally refuses any late
// commit from renders started before the reset: after a document reset the
// old page numbers are no longer meaningful.
func (scheduler *Scheduler) Reset() {
	scheduler.epoch.Add(1)
	scheduler.generation.Add(1)
}

// Wait blocks until every dispatched render has settled. Bookkeeping only;
// new window changes never wait for old batches.
func (scheduler *Scheduler) Wait() {
	scheduler.wg.Wait()
}

// renderPage runs as its own goroutine, one per page the scheduler owns.
func (scheduler *Scheduler) renderPage(generation, epoch uint64, descriptor Descriptor, scale float64) {
	defer scheduler.wg.Done()

	// Cooperative cancellation: the backend call itself is assumed
	// uninterruptible, so poll before paying for it. The epoch check comes
	// first: after a reset the cache was cleared and the page number may
	// already be owned by a fresh render, which an Abandon here would clobber.
	if scheduler.epoch.Load() != epoch {
		return
	}
	if scheduler.generation.Load() != generation {
		scheduler.cache.Abandon(descriptor.PageNumber)
		scheduler.requeueLive(descriptor.PageNumber)
		return
	}

	width := int(float64(descriptor.Width) * scale)
	height := int(float64(descriptor.Height) * scale)
	img, err := scheduler.render(descriptor, width, height)
	if scheduler.epoch.Load() != epoch {
		return // document was reset while rendering; the entry is gone
	}
	if err != nil {
		Logger.Warn("Thumbnail render failed, page left retryable", "page", descriptor.PageNumber, "error", err)
		scheduler.cache.Abandon(descriptor.PageNumber)
		return
	}

	scheduler.cache.Commit(descriptor.PageNumber, img, scale)
	if scheduler.onReady != nil {
		scheduler.onReady(descriptor.PageNumber)
	}
}

// requeueLive re-attempts a page that a superseded task just abandoned. A
// batch only dispatches pages it can mark in-progress, so a page still
// rendering under an old generation is skipped by the batch that supersedes
// it; when the old task then abandons at its poll point the page would stay
// a placeholder forever even though it is still visible. Dispatching it
// here under the live generation closes that gap.
func (scheduler *Scheduler) requeueLive(pageNumber int) {
	scheduler.mu.Lock()
	descriptor, ok := scheduler.live[pageNumber]
	scale := scheduler.liveScale
	generation := scheduler.liveGeneration
	epoch := scheduler.liveEpoch
	scheduler.mu.Unlock()

	if !ok || scheduler.generation.Load() != generation {
		return
	}
	if !scheduler.cache.TryBeginRender(pageNumber, scale) {
		return
	}
	scheduler.wg.Add(1)
	go scheduler.renderPage(generation, epoch, descriptor, scale)
}

// render invokes the backend with panic recovery so one misbehaving page
// cannot take down the batch or leak an in-progress mark.
func (scheduler *Scheduler) render(descriptor Descriptor, width, height int) (img image.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			Logger.Error("Panic recovered in render backend", "page", descriptor.PageNumber, "panic", r)
			img = nil
			err = fmt.Errorf("render backend panicked: %v", r)
		}
	}()
	return scheduler.backend.Render(descriptor, width, height)
}
