package thumbnail

import (
	"log/slog"
)

// Logger is global since we will need it everywhere. The embedding
// application injects its own; the default discards so the package stays
// usable standalone.
var Logger = slog.New(slog.DiscardHandler)

// Descriptor identifies one renderable page. Width and Height are the
// page's natural size in points at scale 1.0; the scheduler derives the
// pixel target from the current zoom. Immutable once created.
type Descriptor struct {
	PageNumber int // 1-based, stable for the document's lifetime
	Width      int
	Height     int
	Ref        any // opaque source page data handed through to the Backend
}

// Window is a half-open page index range [First, Last) over the entry list.
type Window struct {
	First int
	Last  int
}

// Contains reports whether the zero-based index falls inside the window.
func (w Window) Contains(index int) bool {
	return index >= w.First && index < w.Last
}

// Len returns the number of indices covered by the window.
func (w Window) Len() int {
	return w.Last - w.First
}
