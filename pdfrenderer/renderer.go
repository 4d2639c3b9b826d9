// Package pdfrenderer provides the PDF-backed page source and render
// backend for the thumbnail cache.
package pdfrenderer

import (
	"log/slog"

	"github.com/jshelley/docview/thumbnail"
)

// Logger is global since we will need it everywhere
var Logger = slog.New(slog.DiscardHandler)

// Document supplies page descriptors in stable, final page order and
// renders single pages on demand. Render may be called from multiple
// goroutines with different descriptors.
type Document interface {
	thumbnail.Backend

	// PageCount returns the number of pages in the document.
	PageCount() int

	// Descriptors returns one descriptor per page, 1-based and dense.
	Descriptors() []thumbnail.Descriptor

	// PageText extracts the plain text of the given 1-based page, used for
	// entry labels and text lookups. Best effort; scanned pages yield "".
	PageText(pageNumber int) (string, error)

	// Close cleans up any resources used by the document.
	Close() error
}

// Open opens a PDF file with the MuPDF-based renderer.
func Open(filename string) (Document, error) {
	return OpenFitz(filename)
}
