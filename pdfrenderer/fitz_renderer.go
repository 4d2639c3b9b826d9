package pdfrenderer

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"

	"github.com/jshelley/docview/thumbnail"
)

// FitzDocument implements Document using go-fitz (requires CGo and MuPDF).
// A fitz document handle is not safe for concurrent use, so Render opens a
// fresh handle per call and the one kept from Open is only read at open
// time to build the descriptor list.
type FitzDocument struct {
	filename    string
	descriptors []thumbnail.Descriptor
}

// OpenFitz opens a PDF and enumerates its pages into descriptors. The
// descriptor sizes are the pages' natural bounds in points.
func OpenFitz(filename string) (*FitzDocument, error) {
	doc, err := fitz.New(filename)
	if err != nil {
		return nil, fmt.Errorf("unable to open PDF document: %w", err)
	}
	defer doc.Close()

	numPages := doc.NumPage()
	descriptors := make([]thumbnail.Descriptor, 0, numPages)
	for pageNum := 0; pageNum < numPages; pageNum++ {
		bound, err := doc.Bound(pageNum)
		if err != nil {
			return nil, fmt.Errorf("unable to read bounds of page %d: %w", pageNum+1, err)
		}
		descriptors = append(descriptors, thumbnail.Descriptor{
			PageNumber: pageNum + 1,
			Width:      bound.Dx(),
			Height:     bound.Dy(),
			Ref:        filename,
		})
	}

	Logger.Debug("Opened PDF document", "filename", filename, "pages", numPages)
	return &FitzDocument{filename: filename, descriptors: descriptors}, nil
}

// PageCount returns the number of pages.
func (document *FitzDocument) PageCount() int {
	return len(document.descriptors)
}

// Descriptors returns one descriptor per page.
func (document *FitzDocument) Descriptors() []thumbnail.Descriptor {
	return document.descriptors
}

// Render draws one page and fits it into the requested pixel size.
func (document *FitzDocument) Render(descriptor thumbnail.Descriptor, width, height int) (image.Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid render target %dx%d for page %d", width, height, descriptor.PageNumber)
	}

	// Per-render document handle, see the type comment
	workerDoc, err := fitz.New(document.filename)
	if err != nil {
		return nil, fmt.Errorf("unable to open PDF document: %w", err)
	}
	defer workerDoc.Close()

	img, err := workerDoc.Image(descriptor.PageNumber - 1)
	if err != nil {
		return nil, fmt.Errorf("unable to render page %d: %w", descriptor.PageNumber, err)
	}

	return imaging.Fit(img, width, height, imaging.Lanczos), nil
}

// Close cleans up resources (no-op, handles are closed per render).
func (document *FitzDocument) Close() error {
	return nil
}
