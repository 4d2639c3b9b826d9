package pdfrenderer

import (
	"fmt"

	"github.com/ledongthuc/pdf"
)

// PageText extracts the plain text of one page with ledongthuc/pdf. Pages
// without a text layer (scans) come back empty rather than failing, so the
// caller can still show the thumbnail.
func (document *FitzDocument) PageText(pageNumber int) (string, error) {
	if pageNumber < 1 || pageNumber > len(document.descriptors) {
		return "", fmt.Errorf("page %d out of range 1..%d", pageNumber, len(document.descriptors))
	}

	pdfFile, reader, err := pdf.Open(document.filename)
	if err != nil {
		return "", fmt.Errorf("unable to open PDF for text extraction: %w", err)
	}
	defer pdfFile.Close()

	page := reader.Page(pageNumber)
	if page.V.IsNull() {
		Logger.Debug("Page has no content for text extraction", "filename", document.filename, "page", pageNumber)
		return "", nil
	}

	text, err := page.GetPlainText(nil)
	if err != nil {
		Logger.Info("Text extraction failed, treating page as image-only", "filename", document.filename, "page", pageNumber, "error", err)
		return "", nil
	}
	return text, nil
}
