package engine

import (
	"encoding/json"
	"image"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/jshelley/docview/config"
	"github.com/jshelley/docview/thumbnail"
)

// stubDocument is an in-memory document so engine tests never need MuPDF or
// a real PDF on disk.
type stubDocument struct {
	pages  int
	closed bool
}

func (document *stubDocument) Render(descriptor thumbnail.Descriptor, width, height int) (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, width, height)), nil
}

func (document *stubDocument) PageCount() int {
	return document.pages
}

func (document *stubDocument) Descriptors() []thumbnail.Descriptor {
	descriptors := make([]thumbnail.Descriptor, 0, document.pages)
	for p := 1; p <= document.pages; p++ {
		descriptors = append(descriptors, thumbnail.Descriptor{PageNumber: p, Width: 100, Height: 140})
	}
	return descriptors
}

func (document *stubDocument) PageText(pageNumber int) (string, error) {
	return "stub page text", nil
}

func (document *stubDocument) Close() error {
	document.closed = true
	return nil
}

func newTestHandler(t *testing.T) *ServerHandler {
	t.Helper()
	Logger = slog.New(slog.NewTextHandler(os.Stdout, nil))
	config.Logger = Logger
	return &ServerHandler{
		Echo: echo.New(),
		ServerConfig: config.ServerConfig{
			DocumentRoot:   t.TempDir(),
			DefaultScale:   1.0,
			ViewportWidth:  800,
			ViewportHeight: 1200,
		},
	}
}

func TestThumbnailRoute(t *testing.T) {
	serverHandler := newTestHandler(t)
	e := serverHandler.Echo
	e.GET("/api/document/:id/page/:num/thumbnail", serverHandler.GetThumbnail)

	session := serverHandler.openSession(&stubDocument{pages: 3}, "/stub/doc.pdf")
	session.Source.Wait()

	req := httptest.NewRequest(http.MethodGet, "/api/document/"+session.ID.String()+"/page/1/thumbnail", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Thumbnail route returned %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", ct)
	}
	etag := rec.Header().Get("ETag")
	if etag == "" {
		t.Fatal("Rendered thumbnail response carried no ETag")
	}

	// A second request with the ETag is answered 304 without a body
	req = httptest.NewRequest(http.MethodGet, "/api/document/"+session.ID.String()+"/page/1/thumbnail", nil)
	req.Header.Set("If-None-Match", etag)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotModified {
		t.Errorf("Conditional request returned %d, want 304", rec.Code)
	}
}

func TestThumbnailRouteServesPlaceholderOffWindow(t *testing.T) {
	serverHandler := newTestHandler(t)
	// Small viewport: with 140-point pages only the first few are visible
	serverHandler.ServerConfig.ViewportHeight = 300
	e := serverHandler.Echo
	e.GET("/api/document/:id/page/:num/thumbnail", serverHandler.GetThumbnail)

	session := serverHandler.openSession(&stubDocument{pages: 50}, "/stub/doc.pdf")
	session.Source.Wait()

	req := httptest.NewRequest(http.MethodGet, "/api/document/"+session.ID.String()+"/page/50/thumbnail", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Placeholder request returned %d", rec.Code)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "no-store" {
		t.Errorf("Placeholder Cache-Control = %q, want no-store", cc)
	}
}

func TestViewportRouteMovesWindow(t *testing.T) {
	serverHandler := newTestHandler(t)
	serverHandler.ServerConfig.ViewportHeight = 300
	e := serverHandler.Echo
	e.POST("/api/document/:id/viewport", serverHandler.SetViewport)

	session := serverHandler.openSession(&stubDocument{pages: 50}, "/stub/doc.pdf")
	session.Source.Wait()

	body := `{"width": 800, "height": 300, "scroll": 1400, "scale": 1.0}`
	req := httptest.NewRequest(http.MethodPost, "/api/document/"+session.ID.String()+"/viewport", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Viewport route returned %d: %s", rec.Code, rec.Body.String())
	}
	session.Source.Wait()

	// Scroll 1400 over 140-point pages lands the window at page index 10
	var info struct {
		First int `json:"windowFirst"`
		Last  int `json:"windowLast"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("Failed to parse viewport response: %v", err)
	}
	if info.First != 10 {
		t.Errorf("Window first = %d, want 10", info.First)
	}
	if win := session.Source.Window(); win.First != 10 {
		t.Errorf("Session window = %+v, want first 10", win)
	}
	if img := session.Source.ByPage(11).Image(); img == session.Source.Placeholder() {
		t.Error("Page 11 inside the moved window was not rendered")
	}
}

func TestPageTextRoute(t *testing.T) {
	serverHandler := newTestHandler(t)
	e := serverHandler.Echo
	e.GET("/api/document/:id/page/:num/text", serverHandler.GetPageText)

	session := serverHandler.openSession(&stubDocument{pages: 3}, "/stub/doc.pdf")

	req := httptest.NewRequest(http.MethodGet, "/api/document/"+session.ID.String()+"/page/2/text", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Text route returned %d", rec.Code)
	}
	if rec.Body.String() != "stub page text" {
		t.Errorf("Text body = %q", rec.Body.String())
	}
}

func TestCloseDocumentResetsSession(t *testing.T) {
	serverHandler := newTestHandler(t)
	e := serverHandler.Echo
	e.DELETE("/api/document/:id", serverHandler.CloseDocumentRoute)

	document := &stubDocument{pages: 3}
	session := serverHandler.openSession(document, "/stub/doc.pdf")
	session.Source.Wait()
	entry := session.Source.ByPage(1)

	req := httptest.NewRequest(http.MethodDelete, "/api/document/"+session.ID.String(), nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Close route returned %d: %s", rec.Code, rec.Body.String())
	}
	if serverHandler.Session(session.ID.String()) != nil {
		t.Error("Session still registered after close")
	}
	if !document.closed {
		t.Error("Underlying document was not closed")
	}
	if entry.Image() != session.Source.Placeholder() {
		t.Error("Closed session should have dropped its thumbnails")
	}

	// Closing twice is a 404, not a crash
	req = httptest.NewRequest(http.MethodDelete, "/api/document/"+session.ID.String(), nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Second close returned %d, want 404", rec.Code)
	}
}

func TestUnknownSessionRoutes(t *testing.T) {
	serverHandler := newTestHandler(t)
	e := serverHandler.Echo
	e.GET("/api/document/:id", serverHandler.GetDocument)
	e.GET("/api/document/:id/page/:num/thumbnail", serverHandler.GetThumbnail)

	for _, path := range []string{
		"/api/document/does-not-exist",
		"/api/document/does-not-exist/page/1/thumbnail",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s returned %d, want 404", path, rec.Code)
		}
	}
}

func TestResolveDocumentPathConfinement(t *testing.T) {
	serverHandler := newTestHandler(t)

	if _, err := serverHandler.resolveDocumentPath("../outside.pdf"); err == nil {
		t.Error("Path escaping the document root was accepted")
	}
	if _, err := serverHandler.resolveDocumentPath(""); err == nil {
		t.Error("Empty path was accepted")
	}
	resolved, err := serverHandler.resolveDocumentPath("sub/inside.pdf")
	if err != nil {
		t.Fatalf("Path inside the document root was rejected: %v", err)
	}
	if !strings.HasPrefix(resolved, serverHandler.ServerConfig.DocumentRoot) {
		t.Errorf("Resolved path %q not under document root", resolved)
	}
}

func TestThumbnailETagTracksPixels(t *testing.T) {
	base := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	same := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	changed := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	changed.Pix[0] = 0xff

	if thumbnailETag(base) != thumbnailETag(same) {
		t.Error("Identical pixel buffers produced different tags")
	}
	if thumbnailETag(base) == thumbnailETag(changed) {
		t.Error("Distinct pixel buffers produced the same tag")
	}
	// Fallback walk for image types the renderer never produces.
	gray := image.NewGray(image.Rect(0, 0, 8, 8))
	if thumbnailETag(gray) != thumbnailETag(image.NewGray(image.Rect(0, 0, 8, 8))) {
		t.Error("Fallback fingerprint is not deterministic")
	}
}

func TestShutdownStopsWatcher(t *testing.T) {
	serverHandler := newTestHandler(t)
	path := filepath.Join(serverHandler.ServerConfig.DocumentRoot, "doc.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatalf("Unable to seed watched file: %v", err)
	}
	session := serverHandler.openSession(&stubDocument{pages: 1}, path)
	if err := serverHandler.watchSession(session); err != nil {
		t.Fatalf("Unable to watch session: %v", err)
	}
	watch := serverHandler.watch

	serverHandler.Shutdown()

	select {
	case <-watch.done:
	case <-time.After(5 * time.Second):
		t.Fatal("Watcher event pump did not exit on shutdown")
	}
	if serverHandler.watch != nil {
		t.Error("Shutdown left the watcher attached")
	}
	serverHandler.Shutdown() // second shutdown is a no-op
}
