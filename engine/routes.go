package engine

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/labstack/echo/v4"
)

type openDocumentRequest struct {
	Path string `json:"path"`
}

type documentInfo struct {
	ID         string  `json:"id"`
	Path       string  `json:"path"`
	Pages      int     `json:"pages"`
	Scale      float64 `json:"scale"`
	First      int     `json:"windowFirst"`
	Last       int     `json:"windowLast"`
	Ready      int     `json:"pagesReady"`
	InProgress int     `json:"pagesRendering"`
}

type viewportRequest struct {
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Scroll float64 `json:"scroll"`
	Scale  float64 `json:"scale"`
}

// OpenDocumentRoute opens a PDF under the document root and returns the new
// session's id and page count.
func (serverHandler *ServerHandler) OpenDocumentRoute(context echo.Context) error {
	var request openDocumentRequest
	if err := context.Bind(&request); err != nil {
		return context.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	session, err := serverHandler.OpenDocument(request.Path)
	if err != nil {
		Logger.Error("Unable to open document", "path", request.Path, "error", err)
		return context.JSON(http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	}
	return context.JSON(http.StatusOK, serverHandler.sessionInfo(session))
}

// GetDocument returns session info for one open document.
func (serverHandler *ServerHandler) GetDocument(context echo.Context) error {
	session := serverHandler.Session(context.Param("id"))
	if session == nil {
		return context.JSON(http.StatusNotFound, map[string]string{"error": "no such document session"})
	}
	return context.JSON(http.StatusOK, serverHandler.sessionInfo(session))
}

// GetDocuments lists all open sessions.
func (serverHandler *ServerHandler) GetDocuments(context echo.Context) error {
	sessions := serverHandler.Sessions()
	infos := make([]documentInfo, 0, len(sessions))
	for _, session := range sessions {
		infos = append(infos, serverHandler.sessionInfo(session))
	}
	return context.JSON(http.StatusOK, infos)
}

// GetThumbnail serves the current thumbnail for one page as PNG. Pages not
// rendered yet get the shared placeholder with caching disabled, so clients
// naturally re-poll until the real image lands.
func (serverHandler *ServerHandler) GetThumbnail(context echo.Context) error {
	session := serverHandler.Session(context.Param("id"))
	if session == nil {
		return context.JSON(http.StatusNotFound, map[string]string{"error": "no such document session"})
	}
	pageNumber, err := strconv.Atoi(context.Param("num"))
	if err != nil || session.Source.ByPage(pageNumber) == nil {
		return context.JSON(http.StatusNotFound, map[string]string{"error": "no such page"})
	}

	entry := session.Source.ByPage(pageNumber)
	img := entry.Image()
	isPlaceholder := img == session.Source.Placeholder()

	// Fingerprint the pixels before encoding so a 304 skips the PNG encode.
	var etag string
	if !isPlaceholder {
		etag = thumbnailETag(img)
		if match := context.Request().Header.Get("If-None-Match"); match == etag {
			return context.NoContent(http.StatusNotModified)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		Logger.Error("Unable to encode thumbnail", "id", session.ID.String(), "page", pageNumber, "error", err)
		return context.JSON(http.StatusInternalServerError, map[string]string{"error": "thumbnail encoding failed"})
	}

	if isPlaceholder {
		context.Response().Header().Set("Cache-Control", "no-store")
		return context.Blob(http.StatusOK, "image/png", buf.Bytes())
	}
	context.Response().Header().Set("ETag", etag)
	return context.Blob(http.StatusOK, "image/png", buf.Bytes())
}

// thumbnailETag hashes the raw pixel buffer of a rendered thumbnail. The
// renderer hands back NRGBA images so the fast path covers real renders; any
// other type falls back to a per-pixel walk.
func thumbnailETag(img image.Image) string {
	digest := xxhash.New()
	switch typed := img.(type) {
	case *image.NRGBA:
		digest.Write(typed.Pix)
	case *image.RGBA:
		digest.Write(typed.Pix)
	default:
		bounds := img.Bounds()
		pixel := make([]byte, 4)
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				r, g, b, a := img.At(x, y).RGBA()
				pixel[0], pixel[1], pixel[2], pixel[3] = byte(r>>8), byte(g>>8), byte(b>>8), byte(a>>8)
				digest.Write(pixel)
			}
		}
	}
	return fmt.Sprintf(`"%x"`, digest.Sum64())
}

// GetPageText serves the extracted plain text of one page.
func (serverHandler *ServerHandler) GetPageText(context echo.Context) error {
	session := serverHandler.Session(context.Param("id"))
	if session == nil {
		return context.JSON(http.StatusNotFound, map[string]string{"error": "no such document session"})
	}
	pageNumber, err := strconv.Atoi(context.Param("num"))
	if err != nil {
		return context.JSON(http.StatusNotFound, map[string]string{"error": "no such page"})
	}

	text, err := session.Document().PageText(pageNumber)
	if err != nil {
		Logger.Warn("Unable to extract page text", "id", session.ID.String(), "page", pageNumber, "error", err)
		return context.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}
	return context.String(http.StatusOK, text)
}

// SetViewport feeds a client viewport update into the session's window
// tracker, which reschedules rendering as needed.
func (serverHandler *ServerHandler) SetViewport(context echo.Context) error {
	session := serverHandler.Session(context.Param("id"))
	if session == nil {
		return context.JSON(http.StatusNotFound, map[string]string{"error": "no such document session"})
	}
	var request viewportRequest
	if err := context.Bind(&request); err != nil {
		return context.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if request.Scale <= 0 {
		request.Scale = session.Source.Scale()
	}

	session.Source.OnWindowGeometryChanged(request.Width, request.Height, request.Scroll, request.Scale)
	return context.JSON(http.StatusOK, serverHandler.sessionInfo(session))
}

// CloseDocumentRoute closes one session.
func (serverHandler *ServerHandler) CloseDocumentRoute(context echo.Context) error {
	if err := serverHandler.CloseDocument(context.Param("id")); err != nil {
		return context.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}
	return context.JSON(http.StatusOK, "Document Closed")
}

func (serverHandler *ServerHandler) sessionInfo(session *DocumentSession) documentInfo {
	win := session.Source.Window()
	ready, inProgress := session.Source.Stats()
	return documentInfo{
		ID:         session.ID.String(),
		Path:       session.Path,
		Pages:      session.Source.Len(),
		Scale:      session.Source.Scale(),
		First:      win.First,
		Last:       win.Last,
		Ready:      ready,
		InProgress: inProgress,
	}
}
