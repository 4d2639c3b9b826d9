package engine

import (
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/oklog/ulid/v2"

	"github.com/jshelley/docview/config"
	"github.com/jshelley/docview/pdfrenderer"
	"github.com/jshelley/docview/thumbnail"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// ServerHandler will inject the variables needed into routes
type ServerHandler struct {
	Echo         *echo.Echo
	ServerConfig config.ServerConfig

	mu       sync.Mutex
	sessions map[string]*DocumentSession

	watch *documentWatcher
}

// DocumentSession is one open document and its thumbnail source.
type DocumentSession struct {
	ID       ulid.ULID
	Path     string
	OpenedAt time.Time

	mu       sync.Mutex
	document pdfrenderer.Document
	Source   *thumbnail.Source
}

// Document returns the session's current document. It can be swapped by a
// reload, hence the accessor.
func (session *DocumentSession) Document() pdfrenderer.Document {
	session.mu.Lock()
	defer session.mu.Unlock()
	return session.document
}

// sessionBackend routes render calls through the session so a reload picks
// up the reopened document for subsequent renders.
type sessionBackend struct {
	session *DocumentSession
}

func (backend sessionBackend) Render(descriptor thumbnail.Descriptor, width, height int) (image.Image, error) {
	return backend.session.Document().Render(descriptor, width, height)
}

// OpenDocument opens a PDF under the configured document root and starts a
// thumbnail session for it.
func (serverHandler *ServerHandler) OpenDocument(path string) (*DocumentSession, error) {
	absPath, err := serverHandler.resolveDocumentPath(path)
	if err != nil {
		return nil, err
	}

	document, err := pdfrenderer.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("unable to open document %s: %w", absPath, err)
	}

	session := serverHandler.openSession(document, absPath)

	if serverHandler.ServerConfig.WatchDocuments {
		if err := serverHandler.watchSession(session); err != nil {
			Logger.Warn("Unable to watch document for changes", "path", absPath, "error", err)
		}
	}

	Logger.Info("Opened document session", "id", session.ID.String(), "path", absPath, "pages", document.PageCount())
	return session, nil
}

// openSession wires a document into a new session. Split from OpenDocument
// so tests can inject a document without touching the filesystem.
func (serverHandler *ServerHandler) openSession(document pdfrenderer.Document, path string) *DocumentSession {
	session := &DocumentSession{
		ID:       ulid.Make(),
		Path:     path,
		OpenedAt: time.Now(),
		document: document,
	}
	session.Source = thumbnail.NewSource(sessionBackend{session: session}, nil)
	session.Source.SubscribeEntry(func(pageNumber int) {
		Logger.Debug("Thumbnail ready", "id", session.ID.String(), "page", pageNumber)
	})

	// Geometry first so the first visible pages start rendering while the
	// rest of the ledger is still being appended
	session.Source.OnWindowGeometryChanged(
		serverHandler.ServerConfig.ViewportWidth,
		serverHandler.ServerConfig.ViewportHeight,
		0,
		serverHandler.ServerConfig.DefaultScale,
	)
	for _, descriptor := range document.Descriptors() {
		session.Source.Append(descriptor)
	}

	serverHandler.mu.Lock()
	if serverHandler.sessions == nil {
		serverHandler.sessions = make(map[string]*DocumentSession)
	}
	serverHandler.sessions[session.ID.String()] = session
	serverHandler.mu.Unlock()
	return session
}

// Session looks up an open session by its ULID string.
func (serverHandler *ServerHandler) Session(id string) *DocumentSession {
	serverHandler.mu.Lock()
	defer serverHandler.mu.Unlock()
	return serverHandler.sessions[id]
}

// Sessions returns a snapshot of all open sessions.
func (serverHandler *ServerHandler) Sessions() []*DocumentSession {
	serverHandler.mu.Lock()
	defer serverHandler.mu.Unlock()
	sessions := make([]*DocumentSession, 0, len(serverHandler.sessions))
	for _, session := range serverHandler.sessions {
		sessions = append(sessions, session)
	}
	return sessions
}

// CloseDocument resets a session's thumbnail state and removes it.
func (serverHandler *ServerHandler) CloseDocument(id string) error {
	serverHandler.mu.Lock()
	session := serverHandler.sessions[id]
	delete(serverHandler.sessions, id)
	watch := serverHandler.watch
	serverHandler.mu.Unlock()

	if session == nil {
		return fmt.Errorf("no open document session %s", id)
	}

	if watch != nil {
		watch.forget(session.Path)
	}
	session.Source.Reset()
	if err := session.Document().Close(); err != nil {
		Logger.Warn("Error closing document", "path", session.Path, "error", err)
	}
	Logger.Info("Closed document session", "id", id, "path", session.Path)
	return nil
}

// reloadSession replaces a session's document after its file changed on
// disk. Thumbnail state is reset wholesale; the ledger is rebuilt from the
// reopened file.
func (serverHandler *ServerHandler) reloadSession(session *DocumentSession) {
	Logger.Info("Reloading changed document", "id", session.ID.String(), "path", session.Path)

	document, err := pdfrenderer.Open(session.Path)
	if err != nil {
		Logger.Error("Unable to reopen changed document, keeping stale session", "path", session.Path, "error", err)
		return
	}

	session.Source.Reset()

	session.mu.Lock()
	old := session.document
	session.document = document
	session.mu.Unlock()
	if err := old.Close(); err != nil {
		Logger.Warn("Error closing replaced document", "path", session.Path, "error", err)
	}

	for _, descriptor := range document.Descriptors() {
		session.Source.Append(descriptor)
	}
}

// resolveDocumentPath cleans the requested path and confines it to the
// configured document root.
func (serverHandler *ServerHandler) resolveDocumentPath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("empty document path")
	}
	absPath := path
	if !filepath.IsAbs(absPath) {
		absPath = filepath.Join(serverHandler.ServerConfig.DocumentRoot, path)
	}
	absPath = filepath.Clean(absPath)
	root := filepath.Clean(serverHandler.ServerConfig.DocumentRoot)
	if absPath != root && !strings.HasPrefix(absPath, root+string(filepath.Separator)) {
		return "", fmt.Errorf("document path %s escapes document root", path)
	}
	return absPath, nil
}
