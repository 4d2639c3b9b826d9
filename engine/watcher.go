package engine

import (
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// documentWatcher reloads open sessions when their source file changes on
// disk. One fsnotify watcher serves every session.
type documentWatcher struct {
	serverHandler *ServerHandler
	watcher       *fsnotify.Watcher

	mu    sync.Mutex
	paths map[string]*DocumentSession

	done chan struct{} // closed when the event pump exits
}

// watchSession registers a session's file with the shared watcher, creating
// the watcher on first use.
func (serverHandler *ServerHandler) watchSession(session *DocumentSession) error {
	serverHandler.mu.Lock()
	if serverHandler.watch == nil {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			serverHandler.mu.Unlock()
			return fmt.Errorf("unable to create file watcher: %w", err)
		}
		serverHandler.watch = &documentWatcher{
			serverHandler: serverHandler,
			watcher:       watcher,
			paths:         make(map[string]*DocumentSession),
			done:          make(chan struct{}),
		}
		go serverHandler.watch.run()
	}
	watch := serverHandler.watch
	serverHandler.mu.Unlock()

	watch.mu.Lock()
	watch.paths[session.Path] = session
	watch.mu.Unlock()
	if err := watch.watcher.Add(session.Path); err != nil {
		return fmt.Errorf("unable to watch %s: %w", session.Path, err)
	}
	return nil
}

// forget stops watching a path, used when its session closes.
func (watch *documentWatcher) forget(path string) {
	watch.mu.Lock()
	delete(watch.paths, path)
	watch.mu.Unlock()
	if err := watch.watcher.Remove(path); err != nil {
		Logger.Debug("Unable to remove watch", "path", path, "error", err)
	}
}

// Shutdown closes the shared file watcher and waits for its event pump to
// exit. Safe to call when watching was never enabled, and more than once.
func (serverHandler *ServerHandler) Shutdown() {
	serverHandler.mu.Lock()
	watch := serverHandler.watch
	serverHandler.watch = nil
	serverHandler.mu.Unlock()
	if watch == nil {
		return
	}

	if err := watch.watcher.Close(); err != nil {
		Logger.Warn("Error closing file watcher", "error", err)
	}
	<-watch.done
}

// run pumps filesystem events until the watcher is closed.
func (watch *documentWatcher) run() {
	defer close(watch.done)
	defer func() {
		if r := recover(); r != nil {
			Logger.Error("Panic recovered in document watcher", "panic", r)
		}
	}()

	for {
		select {
		case event, ok := <-watch.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			watch.mu.Lock()
			session := watch.paths[event.Name]
			watch.mu.Unlock()
			if session == nil {
				continue
			}
			Logger.Debug("Document changed on disk", "path", event.Name)
			watch.serverHandler.reloadSession(session)
		case err, ok := <-watch.watcher.Errors:
			if !ok {
				return
			}
			Logger.Warn("File watcher error", "error", err)
		}
	}
}
