package engine

import (
	"os"
)

// StartupChecks performs all the checks to make sure everything works
func (serverHandler *ServerHandler) StartupChecks() error {
	return documentRootChecks(serverHandler.ServerConfig.DocumentRoot)
}

// documentRootChecks ensures the document root exists and is a directory
func documentRootChecks(documentRoot string) error {
	if documentRoot == "" {
		Logger.Warn("Document root not configured")
		return nil
	}

	info, err := os.Stat(documentRoot)
	if os.IsNotExist(err) {
		Logger.Info("Document root does not exist, creating it", "path", documentRoot)
		if err := os.MkdirAll(documentRoot, os.ModePerm); err != nil {
			Logger.Error("Unable to create document root", "path", documentRoot, "error", err)
			return err
		}
		return nil
	}
	if err != nil {
		Logger.Error("Unable to stat document root", "path", documentRoot, "error", err)
		return err
	}
	if !info.IsDir() {
		Logger.Warn("Document root is not a directory, documents cannot be opened", "path", documentRoot)
	}
	return nil
}
