package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// ServerConfig contains all of the server settings
type ServerConfig struct {
	ListenAddrIP   string
	ListenAddrPort string
	DocumentRoot   string  // only PDFs under this directory may be opened
	DefaultScale   float64 // initial zoom scale for new document sessions
	ViewportWidth  int     // viewport defaults until the client reports its own
	ViewportHeight int
	StatsInterval  int  // minutes between cache statistics log lines
	WatchDocuments bool // reload a session when its source file changes on disk
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	boolVal, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return boolVal
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intVal
}

// getEnvFloat gets a float environment variable with a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return floatVal
}

// SetupServer loads configuration and returns ServerConfig and Logger
func SetupServer() (ServerConfig, *slog.Logger) {
	serverConfigLive := ServerConfig{}

	// Load .env file (silently ignore if doesn't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load("config.env")

	logger := setupLogging()
	Logger = logger

	// Server configuration
	serverConfigLive.ListenAddrPort = getEnv("SERVER_PORT", "8000")
	serverConfigLive.ListenAddrIP = getEnv("SERVER_ADDR", "")

	// Document storage configuration
	documentRoot := filepath.ToSlash(getEnv("DOCUMENT_ROOT", "documents"))
	documentRootAbs, err := filepath.Abs(documentRoot)
	if err != nil {
		logger.Error("Failed creating absolute path for document root", "error", err)
	}
	serverConfigLive.DocumentRoot = documentRootAbs

	// Thumbnail configuration
	serverConfigLive.DefaultScale = getEnvFloat("DEFAULT_SCALE", 1.0)
	if serverConfigLive.DefaultScale <= 0 {
		logger.Warn("Non-positive DEFAULT_SCALE, falling back to 1.0", "value", serverConfigLive.DefaultScale)
		serverConfigLive.DefaultScale = 1.0
	}
	serverConfigLive.ViewportWidth = getEnvInt("VIEWPORT_WIDTH", 800)
	serverConfigLive.ViewportHeight = getEnvInt("VIEWPORT_HEIGHT", 1200)

	// Housekeeping configuration
	serverConfigLive.StatsInterval = getEnvInt("STATS_INTERVAL", 10)
	serverConfigLive.WatchDocuments = getEnvBool("WATCH_DOCUMENTS", true)

	logger.Info("Configuration loaded",
		"documentRoot", serverConfigLive.DocumentRoot,
		"defaultScale", serverConfigLive.DefaultScale,
		"watchDocuments", serverConfigLive.WatchDocuments)

	return serverConfigLive, logger
}

// setupLogging configures the application logger
func setupLogging() *slog.Logger {
	logLevel := getEnv("LOG_LEVEL", "debug")
	var level slog.Level

	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelDebug
	}

	handlerOptions := &slog.HandlerOptions{Level: level}

	logOutput := getEnv("LOG_OUTPUT", "file")
	var logWriter io.Writer

	if logOutput == "stdout" {
		logWriter = os.Stdout
	} else {
		logPath, err := filepath.Abs(filepath.ToSlash(getEnv("LOG_FILE", "docview.log")))
		if err != nil {
			fmt.Printf("Error creating log file path: %v\n", err)
			logWriter = os.Stdout
		} else {
			logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
			if err != nil {
				fmt.Printf("Failed to open log file: %v\n", err)
				logWriter = os.Stdout
			} else {
				logWriter = logFile
				fmt.Println("Logging to file: ", logPath)
			}
		}
	}

	handler := slog.NewTextHandler(logWriter, handlerOptions)
	return slog.New(handler)
}
