package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	config "github.com/jshelley/docview/config"
	engine "github.com/jshelley/docview/engine"
	pdfrenderer "github.com/jshelley/docview/pdfrenderer"
	thumbnail "github.com/jshelley/docview/thumbnail"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// injectGlobals injects all of our globals into their packages
func injectGlobals(logger *slog.Logger) {
	Logger = logger
	config.Logger = logger
	engine.Logger = logger
	pdfrenderer.Logger = logger
	thumbnail.Logger = logger
}

func main() {
	// Parse command-line flags
	port := flag.String("port", "8000", "Port to run the docview server on")
	flag.Parse()

	fmt.Println("\n" + strings.Repeat("=", 50))
	fmt.Println("   docview - PDF Thumbnail Server")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Println("• Windowed, on-demand page rendering")
	fmt.Println("• All endpoints under /api/*")
	fmt.Println(strings.Repeat("=", 50) + "\n")

	serverConfig, logger := config.SetupServer()
	injectGlobals(logger) //inject the logger into all of the packages

	e := echo.New()
	e.HideBanner = true

	// Custom 404 handler for API endpoints
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
		}

		if code == http.StatusNotFound {
			c.JSON(http.StatusNotFound, map[string]string{
				"error":   "Not Found",
				"message": "The requested API endpoint does not exist",
				"path":    c.Request().URL.Path,
			})
			return
		}

		e.DefaultHTTPErrorHandler(err, c)
	}

	serverHandler := engine.ServerHandler{Echo: e, ServerConfig: serverConfig}
	defer serverHandler.Shutdown() //stop the document file watcher on exit
	Logger.Info("About to initialize schedules")
	serverHandler.InitializeSchedules() //initialize all the cron jobs
	Logger.Info("Schedules initialized, about to run startup checks")
	serverHandler.StartupChecks() //Run all the sanity checks
	Logger.Info("Startup checks complete")

	e.Use(middleware.CORSWithConfig(middleware.DefaultCORSConfig))
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "method=${method}, uri=${uri}, status=${status}, latency=${latency_human}\n",
	}))

	// Document session API routes
	e.POST("/api/document/open", serverHandler.OpenDocumentRoute)
	e.GET("/api/documents", serverHandler.GetDocuments)
	e.GET("/api/document/:id", serverHandler.GetDocument)
	e.POST("/api/document/:id/viewport", serverHandler.SetViewport)
	e.GET("/api/document/:id/page/:num/thumbnail", serverHandler.GetThumbnail)
	e.GET("/api/document/:id/page/:num/text", serverHandler.GetPageText)
	e.DELETE("/api/document/:id", serverHandler.CloseDocumentRoute)

	// Health check endpoint
	e.GET("/api/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": "docview",
		})
	})

	// Override port if specified via flag
	if *port != "8000" {
		serverConfig.ListenAddrPort = *port
	}

	addr := fmt.Sprintf("%s:%s", serverConfig.ListenAddrIP, serverConfig.ListenAddrPort)
	Logger.Info("Starting docview server", "address", addr)

	if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
		Logger.Error("Server failed to start", "error", err)
		os.Exit(1)
	}
}
