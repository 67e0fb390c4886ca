package main

import (
	"context"
	"embed"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/inkroad/inkroad/internal/api"
	"github.com/inkroad/inkroad/internal/core"
	"github.com/inkroad/inkroad/internal/models"
	"github.com/inkroad/inkroad/internal/retrieval"
	"github.com/inkroad/inkroad/internal/service"
	"github.com/inkroad/inkroad/internal/store"
	"github.com/inkroad/inkroad/internal/warmer"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Initialize the core application components
	app, err := core.New(migrationsFS)
	if err != nil {
		log.Fatalf("Fatal error during application setup: %v", err)
	}
	defer app.Close()

	st := store.New(app.DB)

	// The retrieval engine pulls the stored session cookies on demand so a
	// cookie update through the settings API takes effect without a restart.
	cookies := func() ([]models.Cookie, error) {
		return st.GetCookies(1)
	}

	browsers := retrieval.NewBrowsers(app.Config, cookies)
	defer browsers.Shutdown()

	engine := retrieval.New(app.Config, browsers, cookies)
	library := service.New(st, engine, app.Config)

	// Start the background cache warmer.
	warm := warmer.New(library, st, app.Config)
	warm.Start()
	defer warm.Stop()

	// Setup the API server
	server := api.NewServer(app, st, library, browsers, warm)
	addr := fmt.Sprintf(":%d", app.Config.Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: server.Router(),
	}

	// --- Graceful Shutdown ---
	// Start the server in a goroutine so it doesn't block.
	go func() {
		log.Printf("Starting web server on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not start server: %v", err)
		}
	}()

	// Wait for an interrupt signal.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Create a context with a timeout to allow existing connections to finish.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Attempt a graceful shutdown.
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited gracefully.")
}
