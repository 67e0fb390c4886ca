// It defines the API server, sets up the routes (endpoints)
// using chi, and links them to the handler functions.

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/inkroad/inkroad/internal/core"
	"github.com/inkroad/inkroad/internal/models"
	"github.com/inkroad/inkroad/internal/store"
)

// Library is the slice of the service layer the handlers call. Narrowed to
// an interface so handler tests can substitute a fake.
type Library interface {
	GetFollows(ctx context.Context, useCache bool) ([]*models.FollowedFiction, error)
	GetHistory(ctx context.Context) ([]*models.HistoryEntry, error)
	GetToplist(ctx context.Context, name string, useCache bool) ([]*models.Fiction, error)
	GetFiction(ctx context.Context, fictionID int64, useCache, anonymous bool) (*models.Fiction, error)
	GetChapterContent(ctx context.Context, fictionID, chapterID int64) (*models.ChapterContent, error)
	CachedChapterContent(chapterID int64) (*models.ChapterContent, bool)
	SearchFictions(ctx context.Context, query string) ([]*models.SearchResult, error)
	SetBookmark(ctx context.Context, fictionID int64, kind models.BookmarkKind, enable bool) error
	GetCover(ctx context.Context, fictionID int64, coverURL string) ([]byte, string, error)
	HasCredentials() (bool, error)
}

// SessionRebuilder restarts the authenticated browser context after the
// stored cookies change.
type SessionRebuilder interface {
	Rebuild(ctx context.Context) error
}

// WarmTrigger kicks off an out-of-schedule warming pass.
type WarmTrigger interface {
	TriggerNow()
}

// Server holds the dependencies for our API.
type Server struct {
	app      *core.App
	store    *store.Store
	library  Library
	browsers SessionRebuilder
	warmer   WarmTrigger
}

// NewServer creates a new Server instance.
func NewServer(app *core.App, st *store.Store, library Library, browsers SessionRebuilder, warmer WarmTrigger) *Server {
	return &Server{
		app:      app,
		store:    st,
		library:  library,
		browsers: browsers,
		warmer:   warmer,
	}
}

// Router sets up and returns the main router for the application.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)    // Logs requests to the console
	r.Use(middleware.Recoverer) // Recovers from panics
	r.Use(middleware.Timeout(120 * time.Second))

	r.Route("/api", func(r chi.Router) {
		r.Get("/follows", s.handleGetFollows)
		r.Get("/history", s.handleGetHistory)
		r.Get("/toplists/{name}", s.handleGetToplist)
		r.Get("/search", s.handleSearch)

		r.Get("/fictions/{fictionID}", s.handleGetFiction)
		r.Get("/fictions/{fictionID}/chapters/{chapterID}", s.handleGetChapter)
		r.Post("/fictions/{fictionID}/bookmark", s.handleSetBookmark)

		r.Get("/covers/{fictionID}", s.handleGetCover)

		r.Get("/cache/stats", s.handleCacheStats)
		r.Post("/cache/purge", s.handlePurgeCache)

		r.Get("/settings/cookies", s.handleGetCookieStatus)
		r.Post("/settings/cookies", s.handleSaveCookies)
	})

	return r
}
