package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/inkroad/inkroad/internal/models"
	"github.com/inkroad/inkroad/internal/store"
)

// The proxy serves a single reader profile.
const defaultUserID = 1

// wantRefresh reports whether the request asked to bypass the cache.
func wantRefresh(r *http.Request) bool {
	v := r.URL.Query().Get("refresh")
	return v == "1" || v == "true"
}

func fictionIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "fictionID"), 10, 64)
	return id, err == nil && id > 0
}

func (s *Server) handleGetFollows(w http.ResponseWriter, r *http.Request) {
	follows, err := s.library.GetFollows(r.Context(), !wantRefresh(r))
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, follows)
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.library.GetHistory(r.Context())
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, entries)
}

func (s *Server) handleGetToplist(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		RespondWithError(w, http.StatusBadRequest, "Missing toplist name")
		return
	}
	fictions, err := s.library.GetToplist(r.Context(), name, !wantRefresh(r))
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, fictions)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		RespondWithError(w, http.StatusBadRequest, "Missing search query")
		return
	}
	results, err := s.library.SearchFictions(r.Context(), query)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, results)
}

func (s *Server) handleGetFiction(w http.ResponseWriter, r *http.Request) {
	fictionID, ok := fictionIDParam(r)
	if !ok {
		RespondWithError(w, http.StatusBadRequest, "Invalid fiction ID")
		return
	}
	fiction, err := s.library.GetFiction(r.Context(), fictionID, !wantRefresh(r), false)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, fiction)
}

// handleGetChapter serves a chapter body. A plain GET is a live read that
// marks the chapter read on the remote site; ?cached=1 only consults the
// local cache and never leaves the process.
func (s *Server) handleGetChapter(w http.ResponseWriter, r *http.Request) {
	fictionID, ok := fictionIDParam(r)
	if !ok {
		RespondWithError(w, http.StatusBadRequest, "Invalid fiction ID")
		return
	}
	chapterID, err := strconv.ParseInt(chi.URLParam(r, "chapterID"), 10, 64)
	if err != nil || chapterID <= 0 {
		RespondWithError(w, http.StatusBadRequest, "Invalid chapter ID")
		return
	}

	if v := r.URL.Query().Get("cached"); v == "1" || v == "true" {
		content, ok := s.library.CachedChapterContent(chapterID)
		if !ok {
			RespondWithError(w, http.StatusNotFound, "Chapter not cached")
			return
		}
		RespondWithJSON(w, http.StatusOK, content)
		return
	}

	content, err := s.library.GetChapterContent(r.Context(), fictionID, chapterID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, content)
}

func (s *Server) handleSetBookmark(w http.ResponseWriter, r *http.Request) {
	fictionID, ok := fictionIDParam(r)
	if !ok {
		RespondWithError(w, http.StatusBadRequest, "Invalid fiction ID")
		return
	}

	var payload struct {
		Kind   models.BookmarkKind `json:"kind"`
		Enable bool                `json:"enable"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := s.library.SetBookmark(r.Context(), fictionID, payload.Kind, payload.Enable); err != nil {
		respondWithServiceError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleGetCover streams a fiction's cover image. The upstream URL comes
// from the ?url= parameter when the client already has it, otherwise from
// the fiction's cached detail record.
func (s *Server) handleGetCover(w http.ResponseWriter, r *http.Request) {
	fictionID, ok := fictionIDParam(r)
	if !ok {
		RespondWithError(w, http.StatusBadRequest, "Invalid fiction ID")
		return
	}

	coverURL := r.URL.Query().Get("url")
	if coverURL == "" {
		fiction, err := s.library.GetFiction(r.Context(), fictionID, true, true)
		if err != nil {
			respondWithServiceError(w, err)
			return
		}
		coverURL = fiction.CoverURL
	}

	data, contentType, err := s.library.GetCover(r.Context(), fictionID, coverURL)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Write(data)
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats()
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to read cache stats")
		return
	}
	RespondWithJSON(w, http.StatusOK, stats)
}

// handlePurgeCache drops cache entries: ?type=chapter purges one key type,
// no parameter purges everything that has expired.
func (s *Server) handlePurgeCache(w http.ResponseWriter, r *http.Request) {
	var (
		purged int64
		err    error
	)
	if kind := r.URL.Query().Get("type"); kind != "" {
		purged, err = s.store.PurgeByTypePrefix(kind)
	} else {
		purged, err = s.store.PurgeExpired()
	}
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to purge cache")
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]int64{"purged": purged})
}

// handleGetCookieStatus reports which cookies are stored without revealing
// their values.
func (s *Server) handleGetCookieStatus(w http.ResponseWriter, r *http.Request) {
	cookies, err := s.store.GetCookies(defaultUserID)
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to read cookies")
		return
	}
	names := make([]string, 0, len(cookies))
	for _, c := range cookies {
		names = append(names, c.Name)
	}
	configured, err := s.library.HasCredentials()
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to check credentials")
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"configured": configured,
		"cookies":    names,
	})
}

// handleSaveCookies replaces the stored session cookies, rebuilds the
// authenticated browser context and triggers a warming pass with the new
// session.
func (s *Server) handleSaveCookies(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Cookies []models.Cookie `json:"cookies"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(payload.Cookies) == 0 {
		RespondWithError(w, http.StatusBadRequest, "No cookies supplied")
		return
	}

	if err := s.store.SaveCookies(defaultUserID, payload.Cookies); err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to save cookies")
		return
	}

	hasRequired, err := s.store.HasRequiredCookie(defaultUserID)
	if err == nil && !hasRequired {
		log.Printf("Saved cookies do not include %s; authenticated pages will not work.", store.RequiredCookie)
	}

	if s.browsers != nil {
		if err := s.browsers.Rebuild(r.Context()); err != nil {
			log.Printf("Failed to rebuild browser session: %v", err)
		}
	}
	if s.warmer != nil {
		s.warmer.TriggerNow()
	}

	RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
