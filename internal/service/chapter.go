package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/inkroad/inkroad/internal/extract"
	"github.com/inkroad/inkroad/internal/models"
	"github.com/inkroad/inkroad/internal/retrieval"
	"github.com/inkroad/inkroad/internal/store"
)

// GetChapterContent performs a live chapter read. Live reads are an
// intentional remote side effect: the authenticated context is used so the
// site records the chapter as read. The cache is bypassed on read (the
// remote visit must happen) but still written afterwards, and the
// fiction/follows cache entries are invalidated because the remote
// read-state just changed. The now-known next chapter is pre-cached
// asynchronously to feed fast forward-navigation.
func (s *Service) GetChapterContent(ctx context.Context, fictionID, chapterID int64) (*models.ChapterContent, error) {
	if err := s.requireCredentials(); err != nil {
		return nil, err
	}

	content, err := s.fetchChapter(ctx, fictionID, chapterID, false)
	if err != nil {
		return nil, err
	}

	s.writeThrough(store.CacheKey("chapter", chapterID), content, TTLChapterContent)

	// The remote read-state moved: cached fiction detail and follows are
	// now stale.
	if err := s.st.Delete(store.CacheKey("fiction", fictionID)); err != nil {
		log.Printf("Failed to invalidate fiction %d cache: %v", fictionID, err)
	}
	if err := s.st.Delete(s.followsKey()); err != nil {
		log.Printf("Failed to invalidate follows cache: %v", err)
	}

	if nextID := extract.ChapterIDFromURL(content.NextURL); nextID != 0 {
		go s.precacheAsync(fictionID, nextID)
	}

	return content, nil
}

// precacheAsync warms the next chapter off the request path. Detached from
// the request context on purpose: the pre-cache outlives the triggering
// request.
func (s *Service) precacheAsync(fictionID, chapterID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	if err := s.PrecacheChapterContent(ctx, fictionID, chapterID, TTLChapterContent); err != nil {
		log.Printf("Background pre-cache of chapter %d failed: %v", chapterID, err)
	}
}

// PrecacheChapterContent fetches and caches a chapter without touching the
// user's remote reading position: the anonymous context carries no session,
// and a valid cached copy short-circuits the fetch entirely.
func (s *Service) PrecacheChapterContent(ctx context.Context, fictionID, chapterID int64, ttl time.Duration) error {
	key := store.CacheKey("chapter", chapterID)
	present, err := s.st.IsPresent(key)
	if err != nil {
		return err
	}
	if present {
		return nil
	}

	content, err := s.fetchChapter(ctx, fictionID, chapterID, true)
	if err != nil {
		return err
	}

	s.writeThrough(key, content, ttl)
	return nil
}

// CachedChapterContent returns the cached body for a chapter, if any. The
// reader's forward navigation polls this before asking for a live read.
func (s *Service) CachedChapterContent(chapterID int64) (*models.ChapterContent, bool) {
	var content models.ChapterContent
	if s.cachedInto(store.CacheKey("chapter", chapterID), &content) {
		return &content, true
	}
	return nil, false
}

func (s *Service) fetchChapter(ctx context.Context, fictionID, chapterID int64, anonymous bool) (*models.ChapterContent, error) {
	handle, html, err := s.fetcher.FetchPage(ctx, s.chapterURL(fictionID, chapterID), retrieval.FetchOptions{
		Anonymous:    anonymous,
		WaitSelector: "div.chapter-content",
	})
	defer closeHandle(handle)
	if err != nil {
		return nil, err
	}

	content, err := extract.ChapterContent(html)
	if err != nil {
		return nil, err
	}
	if content.HTML == "" {
		return nil, fmt.Errorf("%w: chapter %d", models.ErrNotFound, chapterID)
	}
	if content.ChapterID == 0 {
		content.ChapterID = chapterID
	}
	if content.FictionID == 0 {
		content.FictionID = fictionID
	}
	return content, nil
}
