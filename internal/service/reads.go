package service

import (
	"context"
	"fmt"
	"log"
	"net/url"

	"github.com/inkroad/inkroad/internal/extract"
	"github.com/inkroad/inkroad/internal/models"
	"github.com/inkroad/inkroad/internal/retrieval"
	"github.com/inkroad/inkroad/internal/store"
)

// GetToplist returns a ranked listing, cached for six hours. Toplists are
// public pages, so the anonymous context is always used.
func (s *Service) GetToplist(ctx context.Context, name string, useCache bool) ([]*models.Fiction, error) {
	key := store.CacheKey("toplist", name)
	if useCache {
		var cached []*models.Fiction
		if s.cachedInto(key, &cached) {
			return cached, nil
		}
	}

	pageURL := fmt.Sprintf("%s/fictions/%s", s.baseURL, url.PathEscape(name))
	handle, html, err := s.fetcher.FetchPage(ctx, pageURL, retrieval.FetchOptions{
		Anonymous:    true,
		WaitSelector: "div.fiction-list-item",
	})
	defer closeHandle(handle)
	if err != nil {
		return nil, err
	}

	fictions, err := extract.Toplist(html)
	if err != nil {
		return nil, err
	}
	if len(fictions) > 0 {
		s.writeThrough(key, fictions, TTLToplist)
	}
	return fictions, nil
}

// GetFiction returns a fiction's detail record with its chapter list, cached
// for an hour. Interactive callers use the authenticated context so the
// chapter table carries the user's read markers; the warmer passes anonymous
// to stay clear of remote state.
func (s *Service) GetFiction(ctx context.Context, fictionID int64, useCache, anonymous bool) (*models.Fiction, error) {
	key := store.CacheKey("fiction", fictionID)
	if useCache {
		var cached models.Fiction
		if s.cachedInto(key, &cached) {
			return &cached, nil
		}
	}

	handle, html, err := s.fetcher.FetchPage(ctx, s.fictionURL(fictionID), retrieval.FetchOptions{
		Anonymous:    anonymous,
		WaitSelector: "table#chapters",
	})
	defer closeHandle(handle)
	if err != nil {
		return nil, err
	}

	fiction, err := extract.Fiction(html)
	if err != nil {
		return nil, err
	}
	if fiction.Title == "" {
		return nil, fmt.Errorf("%w: fiction %d", models.ErrNotFound, fictionID)
	}
	if fiction.ID == 0 {
		fiction.ID = fictionID
	}
	s.writeThrough(key, fiction, TTLFiction)
	return fiction, nil
}

// GetFollows returns the user's followed fictions, cached for twenty
// minutes. Any indirection continue-pointers are resolved to concrete
// chapter ids before the result is surfaced or cached; resolution is
// side-effect free.
func (s *Service) GetFollows(ctx context.Context, useCache bool) ([]*models.FollowedFiction, error) {
	if err := s.requireCredentials(); err != nil {
		return nil, err
	}

	key := s.followsKey()
	if useCache {
		var cached []*models.FollowedFiction
		if s.cachedInto(key, &cached) {
			return cached, nil
		}
	}

	handle, html, err := s.fetcher.FetchPage(ctx, s.baseURL+"/my/follows", retrieval.FetchOptions{
		WaitSelector: "div.fiction-list-item",
	})
	defer closeHandle(handle)
	if err != nil {
		return nil, err
	}

	follows, err := extract.Follows(html)
	if err != nil {
		return nil, err
	}

	for _, f := range follows {
		s.resolveNextChapter(ctx, f)
	}

	if len(follows) > 0 {
		s.writeThrough(key, follows, TTLFollows)
	}
	return follows, nil
}

// resolveNextChapter fills in NextChapterID from the continue pointer.
// Indirection URLs are resolved with a side-effect-free request; failures
// leave the id unset rather than failing the whole list.
func (s *Service) resolveNextChapter(ctx context.Context, f *models.FollowedFiction) {
	if f.ContinueURL == "" {
		return
	}
	if id := extract.ChapterIDFromURL(f.ContinueURL); id != 0 {
		f.NextChapterID = id
		return
	}
	final, err := s.fetcher.ResolveRedirect(ctx, s.absoluteURL(f.ContinueURL))
	if err != nil {
		log.Printf("Could not resolve continue pointer for fiction %d: %v", f.ID, err)
		return
	}
	f.NextChapterID = extract.ChapterIDFromURL(final)
}

// GetHistory returns the reading history. Always fetched fresh: history is
// too volatile and session-sensitive to cache.
func (s *Service) GetHistory(ctx context.Context) ([]*models.HistoryEntry, error) {
	if err := s.requireCredentials(); err != nil {
		return nil, err
	}

	handle, html, err := s.fetcher.FetchPage(ctx, s.baseURL+"/my/history", retrieval.FetchOptions{
		WaitSelector: "div.fiction-list-item",
	})
	defer closeHandle(handle)
	if err != nil {
		return nil, err
	}

	return extract.History(html)
}

// SearchFictions runs a title search. Results are not cached; queries are
// too sparse for the cache to earn its keep.
func (s *Service) SearchFictions(ctx context.Context, query string) ([]*models.SearchResult, error) {
	searchURL := fmt.Sprintf("%s/fictions/search?title=%s", s.baseURL, url.QueryEscape(query))
	handle, html, err := s.fetcher.FetchPage(ctx, searchURL, retrieval.FetchOptions{
		Anonymous:    true,
		WaitSelector: "div.fiction-list-item",
	})
	defer closeHandle(handle)
	if err != nil {
		return nil, err
	}

	return extract.Search(html)
}

// NextChapterID picks the next chapter to read from a fiction's chapter
// list using the documented precedence: the site's continue pointer, then
// the successor of the last read chapter, then the first chapter. The
// heuristic is preserved exactly; disagreements with the site are logged by
// callers, never silently corrected.
func NextChapterID(fiction *models.Fiction, lastReadID int64) int64 {
	if id := extract.ChapterIDFromURL(fiction.ContinueURL); id != 0 {
		return id
	}
	if lastReadID != 0 {
		for i, ch := range fiction.Chapters {
			if ch.ID == lastReadID && i+1 < len(fiction.Chapters) {
				return fiction.Chapters[i+1].ID
			}
		}
	}
	if len(fiction.Chapters) > 0 {
		return fiction.Chapters[0].ID
	}
	return 0
}
