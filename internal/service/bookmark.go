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

var bookmarkPaths = map[models.BookmarkKind]string{
	models.BookmarkFollow:    "follow",
	models.BookmarkFavorite:  "favorite",
	models.BookmarkReadLater: "readlater",
}

// SetBookmark posts a follow/favorite/read-later mutation for a fiction.
// This is a deliberate remote write: it scrapes the CSRF token from the
// fiction's detail page, posts the change with the user's session, and on
// success invalidates the stale cache entries (fiction detail always;
// follows list for follow-type mutations).
func (s *Service) SetBookmark(ctx context.Context, fictionID int64, kind models.BookmarkKind, enable bool) error {
	if err := s.requireCredentials(); err != nil {
		return err
	}

	path, ok := bookmarkPaths[kind]
	if !ok {
		return fmt.Errorf("unknown bookmark kind %q", kind)
	}

	// The token is only present on the authenticated detail page. The cache
	// is bypassed: a cached page may carry an expired token.
	handle, html, err := s.fetcher.FetchPage(ctx, s.fictionURL(fictionID), retrieval.FetchOptions{})
	defer closeHandle(handle)
	if err != nil {
		return err
	}

	token := extract.CSRFToken(html)
	if token == "" {
		return fmt.Errorf("%w: no verification token on fiction %d", models.ErrRetrievalFailed, fictionID)
	}

	form := url.Values{}
	form.Set("__RequestVerificationToken", token)
	form.Set("fictionId", fmt.Sprintf("%d", fictionID))
	if !enable {
		form.Set("remove", "true")
	}

	postURL := fmt.Sprintf("%s/fictions/%d/%s", s.baseURL, fictionID, path)
	if _, err := s.fetcher.PostForm(ctx, postURL, form); err != nil {
		return err
	}

	if err := s.st.Delete(store.CacheKey("fiction", fictionID)); err != nil {
		log.Printf("Failed to invalidate fiction %d cache: %v", fictionID, err)
	}
	if kind == models.BookmarkFollow {
		if err := s.st.Delete(s.followsKey()); err != nil {
			log.Printf("Failed to invalidate follows cache: %v", err)
		}
	}
	return nil
}
