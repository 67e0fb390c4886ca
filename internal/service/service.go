// Package service orchestrates the retrieval engine, the extractors and the
// cache store, one operation per remote resource type. Every read follows the
// same template: compute the cache key, short-circuit on a valid cached
// entry, otherwise fetch, extract and write through with the resource's TTL.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/inkroad/inkroad/internal/config"
	"github.com/inkroad/inkroad/internal/models"
	"github.com/inkroad/inkroad/internal/retrieval"
	"github.com/inkroad/inkroad/internal/store"
)

// Per-resource TTL policy. Chapter content is effectively immutable once
// published, hence the month.
const (
	TTLFollows        = 20 * time.Minute
	TTLToplist        = 6 * time.Hour
	TTLFiction        = time.Hour
	TTLChapterContent = 30 * 24 * time.Hour
	TTLCover          = 30 * 24 * time.Hour
)

// Fetcher is the slice of the retrieval engine the service depends on.
// Narrowed to an interface so tests can record which execution context and
// cookie set each call used.
type Fetcher interface {
	FetchPage(ctx context.Context, pageURL string, opts retrieval.FetchOptions) (retrieval.Handle, string, error)
	FetchImage(ctx context.Context, imageURL string) ([]byte, string, error)
	ResolveRedirect(ctx context.Context, pageURL string) (string, error)
	PostForm(ctx context.Context, formURL string, form url.Values) (string, error)
}

type Service struct {
	st      *store.Store
	fetcher Fetcher
	baseURL string
	userID  int64

	coverMaxWidth int
}

func New(st *store.Store, fetcher Fetcher, cfg *config.Config) *Service {
	return &Service{
		st:            st,
		fetcher:       fetcher,
		baseURL:       cfg.Site.BaseURL,
		userID:        1, // single-profile deployment
		coverMaxWidth: cfg.Cover.MaxWidth,
	}
}

// HasCredentials reports whether the required session cookie is stored.
func (s *Service) HasCredentials() (bool, error) {
	return s.st.HasRequiredCookie(s.userID)
}

// requireCredentials converts missing credentials into a cheap, early
// rejection before any remote I/O is attempted.
func (s *Service) requireCredentials() error {
	ok, err := s.st.HasRequiredCookie(s.userID)
	if err != nil {
		return err
	}
	if !ok {
		return models.ErrNotConfigured
	}
	return nil
}

// cachedInto deserializes a valid cache entry into out, reporting a hit.
func (s *Service) cachedInto(key string, out interface{}) bool {
	raw, ok, err := s.st.Get(key)
	if err != nil {
		log.Printf("Cache read for %s failed: %v", key, err)
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		log.Printf("Corrupt cache entry %s dropped: %v", key, err)
		s.st.Delete(key)
		return false
	}
	return true
}

// writeThrough serializes v and stores it under key with the given TTL.
// Cache write failures are logged, not fatal: the caller already has the
// fresh value.
func (s *Service) writeThrough(key string, v interface{}, ttl time.Duration) {
	raw, err := json.Marshal(v)
	if err != nil {
		log.Printf("Failed to serialize %s for caching: %v", key, err)
		return
	}
	if err := s.st.Put(key, string(raw), ttl); err != nil {
		log.Printf("Failed to cache %s: %v", key, err)
	}
}

// closeHandle closes an automation page handle if the fetch used one.
// Handles must be closed on every path; a leaked page is a resource leak.
func closeHandle(h retrieval.Handle) {
	if h != nil {
		h.Close()
	}
}

func (s *Service) fictionURL(fictionID int64) string {
	return fmt.Sprintf("%s/fiction/%d", s.baseURL, fictionID)
}

// chapterURL builds a chapter URL from ids. The site ignores the slug
// segments, so a placeholder keeps the URL well-formed.
func (s *Service) chapterURL(fictionID, chapterID int64) string {
	return fmt.Sprintf("%s/fiction/%d/_/chapter/%d/_", s.baseURL, fictionID, chapterID)
}

// absoluteURL resolves a site-relative href against the configured base.
func (s *Service) absoluteURL(href string) string {
	base, err := url.Parse(s.baseURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func (s *Service) followsKey() string {
	return store.CacheKey("follows", fmt.Sprintf("u%d", s.userID))
}
