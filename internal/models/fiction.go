// This file defines the core data structures (models) for the application.
// These structs represent the remote site's fictions, chapters and per-user
// reading state as this proxy sees them.

package models

// FictionStats holds the aggregate numbers shown on a fiction's detail page.
type FictionStats struct {
	Rating         float64 `json:"rating"` // 0-5 overall score
	StyleScore     float64 `json:"style_score,omitempty"`
	StoryScore     float64 `json:"story_score,omitempty"`
	GrammarScore   float64 `json:"grammar_score,omitempty"`
	CharacterScore float64 `json:"character_score,omitempty"`
	Pages          int     `json:"pages,omitempty"`
	Followers      int     `json:"followers,omitempty"`
	Favorites      int     `json:"favorites,omitempty"`
	Views          int     `json:"views,omitempty"`
}

// Fiction is a single story on the remote site.
type Fiction struct {
	ID          int64        `json:"id"`
	Title       string       `json:"title"`
	Author      string       `json:"author"`
	URL         string       `json:"url"`
	CoverURL    string       `json:"cover_url,omitempty"`
	Description string       `json:"description,omitempty"`
	Tags        []string     `json:"tags,omitempty"` // at most 3 retained
	Stats       FictionStats `json:"stats"`
	Chapters    []*Chapter   `json:"chapters,omitempty"` // omitempty hides it when not loaded
	// ContinueURL is the site's own "continue reading" pointer, when present.
	ContinueURL string `json:"continue_url,omitempty"`
}

// Chapter is chapter metadata inside a fiction's table of contents. It is
// always owned by a Fiction and never cached on its own.
type Chapter struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url"` // source-relative
	PublishedAt string `json:"published_at,omitempty"`
	Order       int    `json:"order"`
	Read        bool   `json:"read"`
}

// ChapterContent is the sanitized body of a single chapter. Cached separately
// from the owning fiction under its own key because published chapters rarely
// change.
type ChapterContent struct {
	ChapterID    int64  `json:"chapter_id"`
	FictionID    int64  `json:"fiction_id"`
	FictionTitle string `json:"fiction_title"`
	Title        string `json:"title"`
	HTML         string `json:"html"`
	PrevURL      string `json:"prev_url,omitempty"`
	NextURL      string `json:"next_url,omitempty"`
}

// FollowedFiction is a fiction plus the user's relationship to it as shown on
// the follows page.
type FollowedFiction struct {
	Fiction
	Unread      bool     `json:"unread"`
	LatestRef   *Chapter `json:"latest,omitempty"`
	LastReadRef *Chapter `json:"last_read,omitempty"`
	// NextChapterID is resolved from the site's continue pointer. Indirection
	// URLs are resolved to a concrete chapter id before this is populated.
	NextChapterID int64 `json:"next_chapter_id,omitempty"`
}

// HistoryEntry is one row of the user's reading history. History is always
// fetched fresh, never cached.
type HistoryEntry struct {
	FictionID    int64  `json:"fiction_id"`
	FictionTitle string `json:"fiction_title"`
	ChapterID    int64  `json:"chapter_id"`
	ChapterTitle string `json:"chapter_title"`
	VisitedAt    string `json:"visited_at"` // human readable, as rendered by the site
}

// SearchResult is one hit from the site's fiction search.
type SearchResult struct {
	FictionID int64  `json:"fiction_id"`
	Title     string `json:"title"`
	Author    string `json:"author,omitempty"`
	CoverURL  string `json:"cover_url,omitempty"`
	Pages     int    `json:"pages,omitempty"`
	Rating    float64 `json:"rating,omitempty"`
}

// Cookie is one stored credential cookie for the remote site. Values are
// opaque strings supplied by the user through the settings form.
type Cookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// BookmarkKind selects which remote bookmark list a SetBookmark call targets.
type BookmarkKind string

const (
	BookmarkFollow    BookmarkKind = "follow"
	BookmarkFavorite  BookmarkKind = "favorite"
	BookmarkReadLater BookmarkKind = "read-later"
)
