package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/inkroad/inkroad/internal/api"
	"github.com/inkroad/inkroad/internal/config"
	"github.com/inkroad/inkroad/internal/core"
	"github.com/inkroad/inkroad/internal/models"
	"github.com/inkroad/inkroad/internal/store"
	"github.com/inkroad/inkroad/internal/testutil"
)

// fakeLibrary satisfies api.Library with canned data and records how the
// handlers call it.
type fakeLibrary struct {
	follows    []*models.FollowedFiction
	followsErr error
	toplist    []*models.Fiction
	fiction    *models.Fiction
	content    *models.ChapterContent
	cached     map[int64]*models.ChapterContent

	lastUseCache bool
	bookmarks    []string
}

func (f *fakeLibrary) GetFollows(_ context.Context, useCache bool) ([]*models.FollowedFiction, error) {
	f.lastUseCache = useCache
	return f.follows, f.followsErr
}

func (f *fakeLibrary) GetHistory(_ context.Context) ([]*models.HistoryEntry, error) {
	return nil, nil
}

func (f *fakeLibrary) GetToplist(_ context.Context, name string, useCache bool) ([]*models.Fiction, error) {
	f.lastUseCache = useCache
	return f.toplist, nil
}

func (f *fakeLibrary) GetFiction(_ context.Context, fictionID int64, useCache, _ bool) (*models.Fiction, error) {
	f.lastUseCache = useCache
	return f.fiction, nil
}

func (f *fakeLibrary) GetChapterContent(_ context.Context, fictionID, chapterID int64) (*models.ChapterContent, error) {
	return f.content, nil
}

func (f *fakeLibrary) CachedChapterContent(chapterID int64) (*models.ChapterContent, bool) {
	c, ok := f.cached[chapterID]
	return c, ok
}

func (f *fakeLibrary) SearchFictions(_ context.Context, _ string) ([]*models.SearchResult, error) {
	return nil, nil
}

func (f *fakeLibrary) SetBookmark(_ context.Context, _ int64, kind models.BookmarkKind, _ bool) error {
	f.bookmarks = append(f.bookmarks, string(kind))
	return nil
}

func (f *fakeLibrary) GetCover(_ context.Context, _ int64, _ string) ([]byte, string, error) {
	return []byte("img"), "image/jpeg", nil
}

func (f *fakeLibrary) HasCredentials() (bool, error) {
	return true, nil
}

type fakeRebuilder struct{ rebuilt int }

func (f *fakeRebuilder) Rebuild(_ context.Context) error {
	f.rebuilt++
	return nil
}

type fakeTrigger struct{ triggered int }

func (f *fakeTrigger) TriggerNow() { f.triggered++ }

func setupServer(t *testing.T, lib *fakeLibrary) (*api.Server, *store.Store, *fakeRebuilder, *fakeTrigger) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	st := store.New(db)
	app := &core.App{Config: &config.Config{}, DB: db}
	rebuilder := &fakeRebuilder{}
	trigger := &fakeTrigger{}
	return api.NewServer(app, st, lib, rebuilder, trigger), st, rebuilder, trigger
}

func TestToplistHandler(t *testing.T) {
	lib := &fakeLibrary{toplist: []*models.Fiction{{ID: 44, Title: "Delta"}}}
	server, _, _, _ := setupServer(t, lib)
	router := server.Router()

	req := httptest.NewRequest("GET", "/api/toplists/rising-stars", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, lib.lastUseCache, "plain GET must allow the cache")

	var fictions []*models.Fiction
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &fictions))
	require.Len(t, fictions, 1)
	require.Equal(t, int64(44), fictions[0].ID)

	// refresh=1 bypasses the cache.
	req = httptest.NewRequest("GET", "/api/toplists/rising-stars?refresh=1", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)
	require.False(t, lib.lastUseCache)
}

func TestFictionHandlerRejectsBadID(t *testing.T) {
	server, _, _, _ := setupServer(t, &fakeLibrary{})
	router := server.Router()

	req := httptest.NewRequest("GET", "/api/fictions/abc", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestMissingCredentialsMapTo409(t *testing.T) {
	lib := &fakeLibrary{followsErr: models.ErrNotConfigured}
	server, _, _, _ := setupServer(t, lib)
	router := server.Router()

	req := httptest.NewRequest("GET", "/api/follows", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusConflict, rr.Code)
}

func TestCachedChapterLookup(t *testing.T) {
	lib := &fakeLibrary{
		cached: map[int64]*models.ChapterContent{
			100: {ChapterID: 100, HTML: "<p>hi</p>"},
		},
	}
	server, _, _, _ := setupServer(t, lib)
	router := server.Router()

	req := httptest.NewRequest("GET", "/api/fictions/5/chapters/100?cached=1", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	// A cache-only lookup for an uncached chapter must not fall through to a
	// live read.
	req = httptest.NewRequest("GET", "/api/fictions/5/chapters/101?cached=1", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestBookmarkHandler(t *testing.T) {
	lib := &fakeLibrary{}
	server, _, _, _ := setupServer(t, lib)
	router := server.Router()

	body := bytes.NewBufferString(`{"kind":"follow","enable":true}`)
	req := httptest.NewRequest("POST", "/api/fictions/9/bookmark", body)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, []string{"follow"}, lib.bookmarks)

	req = httptest.NewRequest("POST", "/api/fictions/9/bookmark", bytes.NewBufferString("not json"))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSaveCookiesRebuildsSessionAndWarms(t *testing.T) {
	server, st, rebuilder, trigger := setupServer(t, &fakeLibrary{})
	router := server.Router()

	body := bytes.NewBufferString(`{"cookies":[{"name":".AspNetCore.Identity.Application","value":"tok"}]}`)
	req := httptest.NewRequest("POST", "/api/settings/cookies", body)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 1, rebuilder.rebuilt)
	require.Equal(t, 1, trigger.triggered)

	ok, err := st.HasRequiredCookie(1)
	require.NoError(t, err)
	require.True(t, ok)

	// Status endpoint reports names, never values.
	req = httptest.NewRequest("GET", "/api/settings/cookies", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NotContains(t, rr.Body.String(), "tok")
	require.Contains(t, rr.Body.String(), ".AspNetCore.Identity.Application")
}

func TestPurgeCacheByType(t *testing.T) {
	server, st, _, _ := setupServer(t, &fakeLibrary{})
	router := server.Router()

	require.NoError(t, st.Put("chapter:1", "{}", time.Hour))
	require.NoError(t, st.Put("fiction:1", "{}", time.Hour))

	req := httptest.NewRequest("POST", "/api/cache/purge?type=chapter", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	_, ok, err := st.Get("chapter:1")
	require.NoError(t, err)
	require.False(t, ok)
	_, ok, err = st.Get("fiction:1")
	require.NoError(t, err)
	require.True(t, ok)
}
