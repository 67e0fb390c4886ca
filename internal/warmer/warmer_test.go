package warmer

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/inkroad/inkroad/internal/config"
	"github.com/inkroad/inkroad/internal/models"
	"github.com/inkroad/inkroad/internal/store"
	"github.com/inkroad/inkroad/internal/testutil"
)

type fakeLibrary struct {
	hasCreds bool
	follows  []*models.FollowedFiction
	fictions map[int64]*models.Fiction

	toplistCalls    []string
	followsCalls    int
	followsUseCache []bool
	fictionCalls    []int64
	fictionAnon     []bool
	precacheCalls   [][2]int64

	toplistErr error
}

func (f *fakeLibrary) GetToplist(_ context.Context, name string, _ bool) ([]*models.Fiction, error) {
	f.toplistCalls = append(f.toplistCalls, name)
	return nil, f.toplistErr
}

func (f *fakeLibrary) GetFollows(_ context.Context, useCache bool) ([]*models.FollowedFiction, error) {
	f.followsCalls++
	f.followsUseCache = append(f.followsUseCache, useCache)
	return f.follows, nil
}

func (f *fakeLibrary) GetFiction(_ context.Context, fictionID int64, _, anonymous bool) (*models.Fiction, error) {
	f.fictionCalls = append(f.fictionCalls, fictionID)
	f.fictionAnon = append(f.fictionAnon, anonymous)
	if fiction, ok := f.fictions[fictionID]; ok {
		return fiction, nil
	}
	return &models.Fiction{ID: fictionID}, nil
}

func (f *fakeLibrary) PrecacheChapterContent(_ context.Context, fictionID, chapterID int64, _ time.Duration) error {
	f.precacheCalls = append(f.precacheCalls, [2]int64{fictionID, chapterID})
	return nil
}

func (f *fakeLibrary) HasCredentials() (bool, error) {
	return f.hasCreds, nil
}

func newTestWarmer(t *testing.T, lib *fakeLibrary) (*Warmer, *store.Store) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	st := store.New(db)
	cfg := &config.Config{}
	cfg.Warming.Toplists = []string{"rising-stars", "trending"}
	w := New(lib, st, cfg)
	// No pacing in tests.
	w.toplistLimiter = rate.NewLimiter(rate.Inf, 1)
	w.fictionLimiter = rate.NewLimiter(rate.Inf, 1)
	return w, st
}

func TestWarmToplistsSkipsFreshEntries(t *testing.T) {
	lib := &fakeLibrary{}
	w, st := newTestWarmer(t, lib)

	st.Put(store.CacheKey("toplist", "rising-stars"), `[]`, time.Hour)

	res := w.WarmToplists(context.Background())
	if res.Skipped != 1 || res.Warmed != 1 || res.Failed != 0 {
		t.Errorf("Unexpected cycle result: %+v", res)
	}
	if len(lib.toplistCalls) != 1 || lib.toplistCalls[0] != "trending" {
		t.Errorf("Expected only the stale list to be fetched, got %v", lib.toplistCalls)
	}
}

func TestWarmToplistsContinuesPastFailures(t *testing.T) {
	lib := &fakeLibrary{toplistErr: errors.New("blocked")}
	w, _ := newTestWarmer(t, lib)

	res := w.WarmToplists(context.Background())
	if res.Failed != 2 {
		t.Errorf("Expected both lists to fail independently, got %+v", res)
	}
	if len(lib.toplistCalls) != 2 {
		t.Errorf("A failure must not abort the pass, got calls %v", lib.toplistCalls)
	}
}

func TestWarmFollowsNeedsCredentials(t *testing.T) {
	lib := &fakeLibrary{hasCreds: false}
	w, _ := newTestWarmer(t, lib)

	res := w.WarmFollows(context.Background())
	if res != (CycleResult{}) {
		t.Errorf("Expected a no-op cycle, got %+v", res)
	}
	if lib.followsCalls != 0 {
		t.Error("Follows must not be fetched without credentials")
	}
}

func TestWarmFollowsPrecachesAnonymously(t *testing.T) {
	lib := &fakeLibrary{
		hasCreds: true,
		follows: []*models.FollowedFiction{
			{Fiction: models.Fiction{ID: 11}, NextChapterID: 210},
			{Fiction: models.Fiction{ID: 22}},
		},
	}
	w, _ := newTestWarmer(t, lib)

	res := w.WarmFollows(context.Background())
	// follows list + 2 fiction pages + 1 chapter.
	if res.Warmed != 4 || res.Failed != 0 {
		t.Errorf("Unexpected cycle result: %+v", res)
	}

	if len(lib.fictionCalls) != 2 {
		t.Fatalf("Expected 2 fiction warmups, got %v", lib.fictionCalls)
	}
	for i, anon := range lib.fictionAnon {
		if !anon {
			t.Errorf("Fiction warmup %d used the authenticated context", i)
		}
	}

	if len(lib.precacheCalls) != 1 {
		t.Fatalf("Expected 1 chapter pre-cache, got %v", lib.precacheCalls)
	}
	if lib.precacheCalls[0] != [2]int64{11, 210} {
		t.Errorf("Unexpected pre-cache target: %v", lib.precacheCalls[0])
	}
}

func TestWarmFollowsNextChapterFallbacks(t *testing.T) {
	lib := &fakeLibrary{
		hasCreds: true,
		follows: []*models.FollowedFiction{
			// No continue pointer: the successor of the last read chapter.
			{Fiction: models.Fiction{ID: 7}, LastReadRef: &models.Chapter{ID: 2}},
			// Nothing read yet: the first chapter.
			{Fiction: models.Fiction{ID: 8}},
			// No chapter list at all: nothing to warm.
			{Fiction: models.Fiction{ID: 9}},
		},
		fictions: map[int64]*models.Fiction{
			7: {ID: 7, Chapters: []*models.Chapter{{ID: 1}, {ID: 2}, {ID: 3}}},
			8: {ID: 8, Chapters: []*models.Chapter{{ID: 5}, {ID: 6}}},
			9: {ID: 9},
		},
	}
	w, _ := newTestWarmer(t, lib)

	res := w.WarmFollows(context.Background())
	if res.Failed != 0 {
		t.Errorf("Unexpected failures: %+v", res)
	}

	want := [][2]int64{{7, 3}, {8, 5}}
	if len(lib.precacheCalls) != len(want) {
		t.Fatalf("Expected pre-cache calls %v, got %v", want, lib.precacheCalls)
	}
	for i, target := range want {
		if lib.precacheCalls[i] != target {
			t.Errorf("Pre-cache call %d: expected %v, got %v", i, target, lib.precacheCalls[i])
		}
	}

	// A follows list fetched moments ago interactively is good enough.
	if len(lib.followsUseCache) != 1 || !lib.followsUseCache[0] {
		t.Errorf("Expected the follows fetch to allow the cache, got %v", lib.followsUseCache)
	}
}

func TestStopBeforeStart(t *testing.T) {
	w, _ := newTestWarmer(t, &fakeLibrary{})
	w.Stop()
	w.Stop()
}
