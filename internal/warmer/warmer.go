// Package warmer keeps the cache hot in the background so interactive reads
// rarely wait on the remote site. All warming traffic that could touch the
// user's remote read-state runs in the anonymous context.
package warmer

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron"
	"golang.org/x/time/rate"

	"github.com/inkroad/inkroad/internal/config"
	"github.com/inkroad/inkroad/internal/models"
	"github.com/inkroad/inkroad/internal/service"
	"github.com/inkroad/inkroad/internal/store"
)

// Library is the slice of the service layer the warmer drives.
type Library interface {
	GetToplist(ctx context.Context, name string, useCache bool) ([]*models.Fiction, error)
	GetFollows(ctx context.Context, useCache bool) ([]*models.FollowedFiction, error)
	GetFiction(ctx context.Context, fictionID int64, useCache, anonymous bool) (*models.Fiction, error)
	PrecacheChapterContent(ctx context.Context, fictionID, chapterID int64, ttl time.Duration) error
	HasCredentials() (bool, error)
}

// CycleResult summarizes one warming pass for logging and tests.
type CycleResult struct {
	Warmed  int
	Skipped int
	Failed  int
}

type Warmer struct {
	library   Library
	st        *store.Store
	cfg       *config.Config
	scheduler *gocron.Scheduler

	// Pacing toward the remote site. Replaceable in tests.
	toplistLimiter *rate.Limiter
	fictionLimiter *rate.Limiter

	followsRunning atomic.Bool
}

func New(library Library, st *store.Store, cfg *config.Config) *Warmer {
	return &Warmer{
		library:        library,
		st:             st,
		cfg:            cfg,
		toplistLimiter: rate.NewLimiter(rate.Every(2*time.Second), 1),
		fictionLimiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

// Start schedules the periodic warming jobs and kicks off an initial pass
// after the configured startup delay.
func (w *Warmer) Start() {
	w.scheduler = gocron.NewScheduler(time.UTC)
	w.scheduler.SingletonModeAll()

	w.scheduler.Every(w.cfg.Warming.ToplistIntervalHours).Hours().Do(func() {
		w.runToplists(context.Background())
	})
	w.scheduler.Every(w.cfg.Warming.FollowsIntervalMinutes).Minutes().Do(func() {
		w.runFollows(context.Background())
	})

	w.scheduler.StartAsync()
	log.Println("Cache warmer scheduled.")

	go func() {
		time.Sleep(time.Duration(w.cfg.Warming.StartupDelaySeconds) * time.Second)
		w.runAll(context.Background())
	}()
}

// TriggerNow runs a full warming pass in the background, used after the
// credentials change.
func (w *Warmer) TriggerNow() {
	go w.runAll(context.Background())
}

// Stop halts the scheduler. Safe to call more than once, or before Start.
func (w *Warmer) Stop() {
	if w.scheduler != nil {
		w.scheduler.Stop()
	}
}

func (w *Warmer) runAll(ctx context.Context) {
	w.runToplists(ctx)
	w.runFollows(ctx)
}

func (w *Warmer) runToplists(ctx context.Context) {
	res := w.WarmToplists(ctx)
	log.Printf("Toplist warming done: %d warmed, %d fresh, %d failed.", res.Warmed, res.Skipped, res.Failed)
}

func (w *Warmer) runFollows(ctx context.Context) {
	res := w.WarmFollows(ctx)
	log.Printf("Follows warming done: %d warmed, %d fresh, %d failed.", res.Warmed, res.Skipped, res.Failed)
}

// WarmToplists refreshes every configured toplist whose cache entry has
// expired. Per-list failures are logged and never abort the pass.
func (w *Warmer) WarmToplists(ctx context.Context) CycleResult {
	var res CycleResult
	for _, name := range w.cfg.Warming.Toplists {
		present, err := w.st.IsPresent(store.CacheKey("toplist", name))
		if err == nil && present {
			res.Skipped++
			continue
		}
		if err := w.toplistLimiter.Wait(ctx); err != nil {
			return res
		}
		if _, err := w.library.GetToplist(ctx, name, false); err != nil {
			log.Printf("Warming toplist %q failed: %v", name, err)
			res.Failed++
			continue
		}
		res.Warmed++
	}
	return res
}

// WarmFollows refreshes the follows list and pre-caches each followed
// fiction's detail page and next unread chapter. The follows page itself
// needs the session; everything downstream runs anonymously so the user's
// remote reading position never moves.
func (w *Warmer) WarmFollows(ctx context.Context) CycleResult {
	var res CycleResult
	if !w.followsRunning.CompareAndSwap(false, true) {
		return res
	}
	defer w.followsRunning.Store(false)

	ok, err := w.library.HasCredentials()
	if err != nil || !ok {
		return res
	}

	follows, err := w.library.GetFollows(ctx, true)
	if err != nil {
		log.Printf("Warming follows failed: %v", err)
		res.Failed++
		return res
	}
	res.Warmed++

	for _, f := range follows {
		if err := w.fictionLimiter.Wait(ctx); err != nil {
			return res
		}
		fiction, err := w.library.GetFiction(ctx, f.ID, true, true)
		if err != nil {
			log.Printf("Warming fiction %d failed: %v", f.ID, err)
			res.Failed++
		} else {
			res.Warmed++
		}

		nextID := nextChapterToWarm(f, fiction)
		if nextID == 0 {
			continue
		}
		if err := w.fictionLimiter.Wait(ctx); err != nil {
			return res
		}
		if err := w.library.PrecacheChapterContent(ctx, f.ID, nextID, service.TTLChapterContent); err != nil {
			log.Printf("Pre-caching chapter %d of fiction %d failed: %v", nextID, f.ID, err)
			res.Failed++
		} else {
			res.Warmed++
		}
	}
	return res
}

// nextChapterToWarm picks the chapter to pre-cache for a followed fiction:
// the follows page's resolved continue pointer when it has one, otherwise the
// standard precedence over the fiction's chapter list.
func nextChapterToWarm(f *models.FollowedFiction, fiction *models.Fiction) int64 {
	if f.NextChapterID != 0 {
		return f.NextChapterID
	}
	if fiction == nil {
		return 0
	}
	var lastRead int64
	if f.LastReadRef != nil {
		lastRead = f.LastReadRef.ID
	}
	return service.NextChapterID(fiction, lastRead)
}
