package retrieval

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/inkroad/inkroad/internal/config"
	"github.com/inkroad/inkroad/internal/models"
)

// CookieFunc supplies the user's stored remote-site cookies. Injected so the
// browser pool and engine never reach into the store directly.
type CookieFunc func() ([]models.Cookie, error)

// Handle is an open automation page returned by the fallback path. Whichever
// code path obtained a handle must close it, on success and on error.
type Handle interface {
	Close()
}

// Tab is a single automation page. Closing it cancels the page's context,
// which detaches the tab from the shared browser.
type Tab struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func (t *Tab) Close() {
	if t != nil && t.cancel != nil {
		t.cancel()
	}
}

// NavigateOptions selects the execution context and an optional selector to
// wait for after navigation.
type NavigateOptions struct {
	Anonymous    bool
	WaitSelector string
}

// Automator abstracts the browser pool so the engine's fallback path can be
// faked in tests.
type Automator interface {
	Navigate(ctx context.Context, pageURL string, opts NavigateOptions) (Handle, string, error)
	ResolveURL(ctx context.Context, pageURL string) (string, error)
}

// Browsers owns the two long-lived automation contexts: one seeded with the
// user's cookies and one anonymous. The anonymous context exists so that
// background reads never mutate the user's remote reading position. Both are
// created lazily; Rebuild tears down and recreates the authenticated context
// when credentials change.
type Browsers struct {
	mu sync.Mutex

	headless   bool
	navTimeout time.Duration
	userAgent  string
	cookieHost string
	cookies    CookieFunc

	allocCtx    context.Context
	allocCancel context.CancelFunc
	authCtx     context.Context
	authCancel  context.CancelFunc
	anonCtx     context.Context
	anonCancel  context.CancelFunc
}

func NewBrowsers(cfg *config.Config, cookies CookieFunc) *Browsers {
	host := ""
	if u, err := url.Parse(cfg.Site.BaseURL); err == nil {
		host = u.Hostname()
	}
	return &Browsers{
		headless:   cfg.Browser.Headless,
		navTimeout: time.Duration(cfg.Browser.NavTimeoutSeconds) * time.Second,
		userAgent:  cfg.Site.UserAgent,
		cookieHost: host,
		cookies:    cookies,
	}
}

// EnsureReady lazily starts the browser process and both contexts.
func (b *Browsers) EnsureReady(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ensureReadyLocked(ctx)
}

func (b *Browsers) ensureReadyLocked(ctx context.Context) error {
	if b.allocCtx == nil {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", b.headless),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-extensions", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.UserAgent(b.userAgent),
		)
		b.allocCtx, b.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	}

	if b.anonCtx == nil {
		anonCtx, cancel := chromedp.NewContext(b.allocCtx)
		if err := chromedp.Run(anonCtx, chromedp.Navigate("about:blank")); err != nil {
			cancel()
			return fmt.Errorf("failed to start anonymous browser context: %w", err)
		}
		b.anonCtx, b.anonCancel = anonCtx, cancel
	}

	if b.authCtx == nil {
		authCtx, cancel := chromedp.NewContext(b.allocCtx)
		if err := chromedp.Run(authCtx, chromedp.Navigate("about:blank"), b.seedCookiesAction()); err != nil {
			cancel()
			return fmt.Errorf("failed to start authenticated browser context: %w", err)
		}
		b.authCtx, b.authCancel = authCtx, cancel
	}

	return nil
}

// seedCookiesAction installs the user's stored cookies into the current
// context so fallback navigations carry the real session.
func (b *Browsers) seedCookiesAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		cookies, err := b.cookies()
		if err != nil {
			return fmt.Errorf("failed to load stored cookies: %w", err)
		}
		for _, c := range cookies {
			err := network.SetCookie(c.Name, c.Value).
				WithDomain(b.cookieHost).
				WithPath("/").
				WithSecure(true).
				Do(ctx)
			if err != nil {
				return fmt.Errorf("failed to set cookie %s: %w", c.Name, err)
			}
		}
		return nil
	})
}

// Rebuild tears down the authenticated context and recreates it with fresh
// cookies. Called after the user (re)configures credentials.
func (b *Browsers) Rebuild(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.authCancel != nil {
		b.authCancel()
		b.authCtx, b.authCancel = nil, nil
	}
	log.Println("Rebuilding authenticated browser context with fresh cookies")
	return b.ensureReadyLocked(ctx)
}

// Shutdown stops both contexts and the browser process. Safe to call more
// than once.
func (b *Browsers) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, cancel := range []context.CancelFunc{b.authCancel, b.anonCancel, b.allocCancel} {
		if cancel != nil {
			cancel()
		}
	}
	b.authCtx, b.authCancel = nil, nil
	b.anonCtx, b.anonCancel = nil, nil
	b.allocCtx, b.allocCancel = nil, nil
}

// blockedResourceTypes are sub-resources we refuse to load in fallback
// navigations. The page's markup is all we need; skipping these cuts
// navigation time substantially.
var blockedResourceTypes = map[network.ResourceType]bool{
	network.ResourceTypeStylesheet: true,
	network.ResourceTypeFont:       true,
	network.ResourceTypeMedia:      true,
	network.ResourceTypeImage:      true,
}

// Navigate opens a new tab in the requested context, navigates once, and
// returns the tab handle plus the rendered HTML. The caller owns the handle.
func (b *Browsers) Navigate(ctx context.Context, pageURL string, opts NavigateOptions) (Handle, string, error) {
	if err := b.EnsureReady(ctx); err != nil {
		return nil, "", err
	}

	b.mu.Lock()
	parent := b.authCtx
	if opts.Anonymous {
		parent = b.anonCtx
	}
	b.mu.Unlock()

	tabCtx, tabCancel := chromedp.NewContext(parent)
	tab := &Tab{ctx: tabCtx, cancel: tabCancel}

	runCtx, cancel := context.WithTimeout(tabCtx, b.navTimeout)
	defer cancel()

	// Intercept requests so non-essential sub-resources never load.
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		if ev, ok := ev.(*fetch.EventRequestPaused); ok {
			go func() {
				c := chromedp.FromContext(tabCtx)
				ectx := cdp.WithExecutor(tabCtx, c.Target)
				if blockedResourceTypes[ev.ResourceType] {
					fetch.FailRequest(ev.RequestID, network.ErrorReasonBlockedByClient).Do(ectx)
				} else {
					fetch.ContinueRequest(ev.RequestID).Do(ectx)
				}
			}()
		}
	})

	var html string
	err := chromedp.Run(runCtx,
		fetch.Enable(),
		chromedp.Navigate(pageURL),
	)
	if err != nil {
		tab.Close()
		return nil, "", fmt.Errorf("navigation to %s failed: %w", pageURL, err)
	}

	if opts.WaitSelector != "" {
		// Best effort: partial content beats total failure, so a wait
		// timeout is not an error.
		waitCtx, waitCancel := context.WithTimeout(tabCtx, 10*time.Second)
		if err := chromedp.Run(waitCtx, chromedp.WaitVisible(opts.WaitSelector, chromedp.ByQuery)); err != nil {
			log.Printf("Timed out waiting for %q on %s, continuing with partial content", opts.WaitSelector, pageURL)
		}
		waitCancel()
	}

	if err := chromedp.Run(runCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		tab.Close()
		return nil, "", fmt.Errorf("failed to read rendered page %s: %w", pageURL, err)
	}

	return tab, html, nil
}

// ResolveURL navigates to pageURL in the anonymous context and returns the
// final location after redirects. Used as the heavy fallback for redirect
// resolution; the anonymous context guarantees the visit cannot mark
// anything as read.
func (b *Browsers) ResolveURL(ctx context.Context, pageURL string) (string, error) {
	if err := b.EnsureReady(ctx); err != nil {
		return "", err
	}

	b.mu.Lock()
	parent := b.anonCtx
	b.mu.Unlock()

	tabCtx, tabCancel := chromedp.NewContext(parent)
	defer tabCancel()

	runCtx, cancel := context.WithTimeout(tabCtx, b.navTimeout)
	defer cancel()

	var location string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(pageURL),
		chromedp.Location(&location),
	)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", pageURL, err)
	}
	if !strings.HasPrefix(location, "http") {
		return "", fmt.Errorf("unexpected resolved location %q for %s", location, pageURL)
	}
	return location, nil
}
