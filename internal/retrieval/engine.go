// Package retrieval produces raw page HTML for remote URLs using a two-tier
// strategy: a direct HTTP fetch first, and a browser-automation fallback when
// the fast path is blocked by an anti-bot challenge. Two long-lived browser
// contexts (authenticated, anonymous) back the fallback so callers can choose
// whether a fetch is allowed to touch the user's remote reading state.
package retrieval

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/inkroad/inkroad/internal/config"
	"github.com/inkroad/inkroad/internal/models"
)

const (
	fallbackAttempts = 3
	challengeBackoff = 5 * time.Second
)

// FetchOptions controls a single page fetch. Anonymous fetches never attach
// the user's cookies, in either tier.
type FetchOptions struct {
	// WaitSelector is a best-effort hint: after a fallback navigation the
	// engine waits for it to appear before reading the page.
	WaitSelector string
	Anonymous    bool
}

// Engine is the two-tier retrieval engine.
type Engine struct {
	client     *resty.Client
	headClient *resty.Client
	browsers   Automator
	cookies    CookieFunc
	userAgent  string
	baseURL    string
	attempts   int
	backoff    time.Duration
}

func New(cfg *config.Config, browsers Automator, cookies CookieFunc) *Engine {
	timeout := time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second

	client := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", cfg.Site.UserAgent).
		SetRetryCount(2).
		SetRetryWaitTime(3 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return r != nil && r.StatusCode() == http.StatusTooManyRequests
		})

	// Separate client for redirect resolution: redirects must be observed,
	// not followed.
	headClient := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", cfg.Site.UserAgent).
		SetRedirectPolicy(resty.NoRedirectPolicy())

	return &Engine{
		client:     client,
		headClient: headClient,
		browsers:   browsers,
		cookies:    cookies,
		userAgent:  cfg.Site.UserAgent,
		baseURL:    cfg.Site.BaseURL,
		attempts:   fallbackAttempts,
		backoff:    challengeBackoff,
	}
}

// FetchPage returns the HTML for pageURL. The returned Handle is nil when the
// fast path succeeded; otherwise it is the open automation tab and the caller
// must close it on every path.
func (e *Engine) FetchPage(ctx context.Context, pageURL string, opts FetchOptions) (Handle, string, error) {
	html, ok := e.tryFastPath(ctx, pageURL, opts)
	if ok {
		return nil, html, nil
	}
	return e.fallback(ctx, pageURL, opts)
}

// tryFastPath issues a plain GET with a browser-like user agent. It reports
// ok=false whenever the fallback should engage: transport error, bad status,
// or a challenge interstitial in the body.
func (e *Engine) tryFastPath(ctx context.Context, pageURL string, opts FetchOptions) (string, bool) {
	req := e.client.R().SetContext(ctx)
	if !opts.Anonymous {
		req.SetCookies(e.httpCookies())
	}

	resp, err := req.Get(pageURL)
	if err != nil {
		log.Printf("Fast path failed for %s: %v", pageURL, err)
		return "", false
	}
	if resp.StatusCode() != http.StatusOK {
		log.Printf("Fast path got status %d for %s", resp.StatusCode(), pageURL)
		return "", false
	}

	body := resp.String()
	if IsChallengePage(body) {
		log.Printf("Challenge marker on fast path for %s, engaging browser fallback", pageURL)
		return "", false
	}

	// A login bounce means stale credentials. Logged, not fatal: warming
	// must keep going, and interactive callers surface it upstream.
	if raw := resp.RawResponse; raw != nil && raw.Request != nil && raw.Request.URL != nil {
		if IsLoginRedirect(raw.Request.URL.String()) {
			log.Printf("Request for %s was redirected to the login page; stored credentials look stale", pageURL)
		}
	}

	return body, true
}

// fallback drives the browser through up to fallbackAttempts navigations,
// re-checking for the challenge interstitial after each and backing off in
// between. Exhausting the budget while still challenged is fatal for the
// call.
func (e *Engine) fallback(ctx context.Context, pageURL string, opts FetchOptions) (Handle, string, error) {
	var lastErr error
	challenged := false

	for attempt := 1; attempt <= e.attempts; attempt++ {
		handle, html, err := e.browsers.Navigate(ctx, pageURL, NavigateOptions{
			Anonymous:    opts.Anonymous,
			WaitSelector: opts.WaitSelector,
		})
		if err != nil {
			lastErr = err
			challenged = false
			log.Printf("Fallback attempt %d/%d for %s failed: %v", attempt, e.attempts, pageURL, err)
		} else if IsChallengePage(html) {
			handle.Close()
			challenged = true
			log.Printf("Fallback attempt %d/%d for %s still challenge-blocked", attempt, e.attempts, pageURL)
		} else {
			if IsLoginPage(html) {
				log.Printf("Fallback for %s landed on the login page; stored credentials look stale", pageURL)
			}
			return handle, html, nil
		}

		if attempt < e.attempts {
			select {
			case <-time.After(e.backoff):
			case <-ctx.Done():
				return nil, "", fmt.Errorf("%w: %v", models.ErrRetrievalFailed, ctx.Err())
			}
		}
	}

	if challenged {
		return nil, "", fmt.Errorf("%w: %s after %d attempts", models.ErrChallengeBlocked, pageURL, e.attempts)
	}
	return nil, "", fmt.Errorf("%w: %v", models.ErrRetrievalFailed, lastErr)
}

// ResolveRedirect resolves an indirection URL (e.g. a "next unread chapter"
// link that 302s to the real chapter) to its final URL. It uses HEAD requests
// without cookies first and falls back to an anonymous navigation, so
// resolving "what's next" can never mark a chapter as read.
func (e *Engine) ResolveRedirect(ctx context.Context, pageURL string) (string, error) {
	current := pageURL
	for hop := 0; hop < 5; hop++ {
		resp, err := e.headClient.R().SetContext(ctx).Head(current)
		if err != nil && resp == nil {
			break // transport failure, try the browser
		}
		code := resp.StatusCode()
		if code >= 300 && code < 400 {
			loc := resp.Header().Get("Location")
			if loc == "" {
				break
			}
			next, err := e.absoluteURL(current, loc)
			if err != nil {
				break
			}
			current = next
			continue
		}
		if code == http.StatusOK {
			return current, nil
		}
		break // HEAD unsupported or blocked, try the browser
	}

	resolved, err := e.browsers.ResolveURL(ctx, pageURL)
	if err != nil {
		return "", fmt.Errorf("%w: resolving %s: %v", models.ErrRetrievalFailed, pageURL, err)
	}
	return resolved, nil
}

// FetchImage downloads a binary resource (cover art) without cookies.
func (e *Engine) FetchImage(ctx context.Context, imageURL string) ([]byte, string, error) {
	resp, err := e.client.R().
		SetContext(ctx).
		SetHeader("Referer", e.baseURL).
		Get(imageURL)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", models.ErrRetrievalFailed, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, "", fmt.Errorf("%w: status %d for %s", models.ErrRetrievalFailed, resp.StatusCode(), imageURL)
	}
	contentType := resp.Header().Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return resp.Body(), contentType, nil
}

// PostForm submits a form with the user's cookies attached. Used for remote
// bookmark mutations, which are intentional side-effecting writes.
func (e *Engine) PostForm(ctx context.Context, formURL string, form url.Values) (string, error) {
	resp, err := e.client.R().
		SetContext(ctx).
		SetCookies(e.httpCookies()).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetBody(form.Encode()).
		Post(formURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrRetrievalFailed, err)
	}
	if resp.StatusCode() >= 400 {
		return "", fmt.Errorf("%w: status %d for %s", models.ErrRetrievalFailed, resp.StatusCode(), formURL)
	}
	return resp.String(), nil
}

func (e *Engine) httpCookies() []*http.Cookie {
	stored, err := e.cookies()
	if err != nil {
		log.Printf("Failed to load stored cookies: %v", err)
		return nil
	}
	out := make([]*http.Cookie, 0, len(stored))
	for _, c := range stored {
		out = append(out, &http.Cookie{Name: c.Name, Value: c.Value})
	}
	return out
}

func (e *Engine) absoluteURL(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(r).String(), nil
}
