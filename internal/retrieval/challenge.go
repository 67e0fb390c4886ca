package retrieval

import "strings"

// challengeMarkers are substrings that only appear when the remote site's
// anti-bot interstitial is served instead of real content. This list is the
// single source of truth for the fast-path/fallback trigger and for the
// fallback's retry re-check.
var challengeMarkers = []string{
	"challenge-running",
	"cf-browser-verification",
	"challenge-platform",
	"cf-chl-",
	"Just a moment...",
}

// IsChallengePage reports whether html is an anti-bot interstitial rather
// than real page content.
func IsChallengePage(html string) bool {
	for _, marker := range challengeMarkers {
		if strings.Contains(html, marker) {
			return true
		}
	}
	return false
}

// loginPathFragment appears in the final URL when the site bounces an
// unauthenticated (or stale-session) request to its login form.
const loginPathFragment = "/account/login"

// IsLoginRedirect reports whether a request ended up on the login page,
// which signals stale or missing credentials. Callers log this rather than
// fail so cache warming keeps going.
func IsLoginRedirect(finalURL string) bool {
	return strings.Contains(strings.ToLower(finalURL), loginPathFragment)
}

// IsLoginPage is the body-based variant of IsLoginRedirect, for the fallback
// path where only the rendered HTML is available.
func IsLoginPage(html string) bool {
	return strings.Contains(strings.ToLower(html), `action="`+loginPathFragment)
}
