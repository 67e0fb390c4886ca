// Package extract turns the remote site's raw HTML into typed records. The
// markup mixes legacy and current class names, randomizes some of them, and
// plants decoy hidden text, so every extractor works from ordered fallback
// selectors and tolerates missing fields instead of failing.
package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	fictionIDRe = regexp.MustCompile(`/fiction/(\d+)`)
	chapterIDRe = regexp.MustCompile(`/chapter/(\d+)`)
	digitRunRe  = regexp.MustCompile(`\d[\d,.\x{00a0} ]*`)
	floatRe     = regexp.MustCompile(`\d+(?:\.\d+)?`)
)

// firstMatch evaluates selectors in order and returns the first non-empty
// selection. The order encodes the "try current markup, then legacy" policy.
func firstMatch(s *goquery.Selection, selectors ...string) *goquery.Selection {
	for _, sel := range selectors {
		if found := s.Find(sel); found.Length() > 0 {
			return found
		}
	}
	return s.Find("__nomatch__") // empty selection, callers get zero values
}

// textOf returns the trimmed text of the first selector that matches, or "".
func textOf(s *goquery.Selection, selectors ...string) string {
	return strings.TrimSpace(firstMatch(s, selectors...).First().Text())
}

// attrOf returns the named attribute of the first selector that matches, or "".
func attrOf(s *goquery.Selection, attr string, selectors ...string) string {
	return strings.TrimSpace(firstMatch(s, selectors...).First().AttrOr(attr, ""))
}

// parseCount pulls a number out of loosely formatted text ("1,234 Followers",
// "12 345 pages") by isolating the longest digit run and stripping the
// thousands separators.
func parseCount(text string) int {
	runs := digitRunRe.FindAllString(text, -1)
	best := ""
	for _, run := range runs {
		digits := stripNonDigits(run)
		if len(digits) > len(stripNonDigits(best)) {
			best = run
		}
	}
	if best == "" {
		return 0
	}
	n, err := strconv.Atoi(stripNonDigits(best))
	if err != nil {
		return 0
	}
	return n
}

func stripNonDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// parseScore extracts a 0-5 score from text or an attribute value like
// "4.53 stars" or "Overall Score: 4.5 / 5".
func parseScore(text string) float64 {
	m := floatRe.FindString(text)
	if m == "" {
		return 0
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil || f < 0 || f > 5 {
		return 0
	}
	return f
}

// FictionIDFromURL extracts the numeric fiction id from any fiction URL, or 0.
func FictionIDFromURL(u string) int64 {
	return idFrom(fictionIDRe, u)
}

// ChapterIDFromURL extracts the numeric chapter id from any chapter URL, or 0.
func ChapterIDFromURL(u string) int64 {
	return idFrom(chapterIDRe, u)
}

func idFrom(re *regexp.Regexp, u string) int64 {
	m := re.FindStringSubmatch(u)
	if len(m) < 2 {
		return 0
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// CSRFToken pulls the site's request-verification token out of a page. The
// bookmark mutation endpoints reject posts without it.
func CSRFToken(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	return doc.Find("input[name='__RequestVerificationToken']").First().AttrOr("value", "")
}

// findByText returns the first element matching selector whose trimmed text
// contains needle (case-insensitive). CSS alone cannot express this and the
// site labels several fields only by visible text.
func findByText(s *goquery.Selection, selector, needle string) *goquery.Selection {
	needle = strings.ToLower(needle)
	var out *goquery.Selection
	s.Find(selector).EachWithBreak(func(_ int, el *goquery.Selection) bool {
		if strings.Contains(strings.ToLower(strings.TrimSpace(el.Text())), needle) {
			out = el
			return false
		}
		return true
	})
	return out
}
