package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/inkroad/inkroad/internal/models"
)

const maxTags = 3

// fiction detail page selectors, current markup first, legacy second.
var (
	titleSelectors  = []string{"div.fic-title h1", "h1[property='name']", "div.fic-header h1", "h1"}
	authorSelectors = []string{"div.fic-title h4 a", "h4[property='author'] a", "a[href^='/profile/']"}
	coverSelectors  = []string{"div.cover-art-container img", "img.thumbnail[src]", "img[data-type='cover']"}
	descSelectors   = []string{"div.description div.hidden-content", "div.description", "div[property='description']"}
	tagSelectors    = []string{"span.tags a.fiction-tag", "span.tags a", "div.tags a"}

	chapterRowSelectors = []string{"table#chapters tbody tr.chapter-row", "table#chapters tbody tr", "tr.chapter-row"}

	// Rows the site marks as the user's current reading position.
	currentRowMarkers = []string{"tr.chapter-row-current", "tr.chapter-row.active", "tr[data-current='true']"}

	continueSelectors = []string{
		"a.btn-primary[href*='/chapter/']",
		"div.fic-buttons a[href*='/chapter/']",
	}
)

// Fiction parses a fiction detail page into a Fiction record with its
// chapter list and inferred per-chapter read flags. A page that yields no
// title is reported by an empty Title, never by an error; the caller decides
// whether that is fatal.
func Fiction(html string) (*models.Fiction, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	root := doc.Selection
	f := &models.Fiction{
		Title:       textOf(root, titleSelectors...),
		Author:      textOf(root, authorSelectors...),
		CoverURL:    attrOf(root, "src", coverSelectors...),
		Description: textOf(root, descSelectors...),
	}

	if canonical := attrOf(root, "href", "link[rel='canonical']"); canonical != "" {
		f.URL = canonical
		f.ID = FictionIDFromURL(canonical)
	}
	if f.ID == 0 {
		f.ID = FictionIDFromURL(attrOf(root, "content", "meta[property='og:url']"))
	}

	firstMatch(root, tagSelectors...).Each(func(_ int, s *goquery.Selection) {
		if len(f.Tags) >= maxTags {
			return
		}
		if tag := strings.TrimSpace(s.Text()); tag != "" {
			f.Tags = append(f.Tags, tag)
		}
	})

	f.Stats = fictionStats(root)
	f.ContinueURL = continueURL(root)
	f.Chapters = ChapterRows(root)

	currentIdx := currentRowIndex(root)
	InferReadState(f.Chapters, currentIdx, ChapterIDFromURL(f.ContinueURL))

	return f, nil
}

// ChapterRows parses the fiction page's chapter table. Rows that cannot be
// parsed are skipped individually; a fully unparseable table yields an empty
// slice.
func ChapterRows(root *goquery.Selection) []*models.Chapter {
	chapters := []*models.Chapter{}
	firstMatch(root, chapterRowSelectors...).Each(func(i int, row *goquery.Selection) {
		link := row.Find("a[href*='/chapter/']").First()
		href := link.AttrOr("href", "")
		id := ChapterIDFromURL(href)
		if id == 0 {
			return // decoy or malformed row
		}
		published := row.Find("time").First().AttrOr("datetime", "")
		if published == "" {
			published = strings.TrimSpace(row.Find("time").First().Text())
		}
		chapters = append(chapters, &models.Chapter{
			ID:          id,
			Title:       strings.TrimSpace(link.Text()),
			URL:         href,
			PublishedAt: published,
			Order:       len(chapters),
		})
	})
	return chapters
}

// currentRowIndex finds the chapter-table index of the row the site marks as
// the user's current position, or -1.
func currentRowIndex(root *goquery.Selection) int {
	for _, marker := range currentRowMarkers {
		markerRow := root.Find(marker).First()
		if markerRow.Length() == 0 {
			continue
		}
		markerID := ChapterIDFromURL(markerRow.Find("a[href*='/chapter/']").First().AttrOr("href", ""))
		if markerID == 0 {
			continue
		}
		idx := -1
		firstMatch(root, chapterRowSelectors...).Each(func(i int, row *goquery.Selection) {
			if ChapterIDFromURL(row.Find("a[href*='/chapter/']").First().AttrOr("href", "")) == markerID {
				idx = i
			}
		})
		if idx >= 0 {
			return idx
		}
	}
	return -1
}

// continueURL finds the site's own "continue reading" pointer.
func continueURL(root *goquery.Selection) string {
	for _, sel := range continueSelectors {
		var href string
		root.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			label := strings.ToLower(strings.TrimSpace(s.Text()))
			if strings.Contains(label, "continue") || strings.Contains(label, "resume") {
				href = s.AttrOr("href", "")
				return false
			}
			return true
		})
		if href != "" {
			return href
		}
	}
	return ""
}

// InferReadState flags chapters as read using the documented precedence:
// an explicit current-position marker wins; failing that, everything strictly
// before the continue pointer is read; failing both, nothing is. This is a
// heuristic over inconsistent markup, kept exactly as documented even where
// the site's own notion of progress may disagree.
func InferReadState(chapters []*models.Chapter, currentIdx int, continueID int64) {
	switch {
	case currentIdx >= 0:
		for i, ch := range chapters {
			ch.Read = i <= currentIdx
		}
	case continueID != 0:
		continueIdx := -1
		for i, ch := range chapters {
			if ch.ID == continueID {
				continueIdx = i
				break
			}
		}
		if continueIdx < 0 {
			return
		}
		for i, ch := range chapters {
			ch.Read = i < continueIdx
		}
	}
}

// fictionStats reads the statistics panel. Every value is optional; the
// labels are matched by visible text because the panel's classes are not
// stable across site versions.
func fictionStats(root *goquery.Selection) models.FictionStats {
	stats := models.FictionStats{}

	panel := firstMatch(root, "div.fiction-stats", "div.stats-content", "div.portlet.row")
	if panel.Length() == 0 {
		panel = root
	}

	counters := map[string]*int{
		"followers":   &stats.Followers,
		"favorites":   &stats.Favorites,
		"total views": &stats.Views,
		"pages":       &stats.Pages,
	}
	for label, target := range counters {
		if el := findByText(panel, "li", label); el != nil {
			// The value is the next list item, or embedded in the same one.
			if v := parseCount(el.Next().Text()); v > 0 {
				*target = v
			} else {
				*target = parseCount(el.Text())
			}
		}
	}

	scores := map[string]*float64{
		"overall score":   &stats.Rating,
		"style score":     &stats.StyleScore,
		"story score":     &stats.StoryScore,
		"grammar score":   &stats.GrammarScore,
		"character score": &stats.CharacterScore,
	}
	for label, target := range scores {
		el := findByText(panel, "li", label)
		if el == nil {
			continue
		}
		star := el.Next().Find("span.star").First()
		if star.Length() == 0 {
			star = el.Find("span.star").First()
		}
		for _, attr := range []string{"data-content", "aria-label", "title"} {
			if v := parseScore(star.AttrOr(attr, "")); v > 0 {
				*target = v
				break
			}
		}
	}

	return stats
}
