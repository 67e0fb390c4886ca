package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/inkroad/inkroad/internal/models"
)

// History parses the reading-history page. History is volatile and
// session-sensitive; the service never caches it.
func History(html string) ([]*models.HistoryEntry, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	entries := []*models.HistoryEntry{}
	firstMatch(doc.Selection, listItemSelectors...).Each(func(_ int, item *goquery.Selection) {
		fictionLink := firstMatch(item, "h2.fiction-title a", "h2 a[href*='/fiction/']").First()
		fictionID := FictionIDFromURL(fictionLink.AttrOr("href", ""))
		if fictionID == 0 {
			return
		}

		chapterLink := item.Find("a[href*='/chapter/']").First()
		entry := &models.HistoryEntry{
			FictionID:    fictionID,
			FictionTitle: strings.TrimSpace(fictionLink.Text()),
			ChapterID:    ChapterIDFromURL(chapterLink.AttrOr("href", "")),
			ChapterTitle: strings.TrimSpace(chapterLink.Text()),
		}

		// The visit time is rendered as human-readable text ("2 days ago");
		// it is passed through untouched.
		if t := item.Find("time").First(); t.Length() > 0 {
			entry.VisitedAt = strings.TrimSpace(t.Text())
		} else {
			entry.VisitedAt = textOf(item, "span.text-muted", "small")
		}

		entries = append(entries, entry)
	})
	return entries, nil
}
