package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/inkroad/inkroad/internal/models"
)

var listItemSelectors = []string{
	"div.fiction-list-item",
	"div.fiction-list div.row",
	"div.portlet-body div.row.fiction",
}

// Follows parses the user's follows page. Items that cannot be parsed are
// skipped; a fully unparseable page yields an empty slice, not an error.
func Follows(html string) ([]*models.FollowedFiction, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	follows := []*models.FollowedFiction{}
	firstMatch(doc.Selection, listItemSelectors...).Each(func(_ int, item *goquery.Selection) {
		f := followedFromItem(item)
		if f == nil {
			return // skip just this item, keep the rest of the list
		}
		follows = append(follows, f)
	})
	return follows, nil
}

func followedFromItem(item *goquery.Selection) *models.FollowedFiction {
	titleLink := firstMatch(item, "h2.fiction-title a", "h2 a[href*='/fiction/']", "a.font-red-sunglo").First()
	href := titleLink.AttrOr("href", "")
	id := FictionIDFromURL(href)
	if id == 0 {
		return nil
	}

	f := &models.FollowedFiction{}
	f.ID = id
	f.URL = href
	f.Title = strings.TrimSpace(titleLink.Text())
	f.CoverURL = attrOf(item, "src", "figure img", "img[src]")

	// The latest and last-read chapters are labelled list rows; the labels
	// are the only stable handle on them.
	if el := findByText(item, "li", "latest"); el != nil {
		f.LatestRef = chapterRef(el)
	}
	if el := findByText(item, "li", "last read"); el != nil {
		f.LastReadRef = chapterRef(el)
	}

	// The unread badge disappears once the user is caught up.
	if item.Find("span.label-new, span.badge-new, .new-chapter-indicator").Length() > 0 {
		f.Unread = true
	} else if f.LatestRef != nil && f.LastReadRef != nil && f.LatestRef.ID != f.LastReadRef.ID {
		f.Unread = true
	}

	// Continue pointer: either a direct chapter link or an indirection URL
	// the service resolves without touching remote read state.
	cont := firstMatch(item, "a[href*='/follows/read/']", "a.btn[href*='/chapter/']").First()
	f.ContinueURL = cont.AttrOr("href", "")

	return f
}

func chapterRef(el *goquery.Selection) *models.Chapter {
	link := el.Find("a[href*='/chapter/']").First()
	href := link.AttrOr("href", "")
	id := ChapterIDFromURL(href)
	if id == 0 {
		return nil
	}
	return &models.Chapter{
		ID:    id,
		Title: strings.TrimSpace(link.Text()),
		URL:   href,
	}
}
