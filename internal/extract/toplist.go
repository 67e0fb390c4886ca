package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/inkroad/inkroad/internal/models"
)

// Toplist parses a ranked listing page (rising stars, trending, best rated).
// Per-item failures skip just that entry.
func Toplist(html string) ([]*models.Fiction, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	fictions := []*models.Fiction{}
	firstMatch(doc.Selection, listItemSelectors...).Each(func(_ int, item *goquery.Selection) {
		titleLink := firstMatch(item, "h2.fiction-title a", "h2 a[href*='/fiction/']").First()
		href := titleLink.AttrOr("href", "")
		id := FictionIDFromURL(href)
		if id == 0 {
			return
		}

		f := &models.Fiction{
			ID:       id,
			Title:    strings.TrimSpace(titleLink.Text()),
			URL:      href,
			CoverURL: attrOf(item, "src", "figure img", "img[src]"),
		}

		if el := findByText(item, "span", "followers"); el != nil {
			f.Stats.Followers = parseCount(el.Text())
		}
		if el := findByText(item, "span", "pages"); el != nil {
			f.Stats.Pages = parseCount(el.Text())
		}
		star := item.Find("span.star").First()
		for _, attr := range []string{"data-content", "aria-label", "title"} {
			if v := parseScore(star.AttrOr(attr, "")); v > 0 {
				f.Stats.Rating = v
				break
			}
		}

		for _, tag := range item.Find("span.tags a").EachIter() {
			if len(f.Tags) >= maxTags {
				break
			}
			if t := strings.TrimSpace(tag.Text()); t != "" {
				f.Tags = append(f.Tags, t)
			}
		}

		fictions = append(fictions, f)
	})
	return fictions, nil
}
