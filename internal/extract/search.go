package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/inkroad/inkroad/internal/models"
)

// Search parses a search-results page. Individual unparseable hits are
// skipped so one broken item never empties the page.
func Search(html string) ([]*models.SearchResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	results := []*models.SearchResult{}
	firstMatch(doc.Selection, listItemSelectors...).Each(func(_ int, item *goquery.Selection) {
		titleLink := firstMatch(item, "h2.fiction-title a", "h2 a[href*='/fiction/']").First()
		id := FictionIDFromURL(titleLink.AttrOr("href", ""))
		if id == 0 {
			return
		}

		r := &models.SearchResult{
			FictionID: id,
			Title:     strings.TrimSpace(titleLink.Text()),
			CoverURL:  attrOf(item, "src", "figure img", "img[src]"),
		}

		if el := findByText(item, "span", "pages"); el != nil {
			r.Pages = parseCount(el.Text())
		}
		star := item.Find("span.star").First()
		for _, attr := range []string{"data-content", "aria-label", "title"} {
			if v := parseScore(star.AttrOr(attr, "")); v > 0 {
				r.Rating = v
				break
			}
		}
		if author := textOf(item, "span.author", "a[href^='/profile/']"); author != "" {
			r.Author = strings.TrimPrefix(author, "by ")
		}

		results = append(results, r)
	})
	return results, nil
}
