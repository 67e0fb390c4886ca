package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"github.com/inkroad/inkroad/internal/models"
)

var (
	contentSelectors = []string{
		"div.chapter-inner.chapter-content",
		"div.chapter-content",
		"div.portlet-body div.chapter-inner",
	}
	chapterTitleSelectors = []string{"div.fic-header h1", "h1.font-white", "h1"}

	// One CSS rule per class: `.name { body }`.
	styleRuleRe = regexp.MustCompile(`\.([A-Za-z_][\w-]*)\s*\{([^}]*)\}`)

	// Property values that make an element invisible. The site hides its
	// decoy anti-piracy text this way.
	hiddenPropRe = regexp.MustCompile(`(?i)display\s*:\s*none|visibility\s*:\s*hidden|speak\s*:\s*never|font-size\s*:\s*0`)

	// Elements that are never chapter text.
	strippedElements = "script, style, noscript, iframe, ins, .ads, .advertisement, .google-auto-placed, .author-note-portlet, .author-note"
)

// chapterPolicy keeps markup to what an e-ink reader needs. Inline styles
// collapse to exactly three safe properties; everything else is dropped to
// defend against style-based layout and tracking injection.
var chapterPolicy = func() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").Globally()
	p.AllowAttrs("style").Globally()
	p.AllowStyles("text-align", "font-weight", "font-style").Globally()
	return p
}()

// ChapterContent parses a chapter page into its sanitized body plus
// navigation metadata.
func ChapterContent(html string) (*models.ChapterContent, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	root := doc.Selection

	content := &models.ChapterContent{
		Title: textOf(root, chapterTitleSelectors...),
	}

	// Breadcrumb back to the owning fiction.
	root.Find("a[href*='/fiction/']").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href := s.AttrOr("href", "")
		if id := FictionIDFromURL(href); id != 0 && !strings.Contains(href, "/chapter/") {
			content.FictionID = id
			content.FictionTitle = strings.TrimSpace(s.Text())
			return false
		}
		return true
	})

	if canonical := attrOf(root, "href", "link[rel='canonical']"); canonical != "" {
		content.ChapterID = ChapterIDFromURL(canonical)
		if content.FictionID == 0 {
			content.FictionID = FictionIDFromURL(canonical)
		}
	}

	content.PrevURL, content.NextURL = chapterNav(root)

	body := firstMatch(root, contentSelectors...).First()
	if body.Length() == 0 {
		// Totally unparseable page: soft failure, empty body.
		return content, nil
	}

	hidden := hiddenClassesFromStyles(doc)
	content.HTML = SanitizeChapterBody(body, hidden)
	return content, nil
}

// chapterNav finds the previous/next chapter links by their visible labels;
// the buttons carry no stable classes.
func chapterNav(root *goquery.Selection) (prev, next string) {
	root.Find("a[href*='/chapter/']").Each(func(_ int, s *goquery.Selection) {
		label := strings.ToLower(strings.TrimSpace(s.Text()))
		href := s.AttrOr("href", "")
		if href == "" {
			return
		}
		switch {
		case prev == "" && strings.Contains(label, "previous"):
			prev = href
		case next == "" && strings.Contains(label, "next"):
			next = href
		}
	})
	return prev, next
}

// hiddenClassesFromStyles collects class names that any <style> block on the
// page renders invisible. Those classes mark decoy text inserted to defeat
// scraping, not real content.
func hiddenClassesFromStyles(doc *goquery.Document) map[string]bool {
	hidden := make(map[string]bool)
	doc.Find("style").Each(func(_ int, s *goquery.Selection) {
		for _, rule := range styleRuleRe.FindAllStringSubmatch(s.Text(), -1) {
			class, body := rule[1], rule[2]
			if hiddenPropRe.MatchString(body) {
				hidden[class] = true
			}
		}
	})
	return hidden
}

// SanitizeChapterBody cleans a chapter body in place and returns safe HTML:
// decoy elements bearing CSS-hidden classes are removed, non-content elements
// are stripped, machine-generated class names are dropped, and inline styles
// are reduced to the three-property allow-list. Best effort against an
// adversarial format; it can both under- and over-strip when the site changes
// its decoy technique.
func SanitizeChapterBody(body *goquery.Selection, hiddenClasses map[string]bool) string {
	body.Find(strippedElements).Remove()

	if len(hiddenClasses) > 0 {
		body.Find("[class]").Each(func(_ int, s *goquery.Selection) {
			for _, class := range strings.Fields(s.AttrOr("class", "")) {
				if hiddenClasses[class] {
					s.Remove()
					return
				}
			}
		})
	}

	// Scrub generated class tokens, keep human ones.
	body.Find("[class]").Each(func(_ int, s *goquery.Selection) {
		var kept []string
		for _, class := range strings.Fields(s.AttrOr("class", "")) {
			if !looksGeneratedClass(class) {
				kept = append(kept, class)
			}
		}
		if len(kept) == 0 {
			s.RemoveAttr("class")
		} else {
			s.SetAttr("class", strings.Join(kept, " "))
		}
	})

	raw, err := goquery.OuterHtml(body)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(chapterPolicy.Sanitize(raw))
}

// looksGeneratedClass reports whether a class name looks like an opaque
// machine-generated token rather than a meaningful short name. Hyphenated
// names ("chapter-content") are always kept; single long alphanumeric blobs
// with digits or mixed case are not.
func looksGeneratedClass(class string) bool {
	if len(class) < 10 || strings.ContainsAny(class, "-_") {
		return false
	}
	hasDigit := strings.ContainsAny(class, "0123456789")
	hasLower := strings.ToUpper(class) != class
	hasUpper := strings.ToLower(class) != class
	return hasDigit || (hasLower && hasUpper)
}
