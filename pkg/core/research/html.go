package research

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// removeNoise strips elements that carry no readable text.
func removeNoise(doc *goquery.Document) {
	doc.Find("script, style, noscript, svg, iframe, nav, header, footer, form").Remove()
	doc.Find("[hidden], [aria-hidden='true'], [style*='display:none'], [style*='display: none']").Remove()
	doc.Find("img").Remove()
}

// pageText returns the readable text of an HTML page, cut to maxChars.
// Headings and paragraphs are kept on separate lines.
func pageText(html string, maxChars int) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	removeNoise(doc)

	root := doc.Find("main, article, #content, .content").First()
	if root.Length() == 0 {
		root = doc.Find("body")
	}

	var lines []string
	root.Find("h1, h2, h3, h4, p, li, blockquote, pre").Each(func(_ int, sel *goquery.Selection) {
		// Nested matches would repeat text.
		if sel.ParentsFiltered("p, li, blockquote").Length() > 0 {
			return
		}
		if t := strings.TrimSpace(whitespaceRe.ReplaceAllString(sel.Text(), " ")); t != "" {
			lines = append(lines, t)
		}
	})
	if len(lines) == 0 {
		if t := strings.TrimSpace(whitespaceRe.ReplaceAllString(root.Text(), " ")); t != "" {
			lines = append(lines, t)
		}
	}

	text := strings.Join(lines, "\n")
	if maxChars > 0 && len([]rune(text)) > maxChars {
		text = string([]rune(text)[:maxChars])
	}
	return text, nil
}

// resultLinks pulls outbound result URLs from a search engine results page,
// resolving redirect wrappers of the form /l/?uddg=<target>.
func resultLinks(html string, limit int) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	seen := map[string]bool{}
	var links []string
	doc.Find("a.result__a, a.result-link, h2 a, h3 a").Each(func(_ int, sel *goquery.Selection) {
		if limit > 0 && len(links) >= limit {
			return
		}
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		if u, err := url.Parse(href); err == nil {
			if target := u.Query().Get("uddg"); target != "" {
				href = target
			}
		}
		if !strings.HasPrefix(href, "http") || seen[href] {
			return
		}
		seen[href] = true
		links = append(links, href)
	})
	return links
}
