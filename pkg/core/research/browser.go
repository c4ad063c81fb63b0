package research

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

const (
	defaultSearchURL   = "https://html.duckduckgo.com/html/?q="
	defaultPageChars   = 4000
	defaultMaxPages    = 3
	defaultPageTimeout = 30 * time.Second
)

// FetchFunc returns the rendered HTML of a page.
type FetchFunc func(ctx context.Context, pageURL string) (string, error)

// BrowserSearch renders pages in headless Chrome and scrapes their text.
// With sources it visits each source; otherwise it opens a search results
// page and visits the first few results.
type BrowserSearch struct {
	SearchURL   string
	MaxPages    int
	PageChars   int
	PageTimeout time.Duration

	// Fetch replaces the browser, mostly for tests.
	Fetch FetchFunc
}

var _ SearchProvider = (*BrowserSearch)(nil)

func NewBrowserSearch() *BrowserSearch {
	return &BrowserSearch{}
}

func (b *BrowserSearch) Query(ctx context.Context, text string, sources []string) (SearchResult, error) {
	fetch := b.Fetch
	if fetch == nil {
		var cancel context.CancelFunc
		ctx, cancel = b.browserContext(ctx)
		defer cancel()
		fetch = b.chromeFetch
	}

	maxPages := b.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}

	targets := make([]string, 0, len(sources))
	for _, s := range sources {
		targets = append(targets, sourceURL(s, text))
	}
	if len(targets) == 0 {
		base := b.SearchURL
		if base == "" {
			base = defaultSearchURL
		}
		page, err := fetch(ctx, base+url.QueryEscape(text))
		if err != nil {
			return SearchResult{}, fmt.Errorf("failed to load search results: %w", err)
		}
		targets = resultLinks(page, maxPages)
	}
	if len(targets) > maxPages {
		targets = targets[:maxPages]
	}

	chars := b.PageChars
	if chars <= 0 {
		chars = defaultPageChars
	}

	var parts, visited []string
	var lastErr error
	for _, target := range targets {
		if err := ctx.Err(); err != nil {
			return SearchResult{}, err
		}
		page, err := fetch(ctx, target)
		if err != nil {
			lastErr = err
			continue
		}
		body, err := pageText(page, chars)
		if err != nil || strings.TrimSpace(body) == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("Source: %s\n%s", target, body))
		visited = append(visited, target)
	}
	if len(parts) == 0 && lastErr != nil {
		return SearchResult{}, fmt.Errorf("failed to fetch any page: %w", lastErr)
	}
	return SearchResult{Text: strings.Join(parts, "\n\n"), Sources: visited}, nil
}

func (b *BrowserSearch) browserContext(parent context.Context) (context.Context, context.CancelFunc) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.WindowSize(1280, 900),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	return browserCtx, func() {
		browserCancel()
		allocCancel()
	}
}

func (b *BrowserSearch) chromeFetch(ctx context.Context, pageURL string) (string, error) {
	timeout := b.PageTimeout
	if timeout <= 0 {
		timeout = defaultPageTimeout
	}
	tabCtx, cancel := chromedp.NewContext(ctx)
	defer cancel()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, timeout)
	defer cancelTimeout()

	var html string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("browser fetch %s: %w", pageURL, err)
	}
	return html, nil
}

// sourceURL turns a bare domain into a site search on the default engine;
// full URLs are visited as is.
func sourceURL(source, query string) string {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return source
	}
	return defaultSearchURL + url.QueryEscape("site:"+source+" "+query)
}
