package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/abadojack/whatlanggo"
	readability "github.com/go-shiori/go-readability"
)

// maxBodyBytes caps how much HTML is read from a page.
const maxBodyBytes = 10 << 20

// Article is the readable content extracted from one page.
type Article struct {
	Title    string
	Author   string
	Text     string
	URL      string
	Language string
}

// Scraper fetches a page and extracts the readable article from it.
type Scraper struct {
	client *http.Client
}

func NewScraper(timeout time.Duration) *Scraper {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Scraper{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// Scrape downloads rawURL and returns its title, author and body text.
func (s *Scraper) Scrape(ctx context.Context, rawURL string) (*Article, error) {
	pageURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	setBrowserHeaders(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch url: HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	html := string(body)

	doc, docErr := goquery.NewDocumentFromReader(strings.NewReader(html))

	text, title, byline := extractReadable(html, pageURL)
	if title == "" && docErr == nil {
		title = extractTitle(doc)
	}
	if title == "" {
		title = "Untitled Article"
	}

	author := byline
	if author == "" && docErr == nil {
		author = extractAuthor(doc)
	}

	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("could not extract meaningful content from %s", rawURL)
	}

	return &Article{
		Title:    title,
		Author:   author,
		Text:     text,
		URL:      rawURL,
		Language: detectLanguage(text),
	}, nil
}

func extractReadable(html string, pageURL *url.URL) (text, title, byline string) {
	article, err := readability.FromReader(strings.NewReader(html), pageURL)
	if err != nil {
		return "", "", ""
	}
	return strings.TrimSpace(article.TextContent),
		strings.TrimSpace(article.Title),
		strings.TrimSpace(article.Byline)
}

// extractTitle walks the same fallback chain the readable parser would skip
// on thin pages: h1, open-graph, twitter card, then the document title.
func extractTitle(doc *goquery.Document) string {
	if title := strings.TrimSpace(doc.Find("h1").First().Text()); title != "" {
		return title
	}
	for _, sel := range []string{"meta[property='og:title']", "meta[name='twitter:title']"} {
		if title, ok := doc.Find(sel).Attr("content"); ok && strings.TrimSpace(title) != "" {
			return strings.TrimSpace(title)
		}
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

func extractAuthor(doc *goquery.Document) string {
	for _, sel := range []string{"meta[name='author']", "meta[property='article:author']"} {
		if author, ok := doc.Find(sel).Attr("content"); ok && strings.TrimSpace(author) != "" {
			return strings.TrimSpace(author)
		}
	}
	if author := strings.TrimSpace(doc.Find("span.author").First().Text()); author != "" {
		return author
	}
	return strings.TrimSpace(doc.Find("a[rel='author']").First().Text())
}

func detectLanguage(text string) string {
	sample := text
	if len(sample) > 2000 {
		sample = sample[:2000]
	}
	info := whatlanggo.Detect(sample)
	if !info.IsReliable() {
		return ""
	}
	return whatlanggo.LangToStringShort(info.Lang)
}

func setBrowserHeaders(req *http.Request) {
	// Browser-like headers; some sites reject Go's default User-Agent.
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
}
