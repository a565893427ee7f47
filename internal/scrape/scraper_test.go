package scrape

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const articleHTML = `<!DOCTYPE html>
<html>
<head>
  <title>Why Goroutines Scale - Example Blog</title>
  <meta name="author" content="Pat Writer">
</head>
<body>
  <article>
    <h1>Why Goroutines Scale</h1>
    <p>Goroutines are cheap because the runtime multiplexes many of them onto
    a small number of operating system threads. Each goroutine starts with a
    tiny stack that grows and shrinks on demand, so spawning tens of thousands
    of them is entirely routine in production services.</p>
    <p>The scheduler parks goroutines that block on channels or system calls
    and hands the thread to another runnable goroutine. This cooperative
    multiplexing is what lets a single server juggle enormous numbers of
    simultaneous connections without the per-thread memory cost that sank
    earlier concurrency models.</p>
    <p>None of this removes the need for care. Shared state still needs
    synchronization, and unbounded goroutine creation is still a resource
    leak. The primitives are cheap, not free, and the usual engineering
    judgment about backpressure and lifecycle management still applies in
    every long-running program.</p>
  </article>
</body>
</html>`

func TestScrape_ExtractsArticle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("User-Agent"), "Mozilla")
		fmt.Fprint(w, articleHTML)
	}))
	defer srv.Close()

	s := NewScraper(0)
	article, err := s.Scrape(context.Background(), srv.URL+"/post")
	require.NoError(t, err)

	assert.Contains(t, article.Title, "Why Goroutines Scale")
	assert.Contains(t, article.Text, "multiplexes many of them")
	assert.Contains(t, article.Text, "backpressure")
	assert.Equal(t, srv.URL+"/post", article.URL)
	assert.Equal(t, "en", article.Language)
}

func TestScrape_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	s := NewScraper(0)
	_, err := s.Scrape(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestScrape_EmptyPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "<html><body></body></html>")
	}))
	defer srv.Close()

	s := NewScraper(0)
	_, err := s.Scrape(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not extract")
}

func TestScrape_UnreachableHost(t *testing.T) {
	s := NewScraper(0)
	_, err := s.Scrape(context.Background(), "http://127.0.0.1:1/article")
	require.Error(t, err)
}

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestExtractTitle_FallbackChain(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			"h1 wins",
			`<html><head><title>Doc Title</title><meta property="og:title" content="OG Title"></head><body><h1>Heading Title</h1></body></html>`,
			"Heading Title",
		},
		{
			"og:title when no h1",
			`<html><head><title>Doc Title</title><meta property="og:title" content="OG Title"></head><body></body></html>`,
			"OG Title",
		},
		{
			"twitter card when no og",
			`<html><head><title>Doc Title</title><meta name="twitter:title" content="Tweet Title"></head><body></body></html>`,
			"Tweet Title",
		},
		{
			"document title last",
			`<html><head><title>Doc Title</title></head><body></body></html>`,
			"Doc Title",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractTitle(mustDoc(t, tt.html)))
		})
	}
}

func TestExtractAuthor_FallbackChain(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			"meta author wins",
			`<html><head><meta name="author" content="Meta Author"></head><body><span class="author">Span Author</span></body></html>`,
			"Meta Author",
		},
		{
			"article:author when no meta author",
			`<html><head><meta property="article:author" content="OG Author"></head><body></body></html>`,
			"OG Author",
		},
		{
			"span fallback",
			`<html><body><span class="author">Span Author</span></body></html>`,
			"Span Author",
		},
		{
			"rel author link last",
			`<html><body><a rel="author" href="/p">Link Author</a></body></html>`,
			"Link Author",
		},
		{
			"nothing found",
			`<html><body><p>no byline</p></body></html>`,
			"",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractAuthor(mustDoc(t, tt.html)))
		})
	}
}

func TestDetectLanguage(t *testing.T) {
	english := strings.Repeat("The quick brown fox jumps over the lazy dog and keeps running through the field. ", 5)
	assert.Equal(t, "en", detectLanguage(english))
}
