package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/responsa/internal/common"
)

func newTestScraper(t *testing.T) *Service {
	t.Helper()
	return NewService(&common.ScraperConfig{
		UserAgent:      "responsa-test",
		RequestTimeout: 5 * time.Second,
		RequestDelay:   time.Millisecond,
		MaxPages:       25,
		MaxBodySize:    1 << 20,
	}, arbor.NewLogger())
}

func TestScrapePage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>Test Page</title></head>
			<body><script>var x=1;</script><h1>Heading</h1><p>Body text here.</p></body></html>`)
	}))
	defer server.Close()

	page, err := newTestScraper(t).ScrapePage(context.Background(), server.URL)
	require.NoError(t, err)

	assert.Equal(t, "Test Page", page.Title)
	assert.Contains(t, page.Markdown, "Heading")
	assert.Contains(t, page.Markdown, "Body text here.")
	assert.NotContains(t, page.Markdown, "var x=1")
}

func TestScrapePageRejectsBadURL(t *testing.T) {
	s := newTestScraper(t)

	_, err := s.ScrapePage(context.Background(), "not a url")
	require.Error(t, err)

	_, err = s.ScrapePage(context.Background(), "ftp://example.com/file")
	require.Error(t, err)
}

func TestScrapePageNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	_, err := newTestScraper(t).ScrapePage(context.Background(), server.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestDeepScrapeFollowsSameDomainLinks(t *testing.T) {
	mux := http.NewServeMux()
	var server *httptest.Server
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><head><title>Root</title></head><body>
			<p>root content</p>
			<a href="/a">A</a>
			<a href="%s/b">B absolute</a>
			<a href="https://elsewhere.invalid/x">external</a>
		</body></html>`, server.URL)
	})
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>A</title></head><body><p>page a</p></body></html>`)
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>B</title></head><body><p>page b</p></body></html>`)
	})
	server = httptest.NewServer(mux)
	defer server.Close()

	pages, err := newTestScraper(t).DeepScrape(context.Background(), server.URL, 10)
	require.NoError(t, err)

	// Root plus the two same-domain links; the external link is ignored.
	require.Len(t, pages, 3)
	titles := make([]string, 0, len(pages))
	for _, p := range pages {
		titles = append(titles, p.Title)
	}
	assert.Contains(t, titles, "Root")
	assert.Contains(t, titles, "A")
	assert.Contains(t, titles, "B")
}

func TestDeepScrapeHonorsPageCap(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		// Every page links to a deeper one, an unbounded chain.
		fmt.Fprintf(w, `<html><head><title>Page</title></head><body>
			<p>content</p><a href="%sx/">next</a></body></html>`, r.URL.Path)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	pages, err := newTestScraper(t).DeepScrape(context.Background(), server.URL, 3)
	require.NoError(t, err)
	assert.Len(t, pages, 3)
}

func TestDeepScrapeUnreachableRoot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newTestScraper(t).DeepScrape(context.Background(), server.URL, 5)
	require.Error(t, err)
}
