package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/responsa/internal/common"
	"github.com/ternarybob/responsa/internal/interfaces"
)

// Service fetches pages over plain HTTP (or headless Chrome for
// JavaScript-heavy sites) and converts them to markdown for ingestion.
// A shared rate limiter spaces requests so deep scrapes stay polite.
type Service struct {
	config  *common.ScraperConfig
	client  *http.Client
	limiter *rate.Limiter
	browser *browserFetcher
	logger  arbor.ILogger
}

// Compile-time interface assertion
var _ interfaces.ScraperService = (*Service)(nil)

// NewService creates a scraper service. When config.UseBrowser is set,
// pages are rendered with headless Chrome instead of a plain GET.
func NewService(config *common.ScraperConfig, logger arbor.ILogger) *Service {
	delay := config.RequestDelay
	if delay <= 0 {
		delay = time.Second
	}

	svc := &Service{
		config: config,
		client: &http.Client{
			Timeout: config.RequestTimeout,
		},
		limiter: rate.NewLimiter(rate.Every(delay), 1),
		logger:  logger,
	}
	if config.UseBrowser {
		svc.browser = newBrowserFetcher(config, logger)
	}
	return svc
}

// ScrapePage fetches a single URL and converts its content to markdown.
func (s *Service) ScrapePage(ctx context.Context, pageURL string) (*interfaces.ScrapedPage, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid URL: %s", pageURL)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme: %s", parsed.Scheme)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	html, err := s.fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	page, _, err := s.process(html, parsed)
	return page, err
}

// DeepScrape crawls same-domain links breadth-first starting at rootURL.
// Pages that fail to fetch are skipped; the crawl fails only when the root
// itself is unreachable.
func (s *Service) DeepScrape(ctx context.Context, rootURL string, maxPages int) ([]*interfaces.ScrapedPage, error) {
	if maxPages <= 0 {
		maxPages = s.config.MaxPages
	}

	root, err := url.Parse(rootURL)
	if err != nil || root.Host == "" {
		return nil, fmt.Errorf("invalid URL: %s", rootURL)
	}

	startTime := time.Now()
	visited := map[string]bool{}
	queue := []string{root.String()}
	pages := make([]*interfaces.ScrapedPage, 0, maxPages)

	for len(queue) > 0 && len(pages) < maxPages {
		if err := ctx.Err(); err != nil {
			return pages, err
		}

		current := queue[0]
		queue = queue[1:]
		if visited[current] {
			continue
		}
		visited[current] = true

		if err := s.limiter.Wait(ctx); err != nil {
			return pages, err
		}

		html, err := s.fetch(ctx, current)
		if err != nil {
			if len(pages) == 0 && current == root.String() {
				return nil, fmt.Errorf("failed to fetch root page: %w", err)
			}
			s.logger.Warn().Err(err).Str("url", current).Msg("Skipping unreachable page")
			continue
		}

		currentURL, _ := url.Parse(current)
		page, links, err := s.process(html, currentURL)
		if err != nil {
			s.logger.Warn().Err(err).Str("url", current).Msg("Skipping unparseable page")
			continue
		}
		pages = append(pages, page)

		for _, link := range links {
			if !visited[link] {
				queue = append(queue, link)
			}
		}
	}

	s.logger.Info().
		Str("root", rootURL).
		Int("pages", len(pages)).
		Dur("duration", time.Since(startTime)).
		Msg("Deep scrape completed")

	return pages, nil
}

// fetch retrieves raw HTML, via headless Chrome when configured.
func (s *Service) fetch(ctx context.Context, pageURL string) (string, error) {
	if s.browser != nil {
		return s.browser.fetch(ctx, pageURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	if s.config.UserAgent != "" {
		req.Header.Set("User-Agent", s.config.UserAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d for %s", resp.StatusCode, pageURL)
	}

	body := io.Reader(resp.Body)
	if s.config.MaxBodySize > 0 {
		body = io.LimitReader(resp.Body, s.config.MaxBodySize)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("failed to read body of %s: %w", pageURL, err)
	}
	return string(data), nil
}

// process extracts the title, converts the body to markdown, and collects
// same-domain links for the crawl frontier.
func (s *Service) process(html string, pageURL *url.URL) (*interfaces.ScrapedPage, []string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	links := extractSameDomainLinks(doc, pageURL)

	// Navigation chrome carries no document content.
	doc.Find("script, style, nav, footer, aside").Remove()

	title := extractTitle(doc)
	bodyHTML, err := doc.Find("body").Html()
	if err != nil || strings.TrimSpace(bodyHTML) == "" {
		bodyHTML = html
	}

	converter := md.NewConverter(pageURL.Host, true, nil)
	markdown, err := converter.ConvertString(bodyHTML)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to convert HTML to markdown: %w", err)
	}

	return &interfaces.ScrapedPage{
		URL:      pageURL.String(),
		Title:    title,
		Markdown: strings.TrimSpace(markdown),
	}, links, nil
}

// extractTitle extracts the page title from various sources
func extractTitle(doc *goquery.Document) string {
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	if ogTitle, exists := doc.Find("meta[property='og:title']").Attr("content"); exists && strings.TrimSpace(ogTitle) != "" {
		return strings.TrimSpace(ogTitle)
	}
	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
		return h1
	}
	return "Untitled"
}

// extractSameDomainLinks resolves every anchor against the page URL and
// keeps only links on the same host, stripped of fragments.
func extractSameDomainLinks(doc *goquery.Document, pageURL *url.URL) []string {
	seen := map[string]bool{}
	var links []string

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		resolved, err := pageURL.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}
		if resolved.Host != pageURL.Host {
			return
		}
		resolved.Fragment = ""
		link := resolved.String()
		if !seen[link] {
			seen[link] = true
			links = append(links, link)
		}
	})

	return links
}
