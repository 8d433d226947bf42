package interfaces

import "context"

// ScrapedPage is the extracted text content of one fetched URL.
type ScrapedPage struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	Markdown string `json:"markdown"`
}

// ScraperService fetches web pages and extracts their text for ingestion.
type ScraperService interface {
	// ScrapePage fetches a single URL and converts its content to markdown.
	ScrapePage(ctx context.Context, pageURL string) (*ScrapedPage, error)

	// DeepScrape crawls same-domain links breadth-first starting at rootURL,
	// up to maxPages pages (<= 0 uses the configured cap).
	DeepScrape(ctx context.Context, rootURL string, maxPages int) ([]*ScrapedPage, error)
}
