package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/responsa/internal/common"
)

// browserFetcher renders pages with headless Chrome for sites that build
// their content with JavaScript. Each fetch runs in a fresh browser
// context; the scraper's page volumes do not justify a warm pool.
type browserFetcher struct {
	config *common.ScraperConfig
	logger arbor.ILogger
}

func newBrowserFetcher(config *common.ScraperConfig, logger arbor.ILogger) *browserFetcher {
	return &browserFetcher{
		config: config,
		logger: logger,
	}
}

func (b *browserFetcher) fetch(ctx context.Context, pageURL string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if b.config.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(b.config.UserAgent))
	}

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocatorCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	defer browserCancel()

	if b.config.RequestTimeout > 0 {
		var timeoutCancel context.CancelFunc
		browserCtx, timeoutCancel = context.WithTimeout(browserCtx, b.config.RequestTimeout)
		defer timeoutCancel()
	}

	startTime := time.Now()
	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(pageURL),
		chromedp.Sleep(2*time.Second),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", fmt.Errorf("browser fetch of %s failed: %w", pageURL, err)
	}

	b.logger.Debug().
		Str("url", pageURL).
		Int("html_bytes", len(html)).
		Dur("duration", time.Since(startTime)).
		Msg("Browser fetch completed")

	return html, nil
}
