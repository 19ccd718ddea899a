package fetch

import (
	"context"
	"net/http"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/user/ingest-pipeline/internal/domain"
)

// Rendered fetches pages through a headless browser for sources that only
// populate their content with JavaScript. It holds one long-lived browser
// allocator; each fetch gets its own tab context under the per-page timeout.
type Rendered struct {
	timeout  time.Duration
	allocCtx context.Context
	cancel   context.CancelFunc
}

// NewRendered creates a chromedp-backed fetcher with the given per-page
// timeout. Callers must Close it to release the browser processes.
func NewRendered(timeout time.Duration) *Rendered {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", ""),
		chromedp.Flag("disable-dev-shm-usage", ""),
	)
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return &Rendered{timeout: timeout, allocCtx: allocCtx, cancel: cancel}
}

// Close shuts the allocator down, ending any browser processes it spawned.
func (r *Rendered) Close() {
	r.cancel()
}

func (r *Rendered) Fetch(ctx context.Context, rawURL string) domain.FetchResult {
	taskCtx, cancel := chromedp.NewContext(r.allocCtx)
	defer cancel()
	taskCtx, timeoutCancel := context.WithTimeout(taskCtx, r.timeout)
	defer timeoutCancel()

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			timeoutCancel()
		case <-done:
		}
	}()
	defer close(done)

	var html string
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(rawURL),
		chromedp.WaitVisible("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return domain.FetchResult{URL: rawURL, Err: err.Error()}
	}

	return domain.FetchResult{
		URL:        rawURL,
		Succeeded:  true,
		StatusCode: http.StatusOK,
		Body:       []byte(html),
	}
}
