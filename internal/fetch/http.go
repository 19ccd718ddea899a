package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/user/ingest-pipeline/internal/domain"
)

const defaultUserAgent = "IngestPipeline/1.0"

// maxBodyBytes caps how much of a response we read; content pages that matter
// are far smaller.
const maxBodyBytes = 10 << 20

// Fetcher retrieves one URL and reports the outcome as a FetchResult.
type Fetcher interface {
	Fetch(ctx context.Context, url string) domain.FetchResult
}

// HTTP fetches pages with a plain HTTP client and a per-request timeout.
type HTTP struct {
	client    *http.Client
	userAgent string
}

// NewHTTP creates an HTTP fetcher. The timeout bounds every request so no
// worker hangs on a stalled connection.
func NewHTTP(timeout time.Duration) *HTTP {
	return &HTTP{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent: defaultUserAgent,
	}
}

func (h *HTTP) Fetch(ctx context.Context, rawURL string) domain.FetchResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return domain.FetchResult{URL: rawURL, Err: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("User-Agent", h.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := h.client.Do(req)
	if err != nil {
		return domain.FetchResult{URL: rawURL, Err: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return domain.FetchResult{URL: rawURL, StatusCode: resp.StatusCode, Err: fmt.Sprintf("read body: %v", err)}
	}

	res := domain.FetchResult{
		URL:        rawURL,
		StatusCode: resp.StatusCode,
		Body:       body,
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		res.Succeeded = true
	} else {
		res.Err = fmt.Sprintf("status %d", resp.StatusCode)
	}
	return res
}
