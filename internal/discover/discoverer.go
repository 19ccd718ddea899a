// Package discover expands seed URLs into a bounded set of content URLs by
// breadth-first crawling pages and filtering links through a source ruleset.
package discover

import (
	"bytes"
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/user/ingest-pipeline/internal/domain"
	"github.com/user/ingest-pipeline/internal/fetch"
)

// DefaultBatchSize is how many frontier URLs are fetched concurrently.
const DefaultBatchSize = 5

// requeueFactor bounds how many accepted URLs re-enter the frontier, relative
// to maxURLs. It keeps the expansion breadth-first instead of an open crawl.
const requeueFactor = 2

// Discoverer crawls outward from seed URLs, collecting links the ruleset
// accepts until maxURLs is reached or the frontier runs dry.
type Discoverer struct {
	client    *fetch.Client
	batchSize int
	logger    *zap.Logger
}

// New creates a discoverer fetching batchSize pages at a time.
func New(client *fetch.Client, batchSize int, logger *zap.Logger) *Discoverer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Discoverer{client: client, batchSize: batchSize, logger: logger}
}

type pageLinks struct {
	url   string
	links []string
}

// Discover returns up to maxURLs content URLs reachable from the seeds, every
// one of them accepted by the ruleset. A failed page fetch is logged and
// skipped; it never aborts discovery.
func (d *Discoverer) Discover(ctx context.Context, seeds []string, rs domain.SourceRuleset, maxURLs int) []string {
	visited := make(map[string]bool)
	inSet := make(map[string]bool)
	var discovered []string
	frontier := append([]string(nil), seeds...)
	requeueBudget := maxURLs * requeueFactor

	for len(frontier) > 0 && len(discovered) < maxURLs {
		if ctx.Err() != nil {
			break
		}

		batch := d.nextBatch(&frontier, visited)
		if len(batch) == 0 {
			break
		}

		// Fetches of one batch run concurrently; the visited and discovered
		// sets are only touched after the batch converges.
		results := make([]pageLinks, len(batch))
		var wg sync.WaitGroup
		for i, pageURL := range batch {
			wg.Add(1)
			go func(i int, pageURL string) {
				defer wg.Done()
				results[i] = pageLinks{url: pageURL, links: d.fetchLinks(ctx, pageURL, rs)}
			}(i, pageURL)
		}
		wg.Wait()

		for _, pr := range results {
			visited[pr.url] = true
			for _, link := range pr.links {
				if len(discovered) >= maxURLs {
					break
				}
				if !rs.Accepts(link) || inSet[link] {
					continue
				}
				inSet[link] = true
				discovered = append(discovered, link)
				if requeueBudget > 0 && !visited[link] {
					frontier = append(frontier, link)
					requeueBudget--
				}
			}
		}
	}

	d.logger.Info("discovery finished",
		zap.String("domain", rs.Domain),
		zap.Int("discovered", len(discovered)),
		zap.Int("visited", len(visited)),
	)
	return discovered
}

// nextBatch pops up to batchSize not-yet-visited URLs off the frontier.
func (d *Discoverer) nextBatch(frontier *[]string, visited map[string]bool) []string {
	var batch []string
	for len(*frontier) > 0 && len(batch) < d.batchSize {
		u := (*frontier)[0]
		*frontier = (*frontier)[1:]
		if visited[u] {
			continue
		}
		visited[u] = true
		batch = append(batch, u)
	}
	return batch
}

// fetchLinks retrieves one page and returns its outbound links resolved to
// absolute URLs. Errors yield an empty slice.
func (d *Discoverer) fetchLinks(ctx context.Context, pageURL string, rs domain.SourceRuleset) []string {
	res, err := d.client.Get(ctx, pageURL, rs.RenderJS)
	if err != nil {
		d.logger.Warn("discovery fetch failed, skipping page",
			zap.String("url", pageURL), zap.Error(err))
		return nil
	}
	return extractLinks(pageURL, res.Body)
}

// extractLinks pulls a[href] values out of an HTML body and resolves them
// against the page URL, dropping fragments and unparseable hrefs.
func extractLinks(pageURL string, body []byte) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || href == "" || strings.HasPrefix(href, "#") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		abs.Fragment = ""
		links = append(links, abs.String())
	})
	return links
}
