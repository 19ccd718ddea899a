package extract

import (
	"bytes"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/user/ingest-pipeline/internal/domain"
)

// summaryLimit caps how much body text lands in the record summary.
const summaryLimit = 500

// dateFormats are tried in order against article date metadata.
var dateFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
}

// Article is the generic goquery-based extractor used for any source without a
// dedicated implementation. It reads the usual HTML signals: title tag,
// og/meta description, article/time metadata and cleaned body text.
type Article struct{}

func (Article) Extract(res domain.FetchResult, source string) (*domain.Record, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body))
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok && og != "" {
		title = strings.TrimSpace(og)
	}

	summary := metaContent(doc, `meta[name="description"]`)
	if summary == "" {
		summary = metaContent(doc, `meta[property="og:description"]`)
	}

	doc.Find("script, style, nav, footer").Each(func(_ int, s *goquery.Selection) {
		s.Remove()
	})
	fullText := strings.TrimSpace(doc.Find("body").Text())
	fullText = strings.Join(strings.Fields(fullText), " ")

	if summary == "" && fullText != "" {
		summary = fullText
		if len(summary) > summaryLimit {
			summary = summary[:summaryLimit]
		}
	}

	if title == "" && fullText == "" {
		// Nothing extractable on this page.
		return nil, nil
	}

	rec := &domain.Record{
		URL:        res.URL,
		SourceName: source,
		Title:      title,
		Summary:    summary,
		FullText:   fullText,
	}

	if date := publishDate(doc); date != nil {
		rec.PublishDate = date
	}
	if topics := keywords(doc); len(topics) > 0 {
		rec.Topics = topics
	}

	return rec, nil
}

func metaContent(doc *goquery.Document, selector string) string {
	content, _ := doc.Find(selector).First().Attr("content")
	return strings.TrimSpace(content)
}

func publishDate(doc *goquery.Document) *time.Time {
	raw := metaContent(doc, `meta[property="article:published_time"]`)
	if raw == "" {
		raw, _ = doc.Find("time[datetime]").First().Attr("datetime")
	}
	if raw == "" {
		return nil
	}
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}

func keywords(doc *goquery.Document) []string {
	raw := metaContent(doc, `meta[name="keywords"]`)
	if raw == "" {
		return nil
	}
	var topics []string
	for _, kw := range strings.Split(raw, ",") {
		if kw = strings.TrimSpace(kw); kw != "" {
			topics = append(topics, kw)
		}
	}
	return topics
}
