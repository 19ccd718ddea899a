package extract

import (
	"strings"
	"sync"

	"github.com/user/ingest-pipeline/internal/domain"
)

// Validation is the outcome of validating one record.
type Validation struct {
	IsValid     bool
	IsDuplicate bool
	Errors      []string
}

// Validator accepts or rejects extracted records before storage.
type Validator interface {
	Validate(rec *domain.Record) Validation
}

const minTitleLength = 8

// listingPathMarkers flag URLs that are category or listing pages rather than
// content pages.
var listingPathMarkers = []string{
	"/category/", "/tag/", "/author/", "/archive/", "/feed/", "/rss/",
	"/search/", "?page=", "/page/",
}

// genericTitles are titles that belong to listing pages, not articles.
var genericTitles = []string{
	"latest headlines", "latest news", "news archive", "headlines",
	"news", "articles", "all articles", "category", "archive",
}

// RecordValidator is the default validator: it rejects listing pages, empty or
// generic titles and contentless records, and tracks URLs it has already
// accepted to flag duplicates within a run.
type RecordValidator struct {
	mu   sync.Mutex
	seen map[string]bool
}

func NewRecordValidator() *RecordValidator {
	return &RecordValidator{seen: make(map[string]bool)}
}

// Reset clears the duplicate-tracking state. The seen-set is scoped to one
// pipeline run; the orchestrator resets it before each run so a re-triggered
// run can refresh previously stored records.
func (v *RecordValidator) Reset() {
	v.mu.Lock()
	v.seen = make(map[string]bool)
	v.mu.Unlock()
}

func (v *RecordValidator) Validate(rec *domain.Record) Validation {
	if rec == nil {
		return Validation{Errors: []string{"record is nil"}}
	}

	var errs []string

	lowerURL := strings.ToLower(rec.URL)
	for _, marker := range listingPathMarkers {
		if strings.Contains(lowerURL, marker) {
			errs = append(errs, "listing page URL: "+marker)
			break
		}
	}

	title := strings.TrimSpace(rec.Title)
	switch {
	case title == "":
		errs = append(errs, "empty title")
	case len(title) < minTitleLength:
		errs = append(errs, "title too short")
	default:
		lower := strings.ToLower(title)
		for _, generic := range genericTitles {
			if lower == generic {
				errs = append(errs, "generic listing title")
				break
			}
		}
	}

	if strings.TrimSpace(rec.Summary) == "" && strings.TrimSpace(rec.FullText) == "" {
		errs = append(errs, "no content")
	}

	if len(errs) > 0 {
		return Validation{Errors: errs}
	}

	v.mu.Lock()
	dup := v.seen[rec.URL]
	v.seen[rec.URL] = true
	v.mu.Unlock()
	if dup {
		return Validation{IsValid: true, IsDuplicate: true}
	}

	return Validation{IsValid: true}
}
