package fetch

import (
	"net/url"
	"strings"
)

// CompliancePolicy is consulted before any network fetch. A disallowed URL is
// skipped permanently, never retried.
type CompliancePolicy interface {
	CanFetch(rawURL string) (allowed bool, reason string)
}

// assetExtensions are never content pages; fetching them wastes budget.
var assetExtensions = []string{
	".css", ".js", ".png", ".jpg", ".jpeg", ".gif", ".svg", ".ico",
	".pdf", ".zip", ".exe", ".dmg", ".mp4", ".mp3", ".woff", ".woff2",
}

// DefaultPolicy allows http(s) URLs that do not point at static assets.
type DefaultPolicy struct{}

func (DefaultPolicy) CanFetch(rawURL string) (bool, string) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false, "unparseable URL"
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false, "scheme not allowed: " + u.Scheme
	}
	if u.Host == "" {
		return false, "missing host"
	}
	lower := strings.ToLower(u.Path)
	for _, ext := range assetExtensions {
		if strings.HasSuffix(lower, ext) {
			return false, "static asset: " + ext
		}
	}
	return true, ""
}
