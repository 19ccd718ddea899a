package domain

import (
	"net/url"
	"regexp"
	"strings"
)

// SourceRuleset decides whether a discovered link is a content page worth
// extracting or a navigation/listing page to crawl through. The path-segment
// minimum is a heuristic: content pages tend to sit deeper than index pages.
// Tuning it is a configuration concern, not a correctness one.
type SourceRuleset struct {
	Domain            string   `mapstructure:"domain" yaml:"domain"`
	IncludeSubstrings []string `mapstructure:"include_substrings" yaml:"include_substrings"`
	ExcludeSubstrings []string `mapstructure:"exclude_substrings" yaml:"exclude_substrings"`
	MinPathSegments   int      `mapstructure:"min_path_segments" yaml:"min_path_segments"`
	Pattern           string   `mapstructure:"pattern" yaml:"pattern"`
	RenderJS          bool     `mapstructure:"render_js" yaml:"render_js"`

	compiled *regexp.Regexp
}

// CompilePattern compiles the optional regex once, at config-load time.
func (r *SourceRuleset) CompilePattern() error {
	if r.Pattern == "" {
		return nil
	}
	re, err := regexp.Compile(r.Pattern)
	if err != nil {
		return err
	}
	r.compiled = re
	return nil
}

// Accepts reports whether the link qualifies as a content URL: the host must
// belong to the ruleset's domain, no exclude substring may appear, at least one
// include substring must appear (when any are configured), the optional regex
// must match, and the path must be at least MinPathSegments deep.
func (r *SourceRuleset) Accepts(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	host := strings.ToLower(u.Hostname())
	domain := strings.ToLower(r.Domain)
	if host != domain && !strings.HasSuffix(host, "."+domain) {
		return false
	}

	for _, ex := range r.ExcludeSubstrings {
		if strings.Contains(rawURL, ex) {
			return false
		}
	}

	if len(r.IncludeSubstrings) > 0 {
		matched := false
		for _, in := range r.IncludeSubstrings {
			if strings.Contains(rawURL, in) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if r.Pattern != "" {
		if r.compiled == nil {
			if err := r.CompilePattern(); err != nil {
				return false
			}
		}
		if !r.compiled.MatchString(rawURL) {
			return false
		}
	}

	return pathSegments(u.Path) >= r.MinPathSegments
}

func pathSegments(path string) int {
	n := 0
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			n++
		}
	}
	return n
}
