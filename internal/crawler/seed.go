package crawler

import (
	"net/url"
	"strings"
)

// Search defaults for the target site.
const (
	DefaultSearchURL = "https://www.linkedin.com/jobs/search/"
	DefaultLocation  = "India"
	DefaultOrigin    = "JOB_SEARCH_PAGE_SEARCH_BUTTON"
)

// SeedTemplate builds the depth-0 search URL from a query.
type SeedTemplate struct {
	BaseURL  string
	Location string
	Origin   string
}

// DefaultSeedTemplate returns the template for the default job site.
func DefaultSeedTemplate() SeedTemplate {
	return SeedTemplate{
		BaseURL:  DefaultSearchURL,
		Location: DefaultLocation,
		Origin:   DefaultOrigin,
	}
}

// Build renders the seed URL for query.
func (t SeedTemplate) Build(query string) string {
	base := t.BaseURL
	if base == "" {
		base = DefaultSearchURL
	}
	var b strings.Builder
	b.WriteString(base)
	if strings.Contains(base, "?") {
		b.WriteByte('&')
	} else {
		b.WriteByte('?')
	}
	b.WriteString("keywords=")
	b.WriteString(FormatQuery(query))
	if t.Location != "" {
		b.WriteString("&location=")
		b.WriteString(FormatQuery(t.Location))
	}
	if t.Origin != "" {
		b.WriteString("&origin=")
		b.WriteString(FormatQuery(t.Origin))
	}
	return b.String()
}

// FormatQuery URL-encodes search terms, spaces becoming %20.
func FormatQuery(query string) string {
	return strings.ReplaceAll(url.QueryEscape(strings.TrimSpace(query)), "+", "%20")
}

// DefaultKeywords returns the lowercase words of the query.
func DefaultKeywords(query string) []string {
	return normalizeList(strings.Fields(query), true)
}

// ParseKeywords splits comma-separated input into lowercase keywords.
func ParseKeywords(input string) []string {
	return normalizeList(strings.Split(input, ","), true)
}
