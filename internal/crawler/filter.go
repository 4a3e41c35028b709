package crawler

import (
	"strings"
)

// LinkKind classifies a raw href against the active filter.
type LinkKind int

// Link classifications, from least to most specific.
const (
	LinkIgnored LinkKind = iota
	LinkCandidate
	LinkRecordable
)

func (k LinkKind) String() string {
	switch k {
	case LinkCandidate:
		return "candidate"
	case LinkRecordable:
		return "recordable"
	default:
		return "ignored"
	}
}

// Default markers for the target job site.
var (
	DefaultListingMarkers = []string{"linkedin.com/jobs"}
	DefaultViewMarker     = "linkedin.com/jobs/view"
)

// URLFilter decides which hrefs are job links worth following or recording.
type URLFilter struct {
	listingMarkers []string
	viewMarker     string
	keywords       []string
	blocked        *hostBlocklist
}

// NewURLFilter builds a filter. Empty markers fall back to the defaults.
func NewURLFilter(listingMarkers []string, viewMarker string, keywords []string) *URLFilter {
	markers := normalizeList(listingMarkers, false)
	if len(markers) == 0 {
		markers = append([]string(nil), DefaultListingMarkers...)
	}
	viewMarker = strings.TrimSpace(viewMarker)
	if viewMarker == "" {
		viewMarker = DefaultViewMarker
	}
	return &URLFilter{
		listingMarkers: markers,
		viewMarker:     viewMarker,
		keywords:       normalizeList(keywords, true),
	}
}

// WithBlockedHosts makes links to the given hosts ignored. Patterns are exact
// host names or "*.example.com" suffixes.
func (f *URLFilter) WithBlockedHosts(patterns []string) *URLFilter {
	f.blocked = newHostBlocklist(patterns)
	return f
}

// Keywords returns the active lowercase keywords.
func (f *URLFilter) Keywords() []string {
	return append([]string(nil), f.keywords...)
}

// Classify applies the candidate and recordable rules to a raw href.
func (f *URLFilter) Classify(href string) LinkKind {
	if !f.IsCandidate(href) || f.blocked.blocksLink(href) {
		return LinkIgnored
	}
	if strings.Contains(href, f.viewMarker) {
		return LinkRecordable
	}
	return LinkCandidate
}

// IsCandidate reports whether href carries a listing marker and a keyword.
func (f *URLFilter) IsCandidate(href string) bool {
	return f.hasListingMarker(href) && f.MatchesKeyword(href)
}

// MatchesKeyword reports whether the lowercase href contains any keyword.
func (f *URLFilter) MatchesKeyword(href string) bool {
	lower := strings.ToLower(href)
	for _, kw := range f.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func (f *URLFilter) hasListingMarker(href string) bool {
	for _, marker := range f.listingMarkers {
		if strings.Contains(href, marker) {
			return true
		}
	}
	return false
}

// Canonicalize strips everything from the first '?' onward.
func Canonicalize(rawURL string) string {
	if idx := strings.IndexByte(rawURL, '?'); idx >= 0 {
		return rawURL[:idx]
	}
	return rawURL
}

func normalizeList(in []string, lower bool) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{})
	for _, v := range in {
		v = strings.TrimSpace(v)
		if lower {
			v = strings.ToLower(v)
		}
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
