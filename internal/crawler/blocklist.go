package crawler

import (
	"net/url"
	"slices"
	"strings"
)

// hostBlocklist matches link hosts against exact names and "*.suffix"
// patterns. A nil blocklist blocks nothing.
type hostBlocklist struct {
	exact    map[string]struct{}
	suffixes []string
}

func newHostBlocklist(patterns []string) *hostBlocklist {
	bl := &hostBlocklist{exact: make(map[string]struct{})}
	for _, p := range normalizeList(patterns, true) {
		suffix, wildcard := strings.CutPrefix(p, "*.")
		if !wildcard {
			suffix, wildcard = strings.CutPrefix(p, ".")
		}
		switch {
		case wildcard && suffix != "":
			if !slices.Contains(bl.suffixes, suffix) {
				bl.suffixes = append(bl.suffixes, suffix)
			}
		case !wildcard:
			bl.exact[p] = struct{}{}
		}
	}
	if len(bl.exact) == 0 && len(bl.suffixes) == 0 {
		return nil
	}
	return bl
}

// blocksHost reports whether host is excluded.
func (b *hostBlocklist) blocksHost(host string) bool {
	if b == nil {
		return false
	}
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return false
	}
	if _, ok := b.exact[host]; ok {
		return true
	}
	for _, suffix := range b.suffixes {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return true
		}
	}
	return false
}

// blocksLink applies blocksHost to the host of a raw href. Hrefs that do not
// parse, or carry no host, are never blocked.
func (b *hostBlocklist) blocksLink(href string) bool {
	if b == nil {
		return false
	}
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return false
	}
	return b.blocksHost(u.Hostname())
}
