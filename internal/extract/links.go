package extract

import (
	"go.uber.org/zap"

	"github.com/JakeFAU/jobgraph-crawler/internal/crawler"
)

// LinkExtractor implements crawler.LinkExtractor.
type LinkExtractor struct {
	logger *zap.Logger
}

// NewLinkExtractor creates a LinkExtractor. logger may be nil.
func NewLinkExtractor(logger *zap.Logger) *LinkExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LinkExtractor{logger: logger}
}

// Extract returns (href, text) for every anchor with a non-empty href inside
// the body. Markup that cannot be parsed yields no links.
func (l *LinkExtractor) Extract(markup string) []crawler.Link {
	doc, err := Parse(markup)
	if err != nil {
		l.logger.Warn("discarding unparsable page", zap.Error(err))
		return nil
	}
	anchors := doc.ElementsInBody("a")
	links := make([]crawler.Link, 0, len(anchors))
	for _, a := range anchors {
		href, ok := a.Attr("href")
		if !ok || href == "" {
			continue
		}
		links = append(links, crawler.Link{Href: href, Text: a.Text()})
	}
	return links
}
