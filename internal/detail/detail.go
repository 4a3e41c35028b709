// Package detail fetches job pages and reads their description and posting age.
package detail

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/JakeFAU/jobgraph-crawler/internal/crawler"
	"github.com/JakeFAU/jobgraph-crawler/internal/extract"
)

// Fetcher implements crawler.DetailFetcher on top of a PageFetcher.
type Fetcher struct {
	pages crawler.PageFetcher
	clock crawler.Clock
}

// New builds a Fetcher.
func New(pages crawler.PageFetcher, clock crawler.Clock) *Fetcher {
	return &Fetcher{pages: pages, clock: clock}
}

// FetchDetail loads canonicalURL and reads its JSON-LD block. Any error means
// the caller should record the job without details.
func (f *Fetcher) FetchDetail(ctx context.Context, canonicalURL string) (crawler.Detail, error) {
	markup, err := f.pages.Fetch(ctx, canonicalURL)
	if err != nil {
		return crawler.Detail{}, fmt.Errorf("fetch detail page: %w", err)
	}
	posting, err := extract.ParseJobPosting(markup)
	if err != nil {
		return crawler.Detail{}, &crawler.ParseError{URL: canonicalURL, Err: err}
	}
	out := crawler.Detail{Description: posting.Description}
	if posting.HasDate() {
		days := AgeInDays(f.clock.Now(), posting.DatePosted)
		out.PostingAgeDays = &days
	}
	return out, nil
}

// AgeInDays returns the whole days elapsed from posted to now, rounding down.
func AgeInDays(now, posted time.Time) int {
	return int(math.Floor(now.Sub(posted).Hours() / 24))
}
