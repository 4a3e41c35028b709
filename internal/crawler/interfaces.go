package crawler

import (
	"context"
	"io"
	"time"
)

// PageFetcher performs one blocking GET and returns the markup of a 200 response.
// Any other outcome is reported as a *FetchFailure. Implementations do not retry.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (string, error)
}

// LinkExtractor returns the anchors inside the document body, in document order.
type LinkExtractor interface {
	Extract(markup string) []Link
}

// DetailFetcher loads the structured data of a job page.
type DetailFetcher interface {
	FetchDetail(ctx context.Context, canonicalURL string) (Detail, error)
}

// Observer receives the crawl state after every step.
type Observer interface {
	Observe(ctx context.Context, state CrawlState)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, state CrawlState)

// Observe implements Observer.
func (f ObserverFunc) Observe(ctx context.Context, state CrawlState) {
	f(ctx, state)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces crawl IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// CrawlStore persists crawl runs and their results.
type CrawlStore interface {
	CreateCrawl(ctx context.Context, run Run) error
	UpdateCrawlStatus(ctx context.Context, crawlID string, status RunStatus, errText string, counters RunCounters) error
	SaveResult(ctx context.Context, crawlID string, result Result) error
	GetCrawl(ctx context.Context, crawlID string) (Run, error)
	GetResult(ctx context.Context, crawlID string) (Result, error)
}

// ResultStore archives finished crawls (e.g. in Postgres).
type ResultStore interface {
	StoreResult(ctx context.Context, run Run, result Result) error
}

// Queue provides enqueue/dequeue semantics for crawl runs.
type Queue interface {
	Enqueue(ctx context.Context, item QueueItem) error
	Dequeue(ctx context.Context) (QueueItem, error)
}

// QueueItem wraps a crawl ready to run.
type QueueItem struct {
	CrawlID   string
	Request   Request
	Submitted int64
}
