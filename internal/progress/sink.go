package progress

import (
	"context"

	"github.com/JakeFAU/jobgraph-crawler/internal/crawler"
)

// Sink consumes batches of progress events. Implementations must be safe for
// repeated calls and honor ctx deadlines.
type Sink interface {
	Consume(ctx context.Context, batch []Event) error
	Close(ctx context.Context) error
}

// Emitter publishes individual events; Hub satisfies this interface so the
// crawl drivers stay agnostic about how events are buffered.
type Emitter interface {
	Emit(evt Event)
}

// Observer adapts an Emitter to crawler.Observer for one crawl.
type Observer struct {
	emitter Emitter
	crawlID string
	clock   crawler.Clock
}

// NewObserver returns an observer that emits one event per engine step.
func NewObserver(emitter Emitter, crawlID string, clock crawler.Clock) *Observer {
	return &Observer{emitter: emitter, crawlID: crawlID, clock: clock}
}

// Observe implements crawler.Observer.
func (o *Observer) Observe(_ context.Context, state crawler.CrawlState) {
	if o == nil || o.emitter == nil {
		return
	}
	o.emitter.Emit(FromState(o.crawlID, state, o.clock.Now()))
}
