package sinks

import (
	"context"
	"sync"

	"github.com/JakeFAU/jobgraph-crawler/internal/progress"
)

const defaultHistoryLimit = 64

// SnapshotSink keeps the latest event and a bounded history per crawl.
type SnapshotSink struct {
	mu        sync.RWMutex
	limit     int
	maxCrawls int
	order     []string
	history   map[string][]progress.Event
}

// NewSnapshotSink keeps at most historyLimit events per crawl (64 when <= 0).
func NewSnapshotSink(historyLimit int) *SnapshotSink {
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}
	return &SnapshotSink{
		limit:   historyLimit,
		history: make(map[string][]progress.Event),
	}
}

// WithMaxCrawls bounds how many crawls are tracked; the crawl seen first is
// forgotten when a new one would exceed n. n <= 0 keeps every crawl.
func (s *SnapshotSink) WithMaxCrawls(n int) *SnapshotSink {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxCrawls = n
	s.evictLocked()
	return s
}

// Consume appends the batch to each crawl's history, evicting the oldest
// entries beyond the limit.
func (s *SnapshotSink) Consume(_ context.Context, batch []progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range batch {
		if _, ok := s.history[evt.CrawlID]; !ok {
			s.order = append(s.order, evt.CrawlID)
		}
		events := append(s.history[evt.CrawlID], evt)
		if over := len(events) - s.limit; over > 0 {
			events = append([]progress.Event(nil), events[over:]...)
		}
		s.history[evt.CrawlID] = events
		s.evictLocked()
	}
	return nil
}

func (s *SnapshotSink) evictLocked() {
	if s.maxCrawls <= 0 {
		return
	}
	for len(s.order) > s.maxCrawls {
		delete(s.history, s.order[0])
		s.order = s.order[1:]
	}
}

// Crawls reports how many crawls currently have history.
func (s *SnapshotSink) Crawls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

// Latest returns the most recent event for crawlID.
func (s *SnapshotSink) Latest(crawlID string) (progress.Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := s.history[crawlID]
	if len(events) == 0 {
		return progress.Event{}, false
	}
	return events[len(events)-1], true
}

// History returns up to limit events for crawlID, newest first, skipping
// offset events.
func (s *SnapshotSink) History(crawlID string, limit, offset int) []progress.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := s.history[crawlID]
	if offset < 0 {
		offset = 0
	}
	out := make([]progress.Event, 0)
	for i := len(events) - 1 - offset; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, events[i])
	}
	return out
}

// Close implements the Sink interface; snapshots stay readable afterwards.
func (s *SnapshotSink) Close(context.Context) error {
	return nil
}
