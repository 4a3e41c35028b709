package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/JakeFAU/jobgraph-crawler/internal/crawler"
)

// CrawlStore keeps crawl runs and results in memory for development/testing.
type CrawlStore struct {
	mu      sync.RWMutex
	maxRuns int
	order   []string
	runs    map[string]crawler.Run
	results map[string]crawler.Result
	now     func() time.Time
}

// NewCrawlStore constructs a CrawlStore.
func NewCrawlStore() *CrawlStore {
	return &CrawlStore{
		runs:    make(map[string]crawler.Run),
		results: make(map[string]crawler.Result),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithMaxRuns bounds the number of retained runs. When a new run pushes the
// count over n, the oldest finished runs are dropped with their results;
// queued and running crawls are always kept. n <= 0 keeps everything.
func (s *CrawlStore) WithMaxRuns(n int) *CrawlStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxRuns = n
	s.evictLocked()
	return s
}

// CreateCrawl stores a new crawl run.
func (s *CrawlStore) CreateCrawl(_ context.Context, run crawler.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; exists {
		return fmt.Errorf("crawl %s already exists", run.ID)
	}
	s.runs[run.ID] = run
	s.order = append(s.order, run.ID)
	s.evictLocked()
	return nil
}

func (s *CrawlStore) evictLocked() {
	if s.maxRuns <= 0 || len(s.runs) <= s.maxRuns {
		return
	}
	kept := s.order[:0]
	for _, id := range s.order {
		if len(s.runs) > s.maxRuns && s.runs[id].Status.IsTerminal() {
			delete(s.runs, id)
			delete(s.results, id)
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
}

// Len reports how many runs are retained.
func (s *CrawlStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.runs)
}

// UpdateCrawlStatus updates the status and counters of a run. Terminal runs
// are left untouched so a late worker cannot overwrite a cancellation.
func (s *CrawlStore) UpdateCrawlStatus(
	_ context.Context,
	crawlID string,
	status crawler.RunStatus,
	errText string,
	counters crawler.RunCounters,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[crawlID]
	if !ok {
		return fmt.Errorf("update %s: %w", crawlID, crawler.ErrNotFound)
	}
	if run.Status.IsTerminal() {
		return fmt.Errorf("crawl %s already %s", crawlID, run.Status)
	}
	run.Status = status
	run.ErrorText = errText
	run.Counters = counters
	now := s.now()
	if status == crawler.RunStatusRunning && run.Started == nil {
		run.Started = pointerTime(now)
	}
	if status.IsTerminal() {
		run.Finished = pointerTime(now)
	}
	s.runs[crawlID] = run
	return nil
}

// SaveResult stores the result of a crawl.
func (s *CrawlStore) SaveResult(_ context.Context, crawlID string, result crawler.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[crawlID]; !ok {
		return fmt.Errorf("save result %s: %w", crawlID, crawler.ErrNotFound)
	}
	s.results[crawlID] = copyResult(result)
	return nil
}

// GetCrawl fetches a run by ID.
func (s *CrawlStore) GetCrawl(_ context.Context, crawlID string) (crawler.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[crawlID]
	if !ok {
		return crawler.Run{}, fmt.Errorf("get %s: %w", crawlID, crawler.ErrNotFound)
	}
	return run, nil
}

// GetResult returns a copy of the stored result.
func (s *CrawlStore) GetResult(_ context.Context, crawlID string) (crawler.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, ok := s.results[crawlID]
	if !ok {
		return crawler.Result{}, fmt.Errorf("result %s: %w", crawlID, crawler.ErrNotFound)
	}
	return copyResult(result), nil
}

func copyResult(r crawler.Result) crawler.Result {
	out := r
	out.Records = append([]crawler.JobRecord(nil), r.Records...)
	out.Edges = append([]crawler.Edge(nil), r.Edges...)
	return out
}

func pointerTime(t time.Time) *time.Time {
	ts := t
	return &ts
}
