package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/JakeFAU/jobgraph-crawler/internal/crawler"
)

func TestCrawlStoreLifecycle(t *testing.T) {
	t.Parallel()

	store := NewCrawlStore()
	ctx := context.Background()
	run := crawler.Run{ID: "crawl-1", Status: crawler.RunStatusQueued, Request: crawler.Request{Query: "go"}}

	if err := store.CreateCrawl(ctx, run); err != nil {
		t.Fatalf("CreateCrawl() error = %v", err)
	}
	if err := store.CreateCrawl(ctx, run); err == nil {
		t.Fatal("expected duplicate crawl error")
	}
	if err := store.UpdateCrawlStatus(ctx, run.ID, crawler.RunStatusRunning, "", crawler.RunCounters{}); err != nil {
		t.Fatalf("UpdateCrawlStatus running error = %v", err)
	}

	result := crawler.Result{
		Records: []crawler.JobRecord{{URL: "https://www.linkedin.com/jobs/view/go-1"}},
		Edges:   []crawler.Edge{{Source: "seed", Target: "https://www.linkedin.com/jobs/view/go-1"}},
		Levels:  1,
	}
	if err := store.SaveResult(ctx, run.ID, result); err != nil {
		t.Fatalf("SaveResult() error = %v", err)
	}
	result.Records[0].URL = "modified"
	stored, err := store.GetResult(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetResult() error = %v", err)
	}
	if stored.Records[0].URL != "https://www.linkedin.com/jobs/view/go-1" {
		t.Fatal("expected SaveResult to keep a copy")
	}

	counters := crawler.CountersFor(stored)
	if err := store.UpdateCrawlStatus(ctx, run.ID, crawler.RunStatusSucceeded, "", counters); err != nil {
		t.Fatalf("UpdateCrawlStatus succeeded error = %v", err)
	}
	final, err := store.GetCrawl(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetCrawl() error = %v", err)
	}
	if final.Status != crawler.RunStatusSucceeded || final.Started == nil || final.Finished == nil {
		t.Fatalf("expected timestamps set, got %+v", final)
	}
	if final.Counters != counters {
		t.Fatalf("expected counters to persist, got %+v", final.Counters)
	}

	if err := store.UpdateCrawlStatus(ctx, run.ID, crawler.RunStatusRunning, "", crawler.RunCounters{}); err == nil {
		t.Fatal("expected terminal crawl to reject further updates")
	}
}

func TestCrawlStoreNotFound(t *testing.T) {
	t.Parallel()

	store := NewCrawlStore()
	ctx := context.Background()
	if _, err := store.GetCrawl(ctx, "missing"); !errors.Is(err, crawler.ErrNotFound) {
		t.Fatalf("GetCrawl() error = %v, want ErrNotFound", err)
	}
	if _, err := store.GetResult(ctx, "missing"); !errors.Is(err, crawler.ErrNotFound) {
		t.Fatalf("GetResult() error = %v, want ErrNotFound", err)
	}
	if err := store.SaveResult(ctx, "missing", crawler.Result{}); !errors.Is(err, crawler.ErrNotFound) {
		t.Fatalf("SaveResult() error = %v, want ErrNotFound", err)
	}
	err := store.UpdateCrawlStatus(ctx, "missing", crawler.RunStatusRunning, "", crawler.RunCounters{})
	if !errors.Is(err, crawler.ErrNotFound) {
		t.Fatalf("UpdateCrawlStatus() error = %v, want ErrNotFound", err)
	}
}

func TestCrawlStoreEvictsOldestFinishedRuns(t *testing.T) {
	t.Parallel()

	store := NewCrawlStore().WithMaxRuns(2)
	ctx := context.Background()
	create := func(id string) {
		t.Helper()
		if err := store.CreateCrawl(ctx, crawler.Run{ID: id, Status: crawler.RunStatusQueued}); err != nil {
			t.Fatalf("CreateCrawl(%s) error = %v", id, err)
		}
	}

	create("a")
	create("b")
	if err := store.SaveResult(ctx, "a", crawler.Result{Seed: "seed"}); err != nil {
		t.Fatalf("SaveResult() error = %v", err)
	}
	if err := store.UpdateCrawlStatus(ctx, "a", crawler.RunStatusSucceeded, "", crawler.RunCounters{}); err != nil {
		t.Fatalf("UpdateCrawlStatus(a) error = %v", err)
	}
	if err := store.UpdateCrawlStatus(ctx, "b", crawler.RunStatusRunning, "", crawler.RunCounters{}); err != nil {
		t.Fatalf("UpdateCrawlStatus(b) error = %v", err)
	}

	create("c")
	if _, err := store.GetCrawl(ctx, "a"); !errors.Is(err, crawler.ErrNotFound) {
		t.Fatalf("expected finished run a to be evicted, got %v", err)
	}
	if _, err := store.GetResult(ctx, "a"); !errors.Is(err, crawler.ErrNotFound) {
		t.Fatalf("expected result of a to be evicted, got %v", err)
	}

	// Only unfinished runs remain, so the store may exceed its bound.
	create("d")
	if n := store.Len(); n != 3 {
		t.Fatalf("Len() = %d, want 3", n)
	}
	for _, id := range []string{"b", "c", "d"} {
		if _, err := store.GetCrawl(ctx, id); err != nil {
			t.Fatalf("GetCrawl(%s) error = %v", id, err)
		}
	}
}
