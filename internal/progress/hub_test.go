package progress

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobgraph-crawler/internal/crawler"
)

func sampleEvent(stage Stage) Event {
	return Event{CrawlID: "crawl-1", TS: time.Unix(1700000000, 0).UTC(), Stage: stage}
}

// TestHubBatchBySize verifies the hub flushes once the batch size limit is reached.
func TestHubBatchBySize(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{BufferSize: 8, MaxBatchEvents: 2, FlushInterval: time.Minute}, sink)
	defer func() {
		require.NoError(t, hub.Close(context.Background()))
	}()

	hub.Emit(sampleEvent(StageCrawlStart))
	hub.Emit(sampleEvent(StageLevelDone))
	require.Eventually(t, func() bool {
		batches := sink.Batches()
		return len(batches) == 1 && len(batches[0]) == 2
	}, time.Second, 10*time.Millisecond)
}

// TestHubFlushInterval verifies a small batch is flushed by the ticker.
func TestHubFlushInterval(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{BufferSize: 4, MaxBatchEvents: 10, FlushInterval: 20 * time.Millisecond}, sink)
	defer func() {
		require.NoError(t, hub.Close(context.Background()))
	}()

	hub.Emit(sampleEvent(StageCrawlStart))
	require.Eventually(t, func() bool {
		return len(sink.Batches()) == 1
	}, time.Second, 5*time.Millisecond)
}

// TestHubEmitNonBlocking asserts Emit never blocks callers when the buffer is full.
func TestHubEmitNonBlocking(t *testing.T) {
	t.Parallel()

	hub := &Hub{events: make(chan Event), logger: zap.NewNop()}
	start := time.Now()
	hub.Emit(sampleEvent(StageCrawlStart))
	require.Less(t, time.Since(start), 50*time.Millisecond)
	require.Equal(t, int64(1), hub.Dropped())
}

// TestHubFlushOnClose ensures Close drains buffered events and closes sinks.
func TestHubFlushOnClose(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{BufferSize: 4, MaxBatchEvents: 100, FlushInterval: time.Minute}, sink)

	hub.Emit(sampleEvent(StageCrawlStart))
	require.NoError(t, hub.Close(context.Background()))
	require.NoError(t, hub.Close(context.Background()))
	require.Len(t, sink.Batches(), 1)
	require.Len(t, sink.Batches()[0], 1)
	require.True(t, sink.Closed())

	hub.Emit(sampleEvent(StageLevelDone))
	require.Len(t, sink.Batches(), 1, "emit after close is ignored")
}

func TestHubDiscardsInvalidEvents(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{FlushInterval: time.Minute}, sink)
	hub.Emit(Event{Stage: StageCrawlStart})
	require.NoError(t, hub.Close(context.Background()))
	require.Empty(t, sink.Batches())
}

func TestHubSinkErrorDoesNotStopDelivery(t *testing.T) {
	t.Parallel()

	failing := sinkFunc(func(context.Context, []Event) error { return errors.New("sink down") })
	sink := newStubSink()
	hub := NewHub(Config{MaxBatchEvents: 1}, failing, sink)
	hub.Emit(sampleEvent(StageCrawlStart))
	require.NoError(t, hub.Close(context.Background()))
	require.Len(t, sink.Batches(), 1)
}

func TestEventValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, sampleEvent(StageLevelDone).Validate())
	require.Error(t, Event{TS: time.Now(), Stage: StageCrawlStart}.Validate())
	require.Error(t, Event{CrawlID: "c", Stage: StageCrawlStart}.Validate())
	require.Error(t, sampleEvent("BOGUS").Validate())
	require.Error(t, sampleEvent(StageCrawlError).Validate())

	bad := sampleEvent(StageLevelDone)
	bad.Records = -1
	require.Error(t, bad.Validate())
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func TestObserverEmitsStateSnapshots(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{FlushInterval: time.Minute}, sink)
	ts := time.Unix(1700000000, 0).UTC()
	obs := NewObserver(hub, "crawl-7", fixedClock{t: ts})

	obs.Observe(context.Background(), crawler.CrawlState{
		Phase: crawler.PhaseRunning, MaxDepth: 2, Frontier: []string{"seed"},
	})
	obs.Observe(context.Background(), crawler.CrawlState{
		Phase:    crawler.PhaseCompleted,
		Depth:    1,
		MaxDepth: 2,
		Records:  []crawler.JobRecord{{URL: "a"}},
		Edges:    []crawler.Edge{{Source: "seed", Target: "a"}},
	})
	require.NoError(t, hub.Close(context.Background()))

	batches := sink.Batches()
	require.Len(t, batches, 1)
	require.Equal(t, []Event{
		{CrawlID: "crawl-7", TS: ts, Stage: StageCrawlStart, MaxDepth: 2, Frontier: 1},
		{CrawlID: "crawl-7", TS: ts, Stage: StageLevelDone, Depth: 1, MaxDepth: 2, Records: 1, Edges: 1},
	}, batches[0])

	var nilObs *Observer
	nilObs.Observe(context.Background(), crawler.CrawlState{})
}

func TestDoneEvent(t *testing.T) {
	t.Parallel()

	ts := time.Unix(1700000000, 0).UTC()
	result := crawler.Result{Levels: 2, Records: []crawler.JobRecord{{}}, Duration: time.Second}
	evt := Done("c", result, nil, ts)
	require.Equal(t, StageCrawlDone, evt.Stage)
	require.Equal(t, 2, evt.Depth)
	require.Equal(t, time.Second, evt.Dur)

	evt = Done("c", result, context.Canceled, ts)
	require.Equal(t, StageCrawlError, evt.Stage)
	require.Equal(t, "context canceled", evt.Note)
	require.NoError(t, evt.Validate())
}

type stubSink struct {
	mu      sync.Mutex
	batches [][]Event
	closed  bool
}

func newStubSink() *stubSink {
	return &stubSink{batches: [][]Event{}}
}

func (s *stubSink) Consume(_ context.Context, batch []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, append([]Event(nil), batch...))
	return nil
}

func (s *stubSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *stubSink) Batches() [][]Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]Event, len(s.batches))
	for i, b := range s.batches {
		out[i] = append([]Event(nil), b...)
	}
	return out
}

func (s *stubSink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type sinkFunc func(context.Context, []Event) error

func (f sinkFunc) Consume(ctx context.Context, batch []Event) error {
	return f(ctx, batch)
}

func (sinkFunc) Close(context.Context) error {
	return nil
}
