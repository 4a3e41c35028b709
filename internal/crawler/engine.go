package crawler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/jobgraph-crawler/internal/metrics"
)

// Engine runs the breadth-first job crawl. Each call to Step processes one
// depth level; Run drives Step until the crawl completes.
type Engine struct {
	cfg       Config
	fetcher   PageFetcher
	extractor LinkExtractor
	details   DetailFetcher
	observer  Observer
	logger    *zap.Logger
}

// NewEngine wires the engine collaborators. observer and logger may be nil.
func NewEngine(
	cfg Config,
	fetcher PageFetcher,
	extractor LinkExtractor,
	details DetailFetcher,
	observer Observer,
	logger *zap.Logger,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:       cfg.withDefaults(),
		fetcher:   fetcher,
		extractor: extractor,
		details:   details,
		observer:  observer,
		logger:    logger,
	}
}

// Start validates the request and returns the initial running state. No
// network call happens here.
func (e *Engine) Start(req Request) (CrawlState, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return CrawlState{}, &ConfigurationError{Field: "query", Reason: "must not be empty"}
	}
	depth := req.MaxDepth
	if depth == 0 {
		depth = e.cfg.DefaultDepth
	}
	if depth < MinDepth || depth > MaxDepth {
		return CrawlState{}, &ConfigurationError{
			Field:  "max_depth",
			Reason: fmt.Sprintf("%d is outside [%d,%d]", depth, MinDepth, MaxDepth),
		}
	}
	keywords := normalizeList(req.Keywords, true)
	if len(keywords) == 0 {
		keywords = DefaultKeywords(query)
	}
	seed := e.cfg.Seed.Build(query)
	return CrawlState{
		Phase:    PhaseRunning,
		Seed:     seed,
		MaxDepth: depth,
		Keywords: keywords,
		Frontier: []string{seed},
		Visited:  NewVisitedSet(),
	}, nil
}

// Run executes a complete crawl. A configuration error is returned before any
// fetch; every other failure is isolated and the partial result is returned.
// If ctx is canceled the result gathered so far is returned with ctx's error.
func (e *Engine) Run(ctx context.Context, req Request) (Result, error) {
	state, err := e.Start(req)
	if err != nil {
		return Result{}, err
	}
	started := time.Now()
	e.logger.Info("crawl started",
		zap.String("seed", state.Seed),
		zap.Strings("keywords", state.Keywords),
		zap.Int("max_depth", state.MaxDepth),
	)
	e.notify(ctx, state)
	for !state.Done() {
		state = e.Step(ctx, state)
		e.notify(ctx, state)
	}

	result := ResultFromState(state)
	result.StartedAt = started.UTC()
	result.Duration = time.Since(started)
	e.logger.Info("crawl completed",
		zap.Int("levels", result.Levels),
		zap.Int("records", len(result.Records)),
		zap.Int("edges", len(result.Edges)),
		zap.Duration("duration", result.Duration),
	)
	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("crawl interrupted: %w", err)
	}
	return result, nil
}

// Step processes the current frontier and returns the next state. The input
// state is never modified. A state that is not running is returned as is.
func (e *Engine) Step(ctx context.Context, state CrawlState) CrawlState {
	if state.Phase != PhaseRunning {
		return state
	}
	next := state.Clone()
	filter := NewURLFilter(e.cfg.ListingMarkers, e.cfg.ViewMarker, next.Keywords).
		WithBlockedHosts(e.cfg.BlockedHosts)
	logger := e.logger.With(zap.Int("depth", next.Depth))
	logger.Info("level started", zap.Int("frontier", len(next.Frontier)))

	pages := e.fetchFrontier(ctx, next.Frontier, logger)

	// Merge in frontier order so edges and records do not depend on fetch timing.
	edgesBefore := len(next.Edges)
	var pending []pendingRecord
	frontier := newFrontierBuilder()
	for i, source := range next.Frontier {
		for _, link := range pages[i] {
			kind := filter.Classify(link.Href)
			if kind == LinkIgnored {
				continue
			}
			target := Canonicalize(link.Href)
			next.Edges = append(next.Edges, Edge{Source: source, Target: target})
			if kind == LinkRecordable && next.Visited.MarkIfNew(target) {
				pending = append(pending, pendingRecord{
					title:  cleanText(link.Text),
					url:    target,
					source: source,
				})
			}
			if e.cfg.FrontierMode.admits(kind) {
				frontier.add(target)
			}
			logger.Debug("link matched",
				zap.String("source", source),
				zap.String("target", target),
				zap.Stringer("kind", kind),
			)
		}
	}

	records := e.resolveDetails(ctx, pending, next.Depth, logger)
	next.Records = append(next.Records, records...)
	metrics.ObserveLevel(len(records), len(next.Edges)-edgesBefore)

	next.Depth++
	next.Frontier = frontier.urls()
	if next.Depth >= next.MaxDepth || len(next.Frontier) == 0 || ctx.Err() != nil {
		next.Phase = PhaseCompleted
	}
	logger.Info("level finished",
		zap.Int("new_records", len(records)),
		zap.Int("new_edges", len(next.Edges)-edgesBefore),
		zap.Int("next_frontier", len(next.Frontier)),
	)
	return next
}

// fetchFrontier fetches every frontier URL, at most cfg.Concurrency at a time,
// and returns the links of each page at the page's frontier index. All
// fetches finish before it returns.
func (e *Engine) fetchFrontier(ctx context.Context, frontier []string, logger *zap.Logger) [][]Link {
	pages := make([][]Link, len(frontier))
	var g errgroup.Group
	g.SetLimit(e.cfg.Concurrency)
	for i, pageURL := range frontier {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			markup, err := e.fetcher.Fetch(ctx, pageURL)
			if err != nil {
				metrics.ObserveFetch(metrics.KindPage, pageURL, metrics.StatusFailed, 0)
				logger.Warn("page fetch failed; skipping", zap.String("url", pageURL), zap.Error(err))
				return nil
			}
			metrics.ObserveFetch(metrics.KindPage, pageURL, metrics.StatusOK, len(markup))
			pages[i] = e.extractor.Extract(markup)
			return nil
		})
	}
	_ = g.Wait() // workers never return errors
	return pages
}

func (e *Engine) resolveDetails(ctx context.Context, pending []pendingRecord, depth int, logger *zap.Logger) []JobRecord {
	records := make([]JobRecord, len(pending))
	var g errgroup.Group
	g.SetLimit(e.cfg.Concurrency)
	for i, p := range pending {
		g.Go(func() error {
			records[i] = JobRecord{
				Title:  p.title,
				URL:    p.url,
				Depth:  depth,
				Source: p.source,
			}
			if e.details == nil || ctx.Err() != nil {
				return nil
			}
			detail, err := e.details.FetchDetail(ctx, p.url)
			if err != nil {
				metrics.ObserveFetch(metrics.KindDetail, p.url, metrics.StatusFailed, 0)
				logger.Warn("detail fetch failed; recording without details",
					zap.String("url", p.url),
					zap.Error(err),
				)
				return nil
			}
			metrics.ObserveFetch(metrics.KindDetail, p.url, metrics.StatusOK, len(detail.Description))
			records[i].Description = detail.Description
			records[i].PostingAgeDays = detail.PostingAgeDays
			return nil
		})
	}
	_ = g.Wait() // workers never return errors
	return records
}

func (e *Engine) notify(ctx context.Context, state CrawlState) {
	if e.observer != nil {
		e.observer.Observe(ctx, state)
	}
}

type pendingRecord struct {
	title  string
	url    string
	source string
}

// frontierBuilder collects next-level URLs once each, in first-seen order.
type frontierBuilder struct {
	seen  map[string]struct{}
	order []string
}

func newFrontierBuilder() *frontierBuilder {
	return &frontierBuilder{seen: make(map[string]struct{})}
}

func (b *frontierBuilder) add(u string) {
	if _, ok := b.seen[u]; ok {
		return
	}
	b.seen[u] = struct{}{}
	b.order = append(b.order, u)
}

func (b *frontierBuilder) urls() []string {
	return b.order
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
