// Package worker implements the service-mode crawl execution loop.
package worker

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobgraph-crawler/internal/crawler"
	"github.com/JakeFAU/jobgraph-crawler/internal/export"
	"github.com/JakeFAU/jobgraph-crawler/internal/logging"
	"github.com/JakeFAU/jobgraph-crawler/internal/metrics"
	"github.com/JakeFAU/jobgraph-crawler/internal/progress"
)

var tracer = otel.Tracer("github.com/JakeFAU/jobgraph-crawler/internal/worker")

// RunnerFactory builds the runner for one crawl. observer receives the state
// after every engine step.
type RunnerFactory func(crawlID string, observer crawler.Observer) crawler.Runner

// Exporter writes the artifacts of a finished crawl.
type Exporter interface {
	Export(ctx context.Context, crawlID, query string, result crawler.Result) (export.Artifacts, error)
}

// Config controls Worker behavior.
type Config struct {
	// Topic receives CrawlCompleted events; empty disables publishing.
	Topic string
}

// Deps are the collaborators of a Worker. Results, Exporter, Publisher,
// Progress and Registry are optional.
type Deps struct {
	Queue     crawler.Queue
	Store     crawler.CrawlStore
	Results   crawler.ResultStore
	Exporter  Exporter
	Publisher crawler.Publisher
	Clock     crawler.Clock
	Progress  progress.Emitter
	Registry  *Registry
	NewRunner RunnerFactory
}

// Worker consumes queue items and runs one crawl at a time.
type Worker struct {
	deps   Deps
	cfg    Config
	logger *zap.Logger
}

// New constructs a Worker.
func New(deps Deps, cfg Config, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Registry == nil {
		deps.Registry = NewRegistry()
	}
	return &Worker{deps: deps, cfg: cfg, logger: logger}
}

// Run blocks, consuming queue items until the context finishes or the queue
// is closed.
func (w *Worker) Run(ctx context.Context) {
	for {
		item, err := w.deps.Queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, crawler.ErrQueueClosed) {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued crawl", zap.String("crawl_id", item.CrawlID))
		w.processCrawl(ctx, item)
	}
}

func (w *Worker) processCrawl(ctx context.Context, item crawler.QueueItem) {
	logger := logging.ForCrawl(w.logger, item.CrawlID, item.Request.Query)
	ctx, span := tracer.Start(ctx, "crawl", trace.WithAttributes(
		attribute.String("crawl.id", item.CrawlID),
		attribute.String("crawl.query", item.Request.Query),
	))
	defer span.End()
	crawlCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	w.deps.Registry.register(item.CrawlID, cancel)
	defer w.deps.Registry.release(item.CrawlID)

	if err := w.deps.Store.UpdateCrawlStatus(
		ctx, item.CrawlID, crawler.RunStatusRunning, "", crawler.RunCounters{},
	); err != nil {
		logger.Warn("skipping crawl", zap.Error(err))
		span.SetStatus(codes.Error, "not runnable")
		return
	}
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	var observer crawler.Observer
	if w.deps.Progress != nil {
		observer = progress.NewObserver(w.deps.Progress, item.CrawlID, w.deps.Clock)
	}
	runner := w.deps.NewRunner(item.CrawlID, observer)
	result, runErr := runner.Run(crawlCtx, item.Request)
	status, errText := deriveFinalStatus(crawlCtx, result, runErr)
	counters := crawler.CountersFor(result)
	span.SetAttributes(
		attribute.String("crawl.status", string(status)),
		attribute.Int("crawl.records", counters.Records),
	)
	if status == crawler.RunStatusFailed {
		span.SetStatus(codes.Error, errText)
	}
	logger.Info("crawl finished",
		zap.String("status", string(status)),
		zap.Int("records", counters.Records),
		zap.Int("edges", counters.Edges),
		zap.Int("levels", counters.Levels),
	)

	// Persist even when the crawl was canceled so the partial result survives.
	persistCtx := context.WithoutCancel(ctx)
	if status != crawler.RunStatusFailed || len(result.Records) > 0 {
		if err := w.deps.Store.SaveResult(persistCtx, item.CrawlID, result); err != nil {
			logger.Error("save result failed", zap.Error(err))
		}
	}
	artifacts := w.exportArtifacts(persistCtx, item, result, logger)
	if err := w.deps.Store.UpdateCrawlStatus(persistCtx, item.CrawlID, status, errText, counters); err != nil {
		logger.Error("final crawl status update failed", zap.Error(err))
	}
	w.archive(persistCtx, item.CrawlID, result, logger)

	if w.deps.Progress != nil {
		w.deps.Progress.Emit(progress.Done(item.CrawlID, result, runErr, w.deps.Clock.Now()))
	}
	metrics.ObserveCrawl(string(status), result.Duration)
	w.publishCompleted(persistCtx, item, result, status, counters, artifacts, logger)
}

func (w *Worker) exportArtifacts(
	ctx context.Context,
	item crawler.QueueItem,
	result crawler.Result,
	logger *zap.Logger,
) []string {
	if w.deps.Exporter == nil || result.Empty() {
		return nil
	}
	artifacts, err := w.deps.Exporter.Export(ctx, item.CrawlID, item.Request.Query, result)
	if err != nil {
		logger.Error("export artifacts failed", zap.Error(err))
		return nil
	}
	return []string{artifacts.CSV, artifacts.Graph}
}

func (w *Worker) archive(ctx context.Context, crawlID string, result crawler.Result, logger *zap.Logger) {
	if w.deps.Results == nil {
		return
	}
	run, err := w.deps.Store.GetCrawl(ctx, crawlID)
	if err != nil {
		logger.Error("load crawl for archive failed", zap.Error(err))
		return
	}
	if err := w.deps.Results.StoreResult(ctx, run, result); err != nil {
		logger.Error("archive result failed", zap.Error(err))
	}
}

func (w *Worker) publishCompleted(
	ctx context.Context,
	item crawler.QueueItem,
	result crawler.Result,
	status crawler.RunStatus,
	counters crawler.RunCounters,
	artifacts []string,
	logger *zap.Logger,
) {
	if w.cfg.Topic == "" || w.deps.Publisher == nil {
		return
	}
	event := crawler.CrawlCompleted{
		CrawlID:    item.CrawlID,
		Status:     status,
		Query:      item.Request.Query,
		Seed:       result.Seed,
		Counters:   counters,
		Artifacts:  artifacts,
		FinishedAt: w.deps.Clock.Now(),
	}
	msgID, err := w.deps.Publisher.Publish(ctx, w.cfg.Topic, event)
	if err != nil {
		logger.Error("publish crawl completed failed", zap.Error(err))
		return
	}
	logger.Info("crawl completed published", zap.String("message_id", msgID))
}

// deriveFinalStatus maps the outcome of a run onto a terminal RunStatus.
func deriveFinalStatus(ctx context.Context, result crawler.Result, err error) (crawler.RunStatus, string) {
	switch {
	case ctx.Err() != nil || errors.Is(err, context.Canceled):
		return crawler.RunStatusCanceled, errorText(err, ctx.Err())
	case errors.Is(err, crawler.ErrNoResults):
		return crawler.RunStatusEmpty, ""
	case err != nil:
		return crawler.RunStatusFailed, err.Error()
	case result.Empty():
		return crawler.RunStatusEmpty, ""
	default:
		return crawler.RunStatusSucceeded, ""
	}
}

func errorText(errs ...error) string {
	for _, err := range errs {
		if err != nil {
			return err.Error()
		}
	}
	return fmt.Sprint(context.Canceled)
}
