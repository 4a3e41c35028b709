// Package app builds and holds the long-lived services shared by the CLI and
// the HTTP service, acting as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobgraph-crawler/internal/clock/system"
	"github.com/JakeFAU/jobgraph-crawler/internal/config"
	"github.com/JakeFAU/jobgraph-crawler/internal/crawler"
	"github.com/JakeFAU/jobgraph-crawler/internal/detail"
	"github.com/JakeFAU/jobgraph-crawler/internal/export"
	"github.com/JakeFAU/jobgraph-crawler/internal/extract"
	collyfetcher "github.com/JakeFAU/jobgraph-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/jobgraph-crawler/internal/graph"
	pubsubpublisher "github.com/JakeFAU/jobgraph-crawler/internal/publisher/pubsub"
	gcsstorage "github.com/JakeFAU/jobgraph-crawler/internal/storage/gcs"
	localstorage "github.com/JakeFAU/jobgraph-crawler/internal/storage/local"
	memorystorage "github.com/JakeFAU/jobgraph-crawler/internal/storage/memory"
	"github.com/JakeFAU/jobgraph-crawler/internal/storage/postgres"
)

// App holds the shared services. It is built once at startup and closed on
// shutdown.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	clock     crawler.Clock
	pages     crawler.PageFetcher
	blobs     crawler.BlobStore
	results   crawler.ResultStore
	publisher crawler.Publisher
	closers   []func() error
}

// Option customizes New; used to inject collaborators in tests.
type Option func(*App)

// WithPageFetcher replaces the colly page fetcher.
func WithPageFetcher(pages crawler.PageFetcher) Option {
	return func(a *App) { a.pages = pages }
}

// WithClock replaces the system clock.
func WithClock(clock crawler.Clock) Option {
	return func(a *App) { a.clock = clock }
}

// New initializes every service the configuration asks for. It fails fast
// when a configured backend cannot be reached.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger, clock: system.New()}
	for _, opt := range opts {
		opt(a)
	}
	if a.pages == nil {
		a.pages = collyfetcher.New(collyfetcher.Config{
			UserAgent:     cfg.Crawler.UserAgent,
			RespectRobots: cfg.Crawler.RespectRobots,
			Timeout:       cfg.RequestTimeout(),
		})
	}

	blobs, err := a.openBlobStore(ctx)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}
	a.blobs = blobs

	if cfg.DB.DSN != "" {
		store, err := postgres.NewResultStore(ctx, postgres.ResultStoreConfig{
			DSN:         cfg.DB.DSN,
			TablePrefix: cfg.DB.TablePrefix,
			MaxConns:    cfg.DB.MaxConns,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init result store: %w", err)
		}
		a.closers = append(a.closers, func() error { store.Close(); return nil })
		if err := store.EnsureSchema(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("ensure result schema: %w", err)
		}
		a.results = store
		logger.Info("archiving results in postgres", zap.String("table_prefix", cfg.DB.TablePrefix))
	}

	if cfg.PubSub.TopicName != "" {
		client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init pubsub: %w", err)
		}
		topic := client.Topic(cfg.PubSub.TopicName)
		a.closers = append(a.closers, func() error { topic.Stop(); return client.Close() })
		a.publisher = pubsubpublisher.New(topic)
		logger.Info("publishing crawl events", zap.String("topic", cfg.PubSub.TopicName))
	}

	logger.Info("application services initialized", zap.String("storage_backend", cfg.Storage.Backend))
	return a, nil
}

func (a *App) openBlobStore(ctx context.Context) (crawler.BlobStore, error) {
	switch a.cfg.Storage.Backend {
	case config.BackendMemory:
		return memorystorage.NewBlobStore(), nil
	case config.BackendLocal, "":
		store, err := localstorage.New(localstorage.Config{BaseDir: a.cfg.Storage.BaseDir})
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.BackendGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		store, err := gcsstorage.New(client, gcsstorage.Config{Bucket: a.cfg.Storage.GCSBucket})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", a.cfg.Storage.Backend)
	}
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Clock returns the shared clock.
func (a *App) Clock() crawler.Clock { return a.clock }

// BlobStore returns the artifact store.
func (a *App) BlobStore() crawler.BlobStore { return a.blobs }

// ResultStore returns the Postgres archive, or nil when no DSN is configured.
func (a *App) ResultStore() crawler.ResultStore { return a.results }

// Publisher returns the crawl event publisher, or nil when Pub/Sub is off.
func (a *App) Publisher() crawler.Publisher { return a.publisher }

// NewEngine builds a crawl engine that reports steps to observer.
func (a *App) NewEngine(observer crawler.Observer) *crawler.Engine {
	return crawler.NewEngine(
		a.cfg.EngineConfig(),
		a.pages,
		extract.NewLinkExtractor(a.logger.Named("extract")),
		detail.New(a.pages, a.clock),
		observer,
		a.logger.Named("engine"),
	)
}

// NewRunner wraps a fresh engine in the bounded retry policy.
func (a *App) NewRunner(observer crawler.Observer) crawler.Runner {
	return crawler.NewRetryRunner(a.NewEngine(observer), a.cfg.Crawler.RetryAttempts, a.logger.Named("retry"))
}

// Exporter writes CSV and graph artifacts to the blob store.
func (a *App) Exporter() *export.Exporter {
	return export.New(a.blobs, export.Options{
		Prefix: a.cfg.Storage.Prefix,
		Graph:  a.GraphOptions(),
	}, a.logger.Named("export"))
}

// GraphOptions classifies graph nodes with the configured view marker.
func (a *App) GraphOptions() graph.Options {
	return graph.Options{ViewMarker: a.cfg.Filter.ViewMarker}
}

// Close shuts down services in reverse order of creation.
func (a *App) Close() {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("error closing application services", zap.Error(err))
	}
}
