package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobgraph-crawler/internal/api"
	"github.com/JakeFAU/jobgraph-crawler/internal/app"
	"github.com/JakeFAU/jobgraph-crawler/internal/crawler"
	"github.com/JakeFAU/jobgraph-crawler/internal/dispatcher"
	"github.com/JakeFAU/jobgraph-crawler/internal/id/uuid"
	"github.com/JakeFAU/jobgraph-crawler/internal/progress"
	"github.com/JakeFAU/jobgraph-crawler/internal/progress/sinks"
	queuememory "github.com/JakeFAU/jobgraph-crawler/internal/queue/memory"
	memorystorage "github.com/JakeFAU/jobgraph-crawler/internal/storage/memory"
	"github.com/JakeFAU/jobgraph-crawler/internal/telemetry"
	"github.com/JakeFAU/jobgraph-crawler/internal/worker"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP crawl service",
		Long: `Starts the HTTP API. Crawls submitted to POST /v1/crawls are queued and
run by a pool of workers; results, graphs and progress are served per crawl.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := resolveSettings(cmd.Context())
			if err != nil {
				return err
			}
			return serve(cmd.Context(), s)
		},
	}
}

func serve(ctx context.Context, s *settings) error {
	cfg, logger := s.cfg, s.logger
	tp, err := telemetry.InitTracerProvider(ctx, telemetry.ServiceName)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		if err := tp.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	services, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize services: %w", err)
	}
	defer services.Close()

	snapshots := sinks.NewSnapshotSink(cfg.Progress.HistoryLimit).WithMaxCrawls(cfg.Server.RetainCrawls)
	hub := progress.NewHub(progress.Config{BufferSize: cfg.Progress.BufferSize, Logger: logger},
		sinks.NewLogSink(logger.Named("progress")), snapshots)

	store := memorystorage.NewCrawlStore().WithMaxRuns(cfg.Server.RetainCrawls)
	queue := queuememory.NewQueue(cfg.Queue.Depth)
	registry := worker.NewRegistry()
	deps := worker.Deps{
		Queue:     queue,
		Store:     store,
		Results:   services.ResultStore(),
		Exporter:  services.Exporter(),
		Publisher: services.Publisher(),
		Clock:     services.Clock(),
		Progress:  hub,
		Registry:  registry,
		NewRunner: func(_ string, observer crawler.Observer) crawler.Runner {
			return services.NewRunner(observer)
		},
	}
	workers := make([]*worker.Worker, 0, cfg.Crawler.Workers)
	for i := range cfg.Crawler.Workers {
		workers = append(workers, worker.New(deps, worker.Config{Topic: cfg.PubSub.TopicName},
			logger.Named("worker").With(zap.Int("index", i))))
	}
	dispatch := dispatcher.New(queue, workers, logger.Named("dispatcher"))

	apiKey := ""
	if cfg.Auth.Enabled {
		apiKey = cfg.Auth.APIKey
	}
	apiServer := api.NewServer(api.Deps{
		Store:     store,
		Enqueuer:  dispatch,
		Validator: services.NewEngine(nil),
		Canceler:  registry,
		Progress:  snapshots,
		IDGen:     uuid.New(),
		Clock:     services.Clock(),
	}, api.Options{
		APIKey:         apiKey,
		RequestTimeout: time.Duration(cfg.Server.RequestTimeoutSeconds) * time.Second,
		Graph:          services.GraphOptions(),
	}, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	dispatched := make(chan struct{})
	go func() {
		defer close(dispatched)
		dispatch.Run(ctx)
	}()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeoutSecs)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	queue.Close()
	<-dispatched
	if err := hub.Close(shutdownCtx); err != nil {
		logger.Warn("progress hub close failed", zap.Error(err))
	}

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
		return nil
	}
}
