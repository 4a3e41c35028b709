package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobgraph-crawler/internal/app"
	"github.com/JakeFAU/jobgraph-crawler/internal/config"
	"github.com/JakeFAU/jobgraph-crawler/internal/crawler"
	"github.com/JakeFAU/jobgraph-crawler/internal/logging"
	"github.com/JakeFAU/jobgraph-crawler/internal/progress"
	"github.com/JakeFAU/jobgraph-crawler/internal/progress/sinks"
)

const cliCrawlID = "cli"

type crawlOptions struct {
	query    string
	keywords string
	depth    int
	out      string
}

func newCrawlCmd() *cobra.Command {
	var opts crawlOptions
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Run one crawl and export the results",
		Long: `Crawls the job search for --query up to --depth levels, then writes
<query>.csv and <query>_graph.json to the configured storage (or --out).`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.query, "query", "q", "", "search query, e.g. \"python developer\"")
	cmd.Flags().StringVarP(&opts.keywords, "keywords", "k", "", "comma-separated URL keywords (default: words of the query)")
	cmd.Flags().IntVarP(&opts.depth, "depth", "d", 0, "maximum crawl depth, 1-4 (default from config)")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "write artifacts to this directory")
	_ = cmd.MarkFlagRequired("query") //nolint:errcheck // flag is defined above
	return cmd
}

func runCrawl(cmd *cobra.Command, opts crawlOptions) error {
	s, err := resolveSettings(cmd.Context())
	if err != nil {
		return err
	}
	cfg := s.cfg
	if opts.out != "" {
		cfg.Storage.Backend = config.BackendLocal
		cfg.Storage.BaseDir = opts.out
	}
	logger := logging.ForCrawl(s.logger, cliCrawlID, opts.query)

	req := crawler.Request{
		Query:    opts.query,
		Keywords: crawler.ParseKeywords(opts.keywords),
		MaxDepth: opts.depth,
	}
	// Reject bad requests before any database, bucket or topic is touched.
	if _, err := crawler.NewEngine(cfg.EngineConfig(), nil, nil, nil, nil, logger).Start(req); err != nil {
		return err
	}

	services, err := app.New(cmd.Context(), cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize services: %w", err)
	}
	defer services.Close()

	hub := progress.NewHub(progress.Config{BufferSize: cfg.Progress.BufferSize, Logger: logger},
		sinks.NewLogSink(logger.Named("progress")))
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := hub.Close(closeCtx); err != nil {
			logger.Warn("progress hub close failed", zap.Error(err))
		}
	}()

	runner := services.NewRunner(progress.NewObserver(hub, cliCrawlID, services.Clock()))
	result, runErr := runner.Run(cmd.Context(), req)
	hub.Emit(progress.Done(cliCrawlID, result, runErr, services.Clock().Now()))

	out := cmd.OutOrStdout()
	switch {
	case errors.Is(runErr, crawler.ErrConfiguration):
		return runErr
	case errors.Is(runErr, crawler.ErrNoResults) || (runErr == nil && result.Empty()):
		fmt.Fprintln(out, "no results")
		return nil
	case result.Empty():
		return runErr
	}

	// A canceled crawl still exports what it gathered before returning the error.
	artifacts, err := services.Exporter().Export(context.WithoutCancel(cmd.Context()), "", opts.query, result)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	fmt.Fprintf(out, "%d jobs, %d links over %d levels\n", len(result.Records), len(result.Edges), result.Levels)
	fmt.Fprintf(out, "csv:   %s\n", artifacts.CSV)
	fmt.Fprintf(out, "graph: %s\n", artifacts.Graph)
	return runErr
}
