package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobgraph-crawler/internal/crawler"
	"github.com/JakeFAU/jobgraph-crawler/internal/graph"
	"github.com/JakeFAU/jobgraph-crawler/internal/metrics"
)

const (
	defaultRequestTimeout = 60 * time.Second
	defaultEnqueueTimeout = 5 * time.Second
)

// Validator checks a request without running it; the crawl engine's Start
// satisfies it.
type Validator interface {
	Start(req crawler.Request) (crawler.CrawlState, error)
}

// Enqueuer hands accepted crawls to the worker pool.
type Enqueuer interface {
	Enqueue(ctx context.Context, item crawler.QueueItem) error
}

// Canceler stops a running crawl and reports whether it was running.
type Canceler interface {
	Cancel(crawlID string) bool
}

// Options tunes the server.
type Options struct {
	// APIKey, when set, is required on every request.
	APIKey         string
	RequestTimeout time.Duration
	EnqueueTimeout time.Duration
	Graph          graph.Options
}

// Deps are the collaborators of a Server. Canceler and Progress are optional.
type Deps struct {
	Store     crawler.CrawlStore
	Enqueuer  Enqueuer
	Validator Validator
	Canceler  Canceler
	Progress  ProgressSource
	IDGen     crawler.IDGenerator
	Clock     crawler.Clock
}

// Server wires HTTP handlers to the dispatcher and stores.
type Server struct {
	router chi.Router
	deps   Deps
	opts   Options
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(deps Deps, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	if opts.EnqueueTimeout <= 0 {
		opts.EnqueueTimeout = defaultEnqueueTimeout
	}
	metrics.Init()
	s := &Server{deps: deps, opts: opts, logger: logger}
	progress := NewProgressHandler(deps.Progress, logger)

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(opts.RequestTimeout))
	if opts.APIKey != "" {
		r.Use(apiKeyMiddleware(opts.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1/crawls", func(r chi.Router) {
		r.Post("/", s.submitCrawl)
		r.Route("/{crawl_id}", func(r chi.Router) {
			r.Get("/status", s.getCrawlStatus)
			r.Get("/result", s.getCrawlResult)
			r.Get("/graph", s.getCrawlGraph)
			r.Post("/cancel", s.cancelCrawl)
			r.Get("/progress", progress.Latest)
			r.Get("/progress/events", progress.History)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if s.deps.Store == nil || s.deps.Enqueuer == nil {
		writeError(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type crawlRequest struct {
	Query    string   `json:"query"`
	Keywords []string `json:"keywords"`
	MaxDepth *int     `json:"max_depth"`
}

func (s *Server) submitCrawl(w http.ResponseWriter, r *http.Request) {
	var body crawlRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req := crawler.Request{
		Query:    body.Query,
		Keywords: body.Keywords,
		MaxDepth: valueOrDefault(body.MaxDepth, 0),
	}
	state, err := s.deps.Validator.Start(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.MaxDepth = state.MaxDepth
	req.Keywords = state.Keywords

	crawlID, err := s.enqueueCrawl(r.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"crawl_id": crawlID,
		"status":   crawler.RunStatusQueued,
		"seed":     state.Seed,
	})
}

func (s *Server) enqueueCrawl(ctx context.Context, req crawler.Request) (string, error) {
	crawlID, err := s.deps.IDGen.NewID()
	if err != nil {
		return "", fmt.Errorf("generate crawl id: %w", err)
	}
	now := s.deps.Clock.Now()
	run := crawler.Run{
		ID:        crawlID,
		Status:    crawler.RunStatusQueued,
		Submitted: now,
		Request:   req,
	}
	if err := s.deps.Store.CreateCrawl(ctx, run); err != nil {
		return "", fmt.Errorf("create crawl: %w", err)
	}
	queueCtx, cancel := context.WithTimeout(ctx, s.opts.EnqueueTimeout)
	defer cancel()
	item := crawler.QueueItem{
		CrawlID:   crawlID,
		Request:   req,
		Submitted: now.Unix(),
	}
	if err := s.deps.Enqueuer.Enqueue(queueCtx, item); err != nil {
		if updateErr := s.deps.Store.UpdateCrawlStatus(
			context.WithoutCancel(ctx), crawlID, crawler.RunStatusFailed, "enqueue failed", crawler.RunCounters{},
		); updateErr != nil {
			s.logger.Warn("mark unqueued crawl failed", zap.String("crawl_id", crawlID), zap.Error(updateErr))
		}
		return "", fmt.Errorf("enqueue crawl: %w", err)
	}
	s.logger.Info("crawl queued", zap.String("crawl_id", crawlID), zap.String("query", req.Query))
	return crawlID, nil
}

func (s *Server) getCrawlStatus(w http.ResponseWriter, r *http.Request) {
	run, ok := s.loadCrawl(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"crawl": run})
}

func (s *Server) getCrawlResult(w http.ResponseWriter, r *http.Request) {
	run, result, ok := s.loadResult(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"crawl_id": run.ID,
		"status":   run.Status,
		"result":   result,
	})
}

func (s *Server) getCrawlGraph(w http.ResponseWriter, r *http.Request) {
	_, result, ok := s.loadResult(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, graph.FromResult(result, s.opts.Graph))
}

func (s *Server) cancelCrawl(w http.ResponseWriter, r *http.Request) {
	run, ok := s.loadCrawl(w, r)
	if !ok {
		return
	}
	if s.deps.Canceler != nil && s.deps.Canceler.Cancel(run.ID) {
		writeJSON(w, http.StatusAccepted, map[string]string{"crawl_id": run.ID, "status": "canceling"})
		return
	}
	if run.Status.IsTerminal() {
		writeError(w, http.StatusConflict, fmt.Sprintf("crawl already %s", run.Status))
		return
	}
	if err := s.deps.Store.UpdateCrawlStatus(
		r.Context(), run.ID, crawler.RunStatusCanceled, "canceled via API", run.Counters,
	); err != nil {
		s.logger.Error("cancel crawl failed", zap.String("crawl_id", run.ID), zap.Error(err))
		writeError(w, http.StatusConflict, "crawl could not be canceled")
		return
	}
	// A worker may have dequeued the crawl since the first check. Workers
	// register before marking a crawl running, so either this call reaches
	// it or its running transition fails on the canceled run.
	if s.deps.Canceler != nil && s.deps.Canceler.Cancel(run.ID) {
		writeJSON(w, http.StatusAccepted, map[string]string{"crawl_id": run.ID, "status": "canceling"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"crawl_id": run.ID,
		"status":   string(crawler.RunStatusCanceled),
	})
}

func (s *Server) loadCrawl(w http.ResponseWriter, r *http.Request) (crawler.Run, bool) {
	crawlID := chi.URLParam(r, "crawl_id")
	run, err := s.deps.Store.GetCrawl(r.Context(), crawlID)
	if err != nil {
		s.writeStoreError(w, err, "crawl not found")
		return crawler.Run{}, false
	}
	return run, true
}

func (s *Server) loadResult(w http.ResponseWriter, r *http.Request) (crawler.Run, crawler.Result, bool) {
	run, ok := s.loadCrawl(w, r)
	if !ok {
		return crawler.Run{}, crawler.Result{}, false
	}
	result, err := s.deps.Store.GetResult(r.Context(), run.ID)
	if err != nil {
		if errors.Is(err, crawler.ErrNotFound) && !run.Status.IsTerminal() {
			writeError(w, http.StatusConflict, fmt.Sprintf("crawl is %s", run.Status))
			return crawler.Run{}, crawler.Result{}, false
		}
		s.writeStoreError(w, err, "result not found")
		return crawler.Run{}, crawler.Result{}, false
	}
	return run, result, true
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error, notFound string) {
	if errors.Is(err, crawler.ErrNotFound) {
		writeError(w, http.StatusNotFound, notFound)
		return
	}
	s.logger.Error("crawl store failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "crawl store unavailable")
}

func valueOrDefault[T any](ptr *T, def T) T {
	if ptr == nil {
		return def
	}
	return *ptr
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestID returns the request ID stored by the server middleware.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	logger = logger.Named("http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("request_id", RequestID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("panic", rec), zap.String("path", r.URL.Path))
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/healthz" || r.URL.Path == "/readyz" {
				next.ServeHTTP(w, r)
				return
			}
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
