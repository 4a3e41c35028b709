package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobgraph-crawler/internal/progress"
)

const (
	defaultEventLimit = 20
	maxEventLimit     = 200
)

// ProgressSource answers progress queries; sinks.SnapshotSink implements it.
type ProgressSource interface {
	Latest(crawlID string) (progress.Event, bool)
	History(crawlID string, limit, offset int) []progress.Event
}

// ProgressHandler exposes read-only crawl progress endpoints.
type ProgressHandler struct {
	source ProgressSource
	logger *zap.Logger
}

// NewProgressHandler wires the progress source and logger.
func NewProgressHandler(source ProgressSource, logger *zap.Logger) *ProgressHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressHandler{source: source, logger: logger}
}

// Latest handles GET /v1/crawls/{crawl_id}/progress. It returns
// {"progress": {...}} on success, 404 when nothing was reported for the crawl,
// or 503 when progress reporting is disabled.
func (h *ProgressHandler) Latest(w http.ResponseWriter, r *http.Request) {
	if h.source == nil {
		writeError(w, http.StatusServiceUnavailable, "progress reporting unavailable")
		return
	}
	crawlID := chi.URLParam(r, "crawl_id")
	evt, ok := h.source.Latest(crawlID)
	if !ok {
		writeError(w, http.StatusNotFound, "no progress for crawl")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"progress": evt})
}

// History handles GET /v1/crawls/{crawl_id}/progress/events?limit=&offset=,
// newest first. It returns 400 for invalid paging parameters.
func (h *ProgressHandler) History(w http.ResponseWriter, r *http.Request) {
	if h.source == nil {
		writeError(w, http.StatusServiceUnavailable, "progress reporting unavailable")
		return
	}
	limit, offset, err := parseLimitOffset(r, defaultEventLimit, maxEventLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	crawlID := chi.URLParam(r, "crawl_id")
	writeJSON(w, http.StatusOK, map[string]any{
		"events": h.source.History(crawlID, limit, offset),
	})
}

func parseLimitOffset(r *http.Request, def, maxLimit int) (int, int, error) {
	q := r.URL.Query()
	limit := def
	if limStr := q.Get("limit"); limStr != "" {
		val, err := strconv.Atoi(limStr)
		if err != nil || val <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
		if val > maxLimit {
			val = maxLimit
		}
		limit = val
	}
	offset := 0
	if offStr := q.Get("offset"); offStr != "" {
		val, err := strconv.Atoi(offStr)
		if err != nil || val < 0 {
			return 0, 0, errors.New("invalid offset")
		}
		offset = val
	}
	return limit, offset, nil
}
