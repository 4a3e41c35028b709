package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	Init()
	accepted := httpRequestsTotal.WithLabelValues(http.MethodPost, "202")
	conflict := httpRequestsTotal.WithLabelValues(http.MethodPost, "409")
	acceptedBefore := testutil.ToFloat64(accepted)
	conflictBefore := testutil.ToFloat64(conflict)

	r := chi.NewRouter()
	r.Use(Middleware)
	r.Post("/v1/crawls/{crawl_id}/cancel", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "crawl_id") == "done" {
			w.WriteHeader(http.StatusConflict)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})

	for _, id := range []string{"a1", "b2", "done"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/crawls/"+id+"/cancel", nil))
	}

	if got := testutil.ToFloat64(accepted) - acceptedBefore; got != 2 {
		t.Fatalf("202 count delta = %v, want 2", got)
	}
	if got := testutil.ToFloat64(conflict) - conflictBefore; got != 1 {
		t.Fatalf("409 count delta = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(httpRequestDurationSeconds, "http_request_duration_seconds"); n < 1 {
		t.Fatalf("expected duration series, got %d", n)
	}
}

func TestMiddlewareUnknownRoute(t *testing.T) {
	Init()
	rec := &responseWriter{ResponseWriter: httptest.NewRecorder(), status: http.StatusOK}
	Middleware(http.NotFoundHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	if rec.status != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.status)
	}
}
