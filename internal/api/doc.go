// Package api hosts the HTTP server, middleware, and REST handlers of the
// crawl service. Notable routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/crawls to submit a crawl, POST /v1/crawls/{crawl_id}/cancel to stop one.
//   - GET /v1/crawls/{crawl_id}/status, /result, /graph for crawl output.
//   - GET /v1/crawls/{crawl_id}/progress and /progress/events for per-level progress.
package api
