// Package progress carries per-level crawl progress from the engine to
// pluggable sinks. The Hub batches events on a background goroutine so the
// crawl never blocks on a slow consumer.
package progress
