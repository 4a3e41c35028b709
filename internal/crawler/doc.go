// Package crawler implements the bounded-depth job link crawler: URL
// filtering and canonicalization, the visited set, seed construction, and the
// engine that expands the frontier one depth level per step while recording
// job postings and the traversal edges.
package crawler
