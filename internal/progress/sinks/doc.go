// Package sinks implements progress consumers: a structured log writer and an
// in-memory snapshot store that backs the progress endpoints.
package sinks
