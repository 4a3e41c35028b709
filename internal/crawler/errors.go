package crawler

import (
	"errors"
	"fmt"
)

// Error kinds. Only ErrConfiguration stops a crawl, and only before it starts.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrNetwork       = errors.New("network error")
	ErrParse         = errors.New("parse error")
	ErrNoResults     = errors.New("no results")
)

// Service-mode errors.
var (
	// ErrNotFound is returned by stores for unknown crawl IDs.
	ErrNotFound = errors.New("crawl not found")
	// ErrQueueClosed is returned by a queue that no longer hands out work.
	ErrQueueClosed = errors.New("queue closed")
)

// ConfigurationError reports an invalid crawl request.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrConfiguration.
func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

// FetchFailure is returned when a page cannot be retrieved with HTTP 200.
type FetchFailure struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchFailure) Error() string {
	switch {
	case e.Err != nil && e.StatusCode != 0:
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	default:
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
}

// Is matches ErrNetwork.
func (e *FetchFailure) Is(target error) bool {
	return target == ErrNetwork
}

func (e *FetchFailure) Unwrap() error {
	return e.Err
}

// ParseError reports markup or structured data that could not be interpreted.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("parse: %v", e.Err)
	}
	return fmt.Sprintf("parse %s: %v", e.URL, e.Err)
}

// Is matches ErrParse.
func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
