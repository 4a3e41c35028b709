package crawler

import (
	"fmt"
	"strings"
)

// Depth bounds accepted for a crawl. Each level multiplies the work by the
// number of job links per page, so the ceiling is kept low.
const (
	MinDepth     = 1
	MaxDepth     = 4
	DefaultDepth = 2
)

// FrontierMode selects which links seed the next depth level.
type FrontierMode string

// Supported frontier modes.
const (
	// FrontierCandidates follows every candidate link (listing pages and job views).
	FrontierCandidates FrontierMode = "candidates"
	// FrontierRecordable follows only job-view links.
	FrontierRecordable FrontierMode = "recordable"
)

// ParseFrontierMode converts a config string into a FrontierMode.
func ParseFrontierMode(raw string) (FrontierMode, error) {
	switch FrontierMode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FrontierCandidates:
		return FrontierCandidates, nil
	case FrontierRecordable:
		return FrontierRecordable, nil
	default:
		return "", fmt.Errorf("unknown frontier mode %q", raw)
	}
}

func (m FrontierMode) admits(kind LinkKind) bool {
	switch kind {
	case LinkRecordable:
		return true
	case LinkCandidate:
		return m != FrontierRecordable
	default:
		return false
	}
}

// Config holds the settings for the crawl engine. It is decoupled from Viper
// so the engine can be configured and tested independently.
type Config struct {
	Concurrency    int
	DefaultDepth   int
	FrontierMode   FrontierMode
	ListingMarkers []string
	ViewMarker     string
	BlockedHosts   []string
	Seed           SeedTemplate
}

// Validate checks for obviously bad configuration combinations.
func (c Config) Validate() error {
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be > 0")
	}
	if c.DefaultDepth < MinDepth || c.DefaultDepth > MaxDepth {
		return fmt.Errorf("default depth must be within [%d,%d]", MinDepth, MaxDepth)
	}
	if _, err := ParseFrontierMode(string(c.FrontierMode)); err != nil {
		return err
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.DefaultDepth == 0 {
		c.DefaultDepth = DefaultDepth
	}
	if c.FrontierMode == "" {
		c.FrontierMode = FrontierCandidates
	}
	return c
}
