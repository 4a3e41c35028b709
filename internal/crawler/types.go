package crawler

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// Phase represents the lifecycle state of a crawl.
type Phase string

// Crawl phases. A crawl never enters an error phase once it is running.
const (
	PhaseIdle      Phase = "idle"
	PhaseRunning   Phase = "running"
	PhaseCompleted Phase = "completed"
)

// Link is a hyperlink found inside a document body.
type Link struct {
	Href string `json:"href"`
	Text string `json:"text"`
}

// Edge records that Target was discovered while scanning Source.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// JobRecord is produced once per first-seen canonical job URL.
type JobRecord struct {
	Title          string `json:"title"`
	URL            string `json:"url"`
	Description    string `json:"description"`
	PostingAgeDays *int   `json:"posting_age_days,omitempty"`
	Depth          int    `json:"depth"`
	Source         string `json:"source"`
}

// PostingAge renders the age as "<N> days ago", or "" when unknown.
func (r JobRecord) PostingAge() string {
	if r.PostingAgeDays == nil {
		return ""
	}
	return fmt.Sprintf("%d days ago", *r.PostingAgeDays)
}

// Summary crops the description to limit runes, appending "..." when cropped.
func (r JobRecord) Summary(limit int) string {
	if limit <= 0 || utf8.RuneCountInString(r.Description) <= limit {
		return r.Description
	}
	runes := []rune(r.Description)
	return string(runes[:limit]) + "..."
}

// Detail is the structured data pulled from a job page.
type Detail struct {
	Description    string
	PostingAgeDays *int
}

// Request is the logical crawl invocation.
type Request struct {
	Query    string   `json:"query"`
	Keywords []string `json:"keywords,omitempty"`
	MaxDepth int      `json:"max_depth"`
}

// CrawlState is the complete state of one crawl invocation. It is owned by
// the engine and handed to callers between steps.
type CrawlState struct {
	Phase    Phase       `json:"phase"`
	Seed     string      `json:"seed"`
	Depth    int         `json:"depth"`
	MaxDepth int         `json:"max_depth"`
	Keywords []string    `json:"keywords"`
	Frontier []string    `json:"frontier"`
	Visited  *VisitedSet `json:"-"`
	Edges    []Edge      `json:"edges"`
	Records  []JobRecord `json:"records"`
}

// Clone returns a deep copy so a step can build on it without touching the original.
func (s CrawlState) Clone() CrawlState {
	out := s
	out.Keywords = append([]string(nil), s.Keywords...)
	out.Frontier = append([]string(nil), s.Frontier...)
	out.Edges = append([]Edge(nil), s.Edges...)
	out.Records = append([]JobRecord(nil), s.Records...)
	out.Visited = s.Visited.Clone()
	return out
}

// Done reports whether the crawl has completed.
func (s CrawlState) Done() bool {
	return s.Phase == PhaseCompleted
}

// Result is the output of a finished crawl.
type Result struct {
	Seed      string        `json:"seed"`
	Records   []JobRecord   `json:"records"`
	Edges     []Edge        `json:"edges"`
	Levels    int           `json:"levels"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// Empty reports the "no results" condition: the crawl ran but recorded nothing.
func (r Result) Empty() bool {
	return len(r.Records) == 0
}

// ResultFromState converts a completed state into a Result.
func ResultFromState(state CrawlState) Result {
	return Result{
		Seed:    state.Seed,
		Records: append([]JobRecord(nil), state.Records...),
		Edges:   append([]Edge(nil), state.Edges...),
		Levels:  state.Depth,
	}
}
