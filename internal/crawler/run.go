package crawler

import "time"

// RunStatus represents the lifecycle state of a submitted crawl.
type RunStatus string

// Run status values persisted in the crawl store.
const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusEmpty     RunStatus = "no_results"
	RunStatusCanceled  RunStatus = "canceled"
	RunStatusFailed    RunStatus = "failed"
)

// Run is the metadata persisted for each submitted crawl.
type Run struct {
	ID        string      `json:"id"`
	Status    RunStatus   `json:"status"`
	Submitted time.Time   `json:"submitted_at"`
	Started   *time.Time  `json:"started_at,omitempty"`
	Finished  *time.Time  `json:"finished_at,omitempty"`
	ErrorText string      `json:"error_text,omitempty"`
	Request   Request     `json:"request"`
	Counters  RunCounters `json:"counters"`
}

// RunCounters summarises a crawl.
type RunCounters struct {
	Records int `json:"records"`
	Edges   int `json:"edges"`
	Levels  int `json:"levels"`
}

// CountersFor derives counters from a result.
func CountersFor(result Result) RunCounters {
	return RunCounters{
		Records: len(result.Records),
		Edges:   len(result.Edges),
		Levels:  result.Levels,
	}
}

// IsTerminal reports whether the status is final.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusSucceeded, RunStatusEmpty, RunStatusCanceled, RunStatusFailed:
		return true
	default:
		return false
	}
}

// CrawlCompleted is the event published when a crawl reaches a terminal status.
type CrawlCompleted struct {
	CrawlID    string      `json:"crawl_id"`
	Status     RunStatus   `json:"status"`
	Query      string      `json:"query"`
	Seed       string      `json:"seed"`
	Counters   RunCounters `json:"counters"`
	Artifacts  []string    `json:"artifacts,omitempty"`
	FinishedAt time.Time   `json:"finished_at"`
}

// Attributes returns the message attributes used for subscription filtering.
func (e CrawlCompleted) Attributes() map[string]string {
	return map[string]string{
		"event":    "crawl.completed",
		"crawl_id": e.CrawlID,
		"status":   string(e.Status),
	}
}
