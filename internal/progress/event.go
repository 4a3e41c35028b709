package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/JakeFAU/jobgraph-crawler/internal/crawler"
)

// Stage denotes the milestone an Event reports.
type Stage string

// Supported progress stages.
const (
	StageCrawlStart Stage = "CRAWL_START"
	StageLevelDone  Stage = "LEVEL_DONE"
	StageCrawlDone  Stage = "CRAWL_DONE"
	StageCrawlError Stage = "CRAWL_ERROR"
)

// Event is a snapshot of one crawl after a milestone.
type Event struct {
	CrawlID  string        `json:"crawl_id"`
	TS       time.Time     `json:"ts"`
	Stage    Stage         `json:"stage"`
	Depth    int           `json:"depth"`
	MaxDepth int           `json:"max_depth"`
	Frontier int           `json:"frontier"`
	Records  int           `json:"records"`
	Edges    int           `json:"edges"`
	Dur      time.Duration `json:"duration,omitempty"`
	// Note carries low-volume context such as error text.
	Note string `json:"note,omitempty"`
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.CrawlID == "" {
		return errors.New("crawl id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageCrawlStart, StageLevelDone, StageCrawlDone:
	case StageCrawlError:
		if e.Note == "" {
			return errors.New("crawl error requires a note")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Depth < 0 || e.Frontier < 0 || e.Records < 0 || e.Edges < 0 {
		return errors.New("counters must be >= 0")
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// FromState builds the event for a state handed to a crawler.Observer.
func FromState(crawlID string, state crawler.CrawlState, ts time.Time) Event {
	stage := StageLevelDone
	if state.Depth == 0 && !state.Done() {
		stage = StageCrawlStart
	}
	return Event{
		CrawlID:  crawlID,
		TS:       ts,
		Stage:    stage,
		Depth:    state.Depth,
		MaxDepth: state.MaxDepth,
		Frontier: len(state.Frontier),
		Records:  len(state.Records),
		Edges:    len(state.Edges),
	}
}

// Done builds the terminal event for a finished crawl.
func Done(crawlID string, result crawler.Result, err error, ts time.Time) Event {
	evt := Event{
		CrawlID: crawlID,
		TS:      ts,
		Stage:   StageCrawlDone,
		Depth:   result.Levels,
		Records: len(result.Records),
		Edges:   len(result.Edges),
		Dur:     result.Duration,
	}
	if err != nil {
		evt.Stage = StageCrawlError
		evt.Note = err.Error()
	}
	return evt
}
