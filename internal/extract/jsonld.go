package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// StructuredDataSelector locates the embedded JSON-LD block.
const StructuredDataSelector = `script[type="application/ld+json"]`

// ErrNoStructuredData is returned when a page carries no JSON-LD block.
var ErrNoStructuredData = errors.New("no structured data block")

// JobPosting holds the fields read from a JSON-LD JobPosting block.
type JobPosting struct {
	Description string
	// DatePosted is the posting date at midnight UTC; zero when absent or malformed.
	DatePosted time.Time
}

// HasDate reports whether a posting date was found.
func (p JobPosting) HasDate() bool {
	return !p.DatePosted.IsZero()
}

// ParseJobPosting reads the first JSON-LD block of markup. A malformed date is
// not an error: the description is still returned with a zero DatePosted.
func ParseJobPosting(markup string) (JobPosting, error) {
	doc, err := Parse(markup)
	if err != nil {
		return JobPosting{}, err
	}
	blocks := doc.Elements(StructuredDataSelector)
	if len(blocks) == 0 {
		return JobPosting{}, ErrNoStructuredData
	}
	raw := strings.TrimSpace(blocks[0].Text())
	if raw == "" {
		return JobPosting{}, ErrNoStructuredData
	}
	var payload any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return JobPosting{}, fmt.Errorf("decode structured data: %w", err)
	}
	fields, ok := firstObject(payload)
	if !ok {
		return JobPosting{}, fmt.Errorf("structured data is %T, want object", payload)
	}
	posting := JobPosting{
		Description: strings.TrimSpace(stringField(fields, "description")),
	}
	if date, err := ParseDatePosted(stringField(fields, "datePosted")); err == nil {
		posting.DatePosted = date
	}
	return posting, nil
}

// ParseDatePosted keeps the date portion of an ISO-8601 value and parses it.
func ParseDatePosted(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errors.New("empty date")
	}
	if idx := strings.IndexByte(raw, 'T'); idx >= 0 {
		raw = raw[:idx]
	}
	date, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse datePosted: %w", err)
	}
	return date, nil
}

func firstObject(payload any) (map[string]any, bool) {
	switch v := payload.(type) {
	case map[string]any:
		return v, true
	case []any:
		for _, item := range v {
			if obj, ok := item.(map[string]any); ok {
				return obj, true
			}
		}
	}
	return nil, false
}

func stringField(fields map[string]any, key string) string {
	if s, ok := fields[key].(string); ok {
		return s
	}
	return ""
}
