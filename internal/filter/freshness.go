package filter

import (
	"fmt"
	"strings"
	"time"
)

// neverFresh is the sentinel age for missing or unparsable timestamps.
const neverFresh = 100 * 365 * 24 * time.Hour

// Evaluator decides whether an item's last activity falls inside the rolling
// freshness window.
type Evaluator struct {
	maxAgeDays int
	now        func() time.Time
}

// NewEvaluator builds an evaluator with the configured window in days.
func NewEvaluator(maxAgeDays int) *Evaluator {
	return &Evaluator{maxAgeDays: maxAgeDays, now: time.Now}
}

// AgeOf parses an ISO-8601 timestamp and returns how long ago it was.
// Missing or unparsable timestamps count as infinitely old, never as an error:
// an item the source cannot date must not pass the freshness gate.
func (e *Evaluator) AgeOf(ts string) time.Duration {
	t, ok := parseTimestamp(ts)
	if !ok {
		return neverFresh
	}
	age := e.now().UTC().Sub(t)
	if age < 0 {
		return 0
	}
	return age
}

// IsFresh reports whether the timestamp is inside the window. The boundary is
// inclusive: an item exactly maxAgeDays old still counts.
func (e *Evaluator) IsFresh(ts string) bool {
	return e.AgeOf(ts) <= time.Duration(e.maxAgeDays)*24*time.Hour
}

// Label buckets the age into a human string for display only.
func (e *Evaluator) Label(ts string) string {
	age := e.AgeOf(ts)
	switch {
	case age >= neverFresh:
		return "unknown"
	case age < time.Hour:
		return "<1h"
	case age < 24*time.Hour:
		return "today"
	case age < 48*time.Hour:
		return "yesterday"
	default:
		return fmt.Sprintf("%d days ago", int(age/(24*time.Hour)))
	}
}

func parseTimestamp(ts string) (time.Time, bool) {
	ts = strings.TrimSpace(ts)
	if ts == "" {
		return time.Time{}, false
	}
	if strings.HasSuffix(ts, "Z") {
		ts = strings.TrimSuffix(ts, "Z") + "+00:00"
	}
	for _, layout := range []string{"2006-01-02T15:04:05-07:00", "2006-01-02T15:04:05.999999999-07:00", "2006-01-02"} {
		if t, err := time.Parse(layout, ts); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
