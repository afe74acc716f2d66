// Package marketdata defines the market-data provider contract the causal
// engine consumes, plus the node registry, a Yahoo chart-API client and the
// weekly resampling used for propagation checks.
package marketdata

import (
	"time"
)

// Point is one dated observation.
type Point struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// Series is a date-ordered sequence of observations. An empty series means
// "no data", which providers use for expected gaps instead of an error.
type Series []Point

// IsEmpty reports whether the series has no observations.
func (s Series) IsEmpty() bool {
	return len(s) == 0
}

// First returns the earliest observation. Only valid on a non-empty series.
func (s Series) First() Point {
	return s[0]
}

// Last returns the latest observation. Only valid on a non-empty series.
func (s Series) Last() Point {
	return s[len(s)-1]
}

// At returns the value on an exact calendar date.
func (s Series) At(date time.Time) (float64, bool) {
	day := Day(date)
	for _, p := range s {
		if p.Date.Equal(day) {
			return p.Value, true
		}
	}
	return 0, false
}

// Values returns the raw observation values in order.
func (s Series) Values() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Value
	}
	return out
}

// Day truncates a timestamp to UTC midnight, the granularity all series use.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
