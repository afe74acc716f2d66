package domain

import (
	"time"
)

// ConfidenceLevel grades how strongly an event study supports a causal claim.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
	ConfidenceNone   ConfidenceLevel = "none"
)

// RegressionResult holds the dose-response OLS output with robust inference.
type RegressionResult struct {
	Coefficient     float64 `json:"coefficient"`
	StdError        float64 `json:"std_error"`
	TStatistic      float64 `json:"t_statistic"`
	PValue          float64 `json:"p_value"`
	RSquared        float64 `json:"r_squared"`
	ConfIntLower    float64 `json:"conf_interval_lower"`
	ConfIntUpper    float64 `json:"conf_interval_upper"`
	Intercept       float64 `json:"intercept"`
	InterceptPValue float64 `json:"intercept_p_value"`
	NumObservations int     `json:"num_observations"`
}

// PlaceboResult holds one placebo regression. All fields are nil when the
// placebo could not be run (degenerate surprises, too few qualifying events);
// that is "unavailable", which the confidence verdict treats differently from
// a failed placebo.
type PlaceboResult struct {
	Coefficient *float64 `json:"coefficient"`
	PValue      *float64 `json:"p_value"`
	Passed      *bool    `json:"passed"`
}

// Available reports whether the placebo produced a verdict at all.
func (p PlaceboResult) Available() bool {
	return p.Passed != nil
}

// EventStudyDetail is the per-event row of an event study report. Excluded
// events keep their row with the reason so reports stay auditable.
type EventStudyDetail struct {
	EventID          string    `json:"event_id"`
	EventTimestamp   time.Time `json:"event_timestamp"`
	SurpriseValue    float64   `json:"surprise_value"`
	PreWindowReturn  *float64  `json:"pre_window_return"`
	PostWindowReturn *float64  `json:"post_window_return"`
	Excluded         bool      `json:"excluded"`
	ExclusionReason  string    `json:"exclusion_reason,omitempty"`
}

// StudyEvent pairs an event with the surprise a transform computed for it.
// This is the population unit of an event study.
type StudyEvent struct {
	EventID   string    `json:"event_id"`
	Timestamp time.Time `json:"timestamp"`
	Surprise  float64   `json:"surprise"`
}

// EventStudyResult is the immutable outcome of one event-study run for a
// transform-target pair. A new run produces a new result, never an update.
type EventStudyResult struct {
	ID                string             `json:"id" validate:"required,uuid"`
	TransformID       string             `json:"transform_id" validate:"required,uuid"`
	TargetNode        string             `json:"target_node" validate:"required"`
	PreWindowDays     int                `json:"pre_window_days"`
	PostWindowDays    int                `json:"post_window_days"`
	GapDays           int                `json:"gap_days"`
	OverlapBufferDays int                `json:"overlap_buffer_days"`
	NumEvents         int                `json:"num_events"`
	NumEventsUsed     int                `json:"num_events_used"`
	NumEventsExcluded int                `json:"num_events_excluded"`
	ExcludedEventIDs  []string           `json:"excluded_event_ids"`
	Regression        RegressionResult   `json:"regression"`
	PlaceboPreDrift   PlaceboResult      `json:"placebo_pre_drift"`
	PlaceboZero       PlaceboResult      `json:"placebo_zero_surprise"`
	IsCausal          bool               `json:"is_causal"`
	Confidence        ConfidenceLevel    `json:"confidence_level"`
	EventDetails      []EventStudyDetail `json:"event_details"`
	CreatedAt         time.Time          `json:"created_at"`
}
