package domain

import (
	"time"
)

// PropagationStatus is the lifecycle state of a propagation record.
type PropagationStatus string

const (
	PropagationPending    PropagationStatus = "pending"
	PropagationMonitoring PropagationStatus = "monitoring"
	PropagationCompleted  PropagationStatus = "completed"
	PropagationNoResponse PropagationStatus = "no_response"
)

// IsTerminal reports whether the status admits no further transitions.
func (s PropagationStatus) IsTerminal() bool {
	return s == PropagationCompleted || s == PropagationNoResponse
}

// Direction is the expected sign of a downstream market response.
type Direction string

const (
	DirectionPositive Direction = "positive"
	DirectionNegative Direction = "negative"
	// DirectionUnknown means the baselines carry no entry for the edge.
	DirectionUnknown Direction = ""
)

// MatchOutcome records whether an observed move agreed with the expected
// direction. Unknown means the record has not been evaluated against data yet.
type MatchOutcome string

const (
	MatchUnknown MatchOutcome = "unknown"
	Matched      MatchOutcome = "matched"
	NotMatched   MatchOutcome = "not_matched"
)

// PropagationRecord tracks one hypothesized downstream effect of a shock: the
// edge it travels, the expected lag/direction/magnitude, and what the market
// actually did inside the monitoring window. Mutated in place by checks.
type PropagationRecord struct {
	ID                string            `json:"id" validate:"required,uuid"`
	SignalID          string            `json:"signal_id" validate:"required,uuid"`
	SourceNode        string            `json:"source_node" validate:"required"`
	TargetNode        string            `json:"target_node" validate:"required"`
	ExpectedLagWeeks  int               `json:"expected_lag_weeks"`
	ExpectedDirection Direction         `json:"expected_direction"`
	ExpectedMagnitude *float64          `json:"expected_magnitude,omitempty"`
	ActualChange      *float64          `json:"actual_change,omitempty"`
	ActualLagWeeks    *int              `json:"actual_lag_weeks,omitempty"`
	Match             MatchOutcome      `json:"propagation_matched"`
	Status            PropagationStatus `json:"status"`
	MonitoredFrom     time.Time         `json:"monitored_from"`
	MonitoredUntil    time.Time         `json:"monitored_until"`
	CreatedAt         time.Time         `json:"created_at"`
}
