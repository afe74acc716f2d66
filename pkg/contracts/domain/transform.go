package domain

import (
	"time"
)

// SignalTransform maps an event category onto a causal-network node. Its
// expression computes the surprise magnitude from an event's raw data, and
// ThresholdSD controls the z-score shock cutoff for the resulting signals.
type SignalTransform struct {
	ID          string    `json:"id" validate:"required,uuid"`
	Name        string    `json:"name" validate:"required"`
	Description string    `json:"description,omitempty"`
	EventTypes  []string  `json:"event_types" validate:"required,min=1"`
	Expression  string    `json:"transform_expression" validate:"required"`
	Unit        string    `json:"unit,omitempty"`
	NodeMapping string    `json:"node_mapping" validate:"required"`
	ThresholdSD float64   `json:"threshold_sd"`
	CreatedAt   time.Time `json:"created_at"`
}

// Matches reports whether this transform applies to the given event type.
func (t *SignalTransform) Matches(eventType string) bool {
	for _, et := range t.EventTypes {
		if et == eventType {
			return true
		}
	}
	return false
}
