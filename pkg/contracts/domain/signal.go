package domain

import (
	"time"
)

// Signal is one transform applied to one event: the computed surprise value,
// its z-score against the transform's history (nil when history is too short
// or degenerate), and the shock classification. Immutable once created.
type Signal struct {
	ID          string    `json:"id" validate:"required,uuid"`
	EventID     string    `json:"event_id" validate:"required,uuid"`
	TransformID string    `json:"transform_id" validate:"required,uuid"`
	Timestamp   time.Time `json:"timestamp" validate:"required"`
	Value       float64   `json:"value"`
	ZScore      *float64  `json:"z_score,omitempty"`
	IsShock     bool      `json:"is_shock"`
	CreatedAt   time.Time `json:"created_at"`
}
