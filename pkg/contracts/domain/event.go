package domain

import (
	"time"
)

// Event represents a market-relevant observation ingested from the outside
// world: a policy announcement, a data release, anything that can surprise.
// RawData carries the numeric fields transform expressions evaluate against.
type Event struct {
	ID          string             `json:"id" validate:"required,uuid"`
	Timestamp   time.Time          `json:"timestamp" validate:"required"`
	Type        string             `json:"type" validate:"required"`
	Subtype     string             `json:"subtype,omitempty"`
	Description string             `json:"description" validate:"required"`
	Tags        []string           `json:"tags,omitempty"`
	RawData     map[string]float64 `json:"raw_data,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
}
