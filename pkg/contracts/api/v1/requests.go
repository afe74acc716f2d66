// Package api contains API contract definitions for the tremor service.
// Version v1 represents the current stable API version.
package api

// Common request parameters

// DateRangeRequest represents a date range in requests
type DateRangeRequest struct {
	From string `json:"from" query:"from" validate:"omitempty,datetime=2006-01-02"`
	To   string `json:"to" query:"to" validate:"omitempty,datetime=2006-01-02"`
}

// Event API Requests

// EventCreateRequest represents a new observed event
type EventCreateRequest struct {
	Timestamp   string             `json:"timestamp" validate:"required"`
	Type        string             `json:"type" validate:"required"`
	Subtype     string             `json:"subtype,omitempty"`
	Description string             `json:"description,omitempty"`
	Tags        []string           `json:"tags,omitempty"`
	RawData     map[string]float64 `json:"raw_data" validate:"required,min=1"`
}

// Signal API Requests

// TransformCreateRequest represents a new signal transform definition
type TransformCreateRequest struct {
	Name        string   `json:"name" validate:"required"`
	Description string   `json:"description,omitempty"`
	EventTypes  []string `json:"event_types" validate:"required,min=1"`
	Expression  string   `json:"transform_expression" validate:"required"`
	Unit        string   `json:"unit,omitempty"`
	NodeMapping string   `json:"node_mapping" validate:"required"`
	ThresholdSD float64  `json:"threshold_sd" validate:"omitempty,gt=0"`
}

// Monitor API Requests

// MonitorListRequest filters the propagation record listing
type MonitorListRequest struct {
	Status string `json:"status" query:"status" validate:"omitempty,oneof=pending monitoring completed no_response"`
}

// Causal Test API Requests

// EventStudyRequest represents a request to run an event study
type EventStudyRequest struct {
	TransformID        string  `json:"transform_id" validate:"required,uuid"`
	TargetNode         string  `json:"target_node" validate:"required"`
	PreWindowDays      int     `json:"pre_window_days" validate:"omitempty,min=1,max=90"`
	PostWindowDays     int     `json:"post_window_days" validate:"omitempty,min=1,max=90"`
	GapDays            int     `json:"gap_days" validate:"omitempty,min=0,max=30"`
	ExcludeOverlapping *bool   `json:"exclude_overlapping,omitempty"`
	OverlapBufferDays  int     `json:"overlap_buffer_days" validate:"omitempty,min=1,max=60"`
	SignificanceLevel  float64 `json:"significance_level" validate:"omitempty,gt=0,lt=1"`
}
