package config

// Shock detection defaults.
const (
	// MinHistoryForZScore is the number of historical signals needed before
	// switching from the absolute-magnitude rule to z-score detection.
	MinHistoryForZScore = 5

	DefaultShockThresholdSD       = 2.0
	DefaultAbsoluteShockThreshold = 1.0
)

// Event study window defaults in calendar days.
const (
	DefaultPreWindowDays     = 5
	DefaultPostWindowDays    = 5
	DefaultGapDays           = 0
	DefaultOverlapBufferDays = 10
	DefaultSignificanceLevel = 0.05

	// FetchPadDays extends the market-data fetch span past the outermost
	// window boundaries so weekend gaps still resolve to a trading day.
	FetchPadDays = 10

	// MaxBoundarySearchDays bounds the nearest-trading-day search around a
	// window boundary date.
	MaxBoundarySearchDays = 7
)

// Confidence tier cutoffs for the event-study verdict. Calibrated values,
// kept as named constants rather than re-derived.
const (
	HighConfidencePValue    = 0.01
	HighConfidenceRSquared  = 0.15
	HighConfidenceMinEvents = 10

	MediumConfidencePValue    = 0.05
	MediumConfidenceMinEvents = 7

	LowConfidencePValue    = 0.10
	LowConfidenceMinEvents = 5

	// ZeroSurpriseStdFraction selects the near-zero-shock subsample: events
	// with |surprise| below this fraction of the surprise standard deviation.
	ZeroSurpriseStdFraction = 0.5

	// MinZeroSurpriseEvents is the smallest subsample the zero-surprise
	// placebo will run on; below it the placebo is reported unavailable.
	MinZeroSurpriseEvents = 3
)
