// Package signals computes surprise signals from raw events and classifies
// them as shocks against each transform's historical distribution.
package signals

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"tremor/internal/config"
)

// Detect classifies a signal value as a shock relative to its history.
//
// With fewer than config.MinHistoryForZScore historical values the z-score is
// undefined (nil) and the decision falls back to the absolute-magnitude rule.
// A zero sample standard deviation falls back the same way so a division by
// zero can never propagate. Otherwise the z-score uses the Bessel-corrected
// sample standard deviation and the shock cutoff is |z| > thresholdSD.
//
// Detect is a pure function: no side effects, deterministic, independent of
// any persistence.
func Detect(value float64, history []float64, thresholdSD, absoluteThreshold float64) (*float64, bool) {
	if len(history) < config.MinHistoryForZScore {
		return nil, math.Abs(value) > absoluteThreshold
	}

	mean, std := stat.MeanStdDev(history, nil)
	if std == 0 {
		return nil, math.Abs(value) > absoluteThreshold
	}

	z := (value - mean) / std
	return &z, math.Abs(z) > thresholdSD
}
