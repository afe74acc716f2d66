package causal

import (
	"context"
	"math"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "tremor/internal/errors"
	"tremor/internal/marketdata"
	"tremor/pkg/contracts/domain"
)

type fakeStudyStore struct {
	studyEvents []domain.StudyEvent
	allEvents   []domain.Event
	transforms  []domain.SignalTransform
	saved       []*domain.EventStudyResult
}

func (s *fakeStudyStore) StudyEventsByTransform(ctx context.Context, transformID string) ([]domain.StudyEvent, error) {
	return s.studyEvents, nil
}

func (s *fakeStudyStore) EventsInRange(ctx context.Context, start, end time.Time) ([]domain.Event, error) {
	var out []domain.Event
	for _, ev := range s.allEvents {
		if !ev.Timestamp.Before(start) && !ev.Timestamp.After(end) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *fakeStudyStore) ListTransforms(ctx context.Context) ([]domain.SignalTransform, error) {
	return s.transforms, nil
}

func (s *fakeStudyStore) SaveStudyResult(ctx context.Context, result *domain.EventStudyResult) error {
	result.ID = "study-1"
	s.saved = append(s.saved, result)
	return nil
}

type fakeProvider struct {
	daily marketdata.Series
}

func (p *fakeProvider) FetchDaily(ctx context.Context, node string, start, end time.Time) (marketdata.Series, error) {
	return p.daily, nil
}

func (p *fakeProvider) FetchNodeSeries(ctx context.Context, node string, start, end time.Time) (marketdata.Series, error) {
	return p.daily, nil
}

// studyFixture builds N events 30 days apart with the given surprises, plus a
// continuous daily price path engineered so each event's pre-window log
// return is exactly pre[i] and its post-window log return exactly post[i].
func studyFixture(t *testing.T, surprises, pre, post []float64) ([]domain.StudyEvent, []domain.Event, marketdata.Series) {
	t.Helper()
	require.Len(t, pre, len(surprises))
	require.Len(t, post, len(surprises))

	base := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	events := make([]domain.StudyEvent, len(surprises))
	raw := make([]domain.Event, len(surprises))
	prices := map[time.Time]float64{}

	for i, s := range surprises {
		ts := base.AddDate(0, 0, 30*i)
		events[i] = domain.StudyEvent{EventID: eventID(i), Timestamp: ts, Surprise: s}
		raw[i] = domain.Event{ID: eventID(i), Timestamp: ts, Type: "inflation_release"}

		day := marketdata.Day(ts)
		for off := -10; off <= 15; off++ {
			var level float64
			switch {
			case off < 0:
				level = 100
			case off == 0:
				level = 100 * math.Exp(pre[i])
			default:
				level = 100 * math.Exp(pre[i]+post[i])
			}
			prices[day.AddDate(0, 0, off)] = level
		}
	}

	series := make(marketdata.Series, 0, len(prices))
	for d, v := range prices {
		series = append(series, marketdata.Point{Date: d, Value: v})
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })
	return events, raw, series
}

func eventID(i int) string {
	return string(rune('a'+i)) + "-event"
}

// surprise/noise vectors shared by the causal scenario. The noise pattern is
// sign-balanced and uncorrelated with the surprises so the pre-drift placebo
// stays clean.
var (
	causalSurprises = []float64{2.0, -1.5, 1.8, -2.2, 1.2, -1.0, 2.5, 0.1, -0.05, 0.02, 0.08, -0.1}
	noisePattern    = []float64{0.001, -0.001, -0.001, 0.001, 0.001, -0.001, -0.001, 0.001, 0.001, -0.001, -0.001, 0.001}
)

func causalPostReturns(beta float64) []float64 {
	post := make([]float64, len(causalSurprises))
	for i, s := range causalSurprises {
		post[i] = beta*s + noisePattern[i]
	}
	return post
}

func TestEventStudy_DetectsDoseResponse(t *testing.T) {
	events, raw, series := studyFixture(t, causalSurprises, noisePattern, causalPostReturns(0.02))
	store := &fakeStudyStore{studyEvents: events, allEvents: raw}
	engine := NewEventStudyEngine(store, &fakeProvider{daily: series}, 5, testLogger())

	result, err := engine.Run(context.Background(), EventStudyParams{
		TransformID:        "t-cpi",
		TargetNode:         "sp500_ret",
		ExcludeOverlapping: true,
	})
	require.NoError(t, err)

	assert.Equal(t, 12, result.NumEvents)
	assert.Equal(t, 12, result.NumEventsUsed)
	assert.Zero(t, result.NumEventsExcluded)

	assert.InDelta(t, 0.02, result.Regression.Coefficient, 0.001)
	assert.Less(t, result.Regression.PValue, 0.01)
	assert.Greater(t, result.Regression.RSquared, 0.9)

	require.True(t, result.PlaceboPreDrift.Available())
	assert.True(t, *result.PlaceboPreDrift.Passed, "no pre-event drift was built into the prices")
	require.True(t, result.PlaceboZero.Available())
	assert.True(t, *result.PlaceboZero.Passed)

	assert.True(t, result.IsCausal)
	assert.Equal(t, domain.ConfidenceHigh, result.Confidence)
	require.Len(t, store.saved, 1)
}

func TestEventStudy_RunIsIdempotent(t *testing.T) {
	events, raw, series := studyFixture(t, causalSurprises, noisePattern, causalPostReturns(0.02))
	store := &fakeStudyStore{studyEvents: events, allEvents: raw}
	engine := NewEventStudyEngine(store, &fakeProvider{daily: series}, 5, testLogger())

	params := EventStudyParams{TransformID: "t-cpi", TargetNode: "sp500_ret", ExcludeOverlapping: true}
	first, err := engine.Run(context.Background(), params)
	require.NoError(t, err)
	second, err := engine.Run(context.Background(), params)
	require.NoError(t, err)

	assert.Equal(t, first.Regression, second.Regression)
	assert.Equal(t, first.Confidence, second.Confidence)
	assert.Len(t, store.saved, 2, "each run persists its own result")
}

func TestEventStudy_PureNoiseIsNotCausal(t *testing.T) {
	surprises := []float64{2.0, -1.5, 1.8, -2.2, 1.2, -1.0, 2.5, -2.0, 1.6, -1.4}
	pre := noisePattern[:10]
	// Post returns carry no dose-response, only the balanced noise pattern.
	post := []float64{0.004, -0.004, -0.004, 0.004, 0.004, -0.004, -0.004, 0.004, 0.004, -0.004}

	events, raw, series := studyFixture(t, surprises, pre, post)
	store := &fakeStudyStore{studyEvents: events, allEvents: raw}
	engine := NewEventStudyEngine(store, &fakeProvider{daily: series}, 5, testLogger())

	result, err := engine.Run(context.Background(), EventStudyParams{
		TransformID:        "t-cpi",
		TargetNode:         "sp500_ret",
		ExcludeOverlapping: true,
	})
	require.NoError(t, err)

	assert.False(t, result.IsCausal)
	assert.Equal(t, domain.ConfidenceNone, result.Confidence)
	assert.False(t, result.PlaceboZero.Available(),
		"all surprises are large, so the zero-surprise subsample is too small")
}

func TestEventStudy_OverlappingEventsAreExcluded(t *testing.T) {
	surprises := []float64{1.0, -1.2, 0.8, -0.9, 1.1, 0.3, -0.4}
	events, raw, series := studyFixture(t, surprises, noisePattern[:7], causalPostReturns(0.02)[:7])

	// Move the last event to 5 days after the first: inside the overlap
	// buffer, so both collide.
	events[6].Timestamp = events[0].Timestamp.AddDate(0, 0, 5)
	raw[6].Timestamp = events[6].Timestamp

	store := &fakeStudyStore{studyEvents: events, allEvents: raw}
	engine := NewEventStudyEngine(store, &fakeProvider{daily: series}, 5, testLogger())

	result, err := engine.Run(context.Background(), EventStudyParams{
		TransformID:        "t-cpi",
		TargetNode:         "sp500_ret",
		ExcludeOverlapping: true,
		OverlapBufferDays:  10,
	})
	require.NoError(t, err)

	assert.Equal(t, 7, result.NumEvents)
	assert.Equal(t, 5, result.NumEventsUsed)
	assert.Equal(t, 2, result.NumEventsExcluded)
	assert.ElementsMatch(t, []string{eventID(0), eventID(6)}, result.ExcludedEventIDs)

	var reason string
	for _, d := range result.EventDetails {
		if d.EventID == eventID(0) {
			require.True(t, d.Excluded)
			reason = d.ExclusionReason
		}
	}
	assert.Contains(t, reason, eventID(6))
	assert.Contains(t, reason, "5.0 days apart")
	assert.Contains(t, reason, "inflation_release")
}

func TestEventStudy_OverlapExclusionCanBeDisabled(t *testing.T) {
	surprises := []float64{1.0, -1.2, 0.8, -0.9, 1.1, 0.3, -0.4}
	events, raw, series := studyFixture(t, surprises, noisePattern[:7], causalPostReturns(0.02)[:7])
	events[6].Timestamp = events[0].Timestamp.AddDate(0, 0, 5)
	raw[6].Timestamp = events[6].Timestamp

	store := &fakeStudyStore{studyEvents: events, allEvents: raw}
	engine := NewEventStudyEngine(store, &fakeProvider{daily: series}, 5, testLogger())

	result, err := engine.Run(context.Background(), EventStudyParams{
		TransformID: "t-cpi",
		TargetNode:  "sp500_ret",
	})
	require.NoError(t, err)
	assert.Zero(t, result.NumEventsExcluded)
}

func TestEventStudy_InsufficientDataCheckpoints(t *testing.T) {
	t.Run("too few events available", func(t *testing.T) {
		surprises := []float64{1.0, -1.0, 0.5}
		events, raw, series := studyFixture(t, surprises, noisePattern[:3], noisePattern[:3])
		store := &fakeStudyStore{studyEvents: events, allEvents: raw}
		engine := NewEventStudyEngine(store, &fakeProvider{daily: series}, 5, testLogger())

		_, err := engine.Run(context.Background(), EventStudyParams{TransformID: "t", TargetNode: "n"})
		var insufficient *apperrors.InsufficientDataError
		require.ErrorAs(t, err, &insufficient)
		assert.Equal(t, "available", insufficient.Checkpoint)
		assert.Equal(t, 3, insufficient.Found)
		assert.Equal(t, 5, insufficient.Required)
	})

	t.Run("too few after exclusions", func(t *testing.T) {
		surprises := []float64{1.0, -1.0, 0.5, -0.5, 0.8}
		events, raw, series := studyFixture(t, surprises, noisePattern[:5], noisePattern[:5])
		events[4].Timestamp = events[0].Timestamp.AddDate(0, 0, 3)
		raw[4].Timestamp = events[4].Timestamp

		store := &fakeStudyStore{studyEvents: events, allEvents: raw}
		engine := NewEventStudyEngine(store, &fakeProvider{daily: series}, 5, testLogger())

		_, err := engine.Run(context.Background(), EventStudyParams{
			TransformID:        "t",
			TargetNode:         "n",
			ExcludeOverlapping: true,
		})
		var insufficient *apperrors.InsufficientDataError
		require.ErrorAs(t, err, &insufficient)
		assert.Equal(t, "after exclusions", insufficient.Checkpoint)
	})

	t.Run("too few with market data", func(t *testing.T) {
		surprises := []float64{1.0, -1.0, 0.5, -0.5, 0.8}
		events, raw, series := studyFixture(t, surprises, noisePattern[:5], noisePattern[:5])

		// Drop every price within reach of the last event's windows.
		cutoff := marketdata.Day(events[4].Timestamp).AddDate(0, 0, -18)
		var trimmed marketdata.Series
		for _, p := range series {
			if p.Date.Before(cutoff) {
				trimmed = append(trimmed, p)
			}
		}

		store := &fakeStudyStore{studyEvents: events, allEvents: raw}
		engine := NewEventStudyEngine(store, &fakeProvider{daily: trimmed}, 5, testLogger())

		_, err := engine.Run(context.Background(), EventStudyParams{TransformID: "t", TargetNode: "n"})
		var insufficient *apperrors.InsufficientDataError
		require.ErrorAs(t, err, &insufficient)
		assert.Equal(t, "with market data", insufficient.Checkpoint)
		assert.Equal(t, 4, insufficient.Found)
	})
}

func TestEventStudy_EventWithoutMarketDataIsExcludedWithReason(t *testing.T) {
	events, raw, series := studyFixture(t, causalSurprises, noisePattern, causalPostReturns(0.02))

	cutoff := marketdata.Day(events[11].Timestamp).AddDate(0, 0, -18)
	var trimmed marketdata.Series
	for _, p := range series {
		if p.Date.Before(cutoff) {
			trimmed = append(trimmed, p)
		}
	}

	store := &fakeStudyStore{studyEvents: events, allEvents: raw}
	engine := NewEventStudyEngine(store, &fakeProvider{daily: trimmed}, 5, testLogger())

	result, err := engine.Run(context.Background(), EventStudyParams{
		TransformID: "t-cpi",
		TargetNode:  "sp500_ret",
	})
	require.NoError(t, err)

	assert.Equal(t, 11, result.NumEventsUsed)
	require.Equal(t, 1, result.NumEventsExcluded)
	for _, d := range result.EventDetails {
		if d.EventID == eventID(11) {
			assert.True(t, d.Excluded)
			assert.Equal(t, "insufficient market data in window", d.ExclusionReason)
			assert.Nil(t, d.PostWindowReturn)
		}
	}
}

func TestEventStudy_FeasibilityReport(t *testing.T) {
	events, raw, _ := studyFixture(t, causalSurprises, noisePattern, causalPostReturns(0.02))
	store := &fakeStudyStore{
		studyEvents: events,
		allEvents:   raw,
		transforms: []domain.SignalTransform{
			{ID: "t-cpi", Name: "cpi_surprise", NodeMapping: "d_fed_funds"},
		},
	}
	engine := NewEventStudyEngine(store, &fakeProvider{}, 5, testLogger())

	report, err := engine.FeasibilityReport(context.Background())
	require.NoError(t, err)
	require.Len(t, report, 1)
	assert.Equal(t, "t-cpi", report[0].TransformID)
	assert.Equal(t, 12, report[0].NumEvents)
	assert.Equal(t, 5, report[0].MinRequired)
	assert.True(t, report[0].Feasible)
}

func TestWindowReturns_BoundarySearch(t *testing.T) {
	event := time.Date(2024, 3, 13, 14, 0, 0, 0, time.UTC)
	day := marketdata.Day(event)

	// Prices with a weekend-style gap: the exact pre-start day is missing so
	// the search must step backward to find one.
	series := marketdata.Series{
		{Date: day.AddDate(0, 0, -7), Value: 100},
		{Date: day, Value: 100 * math.Exp(0.01)},
		{Date: day.AddDate(0, 0, 6), Value: 100 * math.Exp(0.04)},
	}

	pre, post, ok := windowReturns(series, event, 5, 5, 0)
	require.True(t, ok)
	assert.InDelta(t, 0.01, pre, 1e-9, "pre boundary resolves backward to day -7")
	assert.InDelta(t, 0.03, post, 1e-9, "post boundary resolves forward to day +6")
}

func TestWindowReturns_MissingDataFails(t *testing.T) {
	event := time.Date(2024, 3, 13, 14, 0, 0, 0, time.UTC)
	day := marketdata.Day(event)

	t.Run("gap wider than the search range", func(t *testing.T) {
		series := marketdata.Series{
			{Date: day.AddDate(0, 0, -20), Value: 100},
			{Date: day, Value: 101},
			{Date: day.AddDate(0, 0, 5), Value: 102},
		}
		_, _, ok := windowReturns(series, event, 5, 5, 0)
		assert.False(t, ok)
	})

	t.Run("non-positive price", func(t *testing.T) {
		series := marketdata.Series{
			{Date: day.AddDate(0, 0, -5), Value: 0},
			{Date: day, Value: 101},
			{Date: day.AddDate(0, 0, 5), Value: 102},
		}
		_, _, ok := windowReturns(series, event, 5, 5, 0)
		assert.False(t, ok)
	})
}

func TestWindowReturns_GapDaysShiftBoundaries(t *testing.T) {
	event := time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC)
	day := marketdata.Day(event)

	// Boundaries with a 2-day gap: pre spans [-7, -2], post spans [+2, +7].
	series := marketdata.Series{
		{Date: day.AddDate(0, 0, -7), Value: 100},
		{Date: day.AddDate(0, 0, -2), Value: 100 * math.Exp(0.02)},
		{Date: day.AddDate(0, 0, 2), Value: 110},
		{Date: day.AddDate(0, 0, 7), Value: 110 * math.Exp(0.05)},
	}

	pre, post, ok := windowReturns(series, event, 5, 5, 2)
	require.True(t, ok)
	assert.InDelta(t, 0.02, pre, 1e-9)
	assert.InDelta(t, 0.05, post, 1e-9)
}
