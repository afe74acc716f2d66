package causal

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"tremor/internal/config"
	apperrors "tremor/internal/errors"
	"tremor/internal/marketdata"
	"tremor/pkg/contracts/domain"
)

// StudyStore is the persistence surface the event-study engine needs.
type StudyStore interface {
	StudyEventsByTransform(ctx context.Context, transformID string) ([]domain.StudyEvent, error)
	EventsInRange(ctx context.Context, start, end time.Time) ([]domain.Event, error)
	ListTransforms(ctx context.Context) ([]domain.SignalTransform, error)
	SaveStudyResult(ctx context.Context, result *domain.EventStudyResult) error
}

// EventStudyParams configures one run. Zero window values fall back to the
// package defaults.
type EventStudyParams struct {
	TransformID        string
	TargetNode         string
	PreWindowDays      int
	PostWindowDays     int
	GapDays            int
	ExcludeOverlapping bool
	OverlapBufferDays  int
	SignificanceLevel  float64
}

func (p *EventStudyParams) applyDefaults() {
	if p.PreWindowDays <= 0 {
		p.PreWindowDays = config.DefaultPreWindowDays
	}
	if p.PostWindowDays <= 0 {
		p.PostWindowDays = config.DefaultPostWindowDays
	}
	if p.GapDays < 0 {
		p.GapDays = config.DefaultGapDays
	}
	if p.OverlapBufferDays <= 0 {
		p.OverlapBufferDays = config.DefaultOverlapBufferDays
	}
	if p.SignificanceLevel <= 0 || p.SignificanceLevel >= 1 {
		p.SignificanceLevel = config.DefaultSignificanceLevel
	}
}

// Feasibility reports whether a transform has accumulated enough events for
// an event study.
type Feasibility struct {
	TransformID   string `json:"transform_id"`
	TransformName string `json:"transform_name"`
	NodeMapping   string `json:"node_mapping"`
	NumEvents     int    `json:"num_events"`
	MinRequired   int    `json:"min_required"`
	Feasible      bool   `json:"feasible"`
}

// EventStudyEngine validates causal claims: it regresses a target node's
// market response on historical surprise magnitudes and cross-checks the
// result with two placebo tests before issuing a verdict.
type EventStudyEngine struct {
	store     StudyStore
	provider  marketdata.Provider
	minEvents int
	logger    *slog.Logger
}

// NewEventStudyEngine creates an event-study engine
func NewEventStudyEngine(store StudyStore, provider marketdata.Provider, minEvents int, logger *slog.Logger) *EventStudyEngine {
	if logger == nil {
		logger = slog.Default()
	}
	if minEvents < 2 {
		minEvents = config.LowConfidenceMinEvents
	}
	return &EventStudyEngine{
		store:     store,
		provider:  provider,
		minEvents: minEvents,
		logger:    logger.With(slog.String("component", "event_study")),
	}
}

// Run executes a full event study for a transform-target pair: gather the
// event population, drop confounded events, compute pre/post window returns
// from one continuous daily series, run the dose-response regression and both
// placebos, and grade the verdict. The usable population is re-checked at
// three points and each shortfall surfaces as an InsufficientDataError naming
// the checkpoint.
func (e *EventStudyEngine) Run(ctx context.Context, params EventStudyParams) (*domain.EventStudyResult, error) {
	params.applyDefaults()
	start := time.Now()

	events, err := e.store.StudyEventsByTransform(ctx, params.TransformID)
	if err != nil {
		return nil, err
	}
	numEvents := len(events)
	if numEvents < e.minEvents {
		return nil, apperrors.NewInsufficientDataError("available", numEvents, e.minEvents)
	}

	exclusions := map[string]string{}
	if params.ExcludeOverlapping {
		exclusions, err = e.detectOverlapping(ctx, events, params.OverlapBufferDays)
		if err != nil {
			return nil, err
		}
	}

	details := make([]domain.EventStudyDetail, 0, numEvents)
	var included []domain.StudyEvent
	for _, ev := range events {
		reason, excluded := exclusions[ev.EventID]
		details = append(details, domain.EventStudyDetail{
			EventID:         ev.EventID,
			EventTimestamp:  ev.Timestamp,
			SurpriseValue:   ev.Surprise,
			Excluded:        excluded,
			ExclusionReason: reason,
		})
		if !excluded {
			included = append(included, ev)
		}
	}
	if len(included) < e.minEvents {
		return nil, apperrors.NewInsufficientDataError("after exclusions", len(included), e.minEvents)
	}

	earliest, latest := included[0].Timestamp, included[0].Timestamp
	for _, ev := range included[1:] {
		if ev.Timestamp.Before(earliest) {
			earliest = ev.Timestamp
		}
		if ev.Timestamp.After(latest) {
			latest = ev.Timestamp
		}
	}
	fetchStart := earliest.AddDate(0, 0, -(params.PreWindowDays + params.GapDays + config.FetchPadDays))
	fetchEnd := latest.AddDate(0, 0, params.PostWindowDays+params.GapDays+config.FetchPadDays)

	prices, err := e.provider.FetchDaily(ctx, params.TargetNode, fetchStart, fetchEnd)
	if err != nil {
		return nil, err
	}
	if prices.IsEmpty() {
		return nil, apperrors.NewAppError(apperrors.ErrTypeData,
			fmt.Sprintf("no market data available for node %q", params.TargetNode), nil)
	}

	var surprises, preReturns, postReturns []float64
	for _, ev := range included {
		preRet, postRet, ok := windowReturns(prices, ev.Timestamp,
			params.PreWindowDays, params.PostWindowDays, params.GapDays)
		if !ok {
			markExcluded(details, ev.EventID, "insufficient market data in window")
			continue
		}
		surprises = append(surprises, ev.Surprise)
		preReturns = append(preReturns, preRet)
		postReturns = append(postReturns, postRet)
		setReturns(details, ev.EventID, preRet, postRet)
	}

	numUsed := len(surprises)
	if numUsed < e.minEvents {
		return nil, apperrors.NewInsufficientDataError("with market data", numUsed, e.minEvents)
	}

	fit, err := fitOLSRobust(surprises, postReturns, params.SignificanceLevel)
	if err != nil {
		return nil, err
	}

	preDrift := e.placeboPreDrift(surprises, preReturns, params.SignificanceLevel)
	zeroSurprise := e.placeboZeroSurprise(surprises, postReturns, params.SignificanceLevel)

	isCausal, confidence := assessConfidence(fit, preDrift, zeroSurprise, numUsed)

	var excludedIDs []string
	for _, d := range details {
		if d.Excluded {
			excludedIDs = append(excludedIDs, d.EventID)
		}
	}

	result := &domain.EventStudyResult{
		TransformID:       params.TransformID,
		TargetNode:        params.TargetNode,
		PreWindowDays:     params.PreWindowDays,
		PostWindowDays:    params.PostWindowDays,
		GapDays:           params.GapDays,
		OverlapBufferDays: params.OverlapBufferDays,
		NumEvents:         numEvents,
		NumEventsUsed:     numUsed,
		NumEventsExcluded: len(excludedIDs),
		ExcludedEventIDs:  excludedIDs,
		Regression: domain.RegressionResult{
			Coefficient:     fit.Coefficient,
			StdError:        fit.StdError,
			TStatistic:      fit.TStatistic,
			PValue:          fit.PValue,
			RSquared:        fit.RSquared,
			ConfIntLower:    fit.CILower,
			ConfIntUpper:    fit.CIUpper,
			Intercept:       fit.Intercept,
			InterceptPValue: fit.InterceptPValue,
			NumObservations: fit.N,
		},
		PlaceboPreDrift: preDrift,
		PlaceboZero:     zeroSurprise,
		IsCausal:        isCausal,
		Confidence:      confidence,
		EventDetails:    details,
	}
	if err := e.store.SaveStudyResult(ctx, result); err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "event study completed",
		slog.String("transform_id", params.TransformID),
		slog.String("target_node", params.TargetNode),
		slog.Int("events_used", numUsed),
		slog.Float64("p_value", fit.PValue),
		slog.String("confidence", string(confidence)),
		slog.Duration("duration", time.Since(start)),
	)
	return result, nil
}

// FeasibilityReport returns, per transform, whether enough events exist to
// run a study.
func (e *EventStudyEngine) FeasibilityReport(ctx context.Context) ([]Feasibility, error) {
	transforms, err := e.store.ListTransforms(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Feasibility, 0, len(transforms))
	for _, t := range transforms {
		events, err := e.store.StudyEventsByTransform(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, Feasibility{
			TransformID:   t.ID,
			TransformName: t.Name,
			NodeMapping:   t.NodeMapping,
			NumEvents:     len(events),
			MinRequired:   e.minEvents,
			Feasible:      len(events) >= e.minEvents,
		})
	}
	return out, nil
}

// detectOverlapping finds study events with any other event, of any cause,
// within bufferDays calendar days. An event never collides with itself; the
// first collision found wins and its reason cites the colliding event.
func (e *EventStudyEngine) detectOverlapping(ctx context.Context, events []domain.StudyEvent, bufferDays int) (map[string]string, error) {
	earliest, latest := events[0].Timestamp, events[0].Timestamp
	for _, ev := range events[1:] {
		if ev.Timestamp.Before(earliest) {
			earliest = ev.Timestamp
		}
		if ev.Timestamp.After(latest) {
			latest = ev.Timestamp
		}
	}

	all, err := e.store.EventsInRange(ctx,
		earliest.AddDate(0, 0, -bufferDays),
		latest.AddDate(0, 0, bufferDays))
	if err != nil {
		return nil, err
	}

	exclusions := make(map[string]string)
	for _, study := range events {
		for _, other := range all {
			if other.ID == study.EventID {
				continue
			}
			deltaDays := math.Abs(study.Timestamp.Sub(other.Timestamp).Seconds()) / 86400
			if deltaDays <= float64(bufferDays) {
				exclusions[study.EventID] = fmt.Sprintf(
					"overlapping with event '%s' (%s, %.1f days apart)",
					other.ID, other.Type, deltaDays)
				break
			}
		}
	}
	return exclusions, nil
}

// windowReturns computes the pre- and post-window log returns around one
// event. Each of the four boundary dates resolves to the nearest available
// trading-day price, searching backward for pre boundaries and forward for
// post boundaries. Missing or non-positive prices make the event unusable.
func windowReturns(prices marketdata.Series, eventTS time.Time, preDays, postDays, gapDays int) (preRet, postRet float64, ok bool) {
	eventDate := marketdata.Day(eventTS)

	preStart := eventDate.AddDate(0, 0, -(preDays + gapDays))
	preEnd := eventDate
	postStart := eventDate
	if gapDays > 0 {
		preEnd = eventDate.AddDate(0, 0, -gapDays)
		postStart = eventDate.AddDate(0, 0, gapDays)
	}
	postEnd := eventDate.AddDate(0, 0, postDays+gapDays)

	preStartPrice, ok1 := nearestPrice(prices, preStart, -1)
	preEndPrice, ok2 := nearestPrice(prices, preEnd, -1)
	postStartPrice, ok3 := nearestPrice(prices, postStart, +1)
	postEndPrice, ok4 := nearestPrice(prices, postEnd, +1)

	if !ok1 || !ok2 || !ok3 || !ok4 ||
		preStartPrice <= 0 || preEndPrice <= 0 || postStartPrice <= 0 || postEndPrice <= 0 {
		return 0, 0, false
	}

	return math.Log(preEndPrice / preStartPrice), math.Log(postEndPrice / postStartPrice), true
}

// nearestPrice searches up to MaxBoundarySearchDays from target in the given
// direction (-1 backward, +1 forward) for an available price.
func nearestPrice(prices marketdata.Series, target time.Time, direction int) (float64, bool) {
	for i := 0; i <= config.MaxBoundarySearchDays; i++ {
		check := target.AddDate(0, 0, direction*i)
		if v, ok := prices.At(check); ok {
			return v, true
		}
	}
	return 0, false
}

// placeboPreDrift regresses pre-window returns on surprises. A significant
// coefficient means the market moved before the event: leakage or
// endogeneity, reported as a failed placebo.
func (e *EventStudyEngine) placeboPreDrift(surprises, preReturns []float64, significance float64) domain.PlaceboResult {
	fit, err := fitOLSRobust(surprises, preReturns, significance)
	if err != nil {
		return domain.PlaceboResult{}
	}
	passed := fit.PValue > significance
	return domain.PlaceboResult{
		Coefficient: &fit.Coefficient,
		PValue:      &fit.PValue,
		Passed:      &passed,
	}
}

// placeboZeroSurprise tests that near-zero surprises produced no response.
// The subsample keeps events with |surprise| below half the population
// standard deviation; with a degenerate distribution or fewer than three
// qualifying events the placebo is unavailable, not failed.
func (e *EventStudyEngine) placeboZeroSurprise(surprises, postReturns []float64, significance float64) domain.PlaceboResult {
	std := stat.PopStdDev(surprises, nil)
	if std == 0 {
		return domain.PlaceboResult{}
	}

	threshold := config.ZeroSurpriseStdFraction * std
	var nearZero []float64
	for i, s := range surprises {
		if math.Abs(s) < threshold {
			nearZero = append(nearZero, postReturns[i])
		}
	}
	if len(nearZero) < config.MinZeroSurpriseEvents {
		return domain.PlaceboResult{}
	}

	mean, pValue, ok := meanZeroTest(nearZero)
	if !ok {
		return domain.PlaceboResult{}
	}
	passed := pValue > significance
	return domain.PlaceboResult{
		Coefficient: &mean,
		PValue:      &pValue,
		Passed:      &passed,
	}
}

// assessConfidence combines the main regression with both placebos into the
// tiered verdict. Only available placebos count; high confidence requires
// every available placebo to pass and at least one to be available.
func assessConfidence(fit *olsFit, preDrift, zeroSurprise domain.PlaceboResult, numEvents int) (bool, domain.ConfidenceLevel) {
	passed := 0
	available := 0
	for _, placebo := range []domain.PlaceboResult{preDrift, zeroSurprise} {
		if placebo.Available() {
			available++
			if *placebo.Passed {
				passed++
			}
		}
	}

	switch {
	case fit.PValue < config.HighConfidencePValue &&
		fit.RSquared > config.HighConfidenceRSquared &&
		numEvents >= config.HighConfidenceMinEvents &&
		available > 0 && passed == available:
		return true, domain.ConfidenceHigh
	case fit.PValue < config.MediumConfidencePValue &&
		numEvents >= config.MediumConfidenceMinEvents &&
		passed >= 1:
		return true, domain.ConfidenceMedium
	case fit.PValue < config.LowConfidencePValue &&
		numEvents >= config.LowConfidenceMinEvents:
		return false, domain.ConfidenceLow
	default:
		return false, domain.ConfidenceNone
	}
}

func markExcluded(details []domain.EventStudyDetail, eventID, reason string) {
	for i := range details {
		if details[i].EventID == eventID {
			details[i].Excluded = true
			details[i].ExclusionReason = reason
			return
		}
	}
}

func setReturns(details []domain.EventStudyDetail, eventID string, preRet, postRet float64) {
	for i := range details {
		if details[i].EventID == eventID {
			details[i].PreWindowReturn = &preRet
			details[i].PostWindowReturn = &postRet
			return
		}
	}
}
