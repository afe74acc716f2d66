package signals

import (
	"context"
	"log/slog"

	"tremor/internal/config"
	"tremor/pkg/contracts/domain"
)

// Store is the persistence surface the factory needs. The signal store owns
// the entities; the factory only reads history and hands back new signals.
type Store interface {
	ListTransforms(ctx context.Context) ([]domain.SignalTransform, error)
	SignalValuesByTransform(ctx context.Context, transformID string) ([]float64, error)
	SaveSignal(ctx context.Context, signal *domain.Signal) error
}

// Factory computes signals for incoming events using all matching transforms.
type Factory struct {
	store             Store
	logger            *slog.Logger
	absoluteThreshold float64
}

// NewFactory creates a signal factory
func NewFactory(store Store, cfg config.CausalConfig, logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	absolute := cfg.AbsoluteShockThreshold
	if absolute == 0 {
		absolute = config.DefaultAbsoluteShockThreshold
	}
	return &Factory{
		store:             store,
		logger:            logger.With(slog.String("component", "signal_factory")),
		absoluteThreshold: absolute,
	}
}

// ComputeForEvent evaluates every transform matching the event's type against
// the event's raw data, classifies each value against the transform's signal
// history, and persists the resulting signals. A transform whose expression
// fails to evaluate is skipped, not fatal: one bad expression must not block
// the other transforms.
func (f *Factory) ComputeForEvent(ctx context.Context, event *domain.Event) ([]domain.Signal, error) {
	transforms, err := f.store.ListTransforms(ctx)
	if err != nil {
		return nil, err
	}

	var computed []domain.Signal
	for i := range transforms {
		transform := &transforms[i]
		if !transform.Matches(event.Type) {
			continue
		}

		value, err := Evaluate(transform.Expression, event.RawData)
		if err != nil {
			f.logger.WarnContext(ctx, "transform expression failed",
				slog.String("transform", transform.Name),
				slog.String("event_id", event.ID),
				slog.String("error", err.Error()),
			)
			continue
		}

		history, err := f.store.SignalValuesByTransform(ctx, transform.ID)
		if err != nil {
			return nil, err
		}

		thresholdSD := transform.ThresholdSD
		if thresholdSD == 0 {
			thresholdSD = config.DefaultShockThresholdSD
		}
		zScore, isShock := Detect(value, history, thresholdSD, f.absoluteThreshold)

		signal := domain.Signal{
			EventID:     event.ID,
			TransformID: transform.ID,
			Timestamp:   event.Timestamp,
			Value:       value,
			ZScore:      zScore,
			IsShock:     isShock,
		}
		if err := f.store.SaveSignal(ctx, &signal); err != nil {
			return nil, err
		}

		if isShock {
			f.logger.InfoContext(ctx, "shock detected",
				slog.String("transform", transform.Name),
				slog.String("node", transform.NodeMapping),
				slog.Float64("value", value),
			)
		}
		computed = append(computed, signal)
	}

	return computed, nil
}
