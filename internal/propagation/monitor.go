// Package propagation tracks whether shocks actually travel the causal
// network: one monitoring record per downstream edge, re-checked against
// market data until its window closes.
package propagation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"tremor/internal/causal"
	apperrors "tremor/internal/errors"
	"tremor/internal/marketdata"
	"tremor/pkg/contracts/domain"
)

// Store is the persistence surface the monitor needs.
type Store interface {
	GetTransform(ctx context.Context, id string) (*domain.SignalTransform, error)
	SavePropagation(ctx context.Context, record *domain.PropagationRecord) error
	GetPropagation(ctx context.Context, id string) (*domain.PropagationRecord, error)
	ListPropagations(ctx context.Context, status domain.PropagationStatus) ([]domain.PropagationRecord, error)
}

// Monitor creates and evaluates propagation records.
type Monitor struct {
	store       Store
	graph       *causal.Graph
	baselines   *causal.Baselines
	provider    marketdata.Provider
	bufferWeeks int
	concurrency int
	logger      *slog.Logger

	// now is injectable for deterministic tests.
	now func() time.Time
}

// NewMonitor creates a propagation monitor
func NewMonitor(store Store, graph *causal.Graph, baselines *causal.Baselines, provider marketdata.Provider, bufferWeeks, concurrency int, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Monitor{
		store:       store,
		graph:       graph,
		baselines:   baselines,
		provider:    provider,
		bufferWeeks: bufferWeeks,
		concurrency: concurrency,
		logger:      logger.With(slog.String("component", "propagation_monitor")),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the monitor's notion of now. Test hook.
func (m *Monitor) SetClock(now func() time.Time) {
	m.now = now
}

// CreateMonitors creates one monitoring record per downstream edge of the
// shock's source node. The expected lag and direction come from the causal
// graph and the response baselines; the monitoring window runs from the
// shock timestamp to lag plus the configured buffer. A node with no
// downstream edges yields an empty list, not an error.
func (m *Monitor) CreateMonitors(ctx context.Context, signal *domain.Signal) ([]domain.PropagationRecord, error) {
	transform, err := m.store.GetTransform(ctx, signal.TransformID)
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) && appErr.Type == apperrors.ErrTypeNotFound {
			return nil, nil
		}
		return nil, err
	}

	sourceNode := transform.NodeMapping
	downstream := m.graph.Downstream(sourceNode)

	records := make([]domain.PropagationRecord, 0, len(downstream))
	for _, targetNode := range downstream {
		lagWeeks := 1
		if edge := m.graph.Edge(sourceNode, targetNode); edge != nil && edge.LagWeeks > 0 {
			lagWeeks = edge.LagWeeks
		}

		record := domain.PropagationRecord{
			SignalID:          signal.ID,
			SourceNode:        sourceNode,
			TargetNode:        targetNode,
			ExpectedLagWeeks:  lagWeeks,
			ExpectedDirection: m.baselines.ExpectedDirectionOrDefault(sourceNode, targetNode),
			ExpectedMagnitude: m.baselines.ExpectedResponse(sourceNode, targetNode, lagWeeks),
			Match:             domain.MatchUnknown,
			Status:            domain.PropagationMonitoring,
			MonitoredFrom:     signal.Timestamp,
			MonitoredUntil:    signal.Timestamp.Add(weeks(lagWeeks + m.bufferWeeks)),
		}
		if err := m.store.SavePropagation(ctx, &record); err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	m.logger.InfoContext(ctx, "propagation monitors created",
		slog.String("signal_id", signal.ID),
		slog.String("source_node", sourceNode),
		slog.Int("monitors", len(records)),
	)
	return records, nil
}

// Check evaluates one record against market data over its window.
//
// A provider failure leaves the record untouched: transient upstream errors
// must never corrupt monitoring state. An empty series only matters once the
// deadline has passed, at which point the record becomes no_response. With
// data, the observed change and direction match are recomputed every call
// (checks are idempotent) and the record completes once now reaches the end
// of its window. Terminal states never regress.
func (m *Monitor) Check(ctx context.Context, id string) (*domain.PropagationRecord, error) {
	record, err := m.store.GetPropagation(ctx, id)
	if err != nil {
		return nil, err
	}

	now := m.now()
	end := record.MonitoredUntil
	if now.Before(end) {
		end = now
	}

	series, err := m.provider.FetchNodeSeries(ctx, record.TargetNode, record.MonitoredFrom, end)
	if err != nil {
		m.logger.WarnContext(ctx, "market data fetch failed, leaving record unchanged",
			slog.String("record_id", record.ID),
			slog.String("target_node", record.TargetNode),
			slog.String("error", err.Error()),
		)
		return record, nil
	}

	if series.IsEmpty() {
		if now.After(record.MonitoredUntil) && !record.Status.IsTerminal() {
			record.Status = domain.PropagationNoResponse
			if err := m.store.SavePropagation(ctx, record); err != nil {
				return nil, err
			}
		}
		return record, nil
	}

	actualChange := 0.0
	if len(series) > 1 {
		actualChange = series.Last().Value - series.First().Value
	}
	record.ActualChange = &actualChange

	elapsedWeeks := int(end.Sub(record.MonitoredFrom).Hours() / (24 * 7))
	if elapsedWeeks < 1 {
		elapsedWeeks = 1
	}
	record.ActualLagWeeks = &elapsedWeeks

	record.Match = matchOutcome(record.ExpectedDirection, actualChange)

	if !record.Status.IsTerminal() {
		if !now.Before(record.MonitoredUntil) {
			record.Status = domain.PropagationCompleted
		} else {
			record.Status = domain.PropagationMonitoring
		}
	}

	if err := m.store.SavePropagation(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// CheckAll re-evaluates every record still in the monitoring state, with
// bounded concurrency. Individual records that fail to load or save abort
// the batch; provider failures do not, per Check.
func (m *Monitor) CheckAll(ctx context.Context) ([]domain.PropagationRecord, error) {
	active, err := m.store.ListPropagations(ctx, domain.PropagationMonitoring)
	if err != nil {
		return nil, err
	}

	checked := make([]domain.PropagationRecord, len(active))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)
	for i := range active {
		i := i
		g.Go(func() error {
			record, err := m.Check(gctx, active[i].ID)
			if err != nil {
				return err
			}
			checked[i] = *record
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	m.logger.InfoContext(ctx, "propagation check sweep finished",
		slog.Int("records", len(checked)),
	)
	return checked, nil
}

// matchOutcome compares the sign of the observed change to the expected
// direction. An unknown direction yields an unknown outcome rather than a
// silent positive assumption.
func matchOutcome(direction domain.Direction, change float64) domain.MatchOutcome {
	switch direction {
	case domain.DirectionPositive:
		if change > 0 {
			return domain.Matched
		}
		return domain.NotMatched
	case domain.DirectionNegative:
		if change < 0 {
			return domain.Matched
		}
		return domain.NotMatched
	default:
		return domain.MatchUnknown
	}
}

func weeks(n int) time.Duration {
	return time.Duration(n) * 7 * 24 * time.Hour
}
