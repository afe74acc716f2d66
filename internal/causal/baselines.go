package causal

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	apperrors "tremor/internal/errors"
	"tremor/pkg/contracts/domain"
)

// baselineEntry is the per-edge expected response loaded from the baselines
// file: a direction and an impulse-response curve indexed by lag in weeks.
type baselineEntry struct {
	Direction string    `json:"direction"`
	Responses []float64 `json:"responses"`
}

// Baselines answers what response an edge is expected to produce, from an
// externally estimated impulse-response mapping. Lookups never fail: absent
// data yields an unknown direction or a nil magnitude.
type Baselines struct {
	mu      sync.RWMutex
	entries map[string]map[string]baselineEntry
	logger  *slog.Logger
}

// NewBaselines creates an empty baselines lookup
func NewBaselines(logger *slog.Logger) *Baselines {
	if logger == nil {
		logger = slog.Default()
	}
	return &Baselines{
		entries: make(map[string]map[string]baselineEntry),
		logger:  logger.With(slog.String("component", "baselines")),
	}
}

// Load reads the nested source→target mapping from a JSON file and atomically
// replaces the current baselines.
func (b *Baselines) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return apperrors.NewNotFoundError(fmt.Sprintf("baselines file %s", path))
		}
		return apperrors.NewStorageError(fmt.Sprintf("read baselines file %s", path), err)
	}

	entries := make(map[string]map[string]baselineEntry)
	if err := json.Unmarshal(data, &entries); err != nil {
		return apperrors.NewParsingError("malformed baselines json", err)
	}

	b.mu.Lock()
	b.entries = entries
	b.mu.Unlock()

	b.logger.Info("response baselines loaded",
		slog.String("path", path),
		slog.Int("source_nodes", len(entries)),
	)
	return nil
}

// ExpectedResponse returns the expected response magnitude for source→target
// at the given lag (index 0 = lag 0), or nil when the curve has no entry.
func (b *Baselines) ExpectedResponse(source, target string, lag int) *float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	entry, ok := b.entries[source][target]
	if !ok || lag < 0 || lag >= len(entry.Responses) {
		return nil
	}
	v := entry.Responses[lag]
	return &v
}

// ExpectedDirection returns the expected response direction for an edge, or
// DirectionUnknown when the baselines carry no entry for it.
func (b *Baselines) ExpectedDirection(source, target string) domain.Direction {
	b.mu.RLock()
	defer b.mu.RUnlock()

	entry, ok := b.entries[source][target]
	if !ok {
		return domain.DirectionUnknown
	}
	switch entry.Direction {
	case string(domain.DirectionPositive):
		return domain.DirectionPositive
	case string(domain.DirectionNegative):
		return domain.DirectionNegative
	default:
		return domain.DirectionUnknown
	}
}

// ExpectedDirectionOrDefault applies the documented positive default for
// edges the baselines know nothing about. Callers that need to distinguish
// "unknown" use ExpectedDirection directly.
func (b *Baselines) ExpectedDirectionOrDefault(source, target string) domain.Direction {
	if d := b.ExpectedDirection(source, target); d != domain.DirectionUnknown {
		return d
	}
	return domain.DirectionPositive
}
