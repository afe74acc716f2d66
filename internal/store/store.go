// Package store provides thread-safe in-memory storage with file-based
// persistence for events, transforms, signals, propagation records and
// event-study results. Data is persisted to a JSON snapshot with an atomic
// write (temp file + rename) and restored on startup.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "tremor/internal/errors"
	"tremor/pkg/contracts/domain"
)

// Store holds all persisted entities behind one RWMutex. The causal engine
// treats it as an injectable collaborator and never reaches past this API.
type Store struct {
	mu           sync.RWMutex
	events       map[string]*domain.Event
	transforms   map[string]*domain.SignalTransform
	signals      map[string]*domain.Signal
	propagations map[string]*domain.PropagationRecord
	results      map[string]*domain.EventStudyResult

	filePath string
}

// persistenceFile is the on-disk snapshot layout.
type persistenceFile struct {
	Version      string                               `json:"version"`
	SavedAt      time.Time                            `json:"saved_at"`
	Events       map[string]*domain.Event             `json:"events"`
	Transforms   map[string]*domain.SignalTransform   `json:"transforms"`
	Signals      map[string]*domain.Signal            `json:"signals"`
	Propagations map[string]*domain.PropagationRecord `json:"propagations"`
	Results      map[string]*domain.EventStudyResult  `json:"results"`
}

// New creates a store persisting to filePath. An empty path keeps the store
// purely in memory.
func New(filePath string) *Store {
	return &Store{
		events:       make(map[string]*domain.Event),
		transforms:   make(map[string]*domain.SignalTransform),
		signals:      make(map[string]*domain.Signal),
		propagations: make(map[string]*domain.PropagationRecord),
		results:      make(map[string]*domain.EventStudyResult),
		filePath:     filePath,
	}
}

// SaveEvent stores an event, assigning an ID and creation time when missing.
func (s *Store) SaveEvent(ctx context.Context, event *domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	s.events[event.ID] = event
	return nil
}

// GetEvent retrieves an event by ID.
func (s *Store) GetEvent(ctx context.Context, id string) (*domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	event, ok := s.events[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("event %s", id))
	}
	cp := *event
	return &cp, nil
}

// ListEvents returns all events ordered by timestamp.
func (s *Store) ListEvents(ctx context.Context) ([]domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Event, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// EventsInRange returns all events with timestamps inside [start, end],
// inclusive, ordered by timestamp. The event study uses this for confounding
// detection across all causes.
func (s *Store) EventsInRange(ctx context.Context, start, end time.Time) ([]domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Event
	for _, e := range s.events {
		if !e.Timestamp.Before(start) && !e.Timestamp.After(end) {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// SaveTransform stores a transform, assigning an ID when missing.
func (s *Store) SaveTransform(ctx context.Context, transform *domain.SignalTransform) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if transform.ID == "" {
		transform.ID = uuid.NewString()
	}
	if transform.CreatedAt.IsZero() {
		transform.CreatedAt = time.Now().UTC()
	}
	s.transforms[transform.ID] = transform
	return nil
}

// GetTransform retrieves a transform by ID.
func (s *Store) GetTransform(ctx context.Context, id string) (*domain.SignalTransform, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	transform, ok := s.transforms[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("transform %s", id))
	}
	cp := *transform
	return &cp, nil
}

// ListTransforms returns all transforms ordered by name.
func (s *Store) ListTransforms(ctx context.Context) ([]domain.SignalTransform, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.SignalTransform, 0, len(s.transforms))
	for _, t := range s.transforms {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// SaveSignal stores a signal, assigning an ID when missing.
func (s *Store) SaveSignal(ctx context.Context, signal *domain.Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if signal.ID == "" {
		signal.ID = uuid.NewString()
	}
	if signal.CreatedAt.IsZero() {
		signal.CreatedAt = time.Now().UTC()
	}
	s.signals[signal.ID] = signal
	return nil
}

// GetSignal retrieves a signal by ID.
func (s *Store) GetSignal(ctx context.Context, id string) (*domain.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	signal, ok := s.signals[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("signal %s", id))
	}
	cp := *signal
	return &cp, nil
}

// ListSignals returns all signals, optionally filtered to one transform,
// ordered by timestamp.
func (s *Store) ListSignals(ctx context.Context, transformID string) ([]domain.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Signal
	for _, sig := range s.signals {
		if transformID != "" && sig.TransformID != transformID {
			continue
		}
		out = append(out, *sig)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// SignalValuesByTransform returns the raw values of all signals a transform
// has produced, in creation order. This is the shock detector's history.
func (s *Store) SignalValuesByTransform(ctx context.Context, transformID string) ([]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sigs []*domain.Signal
	for _, sig := range s.signals {
		if sig.TransformID == transformID {
			sigs = append(sigs, sig)
		}
	}
	sort.Slice(sigs, func(i, j int) bool { return sigs[i].CreatedAt.Before(sigs[j].CreatedAt) })

	out := make([]float64, len(sigs))
	for i, sig := range sigs {
		out[i] = sig.Value
	}
	return out, nil
}

// StudyEventsByTransform returns every (event, surprise) pair a transform has
// produced, ordered by event timestamp.
func (s *Store) StudyEventsByTransform(ctx context.Context, transformID string) ([]domain.StudyEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.StudyEvent
	for _, sig := range s.signals {
		if sig.TransformID != transformID {
			continue
		}
		event, ok := s.events[sig.EventID]
		if !ok {
			continue
		}
		out = append(out, domain.StudyEvent{
			EventID:   event.ID,
			Timestamp: event.Timestamp.UTC(),
			Surprise:  sig.Value,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// SavePropagation stores a propagation record, assigning an ID when missing.
func (s *Store) SavePropagation(ctx context.Context, record *domain.PropagationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	s.propagations[record.ID] = record
	return nil
}

// GetPropagation retrieves a propagation record by ID.
func (s *Store) GetPropagation(ctx context.Context, id string) (*domain.PropagationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.propagations[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("propagation record %s", id))
	}
	cp := *record
	return &cp, nil
}

// ListPropagations returns propagation records, optionally filtered by
// status, ordered by creation time.
func (s *Store) ListPropagations(ctx context.Context, status domain.PropagationStatus) ([]domain.PropagationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.PropagationRecord
	for _, rec := range s.propagations {
		if status != "" && rec.Status != status {
			continue
		}
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// SaveStudyResult stores an event-study result, assigning an ID when missing.
func (s *Store) SaveStudyResult(ctx context.Context, result *domain.EventStudyResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now().UTC()
	}
	s.results[result.ID] = result
	return nil
}

// GetStudyResult retrieves an event-study result by ID.
func (s *Store) GetStudyResult(ctx context.Context, id string) (*domain.EventStudyResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result, ok := s.results[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("event study result %s", id))
	}
	cp := *result
	return &cp, nil
}

// ListStudyResults returns event-study results, optionally filtered to one
// transform, newest first.
func (s *Store) ListStudyResults(ctx context.Context, transformID string) ([]domain.EventStudyResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.EventStudyResult
	for _, res := range s.results {
		if transformID != "" && res.TransformID != transformID {
			continue
		}
		out = append(out, *res)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Persist writes the current contents to the snapshot file atomically.
// A store with no file path is a no-op.
func (s *Store) Persist() error {
	if s.filePath == "" {
		return nil
	}

	s.mu.RLock()
	snapshot := persistenceFile{
		Version:      "1",
		SavedAt:      time.Now().UTC(),
		Events:       s.events,
		Transforms:   s.transforms,
		Signals:      s.signals,
		Propagations: s.propagations,
		Results:      s.results,
	}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return apperrors.NewStorageError("marshal store snapshot", err)
	}

	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperrors.NewStorageError("create store directory", err)
	}

	tmp := s.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return apperrors.NewStorageError("write store snapshot", err)
	}
	if err := os.Rename(tmp, s.filePath); err != nil {
		return apperrors.NewStorageError("replace store snapshot", err)
	}
	return nil
}

// Restore loads a previously persisted snapshot. A missing file is not an
// error; the store simply starts empty.
func (s *Store) Restore() error {
	if s.filePath == "" {
		return nil
	}

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return apperrors.NewStorageError("read store snapshot", err)
	}

	var snapshot persistenceFile
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return apperrors.NewStorageError("decode store snapshot", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if snapshot.Events != nil {
		s.events = snapshot.Events
	}
	if snapshot.Transforms != nil {
		s.transforms = snapshot.Transforms
	}
	if snapshot.Signals != nil {
		s.signals = snapshot.Signals
	}
	if snapshot.Propagations != nil {
		s.propagations = snapshot.Propagations
	}
	if snapshot.Results != nil {
		s.results = snapshot.Results
	}
	return nil
}
