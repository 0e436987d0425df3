// Package availability tracks whether people are around and how receptive
// they currently are, as a decaying score in [0, 1].
//
// A person seen for the first time starts present at the initial score. Every
// further sighting raises the score by one step up to 1.0; every observation
// without them marks them absent and lowers it by one step down to 0.0.
// Records are never deleted.
package availability

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/dyluth/hri/internal/logging"
	"github.com/dyluth/hri/internal/metrics"
	"github.com/dyluth/hri/pkg/blackboard"
	"go.uber.org/zap"
)

const (
	// DefaultStep is the score change per observation.
	DefaultStep = 0.1

	// DefaultInitialScore is the score of a newly observed person.
	DefaultInitialScore = 0.5
)

// Store persists availability records.
// GetAvailability returns an error satisfying blackboard.IsNotFound for unknown persons.
type Store interface {
	UpdateAvailability(ctx context.Context, personID string, fn func(current *blackboard.AvailabilityRecord) blackboard.AvailabilityRecord) (*blackboard.AvailabilityRecord, error)
	GetAvailability(ctx context.Context, personID string) (*blackboard.AvailabilityRecord, error)
	ListAvailability(ctx context.Context, sinceMs, untilMs int64) ([]*blackboard.AvailabilityRecord, error)
}

// Snapshot maps person IDs to their records.
type Snapshot map[string]blackboard.AvailabilityRecord

// Manager applies availability transitions to a Store.
// Updates to one person are atomic; there are no cross-person transactions.
type Manager struct {
	store   Store
	logger  *zap.Logger
	step    float64
	initial float64
	now     func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithStep sets the score change per observation.
func WithStep(step float64) Option {
	return func(m *Manager) {
		m.step = step
	}
}

// WithInitialScore sets the score of a newly observed person.
func WithInitialScore(score float64) Option {
	return func(m *Manager) {
		m.initial = score
	}
}

// WithClock overrides the time source used for UpdatedAtMs.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a manager. A nil store gets a MemoryStore.
func NewManager(store Store, logger *zap.Logger, opts ...Option) *Manager {
	if store == nil {
		store = NewMemoryStore()
	}

	m := &Manager{
		store:   store,
		logger:  logging.OrNop(logger),
		step:    DefaultStep,
		initial: DefaultInitialScore,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetAvailability records the latest observation of one person.
// available=true applies the presence transition, false the disappearance one.
func (m *Manager) SetAvailability(ctx context.Context, personID string, available bool) error {
	if personID == "" {
		return fmt.Errorf("person ID cannot be empty")
	}

	nowMs := m.now().UnixMilli()
	transition := ""
	rec, err := m.store.UpdateAvailability(ctx, personID, func(current *blackboard.AvailabilityRecord) blackboard.AvailabilityRecord {
		next, t := m.transition(current, available)
		next.UpdatedAtMs = nowMs
		transition = t
		return next
	})
	if err != nil {
		return fmt.Errorf("failed to set availability of %s: %w", personID, err)
	}

	metrics.AvailabilityUpdates.WithLabelValues(transition).Inc()
	m.logger.Debug("availability updated",
		zap.String("person_id", personID),
		zap.String("transition", transition),
		zap.Bool("present", rec.Present),
		zap.Float64("score", rec.Score))
	return nil
}

// transition computes the next record. An unseen person starts at the initial
// score, present or not.
func (m *Manager) transition(current *blackboard.AvailabilityRecord, available bool) (blackboard.AvailabilityRecord, string) {
	if current == nil {
		if available {
			return blackboard.AvailabilityRecord{Present: true, Score: m.initial}, "appeared"
		}
		return blackboard.AvailabilityRecord{Present: false, Score: m.initial}, "disappeared"
	}

	next := *current
	next.Present = available
	if available {
		next.Score = clamp(current.Score + m.step)
		return next, "present"
	}
	next.Score = clamp(current.Score - m.step)
	return next, "disappeared"
}

// IsAvailable reports whether the person was present at the latest observation.
// Unknown persons and store errors report false.
func (m *Manager) IsAvailable(ctx context.Context, personID string) bool {
	rec, err := m.store.GetAvailability(ctx, personID)
	if err != nil {
		if !blackboard.IsNotFound(err) {
			m.logger.Warn("availability lookup failed", zap.String("person_id", personID), zap.Error(err))
		}
		return false
	}
	return rec.Present
}

// Get returns a person's record.
func (m *Manager) Get(ctx context.Context, personID string) (blackboard.AvailabilityRecord, bool, error) {
	rec, err := m.store.GetAvailability(ctx, personID)
	if blackboard.IsNotFound(err) {
		return blackboard.AvailabilityRecord{}, false, nil
	}
	if err != nil {
		return blackboard.AvailabilityRecord{}, false, fmt.Errorf("failed to get availability of %s: %w", personID, err)
	}
	return *rec, true, nil
}

// Snapshot returns every known record.
func (m *Manager) Snapshot(ctx context.Context) (Snapshot, error) {
	records, err := m.store.ListAvailability(ctx, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list availability: %w", err)
	}

	snap := make(Snapshot, len(records))
	for _, r := range records {
		snap[r.PersonID] = *r
	}
	return snap, nil
}

// HandlePersons applies one perception frame: every observed person gets the
// presence transition and every known person not observed gets the
// disappearance transition. It returns the resulting snapshot.
func (m *Manager) HandlePersons(ctx context.Context, observed []string) (Snapshot, error) {
	seen := make(map[string]bool, len(observed))
	for _, id := range observed {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		if err := m.SetAvailability(ctx, id, true); err != nil {
			return nil, err
		}
	}

	known, err := m.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(known))
	for id := range known {
		if !seen[id] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	for _, id := range ids {
		if err := m.SetAvailability(ctx, id, false); err != nil {
			return nil, err
		}
	}

	return m.Snapshot(ctx)
}

// clamp bounds a score to [0, 1] and drops float noise below 1e-9.
func clamp(score float64) float64 {
	score = math.Round(score*1e9) / 1e9
	return math.Max(0, math.Min(1, score))
}
