// Package behavior owns per-user behavioral state: the profile store with
// its per-user write discipline, the baseline builder, the anomaly detector,
// and the peer analyzer.
package behavior

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/caregrid/sentinel/internal/domain"
	"github.com/caregrid/sentinel/internal/feature"
)

// ProfileRepository is the persistence port for behavior profiles.
// Implementations return (nil, nil) for missing profiles. WithUserLock must
// hold a lock on the user id that excludes other processes for the whole fn
// window, so a read-modify-write cycle never interleaves with one running in
// another instance.
type ProfileRepository interface {
	Get(ctx context.Context, userID string) (*domain.BehaviorProfile, error)
	Save(ctx context.Context, profile *domain.BehaviorProfile) error
	WithUserLock(ctx context.Context, userID string, fn func(ctx context.Context) error) error
}

// Config holds the store's tunable thresholds.
type Config struct {
	BaselineThreshold      int
	HighFrequencyThreshold int
	AnomalyHistoryCap      int
	AnomalyRetention       time.Duration
	TrendCap               int
	SessionHistoryCap      int
}

// DefaultConfig returns the deployed thresholds.
func DefaultConfig() Config {
	return Config{
		BaselineThreshold:      50,
		HighFrequencyThreshold: 100,
		AnomalyHistoryCap:      200,
		AnomalyRetention:       24 * time.Hour,
		TrendCap:               500,
		SessionHistoryCap:      100,
	}
}

// Store is the key-addressable behavior profile store. Profile mutation is
// serialized per user id at two levels: a keyed mutex within the process, and
// the repository's user lock across processes (the API server and the event
// consumer both mutate profiles). Different users update independently with
// no shared lock beyond the key map itself.
type Store struct {
	repo     ProfileRepository
	cache    Cache
	detector *Detector
	cfg      Config
	logger   *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore creates a profile store. cache may be nil.
func NewStore(repo ProfileRepository, cache Cache, detector *Detector, cfg Config, logger *slog.Logger) *Store {
	return &Store{
		repo:     repo,
		cache:    cache,
		detector: detector,
		cfg:      cfg,
		logger:   logger,
		locks:    map[string]*sync.Mutex{},
	}
}

func (s *Store) lockFor(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[userID] = l
	}
	return l
}

// Get returns a profile through the read-through cache, or (nil, nil) when
// the user has no profile yet.
func (s *Store) Get(ctx context.Context, userID string) (*domain.BehaviorProfile, error) {
	if s.cache != nil {
		if p, ok := s.cache.Get(ctx, userID); ok {
			return p, nil
		}
	}
	p, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p != nil && s.cache != nil {
		s.cache.Set(ctx, p)
	}
	return p, nil
}

// GetOrCreate returns the existing profile or lazily creates an empty one.
// Never errors on a missing profile.
func (s *Store) GetOrCreate(ctx context.Context, userID string) (*domain.BehaviorProfile, bool, error) {
	lock := s.lockFor(userID)
	lock.Lock()
	defer lock.Unlock()

	var p *domain.BehaviorProfile
	var created bool
	err := s.repo.WithUserLock(ctx, userID, func(ctx context.Context) error {
		var err error
		p, created, err = s.getOrCreateLocked(ctx, userID)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return p, created, nil
}

func (s *Store) getOrCreateLocked(ctx context.Context, userID string) (*domain.BehaviorProfile, bool, error) {
	p, err := s.Get(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	if p != nil {
		return p, false, nil
	}
	p = domain.NewBehaviorProfile(userID, time.Now().UTC())
	if err := s.save(ctx, p); err != nil {
		return nil, false, err
	}
	return p, true, nil
}

// Apply folds one scored event into the user's profile: session counters,
// pattern histories, baseline establishment, anomaly detection and peer
// analysis. Returns the updated profile and any anomalies the event raised.
func (s *Store) Apply(ctx context.Context, ev *domain.ActionEvent, assessment domain.RiskAssessment) (*domain.BehaviorProfile, []domain.Anomaly, error) {
	lock := s.lockFor(ev.ActorID)
	lock.Lock()
	defer lock.Unlock()

	var p *domain.BehaviorProfile
	var anomalies []domain.Anomaly
	err := s.repo.WithUserLock(ctx, ev.ActorID, func(ctx context.Context) error {
		var err error
		p, _, err = s.getOrCreateLocked(ctx, ev.ActorID)
		if err != nil {
			return err
		}

		vec := feature.Extract(ev)
		now := vec.Timestamp

		if ev.ActorUsername != "" {
			p.Username = ev.ActorUsername
		}
		p.Role = ev.PrimaryRole()

		s.rollSession(p, ev, now)
		s.applyCounters(p, vec, assessment)

		if !p.Baseline.Established && p.CurrentSession.ActionCount >= s.cfg.BaselineThreshold {
			establishBaseline(p, now)
			s.logger.Info("baseline established", "user_id", p.UserID, "action_count", p.CurrentSession.ActionCount)
		}

		anomalies = s.detector.Detect(p, ev, vec)
		s.appendAnomalies(p, anomalies, now)

		AnalyzePeers(p)
		p.UpdatedAt = time.Now().UTC()

		return s.save(ctx, p)
	})
	if err != nil {
		return nil, nil, err
	}
	return p, anomalies, nil
}

// AppendAnomaly records an externally reported anomaly on a profile.
func (s *Store) AppendAnomaly(ctx context.Context, userID string, anomaly domain.Anomaly) (*domain.BehaviorProfile, error) {
	lock := s.lockFor(userID)
	lock.Lock()
	defer lock.Unlock()

	var p *domain.BehaviorProfile
	err := s.repo.WithUserLock(ctx, userID, func(ctx context.Context) error {
		var err error
		p, _, err = s.getOrCreateLocked(ctx, userID)
		if err != nil {
			return err
		}
		s.appendAnomalies(p, []domain.Anomaly{anomaly}, anomaly.Timestamp)
		p.UpdatedAt = time.Now().UTC()
		return s.save(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Rebaseline recomputes the baseline envelope from accumulated patterns.
// Explicit external action; the established flag never reverts.
func (s *Store) Rebaseline(ctx context.Context, userID string) (*domain.BehaviorProfile, error) {
	lock := s.lockFor(userID)
	lock.Lock()
	defer lock.Unlock()

	var p *domain.BehaviorProfile
	err := s.repo.WithUserLock(ctx, userID, func(ctx context.Context) error {
		var err error
		p, err = s.Get(ctx, userID)
		if err != nil {
			return err
		}
		if p == nil {
			return domain.ErrNotFound("profile", userID)
		}
		establishBaseline(p, time.Now().UTC())
		p.UpdatedAt = time.Now().UTC()
		return s.save(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Import installs a deserialized profile export, stamping the import time.
func (s *Store) Import(ctx context.Context, export domain.ProfileExport) (*domain.BehaviorProfile, error) {
	if export.Version != domain.ProfileExportVersion {
		return nil, domain.ErrValidation("unsupported profile export version: " + export.Version)
	}
	p := export.Profile
	if p.UserID == "" {
		return nil, domain.ErrValidation("profile export missing userId")
	}

	lock := s.lockFor(p.UserID)
	lock.Lock()
	defer lock.Unlock()

	err := s.repo.WithUserLock(ctx, p.UserID, func(ctx context.Context) error {
		now := time.Now().UTC()
		p.ImportedAt = &now
		return s.save(ctx, &p)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Export wraps a profile in the versioned export envelope.
func (s *Store) Export(ctx context.Context, userID string) (*domain.ProfileExport, error) {
	p, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.ErrNotFound("profile", userID)
	}
	return &domain.ProfileExport{
		Version:    domain.ProfileExportVersion,
		ExportedAt: time.Now().UTC(),
		Profile:    *p,
	}, nil
}

func (s *Store) rollSession(p *domain.BehaviorProfile, ev *domain.ActionEvent, now time.Time) {
	if p.CurrentSession.ID == ev.SessionID {
		return
	}
	if p.CurrentSession.ID != "" {
		// The closed session's length is its own last reported duration,
		// not the incoming event's.
		p.Patterns.SessionMinutes = appendBounded(p.Patterns.SessionMinutes, p.CurrentSession.DurationMinutes, s.cfg.SessionHistoryCap)
	}
	p.CurrentSession = domain.SessionMetrics{
		ID:           ev.SessionID,
		StartedAt:    now,
		ActionCounts: map[string]int{},
		Anomalies:    []domain.Anomaly{},
	}
}

func (s *Store) applyCounters(p *domain.BehaviorProfile, vec feature.Vector, assessment domain.RiskAssessment) {
	sess := &p.CurrentSession
	sess.ActionCount++
	sess.ActionCounts[vec.Action]++
	sess.UniqueActions = len(sess.ActionCounts)
	sess.DurationMinutes = vec.SessionMinutes
	sess.RiskScore = assessment.RiskScore

	p.EventCount++
	p.Patterns.DurationSum += vec.SessionMinutes
	p.Patterns.DurationSamples++
	p.Patterns.HourCounts[vec.Hour]++
	p.Patterns.DayCounts[vec.DayOfWeek]++
	p.Patterns.ActionCounts[vec.Action]++
	p.Patterns.DeviceCounts[vec.Device]++
	p.Patterns.RiskTrend = appendBoundedTrend(p.Patterns.RiskTrend,
		domain.RiskPoint{At: vec.Timestamp, Score: assessment.RiskScore}, s.cfg.TrendCap)
}

func (s *Store) appendAnomalies(p *domain.BehaviorProfile, anomalies []domain.Anomaly, now time.Time) {
	if len(anomalies) == 0 && s.cfg.AnomalyRetention <= 0 {
		return
	}
	kept := p.CurrentSession.Anomalies[:0]
	cutoff := now.Add(-s.cfg.AnomalyRetention)
	for _, a := range p.CurrentSession.Anomalies {
		if s.cfg.AnomalyRetention <= 0 || a.Timestamp.After(cutoff) {
			kept = append(kept, a)
		}
	}
	kept = append(kept, anomalies...)
	if over := len(kept) - s.cfg.AnomalyHistoryCap; over > 0 {
		kept = kept[over:]
	}
	p.CurrentSession.Anomalies = kept
}

func (s *Store) save(ctx context.Context, p *domain.BehaviorProfile) error {
	if err := s.repo.Save(ctx, p); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, p.UserID)
		s.cache.Set(ctx, p)
	}
	return nil
}

func appendBounded(xs []float64, x float64, limit int) []float64 {
	xs = append(xs, x)
	if over := len(xs) - limit; limit > 0 && over > 0 {
		xs = xs[over:]
	}
	return xs
}

func appendBoundedTrend(xs []domain.RiskPoint, x domain.RiskPoint, limit int) []domain.RiskPoint {
	xs = append(xs, x)
	if over := len(xs) - limit; limit > 0 && over > 0 {
		xs = xs[over:]
	}
	return xs
}
