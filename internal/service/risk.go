// Package service orchestrates the scoring pipeline over the repositories,
// the profile store and the messaging fan-out.
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/caregrid/sentinel/internal/behavior"
	"github.com/caregrid/sentinel/internal/domain"
	"github.com/caregrid/sentinel/internal/infra"
	"github.com/caregrid/sentinel/internal/provider"
	"github.com/caregrid/sentinel/internal/repository"
	"github.com/caregrid/sentinel/internal/scoring"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RiskService runs the full per-event flow: validate, enrich, score, persist,
// update the behavior profile, and publish the assessment.
type RiskService struct {
	pool            *pgxpool.Pool
	scorer          *scoring.Scorer
	store           *behavior.Store
	events          *repository.EventRepository
	assessments     *repository.AssessmentRepository
	anomalies       *repository.AnomalyRepository
	profiles        *repository.PgProfileRepository
	devices         *provider.DeviceLookupClient
	producer        *infra.KafkaProducer
	assessmentTopic string
	logger          *slog.Logger
}

// NewRiskService wires the scoring pipeline.
func NewRiskService(
	pool *pgxpool.Pool,
	scorer *scoring.Scorer,
	store *behavior.Store,
	events *repository.EventRepository,
	assessments *repository.AssessmentRepository,
	anomalies *repository.AnomalyRepository,
	profiles *repository.PgProfileRepository,
	devices *provider.DeviceLookupClient,
	producer *infra.KafkaProducer,
	assessmentTopic string,
	logger *slog.Logger,
) *RiskService {
	return &RiskService{
		pool:            pool,
		scorer:          scorer,
		store:           store,
		events:          events,
		assessments:     assessments,
		anomalies:       anomalies,
		profiles:        profiles,
		devices:         devices,
		producer:        producer,
		assessmentTopic: assessmentTopic,
		logger:          logger,
	}
}

// Ingest scores one event and folds it into the actor's profile. Validation
// failures reject the event before any state is touched.
func (s *RiskService) Ingest(ctx context.Context, ev *domain.ActionEvent) (domain.RiskAssessment, *domain.BehaviorProfile, error) {
	if err := ev.Validate(); err != nil {
		return domain.RiskAssessment{}, nil, err
	}

	s.enrichDevice(ctx, ev)

	var eventTime *time.Time
	if t, ok := ev.ParsedTime(); ok {
		eventTime = &t
	}
	eventID, err := s.events.Insert(ctx, s.pool, ev, eventTime)
	if err != nil {
		return domain.RiskAssessment{}, nil, domain.ErrInternal("persist event", err)
	}

	assessment := s.scorer.ScoreEvent(ev)

	if err := s.events.MarkScored(ctx, s.pool, eventID, assessment); err != nil {
		s.logger.Error("mark event scored failed", "event_id", eventID, "error", err)
	}
	if err := s.assessments.Insert(ctx, s.pool, assessment); err != nil {
		s.logger.Error("persist assessment failed", "actor_id", ev.ActorID, "error", err)
	}

	profile, raised, err := s.store.Apply(ctx, ev, assessment)
	if err != nil {
		return assessment, nil, domain.ErrInternal("update profile", err)
	}
	if err := s.anomalies.InsertAll(ctx, s.pool, raised); err != nil {
		s.logger.Error("persist anomalies failed", "actor_id", ev.ActorID, "error", err)
	}

	s.publish(ctx, assessment)
	return assessment, profile, nil
}

// BatchRecord is one outcome of a batch scoring request.
type BatchRecord struct {
	Index      int                    `json:"index"`
	Assessment *domain.RiskAssessment `json:"assessment,omitempty"`
	Error      string                 `json:"error,omitempty"`
}

// IngestBatch scores a batch. The model's degeneracy check runs over the
// batch as a whole; individually invalid records are reported without
// failing their neighbours.
func (s *RiskService) IngestBatch(ctx context.Context, events []domain.ActionEvent) []BatchRecord {
	out := make([]BatchRecord, len(events))

	var valid []*domain.ActionEvent
	var validIdx []int
	for i := range events {
		ev := &events[i]
		if err := ev.Validate(); err != nil {
			out[i] = BatchRecord{Index: i, Error: err.Error()}
			continue
		}
		s.enrichDevice(ctx, ev)
		valid = append(valid, ev)
		validIdx = append(validIdx, i)
	}

	assessments := s.scorer.ScoreBatch(valid)
	for j, ev := range valid {
		a := assessments[j]
		i := validIdx[j]

		var eventTime *time.Time
		if t, ok := ev.ParsedTime(); ok {
			eventTime = &t
		}
		if eventID, err := s.events.Insert(ctx, s.pool, ev, eventTime); err == nil {
			if err := s.events.MarkScored(ctx, s.pool, eventID, a); err != nil {
				s.logger.Error("mark event scored failed", "event_id", eventID, "error", err)
			}
		} else {
			s.logger.Error("persist event failed", "actor_id", ev.ActorID, "error", err)
		}
		if err := s.assessments.Insert(ctx, s.pool, a); err != nil {
			s.logger.Error("persist assessment failed", "actor_id", ev.ActorID, "error", err)
		}

		if _, raised, err := s.store.Apply(ctx, ev, a); err != nil {
			s.logger.Error("update profile failed", "actor_id", ev.ActorID, "error", err)
		} else if err := s.anomalies.InsertAll(ctx, s.pool, raised); err != nil {
			s.logger.Error("persist anomalies failed", "actor_id", ev.ActorID, "error", err)
		}

		s.publish(ctx, a)
		out[i] = BatchRecord{Index: i, Assessment: &a}
	}
	return out
}

// Profile returns the full behavior profile, or a NOT_FOUND error.
func (s *RiskService) Profile(ctx context.Context, userID string) (*domain.BehaviorProfile, error) {
	p, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, domain.ErrInternal("load profile", err)
	}
	if p == nil {
		return nil, domain.ErrNotFound("profile", userID)
	}
	return p, nil
}

// Summaries returns the condensed view of every profile.
func (s *RiskService) Summaries(ctx context.Context, limit int) ([]domain.ProfileSummary, error) {
	profiles, err := s.profiles.List(ctx, limit)
	if err != nil {
		return nil, domain.ErrInternal("list profiles", err)
	}
	out := make([]domain.ProfileSummary, 0, len(profiles))
	for i := range profiles {
		out = append(out, profiles[i].Summary())
	}
	return out, nil
}

// enrichDevice resolves a device bucket from the IP when the event carries
// none. The lookup is fail-open and bounded by the client's timeout.
func (s *RiskService) enrichDevice(ctx context.Context, ev *domain.ActionEvent) {
	if ev.DeviceType != "" || s.devices == nil {
		return
	}
	ev.DeviceType = s.devices.Resolve(ctx, ev.IPAddress)
}

func (s *RiskService) publish(ctx context.Context, a domain.RiskAssessment) {
	payload, err := json.Marshal(a)
	if err != nil {
		return
	}
	if err := s.producer.Publish(ctx, s.assessmentTopic, []byte(a.ActorID), payload); err != nil {
		s.logger.Warn("publish assessment failed", "actor_id", a.ActorID, "error", err)
	}
}
