package scoring

import (
	"log/slog"

	"github.com/caregrid/sentinel/internal/domain"
	"github.com/caregrid/sentinel/internal/feature"
	"github.com/caregrid/sentinel/internal/model"
)

// Scorer runs the stateless per-event scoring path: feature extraction, the
// current outlier model, the heuristic estimator, and the blender. Safe for
// concurrent use across events and users.
type Scorer struct {
	models    *model.Provider
	heuristic *Heuristic
	blender   *Blender
	logger    *slog.Logger
}

// NewScorer assembles the scoring path.
func NewScorer(models *model.Provider, heuristic *Heuristic, blender *Blender, logger *slog.Logger) *Scorer {
	return &Scorer{models: models, heuristic: heuristic, blender: blender, logger: logger}
}

// ScoreEvent scores a single event. With no trained model, or a degenerate
// one, the heuristic carries the assessment alone; the request still
// succeeds either way.
func (s *Scorer) ScoreEvent(ev *domain.ActionEvent) domain.RiskAssessment {
	vec := feature.Extract(ev)
	hScore, factors := s.heuristic.Score(vec, ev.ActorID+"|"+ev.Timestamp)

	final := hScore
	contributed := false

	if forest := s.models.Current(); forest != nil {
		decision := forest.Decision(vec)
		min, max := forest.Calibration()
		final, contributed = s.blender.Blend(decision, min, max, forest.IsAnomalous(decision), hScore)
		if !contributed {
			s.logger.Warn("model degenerate, heuristic fallback", "actor_id", ev.ActorID)
		}
	}

	return domain.RiskAssessment{
		ActorID:          ev.ActorID,
		SessionID:        ev.SessionID,
		Action:           ev.Action,
		RiskScore:        final,
		RiskLevel:        domain.LevelForScore(final),
		ModelContributed: contributed,
		HeuristicScore:   hScore,
		Factors:          factors,
		Timestamp:        vec.Timestamp,
	}
}

// ScoreBatch scores a batch of events. The model's decision spread is taken
// over the batch itself (the training calibration for singleton batches);
// if that spread is below epsilon the whole batch falls back to the
// heuristic.
func (s *Scorer) ScoreBatch(events []*domain.ActionEvent) []domain.RiskAssessment {
	out := make([]domain.RiskAssessment, len(events))

	forest := s.models.Current()
	if forest == nil || len(events) < 2 {
		for i, ev := range events {
			out[i] = s.ScoreEvent(ev)
		}
		return out
	}

	vectors := make([]feature.Vector, len(events))
	decisions := make([]float64, len(events))
	min, max := 0.0, 0.0
	for i, ev := range events {
		vectors[i] = feature.Extract(ev)
		decisions[i] = forest.Decision(vectors[i])
		if i == 0 || decisions[i] < min {
			min = decisions[i]
		}
		if i == 0 || decisions[i] > max {
			max = decisions[i]
		}
	}

	if s.blender.Degenerate(min, max) {
		s.logger.Warn("model degenerate for batch, heuristic fallback", "batch_size", len(events))
	}

	for i, ev := range events {
		hScore, factors := s.heuristic.Score(vectors[i], ev.ActorID+"|"+ev.Timestamp)
		final, contributed := s.blender.Blend(decisions[i], min, max, forest.IsAnomalous(decisions[i]), hScore)
		out[i] = domain.RiskAssessment{
			ActorID:          ev.ActorID,
			SessionID:        ev.SessionID,
			Action:           ev.Action,
			RiskScore:        final,
			RiskLevel:        domain.LevelForScore(final),
			ModelContributed: contributed,
			HeuristicScore:   hScore,
			Factors:          factors,
			Timestamp:        vectors[i].Timestamp,
		}
	}
	return out
}
