package repository

import (
	"context"

	"github.com/caregrid/sentinel/internal/domain"
)

// AssessmentRepository provides access to the risk_assessments table.
type AssessmentRepository struct{}

// NewAssessmentRepository creates an AssessmentRepository.
func NewAssessmentRepository() *AssessmentRepository {
	return &AssessmentRepository{}
}

// Insert persists one assessment.
func (r *AssessmentRepository) Insert(ctx context.Context, db DBTX, a domain.RiskAssessment) error {
	_, err := db.Exec(ctx,
		`INSERT INTO risk_assessments (actor_id, session_id, action, risk_score, risk_level,
		 model_contributed, heuristic_score, factors, assessed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ActorID, a.SessionID, a.Action, a.RiskScore, string(a.RiskLevel),
		a.ModelContributed, a.HeuristicScore, a.Factors, a.Timestamp)
	return err
}
