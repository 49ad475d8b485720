package repository

import (
	"context"
	"encoding/json"

	"github.com/caregrid/sentinel/internal/domain"
)

// AnomalyRepository provides access to the anomalies table.
type AnomalyRepository struct{}

// NewAnomalyRepository creates an AnomalyRepository.
func NewAnomalyRepository() *AnomalyRepository {
	return &AnomalyRepository{}
}

// Insert persists one anomaly.
func (r *AnomalyRepository) Insert(ctx context.Context, db DBTX, a domain.Anomaly) error {
	ctxJSON, err := json.Marshal(a.Context)
	if err != nil {
		ctxJSON = []byte("{}")
	}
	_, err = db.Exec(ctx,
		`INSERT INTO anomalies (id, actor_id, session_id, type, severity, description, confidence, context, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO NOTHING`,
		a.ID, a.ActorID, a.SessionID, string(a.Type), string(a.Severity),
		a.Description, a.Confidence, ctxJSON, a.Timestamp)
	return err
}

// InsertAll persists a batch of anomalies.
func (r *AnomalyRepository) InsertAll(ctx context.Context, db DBTX, anomalies []domain.Anomaly) error {
	for _, a := range anomalies {
		if err := r.Insert(ctx, db, a); err != nil {
			return err
		}
	}
	return nil
}
