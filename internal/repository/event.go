package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/caregrid/sentinel/internal/domain"
)

// StoredEvent pairs a persisted action event with its row id, for
// training-set assembly and bulk recompute.
type StoredEvent struct {
	ID    int64
	Event domain.ActionEvent
}

// EventRepository provides access to the action_events table.
type EventRepository struct{}

// NewEventRepository creates an EventRepository.
func NewEventRepository() *EventRepository {
	return &EventRepository{}
}

// Insert persists a raw event. eventTime is nil when the timestamp did not
// parse; such rows are kept (the raw string is preserved) but excluded from
// training sets.
func (r *EventRepository) Insert(ctx context.Context, db DBTX, ev *domain.ActionEvent, eventTime *time.Time) (int64, error) {
	meta, err := json.Marshal(ev.Metadata)
	if err != nil {
		meta = []byte("{}")
	}
	var id int64
	err = db.QueryRow(ctx,
		`INSERT INTO action_events (actor_id, actor_username, roles, action, event_time, raw_timestamp,
		 session_id, session_minutes, device_type, ip_address, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id`,
		ev.ActorID, ev.ActorUsername, ev.Roles, ev.Action, eventTime, ev.Timestamp,
		ev.SessionID, ev.SessionDuration, ev.DeviceType, ev.IPAddress, meta,
	).Scan(&id)
	return id, err
}

// MarkScored records the assessment outcome on the event row.
func (r *EventRepository) MarkScored(ctx context.Context, db DBTX, id int64, a domain.RiskAssessment) error {
	_, err := db.Exec(ctx,
		`UPDATE action_events SET risk_score = $2, risk_level = $3, model_contributed = $4, scored_at = now()
		 WHERE id = $1`,
		id, a.RiskScore, string(a.RiskLevel), a.ModelContributed)
	return err
}

// ListForTraining returns the most recent events with parseable timestamps,
// newest first, up to limit.
func (r *EventRepository) ListForTraining(ctx context.Context, db DBTX, limit int) ([]StoredEvent, error) {
	rows, err := db.Query(ctx,
		`SELECT id, actor_id, actor_username, roles, action, raw_timestamp,
		        session_id, session_minutes, device_type, ip_address
		 FROM action_events
		 WHERE event_time IS NOT NULL
		 ORDER BY event_time DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStoredEvents(rows)
}

// ListUnscored returns historical events that have never been scored.
func (r *EventRepository) ListUnscored(ctx context.Context, db DBTX, limit int) ([]StoredEvent, error) {
	rows, err := db.Query(ctx,
		`SELECT id, actor_id, actor_username, roles, action, raw_timestamp,
		        session_id, session_minutes, device_type, ip_address
		 FROM action_events
		 WHERE risk_score IS NULL
		 ORDER BY id
		 LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStoredEvents(rows)
}

// Count returns the total number of persisted events.
func (r *EventRepository) Count(ctx context.Context, db DBTX) (int, error) {
	var n int
	err := db.QueryRow(ctx, `SELECT count(*) FROM action_events`).Scan(&n)
	return n, err
}

type rowsLike interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanStoredEvents(rows rowsLike) ([]StoredEvent, error) {
	var out []StoredEvent
	for rows.Next() {
		var se StoredEvent
		err := rows.Scan(&se.ID, &se.Event.ActorID, &se.Event.ActorUsername, &se.Event.Roles,
			&se.Event.Action, &se.Event.Timestamp, &se.Event.SessionID, &se.Event.SessionDuration,
			&se.Event.DeviceType, &se.Event.IPAddress)
		if err != nil {
			return nil, err
		}
		out = append(out, se)
	}
	return out, rows.Err()
}
