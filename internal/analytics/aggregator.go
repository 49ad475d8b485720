// Package analytics provides read-side rollups over persisted assessments
// and anomalies. Stateless with respect to the live scoring path.
package analytics

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Aggregator runs reporting queries against the store.
type Aggregator struct {
	pool *pgxpool.Pool
}

// NewAggregator creates an Aggregator.
func NewAggregator(pool *pgxpool.Pool) *Aggregator {
	return &Aggregator{pool: pool}
}

// Overview summarizes risk over a window.
type Overview struct {
	WindowDays       int            `json:"windowDays"`
	AssessmentCount  int            `json:"assessmentCount"`
	MeanRiskScore    float64        `json:"meanRiskScore"`
	WeeklyMeanScore  float64        `json:"weeklyMeanScore"`
	AnomalyCounts    map[string]int `json:"anomalyCountsBySeverity"`
	HighRiskShare    float64        `json:"highRiskShare"`
}

// UserRisk is one row of the top-users report.
type UserRisk struct {
	ActorID         string  `json:"actorId"`
	MeanRiskScore   float64 `json:"meanRiskScore"`
	MaxRiskScore    float64 `json:"maxRiskScore"`
	AssessmentCount int     `json:"assessmentCount"`
}

// TrendPoint is one day of the risk trend series.
type TrendPoint struct {
	Day           time.Time `json:"day"`
	MeanRiskScore float64   `json:"meanRiskScore"`
	Assessments   int       `json:"assessments"`
}

// GetOverview computes window-wide means and anomaly counts by severity.
func (a *Aggregator) GetOverview(ctx context.Context, windowDays int) (*Overview, error) {
	ov := &Overview{WindowDays: windowDays, AnomalyCounts: map[string]int{}}

	err := a.pool.QueryRow(ctx, `
		SELECT count(*),
		       coalesce(avg(risk_score), 0),
		       coalesce(avg(risk_score) FILTER (WHERE assessed_at > now() - interval '7 days'), 0),
		       coalesce(avg(CASE WHEN risk_level IN ('high', 'critical') THEN 1.0 ELSE 0.0 END), 0)
		FROM risk_assessments
		WHERE assessed_at > now() - make_interval(days => $1)`,
		windowDays).Scan(&ov.AssessmentCount, &ov.MeanRiskScore, &ov.WeeklyMeanScore, &ov.HighRiskShare)
	if err != nil {
		return nil, err
	}

	rows, err := a.pool.Query(ctx, `
		SELECT severity, count(*)
		FROM anomalies
		WHERE occurred_at > now() - make_interval(days => $1)
		GROUP BY severity`, windowDays)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var severity string
		var count int
		if err := rows.Scan(&severity, &count); err != nil {
			return nil, err
		}
		ov.AnomalyCounts[severity] = count
	}
	return ov, rows.Err()
}

// TopUsers returns the highest mean-risk actors over the window.
func (a *Aggregator) TopUsers(ctx context.Context, windowDays, limit int) ([]UserRisk, error) {
	rows, err := a.pool.Query(ctx, `
		SELECT actor_id, avg(risk_score), max(risk_score), count(*)
		FROM risk_assessments
		WHERE assessed_at > now() - make_interval(days => $1)
		GROUP BY actor_id
		ORDER BY avg(risk_score) DESC
		LIMIT $2`, windowDays, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []UserRisk
	for rows.Next() {
		var ur UserRisk
		if err := rows.Scan(&ur.ActorID, &ur.MeanRiskScore, &ur.MaxRiskScore, &ur.AssessmentCount); err != nil {
			return nil, err
		}
		out = append(out, ur)
	}
	return out, rows.Err()
}

// Trend returns the daily mean-risk series for the window, oldest first.
func (a *Aggregator) Trend(ctx context.Context, windowDays int) ([]TrendPoint, error) {
	rows, err := a.pool.Query(ctx, `
		SELECT date_trunc('day', assessed_at) AS day, avg(risk_score), count(*)
		FROM risk_assessments
		WHERE assessed_at > now() - make_interval(days => $1)
		GROUP BY day
		ORDER BY day`, windowDays)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TrendPoint
	for rows.Next() {
		var tp TrendPoint
		if err := rows.Scan(&tp.Day, &tp.MeanRiskScore, &tp.Assessments); err != nil {
			return nil, err
		}
		out = append(out, tp)
	}
	return out, rows.Err()
}
