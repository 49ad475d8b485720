package domain

import "time"

// AnomalyType discriminates what kind of deviation was observed.
type AnomalyType string

const (
	AnomalyTemporal AnomalyType = "temporal"
	AnomalyAccess   AnomalyType = "access"
	AnomalyVolume   AnomalyType = "volume"
)

// Severity ranks an anomaly.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Anomaly is a detected, typed deviation from baseline or role expectation.
// Immutable once created.
type Anomaly struct {
	ID          string         `json:"id"`
	ActorID     string         `json:"actorId"`
	SessionID   string         `json:"sessionId"`
	Timestamp   time.Time      `json:"timestamp"`
	Type        AnomalyType    `json:"type"`
	Severity    Severity       `json:"severity"`
	Description string         `json:"description"`
	Confidence  float64        `json:"confidence"`
	Context     map[string]any `json:"context,omitempty"`
}
