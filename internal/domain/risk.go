package domain

import "time"

// RiskLevel classifies a risk score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Canonical level thresholds. The 0.4/0.7 split follows the original
// deployment; the critical band covers the top decile.
const (
	MediumThreshold   = 0.4
	HighThreshold     = 0.7
	CriticalThreshold = 0.9
)

// LevelForScore maps a score in [0,1] to its risk level. Deterministic and
// monotonic: identical scores always yield identical levels.
func LevelForScore(score float64) RiskLevel {
	switch {
	case score >= CriticalThreshold:
		return RiskCritical
	case score >= HighThreshold:
		return RiskHigh
	case score >= MediumThreshold:
		return RiskMedium
	default:
		return RiskLow
	}
}

// RiskAssessment is the scored outcome for one event.
type RiskAssessment struct {
	ActorID          string    `json:"actorId"`
	SessionID        string    `json:"sessionId"`
	Action           string    `json:"action"`
	RiskScore        float64   `json:"riskScore"`
	RiskLevel        RiskLevel `json:"riskLevel"`
	ModelContributed bool      `json:"modelContributed"`
	HeuristicScore   float64   `json:"heuristicScore"`
	Factors          []string  `json:"factors,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}
