package domain

import "time"

// ProfileExportVersion tags serialized profiles for forward compatibility.
const ProfileExportVersion = "1"

// BehaviorProfile is the per-user behavioral aggregate. One profile per user
// id, created lazily on first event, mutated on every event under the
// store's per-user lock.
type BehaviorProfile struct {
	UserID         string          `json:"userId"`
	Username       string          `json:"username"`
	Role           string          `json:"role"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
	ImportedAt     *time.Time      `json:"importedAt,omitempty"`
	EventCount     int             `json:"eventCount"`
	Baseline       Baseline        `json:"baseline"`
	CurrentSession SessionMetrics  `json:"currentSession"`
	Patterns       PatternHistory  `json:"patterns"`
	PeerAnalysis   PeerAnalysis    `json:"peerAnalysis"`
}

// Baseline is the learned typical-behavior envelope. Established flips
// false→true exactly once; only an explicit rebaseline recomputes it.
type Baseline struct {
	Established       bool       `json:"established"`
	EstablishedAt     *time.Time `json:"establishedAt,omitempty"`
	TypicalHours      []int      `json:"typicalHours"`
	CommonActions     []string   `json:"commonActions"`
	PeakActivityHours []int      `json:"peakActivityHours"`
	AvgSessionMinutes float64    `json:"avgSessionMinutes"`
	RiskLevel         RiskLevel  `json:"riskLevel"`
}

// SessionMetrics tracks the profile's current session. DurationMinutes is the
// last duration reported by an event in this session; it becomes the closed
// session's length when the session id rolls.
type SessionMetrics struct {
	ID              string         `json:"id"`
	StartedAt       time.Time      `json:"startedAt"`
	ActionCount     int            `json:"actionCount"`
	UniqueActions   int            `json:"uniqueActions"`
	ActionCounts    map[string]int `json:"actionCounts"`
	DurationMinutes float64        `json:"durationMinutes"`
	RiskScore       float64        `json:"riskScore"`
	Anomalies       []Anomaly      `json:"anomalies"`
}

// PatternHistory accumulates bounded behavioral histories. DurationSum and
// DurationSamples aggregate the per-event reported durations; SessionMinutes
// holds the lengths of closed sessions.
type PatternHistory struct {
	HourCounts      map[int]int    `json:"hourCounts"`
	DayCounts       map[int]int    `json:"dayCounts"`
	ActionCounts    map[string]int `json:"actionCounts"`
	DeviceCounts    map[string]int `json:"deviceCounts"`
	SessionMinutes  []float64      `json:"sessionMinutes"`
	DurationSum     float64        `json:"durationSum"`
	DurationSamples int            `json:"durationSamples"`
	RiskTrend       []RiskPoint    `json:"riskTrend"`
}

// RiskPoint is one sample of the risk trend series.
type RiskPoint struct {
	At    time.Time `json:"at"`
	Score float64   `json:"score"`
}

// PeerAnalysis compares the profile against static role expectations.
// Consistency is relative to the role's typical action vocabulary; the risk
// ranking is a simplified percentile proxy, not a cohort statistic.
type PeerAnalysis struct {
	RoleGroup        string  `json:"roleGroup"`
	ConsistencyScore float64 `json:"consistencyScore"`
	OutlierScore     float64 `json:"outlierScore"`
	RiskRanking      int     `json:"riskRanking"`
}

// ProfileExport is the versioned envelope for profile export/import.
type ProfileExport struct {
	Version    string          `json:"version"`
	ExportedAt time.Time       `json:"exportedAt"`
	Profile    BehaviorProfile `json:"profile"`
}

// ProfileSummary is the condensed read model served alongside the full profile.
type ProfileSummary struct {
	UserID              string    `json:"userId"`
	RiskScore           float64   `json:"riskScore"`
	RiskLevel           RiskLevel `json:"riskLevel"`
	ConsistencyScore    float64   `json:"consistencyScore"`
	AnomalyCount        int       `json:"anomalyCount"`
	BaselineEstablished bool      `json:"baselineEstablished"`
}

// NewBehaviorProfile returns an empty profile for the given user.
func NewBehaviorProfile(userID string, now time.Time) *BehaviorProfile {
	return &BehaviorProfile{
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
		Baseline: Baseline{
			TypicalHours:      []int{},
			CommonActions:     []string{},
			PeakActivityHours: []int{},
			RiskLevel:         RiskLow,
		},
		CurrentSession: SessionMetrics{
			ActionCounts: map[string]int{},
			Anomalies:    []Anomaly{},
		},
		Patterns: PatternHistory{
			HourCounts:     map[int]int{},
			DayCounts:      map[int]int{},
			ActionCounts:   map[string]int{},
			DeviceCounts:   map[string]int{},
			SessionMinutes: []float64{},
			RiskTrend:      []RiskPoint{},
		},
	}
}

// Summary condenses the profile into its read model.
func (p *BehaviorProfile) Summary() ProfileSummary {
	return ProfileSummary{
		UserID:              p.UserID,
		RiskScore:           p.CurrentSession.RiskScore,
		RiskLevel:           LevelForScore(p.CurrentSession.RiskScore),
		ConsistencyScore:    p.PeerAnalysis.ConsistencyScore,
		AnomalyCount:        len(p.CurrentSession.Anomalies),
		BaselineEstablished: p.Baseline.Established,
	}
}
