package behavior

import (
	"fmt"
	"strings"

	"github.com/caregrid/sentinel/internal/domain"
	"github.com/caregrid/sentinel/internal/feature"
	"github.com/google/uuid"
)

// Per-type anomaly confidence.
const (
	temporalConfidence = 0.7
	accessConfidence   = 0.6
	volumeConfidence   = 0.8
	burstConfidence    = 0.9
)

// Detector evaluates a scored event against the user baseline and the
// acting role's expectations. Each check is independent; one event can raise
// several anomaly types.
type Detector struct {
	highFrequencyThreshold int
}

// NewDetector creates a detector.
func NewDetector(highFrequencyThreshold int) *Detector {
	return &Detector{highFrequencyThreshold: highFrequencyThreshold}
}

// Detect runs the temporal, access and volume checks. Temporal checks only
// fire once the baseline is established.
func (d *Detector) Detect(p *domain.BehaviorProfile, ev *domain.ActionEvent, vec feature.Vector) []domain.Anomaly {
	var anomalies []domain.Anomaly
	exp := domain.ExpectationForRole(p.Role)

	if a := d.temporal(p, ev, vec); a != nil {
		anomalies = append(anomalies, *a)
	}
	if a := d.access(exp, ev, vec); a != nil {
		anomalies = append(anomalies, *a)
	}
	anomalies = append(anomalies, d.volume(p, exp, ev, vec)...)

	return anomalies
}

func (d *Detector) temporal(p *domain.BehaviorProfile, ev *domain.ActionEvent, vec feature.Vector) *domain.Anomaly {
	if !p.Baseline.Established {
		return nil
	}
	for _, h := range p.Baseline.TypicalHours {
		if h == vec.Hour {
			return nil
		}
	}
	a := newAnomaly(ev, vec, domain.AnomalyTemporal,
		fmt.Sprintf("activity at unusual hour: %02d:00", vec.Hour), temporalConfidence)
	a.Context = map[string]any{
		"actualHour":   vec.Hour,
		"typicalHours": p.Baseline.TypicalHours,
	}
	return &a
}

func (d *Detector) access(exp domain.RoleExpectation, ev *domain.ActionEvent, vec feature.Vector) *domain.Anomaly {
	if len(exp.TypicalActions) == 0 {
		return nil
	}
	if actionMatchesAny(vec.Action, exp.TypicalActions) {
		return nil
	}
	a := newAnomaly(ev, vec, domain.AnomalyAccess,
		fmt.Sprintf("action %q outside typical vocabulary for role %s", ev.Action, exp.Role), accessConfidence)
	a.Context = map[string]any{
		"action":         ev.Action,
		"role":           exp.Role,
		"typicalActions": exp.TypicalActions,
	}
	return &a
}

func (d *Detector) volume(p *domain.BehaviorProfile, exp domain.RoleExpectation, ev *domain.ActionEvent, vec feature.Vector) []domain.Anomaly {
	var out []domain.Anomaly

	if exp.SessionDuration.Max > 0 && vec.SessionMinutes > exp.SessionDuration.Max {
		a := newAnomaly(ev, vec, domain.AnomalyVolume,
			fmt.Sprintf("session of %.0f minutes exceeds role maximum %.0f", vec.SessionMinutes, exp.SessionDuration.Max), volumeConfidence)
		a.Context = map[string]any{
			"sessionMinutes": vec.SessionMinutes,
			"roleMaximum":    exp.SessionDuration.Max,
		}
		out = append(out, a)
	}

	if p.CurrentSession.ActionCount > d.highFrequencyThreshold {
		a := newAnomaly(ev, vec, domain.AnomalyVolume,
			fmt.Sprintf("high action frequency: %d actions this session", p.CurrentSession.ActionCount), burstConfidence)
		// A burst is high severity whatever the action's keywords say.
		a.Severity = domain.SeverityHigh
		a.Context = map[string]any{
			"actionCount": p.CurrentSession.ActionCount,
			"threshold":   d.highFrequencyThreshold,
		}
		out = append(out, a)
	}

	return out
}

func newAnomaly(ev *domain.ActionEvent, vec feature.Vector, typ domain.AnomalyType, description string, confidence float64) domain.Anomaly {
	return domain.Anomaly{
		ID:          uuid.New().String(),
		ActorID:     ev.ActorID,
		SessionID:   ev.SessionID,
		Timestamp:   vec.Timestamp,
		Type:        typ,
		Severity:    severityForAction(vec.Action),
		Description: description,
		Confidence:  confidence,
	}
}

// severityForAction ranks by the action's keywords: administrative and
// destructive actions highest, data egress in the middle.
func severityForAction(action string) domain.Severity {
	switch {
	case strings.Contains(action, "admin") || strings.Contains(action, "delete"):
		return domain.SeverityHigh
	case strings.Contains(action, "export") || strings.Contains(action, "audit"):
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}

// actionMatchesAny reports whether the action matches the vocabulary by
// substring in either direction, tolerating prefixed/suffixed action names.
func actionMatchesAny(action string, vocabulary []string) bool {
	for _, v := range vocabulary {
		v = strings.ToLower(v)
		if strings.Contains(action, v) || strings.Contains(v, action) {
			return true
		}
	}
	return false
}
