package behavior

import (
	"testing"
	"time"

	"github.com/caregrid/sentinel/internal/domain"
	"github.com/caregrid/sentinel/internal/feature"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doctorProfile() *domain.BehaviorProfile {
	p := domain.NewBehaviorProfile("doc-1", time.Now().UTC())
	p.Role = "doctor"
	return p
}

func detectorEvent(action string) *domain.ActionEvent {
	return &domain.ActionEvent{ActorID: "doc-1", SessionID: "s1", Action: action}
}

func vecFor(action string, hour int, minutes float64) feature.Vector {
	return feature.Vector{Action: action, Hour: hour, SessionMinutes: minutes, Timestamp: time.Now().UTC()}
}

func TestDetectTemporal(t *testing.T) {
	d := NewDetector(100)

	t.Run("silent before baseline", func(t *testing.T) {
		p := doctorProfile()
		anomalies := d.Detect(p, detectorEvent("view_lab_results"), vecFor("view_lab_results", 3, 60))
		for _, a := range anomalies {
			assert.NotEqual(t, domain.AnomalyTemporal, a.Type)
		}
	})

	t.Run("fires outside typical hours", func(t *testing.T) {
		p := doctorProfile()
		p.Baseline.Established = true
		p.Baseline.TypicalHours = []int{9, 10, 11}

		anomalies := d.Detect(p, detectorEvent("view_lab_results"), vecFor("view_lab_results", 3, 60))
		require.Len(t, anomalies, 1)
		assert.Equal(t, domain.AnomalyTemporal, anomalies[0].Type)
		assert.Equal(t, 0.7, anomalies[0].Confidence)
		assert.Equal(t, 3, anomalies[0].Context["actualHour"])
	})

	t.Run("silent within typical hours", func(t *testing.T) {
		p := doctorProfile()
		p.Baseline.Established = true
		p.Baseline.TypicalHours = []int{9, 10, 11}

		anomalies := d.Detect(p, detectorEvent("view_lab_results"), vecFor("view_lab_results", 10, 60))
		assert.Empty(t, anomalies)
	})
}

func TestDetectAccess(t *testing.T) {
	d := NewDetector(100)

	t.Run("fires on out-of-vocabulary action", func(t *testing.T) {
		p := doctorProfile()
		anomalies := d.Detect(p, detectorEvent("modify_billing_rates"), vecFor("modify_billing_rates", 10, 60))
		require.Len(t, anomalies, 1)
		assert.Equal(t, domain.AnomalyAccess, anomalies[0].Type)
		assert.Equal(t, 0.6, anomalies[0].Confidence)
	})

	t.Run("matches vocabulary by substring", func(t *testing.T) {
		p := doctorProfile()
		// "view" is a substring of the doctor's "view_lab_results".
		anomalies := d.Detect(p, detectorEvent("view"), vecFor("view", 10, 60))
		assert.Empty(t, anomalies)
	})

	t.Run("silent for roles without vocabulary", func(t *testing.T) {
		p := doctorProfile()
		p.Role = "employee"
		anomalies := d.Detect(p, detectorEvent("anything_at_all"), vecFor("anything_at_all", 10, 60))
		assert.Empty(t, anomalies)
	})
}

func TestDetectVolume(t *testing.T) {
	d := NewDetector(3)

	t.Run("session beyond role maximum", func(t *testing.T) {
		p := doctorProfile()
		// Doctor maximum is 180 minutes.
		anomalies := d.Detect(p, detectorEvent("view_lab_results"), vecFor("view_lab_results", 10, 300))
		require.Len(t, anomalies, 1)
		assert.Equal(t, domain.AnomalyVolume, anomalies[0].Type)
		assert.Equal(t, 0.8, anomalies[0].Confidence)
	})

	t.Run("high frequency forces high severity", func(t *testing.T) {
		p := doctorProfile()
		p.CurrentSession.ActionCount = 4
		anomalies := d.Detect(p, detectorEvent("view_lab_results"), vecFor("view_lab_results", 10, 60))
		require.Len(t, anomalies, 1)
		assert.Equal(t, domain.AnomalyVolume, anomalies[0].Type)
		assert.Equal(t, domain.SeverityHigh, anomalies[0].Severity)
		assert.Equal(t, 0.9, anomalies[0].Confidence)
	})
}

func TestSeverityForAction(t *testing.T) {
	assert.Equal(t, domain.SeverityHigh, severityForAction("delete_patient"))
	assert.Equal(t, domain.SeverityHigh, severityForAction("admin_override"))
	assert.Equal(t, domain.SeverityMedium, severityForAction("export_records"))
	assert.Equal(t, domain.SeverityMedium, severityForAction("audit_review"))
	assert.Equal(t, domain.SeverityLow, severityForAction("view_dashboard"))
}

func TestOneEventCanRaiseMultipleTypes(t *testing.T) {
	d := NewDetector(3)
	p := doctorProfile()
	p.Baseline.Established = true
	p.Baseline.TypicalHours = []int{9, 10}
	p.CurrentSession.ActionCount = 4

	// Odd hour, out-of-vocabulary action, overlong session, high frequency.
	anomalies := d.Detect(p, detectorEvent("modify_billing_rates"), vecFor("modify_billing_rates", 3, 300))
	types := map[domain.AnomalyType]int{}
	for _, a := range anomalies {
		types[a.Type]++
	}
	assert.Equal(t, 1, types[domain.AnomalyTemporal])
	assert.Equal(t, 1, types[domain.AnomalyAccess])
	assert.Equal(t, 2, types[domain.AnomalyVolume])
}
