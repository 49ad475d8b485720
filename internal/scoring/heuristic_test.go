package scoring

import (
	"fmt"
	"math"
	"testing"

	"github.com/caregrid/sentinel/internal/feature"
	"github.com/stretchr/testify/assert"
)

func vectorFor(role, action string, hour int, weekend bool, device string, minutes float64) feature.Vector {
	return feature.Vector{
		Role:              role,
		Action:            action,
		Hour:              hour,
		IsWeekend:         weekend,
		IsBusinessHours:   hour >= 9 && hour < 17,
		Device:            device,
		SessionMinutes:    minutes,
		IsSensitiveAction: false,
		IsFailedAction:    false,
	}
}

func TestHeuristicBaseReproducible(t *testing.T) {
	h := NewHeuristic(DefaultWeights())
	v := vectorFor("nurse", "view_patient_record", 10, false, "desktop", 45)
	v.IsSensitiveAction = true

	s1, f1 := h.Base(v)
	s2, f2 := h.Base(v)
	assert.Equal(t, s1, s2)
	assert.Equal(t, f1, f2)
}

func TestHeuristicJitterBounded(t *testing.T) {
	h := NewHeuristic(DefaultWeights())
	v := vectorFor("nurse", "view_patient_record", 10, false, "desktop", 45)
	v.IsSensitiveAction = true

	base, _ := h.Base(v)
	for _, seed := range []string{"u1|t1", "u2|t2", "u3|t3", "u1|t2"} {
		score, _ := h.Score(v, seed)
		assert.InDelta(t, base, score, DefaultWeights().JitterBound+1e-9, "seed %s", seed)
	}

	// Same seed key, same score.
	a, _ := h.Score(v, "u1|2025-03-04T10:00:00Z")
	b, _ := h.Score(v, "u1|2025-03-04T10:00:00Z")
	assert.Equal(t, a, b)
}

func TestHeuristicRoutineDaytimeAccessScoresLow(t *testing.T) {
	h := NewHeuristic(DefaultWeights())
	// Nurse viewing a patient record mid-morning on a weekday from a desktop:
	// base 0.18 + role 0.04 + clinical action 0.06 - business hours 0.05
	// + sensitive 0.06 = 0.29.
	v := vectorFor("nurse", "view_patient_record", 10, false, "desktop", 45)
	v.IsSensitiveAction = true

	base, factors := h.Base(v)
	assert.InDelta(t, 0.29, base, 1e-9)
	assert.Contains(t, factors, "role:nurse")
	assert.Contains(t, factors, "action:clinical")
	assert.Contains(t, factors, "sensitive_action")

	score, _ := h.Score(v, "nurse-1|2025-03-04T10:00:00Z")
	assert.Less(t, score, 0.4)
	assert.Greater(t, score, 0.15)
}

func TestHeuristicNightDeletionScoresHigh(t *testing.T) {
	h := NewHeuristic(DefaultWeights())
	// Admin deleting at 02:00 on a weekend from an unknown device stacks
	// nearly every offset.
	v := vectorFor("admin", "delete_audit_records", 2, true, "unknown", 45)
	v.IsSensitiveAction = true

	score, factors := h.Score(v, "admin-1|2025-03-08T02:00:00Z")
	assert.GreaterOrEqual(t, score, 0.7)
	assert.LessOrEqual(t, score, 0.95)
	assert.Contains(t, factors, "action:delete")
	assert.Contains(t, factors, "time:night")
	assert.Contains(t, factors, "time:weekend")
	assert.Contains(t, factors, "device:unknown")
}

func TestHeuristicOrdering(t *testing.T) {
	h := NewHeuristic(DefaultWeights())

	t.Run("delete outranks view", func(t *testing.T) {
		del, _ := h.Base(vectorFor("user", "delete_record_entry", 10, false, "desktop", 45))
		view, _ := h.Base(vectorFor("user", "view_dashboard", 10, false, "desktop", 45))
		assert.Greater(t, del, view)
	})

	t.Run("night outranks business hours", func(t *testing.T) {
		night, _ := h.Base(vectorFor("user", "view_dashboard", 3, false, "desktop", 45))
		day, _ := h.Base(vectorFor("user", "view_dashboard", 11, false, "desktop", 45))
		assert.Greater(t, night, day)
	})

	t.Run("failed action adds weight", func(t *testing.T) {
		v := vectorFor("user", "login", 10, false, "desktop", 45)
		ok, _ := h.Base(v)
		v.IsFailedAction = true
		failed, _ := h.Base(v)
		assert.InDelta(t, DefaultWeights().Failed, failed-ok, 1e-9)
	})

	t.Run("first matching action category wins", func(t *testing.T) {
		// "delete_patient_record" matches both the delete and the clinical
		// categories; only the delete offset applies.
		_, factors := h.Base(vectorFor("user", "delete_patient_record", 10, false, "desktop", 45))
		assert.Contains(t, factors, "action:delete")
		assert.NotContains(t, factors, "action:clinical")
	})
}

func TestHeuristicClamp(t *testing.T) {
	h := NewHeuristic(DefaultWeights())

	// Everything stacked: must not exceed the ceiling.
	v := vectorFor("admin", "delete_admin_config", 2, true, "unknown", 300)
	v.IsSensitiveAction = true
	v.IsFailedAction = true
	for _, seed := range []string{"a", "b", "c"} {
		score, _ := h.Score(v, seed)
		assert.LessOrEqual(t, score, 0.95)
	}

	// Nothing stacked: must not fall below the floor.
	low := feature.Vector{Role: "guest", Action: "navigate_home", Hour: 11, IsBusinessHours: true, Device: "desktop", SessionMinutes: 45}
	for _, seed := range []string{"a", "b", "c"} {
		score, _ := h.Score(low, seed)
		assert.GreaterOrEqual(t, score, 0.05)
	}
}

func TestJitterDistribution(t *testing.T) {
	h := NewHeuristic(DefaultWeights())
	var min, max float64
	for i := 0; i < 200; i++ {
		j := h.jitter(fmt.Sprintf("seed-%d", i))
		if j < min {
			min = j
		}
		if j > max {
			max = j
		}
		assert.LessOrEqual(t, math.Abs(j), DefaultWeights().JitterBound)
	}
	// Both signs occur over a spread of seeds.
	assert.Less(t, min, 0.0)
	assert.Greater(t, max, 0.0)
}
