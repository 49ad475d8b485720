// Package scoring holds the deterministic heuristic estimator, the risk
// blender, and the scorer that combines them with the outlier model.
package scoring

import (
	"hash/fnv"
	"strings"

	"github.com/caregrid/sentinel/internal/feature"
)

// actionOffset pairs substring keywords with an additive risk offset.
// Matching is first-hit, most severe categories first.
type actionOffset struct {
	Keywords []string
	Offset   float64
	Label    string
}

// HeuristicWeights is the tunable weight table of the additive scorer.
type HeuristicWeights struct {
	Base float64

	RoleOffsets     map[string]float64
	RoleDefault     float64
	ActionOffsets   []actionOffset
	NightOffset     float64 // 00:00–06:00
	EveningOffset   float64 // 19:00–24:00
	EarlyOffset     float64 // 06:00–09:00
	BusinessOffset  float64 // 09:00–17:00, negative
	WeekendOffset   float64
	DeviceOffsets   map[string]float64
	LongSession     float64 // > 4h
	VeryShort       float64 // < 5 min
	ExtendedSession float64 // > 2h
	Sensitive       float64
	Failed          float64
	JitterBound     float64

	FloorScore float64
	CeilScore  float64
}

// DefaultWeights returns the deployed weight table. Magnitudes are tuned so
// the documented reference scenarios land in their expected bands while
// preserving the severity ordering (delete > admin/config > export, night >
// evening > business, unknown device > mobile > tablet).
func DefaultWeights() HeuristicWeights {
	return HeuristicWeights{
		Base: 0.18,
		RoleOffsets: map[string]float64{
			"admin":      0.12,
			"manager":    0.09,
			"contractor": 0.08,
			"doctor":     0.06,
			"nurse":      0.04,
			"guest":      0.02,
		},
		RoleDefault: 0.03,
		ActionOffsets: []actionOffset{
			{Keywords: []string{"delete", "remove"}, Offset: 0.22, Label: "action:delete"},
			{Keywords: []string{"admin", "config", "settings"}, Offset: 0.16, Label: "action:admin"},
			{Keywords: []string{"financial", "payment"}, Offset: 0.15, Label: "action:financial"},
			{Keywords: []string{"export", "download"}, Offset: 0.14, Label: "action:export"},
			{Keywords: []string{"audit", "log"}, Offset: 0.10, Label: "action:audit"},
			{Keywords: []string{"patient", "medical", "record"}, Offset: 0.06, Label: "action:clinical"},
			{Keywords: []string{"update", "modify", "edit"}, Offset: 0.08, Label: "action:update"},
			{Keywords: []string{"login", "authentication"}, Offset: 0.05, Label: "action:login"},
			{Keywords: []string{"view", "read", "navigate"}, Offset: 0.02, Label: "action:view"},
		},
		NightOffset:    0.12,
		EveningOffset:  0.10,
		EarlyOffset:    0.04,
		BusinessOffset: -0.05,
		WeekendOffset:  0.12,
		DeviceOffsets: map[string]float64{
			"unknown": 0.12,
			"new":     0.12,
			"mobile":  0.08,
			"tablet":  0.06,
		},
		LongSession:     0.10,
		VeryShort:       0.08,
		ExtendedSession: 0.05,
		Sensitive:       0.06,
		Failed:          0.25,
		JitterBound:     0.05,
		FloorScore:      0.05,
		CeilScore:       0.95,
	}
}

// Heuristic is the deterministic additive scorer. Usable standalone, with or
// without a trained model.
type Heuristic struct {
	w HeuristicWeights
}

// NewHeuristic creates a heuristic scorer with the given weights.
func NewHeuristic(w HeuristicWeights) *Heuristic {
	return &Heuristic{w: w}
}

// Base computes the jitter-free score and its contributing factors. Exactly
// reproducible for identical inputs.
func (h *Heuristic) Base(v feature.Vector) (float64, []string) {
	score := h.w.Base
	var factors []string

	roleOffset, ok := h.w.RoleOffsets[v.Role]
	if !ok {
		roleOffset = h.w.RoleDefault
	}
	score += roleOffset
	factors = append(factors, "role:"+v.Role)

	for _, ao := range h.w.ActionOffsets {
		if containsAnyKeyword(v.Action, ao.Keywords) {
			score += ao.Offset
			factors = append(factors, ao.Label)
			break
		}
	}

	switch {
	case v.Hour < 6:
		score += h.w.NightOffset
		factors = append(factors, "time:night")
	case v.Hour >= 19:
		score += h.w.EveningOffset
		factors = append(factors, "time:evening")
	case v.Hour < 9:
		score += h.w.EarlyOffset
		factors = append(factors, "time:early")
	case v.Hour < 17:
		score += h.w.BusinessOffset
	}

	if v.IsWeekend {
		score += h.w.WeekendOffset
		factors = append(factors, "time:weekend")
	}

	if off, ok := h.w.DeviceOffsets[v.Device]; ok {
		score += off
		factors = append(factors, "device:"+v.Device)
	}

	switch {
	case v.SessionMinutes > 240:
		score += h.w.LongSession
		factors = append(factors, "session:very_long")
	case v.SessionMinutes > 0 && v.SessionMinutes < 5:
		score += h.w.VeryShort
		factors = append(factors, "session:very_short")
	case v.SessionMinutes > 120:
		score += h.w.ExtendedSession
		factors = append(factors, "session:extended")
	}

	if v.IsSensitiveAction {
		score += h.w.Sensitive
		factors = append(factors, "sensitive_action")
	}
	if v.IsFailedAction {
		score += h.w.Failed
		factors = append(factors, "failed_action")
	}

	return score, factors
}

// Score returns the clamped base score plus the bounded jitter term. The
// jitter is seeded from the seed key, so the full score is reproducible for
// the same event while still spreading scores across events.
func (h *Heuristic) Score(v feature.Vector, seedKey string) (float64, []string) {
	base, factors := h.Base(v)
	score := base + h.jitter(seedKey)
	return clamp(score, h.w.FloorScore, h.w.CeilScore), factors
}

func (h *Heuristic) jitter(seedKey string) float64 {
	hash := fnv.New64a()
	hash.Write([]byte(seedKey))
	u := float64(hash.Sum64()%2000001) / 2000000 // uniform in [0,1]
	return (2*u - 1) * h.w.JitterBound
}

func containsAnyKeyword(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
