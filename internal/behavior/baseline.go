package behavior

import (
	"sort"
	"time"

	"github.com/caregrid/sentinel/internal/domain"
)

const (
	typicalHourLimit  = 6
	peakHourLimit     = 3
	commonActionLimit = 5
)

// establishBaseline derives the typical-behavior envelope from the
// accumulated pattern histories. Called once when the action-count threshold
// is crossed, and again only on explicit rebaseline.
func establishBaseline(p *domain.BehaviorProfile, now time.Time) {
	typical := topHours(p.Patterns.HourCounts, typicalHourLimit)
	peak := typical
	if len(peak) > peakHourLimit {
		peak = peak[:peakHourLimit]
	}

	b := &p.Baseline
	b.TypicalHours = sortedCopy(typical)
	b.PeakActivityHours = sortedCopy(peak)
	b.CommonActions = topActions(p.Patterns.ActionCounts, commonActionLimit)
	b.AvgSessionMinutes = avgSessionMinutes(p)
	b.RiskLevel = domain.LevelForScore(p.CurrentSession.RiskScore)
	b.Established = true
	b.EstablishedAt = &now
}

// topHours returns up to limit hours ordered by descending frequency.
func topHours(counts map[int]int, limit int) []int {
	type hourCount struct {
		hour  int
		count int
	}
	hc := make([]hourCount, 0, len(counts))
	for h, c := range counts {
		hc = append(hc, hourCount{h, c})
	}
	sort.Slice(hc, func(i, j int) bool {
		if hc[i].count != hc[j].count {
			return hc[i].count > hc[j].count
		}
		return hc[i].hour < hc[j].hour
	})
	if len(hc) > limit {
		hc = hc[:limit]
	}
	hours := make([]int, len(hc))
	for i, x := range hc {
		hours[i] = x.hour
	}
	return hours
}

// topActions returns up to limit actions ordered by descending frequency.
func topActions(counts map[string]int, limit int) []string {
	type actionCount struct {
		action string
		count  int
	}
	ac := make([]actionCount, 0, len(counts))
	for a, c := range counts {
		ac = append(ac, actionCount{a, c})
	}
	sort.Slice(ac, func(i, j int) bool {
		if ac[i].count != ac[j].count {
			return ac[i].count > ac[j].count
		}
		return ac[i].action < ac[j].action
	})
	if len(ac) > limit {
		ac = ac[:limit]
	}
	actions := make([]string, len(ac))
	for i, x := range ac {
		actions[i] = x.action
	}
	return actions
}

// avgSessionMinutes averages the per-event reported durations, so a baseline
// established inside the user's first session still carries a real figure.
// Profiles imported without the aggregates fall back to closed-session
// lengths.
func avgSessionMinutes(p *domain.BehaviorProfile) float64 {
	if p.Patterns.DurationSamples > 0 {
		return p.Patterns.DurationSum / float64(p.Patterns.DurationSamples)
	}
	return meanOf(p.Patterns.SessionMinutes)
}

func meanOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func sortedCopy(xs []int) []int {
	out := append([]int(nil), xs...)
	sort.Ints(out)
	return out
}
