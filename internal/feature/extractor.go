// Package feature converts raw action events into the fixed feature vectors
// consumed by the outlier model and the heuristic estimator.
package feature

import (
	"strings"
	"time"

	"github.com/caregrid/sentinel/internal/domain"
)

// Session length buckets, in minutes.
const (
	shortSessionMax  = 30
	mediumSessionMax = 120
)

var sensitiveKeywords = []string{"delete", "admin", "config", "export", "financial", "patient", "medical"}

var failedKeywords = []string{"failed", "unauthorized", "denied"}

// Vector is the derived encoding of one event. Ephemeral; recomputed per
// event with no side effects.
type Vector struct {
	Hour              int
	DayOfWeek         int // Monday=0 .. Sunday=6
	IsWeekend         bool
	IsBusinessHours   bool
	IsSensitiveAction bool
	IsFailedAction    bool
	SessionMinutes    float64
	SessionBucket     string
	Device            string
	Role              string
	Action            string
	Timestamp         time.Time
	TimestampValid    bool
}

// Extract derives a Vector from an event. Never fails: an unparseable
// timestamp substitutes the current time and marks the vector invalid so
// training-set builders can drop it while live scoring proceeds.
func Extract(ev *domain.ActionEvent) Vector {
	ts, ok := ev.ParsedTime()
	if !ok {
		ts = time.Now()
	}

	action := strings.ToLower(ev.Action)
	dow := (int(ts.Weekday()) + 6) % 7

	return Vector{
		Hour:              ts.Hour(),
		DayOfWeek:         dow,
		IsWeekend:         dow >= 5,
		IsBusinessHours:   ts.Hour() >= 9 && ts.Hour() < 17,
		IsSensitiveAction: containsAny(action, sensitiveKeywords),
		IsFailedAction:    containsAny(action, failedKeywords),
		SessionMinutes:    ev.SessionDuration,
		SessionBucket:     sessionBucket(ev.SessionDuration),
		Device:            NormalizeDevice(ev.DeviceType),
		Role:              ev.PrimaryRole(),
		Action:            action,
		Timestamp:         ts,
		TimestampValid:    ok,
	}
}

// NormalizeDevice lowers and defaults the device bucket.
func NormalizeDevice(device string) string {
	d := strings.ToLower(strings.TrimSpace(device))
	if d == "" {
		return "unknown"
	}
	return d
}

func sessionBucket(minutes float64) string {
	switch {
	case minutes < shortSessionMax:
		return "short"
	case minutes < mediumSessionMax:
		return "medium"
	default:
		return "long"
	}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
