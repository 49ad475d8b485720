package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// ActionEvent is one raw user action as delivered by the event source.
// Immutable once created; timestamps arrive as ISO-8601 strings and are
// parsed downstream so that a malformed value never rejects a live event.
type ActionEvent struct {
	ActorID         string   `json:"actorId"`
	ActorUsername   string   `json:"actorUsername"`
	Roles           []string `json:"roles"`
	Action          string   `json:"action"`
	Timestamp       string   `json:"timestamp"`
	SessionID       string   `json:"sessionId"`
	SessionDuration float64  `json:"sessionDurationMinutes"`
	DeviceType      string   `json:"deviceType,omitempty"`
	IPAddress       string   `json:"ipAddress,omitempty"`
	Metadata        Metadata `json:"metadata,omitempty"`
}

// Validate checks the required fields. Events failing validation are rejected
// before any profile is created or mutated.
func (e *ActionEvent) Validate() error {
	if strings.TrimSpace(e.ActorID) == "" {
		return ErrValidation("actorId is required")
	}
	if strings.TrimSpace(e.Action) == "" {
		return ErrValidation("action is required")
	}
	if strings.TrimSpace(e.SessionID) == "" {
		return ErrValidation("sessionId is required")
	}
	return nil
}

// PrimaryRole returns the first role, or "employee" when none were supplied.
func (e *ActionEvent) PrimaryRole() string {
	if len(e.Roles) == 0 {
		return "employee"
	}
	return strings.ToLower(e.Roles[0])
}

// ParsedTime parses the event timestamp. The second return value reports
// whether the timestamp was usable; callers on the live path substitute
// time.Now() on failure, training-set builders drop the row.
func (e *ActionEvent) ParsedTime() (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, e.Timestamp); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Metadata is a versioned, partially typed extension bag. Known fields are
// typed; unknown keys round-trip through Extra without breaking validation.
type Metadata struct {
	Version    int            `json:"version,omitempty"`
	Department string         `json:"department,omitempty"`
	ResourceID string         `json:"resourceId,omitempty"`
	Extra      map[string]any `json:"-"`
}

func (m Metadata) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Extra)+3)
	for k, v := range m.Extra {
		out[k] = v
	}
	if m.Version != 0 {
		out["version"] = m.Version
	}
	if m.Department != "" {
		out["department"] = m.Department
	}
	if m.ResourceID != "" {
		out["resourceId"] = m.ResourceID
	}
	return json.Marshal(out)
}

func (m *Metadata) UnmarshalJSON(data []byte) error {
	raw := map[string]any{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if v, ok := raw["version"].(float64); ok {
		m.Version = int(v)
		delete(raw, "version")
	}
	if v, ok := raw["department"].(string); ok {
		m.Department = v
		delete(raw, "department")
	}
	if v, ok := raw["resourceId"].(string); ok {
		m.ResourceID = v
		delete(raw, "resourceId")
	}
	if len(raw) > 0 {
		m.Extra = raw
	}
	return nil
}
