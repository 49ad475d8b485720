package domain

// DurationRange bounds expected session minutes for a role.
type DurationRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// RoleExpectation is the static per-role behavioral configuration used for
// access anomalies and peer analysis.
type RoleExpectation struct {
	Role            string        `json:"role"`
	TypicalActions  []string      `json:"typicalActions"`
	PeakHours       []int         `json:"peakHours"`
	RiskThreshold   float64       `json:"riskThreshold"`
	SessionDuration DurationRange `json:"sessionDuration"`
}

func hourRange(from, to int) []int {
	hours := make([]int, 0, to-from)
	for h := from; h < to; h++ {
		hours = append(hours, h)
	}
	return hours
}

// defaultRoleExpectations mirrors the deployed hospital role envelopes.
var defaultRoleExpectations = map[string]RoleExpectation{
	"doctor": {
		Role:            "doctor",
		TypicalActions:  []string{"access_patient_record", "view_lab_results", "create_prescription", "update_diagnosis"},
		PeakHours:       hourRange(8, 18),
		RiskThreshold:   0.4,
		SessionDuration: DurationRange{Min: 30, Max: 180},
	},
	"nurse": {
		Role:            "nurse",
		TypicalActions:  []string{"update_patient_care", "view_patient_record", "medication_administration", "vital_signs", "access_patient_record"},
		PeakHours:       hourRange(6, 24),
		RiskThreshold:   0.3,
		SessionDuration: DurationRange{Min: 15, Max: 480},
	},
	"admin": {
		Role:            "admin",
		TypicalActions:  []string{"user_management", "system_monitoring", "audit_review", "configuration_change"},
		PeakHours:       hourRange(9, 17),
		RiskThreshold:   0.5,
		SessionDuration: DurationRange{Min: 60, Max: 240},
	},
	"manager": {
		Role:            "manager",
		TypicalActions:  []string{"dashboard_view", "report_generation", "staff_management", "analytics_review"},
		PeakHours:       hourRange(9, 17),
		RiskThreshold:   0.4,
		SessionDuration: DurationRange{Min: 45, Max: 180},
	},
	"user": {
		Role:            "user",
		TypicalActions:  []string{"view_appointment", "view_records", "update_profile", "message_doctor"},
		PeakHours:       hourRange(8, 21),
		RiskThreshold:   0.2,
		SessionDuration: DurationRange{Min: 5, Max: 60},
	},
}

// ExpectationForRole returns the expectation for a role, falling back to a
// conservative generic envelope for unknown roles.
func ExpectationForRole(role string) RoleExpectation {
	if exp, ok := defaultRoleExpectations[role]; ok {
		return exp
	}
	return RoleExpectation{
		Role:            role,
		TypicalActions:  []string{},
		PeakHours:       hourRange(9, 17),
		RiskThreshold:   0.3,
		SessionDuration: DurationRange{Min: 5, Max: 240},
	}
}
