package behavior

import (
	"math"

	"github.com/caregrid/sentinel/internal/domain"
)

// AnalyzePeers recomputes the profile's peer analysis against static role
// expectations. This is a documented simplification: no real cohort
// statistics are consulted, and the risk ranking is a percentile proxy
// derived from the session risk score alone.
func AnalyzePeers(p *domain.BehaviorProfile) {
	exp := domain.ExpectationForRole(p.Role)
	pa := &p.PeerAnalysis
	pa.RoleGroup = p.Role

	common := p.Baseline.CommonActions
	if len(common) == 0 {
		pa.ConsistencyScore = 0
	} else {
		matched := 0
		for _, action := range common {
			if actionMatchesAny(action, exp.TypicalActions) {
				matched++
			}
		}
		pa.ConsistencyScore = float64(matched) / float64(len(common))
	}

	pa.OutlierScore = 1 - pa.ConsistencyScore
	pa.RiskRanking = int(math.Round((1 - p.CurrentSession.RiskScore) * 100))
}
