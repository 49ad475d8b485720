package behavior

import (
	"testing"
	"time"

	"github.com/caregrid/sentinel/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestAnalyzePeers(t *testing.T) {
	t.Run("full consistency", func(t *testing.T) {
		p := domain.NewBehaviorProfile("doc-1", time.Now().UTC())
		p.Role = "doctor"
		p.Baseline.CommonActions = []string{"access_patient_record", "view_lab_results"}
		p.CurrentSession.RiskScore = 0.25

		AnalyzePeers(p)
		assert.Equal(t, "doctor", p.PeerAnalysis.RoleGroup)
		assert.Equal(t, 1.0, p.PeerAnalysis.ConsistencyScore)
		assert.Equal(t, 0.0, p.PeerAnalysis.OutlierScore)
		assert.Equal(t, 75, p.PeerAnalysis.RiskRanking)
	})

	t.Run("partial consistency", func(t *testing.T) {
		p := domain.NewBehaviorProfile("doc-1", time.Now().UTC())
		p.Role = "doctor"
		p.Baseline.CommonActions = []string{"view_lab_results", "modify_billing_rates"}

		AnalyzePeers(p)
		assert.Equal(t, 0.5, p.PeerAnalysis.ConsistencyScore)
		assert.Equal(t, 0.5, p.PeerAnalysis.OutlierScore)
	})

	t.Run("no common actions yet", func(t *testing.T) {
		p := domain.NewBehaviorProfile("u-1", time.Now().UTC())
		p.Role = "doctor"

		AnalyzePeers(p)
		assert.Equal(t, 0.0, p.PeerAnalysis.ConsistencyScore)
		assert.Equal(t, 1.0, p.PeerAnalysis.OutlierScore)
		assert.Equal(t, 100, p.PeerAnalysis.RiskRanking)
	})
}
