package scoring

import (
	"io"
	"log/slog"
	"testing"

	"github.com/caregrid/sentinel/internal/domain"
	"github.com/caregrid/sentinel/internal/feature"
	"github.com/caregrid/sentinel/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testScorer(models *model.Provider) *Scorer {
	return NewScorer(models, NewHeuristic(DefaultWeights()), NewBlender(DefaultBlendConfig()), testLogger())
}

func testEvent(actor, action, ts string) *domain.ActionEvent {
	return &domain.ActionEvent{
		ActorID:         actor,
		Roles:           []string{"nurse"},
		Action:          action,
		Timestamp:       ts,
		SessionID:       "s-" + actor,
		SessionDuration: 45,
		DeviceType:      "desktop",
	}
}

func TestScoreEventWithoutModel(t *testing.T) {
	s := testScorer(model.NewProvider())
	ev := testEvent("u1", "view_dashboard", "2025-03-04T10:00:00Z")

	a := s.ScoreEvent(ev)
	assert.False(t, a.ModelContributed)
	assert.Equal(t, a.HeuristicScore, a.RiskScore)
	assert.Equal(t, "u1", a.ActorID)
	assert.Equal(t, domain.LevelForScore(a.RiskScore), a.RiskLevel)
	assert.NotEmpty(t, a.Factors)
}

func TestScoreEventReproducible(t *testing.T) {
	s := testScorer(model.NewProvider())
	ev := testEvent("u1", "view_dashboard", "2025-03-04T10:00:00Z")

	a := s.ScoreEvent(ev)
	b := s.ScoreEvent(ev)
	assert.Equal(t, a.RiskScore, b.RiskScore)
	assert.Equal(t, a.Factors, b.Factors)
}

func TestScoreEventWithDegenerateModel(t *testing.T) {
	// A forest fitted on identical rows has a collapsed calibration range,
	// so single-event scoring must fall back to the heuristic.
	vectors := make([]feature.Vector, 50)
	for i := range vectors {
		vectors[i] = feature.Vector{Role: "nurse", Action: "login", Device: "desktop", SessionBucket: "medium", Hour: 10, SessionMinutes: 45}
	}
	enc := feature.FitEncoder(vectors)
	forest, err := model.Fit(enc.EncodeAll(vectors), enc, model.DefaultOptions())
	require.NoError(t, err)

	models := model.NewProvider()
	models.Swap(forest)
	s := testScorer(models)

	a := s.ScoreEvent(testEvent("u1", "login", "2025-03-04T10:00:00Z"))
	assert.False(t, a.ModelContributed)
	assert.Equal(t, a.HeuristicScore, a.RiskScore)
}

func TestScoreBatchWithoutModel(t *testing.T) {
	s := testScorer(model.NewProvider())
	events := []*domain.ActionEvent{
		testEvent("u1", "view_dashboard", "2025-03-04T10:00:00Z"),
		testEvent("u2", "delete_user_account", "2025-03-04T02:00:00Z"),
	}

	out := s.ScoreBatch(events)
	require.Len(t, out, 2)
	for _, a := range out {
		assert.False(t, a.ModelContributed)
	}
	assert.Greater(t, out[1].RiskScore, out[0].RiskScore)
}

func TestScoreBatchWithModel(t *testing.T) {
	// Train on varied daytime activity so the batch has decision spread.
	var vectors []feature.Vector
	for i := 0; i < 200; i++ {
		vectors = append(vectors, feature.Vector{
			Role: "nurse", Action: "login", Device: "desktop", SessionBucket: "medium",
			Hour: 8 + i%9, DayOfWeek: i % 5, SessionMinutes: float64(30 + i%60),
		})
	}
	enc := feature.FitEncoder(vectors)
	forest, err := model.Fit(enc.EncodeAll(vectors), enc, model.DefaultOptions())
	require.NoError(t, err)

	models := model.NewProvider()
	models.Swap(forest)
	s := testScorer(models)

	events := []*domain.ActionEvent{
		testEvent("u1", "login", "2025-03-04T10:00:00Z"),
		testEvent("u2", "login", "2025-03-04T14:00:00Z"),
		testEvent("u3", "login", "2025-03-04T03:00:00Z"),
	}
	out := s.ScoreBatch(events)
	require.Len(t, out, 3)
	for _, a := range out {
		assert.GreaterOrEqual(t, a.RiskScore, 0.0)
		assert.LessOrEqual(t, a.RiskScore, 1.0)
	}
}
