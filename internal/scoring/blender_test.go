package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBlenderDegenerate(t *testing.T) {
	b := NewBlender(DefaultBlendConfig())

	assert.True(t, b.Degenerate(0.3, 0.3))
	assert.True(t, b.Degenerate(0.3, 0.305))
	assert.False(t, b.Degenerate(0.3, 0.32))
}

func TestBlendDegenerateRangeFallsBackToHeuristic(t *testing.T) {
	b := NewBlender(DefaultBlendConfig())

	// The heuristic score must come back untouched, not re-weighted.
	score, contributed := b.Blend(0.25, 0.25, 0.25, false, 0.63)
	assert.Equal(t, 0.63, score)
	assert.False(t, contributed)
}

func TestBlendWeighting(t *testing.T) {
	b := NewBlender(DefaultBlendConfig())

	// Decision at the top of the range normalizes to 0 (most normal):
	// score = 0.7*0 + 0.3*heuristic.
	score, contributed := b.Blend(0.5, 0.0, 0.5, false, 0.5)
	assert.True(t, contributed)
	assert.InDelta(t, 0.15, score, 1e-9)

	// Decision at the bottom normalizes to 1 (most anomalous).
	score, _ = b.Blend(0.0, 0.0, 0.5, false, 0.5)
	assert.InDelta(t, 0.7*1+0.3*0.5, score, 1e-9)
}

func TestBlendAmplification(t *testing.T) {
	b := NewBlender(DefaultBlendConfig())

	plain, _ := b.Blend(0.1, 0.0, 0.5, false, 0.5)
	amplified, _ := b.Blend(0.1, 0.0, 0.5, true, 0.5)
	assert.InDelta(t, plain*1.3, amplified, 1e-9)

	// Amplification is capped.
	capped, _ := b.Blend(0.0, 0.0, 0.5, true, 0.95)
	assert.Equal(t, 0.95, capped)
}

func TestBlendClampsOutOfRangeDecisions(t *testing.T) {
	b := NewBlender(DefaultBlendConfig())

	// A decision outside the calibration range still yields a score in [0,1].
	score, _ := b.Blend(-5, 0.0, 0.5, false, 0.5)
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)

	score, _ = b.Blend(5, 0.0, 0.5, false, 0.5)
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)
}
