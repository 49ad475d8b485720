package scoring

// BlendConfig holds the blending constants. All exposed as configuration so
// they can be tuned and tested independently.
type BlendConfig struct {
	ModelWeight     float64
	HeuristicWeight float64
	Amplification   float64
	AmplifyCap      float64
	Epsilon         float64
}

// DefaultBlendConfig returns the deployed blending constants.
func DefaultBlendConfig() BlendConfig {
	return BlendConfig{
		ModelWeight:     0.7,
		HeuristicWeight: 0.3,
		Amplification:   1.3,
		AmplifyCap:      0.95,
		Epsilon:         0.01,
	}
}

// Blender combines model decisions with heuristic scores.
type Blender struct {
	cfg BlendConfig
}

// NewBlender creates a blender.
func NewBlender(cfg BlendConfig) *Blender {
	return &Blender{cfg: cfg}
}

// Degenerate reports whether a decision range is too flat to discriminate.
func (b *Blender) Degenerate(min, max float64) bool {
	return max-min < b.cfg.Epsilon
}

// Blend combines one model decision with the heuristic score. min/max span
// the decision range of the current batch (or the training calibration for
// single events). When the range is degenerate the heuristic wins outright
// and the model is reported as not contributing.
func (b *Blender) Blend(decision, min, max float64, anomalous bool, heuristic float64) (score float64, modelContributed bool) {
	if b.Degenerate(min, max) {
		return heuristic, false
	}

	normalized := 1 - (decision-min)/(max-min)
	normalized = clamp(normalized, 0, 1)

	score = b.cfg.ModelWeight*normalized + b.cfg.HeuristicWeight*heuristic
	if anomalous {
		score *= b.cfg.Amplification
		if score > b.cfg.AmplifyCap {
			score = b.cfg.AmplifyCap
		}
	}
	return clamp(score, 0, 1), true
}
