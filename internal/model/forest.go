// Package model implements the unsupervised outlier model: an isolation
// forest trained in batch over encoded feature matrices. A point that random
// axis-parallel splits isolate quickly is unusual; its short average path
// length translates into a high anomaly score.
package model

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/caregrid/sentinel/internal/feature"
)

// Options controls a training run.
type Options struct {
	Trees         int
	SubsampleSize int
	Contamination float64
	Seed          int64
}

// DefaultOptions mirror the deployed configuration: 100 trees, 256-point
// subsamples, 10% expected contamination.
func DefaultOptions() Options {
	return Options{Trees: 100, SubsampleSize: 256, Contamination: 0.10, Seed: 42}
}

// Forest is a trained isolation forest plus the fitted encoder and the
// calibration needed to normalize single-event decisions.
type Forest struct {
	trees         []*treeNode
	subsample     int
	avgPathNorm   float64
	cutoff        float64
	calibMin      float64
	calibMax      float64
	contamination float64
	trainedAt     time.Time
	encoder       *feature.Encoder
}

type treeNode struct {
	splitCol int
	splitVal float64
	left     *treeNode
	right    *treeNode
	size     int // leaf only
}

// Fit trains a forest on the encoded matrix. The encoder used to produce the
// matrix travels with the forest so live vectors are encoded identically.
func Fit(matrix [][]float64, enc *feature.Encoder, opts Options) (*Forest, error) {
	if len(matrix) < 2 {
		return nil, fmt.Errorf("training matrix needs at least 2 rows, got %d", len(matrix))
	}
	if opts.Trees <= 0 || opts.SubsampleSize <= 1 {
		return nil, fmt.Errorf("invalid options: trees=%d subsample=%d", opts.Trees, opts.SubsampleSize)
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	psi := opts.SubsampleSize
	if psi > len(matrix) {
		psi = len(matrix)
	}
	heightLimit := int(math.Ceil(math.Log2(float64(psi))))

	f := &Forest{
		trees:         make([]*treeNode, 0, opts.Trees),
		subsample:     psi,
		avgPathNorm:   averagePathLength(psi),
		contamination: opts.Contamination,
		trainedAt:     time.Now().UTC(),
		encoder:       enc,
	}

	for i := 0; i < opts.Trees; i++ {
		sample := subsample(matrix, psi, rng)
		f.trees = append(f.trees, buildTree(sample, 0, heightLimit, rng))
	}

	// Calibrate: decision range and contamination-quantile cutoff over the
	// training set. The stored range supports single-event normalization,
	// where no batch spread exists.
	decisions := make([]float64, len(matrix))
	for i, row := range matrix {
		decisions[i] = f.DecisionRow(row)
	}
	sorted := append([]float64(nil), decisions...)
	sort.Float64s(sorted)
	f.calibMin = sorted[0]
	f.calibMax = sorted[len(sorted)-1]
	idx := int(opts.Contamination * float64(len(sorted)))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	f.cutoff = sorted[idx]

	return f, nil
}

func subsample(matrix [][]float64, n int, rng *rand.Rand) [][]float64 {
	idx := rng.Perm(len(matrix))[:n]
	out := make([][]float64, n)
	for i, j := range idx {
		out[i] = matrix[j]
	}
	return out
}

func buildTree(points [][]float64, depth, limit int, rng *rand.Rand) *treeNode {
	if depth >= limit || len(points) <= 1 {
		return &treeNode{size: len(points)}
	}

	// Only columns with spread can split.
	cols := splittableColumns(points)
	if len(cols) == 0 {
		return &treeNode{size: len(points)}
	}
	col := cols[rng.Intn(len(cols))]
	lo, hi := columnRange(points, col)
	val := lo + rng.Float64()*(hi-lo)

	var left, right [][]float64
	for _, p := range points {
		if p[col] < val {
			left = append(left, p)
		} else {
			right = append(right, p)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return &treeNode{size: len(points)}
	}

	return &treeNode{
		splitCol: col,
		splitVal: val,
		left:     buildTree(left, depth+1, limit, rng),
		right:    buildTree(right, depth+1, limit, rng),
	}
}

func splittableColumns(points [][]float64) []int {
	var cols []int
	for c := 0; c < len(points[0]); c++ {
		lo, hi := columnRange(points, c)
		if hi > lo {
			cols = append(cols, c)
		}
	}
	return cols
}

func columnRange(points [][]float64, col int) (float64, float64) {
	lo, hi := points[0][col], points[0][col]
	for _, p := range points[1:] {
		if p[col] < lo {
			lo = p[col]
		}
		if p[col] > hi {
			hi = p[col]
		}
	}
	return lo, hi
}

func pathLength(node *treeNode, row []float64, depth int) float64 {
	if node.left == nil {
		return float64(depth) + averagePathLength(node.size)
	}
	if row[node.splitCol] < node.splitVal {
		return pathLength(node.left, row, depth+1)
	}
	return pathLength(node.right, row, depth+1)
}

const eulerMascheroni = 0.5772156649

// averagePathLength is c(n), the expected path length of an unsuccessful BST
// search over n points.
func averagePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	default:
		fn := float64(n)
		return 2*(math.Log(fn-1)+eulerMascheroni) - 2*(fn-1)/fn
	}
}

// anomalyScore is s(x) in (0,1]; higher means more anomalous.
func (f *Forest) anomalyScore(row []float64) float64 {
	var total float64
	for _, t := range f.trees {
		total += pathLength(t, row, 0)
	}
	mean := total / float64(len(f.trees))
	return math.Pow(2, -mean/f.avgPathNorm)
}

// DecisionRow scores an encoded row. Higher values mean more normal,
// matching the convention the blender's normalization formula expects.
func (f *Forest) DecisionRow(row []float64) float64 {
	return 0.5 - f.anomalyScore(row)
}

// Decision encodes and scores a feature vector.
func (f *Forest) Decision(v feature.Vector) float64 {
	return f.DecisionRow(f.encoder.Encode(v))
}

// IsAnomalous reports whether a decision falls below the contamination
// cutoff learned at fit time.
func (f *Forest) IsAnomalous(decision float64) bool {
	return decision < f.cutoff
}

// Calibration returns the training-set decision range.
func (f *Forest) Calibration() (min, max float64) {
	return f.calibMin, f.calibMax
}

// Encoder returns the fitted encoder.
func (f *Forest) Encoder() *feature.Encoder { return f.encoder }

// TrainedAt returns the fit time.
func (f *Forest) TrainedAt() time.Time { return f.trainedAt }

// TreeCount returns the ensemble size.
func (f *Forest) TreeCount() int { return len(f.trees) }
