package vectorstore

import (
	"math"

	"github.com/suntianc/toolcore/internal/model"
)

// Optimizer chooses IVF-PQ parameters deterministically from row count,
// dimension, and target recall. Optimize accepts a speed-vs-accuracy flag,
// but the flag does not change the result.
type Optimizer struct{}

// NewOptimizer constructs an Optimizer.
func NewOptimizer() *Optimizer {
	return &Optimizer{}
}

// Optimize implements the partition/sub-vector/bits/iteration/recall
// formulas from spec §4.6.
func (o *Optimizer) Optimize(rowCount int64, dim int, targetRecall float64, _ bool) model.IVFPQConfig {
	partitions := partitionCount(rowCount)
	subVectors := subVectorCount(dim)
	bits := 4
	if targetRecall >= 0.9 {
		bits = 8
	}
	maxIter := maxIterations(targetRecall)

	cfg := model.IVFPQConfig{
		NumPartitions: partitions,
		NumSubVectors: subVectors,
		NumBits:       bits,
		MaxIterations: maxIter,
		DistanceType:  model.DistanceCosine,
	}
	cfg.EstimatedRecall = estimatedRecall(cfg, rowCount, targetRecall)
	return cfg
}

func partitionCount(n int64) int {
	rows := float64(n)
	switch {
	case n < 10_000:
		return max(32, roundInt(math.Sqrt(rows)*2))
	case n < 100_000:
		return min(512, roundInt(rows/100))
	case n < 1_000_000:
		return min(1024, roundInt(math.Sqrt(rows)*5))
	default:
		return min(2048, roundInt(rows/500))
	}
}

func subVectorCount(dim int) int {
	lo := max(8, dim/8)
	hi := min(256, dim/4)
	v := roundInt(float64(dim) / 6.0)
	if v < lo {
		v = lo
	}
	if v > hi {
		v = hi
	}
	return v
}

func maxIterations(targetRecall float64) int {
	switch {
	case targetRecall >= 0.95:
		return 50
	case targetRecall >= 0.9:
		return 35
	default:
		return 20
	}
}

// estimatedRecall is a telemetry-only blend, never used to gate behavior.
func estimatedRecall(cfg model.IVFPQConfig, n int64, targetRecall float64) float64 {
	bitFactor := 0.92
	if cfg.NumBits == 8 {
		bitFactor = 1.0
	}
	partitionFactor := 1.0
	if n > 0 {
		partitionFactor = math.Min(1.0, float64(cfg.NumPartitions)/(math.Sqrt(float64(n))*2))
	}
	subVectorFactor := math.Min(1.0, float64(cfg.NumSubVectors)/64.0)

	blend := (bitFactor*0.4 + partitionFactor*0.35 + subVectorFactor*0.25) * targetRecall
	if blend < 0.7 {
		blend = 0.7
	}
	if blend > 0.99 {
		blend = 0.99
	}
	return blend
}

func roundInt(f float64) int {
	return int(math.Round(f))
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
