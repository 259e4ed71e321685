package registration

import (
	"context"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/viam-labs/cloudalign/utils"
)

// CorrespondenceMatrix is a row-stochastic matrix of soft match probabilities
// between source and target keypoints. Row i is the distribution over target
// keypoints for source keypoint i.
type CorrespondenceMatrix struct {
	rows, cols int
	weights    []float64 // row-major
}

// Rows returns the number of source keypoints.
func (m *CorrespondenceMatrix) Rows() int { return m.rows }

// Cols returns the number of target keypoints.
func (m *CorrespondenceMatrix) Cols() int { return m.cols }

// At returns the match probability of source keypoint i and target keypoint j.
func (m *CorrespondenceMatrix) At(i, j int) float64 {
	return m.weights[i*m.cols+j]
}

// Row returns row i without copying. Callers must not modify it.
func (m *CorrespondenceMatrix) Row(i int) []float64 {
	return m.weights[i*m.cols : (i+1)*m.cols]
}

// MatchFeatures computes the soft assignment between two keypoint feature
// sets. Similarity is the negative squared feature distance scaled by
// 1/temperature; each row then goes through a max-subtracted softmax so large
// score magnitudes cannot overflow. Rows are computed in parallel over the
// given number of workers; the result does not depend on the worker count.
func MatchFeatures(ctx context.Context, srcFeat, tgtFeat *FeatureSet, temperature float64, workers int) (*CorrespondenceMatrix, error) {
	if temperature <= 0 {
		return nil, errors.Wrapf(ErrInvalidConfig, "temperature must be positive, got %f", temperature)
	}
	if srcFeat.Dim() != tgtFeat.Dim() {
		return nil, errors.Wrapf(ErrDimensionMismatch,
			"source features have dimension %d, target %d", srcFeat.Dim(), tgtFeat.Dim())
	}
	rows, cols := srcFeat.Len(), tgtFeat.Len()
	if rows == 0 || cols == 0 {
		return nil, errors.Wrap(ErrInvalidConfig, "cannot match empty keypoint sets")
	}

	m := &CorrespondenceMatrix{
		rows:    rows,
		cols:    cols,
		weights: make([]float64, rows*cols),
	}
	invTemp := 1 / temperature

	err := utils.GroupWorkParallel(ctx, rows, workers, nil,
		func(groupNum, groupSize, from, to int) (utils.MemberWorkFunc, utils.GroupWorkDoneFunc) {
			return func(memberNum, workNum int) {
				row := m.weights[workNum*cols : (workNum+1)*cols]
				src := srcFeat.Vector(workNum)
				for j := 0; j < cols; j++ {
					row[j] = -sqDist(src, tgtFeat.Vector(j)) * invTemp
				}
				softmaxInPlace(row)
			}, nil
		})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// softmaxInPlace converts scores to a probability distribution, subtracting
// the row max first so exponentiation cannot overflow.
func softmaxInPlace(row []float64) {
	max := floats.Max(row)
	for j, s := range row {
		row[j] = math.Exp(s - max)
	}
	sum := floats.Sum(row)
	// sum >= 1 always since the max entry contributes exp(0)
	floats.Scale(1/sum, row)
}

// VirtualPoints collapses each row into its virtual corresponding point, the
// probability-weighted average of the target keypoints, plus a per-row
// confidence (the row's peak probability). A diffuse row yields an averaged
// point far from any real target point and a low confidence, which is how the
// matcher expresses that a source keypoint has no good partner.
func (m *CorrespondenceMatrix) VirtualPoints(tgtPoints []r3.Vector) ([]r3.Vector, []float64, error) {
	if len(tgtPoints) != m.cols {
		return nil, nil, errors.Wrapf(ErrDimensionMismatch,
			"have %d target points for %d correspondence columns", len(tgtPoints), m.cols)
	}
	virtual := make([]r3.Vector, m.rows)
	confidence := make([]float64, m.rows)
	for i := 0; i < m.rows; i++ {
		row := m.Row(i)
		var avg r3.Vector
		peak := 0.
		for j, w := range row {
			avg = avg.Add(tgtPoints[j].Mul(w))
			if w > peak {
				peak = w
			}
		}
		virtual[i] = avg
		confidence[i] = peak
	}
	return virtual, confidence, nil
}

// MutualBestMask reports, per source keypoint, whether its best target match
// also has that source keypoint as its best match. Cross-checking this way
// filters many-to-one matches in low-overlap regions (same idea as descriptor
// cross-checking in 2D feature matching).
func (m *CorrespondenceMatrix) MutualBestMask() []bool {
	rowBest := make([]int, m.rows)
	for i := range rowBest {
		rowBest[i] = argmax(m.Row(i))
	}
	colBest := make([]int, m.cols)
	for j := range colBest {
		best, bestW := 0, -1.
		for i := 0; i < m.rows; i++ {
			if w := m.At(i, j); w > bestW {
				best, bestW = i, w
			}
		}
		colBest[j] = best
	}
	mask := make([]bool, m.rows)
	for i := range mask {
		mask[i] = colBest[rowBest[i]] == i
	}
	return mask
}

func argmax(xs []float64) int {
	best, bestV := 0, math.Inf(-1)
	for i, x := range xs {
		if x > bestV {
			best, bestV = i, x
		}
	}
	return best
}
