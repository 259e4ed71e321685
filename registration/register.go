// Package registration aligns two partially overlapping 3D point clouds by
// estimating the rigid motion that superimposes their shared region.
//
// The pipeline is: per-point feature embedding (pluggable), keypoint
// selection, soft cross-cloud correspondence, and closed-form weighted
// Procrustes motion recovery, iterated to convergence. All stages are pure
// functions of their inputs; independent registration calls can run fully in
// parallel.
package registration

import (
	"context"
	"math"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"

	"github.com/viam-labs/cloudalign/pointcloud"
	"github.com/viam-labs/cloudalign/spatialmath"
	"github.com/viam-labs/cloudalign/utils"
)

// Registerer runs iterative refinement registrations. The zero value is not
// usable; construct with NewRegisterer.
type Registerer struct {
	clock clock.Clock
}

// NewRegisterer returns a Registerer using the wall clock for diagnostics.
func NewRegisterer() *Registerer {
	return &Registerer{clock: clock.New()}
}

// NewRegistererWithClock returns a Registerer with an injected clock, for
// tests that want deterministic iteration durations.
func NewRegistererWithClock(c clock.Clock) *Registerer {
	return &Registerer{clock: c}
}

// Register aligns source onto target using a convenience default Registerer.
func Register(
	ctx context.Context,
	source, target *pointcloud.PointCloud,
	embedder Embedder,
	cfg Config,
	logger golog.Logger,
) (*AlignmentResult, error) {
	return NewRegisterer().Register(ctx, source, target, embedder, cfg, logger)
}

// Register estimates the rigid transform taking source onto target.
//
// Each iteration re-transforms the source cloud by the accumulated estimate,
// re-embeds it, re-matches keypoints against the (cached) target embedding,
// solves for an incremental motion, and composes it onto the accumulated
// transform. Cancellation is honored at iteration boundaries only, so each
// completed iteration's invariants hold. Given identical inputs, config, and
// a deterministic embedder, the result is reproducible.
func (r *Registerer) Register(
	ctx context.Context,
	source, target *pointcloud.PointCloud,
	embedder Embedder,
	cfg Config,
	logger golog.Logger,
) (*AlignmentResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if source.Size() == 0 || target.Size() == 0 {
		return nil, errors.Wrap(ErrInvalidConfig, "cannot register empty clouds")
	}

	accumulated := spatialmath.NewZeroRigidTransform()
	result := &AlignmentResult{
		Transform: accumulated,
		State:     StateInit,
		Residual:  math.Inf(1),
	}

	// The target never moves, so its embedding and keypoints are computed once.
	var tgtFeat *FeatureSet
	var tgtKeypoints *KeypointSet
	var tgtKeypointPts []r3.Vector

	prevResidual := math.Inf(1)
	result.State = StateIterating

	for iter := 0; iter < cfg.MaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		start := r.clock.Now()

		moved := source.Transform(accumulated)

		var srcFeat *FeatureSet
		if iter == 0 {
			// first iteration embeds both clouds concurrently
			var embedErr error
			_, embedErr = utils.RunInParallel(ctx, []utils.SimpleFunc{
				func(ctx context.Context) error {
					var err error
					srcFeat, err = embedder.Embed(ctx, moved)
					return err
				},
				func(ctx context.Context) error {
					var err error
					tgtFeat, err = embedder.Embed(ctx, target)
					return err
				},
			})
			if embedErr != nil {
				return result, embedErr
			}
		} else {
			var err error
			srcFeat, err = embedder.Embed(ctx, moved)
			if err != nil {
				return result, err
			}
		}
		if srcFeat.Len() != moved.Size() {
			return result, errors.Wrapf(ErrDimensionMismatch,
				"embedder returned %d features for %d source points", srcFeat.Len(), moved.Size())
		}
		if tgtFeat.Len() != target.Size() {
			return result, errors.Wrapf(ErrDimensionMismatch,
				"embedder returned %d features for %d target points", tgtFeat.Len(), target.Size())
		}

		srcKeypoints, err := SelectKeypoints(moved, srcFeat, cfg.NumKeypoints)
		if err != nil {
			return result, err
		}
		if tgtKeypoints == nil {
			tgtKeypoints, err = SelectKeypoints(target, tgtFeat, cfg.NumKeypoints)
			if err != nil {
				return result, err
			}
			tgtKeypointPts = tgtKeypoints.Points(target)
		}

		corr, err := MatchFeatures(ctx,
			srcFeat.Gather(srcKeypoints.Indices),
			tgtFeat.Gather(tgtKeypoints.Indices),
			cfg.Temperature, cfg.Workers)
		if err != nil {
			return result, err
		}

		virtual, confidence, err := corr.VirtualPoints(tgtKeypointPts)
		if err != nil {
			return result, err
		}
		if cfg.CrossCheck {
			for i, mutual := range corr.MutualBestMask() {
				if !mutual {
					confidence[i] = 0
				}
			}
		}

		srcKeypointPts := srcKeypoints.Points(moved)
		if cfg.OutlierGateFactor > 0 {
			gateOutliers(srcKeypointPts, virtual, confidence, cfg.OutlierGateFactor)
		}
		increment, err := SolveRigid(srcKeypointPts, virtual, confidence)
		if err != nil {
			if errors.Is(err, ErrDegenerateInput) {
				logger.Warnw("degenerate correspondences, keeping best transform so far",
					"iteration", iter, "error", err)
				result.State = StateFailed
				return result, nil
			}
			return result, err
		}

		residual := weightedResidual(srcKeypointPts, virtual, confidence, increment)
		rotDelta := increment.Rotation().Angle()
		transDelta := increment.Translation().Norm()

		accumulated = spatialmath.Compose(accumulated, increment)
		result.Transform = accumulated
		result.Residual = residual
		result.Iterations = append(result.Iterations, IterationDiagnostic{
			Residual:         residual,
			RotationDeltaRad: rotDelta,
			TranslationDelta: transDelta,
			Duration:         r.clock.Since(start),
		})
		logger.Debugw("registration iteration",
			"iteration", iter,
			"residual", residual,
			"rotation_delta_rad", rotDelta,
			"translation_delta", transDelta,
		)

		if iter > 0 && math.Abs(prevResidual-residual) < cfg.ConvergenceEpsilon {
			result.State = StateConverged
			return result, nil
		}
		if rotDelta < cfg.RotationThresholdRad && transDelta < cfg.TranslationThreshold {
			result.State = StateConverged
			return result, nil
		}
		prevResidual = residual
	}

	result.State = StateMaxIterationsReached
	return result, nil
}

// gateOutliers zeroes the confidence of matched pairs whose distance exceeds
// factor times the median match distance. A source point with no true
// counterpart still matches the overlap boundary near one-hot, so its
// confidence gives the solver no reason to discount it; its match distance
// does. With factor >= 1 the gate keeps at least the closer half of the
// matches, so it can never starve the solver on its own.
func gateOutliers(src, virtual []r3.Vector, confidence []float64, factor float64) {
	dists := make([]float64, len(src))
	for i := range src {
		dists[i] = src[i].Sub(virtual[i]).Norm()
	}
	med, err := stats.Median(dists)
	if err != nil || !(med > 0) {
		return
	}
	limit := factor * med
	for i, d := range dists {
		if d > limit {
			confidence[i] = 0
		}
	}
}

// weightedResidual is the confidence-weighted mean squared distance between
// the matched pairs after applying the incremental transform.
func weightedResidual(src, tgt []r3.Vector, weights []float64, tf *spatialmath.RigidTransform) float64 {
	sumW := 0.
	sum := 0.
	for i := range src {
		d := tf.TransformPoint(src[i]).Sub(tgt[i])
		sum += weights[i] * d.Norm2()
		sumW += weights[i]
	}
	if sumW == 0 {
		return math.Inf(1)
	}
	return sum / sumW
}
