package registration

import (
	"time"

	"github.com/viam-labs/cloudalign/spatialmath"
)

// State is where the refinement controller is in its lifecycle. A result
// returned without an error carries one of the three terminal states; a
// result returned alongside an error (cancellation, embedding failure) may
// still be mid-iteration with state Iterating.
type State int

const (
	// StateInit is the state before any iteration has run.
	StateInit State = iota
	// StateIterating means refinement is in progress.
	StateIterating
	// StateConverged means the residual improvement or the incremental motion
	// fell below the configured thresholds.
	StateConverged
	// StateMaxIterationsReached means the iteration budget ran out first. The
	// result is still usable, just with a weaker guarantee.
	StateMaxIterationsReached
	// StateFailed means an iteration hit degenerate correspondences; the
	// result holds the best transform from the iterations before that.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateIterating:
		return "iterating"
	case StateConverged:
		return "converged"
	case StateMaxIterationsReached:
		return "max-iterations-reached"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IterationDiagnostic records what one refinement iteration did.
type IterationDiagnostic struct {
	// Residual is the weighted mean squared distance between matched points
	// after this iteration's update.
	Residual float64
	// RotationDeltaRad and TranslationDelta measure the incremental motion
	// this iteration added.
	RotationDeltaRad float64
	TranslationDelta float64
	// Duration is the wall time of the iteration, embedding included.
	Duration time.Duration
}

// AlignmentResult is the outcome of one registration call. It is immutable
// after return; the caller owns it.
type AlignmentResult struct {
	// Transform maps source-cloud coordinates into the target frame.
	Transform *spatialmath.RigidTransform
	// State is the terminal controller state.
	State State
	// Iterations holds one diagnostic per completed iteration.
	Iterations []IterationDiagnostic
	// Residual is the residual of the final completed iteration, or +Inf when
	// no iteration completed.
	Residual float64
}

// Converged reports whether the controller reached the convergence criteria.
func (res *AlignmentResult) Converged() bool {
	return res.State == StateConverged
}

// NumIterations returns how many iterations completed.
func (res *AlignmentResult) NumIterations() int {
	return len(res.Iterations)
}

// Residuals returns the per-iteration residuals in order.
func (res *AlignmentResult) Residuals() []float64 {
	out := make([]float64, len(res.Iterations))
	for i, it := range res.Iterations {
		out[i] = it.Residual
	}
	return out
}
