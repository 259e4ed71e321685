package registration

import "github.com/pkg/errors"

var (
	// ErrInvalidConfig is returned before any computation starts when a
	// configuration value is out of range. Recoverable by fixing the config.
	ErrInvalidConfig = errors.New("invalid registration config")

	// ErrDimensionMismatch is returned when feature dimensionality differs
	// between the two clouds, or a feature set is not index-aligned with its
	// cloud. It signals a misconfigured embedder and is fatal for the call.
	ErrDimensionMismatch = errors.New("feature dimension mismatch")

	// ErrDegenerateInput is returned by the rigid motion solver when the total
	// correspondence confidence is near zero and no meaningful motion can be
	// recovered. The refinement controller recovers from it by halting and
	// returning the last valid transform.
	ErrDegenerateInput = errors.New("degenerate input: near-zero total weight")
)
