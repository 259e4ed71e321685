package registration

import (
	"github.com/pkg/errors"

	"github.com/viam-labs/cloudalign/utils"
)

// Config holds the tunable parameters of a registration call. The zero value
// is not valid; start from DefaultConfig.
type Config struct {
	// NumKeypoints is how many points are kept per cloud for matching.
	NumKeypoints int `json:"num_keypoints"`
	// Temperature controls correspondence sharpness; lower values push the
	// soft assignment closer to a hard one.
	Temperature float64 `json:"temperature"`
	// MaxIterations is the refinement iteration budget.
	MaxIterations int `json:"max_iterations"`
	// ConvergenceEpsilon is the residual-improvement threshold below which
	// iteration stops.
	ConvergenceEpsilon float64 `json:"convergence_epsilon"`
	// RotationThresholdRad and TranslationThreshold stop iteration when an
	// incremental motion is smaller than both.
	RotationThresholdRad float64 `json:"rotation_threshold_rad"`
	TranslationThreshold float64 `json:"translation_threshold"`
	// CrossCheck zeroes the confidence of source keypoints whose best target
	// match does not match back, a mutual-best filter for low-overlap pairs.
	CrossCheck bool `json:"cross_check"`
	// OutlierGateFactor zeroes the confidence of matches whose distance
	// exceeds this multiple of the median match distance. Points without a
	// true counterpart match the overlap boundary confidently, so confidence
	// alone cannot reject them; the distance gate can. Must be at least 1
	// (the gate then keeps at least half the matches); 0 disables gating.
	OutlierGateFactor float64 `json:"outlier_gate_factor"`
	// Workers bounds the parallelism used inside one registration call.
	// Zero picks a default from the machine once, at validation time; the
	// chosen value then fully determines work partitioning.
	Workers int `json:"workers"`
}

// DefaultConfig returns a config with defaults that behave reasonably for
// clouds of a few thousand points.
func DefaultConfig() Config {
	return Config{
		NumKeypoints:         512,
		Temperature:          0.01,
		MaxIterations:        20,
		ConvergenceEpsilon:   1e-10,
		RotationThresholdRad: 1e-6,
		TranslationThreshold: 1e-6,
		OutlierGateFactor:    2.5,
		Workers:              utils.ParallelFactor,
	}
}

// Validate checks the config, filling in the worker default. It returns an
// error wrapping ErrInvalidConfig on any out-of-range value.
func (cfg *Config) Validate() error {
	if cfg.NumKeypoints <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "num_keypoints must be positive, got %d", cfg.NumKeypoints)
	}
	if cfg.Temperature <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "temperature must be positive, got %f", cfg.Temperature)
	}
	if cfg.MaxIterations <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "max_iterations must be positive, got %d", cfg.MaxIterations)
	}
	if cfg.ConvergenceEpsilon < 0 {
		return errors.Wrapf(ErrInvalidConfig, "convergence_epsilon must be non-negative, got %f", cfg.ConvergenceEpsilon)
	}
	if cfg.RotationThresholdRad < 0 {
		return errors.Wrapf(ErrInvalidConfig, "rotation_threshold_rad must be non-negative, got %f", cfg.RotationThresholdRad)
	}
	if cfg.TranslationThreshold < 0 {
		return errors.Wrapf(ErrInvalidConfig, "translation_threshold must be non-negative, got %f", cfg.TranslationThreshold)
	}
	if cfg.OutlierGateFactor != 0 && cfg.OutlierGateFactor < 1 {
		return errors.Wrapf(ErrInvalidConfig,
			"outlier_gate_factor must be 0 (disabled) or at least 1, got %f", cfg.OutlierGateFactor)
	}
	if cfg.Workers < 0 {
		return errors.Wrapf(ErrInvalidConfig, "workers must be non-negative, got %d", cfg.Workers)
	}
	if cfg.Workers == 0 {
		cfg.Workers = utils.ParallelFactor
	}
	return nil
}
