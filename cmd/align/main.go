// Command align registers a source point cloud onto a target point cloud and
// reports the recovered rigid transform.
package main

import (
	"context"
	"strconv"

	"github.com/edaniels/golog"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"github.com/viam-labs/cloudalign/pointcloud"
	"github.com/viam-labs/cloudalign/registration"
	"github.com/viam-labs/cloudalign/spatialmath"
)

var logger = golog.NewDevelopmentLogger("align")

func main() {
	goutils.ContextualMain(mainWithArgs, logger)
}

// Arguments for the command.
type Arguments struct {
	SourceFile  string `flag:"0,required,usage=source point cloud (.pcd)"`
	TargetFile  string `flag:"1,required,usage=target point cloud (.pcd)"`
	OutFile     string `flag:"out,usage=write the aligned source cloud to this .pcd file"`
	Keypoints   int    `flag:"keypoints,usage=keypoints to match per cloud (default 512, capped at cloud size)"`
	Temperature string `flag:"temperature,usage=correspondence temperature (default 0.01)"`
	Iterations  int    `flag:"iterations,usage=refinement iteration budget (default 20)"`
	Neighbors   int    `flag:"neighbors,usage=local neighborhood size for geometric features (default 16)"`
	Workers     int    `flag:"workers,usage=parallel workers (default GOMAXPROCS)"`
	CrossCheck  bool   `flag:"cross-check,usage=drop matches that are not mutual best"`
	Coordinates bool   `flag:"coordinates,usage=match on raw coordinates instead of geometric features"`
}

func mainWithArgs(ctx context.Context, args []string, logger golog.Logger) error {
	var argsParsed Arguments
	if err := goutils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}

	cfg := registration.DefaultConfig()
	if argsParsed.Keypoints > 0 {
		cfg.NumKeypoints = argsParsed.Keypoints
	}
	if argsParsed.Temperature != "" {
		temp, err := strconv.ParseFloat(argsParsed.Temperature, 64)
		if err != nil {
			return errors.Wrap(err, "invalid temperature")
		}
		cfg.Temperature = temp
	}
	if argsParsed.Iterations > 0 {
		cfg.MaxIterations = argsParsed.Iterations
	}
	if argsParsed.Workers > 0 {
		cfg.Workers = argsParsed.Workers
	}
	if argsParsed.Neighbors <= 0 {
		argsParsed.Neighbors = 16
	}
	cfg.CrossCheck = argsParsed.CrossCheck

	return align(ctx, argsParsed, cfg)
}

func align(ctx context.Context, args Arguments, cfg registration.Config) error {
	source, err := pointcloud.NewFromFile(args.SourceFile)
	if err != nil {
		return errors.Wrapf(err, "reading source cloud %q", args.SourceFile)
	}
	target, err := pointcloud.NewFromFile(args.TargetFile)
	if err != nil {
		return errors.Wrapf(err, "reading target cloud %q", args.TargetFile)
	}
	logger.Infow("clouds loaded",
		"source", args.SourceFile, "source_points", source.Size(),
		"target", args.TargetFile, "target_points", target.Size(),
	)

	if smaller := min(source.Size(), target.Size()); cfg.NumKeypoints > smaller {
		logger.Debugw("capping keypoints to cloud size", "keypoints", smaller)
		cfg.NumKeypoints = smaller
	}

	var embedder registration.Embedder = registration.GeometricEmbedder{
		Neighbors: args.Neighbors,
		Workers:   cfg.Workers,
	}
	if args.Coordinates {
		embedder = registration.CoordinateEmbedder{}
	}

	res, err := registration.Register(ctx, source, target, embedder, cfg, logger)
	if err != nil {
		return err
	}

	euler := spatialmath.QuatToEuler(res.Transform.Rotation().Quaternion())
	trans := res.Transform.Translation()
	logger.Infow("registration finished",
		"state", res.State.String(),
		"iterations", res.NumIterations(),
		"residual", res.Residual,
		"rotation_deg", euler,
		"translation", []float64{trans.X, trans.Y, trans.Z},
	)

	if residuals := res.Residuals(); len(residuals) > 0 {
		mean, err := stats.Mean(residuals)
		if err != nil {
			return err
		}
		median, err := stats.Median(residuals)
		if err != nil {
			return err
		}
		p95, err := stats.Percentile(residuals, 95)
		if err != nil {
			return err
		}
		logger.Infow("residual history", "mean", mean, "median", median, "p95", p95)
	}

	if args.OutFile != "" {
		if err := pointcloud.WriteToFile(source.Transform(res.Transform), args.OutFile); err != nil {
			return errors.Wrapf(err, "writing aligned cloud %q", args.OutFile)
		}
		logger.Infow("aligned cloud written", "file", args.OutFile)
	}
	return nil
}
