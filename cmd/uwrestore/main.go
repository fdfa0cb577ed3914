// Command uwrestore is a minimal wiring demonstration for the engine:
// load an image, auto-tune every stage from its scene signature,
// process it at full resolution, save the result, and print a quality
// report. A CLI/GUI front-end is out of scope (spec.md Non-goals); this
// binary exists only to exercise the public surface end to end.
// Grounded on cmd/otsu-obliterator/main.go's context+signal lifecycle
// (graceful shutdown on SIGINT/SIGTERM), stripped of the Fyne GUI
// layer this engine does not carry.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"uwrestore/internal/autotune"
	"uwrestore/internal/engine"
	"uwrestore/internal/imageio"
	"uwrestore/internal/logging"
	"uwrestore/internal/quality"
)

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintf(os.Stderr, "usage: %s <input-image> <output-image>\n", os.Args[0])
		os.Exit(2)
	}
	inputPath, outputPath := os.Args[1], os.Args[2]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	base := logging.New(os.Stderr, zerolog.InfoLevel)
	logger := base.Component("main")

	if err := run(ctx, base, logger, inputPath, outputPath); err != nil {
		logger.Error(err, nil)
		os.Exit(1)
	}
}

func run(ctx context.Context, base, logger logging.Logger, inputPath, outputPath string) error {
	source, err := imageio.Load(inputPath)
	if err != nil {
		return fmt.Errorf("load source: %w", err)
	}
	defer source.Close()

	eng := engine.New(base)
	orchestrator := autotune.New(base)
	config := engine.NewDefaultConfig()
	config.GlobalAutoTune(true)

	sig := orchestrator.ComputeSignature(source)
	waterType := orchestrator.ClassifyWater(sig)
	logger.Info("classified scene", map[string]any{
		"water_type": string(waterType), "rationale": waterType.Rationale(),
	})

	if err := orchestrator.Tune(ctx, source, config, sig); err != nil {
		return fmt.Errorf("auto-tune: %w", err)
	}

	progress := func(messageKey string, percent int) {
		logger.Debug("progress", map[string]any{"message": messageKey, "percent": percent})
	}

	processed, meta, err := eng.Process(ctx, source, config, progress)
	if err != nil {
		return fmt.Errorf("process: %w", err)
	}
	defer processed.Close()

	for stage, cause := range meta.Degraded {
		logger.Warning("stage degraded during run", map[string]any{
			"stage": string(stage), "error": cause.Error(),
		})
	}

	if err := imageio.Save(outputPath, processed); err != nil {
		return fmt.Errorf("save result: %w", err)
	}

	report, err := quality.Analyze(ctx, source, processed)
	if err != nil {
		return fmt.Errorf("analyze quality: %w", err)
	}

	logger.Info("quality report", map[string]any{
		"overall_score": report.OverallScore,
		"psnr":          report.PSNR,
		"ssim":          report.SSIM,
	})
	for name, result := range report.Checks {
		logger.Info("check result", map[string]any{
			"check": name, "score": result.Score, "recommendations": result.Recommendations,
		})
	}

	return nil
}
