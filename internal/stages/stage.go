// Package stages implements the six pipeline stages of spec.md §4.2-
// §4.7, each behind the common Stage contract of spec.md §2 item 2:
// enabled (owned by the caller's PipelineConfig, not the stage
// itself), typed parameters, Apply, AutoTune, DefaultParams, Describe.
// Grounded on resoltico-x's Transformation interface
// (Apply/ApplyPreview/GetParameters/SetParameters) merged with
// internal/algorithms/interfaces.go's Algorithm interface
// (Process/ValidateParameters/GetDefaultParameters/GetName).
package stages

import (
	"context"
	"fmt"

	"uwrestore/internal/rasterimage"
	"uwrestore/internal/signature"
	"uwrestore/internal/stageparams"
)

// Stage is the common contract every pipeline stage implements.
// Apply and AutoTune both take a context.Context, the idiomatic
// answer to spec.md §5's cancellation-token requirement.
type Stage interface {
	ID() stageparams.StageID
	Apply(ctx context.Context, img *rasterimage.Float, params any) (*rasterimage.Float, error)
	AutoTune(ctx context.Context, img *rasterimage.Float, sig signature.SceneSignature) (any, error)
	DefaultParams() any
	Describe() string
}

// ErrWrongParamType is returned by a stage's Apply/AutoTune when the
// params argument is not that stage's expected concrete type.
type ErrWrongParamType struct {
	Stage    stageparams.StageID
	Expected string
	Got      any
}

func (e *ErrWrongParamType) Error() string {
	return fmt.Sprintf("stage %s: expected %s parameters, got %T", e.Stage, e.Expected, e.Got)
}

// All returns the six stages in spec.md's fixed, non-negotiable
// pipeline order.
func All() []Stage {
	return []Stage{
		NewWhiteBalance(),
		NewUDCP(),
		NewBeerLambert(),
		NewColorRebalance(),
		NewCLAHE(),
		NewMultiscaleFusion(),
	}
}

// checkCancel returns ctx's own error rather than an engine-level
// CancelledError: this package cannot import internal/engine (engine
// imports stages to build its registry), so the raw stdlib context
// error is what Apply/AutoTune propagate. Callers across that boundary
// (internal/engine.Engine, internal/autotune.Orchestrator) recognize
// it via errors.Is(err, context.Canceled) and translate it themselves.
func checkCancel(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
