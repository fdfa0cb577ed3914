// Package autotune implements the Auto-Tune Orchestrator of spec.md
// §4.8: computes a shared SceneSignature once per source image, then
// drives every enabled-for-auto-tune stage's AutoTune from it, and
// classifies water type. Grounded on internal/algorithms/manager.go's
// Manager (registry of algorithms + per-algorithm parameter map),
// redesigned per spec.md §9 ("auto-tune callback hooks") into an
// explicit call rather than a polled boolean: Tune is invoked only
// from (a) image load, (b) an auto-tune flag flip, (c) an explicit
// user request — never implicitly from inside Process.
package autotune

import (
	"context"
	"errors"

	"uwrestore/internal/engine"
	"uwrestore/internal/logging"
	"uwrestore/internal/rasterimage"
	"uwrestore/internal/signature"
	"uwrestore/internal/stages"
	"uwrestore/internal/stageparams"
)

// Orchestrator holds no per-image state itself; the caller (the
// Preview & Cache Manager) owns the cached SceneSignature per spec.md
// §4.9/§5 ("The SceneSignature is immutable once computed for a given
// source").
type Orchestrator struct {
	stages map[stageparams.StageID]stages.Stage
	logger logging.Logger
}

func New(logger logging.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.Nop{}
	}
	reg := make(map[stageparams.StageID]stages.Stage)
	for _, st := range stages.All() {
		reg[st.ID()] = st
	}
	return &Orchestrator{stages: reg, logger: logger.Component("autotune")}
}

// ComputeSignature is deterministic and side-effect-free (spec.md
// §4.8), delegating to the signature package.
func (o *Orchestrator) ComputeSignature(img *rasterimage.Float) signature.SceneSignature {
	return signature.Compute(img)
}

// ClassifyWater delegates to the signature package's deterministic
// classification rules.
func (o *Orchestrator) ClassifyWater(sig signature.SceneSignature) signature.WaterTypeTag {
	return signature.ClassifyWater(sig)
}

// isCancelled reports whether err is context cancellation, whether it
// arrives as *engine.CancelledError or as the raw stdlib context error
// a stage's own AutoTune returns (mirroring internal/engine.Engine's
// own isCancelled, since a stage's cancellation check has no engine
// type to construct — see internal/stages/stage.go's checkCancel).
func isCancelled(err error) bool {
	var cancelled *engine.CancelledError
	if errors.As(err, &cancelled) {
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Tune runs AutoTune for every stage with auto_tune_on set, in fixed
// stage order, writing results into config. A failing stage auto-tune
// falls back silently to its previous parameter values (spec.md §7
// recovery policy) and is logged as a warning; a cancelled one instead
// halts the loop immediately and returns *engine.CancelledError,
// leaving any stages after it untouched, matching the Engine's own
// halt-on-cancel behavior.
func (o *Orchestrator) Tune(ctx context.Context, img *rasterimage.Float, config *engine.PipelineConfig, sig signature.SceneSignature) error {
	for _, id := range stageparams.Order {
		sc, ok := config.Get(id)
		if !ok || !sc.AutoTuneOn {
			continue
		}
		if err := o.tuneOne(ctx, img, config, id, sig); err != nil {
			return err
		}
	}
	return nil
}

// TuneStage runs AutoTune for a single stage id regardless of its
// auto_tune_on flag, used by the flag-flip trigger of spec.md §4.8's
// contract ("toggling any stage's auto-tune flag re-runs that
// stage's tuner immediately").
func (o *Orchestrator) TuneStage(ctx context.Context, img *rasterimage.Float, config *engine.PipelineConfig, id stageparams.StageID, sig signature.SceneSignature) error {
	return o.tuneOne(ctx, img, config, id, sig)
}

func (o *Orchestrator) tuneOne(ctx context.Context, img *rasterimage.Float, config *engine.PipelineConfig, id stageparams.StageID, sig signature.SceneSignature) error {
	st, ok := o.stages[id]
	if !ok {
		return nil
	}
	sc, _ := config.Get(id)

	newParams, err := st.AutoTune(ctx, img, sig)
	if err != nil {
		if isCancelled(err) {
			return &engine.CancelledError{}
		}
		o.logger.Warning("stage auto-tune failed, keeping previous parameters", map[string]any{
			"stage": string(id), "error": err.Error(),
		})
		return nil
	}
	sc.Params = newParams
	config.Set(id, sc)
	return nil
}

// GlobalAutoTune is a convenience wrapper toggling auto_tune_on on
// every stage (spec.md §4.8, §6).
func (o *Orchestrator) GlobalAutoTune(ctx context.Context, img *rasterimage.Float, config *engine.PipelineConfig, on bool, sig signature.SceneSignature) error {
	config.GlobalAutoTune(on)
	if on {
		return o.Tune(ctx, img, config, sig)
	}
	return nil
}

// SetAutoTuneOn implements spec.md §6's set_auto_tune(stage_id, bool)
// operation: flipping a single stage's auto_tune_on flag and, when the
// new value is true, immediately re-running that stage's tuner from
// the cached signature (spec.md §4.8: "toggling any stage's auto-tune
// flag re-runs that stage's tuner immediately"). Callers should use
// this instead of composing config.SetAutoTuneOn and TuneStage
// themselves.
func (o *Orchestrator) SetAutoTuneOn(ctx context.Context, img *rasterimage.Float, config *engine.PipelineConfig, id stageparams.StageID, on bool, sig signature.SceneSignature) error {
	config.SetAutoTuneOn(id, on)
	if on {
		return o.TuneStage(ctx, img, config, id, sig)
	}
	return nil
}
