package engine

import (
	"context"
	"errors"

	"uwrestore/internal/logging"
	"uwrestore/internal/rasterimage"
	"uwrestore/internal/stages"
	"uwrestore/internal/stageparams"
)

// isCancelled reports whether err represents context cancellation,
// whether it arrives as an *CancelledError (a stage that itself calls
// back into this package) or as the raw stdlib context error a
// stage's own cancellation check returns (spec.md §5: stages check
// context.Context directly between their own sub-steps, e.g.
// multi-scale fusion between pyramid levels).
func isCancelled(err error) bool {
	var cancelled *CancelledError
	if errors.As(err, &cancelled) {
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// ProgressCallback matches spec.md §6's progress callback signature:
// a stable message key and a percentage in [0, 100]. It is invoked
// from whatever goroutine calls Process; per spec.md §5 it must be
// cheap and safe to call concurrently, and Process guarantees
// strictly monotonic percentages within a single run.
type ProgressCallback func(messageKey string, percent int)

// bandStart and bandEnd bound the [10, 85] band spec.md §4.1
// distributes linearly over enabled stages.
const (
	bandStart = 10
	bandEnd   = 85
)

// RunMetadata records which stages, if any, failed during a run and
// were passed through unchanged (spec.md §4.1, §7 StageFailure
// policy).
type RunMetadata struct {
	Degraded map[stageparams.StageID]error
}

// Engine orders and executes the six pipeline stages. It holds no
// mutable state of its own beyond its Stage registry and Logger —
// per spec.md §9's global-state redesign flag, all per-run state
// (the config snapshot, the image) is passed explicitly through
// Process/ProcessFrame rather than stored on the Engine.
type Engine struct {
	stages []stages.Stage
	logger logging.Logger
}

func New(logger logging.Logger) *Engine {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Engine{stages: stages.All(), logger: logger.Component("engine")}
}

// Process applies the six stages in fixed order, skipping disabled
// ones, per spec.md §4.1. It takes a snapshot of config at the start
// of the run (spec.md §5's copy-on-read requirement) so concurrent
// parameter writes are ignored for this run.
func (e *Engine) Process(ctx context.Context, img *rasterimage.Float, config *PipelineConfig, progress ProgressCallback) (*rasterimage.Float, *RunMetadata, error) {
	if err := rasterimage.Validate(img); err != nil {
		return nil, nil, &InvalidInputError{Reason: err.Error()}
	}

	snapshot := config.Snapshot()
	meta := &RunMetadata{Degraded: make(map[stageparams.StageID]error)}

	if progress != nil {
		progress("init", 0)
	}

	enabled := make([]stages.Stage, 0, len(e.stages))
	for _, st := range e.stages {
		sc, _ := snapshot.Get(st.ID())
		if sc.Enabled {
			enabled = append(enabled, st)
		}
	}

	current := img
	for i, st := range enabled {
		select {
		case <-ctx.Done():
			return current, meta, &CancelledError{}
		default:
		}

		sc, _ := snapshot.Get(st.ID())
		result, err := st.Apply(ctx, current, sc.Params)
		if err != nil {
			if isCancelled(err) {
				return current, meta, &CancelledError{}
			}
			e.logger.Warning("stage failed, passing through unchanged", map[string]any{
				"stage": string(st.ID()), "error": err.Error(),
			})
			meta.Degraded[st.ID()] = &StageFailureError{Stage: string(st.ID()), Cause: err}
		} else {
			current = result
		}

		if progress != nil {
			pct := bandStart + (bandEnd-bandStart)*(i+1)/max1(len(enabled))
			progress("stage."+string(st.ID()), pct)
		}
	}

	if progress != nil {
		progress("finalize", 100)
	}

	return current, meta, nil
}

// ProcessFrame is identical to Process except every reported
// percentage of the run (0 for init, the [bandStart,bandEnd] stage
// band, 100 for finalize) is remapped linearly into the per-frame
// sub-band [frameLo, frameHi] the Video Driver computes (spec.md §4.1,
// §4.11).
func (e *Engine) ProcessFrame(ctx context.Context, img *rasterimage.Float, config *PipelineConfig, frameIndex, frameCount int, frameLo, frameHi int, progress ProgressCallback) (*rasterimage.Float, *RunMetadata, error) {
	wrapped := ProgressCallback(nil)
	if progress != nil {
		wrapped = func(messageKey string, percent int) {
			mapped := frameLo + (frameHi-frameLo)*percent/100
			progress(messageKey, mapped)
		}
	}
	return e.Process(ctx, img, config, wrapped)
}

func max1(v int) int {
	if v < 1 {
		return 1
	}
	return v
}
