// Package video implements the Video Driver of spec.md §4.11: iterates
// decoded RGB frames, applies process_frame to each with the current
// (frozen) config, and reports progress across a shared [10, 90] band
// split into equal per-frame sub-bands. Grounded on
// internal/debug/timing/tracker.go's context-scoped operation pattern
// and internal/pipeline/coordinator.go's dispatch loop, generalized
// from a single-image run to a frame sequence.
package video

import (
	"context"
	"errors"
	"fmt"
	"io"

	"uwrestore/internal/engine"
	"uwrestore/internal/logging"
	"uwrestore/internal/rasterimage"
)

// bandStart and bandEnd are spec.md §4.11's shared video progress band,
// distinct from engine.Engine's own [10, 85] intra-run band: the video
// driver subdivides [10, 90] across frames, and each frame's slice is
// further subdivided by the engine's own stage progress.
const (
	bandStart = 10
	bandEnd   = 90
)

// Decoder produces the frame sequence to process. FrameCount must be
// known up front so the driver can divide the progress band evenly;
// implementations backed by a streaming container should probe frame
// count at open time.
type Decoder interface {
	FrameCount() int
	NextFrame() (*rasterimage.Float, error) // io.EOF when exhausted
}

// Encoder consumes processed frames in order.
type Encoder interface {
	WriteFrame(img *rasterimage.Float) error
	Close() error
}

// Driver runs process_frame over every frame a Decoder yields, in
// order, writing each result to an Encoder. It holds no per-run state;
// all per-run state is local to ProcessVideo (spec.md §9's
// global-state redesign flag applies here too).
type Driver struct {
	eng    *engine.Engine
	logger logging.Logger
}

func New(eng *engine.Engine, logger logging.Logger) *Driver {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Driver{eng: eng, logger: logger.Component("video")}
}

// ProcessVideo iterates decoder's frames, applying config to each via
// engine.ProcessFrame, in the current frozen config (no re-tuning per
// frame unless the caller explicitly calls the auto-tune orchestrator
// between frames — spec.md §4.11). Cancellation is checked between
// frames and is honored by the underlying engine within a frame.
func (d *Driver) ProcessVideo(ctx context.Context, decoder Decoder, encoder Encoder, config *engine.PipelineConfig, progress engine.ProgressCallback) error {
	frameCount := decoder.FrameCount()
	if frameCount <= 0 {
		return &engine.InvalidInputError{Reason: "video has no frames"}
	}

	if progress != nil {
		progress("init", 0)
	}

	for i := 0; i < frameCount; i++ {
		select {
		case <-ctx.Done():
			return &engine.CancelledError{}
		default:
		}

		frame, err := decoder.NextFrame()
		if errors.Is(err, io.EOF) {
			d.logger.Warning("decoder exhausted before declared frame count", map[string]any{
				"expected": frameCount, "got": i,
			})
			break
		}
		if err != nil {
			return &engine.InvalidInputError{Reason: fmt.Sprintf("decode frame %d: %v", i, err)}
		}

		frameLo, frameHi := frameBand(i, frameCount)
		wrapped := wrapFrameProgress(progress, i, frameCount)

		result, _, err := d.eng.ProcessFrame(ctx, frame, config, i, frameCount, frameLo, frameHi, wrapped)
		if err != nil {
			if _, cancelled := err.(*engine.CancelledError); cancelled {
				return err
			}
			return err
		}

		if err := encoder.WriteFrame(result); err != nil {
			return fmt.Errorf("video: write frame %d: %w", i, err)
		}
	}

	if err := encoder.Close(); err != nil {
		return fmt.Errorf("video: close encoder: %w", err)
	}

	if progress != nil {
		progress("finalize", 100)
	}
	return nil
}

// frameBand computes frame i's [lo, hi) slice of the shared
// [bandStart, bandEnd] progress band, per spec.md §4.11 ("the band
// [10, 90] ... is divided equally into frame_count per-frame
// sub-bands").
func frameBand(i, frameCount int) (int, int) {
	span := bandEnd - bandStart
	lo := bandStart + span*i/frameCount
	hi := bandStart + span*(i+1)/frameCount
	if hi <= lo {
		hi = lo + 1
	}
	return lo, hi
}

// wrapFrameProgress rewrites the engine's per-stage message key into
// spec.md §4.11's "frame i/N: <stage_key>" display form while leaving
// the percent value untouched (already mapped into the frame's
// sub-band by engine.ProcessFrame).
func wrapFrameProgress(progress engine.ProgressCallback, frameIndex, frameCount int) engine.ProgressCallback {
	if progress == nil {
		return nil
	}
	return func(messageKey string, percent int) {
		progress(fmt.Sprintf("frame %d/%d: %s", frameIndex+1, frameCount, messageKey), percent)
	}
}
