// Package engine hosts the pipeline engine (spec.md §4.1), the
// PipelineConfig/ConfigFingerprint data model (§3), and the error
// taxonomy (§7). Grounded on internal/pipeline/coordinator.go's
// dispatch loop and internal/models/processing.go's ValidationError
// shape, redesigned per spec.md §9 to carry an explicit fingerprint
// and to never mutate config from inside Process.
package engine

import "fmt"

// InvalidInputError: image has wrong rank, non-finite values, zero
// size, or unsupported channel count.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: %s", e.Reason)
}

// InvalidParameterError: unknown stage, unknown parameter name, or a
// value that cannot be clamped (e.g. a string where a number is
// expected).
type InvalidParameterError struct {
	Stage string
	Name  string
	Cause string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s.%s: %s", e.Stage, e.Name, e.Cause)
}

// CancelledError is returned when a caller's context.Context is
// cancelled mid-operation. Per spec.md §7 it is a distinguished value,
// not something that should be logged as an error.
type CancelledError struct{}

func (e *CancelledError) Error() string { return "operation cancelled" }

// StageFailureError records that a stage raised during Apply or
// AutoTune. The engine's policy (§4.1, §7) is to log it, leave the
// intermediate image unchanged for that stage, and continue; this
// type is attached to the returned RunMetadata rather than surfaced
// as a hard failure of Process itself.
type StageFailureError struct {
	Stage string
	Cause error
}

func (e *StageFailureError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Cause)
}

func (e *StageFailureError) Unwrap() error { return e.Cause }

// CacheInconsistencyError: a fingerprint mismatch was detected at
// cache-install time. Policy is to discard the result silently; this
// type exists for logging/diagnostics, not for propagation to callers.
type CacheInconsistencyError struct {
	Expected, Got string
}

func (e *CacheInconsistencyError) Error() string {
	return fmt.Sprintf("cache inconsistency: expected fingerprint %s, got %s", e.Expected, e.Got)
}

// ResourceExhaustionError: an allocation failed.
type ResourceExhaustionError struct {
	Reason string
}

func (e *ResourceExhaustionError) Error() string {
	return fmt.Sprintf("resource exhaustion: %s", e.Reason)
}
