// Package preview implements the Preview & Cache Manager of spec.md
// §4.9: maintains a downsampled preview and the full-resolution
// source, caches their processed results keyed by ConfigFingerprint,
// and invalidates on parameter or source change. Grounded on
// internal/models/image.go's ImageRepository (single-writer cache of
// original/processed images with history), redesigned to the
// two-resolution cache + explicit-fingerprint model of spec.md
// §4.9/§9 (REDESIGN FLAGS: cache invalidation).
package preview

import (
	"context"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"uwrestore/internal/engine"
	"uwrestore/internal/logging"
	"uwrestore/internal/rasterimage"
	"uwrestore/internal/signature"
)

// MaxPreviewSide is spec.md §4.9's "longest side <= 1024 px" bound.
const MaxPreviewSide = 1024

// ImageInfo is basic image metadata, supplemented from
// original_source/src/image_info.py. CLAHE's megapixel-based tile_grid
// auto-tune (spec.md §4.6) does not use it; it computes megapixels from
// the image it is given.
type ImageInfo struct {
	Width, Height int
	Megapixels    float64
	AspectRatio   float64
}

// Manager holds one PreviewState (spec.md §3) plus the machinery to
// keep it coherent. Caches are single-writer, multi-reader per
// spec.md §5: only the goroutine that produced a result installs it,
// and only if its fingerprint still matches at install time
// (double-checked install at the end of GetProcessedPreview and
// GetProcessedFull).
type Manager struct {
	mu sync.RWMutex

	source        *rasterimage.Float
	sourcePreview *rasterimage.Float
	scaleFactor   float64

	processed        *rasterimage.Float
	processedFP      engine.ConfigFingerprint
	processedPreview *rasterimage.Float
	previewFP        engine.ConfigFingerprint

	signature    signature.SceneSignature
	hasSignature bool

	eng    *engine.Engine
	logger logging.Logger
}

func New(eng *engine.Engine, logger logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Manager{eng: eng, logger: logger.Component("preview")}
}

// SetSource replaces the source image, resets all caches, and
// recomputes source_preview (spec.md §4.9).
func (m *Manager) SetSource(src *rasterimage.Float) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := rasterimage.Validate(src); err != nil {
		return &engine.InvalidInputError{Reason: err.Error()}
	}

	preview, scale, err := downsample(src, MaxPreviewSide)
	if err != nil {
		return err
	}

	m.source = src
	m.sourcePreview = preview
	m.scaleFactor = scale
	m.processed = nil
	m.processedPreview = nil
	m.processedFP = ""
	m.previewFP = ""
	m.hasSignature = false
	return nil
}

// SetSignature installs the SceneSignature computed for the current
// source (owned by the caller — typically the auto-tune orchestrator
// at load time). Per spec.md §5, the signature is immutable once
// computed for a given source.
func (m *Manager) SetSignature(sig signature.SceneSignature) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signature = sig
	m.hasSignature = true
}

func (m *Manager) Signature() (signature.SceneSignature, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.signature, m.hasSignature
}

// Invalidate clears both processed caches (spec.md §4.9).
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processed = nil
	m.processedPreview = nil
	m.processedFP = ""
	m.previewFP = ""
}

// Source returns the full-resolution source image.
func (m *Manager) Source() *rasterimage.Float {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.source
}

// SourcePreview returns the downsampled preview of the source image.
func (m *Manager) SourcePreview() *rasterimage.Float {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sourcePreview
}

// Info returns basic metadata about the full-resolution source.
func (m *Manager) Info() ImageInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.source == nil {
		return ImageInfo{}
	}
	w, h := m.source.Cols(), m.source.Rows()
	info := ImageInfo{Width: w, Height: h, Megapixels: float64(w*h) / 1_000_000.0}
	if h > 0 {
		info.AspectRatio = float64(w) / float64(h)
	}
	return info
}

// GetProcessedPreview returns processedPreview from cache if its
// fingerprint matches config's current fingerprint (I2); otherwise it
// runs the engine on source_preview, installs the result under a
// double-checked fingerprint compare (I1-I3), and returns it.
func (m *Manager) GetProcessedPreview(ctx context.Context, config *engine.PipelineConfig, progress engine.ProgressCallback) (*rasterimage.Float, error) {
	m.mu.RLock()
	src := m.sourcePreview
	fp := config.Fingerprint()
	if m.sourcePreview != nil && m.processedPreview != nil && m.previewFP == fp {
		cached := m.processedPreview
		m.mu.RUnlock()
		return cached, nil
	}
	m.mu.RUnlock()

	if src == nil {
		return nil, &engine.InvalidInputError{Reason: "no source loaded"}
	}

	result, _, err := m.eng.Process(ctx, src, config, progress)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	// Double-checked install (spec.md §4.9, §5): only install if this
	// fingerprint is still the current one and the source hasn't
	// changed underneath us.
	if m.sourcePreview == src && config.Fingerprint() == fp {
		m.processedPreview = result
		m.previewFP = fp
	}
	m.mu.Unlock()

	return result, nil
}

// GetProcessedFull is the same contract as GetProcessedPreview but on
// the full-resolution source; its cache is independent (spec.md
// §4.9).
func (m *Manager) GetProcessedFull(ctx context.Context, config *engine.PipelineConfig, progress engine.ProgressCallback) (*rasterimage.Float, error) {
	m.mu.RLock()
	src := m.source
	fp := config.Fingerprint()
	if m.source != nil && m.processed != nil && m.processedFP == fp {
		cached := m.processed
		m.mu.RUnlock()
		return cached, nil
	}
	m.mu.RUnlock()

	if src == nil {
		return nil, &engine.InvalidInputError{Reason: "no source loaded"}
	}

	result, _, err := m.eng.Process(ctx, src, config, progress)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.source == src && config.Fingerprint() == fp {
		m.processed = result
		m.processedFP = fp
	}
	m.mu.Unlock()

	return result, nil
}

// downsample computes source_preview such that max(H,W) <= maxSide
// via area-average downsampling (spec.md §4.9), returning the preview
// and the scale factor (preview_size / source_size).
func downsample(src *rasterimage.Float, maxSide int) (*rasterimage.Float, float64, error) {
	rows, cols := src.Rows(), src.Cols()
	longest := rows
	if cols > longest {
		longest = cols
	}
	if longest <= maxSide {
		clone, err := src.Clone()
		if err != nil {
			return nil, 0, err
		}
		return clone, 1.0, nil
	}

	scale := float64(maxSide) / float64(longest)
	newRows := int(float64(rows) * scale)
	newCols := int(float64(cols) * scale)
	if newRows < 1 {
		newRows = 1
	}
	if newCols < 1 {
		newCols = 1
	}

	dst := gocv.NewMat()
	gocv.Resize(src.Mat(), &dst, image.Pt(newCols, newRows), 0, 0, gocv.InterpolationArea)
	preview, err := rasterimage.FromMat(dst)
	if err != nil {
		return nil, 0, fmt.Errorf("preview: downsample failed: %w", err)
	}
	return preview, scale, nil
}
