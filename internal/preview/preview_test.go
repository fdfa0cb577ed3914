package preview

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uwrestore/internal/engine"
	"uwrestore/internal/logging"
	"uwrestore/internal/rasterimage"
	"uwrestore/internal/signature"
)

func flatSourceImage(t *testing.T, rows, cols int, v float32) *rasterimage.Float {
	t.Helper()
	img, err := rasterimage.New(rows, cols)
	require.NoError(t, err)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			require.NoError(t, img.SetPixel(y, x, v, v, v))
		}
	}
	return img
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	eng := engine.New(logging.Nop{})
	return New(eng, logging.Nop{})
}

func TestSetSourceSmallImageUsesScaleOne(t *testing.T) {
	t.Parallel()
	m := newTestManager(t)
	img := flatSourceImage(t, 16, 16, 0.5)

	require.NoError(t, m.SetSource(img))
	assert.Equal(t, 16, m.SourcePreview().Rows())
	assert.Equal(t, 16, m.SourcePreview().Cols())
}

func TestSetSourceLargeImageDownsamplesToMaxSide(t *testing.T) {
	t.Parallel()
	m := newTestManager(t)
	img := flatSourceImage(t, 512, 2048, 0.5)

	require.NoError(t, m.SetSource(img))
	preview := m.SourcePreview()
	longest := preview.Rows()
	if preview.Cols() > longest {
		longest = preview.Cols()
	}
	assert.LessOrEqual(t, longest, MaxPreviewSide)
	assert.Equal(t, MaxPreviewSide, preview.Cols(), "the longer side (width) must be scaled exactly to the cap")
}

func TestSetSourceRejectsInvalidImage(t *testing.T) {
	t.Parallel()
	m := newTestManager(t)
	err := m.SetSource(nil)
	var invalid *engine.InvalidInputError
	assert.ErrorAs(t, err, &invalid)
}

func TestSetSourceResetsProcessedCaches(t *testing.T) {
	t.Parallel()
	m := newTestManager(t)
	img := flatSourceImage(t, 8, 8, 0.5)
	require.NoError(t, m.SetSource(img))

	cfg := engine.NewDefaultConfig()
	_, err := m.GetProcessedPreview(context.Background(), cfg, nil)
	require.NoError(t, err)

	img2 := flatSourceImage(t, 8, 8, 0.7)
	require.NoError(t, m.SetSource(img2))

	m.mu.RLock()
	cached := m.processedPreview
	m.mu.RUnlock()
	assert.Nil(t, cached, "setting a new source must drop the previous processed cache")
}

func TestGetProcessedPreviewCachesByFingerprint(t *testing.T) {
	t.Parallel()
	m := newTestManager(t)
	img := flatSourceImage(t, 8, 8, 0.5)
	require.NoError(t, m.SetSource(img))
	cfg := engine.NewDefaultConfig()

	first, err := m.GetProcessedPreview(context.Background(), cfg, nil)
	require.NoError(t, err)
	second, err := m.GetProcessedPreview(context.Background(), cfg, nil)
	require.NoError(t, err)

	assert.Equal(t, first.ID(), second.ID(), "an unchanged fingerprint must return the cached result")
}

func TestGetProcessedPreviewRecomputesAfterConfigChange(t *testing.T) {
	t.Parallel()
	m := newTestManager(t)
	img := flatSourceImage(t, 8, 8, 0.5)
	require.NoError(t, m.SetSource(img))
	cfg := engine.NewDefaultConfig()

	first, err := m.GetProcessedPreview(context.Background(), cfg, nil)
	require.NoError(t, err)

	cfg.SetEnabled("clahe", false)
	second, err := m.GetProcessedPreview(context.Background(), cfg, nil)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID(), second.ID(), "a fingerprint change must force recomputation")
}

func TestGetProcessedFullFailsWithoutSource(t *testing.T) {
	t.Parallel()
	m := newTestManager(t)
	cfg := engine.NewDefaultConfig()
	_, err := m.GetProcessedFull(context.Background(), cfg, nil)
	var invalid *engine.InvalidInputError
	assert.ErrorAs(t, err, &invalid)
}

func TestInvalidateClearsBothCachesButKeepsSource(t *testing.T) {
	t.Parallel()
	m := newTestManager(t)
	img := flatSourceImage(t, 8, 8, 0.5)
	require.NoError(t, m.SetSource(img))
	cfg := engine.NewDefaultConfig()
	_, err := m.GetProcessedPreview(context.Background(), cfg, nil)
	require.NoError(t, err)

	m.Invalidate()

	m.mu.RLock()
	cached := m.processedPreview
	m.mu.RUnlock()
	assert.Nil(t, cached)
	assert.NotNil(t, m.Source(), "invalidate must not drop the source")
}

func TestSetSignatureAndSignatureRoundTrip(t *testing.T) {
	t.Parallel()
	m := newTestManager(t)
	_, ok := m.Signature()
	assert.False(t, ok, "no signature installed yet")

	sig := signature.SceneSignature{RatioRB: 1.2}
	m.SetSignature(sig)

	got, ok := m.Signature()
	require.True(t, ok)
	assert.Equal(t, 1.2, got.RatioRB)
}

func TestInfoReportsDimensionsAndAspectRatio(t *testing.T) {
	t.Parallel()
	m := newTestManager(t)
	img := flatSourceImage(t, 100, 200, 0.5)
	require.NoError(t, m.SetSource(img))

	info := m.Info()
	assert.Equal(t, 200, info.Width)
	assert.Equal(t, 100, info.Height)
	assert.InDelta(t, 2.0, info.AspectRatio, 1e-9)
}

func TestInfoOnEmptyManagerIsZeroValue(t *testing.T) {
	t.Parallel()
	m := newTestManager(t)
	assert.Equal(t, ImageInfo{}, m.Info())
}
