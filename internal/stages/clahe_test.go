package stages

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"uwrestore/internal/rasterimage"
	"uwrestore/internal/signature"
	"uwrestore/internal/stageparams"
)

// newLargeFlatImage builds a large flat-color image via a scalar fill
// instead of a per-pixel loop, since AutoTune's tile-grid scaling test
// needs a multi-megapixel image only to read its dimensions.
func newLargeFlatImage(t *testing.T, rows, cols int, v float32) (*rasterimage.Float, error) {
	t.Helper()
	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(float64(v), float64(v), float64(v), 0), rows, cols, gocv.MatTypeCV32FC3)
	return rasterimage.FromMat(mat)
}

func TestCLAHEFlatImageStaysFlat(t *testing.T) {
	t.Parallel()
	img := castImage(t, 16, 16, 0.5, 0.5, 0.5)
	defer img.Close()

	clahe := NewCLAHE()
	out, err := clahe.Apply(context.Background(), img, stageparams.DefaultCLAHEParams())
	require.NoError(t, err)
	defer out.Close()

	r, g, b, _ := out.GetPixel(8, 8)
	assert.InDelta(t, float64(r), float64(g), 1e-3, "a constant-luminance image stays achromatic after CLAHE touches only L")
	assert.InDelta(t, float64(g), float64(b), 1e-3)
	assert.GreaterOrEqual(t, r, float32(0))
	assert.LessOrEqual(t, r, float32(1))
}

func TestCLAHERejectsWrongParamType(t *testing.T) {
	t.Parallel()
	img := castImage(t, 4, 4, 0.5, 0.5, 0.5)
	defer img.Close()

	clahe := NewCLAHE()
	_, err := clahe.Apply(context.Background(), img, stageparams.DefaultBeerLambertParams())
	var wrongType *ErrWrongParamType
	assert.ErrorAs(t, err, &wrongType)
}

func TestCLAHEHonorsCancellation(t *testing.T) {
	t.Parallel()
	img := castImage(t, 4, 4, 0.5, 0.5, 0.5)
	defer img.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	clahe := NewCLAHE()
	_, err := clahe.Apply(ctx, img, stageparams.DefaultCLAHEParams())
	assert.Error(t, err)
}

func TestCLAHEAutoTuneRaisesClipLimitOnLowContrast(t *testing.T) {
	t.Parallel()
	img := castImage(t, 8, 8, 0.5, 0.5, 0.5)
	defer img.Close()

	flatPercentile := map[float64]float64{5: 0.49, 95: 0.51}
	lowContrast := signature.SceneSignature{
		L: signature.ChannelStats{Percentile: flatPercentile},
	}

	clahe := NewCLAHE()
	result, err := clahe.AutoTune(context.Background(), img, lowContrast)
	require.NoError(t, err)
	assert.Equal(t, 4.0, result.(stageparams.CLAHEParams).ClipLimit)
}

func TestCLAHEAutoTuneScalesTileGridWithMegapixels(t *testing.T) {
	t.Parallel()
	small := castImage(t, 8, 8, 0.5, 0.5, 0.5)
	defer small.Close()
	large, err := newLargeFlatImage(t, 2000, 2500, 0.5)
	require.NoError(t, err)
	defer large.Close()

	clahe := NewCLAHE()
	flatPercentile := map[float64]float64{5: 0.3, 95: 0.7}
	sig := signature.SceneSignature{
		L: signature.ChannelStats{Percentile: flatPercentile},
	}

	smallResult, err := clahe.AutoTune(context.Background(), small, sig)
	require.NoError(t, err)
	largeResult, err := clahe.AutoTune(context.Background(), large, sig)
	require.NoError(t, err)

	assert.Less(t, smallResult.(stageparams.CLAHEParams).TileGrid, largeResult.(stageparams.CLAHEParams).TileGrid)
}

func TestCLAHEAutoTuneHonorsCancellation(t *testing.T) {
	t.Parallel()
	img := castImage(t, 2, 2, 0.5, 0.5, 0.5)
	defer img.Close()

	clahe := NewCLAHE()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := clahe.AutoTune(ctx, img, signature.SceneSignature{})
	assert.Error(t, err)
}
