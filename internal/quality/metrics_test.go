package quality

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uwrestore/internal/rasterimage"
)

func flatImg(t *testing.T, rows, cols int, r, g, b float32) *rasterimage.Float {
	t.Helper()
	img, err := rasterimage.New(rows, cols)
	require.NoError(t, err)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			require.NoError(t, img.SetPixel(y, x, r, g, b))
		}
	}
	return img
}

func TestPSNROfIdenticalImagesIsInfinite(t *testing.T) {
	t.Parallel()
	a := flatImg(t, 8, 8, 0.4, 0.5, 0.6)
	defer a.Close()
	b := flatImg(t, 8, 8, 0.4, 0.5, 0.6)
	defer b.Close()

	assert.True(t, math.IsInf(PSNR(a, b), 1), "identical images have zero MSE, so PSNR must be +Inf")
}

func TestPSNRDecreasesWithMoreDifference(t *testing.T) {
	t.Parallel()
	a := flatImg(t, 8, 8, 0.5, 0.5, 0.5)
	defer a.Close()
	closeB := flatImg(t, 8, 8, 0.52, 0.5, 0.5)
	defer closeB.Close()
	farB := flatImg(t, 8, 8, 0.9, 0.5, 0.5)
	defer farB.Close()

	assert.Greater(t, PSNR(a, closeB), PSNR(a, farB))
}

func TestSSIMOfIdenticalImagesIsOne(t *testing.T) {
	t.Parallel()
	a := flatImg(t, 8, 8, 0.3, 0.4, 0.5)
	defer a.Close()
	b := flatImg(t, 8, 8, 0.3, 0.4, 0.5)
	defer b.Close()

	assert.InDelta(t, 1.0, SSIM(a, b), 1e-6)
}

func TestSSIMStaysWithinUnitRange(t *testing.T) {
	t.Parallel()
	a := flatImg(t, 8, 8, 0.1, 0.9, 0.2)
	defer a.Close()
	b := flatImg(t, 8, 8, 0.9, 0.1, 0.8)
	defer b.Close()

	s := SSIM(a, b)
	assert.GreaterOrEqual(t, s, 0.0)
	assert.LessOrEqual(t, s, 1.0)
}
