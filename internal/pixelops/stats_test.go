package pixelops

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uwrestore/internal/rasterimage"
)

func solidImage(t *testing.T, rows, cols int, r, g, b float32) *rasterimage.Float {
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

func TestChannelMeansSolidImage(t *testing.T) {
	t.Parallel()
	img := solidImage(t, 4, 4, 0.2, 0.4, 0.6)
	defer img.Close()

	r, g, b := ChannelMeans(img)
	assert.InDelta(t, 0.2, r, 1e-6)
	assert.InDelta(t, 0.4, g, 1e-6)
	assert.InDelta(t, 0.6, b, 1e-6)
}

func TestChannelMeansEmptyImage(t *testing.T) {
	t.Parallel()
	r, g, b := ChannelMeans(&rasterimage.Float{})
	assert.Zero(t, r)
	assert.Zero(t, g)
	assert.Zero(t, b)
}

func TestPercentileOfSortedValues(t *testing.T) {
	t.Parallel()
	values := []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	assert.InDelta(t, 0, Percentile(values, 0), 1e-9)
	assert.InDelta(t, 9, Percentile(values, 100), 1e-9)
	assert.InDelta(t, 4.5, Percentile(values, 50), 1.0)
}

func TestPercentileEmptySlice(t *testing.T) {
	t.Parallel()
	assert.Zero(t, Percentile(nil, 50))
}

func TestPercentileMeanTrimsExtremes(t *testing.T) {
	t.Parallel()
	values := []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 100}
	trimmed := PercentileMean(values, 10)
	full := Mean(values)
	assert.Less(t, trimmed, full, "trimming the top/bottom decile should pull the mean away from the outlier")
}

func TestMinkowskiNormBetweenMinAndMax(t *testing.T) {
	t.Parallel()
	values := []float64{0.1, 0.2, 0.3, 0.9}
	norm := MinkowskiNorm(values, 6)
	assert.GreaterOrEqual(t, norm, 0.1)
	assert.LessOrEqual(t, norm, 0.9)
}

func TestSaturatedFraction(t *testing.T) {
	t.Parallel()
	img, err := rasterimage.New(2, 2)
	require.NoError(t, err)
	defer img.Close()
	require.NoError(t, img.SetPixel(0, 0, 0.99, 0, 0))
	require.NoError(t, img.SetPixel(0, 1, 0.1, 0, 0))
	require.NoError(t, img.SetPixel(1, 0, 0.99, 0, 0))
	require.NoError(t, img.SetPixel(1, 1, 0.1, 0, 0))

	frac := SaturatedFraction(img, 0, 0.98)
	assert.InDelta(t, 0.5, frac, 1e-9)
}

func TestEuclideanChannelDistanceZeroWhenBalanced(t *testing.T) {
	t.Parallel()
	assert.InDelta(t, 0, EuclideanChannelDistance(0.5, 0.5, 0.5), 1e-9)
	assert.Greater(t, EuclideanChannelDistance(0.9, 0.1, 0.1), 0.0)
}

func TestHistogramBucketsCoverFullRange(t *testing.T) {
	t.Parallel()
	img, err := rasterimage.New(1, 4)
	require.NoError(t, err)
	defer img.Close()
	require.NoError(t, img.SetPixel(0, 0, 0.0, 0, 0))
	require.NoError(t, img.SetPixel(0, 1, 0.25, 0, 0))
	require.NoError(t, img.SetPixel(0, 2, 0.5, 0, 0))
	require.NoError(t, img.SetPixel(0, 3, 1.0, 0, 0))

	hist := Histogram(img, 0, 4)
	total := 0
	for _, c := range hist {
		total += c
	}
	assert.Equal(t, 4, total)
	assert.Len(t, hist, 4)
}

func TestEntropyOfUniformIsHigherThanConstant(t *testing.T) {
	t.Parallel()
	constant := solidImage(t, 8, 8, 0.5, 0.5, 0.5)
	defer constant.Close()

	varied, err := rasterimage.New(8, 8)
	require.NoError(t, err)
	defer varied.Close()
	i := 0
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			v := float32(i%8) / 8.0
			require.NoError(t, varied.SetPixel(y, x, v, v, v))
			i++
		}
	}

	assert.Zero(t, Entropy(constant, 0, 8))
	assert.Greater(t, Entropy(varied, 0, 8), Entropy(constant, 0, 8))
}
