package stages

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uwrestore/internal/rasterimage"
	"uwrestore/internal/signature"
	"uwrestore/internal/stageparams"
)

func castImage(t *testing.T, rows, cols int, r, g, b float32) *rasterimage.Float {
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

func TestWhiteBalanceGrayWorldNeutralizesCast(t *testing.T) {
	t.Parallel()
	img := castImage(t, 8, 8, 0.2, 0.5, 0.5)
	defer img.Close()

	wb := NewWhiteBalance()
	p := stageparams.DefaultWhiteBalanceParams()
	p.Method = stageparams.MethodGrayWorld

	out, err := wb.Apply(context.Background(), img, p)
	require.NoError(t, err)
	defer out.Close()

	r, g, b, _ := out.GetPixel(0, 0)
	assert.InDelta(t, float64(g), float64(r), 0.05, "gray world should pull all channels toward their shared mean")
	assert.InDelta(t, float64(b), float64(g), 1e-4, "green and blue converge to the same target mean")
}

func TestWhiteBalanceRejectsWrongParamType(t *testing.T) {
	t.Parallel()
	img := castImage(t, 2, 2, 0.5, 0.5, 0.5)
	defer img.Close()

	wb := NewWhiteBalance()
	_, err := wb.Apply(context.Background(), img, stageparams.CLAHEParams{})
	var wrongType *ErrWrongParamType
	assert.ErrorAs(t, err, &wrongType)
}

func TestWhiteBalanceHonorsCancellation(t *testing.T) {
	t.Parallel()
	img := castImage(t, 2, 2, 0.5, 0.5, 0.5)
	defer img.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	wb := NewWhiteBalance()
	_, err := wb.Apply(ctx, img, stageparams.DefaultWhiteBalanceParams())
	assert.Error(t, err)
}

func TestWhiteBalanceOutputStaysInUnitRange(t *testing.T) {
	t.Parallel()
	img := castImage(t, 4, 4, 0.9, 0.05, 0.05)
	defer img.Close()

	wb := NewWhiteBalance()
	p := stageparams.DefaultWhiteBalanceParams()
	p.MaxGain = 8

	out, err := wb.Apply(context.Background(), img, p)
	require.NoError(t, err)
	defer out.Close()

	r, g, b, _ := out.GetPixel(0, 0)
	assert.LessOrEqual(t, r, float32(1.0))
	assert.LessOrEqual(t, g, float32(1.0))
	assert.LessOrEqual(t, b, float32(1.0))
}

func TestWhiteBalanceAutoTunePicksLakeGreenWaterOnGreenDominance(t *testing.T) {
	t.Parallel()
	wb := NewWhiteBalance()
	sig := signature.SceneSignature{
		R: signature.ChannelStats{Mean: 0.2, Percentile: map[float64]float64{95: 0.3, 99: 0.32}},
		G: signature.ChannelStats{Mean: 0.5, Percentile: map[float64]float64{95: 0.6, 99: 0.62}},
		B: signature.ChannelStats{Mean: 0.2, Percentile: map[float64]float64{95: 0.3, 99: 0.32}},
	}

	result, err := wb.AutoTune(context.Background(), nil, sig)
	require.NoError(t, err)
	p := result.(stageparams.WhiteBalanceParams)
	assert.Equal(t, stageparams.MethodLakeGreenWater, p.Method)
}

func TestWhiteBalanceAutoTuneReducesMaxGainOnHighSaturation(t *testing.T) {
	t.Parallel()
	wb := NewWhiteBalance()
	flatPercentile := map[float64]float64{95: 0.5, 99: 0.52}
	sig := signature.SceneSignature{
		R:                 signature.ChannelStats{Mean: 0.4, Percentile: flatPercentile},
		G:                 signature.ChannelStats{Mean: 0.4, Percentile: flatPercentile},
		B:                 signature.ChannelStats{Mean: 0.4, Percentile: flatPercentile},
		SaturatedFraction: 0.2,
	}

	result, err := wb.AutoTune(context.Background(), nil, sig)
	require.NoError(t, err)
	p := result.(stageparams.WhiteBalanceParams)

	unsaturatedSig := sig
	unsaturatedSig.SaturatedFraction = 0
	baseline, err := wb.AutoTune(context.Background(), nil, unsaturatedSig)
	require.NoError(t, err)
	baselineParams := baseline.(stageparams.WhiteBalanceParams)

	assert.Less(t, p.MaxGain, baselineParams.MaxGain)
}

func TestWhiteBalanceAutoTuneHonorsCancellation(t *testing.T) {
	t.Parallel()
	wb := NewWhiteBalance()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := wb.AutoTune(ctx, nil, signature.SceneSignature{})
	assert.Error(t, err)
}
