package stages

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uwrestore/internal/signature"
	"uwrestore/internal/stageparams"
)

func TestBeerLambertBoostsRedMoreThanBlue(t *testing.T) {
	t.Parallel()
	img := castImage(t, 4, 4, 0.3, 0.3, 0.3)
	defer img.Close()

	bl := NewBeerLambert()
	out, err := bl.Apply(context.Background(), img, stageparams.DefaultBeerLambertParams())
	require.NoError(t, err)
	defer out.Close()

	r, _, b, _ := out.GetPixel(0, 0)
	assert.Greater(t, r, float32(0.3), "red must be boosted, KRed is the largest coefficient")
	assert.Greater(t, r, b, "red channel gain exceeds blue channel gain")
}

func TestBeerLambertZeroDepthFactorLeavesImageUnchanged(t *testing.T) {
	t.Parallel()
	img := castImage(t, 4, 4, 0.4, 0.5, 0.6)
	defer img.Close()

	p := stageparams.DefaultBeerLambertParams()
	p.DepthFactor = 0 // clamped up to the minimum, 0.01, but still near-identity

	bl := NewBeerLambert()
	out, err := bl.Apply(context.Background(), img, p)
	require.NoError(t, err)
	defer out.Close()

	r, g, b, _ := out.GetPixel(0, 0)
	assert.InDelta(t, 0.4, float64(r), 0.01)
	assert.InDelta(t, 0.5, float64(g), 0.01)
	assert.InDelta(t, 0.6, float64(b), 0.01)
}

func TestBeerLambertRejectsWrongParamType(t *testing.T) {
	t.Parallel()
	img := castImage(t, 2, 2, 0.5, 0.5, 0.5)
	defer img.Close()

	bl := NewBeerLambert()
	_, err := bl.Apply(context.Background(), img, stageparams.DefaultCLAHEParams())
	var wrongType *ErrWrongParamType
	assert.ErrorAs(t, err, &wrongType)
}

func TestBeerLambertHonorsCancellation(t *testing.T) {
	t.Parallel()
	img := castImage(t, 2, 2, 0.5, 0.5, 0.5)
	defer img.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	bl := NewBeerLambert()
	_, err := bl.Apply(ctx, img, stageparams.DefaultBeerLambertParams())
	assert.Error(t, err)
}

func TestBeerLambertAutoTuneRaisesDepthFactorWithBlueBias(t *testing.T) {
	t.Parallel()
	bl := NewBeerLambert()

	blueBiased := signature.SceneSignature{
		R: signature.ChannelStats{Mean: 0.1},
		B: signature.ChannelStats{Mean: 0.4},
	}
	balanced := signature.SceneSignature{
		R: signature.ChannelStats{Mean: 0.3},
		B: signature.ChannelStats{Mean: 0.3},
	}

	blueResult, err := bl.AutoTune(context.Background(), nil, blueBiased)
	require.NoError(t, err)
	balancedResult, err := bl.AutoTune(context.Background(), nil, balanced)
	require.NoError(t, err)

	assert.Greater(t,
		blueResult.(stageparams.BeerLambertParams).DepthFactor,
		balancedResult.(stageparams.BeerLambertParams).DepthFactor)
}

func TestBeerLambertAutoTuneScalesDownCoefficientsNearSaturation(t *testing.T) {
	t.Parallel()
	bl := NewBeerLambert()

	saturated := signature.SceneSignature{SaturatedFraction: 0.9}
	clean := signature.SceneSignature{SaturatedFraction: 0}

	saturatedResult, err := bl.AutoTune(context.Background(), nil, saturated)
	require.NoError(t, err)
	cleanResult, err := bl.AutoTune(context.Background(), nil, clean)
	require.NoError(t, err)

	assert.Less(t,
		saturatedResult.(stageparams.BeerLambertParams).KRed,
		cleanResult.(stageparams.BeerLambertParams).KRed)
}

func TestBeerLambertAutoTuneHonorsCancellation(t *testing.T) {
	t.Parallel()
	bl := NewBeerLambert()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := bl.AutoTune(ctx, nil, signature.SceneSignature{})
	assert.Error(t, err)
}
