package quality

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uwrestore/internal/engine"
)

func TestAnalyzeIdenticalImagesScoresWell(t *testing.T) {
	t.Parallel()
	orig := flatImg(t, 16, 16, 0.4, 0.4, 0.4)
	defer orig.Close()
	proc := flatImg(t, 16, 16, 0.4, 0.4, 0.4)
	defer proc.Close()

	report, err := Analyze(context.Background(), orig, proc)
	require.NoError(t, err)
	assert.Len(t, report.Checks, 7)
	assert.Greater(t, report.OverallScore, 5.0)
	assert.InDelta(t, 1.0, report.SSIM, 1e-6)
}

func TestAnalyzeRejectsMismatchedDimensions(t *testing.T) {
	t.Parallel()
	orig := flatImg(t, 8, 8, 0.4, 0.4, 0.4)
	defer orig.Close()
	proc := flatImg(t, 16, 16, 0.4, 0.4, 0.4)
	defer proc.Close()

	_, err := Analyze(context.Background(), orig, proc)
	var invalid *engine.InvalidInputError
	assert.ErrorAs(t, err, &invalid)
}

func TestAnalyzeRejectsInvalidImages(t *testing.T) {
	t.Parallel()
	proc := flatImg(t, 8, 8, 0.4, 0.4, 0.4)
	defer proc.Close()

	_, err := Analyze(context.Background(), nil, proc)
	var invalid *engine.InvalidInputError
	assert.ErrorAs(t, err, &invalid)
}

func TestAnalyzeHonorsCancellation(t *testing.T) {
	t.Parallel()
	orig := flatImg(t, 8, 8, 0.4, 0.4, 0.4)
	defer orig.Close()
	proc := flatImg(t, 8, 8, 0.4, 0.4, 0.4)
	defer proc.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Analyze(ctx, orig, proc)
	var cancelled *engine.CancelledError
	assert.ErrorAs(t, err, &cancelled)
}

func TestCheckUnrealisticColorsPenalizesNeonRed(t *testing.T) {
	t.Parallel()
	clean := flatImg(t, 8, 8, 0.4, 0.4, 0.4)
	defer clean.Close()
	neon := flatImg(t, 8, 8, 1.0, 0.0, 0.0)
	defer neon.Close()

	cleanResult := checkUnrealisticColors(clean)
	neonResult := checkUnrealisticColors(neon)
	assert.Greater(t, cleanResult.Score, neonResult.Score)
	assert.NotEmpty(t, neonResult.Recommendations)
}

func TestCheckRedChannelBalancePenalizesOvercompensation(t *testing.T) {
	t.Parallel()
	orig := flatImg(t, 8, 8, 0.2, 0.4, 0.4)
	defer orig.Close()
	overcompensated := flatImg(t, 8, 8, 0.8, 0.2, 0.2)
	defer overcompensated.Close()
	gentle := flatImg(t, 8, 8, 0.3, 0.4, 0.4)
	defer gentle.Close()

	overResult := checkRedChannelBalance(orig, overcompensated)
	gentleResult := checkRedChannelBalance(orig, gentle)
	assert.Greater(t, gentleResult.Score, overResult.Score)
}

func TestCheckSaturationClippingPenalizesFullySaturatedImage(t *testing.T) {
	t.Parallel()
	saturated := flatImg(t, 16, 16, 1.0, 0.0, 0.0)
	defer saturated.Close()
	mild := flatImg(t, 16, 16, 0.5, 0.4, 0.4)
	defer mild.Close()

	saturatedResult := checkSaturationClipping(saturated)
	mildResult := checkSaturationClipping(mild)
	assert.Greater(t, mildResult.Score, saturatedResult.Score)
}

func TestCheckMidtoneBalancePenalizesCrushedShadows(t *testing.T) {
	t.Parallel()
	bright := flatImg(t, 8, 8, 0.9, 0.9, 0.9)
	defer bright.Close()
	balanced := flatImg(t, 8, 8, 0.4, 0.4, 0.4)
	defer balanced.Close()
	// Two dark rows put 25% of the pixels below L=0.25, inside the
	// unpenalized 5%-60% shadow range; the bright image has none.
	for y := 0; y < 2; y++ {
		for x := 0; x < 8; x++ {
			require.NoError(t, balanced.SetPixel(y, x, 0.05, 0.05, 0.05))
		}
	}

	brightResult := checkMidtoneBalance(bright)
	balancedResult := checkMidtoneBalance(balanced)
	assert.Greater(t, balancedResult.Score, brightResult.Score)
	assert.NotEmpty(t, brightResult.Recommendations)
}

func TestCheckHaloArtifactsOnFlatImageFindsNoEdges(t *testing.T) {
	t.Parallel()
	flat := flatImg(t, 16, 16, 0.5, 0.5, 0.5)
	defer flat.Close()

	result := checkHaloArtifacts(flat)
	assert.Equal(t, 10.0, result.Score)
	assert.Equal(t, 0.0, result.Details["edge_pixel_count"])
}

func TestCheckColorNoiseAmplificationOnIdenticalImagesScoresPerfect(t *testing.T) {
	t.Parallel()
	img := flatImg(t, 16, 16, 0.3, 0.3, 0.3)
	defer img.Close()

	result := checkColorNoiseAmplification(img, img)
	assert.Equal(t, 10.0, result.Score)
}

func TestSafeRunRecoversFromPanic(t *testing.T) {
	t.Parallel()
	result := safeRun("boom_check", func() CheckResult {
		panic("kaboom")
	})
	assert.Equal(t, neutralScore, result.Score)
	assert.NotEmpty(t, result.Recommendations)
}
