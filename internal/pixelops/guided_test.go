package pixelops

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"gocv.io/x/gocv"
)

func flatMat32F(rows, cols int, v float32) gocv.Mat {
	m := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV32FC1)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			m.SetFloatAt(y, x, v)
		}
	}
	return m
}

func TestGuidedFilterFlatInputIsUnchanged(t *testing.T) {
	t.Parallel()
	guidance := flatMat32F(20, 20, 0.5)
	defer guidance.Close()
	src := flatMat32F(20, 20, 0.3)
	defer src.Close()

	out := GuidedFilterMat(guidance, src, 4, 1e-3)
	defer out.Close()

	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			assert.InDelta(t, 0.3, out.GetFloatAt(y, x), 1e-3)
		}
	}
}

func TestGuidedFilterSmoothsNoisySource(t *testing.T) {
	t.Parallel()
	guidance := flatMat32F(20, 20, 0.5)
	defer guidance.Close()

	noisy := gocv.NewMatWithSize(20, 20, gocv.MatTypeCV32FC1)
	defer noisy.Close()
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			v := float32(0.2)
			if (x+y)%2 == 0 {
				v = 0.8
			}
			noisy.SetFloatAt(y, x, v)
		}
	}

	out := GuidedFilterMat(guidance, noisy, 6, 1e-2)
	defer out.Close()

	var sumSqDiffIn, sumSqDiffOut float64
	for y := 1; y < 19; y++ {
		for x := 1; x < 19; x++ {
			di := float64(noisy.GetFloatAt(y, x) - noisy.GetFloatAt(y, x+1))
			do := float64(out.GetFloatAt(y, x) - out.GetFloatAt(y, x+1))
			sumSqDiffIn += di * di
			sumSqDiffOut += do * do
		}
	}
	assert.Less(t, sumSqDiffOut, sumSqDiffIn, "guided filter should reduce pixel-to-pixel variation on a noisy checkerboard target")
}
