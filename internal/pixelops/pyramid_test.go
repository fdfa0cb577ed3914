package pixelops

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gocv.io/x/gocv"
)

func TestGaussianPyramidShrinksEachLevel(t *testing.T) {
	t.Parallel()
	src := gocv.NewMatWithSize(64, 64, gocv.MatTypeCV32FC3)
	defer src.Close()

	pyr := GaussianPyramid(src, 4, 1.0, 2.0)
	defer ClosePyramid(pyr)

	require.Len(t, pyr, 4)
	assert.Equal(t, 64, pyr[0].Rows())
	assert.Equal(t, 32, pyr[1].Rows())
	assert.Equal(t, 16, pyr[2].Rows())
	assert.Equal(t, 8, pyr[3].Rows())
}

func TestLaplacianPyramidCollapsesBackToSource(t *testing.T) {
	t.Parallel()
	src := gocv.NewMatWithSize(32, 32, gocv.MatTypeCV32FC3)
	defer src.Close()
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			v := float32(x) / 32.0
			src.SetVecfAt(y, x, [3]float32{v, v, v})
		}
	}

	gaussian := GaussianPyramid(src, 3, 1.0, 2.0)
	laplacian := LaplacianPyramid(gaussian)
	ClosePyramid(gaussian)
	defer ClosePyramid(laplacian)

	collapsed := CollapsePyramid(laplacian)
	defer collapsed.Close()

	require.Equal(t, src.Rows(), collapsed.Rows())
	require.Equal(t, src.Cols(), collapsed.Cols())

	var maxDiff float32
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			sv := src.GetVecfAt(y, x)
			cv := collapsed.GetVecfAt(y, x)
			for c := 0; c < 3; c++ {
				d := sv[c] - cv[c]
				if d < 0 {
					d = -d
				}
				if d > maxDiff {
					maxDiff = d
				}
			}
		}
	}
	assert.Less(t, float64(maxDiff), 0.05, "collapsing a Laplacian pyramid should closely reconstruct the source")
}
