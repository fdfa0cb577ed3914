// Gaussian/Laplacian pyramid build and collapse, used by the
// multi-scale fusion stage (spec.md §4.7). Grounded on the teacher's
// gaussian.go blur primitive, composed into a multi-level sequence
// the way internal/processing/chain/chain.go composes single steps
// into a pipeline.
package pixelops

import (
	"image"

	"gocv.io/x/gocv"
)

// GaussianPyramid builds a levels-deep Gaussian pyramid of src by
// repeated blur-then-downsample at the given scaleFactor. Level 0 is
// src itself (cloned). Caller owns every returned Mat.
func GaussianPyramid(src gocv.Mat, levels int, baseSigma, scaleFactor float64) []gocv.Mat {
	pyramid := make([]gocv.Mat, 0, levels)
	current := src.Clone()
	pyramid = append(pyramid, current)

	for l := 1; l < levels; l++ {
		blurred := GaussianBlurMat(current, baseSigma)

		newRows := int(float64(current.Rows()) / scaleFactor)
		newCols := int(float64(current.Cols()) / scaleFactor)
		if newRows < 1 {
			newRows = 1
		}
		if newCols < 1 {
			newCols = 1
		}
		down := gocv.NewMat()
		gocv.Resize(blurred, &down, image.Pt(newCols, newRows), 0, 0, gocv.InterpolationArea)
		blurred.Close()

		pyramid = append(pyramid, down)
		current = down
	}
	return pyramid
}

// LaplacianPyramid builds a levels-deep Laplacian pyramid: each level
// k < levels-1 is gaussian[k] minus gaussian[k+1] upsampled back to
// gaussian[k]'s size; the last level is gaussian[levels-1] itself
// (the residual low-frequency band), matching the classic
// Burt-Adelson construction used for seamless multi-scale blending.
func LaplacianPyramid(gaussianPyr []gocv.Mat) []gocv.Mat {
	levels := len(gaussianPyr)
	laplacian := make([]gocv.Mat, levels)
	for k := 0; k < levels-1; k++ {
		upsized := gocv.NewMat()
		size := image.Pt(gaussianPyr[k].Cols(), gaussianPyr[k].Rows())
		gocv.Resize(gaussianPyr[k+1], &upsized, size, 0, 0, gocv.InterpolationLinear)

		diff := gocv.NewMat()
		gocv.Subtract(gaussianPyr[k], upsized, &diff)
		upsized.Close()
		laplacian[k] = diff
	}
	laplacian[levels-1] = gaussianPyr[levels-1].Clone()
	return laplacian
}

// CollapsePyramid reconstructs an image from a Laplacian pyramid by
// repeated upsample-and-add from the coarsest level upward.
func CollapsePyramid(laplacian []gocv.Mat) gocv.Mat {
	levels := len(laplacian)
	current := laplacian[levels-1].Clone()
	for k := levels - 2; k >= 0; k-- {
		upsized := gocv.NewMat()
		size := image.Pt(laplacian[k].Cols(), laplacian[k].Rows())
		gocv.Resize(current, &upsized, size, 0, 0, gocv.InterpolationLinear)
		current.Close()

		sum := gocv.NewMat()
		gocv.Add(upsized, laplacian[k], &sum)
		upsized.Close()
		current = sum
	}
	return current
}

// ClosePyramid releases every Mat in a pyramid slice.
func ClosePyramid(pyr []gocv.Mat) {
	for _, m := range pyr {
		m.Close()
	}
}
