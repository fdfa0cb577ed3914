package pixelops

import (
	"math"

	"gocv.io/x/gocv"

	"uwrestore/internal/rasterimage"
)

// SobelMagnitude returns a single-channel gocv.Mat (CV32FC1) holding
// the Sobel gradient magnitude of the given channel (0=R, 1=G, 2=B).
// Grounded on the teacher's gaussian.go wrapper shape: allocate, call
// the gocv primitive, return. Caller owns the returned Mat and must
// Close it.
func SobelMagnitude(img *rasterimage.Float, channel int) gocv.Mat {
	planes := gocv.Split(img.Mat())
	defer func() {
		for i, p := range planes {
			if i != channel {
				p.Close()
			}
		}
	}()
	src := planes[channel]
	defer src.Close()

	gx := gocv.NewMat()
	gy := gocv.NewMat()
	defer gx.Close()
	defer gy.Close()
	gocv.Sobel(src, &gx, gocv.MatTypeCV32F, 1, 0, 3, 1, 0, gocv.BorderDefault)
	gocv.Sobel(src, &gy, gocv.MatTypeCV32F, 0, 1, 3, 1, 0, gocv.BorderDefault)

	gx2 := gocv.NewMat()
	gy2 := gocv.NewMat()
	defer gx2.Close()
	defer gy2.Close()
	gocv.Multiply(gx, gx, &gx2)
	gocv.Multiply(gy, gy, &gy2)

	sumSq := gocv.NewMat()
	defer sumSq.Close()
	gocv.Add(gx2, gy2, &sumSq)

	mag := gocv.NewMat()
	gocv.Sqrt(sumSq, &mag)
	return mag
}

// SobelMagnitudeMean is the scene-signature "edge strength" scalar:
// the mean Sobel magnitude across all three channels.
func SobelMagnitudeMean(img *rasterimage.Float) float64 {
	var total float64
	for c := 0; c < 3; c++ {
		mag := SobelMagnitude(img, c)
		total += mag.Mean().Val1
		mag.Close()
	}
	return total / 3.0
}

// LaplacianVarianceChannel computes the variance of the Laplacian of a
// single channel; used both as a general noise/detail proxy and, on a
// darkest-pixel mask, by the quality analyzer's noise-amplification
// check.
func LaplacianVarianceChannel(img *rasterimage.Float, channel int) float64 {
	planes := gocv.Split(img.Mat())
	defer func() {
		for i, p := range planes {
			if i != channel {
				p.Close()
			}
		}
	}()
	src := planes[channel]
	defer src.Close()

	lap := gocv.NewMat()
	defer lap.Close()
	gocv.Laplacian(src, &lap, gocv.MatTypeCV32F, 1, 1, 0, gocv.BorderDefault)

	mean := lap.Mean().Val1
	sq := gocv.NewMat()
	defer sq.Close()
	gocv.Multiply(lap, lap, &sq)
	meanSq := sq.Mean().Val1
	variance := meanSq - mean*mean
	if variance < 0 {
		variance = 0
	}
	return variance
}

// LaplacianVariance averages LaplacianVarianceChannel over R, G, B —
// the scene-signature "Laplacian variance" noise/detail proxy.
func LaplacianVariance(img *rasterimage.Float) float64 {
	return (LaplacianVarianceChannel(img, 0) +
		LaplacianVarianceChannel(img, 1) +
		LaplacianVarianceChannel(img, 2)) / 3.0
}

// LaplacianVarianceMasked computes Laplacian variance of the luminance
// channel restricted to pixels where mask is nonzero, used by the
// quality analyzer's darkest-20%-of-pixels noise check.
func LaplacianVarianceMasked(luminance gocv.Mat, mask gocv.Mat) float64 {
	lap := gocv.NewMat()
	defer lap.Close()
	gocv.Laplacian(luminance, &lap, gocv.MatTypeCV32F, 1, 1, 0, gocv.BorderDefault)

	mean := lap.MeanWithMask(mask).Val1
	sq := gocv.NewMat()
	defer sq.Close()
	gocv.Multiply(lap, lap, &sq)
	meanSq := sq.MeanWithMask(mask).Val1
	variance := meanSq - mean*mean
	if variance < 0 || math.IsNaN(variance) {
		return 0
	}
	return variance
}
