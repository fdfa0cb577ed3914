package pixelops

import (
	"image"

	"gocv.io/x/gocv"

	"uwrestore/internal/rasterimage"
)

// GaussianBlur returns a blurred copy of img with the given sigma.
// Kernel size is derived from sigma the way the teacher's
// gaussian.go filter does: an odd kernel of roughly 6*sigma+1,
// clamped to a sane minimum.
func GaussianBlur(img *rasterimage.Float, sigma float64) (*rasterimage.Float, error) {
	ksize := kernelSizeFromSigma(sigma)
	dst := gocv.NewMat()
	gocv.GaussianBlur(img.Mat(), &dst, image.Pt(ksize, ksize), sigma, sigma, gocv.BorderDefault)
	return rasterimage.FromMat(dst)
}

// GaussianBlurMat is the gocv.Mat-level variant, used by the pyramid
// builder and the multi-scale fusion stage to avoid Float round-trips.
func GaussianBlurMat(src gocv.Mat, sigma float64) gocv.Mat {
	ksize := kernelSizeFromSigma(sigma)
	dst := gocv.NewMat()
	gocv.GaussianBlur(src, &dst, image.Pt(ksize, ksize), sigma, sigma, gocv.BorderDefault)
	return dst
}

func kernelSizeFromSigma(sigma float64) int {
	k := int(sigma*6) + 1
	if k < 3 {
		k = 3
	}
	if k%2 == 0 {
		k++
	}
	return k
}

// BoxFilter returns the box-filtered (mean) copy of img over a
// window x window neighborhood.
func BoxFilter(img *rasterimage.Float, window int) (*rasterimage.Float, error) {
	dst := gocv.NewMat()
	gocv.BoxFilter(img.Mat(), &dst, -1, image.Pt(window, window))
	return rasterimage.FromMat(dst)
}

// BoxFilterMat is the gocv.Mat-level variant of BoxFilter. The guided
// filter and the pyramid builder do not use it.
func BoxFilterMat(src gocv.Mat, window int) gocv.Mat {
	dst := gocv.NewMat()
	gocv.BoxFilter(src, &dst, -1, image.Pt(window, window))
	return dst
}
