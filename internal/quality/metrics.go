// Package quality implements the Quality Analyzer of spec.md §4.10:
// seven fixed checks comparing an original and processed preview,
// each scored [0,10], plus an aggregate. Grounded on
// internal/models/image.go's SegmentationMetrics and
// internal/pipeline/coordinator.go's CalculatePSNR/CalculateSSIM
// (there mere placeholders; real formulas adapted from
// resoltico-x/pipeline.go's calculateSSIM), supplemented from
// original_source/src/quality_metrics.py with PSNR/SSIM as
// informational fields that do not feed overall_score.
package quality

import (
	"math"

	"gocv.io/x/gocv"

	"uwrestore/internal/rasterimage"
)

// PSNR computes the peak signal-to-noise ratio in dB between two RGB
// Float images of identical shape.
func PSNR(original, processed *rasterimage.Float) float64 {
	mse := meanSquaredError(original, processed)
	if mse <= 0 {
		return math.Inf(1)
	}
	return 10 * math.Log10(1.0/mse)
}

func meanSquaredError(a, b *rasterimage.Float) float64 {
	rows, cols := a.Rows(), a.Cols()
	n := float64(rows * cols * 3)
	if n == 0 {
		return 0
	}
	var sum float64
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			ar, ag, ab, _ := a.GetPixel(y, x)
			br, bg, bb, _ := b.GetPixel(y, x)
			sum += sq(float64(ar) - float64(br))
			sum += sq(float64(ag) - float64(bg))
			sum += sq(float64(ab) - float64(bb))
		}
	}
	return sum / n
}

func sq(v float64) float64 { return v * v }

// SSIM computes a global structural-similarity index between the
// grayscale luminance of two RGB Float images, following the formula
// in resoltico-x/pipeline.go's calculateSSIM (global, not windowed):
// mean/variance/covariance over the whole image with the standard
// C1/C2 stabilizers, values normalized to the [0,1] float domain
// rather than 8-bit.
func SSIM(original, processed *rasterimage.Float) float64 {
	origGray := toGray(original)
	defer origGray.Close()
	procGray := toGray(processed)
	defer procGray.Close()

	const c1 = 0.01 * 0.01
	const c2 = 0.03 * 0.03

	mu1 := origGray.Mean().Val1
	mu2 := procGray.Mean().Val1
	if math.IsNaN(mu1) || math.IsNaN(mu2) {
		return 0
	}

	origMeanMat := gocv.NewMatFromScalar(origGray.Mean(), origGray.Type())
	defer origMeanMat.Close()
	procMeanMat := gocv.NewMatFromScalar(procGray.Mean(), procGray.Type())
	defer procMeanMat.Close()

	origSub := gocv.NewMat()
	defer origSub.Close()
	procSub := gocv.NewMat()
	defer procSub.Close()
	gocv.Subtract(origGray, origMeanMat, &origSub)
	gocv.Subtract(procGray, procMeanMat, &procSub)

	sigma1Sq := gocv.NewMat()
	defer sigma1Sq.Close()
	sigma2Sq := gocv.NewMat()
	defer sigma2Sq.Close()
	sigma12 := gocv.NewMat()
	defer sigma12.Close()
	gocv.Multiply(origSub, origSub, &sigma1Sq)
	gocv.Multiply(procSub, procSub, &sigma2Sq)
	gocv.Multiply(origSub, procSub, &sigma12)

	s1 := sigma1Sq.Mean().Val1
	s2 := sigma2Sq.Mean().Val1
	s12 := sigma12.Mean().Val1

	numerator := (2*mu1*mu2 + c1) * (2*s12 + c2)
	denominator := (mu1*mu1 + mu2*mu2 + c1) * (s1 + s2 + c2)
	if denominator == 0 || math.IsNaN(denominator) || math.IsInf(denominator, 0) {
		return 0
	}
	ssim := numerator / denominator
	if math.IsNaN(ssim) || math.IsInf(ssim, 0) {
		return 0
	}
	return clampUnit(ssim)
}

func toGray(img *rasterimage.Float) gocv.Mat {
	gray := gocv.NewMat()
	gocv.CvtColor(img.Mat(), &gray, gocv.ColorRGBToGray)
	return gray
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}
