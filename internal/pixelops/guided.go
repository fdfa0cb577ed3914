package pixelops

import (
	"gocv.io/x/gocv"
)

// GuidedFilterMat refines src (a CV32FC1 map, e.g. a transmission
// estimate) using guidance (a CV32FC1 luminance image) with the
// classic O(1)-per-pixel integral-image formulation. Grounded on
// internal/processing/filters/guided.go, generalized from an 8-bit
// single-channel filter to float32 guidance/target and a
// radius/epsilon pair matching spec.md's guided_radius/guided_eps.
func GuidedFilterMat(guidance, src gocv.Mat, radius int, epsilon float64) gocv.Mat {
	rows, cols := src.Rows(), src.Cols()

	integralI := buildIntegral(guidance, rows, cols, false)
	integralI2 := buildIntegral(guidance, rows, cols, true)
	integralP := buildIntegral(src, rows, cols, false)
	integralIP := buildIntegralProduct(guidance, src, rows, cols)
	defer integralI.Close()
	defer integralI2.Close()
	defer integralP.Close()
	defer integralIP.Close()

	result := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV32FC1)

	for y := 0; y < rows; y++ {
		y1 := max0(y - radius)
		y2 := minN(rows-1, y+radius)
		for x := 0; x < cols; x++ {
			x1 := max0(x - radius)
			x2 := minN(cols-1, x+radius)
			area := float64((y2 - y1 + 1) * (x2 - x1 + 1))

			meanI := integralSum(integralI, y1, x1, y2, x2) / area
			meanI2 := integralSum(integralI2, y1, x1, y2, x2) / area
			meanP := integralSum(integralP, y1, x1, y2, x2) / area
			meanIP := integralSum(integralIP, y1, x1, y2, x2) / area

			varI := meanI2 - meanI*meanI
			covIP := meanIP - meanI*meanP

			a := covIP / (varI + epsilon)
			b := meanP - a*meanI

			gv := float64(guidance.GetFloatAt(y, x))
			out := a*gv + b
			result.SetFloatAt(y, x, float32(out))
		}
	}
	return result
}

func buildIntegral(src gocv.Mat, rows, cols int, squared bool) gocv.Mat {
	integral := gocv.NewMatWithSize(rows+1, cols+1, gocv.MatTypeCV64FC1)
	for j := 0; j <= cols; j++ {
		integral.SetDoubleAt(0, j, 0)
	}
	for y := 1; y <= rows; y++ {
		integral.SetDoubleAt(y, 0, 0)
		for x := 1; x <= cols; x++ {
			v := float64(src.GetFloatAt(y-1, x-1))
			if squared {
				v = v * v
			}
			integral.SetDoubleAt(y, x, v+
				integral.GetDoubleAt(y-1, x)+
				integral.GetDoubleAt(y, x-1)-
				integral.GetDoubleAt(y-1, x-1))
		}
	}
	return integral
}

func buildIntegralProduct(a, b gocv.Mat, rows, cols int) gocv.Mat {
	integral := gocv.NewMatWithSize(rows+1, cols+1, gocv.MatTypeCV64FC1)
	for j := 0; j <= cols; j++ {
		integral.SetDoubleAt(0, j, 0)
	}
	for y := 1; y <= rows; y++ {
		integral.SetDoubleAt(y, 0, 0)
		for x := 1; x <= cols; x++ {
			v := float64(a.GetFloatAt(y-1, x-1)) * float64(b.GetFloatAt(y-1, x-1))
			integral.SetDoubleAt(y, x, v+
				integral.GetDoubleAt(y-1, x)+
				integral.GetDoubleAt(y, x-1)-
				integral.GetDoubleAt(y-1, x-1))
		}
	}
	return integral
}

func integralSum(integral gocv.Mat, y1, x1, y2, x2 int) float64 {
	sum := integral.GetDoubleAt(y2+1, x2+1)
	sum -= integral.GetDoubleAt(y1, x2+1)
	sum -= integral.GetDoubleAt(y2+1, x1)
	sum += integral.GetDoubleAt(y1, x1)
	return sum
}

func max0(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

func minN(a, b int) int {
	if a < b {
		return a
	}
	return b
}
