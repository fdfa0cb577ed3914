package quality

import (
	"context"
	"time"

	"gocv.io/x/gocv"

	"uwrestore/internal/engine"
	"uwrestore/internal/pixelops"
	"uwrestore/internal/rasterimage"
)

// CheckResult is one named check's outcome (spec.md §3).
type CheckResult struct {
	Score           float64
	Details         map[string]float64
	Recommendations []string
}

// QualityReport is the full analyzer output (spec.md §3, §4.10).
// PSNR/SSIM are informational fields supplementing the seven named
// checks (original_source/src/quality_metrics.py); they never feed
// OverallScore.
type QualityReport struct {
	Checks       map[string]CheckResult
	OverallScore float64
	PSNR         float64
	SSIM         float64
	Timestamp    time.Time
}

const neutralScore = 5.0

var checkNames = []string{
	"unrealistic_colors",
	"red_channel_balance",
	"saturation_clipping",
	"color_noise_amplification",
	"halo_artifacts",
	"midtone_balance",
	"quality_improvements",
}

// Analyze runs the fixed battery of seven checks on
// (originalPreview, processedPreview), both mandatory to be at
// preview resolution per spec.md §4.10 (>=10x speedup; the metrics
// used here are ratio/fraction-based and scale-invariant, per
// spec.md §9's documented rationale for that design decision).
func Analyze(ctx context.Context, originalPreview, processedPreview *rasterimage.Float) (*QualityReport, error) {
	if err := rasterimage.Validate(originalPreview); err != nil {
		return nil, &engine.InvalidInputError{Reason: err.Error()}
	}
	if err := rasterimage.Validate(processedPreview); err != nil {
		return nil, &engine.InvalidInputError{Reason: err.Error()}
	}
	if originalPreview.Rows() != processedPreview.Rows() || originalPreview.Cols() != processedPreview.Cols() {
		return nil, &engine.InvalidInputError{Reason: "original and processed previews must share dimensions"}
	}

	report := &QualityReport{Checks: make(map[string]CheckResult, len(checkNames)), Timestamp: time.Now()}

	runners := map[string]func() CheckResult{
		"unrealistic_colors":        func() CheckResult { return checkUnrealisticColors(processedPreview) },
		"red_channel_balance":       func() CheckResult { return checkRedChannelBalance(originalPreview, processedPreview) },
		"saturation_clipping":       func() CheckResult { return checkSaturationClipping(processedPreview) },
		"color_noise_amplification": func() CheckResult { return checkColorNoiseAmplification(originalPreview, processedPreview) },
		"halo_artifacts":            func() CheckResult { return checkHaloArtifacts(processedPreview) },
		"midtone_balance":           func() CheckResult { return checkMidtoneBalance(processedPreview) },
		"quality_improvements":      func() CheckResult { return checkQualityImprovements(originalPreview, processedPreview) },
	}

	var sum float64
	for _, name := range checkNames {
		select {
		case <-ctx.Done():
			return nil, &engine.CancelledError{}
		default:
		}
		result := safeRun(name, runners[name])
		report.Checks[name] = result
		sum += result.Score
	}
	report.OverallScore = clampScore(sum / float64(len(checkNames)))

	report.PSNR = PSNR(originalPreview, processedPreview)
	report.SSIM = SSIM(originalPreview, processedPreview)

	return report, nil
}

// safeRun contributes a neutral score plus a recommendation
// describing the failure if the check panics, per spec.md §7's
// "a failed quality check contributes a neutral score (5.0)... it
// does not abort the report" recovery policy.
func safeRun(name string, fn func() CheckResult) (result CheckResult) {
	defer func() {
		if r := recover(); r != nil {
			result = CheckResult{
				Score:           neutralScore,
				Details:         map[string]float64{},
				Recommendations: []string{"check " + name + " could not be computed"},
			}
		}
	}()
	return fn()
}

func luminanceValues(img *rasterimage.Float) gocv.Mat {
	return pixelops.Luminance(img)
}

// checkUnrealisticColors: fraction of neon-red pixels, magenta-band
// high-saturation fraction, and R-dominance ratio (spec.md §4.10.1).
func checkUnrealisticColors(processed *rasterimage.Float) CheckResult {
	rows, cols := processed.Rows(), processed.Cols()
	total := float64(rows * cols)
	if total == 0 {
		return CheckResult{Score: neutralScore, Details: map[string]float64{}}
	}

	hsv := pixelops.RGBToHSV(processed)
	defer hsv.Close()

	var neonRed, magentaHighSat, rDominant int
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			r, g, b, _ := processed.GetPixel(y, x)
			if r > 0.95 && g < 0.3 && b < 0.3 {
				neonRed++
			}
			v := hsv.GetVecfAt(y, x)
			hue, sat := v[0], v[1]
			if hue >= 290 && hue <= 340 && sat > 0.8 {
				magentaHighSat++
			}
			if float64(r) > float64(g)+0.2 && float64(r) > float64(b)+0.2 {
				rDominant++
			}
		}
	}

	neonFrac := float64(neonRed) / total
	magentaFrac := float64(magentaHighSat) / total
	rDomFrac := float64(rDominant) / total

	score := 10.0 - (neonFrac*40 + magentaFrac*30 + rDomFrac*10)
	var recs []string
	if neonFrac > 0.01 {
		recs = append(recs, "reduce red enhancement: neon-red pixels detected")
	}
	if magentaFrac > 0.02 {
		recs = append(recs, "tighten the anti-magenta saturation guard")
	}

	return CheckResult{
		Score: clampScore(score),
		Details: map[string]float64{
			"neon_red_fraction":         neonFrac,
			"magenta_high_sat_fraction": magentaFrac,
			"r_dominance_ratio":         rDomFrac,
		},
		Recommendations: recs,
	}
}

// checkRedChannelBalance: post/pre R/B ratio, post vs pre R mean,
// fraction of red-dominant pixels; penalizes over-compensation
// (spec.md §4.10.2).
func checkRedChannelBalance(original, processed *rasterimage.Float) CheckResult {
	origR, _, origB := pixelops.ChannelMeans(original)
	procR, _, procB := pixelops.ChannelMeans(processed)

	origRatio := safeDiv(origR, origB)
	procRatio := safeDiv(procR, procB)
	rMeanRatio := safeDiv(procR, origR)

	rows, cols := processed.Rows(), processed.Cols()
	total := float64(rows * cols)
	var rDominant int
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			r, g, b, _ := processed.GetPixel(y, x)
			if float64(r) > float64(g)+0.15 && float64(r) > float64(b)+0.15 {
				rDominant++
			}
		}
	}
	rDomFrac := 0.0
	if total > 0 {
		rDomFrac = float64(rDominant) / total
	}

	score := 10.0
	var recs []string
	if rMeanRatio > 1.8 && procRatio > 1.3 {
		score -= 5
		recs = append(recs, "red channel over-compensated relative to the original")
	}
	score -= rDomFrac * 10

	return CheckResult{
		Score: clampScore(score),
		Details: map[string]float64{
			"pre_rb_ratio":      origRatio,
			"post_rb_ratio":     procRatio,
			"r_mean_ratio":      rMeanRatio,
			"red_dominant_frac": rDomFrac,
		},
		Recommendations: recs,
	}
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

// checkSaturationClipping: exact-1 saturation fraction, >0.95
// fraction, and largest connected saturated region (spec.md
// §4.10.3), via gocv connected components on a binary mask.
func checkSaturationClipping(processed *rasterimage.Float) CheckResult {
	hsv := pixelops.RGBToHSV(processed)
	defer hsv.Close()

	rows, cols := hsv.Rows(), hsv.Cols()
	total := float64(rows * cols)
	if total == 0 {
		return CheckResult{Score: neutralScore, Details: map[string]float64{}}
	}

	mask := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV8UC1)
	defer mask.Close()

	var exactCount, highCount int
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			sat := hsv.GetVecfAt(y, x)[1]
			if sat >= 0.999 {
				exactCount++
			}
			if sat > 0.95 {
				highCount++
				mask.SetUCharAt(y, x, 255)
			}
		}
	}

	labels := gocv.NewMat()
	defer labels.Close()
	numLabels := gocv.ConnectedComponents(mask, &labels)

	largest := 0
	if numLabels > 1 {
		counts := make([]int, numLabels)
		for y := 0; y < rows; y++ {
			for x := 0; x < cols; x++ {
				l := int(labels.GetIntAt(y, x))
				if l > 0 && l < numLabels {
					counts[l]++
				}
			}
		}
		for _, c := range counts {
			if c > largest {
				largest = c
			}
		}
	}

	exactFrac := float64(exactCount) / total
	highFrac := float64(highCount) / total
	largestFrac := float64(largest) / total

	score := 10.0
	var recs []string
	if exactFrac > 0.02 {
		score -= 4
		recs = append(recs, "more than 2% of pixels are fully saturated")
	}
	if largestFrac > 0.01 {
		score -= 3
		recs = append(recs, "a single saturated region covers more than 1% of the image")
	}

	return CheckResult{
		Score: clampScore(score),
		Details: map[string]float64{
			"exact_saturated_fraction": exactFrac,
			"high_saturated_fraction":  highFrac,
			"largest_region_fraction":  largestFrac,
		},
		Recommendations: recs,
	}
}

// checkColorNoiseAmplification: Laplacian variance of the LAB
// luminance restricted to the darkest 20% of pixels by luminance,
// before and after; score falls as the post/pre ratio rises above 1.5
// (spec.md §4.10.4). The R, G and B channels are not measured
// separately.
func checkColorNoiseAmplification(original, processed *rasterimage.Float) CheckResult {
	origLum := luminanceValues(original)
	defer origLum.Close()

	rows, cols := origLum.Rows(), origLum.Cols()
	vals := pixelops.MatValuesSorted(origLum)
	threshold := pixelops.Percentile(vals, 20)

	mask := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV8UC1)
	defer mask.Close()
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			if origLum.GetFloatAt(y, x) <= float32(threshold) {
				mask.SetUCharAt(y, x, 255)
			}
		}
	}

	origLumFull := luminanceValues(original)
	defer origLumFull.Close()
	procLumFull := luminanceValues(processed)
	defer procLumFull.Close()

	preVar := pixelops.LaplacianVarianceMasked(origLumFull, mask)
	postVar := pixelops.LaplacianVarianceMasked(procLumFull, mask)

	ratio := 1.0
	if preVar > 1e-9 {
		ratio = postVar / preVar
	}

	score := 10.0
	var recs []string
	if ratio > 1.5 {
		excess := ratio - 1.5
		score -= excess * 6
		recs = append(recs, "noise amplified in shadow regions; consider a gentler UDCP or CLAHE setting")
	}

	return CheckResult{
		Score: clampScore(score),
		Details: map[string]float64{
			"pre_shadow_laplacian_variance":  preVar,
			"post_shadow_laplacian_variance": postVar,
			"ratio":                          ratio,
		},
		Recommendations: recs,
	}
}

// checkHaloArtifacts: Canny edges on processed luminance; for each
// edge pixel, luminance variance in a 5x5 neighborhood penalizes
// overshoot (spec.md §4.10.5).
func checkHaloArtifacts(processed *rasterimage.Float) CheckResult {
	lum := luminanceValues(processed)
	defer lum.Close()

	lum8 := gocv.NewMat()
	defer lum8.Close()
	lum.ConvertToWithParams(&lum8, gocv.MatTypeCV8UC1, 255.0, 0)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(lum8, &edges, 50, 150)

	rows, cols := lum.Rows(), lum.Cols()
	var totalVar float64
	var edgeCount int
	const half = 2
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			if edges.GetUCharAt(y, x) == 0 {
				continue
			}
			edgeCount++
			y0, y1 := clampWindow(y-half, y+half, rows)
			x0, x1 := clampWindow(x-half, x+half, cols)
			var sum, sumSq float64
			var n float64
			for wy := y0; wy <= y1; wy++ {
				for wx := x0; wx <= x1; wx++ {
					v := float64(lum.GetFloatAt(wy, wx))
					sum += v
					sumSq += v * v
					n++
				}
			}
			mean := sum / n
			variance := sumSq/n - mean*mean
			if variance > 0 {
				totalVar += variance
			}
		}
	}

	meanVar := 0.0
	if edgeCount > 0 {
		meanVar = totalVar / float64(edgeCount)
	}

	const overshootThreshold = 0.01
	score := 10.0
	var recs []string
	if meanVar > overshootThreshold {
		score -= (meanVar - overshootThreshold) * 200
		recs = append(recs, "halo overshoot detected around strong edges; reduce sharpen_amount or CLAHE clip_limit")
	}

	return CheckResult{
		Score:           clampScore(score),
		Details:         map[string]float64{"mean_edge_neighborhood_variance": meanVar, "edge_pixel_count": float64(edgeCount)},
		Recommendations: recs,
	}
}

func clampWindow(lo, hi, n int) (int, int) {
	if lo < 0 {
		lo = 0
	}
	if hi >= n {
		hi = n - 1
	}
	return lo, hi
}

// checkMidtoneBalance: shadow/midtone/highlight luminance fractions;
// penalizes crushed blacks or muddy midtones (spec.md §4.10.6).
func checkMidtoneBalance(processed *rasterimage.Float) CheckResult {
	lum := luminanceValues(processed)
	defer lum.Close()

	rows, cols := lum.Rows(), lum.Cols()
	total := float64(rows * cols)
	if total == 0 {
		return CheckResult{Score: neutralScore, Details: map[string]float64{}}
	}

	var shadows, midtones, highlights int
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			l := lum.GetFloatAt(y, x)
			switch {
			case l < 0.25:
				shadows++
			case l > 0.75:
				highlights++
			default:
				midtones++
			}
		}
	}

	shadowFrac := float64(shadows) / total
	midFrac := float64(midtones) / total
	highFrac := float64(highlights) / total

	score := 10.0
	var recs []string
	if shadowFrac < 0.05 {
		score -= 3
		recs = append(recs, "shadows may be crushed; less than 5% of pixels fall below L=0.25")
	}
	if shadowFrac > 0.60 {
		score -= 3
		recs = append(recs, "image looks muddy; more than 60% of pixels fall below L=0.25")
	}

	return CheckResult{
		Score: clampScore(score),
		Details: map[string]float64{
			"shadow_fraction":    shadowFrac,
			"midtone_fraction":   midFrac,
			"highlight_fraction": highFrac,
		},
		Recommendations: recs,
	}
}

// checkQualityImprovements: delta global contrast, delta entropy,
// delta mean saturation; rewards improvement, can raise the aggregate
// (spec.md §4.10.7).
func checkQualityImprovements(original, processed *rasterimage.Float) CheckResult {
	origLum := luminanceValues(original)
	defer origLum.Close()
	procLum := luminanceValues(processed)
	defer procLum.Close()

	origVals := pixelops.MatValuesSorted(origLum)
	procVals := pixelops.MatValuesSorted(procLum)
	origContrast := pixelops.Percentile(origVals, 95) - pixelops.Percentile(origVals, 5)
	procContrast := pixelops.Percentile(procVals, 95) - pixelops.Percentile(procVals, 5)
	deltaContrast := procContrast - origContrast

	var origEntropy, procEntropy float64
	for c := 0; c < 3; c++ {
		origEntropy += pixelops.Entropy(original, c, 64)
		procEntropy += pixelops.Entropy(processed, c, 64)
	}
	deltaEntropy := procEntropy - origEntropy

	origSat := meanSaturation(original)
	procSat := meanSaturation(processed)
	deltaSat := procSat - origSat

	score := 5.0
	score += clampDelta(deltaContrast*10, -2, 2)
	score += clampDelta(deltaEntropy, -2, 2)
	score += clampDelta(deltaSat*5, -1, 1)

	return CheckResult{
		Score: clampScore(score),
		Details: map[string]float64{
			"delta_contrast":   deltaContrast,
			"delta_entropy":    deltaEntropy,
			"delta_saturation": deltaSat,
		},
	}
}

func clampDelta(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func meanSaturation(img *rasterimage.Float) float64 {
	hsv := pixelops.RGBToHSV(img)
	defer hsv.Close()
	rows, cols := hsv.Rows(), hsv.Cols()
	if rows*cols == 0 {
		return 0
	}
	var sum float64
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			sum += float64(hsv.GetVecfAt(y, x)[1])
		}
	}
	return sum / float64(rows*cols)
}
