// Package signature computes the SceneSignature (spec.md §3, §4.8):
// stage-agnostic per-image statistics computed once and reused by
// every stage's auto-tune routine. Grounded on
// internal/algorithms/otsu2d/histogram.go's histogram-statistics
// shape, generalized from single-channel threshold histograms to
// per-channel RGB statistics.
package signature

import (
	"sort"

	"uwrestore/internal/pixelops"
	"uwrestore/internal/rasterimage"
)

// PercentileSet is the fixed set of percentiles spec.md §3 requires
// per channel.
var PercentileSet = []float64{1, 5, 10, 25, 50, 75, 90, 95, 99}

// ChannelStats holds one channel's mean and the fixed percentile set.
type ChannelStats struct {
	Mean       float64
	Percentile map[float64]float64
}

// SceneSignature is derived once per source image at auto-tune time
// and never from a processed image (spec.md §3 invariant).
type SceneSignature struct {
	R, G, B ChannelStats

	// L is the LAB L-channel (normalized to [0,1]) percentile set, used
	// by CLAHE's auto-tune for the global-contrast check spec.md §4.6
	// names ("P95 − P5 of L channel"), rather than the per-RGB-channel
	// stats above.
	L ChannelStats

	RatioRB, RatioRG, RatioBR float64
	ChannelDistance           float64

	LaplacianVariance  float64
	SobelMagnitudeMean float64

	DarkChannelMean       float64
	DarkChannelPercentile float64

	HistogramSpread float64

	SaturatedFraction float64
}

func channelStats(sorted []float64) ChannelStats {
	cs := ChannelStats{Percentile: make(map[float64]float64, len(PercentileSet))}
	cs.Mean = pixelops.Mean(sorted)
	for _, p := range PercentileSet {
		cs.Percentile[p] = pixelops.Percentile(sorted, p)
	}
	return cs
}

// Compute is deterministic and side-effect-free: given the same image
// it always returns the same signature (spec.md's "auto-tune purity"
// testable property flows from this).
func Compute(img *rasterimage.Float) SceneSignature {
	rVals := pixelops.ChannelValues(img, 0)
	gVals := pixelops.ChannelValues(img, 1)
	bVals := pixelops.ChannelValues(img, 2)

	lMat := pixelops.Luminance(img)
	lVals := pixelops.MatValuesSorted(lMat)
	lMat.Close()

	sig := SceneSignature{
		R: channelStats(rVals),
		G: channelStats(gVals),
		B: channelStats(bVals),
		L: channelStats(lVals),
	}

	if sig.R.Mean > 0 {
		sig.RatioBR = sig.B.Mean / sig.R.Mean
	}
	if sig.B.Mean > 0 {
		sig.RatioRB = sig.R.Mean / sig.B.Mean
	}
	if sig.G.Mean > 0 {
		sig.RatioRG = sig.R.Mean / sig.G.Mean
	}

	sig.ChannelDistance = pixelops.EuclideanChannelDistance(sig.R.Mean, sig.G.Mean, sig.B.Mean)
	sig.LaplacianVariance = pixelops.LaplacianVariance(img)
	sig.SobelMagnitudeMean = pixelops.SobelMagnitudeMean(img)
	sig.HistogramSpread = pixelops.HistogramSpread(img)

	darkVals := DarkChannelValues(img, 15)
	sig.DarkChannelMean = pixelops.Mean(darkVals)
	sig.DarkChannelPercentile = pixelops.Percentile(darkVals, 90)

	sig.SaturatedFraction = maxOf(
		pixelops.SaturatedFraction(img, 0, 0.98),
		pixelops.SaturatedFraction(img, 1, 0.98),
		pixelops.SaturatedFraction(img, 2, 0.98),
	)

	return sig
}

func maxOf(vals ...float64) float64 {
	m := vals[0]
	for _, v := range vals[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// DarkChannelValues returns a sorted per-pixel dark channel (the
// min over R,G,B and a window x window neighborhood, spec.md §4.3
// step 1), reused by both the SceneSignature and the UDCP stage.
func DarkChannelValues(img *rasterimage.Float, window int) []float64 {
	rows, cols := img.Rows(), img.Cols()
	dark := DarkChannel(img, window)
	values := make([]float64, 0, rows*cols)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			values = append(values, float64(dark[y*cols+x]))
		}
	}
	sort.Float64s(values)
	return values
}

// DarkChannel computes the raw per-pixel dark channel as a flat
// row-major float32 slice, without sorting, for callers (the UDCP
// stage) that need the 2D layout.
func DarkChannel(img *rasterimage.Float, window int) []float32 {
	rows, cols := img.Rows(), img.Cols()
	half := window / 2

	// First take the per-pixel min over channels.
	minC := make([]float32, rows*cols)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			r, g, b, _ := img.GetPixel(y, x)
			m := r
			if g < m {
				m = g
			}
			if b < m {
				m = b
			}
			minC[y*cols+x] = m
		}
	}

	// Then a min-filter over the window, separably would be faster but
	// correctness over a small window matters more here than speed.
	dark := make([]float32, rows*cols)
	for y := 0; y < rows; y++ {
		y0, y1 := y-half, y+half
		if y0 < 0 {
			y0 = 0
		}
		if y1 >= rows {
			y1 = rows - 1
		}
		for x := 0; x < cols; x++ {
			x0, x1 := x-half, x+half
			if x0 < 0 {
				x0 = 0
			}
			if x1 >= cols {
				x1 = cols - 1
			}
			m := float32(1.0)
			for wy := y0; wy <= y1; wy++ {
				row := wy * cols
				for wx := x0; wx <= x1; wx++ {
					if v := minC[row+wx]; v < m {
						m = v
					}
				}
			}
			dark[y*cols+x] = m
		}
	}
	return dark
}

