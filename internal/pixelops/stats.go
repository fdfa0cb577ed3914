// Package pixelops implements the primitive routines of §2 item 1:
// channel statistics, percentiles, histograms, gradients, blurs,
// color-space conversion, guided filtering and pyramids, all
// operating on rasterimage.Float images.
package pixelops

import (
	"math"
	"sort"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"

	"uwrestore/internal/rasterimage"
)

// MatValuesSorted flattens a single-channel CV32FC1 gocv.Mat into a
// sorted []float64, the shape gonum/stat.Quantile requires. Used by
// stages that need percentile statistics of a derived map (e.g. the
// grey-edge white-balance method's Sobel magnitude) rather than of a
// rasterimage.Float channel directly.
func MatValuesSorted(m gocv.Mat) []float64 {
	rows, cols := m.Rows(), m.Cols()
	values := make([]float64, 0, rows*cols)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			values = append(values, float64(m.GetFloatAt(y, x)))
		}
	}
	sort.Float64s(values)
	return values
}

// ChannelMeans returns the per-channel arithmetic mean.
func ChannelMeans(img *rasterimage.Float) (r, g, b float64) {
	rows, cols := img.Rows(), img.Cols()
	n := float64(rows * cols)
	if n == 0 {
		return 0, 0, 0
	}
	var sr, sg, sb float64
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			pr, pg, pb, _ := img.GetPixel(y, x)
			sr += float64(pr)
			sg += float64(pg)
			sb += float64(pb)
		}
	}
	return sr / n, sg / n, sb / n
}

// ChannelValues extracts a flattened, sorted copy of one channel's
// pixel values, suitable for gonum/stat.Quantile (which requires
// sorted input).
func ChannelValues(img *rasterimage.Float, channel int) []float64 {
	rows, cols := img.Rows(), img.Cols()
	values := make([]float64, 0, rows*cols)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			v, _ := img.GetChannel(y, x, channel)
			values = append(values, float64(v))
		}
	}
	sort.Float64s(values)
	return values
}

// Percentile returns the p-th percentile (p in [0, 100]) of a
// pre-sorted channel value slice.
func Percentile(sortedValues []float64, p float64) float64 {
	if len(sortedValues) == 0 {
		return 0
	}
	return stat.Quantile(p/100.0, stat.Empirical, sortedValues, nil)
}

// PercentileMean is the mean of pixels falling between the p-th and
// (100-p)-th percentile bounds (spec.md §4.2's "percentile-based
// mean"), used by the gray-world white-balance method.
func PercentileMean(sortedValues []float64, p float64) float64 {
	if len(sortedValues) == 0 {
		return 0
	}
	lo := Percentile(sortedValues, p)
	hi := Percentile(sortedValues, 100-p)
	if hi < lo {
		lo, hi = hi, lo
	}

	var sum float64
	var count int
	for _, v := range sortedValues {
		if v >= lo && v <= hi {
			sum += v
			count++
		}
	}
	if count == 0 {
		return stat.Mean(sortedValues, nil)
	}
	return sum / float64(count)
}

// MinkowskiNorm computes (mean(x^p))^(1/p) over a channel, used by
// the shades-of-gray white-balance method.
func MinkowskiNorm(sortedValues []float64, p float64) float64 {
	if len(sortedValues) == 0 {
		return 0
	}
	var sum float64
	for _, v := range sortedValues {
		sum += math.Pow(v, p)
	}
	mean := sum / float64(len(sortedValues))
	if mean <= 0 {
		return 0
	}
	return math.Pow(mean, 1.0/p)
}

// SaturatedFraction returns the fraction of pixels whose value on the
// given channel exceeds threshold (used for the >0.98 saturated-pixel
// check in white-balance auto-tune and the quality analyzer).
func SaturatedFraction(img *rasterimage.Float, channel int, threshold float32) float64 {
	rows, cols := img.Rows(), img.Cols()
	if rows*cols == 0 {
		return 0
	}
	count := 0
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			v, _ := img.GetChannel(y, x, channel)
			if v > threshold {
				count++
			}
		}
	}
	return float64(count) / float64(rows*cols)
}

// EuclideanChannelDistance returns the Euclidean distance between the
// three channel means, treated as a point in R^3 versus the origin of
// equal-means (i.e. distance from (m,m,m) where m is the grand mean).
func EuclideanChannelDistance(r, g, b float64) float64 {
	m := (r + g + b) / 3.0
	dr, dg, db := r-m, g-m, b-m
	return math.Sqrt(dr*dr + dg*dg + db*db)
}

// HistogramSpread is a histogram-spread measure: the difference
// between the 95th and 5th percentile of each of the R, G, B value
// distributions, averaged over the three channels. It does not look at
// a luminance channel.
func HistogramSpread(img *rasterimage.Float) float64 {
	var spread float64
	for c := 0; c < 3; c++ {
		vals := ChannelValues(img, c)
		spread += Percentile(vals, 95) - Percentile(vals, 5)
	}
	return spread / 3.0
}

// Entropy computes the Shannon entropy (bits) of a channel's
// histogram with the given bin count, used by the quality analyzer's
// improvements check.
func Entropy(img *rasterimage.Float, channel int, bins int) float64 {
	hist := Histogram(img, channel, bins)
	total := 0.0
	for _, c := range hist {
		total += float64(c)
	}
	if total == 0 {
		return 0
	}
	var h float64
	for _, c := range hist {
		if c == 0 {
			continue
		}
		p := float64(c) / total
		h -= p * math.Log2(p)
	}
	return h
}

// Histogram buckets one channel's pixel values into `bins` equal-width
// bins over [0, 1].
func Histogram(img *rasterimage.Float, channel int, bins int) []int {
	hist := make([]int, bins)
	rows, cols := img.Rows(), img.Cols()
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			v, _ := img.GetChannel(y, x, channel)
			idx := int(float64(v) * float64(bins))
			if idx >= bins {
				idx = bins - 1
			}
			if idx < 0 {
				idx = 0
			}
			hist[idx]++
		}
	}
	return hist
}

// Mean is a convenience wrapper around gonum/stat.Mean for a
// pre-extracted channel slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}
