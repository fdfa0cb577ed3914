package stages

import (
	"context"
	"math"

	"uwrestore/internal/pixelops"
	"uwrestore/internal/rasterimage"
	"uwrestore/internal/signature"
	"uwrestore/internal/stageparams"
)

// WhiteBalance implements spec.md §4.2's five methods.
type WhiteBalance struct{}

func NewWhiteBalance() *WhiteBalance { return &WhiteBalance{} }

func (s *WhiteBalance) ID() stageparams.StageID { return stageparams.WhiteBalance }

func (s *WhiteBalance) DefaultParams() any { return stageparams.DefaultWhiteBalanceParams() }

func (s *WhiteBalance) Describe() string {
	return "neutralizes color cast via one of five white-balance methods before the physical restoration stages run"
}

func (s *WhiteBalance) Apply(ctx context.Context, img *rasterimage.Float, params any) (*rasterimage.Float, error) {
	p, ok := params.(stageparams.WhiteBalanceParams)
	if !ok {
		return nil, &ErrWrongParamType{Stage: s.ID(), Expected: "WhiteBalanceParams", Got: params}
	}
	p.Clamp()
	if err := checkCancel(ctx); err != nil {
		return nil, err
	}

	var gr, gg, gb float64
	switch p.Method {
	case stageparams.MethodWhitePatch:
		gr, gg, gb = whitePatchGains(img, p.MaxGain)
	case stageparams.MethodShadesOfGray:
		gr, gg, gb = shadesOfGrayGains(img, p.MaxGain)
	case stageparams.MethodGreyEdge:
		gr, gg, gb = greyEdgeGains(img, p.Percentile, p.MaxGain)
	case stageparams.MethodLakeGreenWater:
		gr, gg, gb = lakeGreenWaterGains(img, p.Percentile, p.MaxGain)
	default: // MethodGrayWorld
		gr, gg, gb = grayWorldGains(img, p.Percentile, p.MaxGain)
	}

	return applyGains(img, gr, gg, gb)
}

func clampGain(g, maxGain float64) float64 {
	if maxGain <= 0 {
		maxGain = 1
	}
	minGain := 1.0 / maxGain
	if g < minGain {
		return minGain
	}
	if g > maxGain {
		return maxGain
	}
	return g
}

func applyGains(img *rasterimage.Float, gr, gg, gb float64) (*rasterimage.Float, error) {
	rows, cols := img.Rows(), img.Cols()
	out, err := rasterimage.New(rows, cols)
	if err != nil {
		return nil, err
	}
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			r, g, b, _ := img.GetPixel(y, x)
			nr := clamp01(float64(r) * gr)
			ng := clamp01(float64(g) * gg)
			nb := clamp01(float64(b) * gb)
			out.SetPixel(y, x, float32(nr), float32(ng), float32(nb))
		}
	}
	return out, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// grayWorldGains: percentile-mean per channel, gains toward the
// grand mean of the three percentile-means (spec.md §4.2).
func grayWorldGains(img *rasterimage.Float, percentile, maxGain float64) (gr, gg, gb float64) {
	rVals, gVals, bVals := pixelops.ChannelValues(img, 0), pixelops.ChannelValues(img, 1), pixelops.ChannelValues(img, 2)
	mr := pixelops.PercentileMean(rVals, percentile)
	mg := pixelops.PercentileMean(gVals, percentile)
	mb := pixelops.PercentileMean(bVals, percentile)
	target := (mr + mg + mb) / 3.0
	return gainFor(mr, target, maxGain), gainFor(mg, target, maxGain), gainFor(mb, target, maxGain)
}

func gainFor(mean, target, maxGain float64) float64 {
	if mean <= 0 {
		return 1.0
	}
	return clampGain(target/mean, maxGain)
}

// whitePatchGains: per-channel 99th percentile as reference white,
// target is the max of the three p99s (spec.md §4.2).
func whitePatchGains(img *rasterimage.Float, maxGain float64) (gr, gg, gb float64) {
	rVals, gVals, bVals := pixelops.ChannelValues(img, 0), pixelops.ChannelValues(img, 1), pixelops.ChannelValues(img, 2)
	pr := pixelops.Percentile(rVals, 99)
	pg := pixelops.Percentile(gVals, 99)
	pb := pixelops.Percentile(bVals, 99)
	target := math.Max(pr, math.Max(pg, pb))
	return gainFor(pr, target, maxGain), gainFor(pg, target, maxGain), gainFor(pb, target, maxGain)
}

// shadesOfGrayGains: Minkowski norm with p=6 fixed (spec.md §4.2).
func shadesOfGrayGains(img *rasterimage.Float, maxGain float64) (gr, gg, gb float64) {
	const p = 6.0
	rVals, gVals, bVals := pixelops.ChannelValues(img, 0), pixelops.ChannelValues(img, 1), pixelops.ChannelValues(img, 2)
	nr := pixelops.MinkowskiNorm(rVals, p)
	ng := pixelops.MinkowskiNorm(gVals, p)
	nb := pixelops.MinkowskiNorm(bVals, p)
	target := (nr + ng + nb) / 3.0
	return gainFor(nr, target, maxGain), gainFor(ng, target, maxGain), gainFor(nb, target, maxGain)
}

// greyEdgeGains: first-order grey edge, reference is the
// percentile-mean of the Sobel magnitude per channel (spec.md §4.2).
func greyEdgeGains(img *rasterimage.Float, percentile, maxGain float64) (gr, gg, gb float64) {
	means := make([]float64, 3)
	for c := 0; c < 3; c++ {
		mag := pixelops.SobelMagnitude(img, c)
		vals := pixelops.MatValuesSorted(mag)
		mag.Close()
		means[c] = pixelops.PercentileMean(vals, percentile)
	}
	target := (means[0] + means[1] + means[2]) / 3.0
	return gainFor(means[0], target, maxGain), gainFor(means[1], target, maxGain), gainFor(means[2], target, maxGain)
}

// lakeGreenWaterGains: gray-world base, then green-suppression scalar
// targeting G/R ~= 1.05, then a red floor to avoid red loss (spec.md
// §4.2). The red-floor strength (1.02) resolves the Open Question in
// SPEC_FULL.md/DESIGN.md.
func lakeGreenWaterGains(img *rasterimage.Float, percentile, maxGain float64) (gr, gg, gb float64) {
	const redFloor = 1.02
	baseR, baseG, baseB := grayWorldGains(img, percentile, maxGain)

	rMean, gMean, _ := pixelops.ChannelMeans(img)
	postR := rMean * baseR
	postG := gMean * baseG

	sg := 1.0
	if postR > 0 {
		targetRatio := 1.05
		currentRatio := postG / postR
		if currentRatio > 0 {
			sg = targetRatio / currentRatio
		}
	}
	sg = clampFloatBounds(sg, 0.6, 1.0)

	gr = math.Max(baseR, redFloor)
	gg = clampGain(baseG*sg, maxGain)
	gb = baseB
	return gr, gg, gb
}

func clampFloatBounds(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// AutoTune implements spec.md §4.2's decision tree from a
// pre-computed SceneSignature.
func (s *WhiteBalance) AutoTune(ctx context.Context, img *rasterimage.Float, sig signature.SceneSignature) (any, error) {
	if err := checkCancel(ctx); err != nil {
		return nil, err
	}

	p := stageparams.DefaultWhiteBalanceParams()

	maxRB := math.Max(sig.R.Mean, sig.B.Mean)
	switch {
	case sig.G.Mean > 1.15*maxRB:
		p.Method = stageparams.MethodLakeGreenWater
	case sig.HistogramSpread > 0.35 && channelsBalanced(sig):
		p.Method = stageparams.MethodGrayWorld
		p.Percentile = 20
		p.MaxGain = 1.8
	case isolatedBrightPeak(sig):
		p.Method = stageparams.MethodWhitePatch
		p.MaxGain = 2.2
	default:
		p.Method = stageparams.MethodShadesOfGray
		p.MaxGain = 2.0
	}

	if sig.SaturatedFraction > 0.05 {
		p.MaxGain *= 0.8
	}

	p.Clamp()
	return p, nil
}

func channelsBalanced(sig signature.SceneSignature) bool {
	m := (sig.R.Mean + sig.G.Mean + sig.B.Mean) / 3.0
	if m <= 0 {
		return true
	}
	for _, mean := range []float64{sig.R.Mean, sig.G.Mean, sig.B.Mean} {
		if math.Abs(mean-m)/m > 0.25 {
			return false
		}
	}
	return true
}

func isolatedBrightPeak(sig signature.SceneSignature) bool {
	for _, ch := range []signature.ChannelStats{sig.R, sig.G, sig.B} {
		if ch.Percentile[99]-ch.Percentile[95] > 0.1 {
			return true
		}
	}
	return false
}
