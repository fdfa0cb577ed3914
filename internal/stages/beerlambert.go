package stages

import (
	"context"
	"math"

	"uwrestore/internal/rasterimage"
	"uwrestore/internal/signature"
	"uwrestore/internal/stageparams"
)

// BeerLambert implements the per-channel attenuation-compensation
// stage of spec.md §4.4. No teacher analogue exists directly; the
// nearest structural precedent is
// internal/processing/filters/filters.go's per-pixel weighted-
// combination filters.
type BeerLambert struct{}

func NewBeerLambert() *BeerLambert { return &BeerLambert{} }

func (s *BeerLambert) ID() stageparams.StageID { return stageparams.BeerLambert }

func (s *BeerLambert) DefaultParams() any { return stageparams.DefaultBeerLambertParams() }

func (s *BeerLambert) Describe() string {
	return "compensates wavelength-dependent light attenuation with an exponential per-channel model"
}

func (s *BeerLambert) Apply(ctx context.Context, img *rasterimage.Float, params any) (*rasterimage.Float, error) {
	p, ok := params.(stageparams.BeerLambertParams)
	if !ok {
		return nil, &ErrWrongParamType{Stage: s.ID(), Expected: "BeerLambertParams", Got: params}
	}
	p.Clamp()
	if err := checkCancel(ctx); err != nil {
		return nil, err
	}

	rows, cols := img.Rows(), img.Cols()
	out, err := rasterimage.New(rows, cols)
	if err != nil {
		return nil, err
	}

	er := math.Exp(p.KRed * p.DepthFactor * p.Enhancement)
	eg := math.Exp(p.KGreen * p.DepthFactor * p.Enhancement)
	eb := math.Exp(p.KBlue * p.DepthFactor * p.Enhancement)

	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			r, g, b, _ := img.GetPixel(y, x)
			nr := clamp01(float64(r) * er)
			ng := clamp01(float64(g) * eg)
			nb := clamp01(float64(b) * eb)
			out.SetPixel(y, x, float32(nr), float32(ng), float32(nb))
		}
	}
	return out, nil
}

// AutoTune implements spec.md §4.4's auto-tune: a distance proxy from
// spectral ratios sets depth_factor; saturation headroom scales the
// baseline absorption coefficients down to avoid clipping.
func (s *BeerLambert) AutoTune(ctx context.Context, img *rasterimage.Float, sig signature.SceneSignature) (any, error) {
	if err := checkCancel(ctx); err != nil {
		return nil, err
	}
	p := stageparams.DefaultBeerLambertParams()

	ratio := 1.0
	if sig.R.Mean > 1e-6 {
		ratio = sig.B.Mean / sig.R.Mean
	}
	if ratio < 1e-6 {
		ratio = 1e-6
	}
	d := math.Log(ratio)
	if d < 0 {
		d = 0
	}

	// Map d into [0.3, 1.2] (spec.md §4.4).
	depthFactor := 0.3 + clamp01(d/2.0)*(1.2-0.3)
	p.DepthFactor = depthFactor

	p.KRed = 0.6
	p.KGreen = 0.25
	p.KBlue = 0.1

	// Saturation headroom: if a large fraction of pixels are already
	// near-saturated, scale the coefficients down to avoid clipping.
	headroom := 1.0 - sig.SaturatedFraction
	scale := 0.5 + 0.5*clamp01(headroom)
	p.KRed *= scale
	p.KGreen *= scale
	p.KBlue *= scale

	p.Clamp()
	return p, nil
}
