package stages

import (
	"context"

	"gocv.io/x/gocv"

	"uwrestore/internal/pixelops"
	"uwrestore/internal/rasterimage"
	"uwrestore/internal/signature"
	"uwrestore/internal/stageparams"
)

// magentaHueLow/High define the anti-magenta guard band, resolved
// from the Open Question in spec.md §9 at 290-340 degrees.
const (
	magentaHueLow  = 290.0
	magentaHueHigh = 340.0
)

// ColorRebalance implements spec.md §4.5: a 3x3 matrix transform, an
// anti-magenta HSV guard, and optional LAB-luminance preservation.
// Grounded on internal/opencv/conversion/color_space.go's HSV/LAB
// conversion helpers, reused via pixelops.
type ColorRebalance struct{}

func NewColorRebalance() *ColorRebalance { return &ColorRebalance{} }

func (s *ColorRebalance) ID() stageparams.StageID { return stageparams.ColorRebalance }

func (s *ColorRebalance) DefaultParams() any { return stageparams.DefaultColorRebalanceParams() }

func (s *ColorRebalance) Describe() string {
	return "applies a user-tunable 3x3 color matrix with an anti-magenta saturation guard"
}

func (s *ColorRebalance) Apply(ctx context.Context, img *rasterimage.Float, params any) (*rasterimage.Float, error) {
	p, ok := params.(stageparams.ColorRebalanceParams)
	if !ok {
		return nil, &ErrWrongParamType{Stage: s.ID(), Expected: "ColorRebalanceParams", Got: params}
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
	m := p.Matrix
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			r, g, b, _ := img.GetPixel(y, x)
			rf, gf, bf := float64(r), float64(g), float64(b)
			nr := clamp01(m[0]*rf + m[1]*gf + m[2]*bf)
			ng := clamp01(m[3]*rf + m[4]*gf + m[5]*bf)
			nb := clamp01(m[6]*rf + m[7]*gf + m[8]*bf)
			out.SetPixel(y, x, float32(nr), float32(ng), float32(nb))
		}
	}

	if err := checkCancel(ctx); err != nil {
		return nil, err
	}
	if err := antiMagentaGuard(out, p.SaturationLimit); err != nil {
		return nil, err
	}

	if p.PreserveLuminance {
		if err := preserveLuminance(out, img); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// antiMagentaGuard converts to HSV; wherever hue is in the magenta
// band and saturation exceeds the limit, saturation is scaled down to
// the limit (spec.md §4.5).
func antiMagentaGuard(img *rasterimage.Float, saturationLimit float64) error {
	hsv := pixelops.RGBToHSV(img)
	defer hsv.Close()

	rows, cols := hsv.Rows(), hsv.Cols()
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			v := hsv.GetVecfAt(y, x)
			hue, sat := v[0], v[1]
			if hue >= magentaHueLow && hue <= magentaHueHigh && float64(sat) > saturationLimit {
				hsv.SetVecfAt(y, x, [3]float32{hue, float32(saturationLimit), v[2]})
			}
		}
	}

	adjusted, err := pixelops.HSVToRGB(hsv)
	if err != nil {
		return err
	}
	defer adjusted.Close()
	copyInto(img, adjusted)
	return nil
}

func copyInto(dst, src *rasterimage.Float) {
	rows, cols := dst.Rows(), dst.Cols()
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			r, g, b, _ := src.GetPixel(y, x)
			dst.SetPixel(y, x, r, g, b)
		}
	}
}

// preserveLuminance rescales channels of j so its LAB L* matches the
// LAB L* of the original input, per pixel (spec.md §4.5).
func preserveLuminance(j, original *rasterimage.Float) error {
	origLab := pixelops.RGBToLab(original)
	defer origLab.Close()
	jLab := pixelops.RGBToLab(j)
	defer jLab.Close()

	rows, cols := jLab.Rows(), jLab.Cols()
	adjusted := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV32FC3)
	defer adjusted.Close()
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			jv := jLab.GetVecfAt(y, x)
			ov := origLab.GetVecfAt(y, x)
			adjusted.SetVecfAt(y, x, [3]float32{ov[0], jv[1], jv[2]})
		}
	}
	result, err := pixelops.LabToRGB(adjusted)
	if err != nil {
		return err
	}
	defer result.Close()
	copyInto(j, result)
	return nil
}

// AutoTune implements spec.md §4.5: matrix stays identity by default;
// only the magenta-band saturation_limit is derived, based on
// observed red bias.
func (s *ColorRebalance) AutoTune(ctx context.Context, img *rasterimage.Float, sig signature.SceneSignature) (any, error) {
	if err := checkCancel(ctx); err != nil {
		return nil, err
	}
	p := stageparams.DefaultColorRebalanceParams()

	// Higher red bias (post Beer-Lambert, proxied here by RatioRB)
	// tightens the saturation limit to guard against magenta artifacts.
	if sig.RatioRB > 1.3 {
		p.SaturationLimit = 0.7
	} else if sig.RatioRB > 1.1 {
		p.SaturationLimit = 0.8
	}

	p.Clamp()
	return p, nil
}
