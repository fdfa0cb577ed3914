package stages

import (
	"context"
	"image"

	"gocv.io/x/gocv"

	"uwrestore/internal/pixelops"
	"uwrestore/internal/rasterimage"
	"uwrestore/internal/signature"
	"uwrestore/internal/stageparams"
)

// CLAHE implements spec.md §4.6: convert to LAB, run contrast-limited
// adaptive histogram equalization on L, recombine. Grounded on
// internal/processing/filters/clahe.go, reused nearly verbatim
// (gocv.NewCLAHEWithParams); gocv's CLAHE operates on 8-bit single
// channel Mats, so L is rescaled to [0,255] uint8 around the call and
// back, same as the teacher's Mat-in/Mat-out wrapper shape.
type CLAHE struct{}

func NewCLAHE() *CLAHE { return &CLAHE{} }

func (s *CLAHE) ID() stageparams.StageID { return stageparams.CLAHE }

func (s *CLAHE) DefaultParams() any { return stageparams.DefaultCLAHEParams() }

func (s *CLAHE) Describe() string {
	return "contrast-limited adaptive histogram equalization on LAB lightness"
}

func (s *CLAHE) Apply(ctx context.Context, img *rasterimage.Float, params any) (*rasterimage.Float, error) {
	p, ok := params.(stageparams.CLAHEParams)
	if !ok {
		return nil, &ErrWrongParamType{Stage: s.ID(), Expected: "CLAHEParams", Got: params}
	}
	p.Clamp()
	if err := checkCancel(ctx); err != nil {
		return nil, err
	}

	lab := pixelops.RGBToLab(img)
	defer lab.Close()

	planes := gocv.Split(lab)
	defer func() {
		for _, pl := range planes {
			pl.Close()
		}
	}()
	l := planes[0] // [0,100]

	l8 := gocv.NewMat()
	defer l8.Close()
	l.ConvertToWithParams(&l8, gocv.MatTypeCV8UC1, 255.0/100.0, 0)

	clahe := gocv.NewCLAHEWithParams(p.ClipLimit, image.Pt(p.TileGrid, p.TileGrid))
	defer clahe.Close()
	equalized := gocv.NewMat()
	defer equalized.Close()
	clahe.Apply(l8, &equalized)

	lNew := gocv.NewMat()
	defer lNew.Close()
	equalized.ConvertToWithParams(&lNew, gocv.MatTypeCV32FC1, 100.0/255.0, 0)

	merged := gocv.NewMat()
	defer merged.Close()
	gocv.Merge([]gocv.Mat{lNew, planes[1], planes[2]}, &merged)

	out, err := pixelops.LabToRGB(merged)
	if err != nil {
		return nil, err
	}
	rasterimage.Clamp01(out)
	return out, nil
}

// AutoTune implements spec.md §4.6: noise reduces clip_limit; low
// global contrast raises it; tile_grid scales with megapixels.
func (s *CLAHE) AutoTune(ctx context.Context, img *rasterimage.Float, sig signature.SceneSignature) (any, error) {
	if err := checkCancel(ctx); err != nil {
		return nil, err
	}
	p := stageparams.DefaultCLAHEParams()

	clip := 2.0
	noiseFactor := clamp01(sig.LaplacianVariance / 0.02)
	clip -= noiseFactor * 0.5
	if clip < 1.5 {
		clip = 1.5
	}

	lContrast := sig.L.Percentile[95] - sig.L.Percentile[5]
	if lContrast < 0.4 {
		clip = 4.0
	}
	p.ClipLimit = clip

	rows, cols := img.Rows(), img.Cols()
	megapixels := float64(rows*cols) / 1_000_000.0
	switch {
	case megapixels <= 1.0:
		p.TileGrid = 6
	case megapixels <= 4.0:
		p.TileGrid = 8
	default:
		p.TileGrid = 10
	}

	p.Clamp()
	return p, nil
}
