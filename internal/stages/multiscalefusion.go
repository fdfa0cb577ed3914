package stages

import (
	"context"
	"math"

	"gocv.io/x/gocv"

	"uwrestore/internal/pixelops"
	"uwrestore/internal/rasterimage"
	"uwrestore/internal/signature"
	"uwrestore/internal/stageparams"
)

// MultiscaleFusion implements spec.md §4.7: fuse three variants of the
// already-processed image using per-pixel contrast/saturation/
// exposedness weight maps blended through Gaussian/Laplacian
// pyramids. Grounded on internal/processing/chain/chain.go's
// multi-step-composition shape, combined with pixelops/pyramid.go.
// Per spec.md §9's cyclic-reference redesign, this stage never
// re-derives "the original": its single Apply argument is the
// already-processed image from the prior stages, and every variant is
// computed from that value alone.
type MultiscaleFusion struct{}

func NewMultiscaleFusion() *MultiscaleFusion { return &MultiscaleFusion{} }

func (s *MultiscaleFusion) ID() stageparams.StageID { return stageparams.MultiscaleFusion }

func (s *MultiscaleFusion) DefaultParams() any { return stageparams.DefaultMultiscaleFusionParams() }

func (s *MultiscaleFusion) Describe() string {
	return "fuses contrast, sharpened, and identity variants of the processed image via Laplacian-pyramid blending"
}

func (s *MultiscaleFusion) Apply(ctx context.Context, img *rasterimage.Float, params any) (*rasterimage.Float, error) {
	p, ok := params.(stageparams.MultiscaleFusionParams)
	if !ok {
		return nil, &ErrWrongParamType{Stage: s.ID(), Expected: "MultiscaleFusionParams", Got: params}
	}
	p.Clamp()
	if err := checkCancel(ctx); err != nil {
		return nil, err
	}

	v1 := img.Mat().Clone()
	v2 := gentleContrastMat(img.Mat())
	v3 := gentleSharpenMat(img.Mat(), p.BaseSigma, p.SharpenAmount)
	variants := []gocv.Mat{v1, v2, v3}
	defer func() {
		for _, v := range variants {
			v.Close()
		}
	}()

	weights := make([]gocv.Mat, len(variants))
	for i, v := range variants {
		weights[i] = fusionWeight(v, p.WeightContrast, p.WeightSaturation, p.WeightExposedness)
	}
	defer func() {
		for _, w := range weights {
			w.Close()
		}
	}()
	normalizeWeights(weights)

	if err := checkCancel(ctx); err != nil {
		return nil, err
	}

	weightPyramids := make([][]gocv.Mat, len(variants))
	laplacianPyramids := make([][]gocv.Mat, len(variants))
	for i := range variants {
		weightPyramids[i] = pixelops.GaussianPyramid(weights[i], p.Levels, p.BaseSigma, p.ScaleFactor)
		gaussVariant := pixelops.GaussianPyramid(variants[i], p.Levels, p.BaseSigma, p.ScaleFactor)
		laplacianPyramids[i] = pixelops.LaplacianPyramid(gaussVariant)
		pixelops.ClosePyramid(gaussVariant)

		if err := checkCancel(ctx); err != nil {
			pixelops.ClosePyramid(weightPyramids[i])
			pixelops.ClosePyramid(laplacianPyramids[i])
			return nil, err
		}
	}
	defer func() {
		for i := range variants {
			pixelops.ClosePyramid(weightPyramids[i])
			pixelops.ClosePyramid(laplacianPyramids[i])
		}
	}()

	blended := make([]gocv.Mat, p.Levels)
	for k := 0; k < p.Levels; k++ {
		if err := checkCancel(ctx); err != nil {
			pixelops.ClosePyramid(blended[:k])
			return nil, err
		}
		sum := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), laplacianPyramids[0][k].Rows(), laplacianPyramids[0][k].Cols(), gocv.MatTypeCV32FC3)
		for i := range variants {
			term := multiplyByWeight(laplacianPyramids[i][k], weightPyramids[i][k])
			gocv.Add(sum, term, &sum)
			term.Close()
		}
		blended[k] = sum
	}

	fused := pixelops.CollapsePyramid(blended)
	pixelops.ClosePyramid(blended)

	out, err := rasterimage.FromMat(fused)
	if err != nil {
		return nil, err
	}
	rasterimage.Clamp01(out)
	return out, nil
}

// gentleContrastMat: soft sigmoid contrast boost around 0.5 (spec.md
// §4.7 v2).
func gentleContrastMat(src gocv.Mat) gocv.Mat {
	rows, cols := src.Rows(), src.Cols()
	out := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV32FC3)
	const k = 6.0
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			v := src.GetVecfAt(y, x)
			out.SetVecfAt(y, x, [3]float32{
				sigmoidContrast(v[0], k),
				sigmoidContrast(v[1], k),
				sigmoidContrast(v[2], k),
			})
		}
	}
	return out
}

func sigmoidContrast(v float32, k float64) float32 {
	x := float64(v) - 0.5
	s := 1.0 / (1.0 + math.Exp(-k*x))
	// Re-center and rescale so v=0.5 maps to 0.5 and the curve stays
	// within [0,1] for v in [0,1].
	s0 := 1.0 / (1.0 + math.Exp(k*0.5))
	s1 := 1.0 / (1.0 + math.Exp(-k*0.5))
	if s1-s0 == 0 {
		return v
	}
	out := (s - s0) / (s1 - s0)
	if out < 0 {
		out = 0
	}
	if out > 1 {
		out = 1
	}
	return float32(out)
}

// gentleSharpenMat: unsharp mask with radius from base_sigma, amount
// from sharpen_amount (spec.md §4.7 v3).
func gentleSharpenMat(src gocv.Mat, baseSigma, amount float64) gocv.Mat {
	blurred := pixelops.GaussianBlurMat(src, baseSigma)
	defer blurred.Close()

	detail := gocv.NewMat()
	defer detail.Close()
	gocv.Subtract(src, blurred, &detail)

	scaled := gocv.NewMat()
	defer scaled.Close()
	detail.ConvertToWithParams(&scaled, gocv.MatTypeCV32FC3, amount, 0)

	out := gocv.NewMat()
	gocv.Add(src, scaled, &out)
	return out
}

// fusionWeight computes w = contrast^alpha * saturation^beta *
// exposedness^gamma per pixel for one variant (spec.md §4.7).
func fusionWeight(variant gocv.Mat, alpha, beta, gamma float64) gocv.Mat {
	rows, cols := variant.Rows(), variant.Cols()

	luminance := gocv.NewMat()
	gocv.CvtColor(variant, &luminance, gocv.ColorRGBToGray)
	defer luminance.Close()

	lap := gocv.NewMat()
	defer lap.Close()
	gocv.Laplacian(luminance, &lap, gocv.MatTypeCV32F, 1, 1, 0, gocv.BorderDefault)

	out := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV32FC1)
	const sigma = 0.2
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			contrast := math.Abs(float64(lap.GetFloatAt(y, x)))

			v := variant.GetVecfAt(y, x)
			mean := (float64(v[0]) + float64(v[1]) + float64(v[2])) / 3.0
			variance := (sq(float64(v[0])-mean) + sq(float64(v[1])-mean) + sq(float64(v[2])-mean)) / 3.0
			saturation := math.Sqrt(variance)

			exposedness := gaussExposure(float64(v[0]), sigma) *
				gaussExposure(float64(v[1]), sigma) *
				gaussExposure(float64(v[2]), sigma)

			w := math.Pow(contrast+1e-6, alpha) * math.Pow(saturation+1e-6, beta) * math.Pow(exposedness+1e-6, gamma)
			out.SetFloatAt(y, x, float32(w))
		}
	}
	return out
}

func sq(v float64) float64 { return v * v }

func gaussExposure(v, sigma float64) float64 {
	d := v - 0.5
	return math.Exp(-(d * d) / (2 * sigma * sigma))
}

// normalizeWeights rescales the weight maps in place so they sum to 1
// at every pixel (spec.md §4.7).
func normalizeWeights(weights []gocv.Mat) {
	rows, cols := weights[0].Rows(), weights[0].Cols()
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			sum := 0.0
			for _, w := range weights {
				sum += float64(w.GetFloatAt(y, x))
			}
			if sum <= 1e-12 {
				even := float32(1.0 / float64(len(weights)))
				for _, w := range weights {
					w.SetFloatAt(y, x, even)
				}
				continue
			}
			for _, w := range weights {
				w.SetFloatAt(y, x, float32(float64(w.GetFloatAt(y, x))/sum))
			}
		}
	}
}

// multiplyByWeight multiplies a 3-channel Laplacian level by a
// single-channel weight map, broadcasting the weight across channels.
func multiplyByWeight(laplacianLevel, weight gocv.Mat) gocv.Mat {
	weight3 := gocv.NewMat()
	defer weight3.Close()
	gocv.Merge([]gocv.Mat{weight, weight, weight}, &weight3)

	out := gocv.NewMat()
	gocv.Multiply(laplacianLevel, weight3, &out)
	return out
}

// AutoTune implements spec.md §4.7's default preset.
func (s *MultiscaleFusion) AutoTune(ctx context.Context, img *rasterimage.Float, sig signature.SceneSignature) (any, error) {
	if err := checkCancel(ctx); err != nil {
		return nil, err
	}
	return stageparams.DefaultMultiscaleFusionParams(), nil
}
