package stages

import (
	"context"
	"math"
	"sort"

	"gocv.io/x/gocv"

	"uwrestore/internal/pixelops"
	"uwrestore/internal/rasterimage"
	"uwrestore/internal/signature"
	"uwrestore/internal/stageparams"
)

// UDCP implements the Underwater Dark Channel Prior stage, spec.md
// §4.3. Grounded on internal/processing/filters/guided.go for the
// guided-filter refinement step (reused via pixelops.GuidedFilterMat)
// and internal/algorithms/otsu2d/processor.go's sliding-window
// pattern, adapted to a 3-channel RGB minimum via
// signature.DarkChannel.
type UDCP struct{}

func NewUDCP() *UDCP { return &UDCP{} }

func (s *UDCP) ID() stageparams.StageID { return stageparams.UDCP }

func (s *UDCP) DefaultParams() any { return stageparams.DefaultUDCPParams() }

func (s *UDCP) Describe() string {
	return "estimates and inverts the underwater haze transmission model via the dark channel prior"
}

func (s *UDCP) Apply(ctx context.Context, img *rasterimage.Float, params any) (*rasterimage.Float, error) {
	p, ok := params.(stageparams.UDCPParams)
	if !ok {
		return nil, &ErrWrongParamType{Stage: s.ID(), Expected: "UDCPParams", Got: params}
	}
	p.Clamp()
	if err := checkCancel(ctx); err != nil {
		return nil, err
	}

	rows, cols := img.Rows(), img.Cols()

	dark := signature.DarkChannel(img, p.Window)

	if err := checkCancel(ctx); err != nil {
		return nil, err
	}

	ar, ag, ab := atmosphericLight(img, dark, rows, cols)

	if err := checkCancel(ctx); err != nil {
		return nil, err
	}

	// Transmission estimate: 1 - omega * min_c min_window(I_c/A_c).
	tHat := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV32FC1)
	half := p.Window / 2
	normR := makeNormalized(img, 0, ar)
	normG := makeNormalized(img, 1, ag)
	normB := makeNormalized(img, 2, ab)
	for y := 0; y < rows; y++ {
		y0, y1 := clampRange(y-half, y+half, rows)
		for x := 0; x < cols; x++ {
			x0, x1 := clampRange(x-half, x+half, cols)
			m := float32(1.0)
			for wy := y0; wy <= y1; wy++ {
				row := wy * cols
				for wx := x0; wx <= x1; wx++ {
					if v := normR[row+wx]; v < m {
						m = v
					}
					if v := normG[row+wx]; v < m {
						m = v
					}
					if v := normB[row+wx]; v < m {
						m = v
					}
				}
			}
			tHat.SetFloatAt(y, x, float32(1.0-p.Omega*float64(m)))
		}
	}
	defer tHat.Close()

	if err := checkCancel(ctx); err != nil {
		return nil, err
	}

	luminance := pixelops.Luminance(img)
	defer luminance.Close()
	tRefined := pixelops.GuidedFilterMat(luminance, tHat, p.GuidedRadius, p.GuidedEps)
	defer tRefined.Close()

	if err := checkCancel(ctx); err != nil {
		return nil, err
	}

	out, err := rasterimage.New(rows, cols)
	if err != nil {
		return nil, err
	}
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			t := float64(tRefined.GetFloatAt(y, x))
			if t < p.T0 {
				t = p.T0
			}
			r, g, b, _ := img.GetPixel(y, x)
			jr := clamp01((float64(r)-ar)/t + ar)
			jg := clamp01((float64(g)-ag)/t + ag)
			jb := clamp01((float64(b)-ab)/t + ab)
			out.SetPixel(y, x, float32(jr), float32(jg), float32(jb))
		}
	}

	if p.PostContrastGain > 1.0 {
		linearStretchAround(out, p.PostContrastGain)
	}

	return out, nil
}

func clampRange(lo, hi, n int) (int, int) {
	if lo < 0 {
		lo = 0
	}
	if hi >= n {
		hi = n - 1
	}
	return lo, hi
}

func makeNormalized(img *rasterimage.Float, channel int, a float64) []float32 {
	rows, cols := img.Rows(), img.Cols()
	out := make([]float32, rows*cols)
	if a <= 0 {
		a = 1e-6
	}
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			v, _ := img.GetChannel(y, x, channel)
			out[y*cols+x] = float32(float64(v) / a)
		}
	}
	return out
}

// atmosphericLight averages the RGB of the top-0.1% brightest pixels
// in the dark channel (spec.md §4.3 step 2).
func atmosphericLight(img *rasterimage.Float, dark []float32, rows, cols int) (ar, ag, ab float64) {
	n := rows * cols
	type idxVal struct {
		idx int
		val float32
	}
	all := make([]idxVal, n)
	for i, v := range dark {
		all[i] = idxVal{i, v}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].val > all[j].val })

	topN := int(math.Ceil(float64(n) * 0.001))
	if topN < 1 {
		topN = 1
	}
	var sr, sg, sb float64
	for i := 0; i < topN; i++ {
		y := all[i].idx / cols
		x := all[i].idx % cols
		r, g, b, _ := img.GetPixel(y, x)
		sr += float64(r)
		sg += float64(g)
		sb += float64(b)
	}
	return sr / float64(topN), sg / float64(topN), sb / float64(topN)
}

// linearStretchAround applies a linear contrast stretch around 0.5
// with the given gain (spec.md §4.3 step 7).
func linearStretchAround(img *rasterimage.Float, gain float64) {
	rows, cols := img.Rows(), img.Cols()
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			r, g, b, _ := img.GetPixel(y, x)
			nr := clamp01((float64(r)-0.5)*gain + 0.5)
			ng := clamp01((float64(g)-0.5)*gain + 0.5)
			nb := clamp01((float64(b)-0.5)*gain + 0.5)
			img.SetPixel(y, x, float32(nr), float32(ng), float32(nb))
		}
	}
}

// AutoTune implements spec.md §4.3's auto-tune: dark-channel mean
// sets omega, Laplacian variance sets guided_eps, edge density sets
// window.
func (s *UDCP) AutoTune(ctx context.Context, img *rasterimage.Float, sig signature.SceneSignature) (any, error) {
	if err := checkCancel(ctx); err != nil {
		return nil, err
	}
	p := stageparams.DefaultUDCPParams()

	// Higher haziness (higher dark-channel mean) -> lower omega, down
	// to 0.7.
	p.Omega = 0.95 - 0.25*clamp01(sig.DarkChannelMean/0.5)

	// Noisier images (higher Laplacian variance) -> larger guided_eps,
	// up to 5e-3.
	noiseFactor := clamp01(sig.LaplacianVariance / 0.02)
	p.GuidedEps = 1e-4 + noiseFactor*(5e-3-1e-4)

	// More texture (higher edge strength) -> smaller window, down to 7.
	edgeFactor := clamp01(sig.SobelMagnitudeMean / 0.3)
	window := 15 - int(edgeFactor*8)
	if window < 7 {
		window = 7
	}
	p.Window = window

	p.Clamp()
	return p, nil
}
