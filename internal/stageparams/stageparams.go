// Package stageparams holds the typed, bounds-checked parameter
// records for each pipeline stage (spec.md §3, §9 "dynamic parameter
// bag"). Each stage gets its own Go struct with a Clamp method
// instead of the teacher's string-keyed map[string]interface{}
// (internal/models/processing.go's AlgorithmParameters/ParameterRange);
// a single sum type, Value, exists only at the UI-binding boundary
// (SetByName), matching spec.md's directive that reflection is
// confined to the edge.
package stageparams

import "fmt"

// StageID is the closed set of pipeline stage identifiers (spec.md §3).
type StageID string

const (
	WhiteBalance     StageID = "white_balance"
	UDCP             StageID = "udcp"
	BeerLambert      StageID = "beer_lambert"
	ColorRebalance   StageID = "color_rebalance"
	CLAHE            StageID = "clahe"
	MultiscaleFusion StageID = "multiscale_fusion"
)

// Order is the fixed, non-negotiable pipeline order (spec.md §4.1).
var Order = []StageID{WhiteBalance, UDCP, BeerLambert, ColorRebalance, CLAHE, MultiscaleFusion}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// oddifyClamp clamps v into [lo, hi] and forces it to the nearest odd
// value not exceeding hi, used by udcp.window (spec.md §3: "window
// [5, 31] (odd)").
func oddifyClamp(v, lo, hi int) int {
	v = clampInt(v, lo, hi)
	if v%2 == 0 {
		if v+1 <= hi {
			v++
		} else {
			v--
		}
	}
	return v
}

// WhiteBalanceMethod is the closed set of white-balance algorithms
// (spec.md §4.2).
type WhiteBalanceMethod string

const (
	MethodGrayWorld      WhiteBalanceMethod = "gray_world"
	MethodWhitePatch     WhiteBalanceMethod = "white_patch"
	MethodShadesOfGray   WhiteBalanceMethod = "shades_of_gray"
	MethodGreyEdge       WhiteBalanceMethod = "grey_edge"
	MethodLakeGreenWater WhiteBalanceMethod = "lake_green_water"
)

// WhiteBalanceParams are the parameters of the white-balance stage.
type WhiteBalanceParams struct {
	Method     WhiteBalanceMethod
	Percentile float64 // [1, 99]
	MaxGain    float64 // [1.0, 5.0]
}

func DefaultWhiteBalanceParams() WhiteBalanceParams {
	return WhiteBalanceParams{Method: MethodGrayWorld, Percentile: 10, MaxGain: 2.0}
}

func (p *WhiteBalanceParams) Clamp() {
	p.Percentile = clampFloat(p.Percentile, 1, 99)
	p.MaxGain = clampFloat(p.MaxGain, 1.0, 5.0)
	switch p.Method {
	case MethodGrayWorld, MethodWhitePatch, MethodShadesOfGray, MethodGreyEdge, MethodLakeGreenWater:
	default:
		p.Method = MethodGrayWorld
	}
}

// UDCPParams are the parameters of the underwater dark channel prior
// stage (spec.md §4.3).
type UDCPParams struct {
	Omega            float64 // [0.5, 0.99]
	T0               float64 // [0.05, 0.3]
	Window           int     // [5, 31], odd
	GuidedRadius     int     // [10, 200]
	GuidedEps        float64 // [1e-4, 1e-2]
	PostContrastGain float64 // [1.0, 2.0]
}

func DefaultUDCPParams() UDCPParams {
	return UDCPParams{Omega: 0.95, T0: 0.1, Window: 15, GuidedRadius: 60, GuidedEps: 1e-3, PostContrastGain: 1.0}
}

func (p *UDCPParams) Clamp() {
	p.Omega = clampFloat(p.Omega, 0.5, 0.99)
	p.T0 = clampFloat(p.T0, 0.05, 0.3)
	p.Window = oddifyClamp(p.Window, 5, 31)
	p.GuidedRadius = clampInt(p.GuidedRadius, 10, 200)
	p.GuidedEps = clampFloat(p.GuidedEps, 1e-4, 1e-2)
	p.PostContrastGain = clampFloat(p.PostContrastGain, 1.0, 2.0)
}

// BeerLambertParams are the parameters of the Beer-Lambert stage
// (spec.md §4.4). Per the resolved Open Question, `enhancement` is
// the single stored scale field; `enhancement_adj` is a derived local,
// never persisted.
type BeerLambertParams struct {
	DepthFactor float64 // [0.01, 1.2]
	KRed        float64 // [0.05, 2.0]
	KGreen      float64 // [0.05, 1.5]
	KBlue       float64 // [0.05, 1.0]
	Enhancement float64 // [1.0, 3.0]
}

func DefaultBeerLambertParams() BeerLambertParams {
	return BeerLambertParams{DepthFactor: 0.3, KRed: 0.6, KGreen: 0.25, KBlue: 0.1, Enhancement: 1.0}
}

func (p *BeerLambertParams) Clamp() {
	p.DepthFactor = clampFloat(p.DepthFactor, 0.01, 1.2)
	p.KRed = clampFloat(p.KRed, 0.05, 2.0)
	p.KGreen = clampFloat(p.KGreen, 0.05, 1.5)
	p.KBlue = clampFloat(p.KBlue, 0.05, 1.0)
	p.Enhancement = clampFloat(p.Enhancement, 1.0, 3.0)
}

// ColorRebalanceParams are the parameters of the color rebalance stage
// (spec.md §4.5). Matrix is row-major 3x3, default identity.
type ColorRebalanceParams struct {
	Matrix            [9]float64
	SaturationLimit   float64 // [0.3, 1.0]
	PreserveLuminance bool
}

func DefaultColorRebalanceParams() ColorRebalanceParams {
	return ColorRebalanceParams{
		Matrix:            [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1},
		SaturationLimit:   0.85,
		PreserveLuminance: false,
	}
}

func (p *ColorRebalanceParams) Clamp() {
	p.SaturationLimit = clampFloat(p.SaturationLimit, 0.3, 1.0)
}

// CLAHEParams are the parameters of the CLAHE stage (spec.md §4.6).
type CLAHEParams struct {
	ClipLimit float64 // [1.0, 10.0]
	TileGrid  int     // [4, 16]
}

func DefaultCLAHEParams() CLAHEParams {
	return CLAHEParams{ClipLimit: 2.0, TileGrid: 8}
}

func (p *CLAHEParams) Clamp() {
	p.ClipLimit = clampFloat(p.ClipLimit, 1.0, 10.0)
	p.TileGrid = clampInt(p.TileGrid, 4, 16)
}

// MultiscaleFusionParams are the parameters of the multi-scale fusion
// stage (spec.md §4.7).
type MultiscaleFusionParams struct {
	Levels            int     // [2, 6]
	BaseSigma         float64 // [0.3, 2.0]
	ScaleFactor       float64 // [1.2, 3.0]
	WeightContrast    float64 // >= 0
	WeightSaturation  float64 // >= 0
	WeightExposedness float64 // >= 0
	SharpenAmount     float64 // [0, 1]
}

func DefaultMultiscaleFusionParams() MultiscaleFusionParams {
	return MultiscaleFusionParams{
		Levels: 3, BaseSigma: 1.0, ScaleFactor: 2.0,
		WeightContrast: 1, WeightSaturation: 1, WeightExposedness: 1,
		SharpenAmount: 0.3,
	}
}

func (p *MultiscaleFusionParams) Clamp() {
	p.Levels = clampInt(p.Levels, 2, 6)
	p.BaseSigma = clampFloat(p.BaseSigma, 0.3, 2.0)
	p.ScaleFactor = clampFloat(p.ScaleFactor, 1.2, 3.0)
	if p.WeightContrast < 0 {
		p.WeightContrast = 0
	}
	if p.WeightSaturation < 0 {
		p.WeightSaturation = 0
	}
	if p.WeightExposedness < 0 {
		p.WeightExposedness = 0
	}
	p.SharpenAmount = clampFloat(p.SharpenAmount, 0, 1)
}

// Value is the sum type used only at the UI-binding boundary
// (spec.md §9): a ParameterValue in {float, int, bool, string-enum}.
type Value struct {
	Float  *float64
	Int    *int
	Bool   *bool
	String *string
}

func FloatValue(v float64) Value { return Value{Float: &v} }
func IntValue(v int) Value       { return Value{Int: &v} }
func BoolValue(v bool) Value     { return Value{Bool: &v} }
func StringValue(v string) Value { return Value{String: &v} }

// ErrUnknownParameter is returned by SetByName when name is not a
// recognized field for the target stage struct.
type ErrUnknownParameter struct {
	Stage StageID
	Name  string
}

func (e *ErrUnknownParameter) Error() string {
	return fmt.Sprintf("stageparams: unknown parameter %q for stage %q", e.Name, e.Stage)
}
