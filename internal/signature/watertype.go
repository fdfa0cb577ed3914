package signature

// WaterTypeTag is the coarse scene classification of spec.md §3, §4.8.
type WaterTypeTag string

const (
	Lake              WaterTypeTag = "lake"
	OceanDeep         WaterTypeTag = "ocean_deep"
	Tropical          WaterTypeTag = "tropical"
	ClearHighContrast WaterTypeTag = "clear_high_contrast"
	Standard          WaterTypeTag = "standard"
)

// histSpreadWideThreshold and edgeStrengthThreshold are the
// "wide"/"strong" cutoffs classify uses; spec.md leaves the exact
// numbers to the implementation ("hist_spread is wide", "edge_strength
// > 0.1").
const (
	histSpreadWideThreshold  = 0.35
	edgeStrengthThreshold    = 0.1
)

// ClassifyWater applies the rules of spec.md §4.8 in order.
func ClassifyWater(sig SceneSignature) WaterTypeTag {
	total := sig.R.Mean + sig.G.Mean + sig.B.Mean
	if total <= 0 {
		return Standard
	}
	gRatio := sig.G.Mean / total
	bRatio := sig.B.Mean / total
	rRatio := sig.R.Mean / total

	switch {
	case gRatio > 0.4:
		return Lake
	case bRatio < 0.25:
		return OceanDeep
	case rRatio < 0.2:
		return Tropical
	case sig.SobelMagnitudeMean > edgeStrengthThreshold && sig.HistogramSpread > histSpreadWideThreshold:
		return ClearHighContrast
	default:
		return Standard
	}
}

// Rationale returns a short, fixed-catalog human-readable explanation
// of a water-type classification, supplemented from
// original_source/src/autotune_mapping.py's stage->water-type lookup
// table; used only for log output, never for behavior.
func (t WaterTypeTag) Rationale() string {
	switch t {
	case Lake:
		return "green channel dominance consistent with freshwater lake conditions"
	case OceanDeep:
		return "low blue-channel ratio consistent with deep ocean water absorbing red and green"
	case Tropical:
		return "low red-channel ratio consistent with clear tropical water"
	case ClearHighContrast:
		return "strong edges and wide histogram spread consistent with clear, high-contrast water"
	default:
		return "no dominant channel bias detected; treating as standard conditions"
	}
}
