package engine

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"sync"

	"uwrestore/internal/stageparams"
)

// StageConfig holds one stage's enabled/auto-tune flags and its typed
// parameters, boxed as `any` here (concretely one of the
// stageparams.*Params structs) since PipelineConfig is a homogeneous
// map keyed by StageID but the parameter shape differs per stage.
type StageConfig struct {
	Enabled    bool
	AutoTuneOn bool
	Params     any
}

// PipelineConfig is the mapping from StageId to (enabled, params,
// auto_tune_on) of spec.md §3. Every StageId is always present
// (invariant enforced by NewDefaultConfig and never relaxed). Reads
// and writes are internally synchronized: callers may write
// parameters from a UI thread while a worker thread runs Process,
// which per spec.md §5 takes a copy-on-read snapshot at the start of
// its run.
type PipelineConfig struct {
	mu     sync.RWMutex
	stages map[stageparams.StageID]StageConfig
}

// NewDefaultConfig returns a config with every stage present, using
// its default parameters, enabled, and with auto-tune off.
func NewDefaultConfig() *PipelineConfig {
	c := &PipelineConfig{stages: make(map[stageparams.StageID]StageConfig, len(stageparams.Order))}
	c.stages[stageparams.WhiteBalance] = StageConfig{Enabled: true, Params: stageparams.DefaultWhiteBalanceParams()}
	c.stages[stageparams.UDCP] = StageConfig{Enabled: true, Params: stageparams.DefaultUDCPParams()}
	c.stages[stageparams.BeerLambert] = StageConfig{Enabled: true, Params: stageparams.DefaultBeerLambertParams()}
	c.stages[stageparams.ColorRebalance] = StageConfig{Enabled: true, Params: stageparams.DefaultColorRebalanceParams()}
	c.stages[stageparams.CLAHE] = StageConfig{Enabled: true, Params: stageparams.DefaultCLAHEParams()}
	c.stages[stageparams.MultiscaleFusion] = StageConfig{Enabled: true, Params: stageparams.DefaultMultiscaleFusionParams()}
	return c
}

// Get returns a copy of the current StageConfig for id.
func (c *PipelineConfig) Get(id stageparams.StageID) (StageConfig, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sc, ok := c.stages[id]
	return sc, ok
}

// Set replaces the StageConfig for id wholesale (used by the
// auto-tune orchestrator and by config persistence load).
func (c *PipelineConfig) Set(id stageparams.StageID, sc StageConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stages[id] = sc
}

// SetEnabled implements engine.SetEnabled from the External
// Interfaces (spec.md §6).
func (c *PipelineConfig) SetEnabled(id stageparams.StageID, enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sc := c.stages[id]
	sc.Enabled = enabled
	c.stages[id] = sc
}

// SetAutoTuneOn sets the auto_tune_on flag for id and returns its
// previous value. It does not run a tune itself; the orchestrator's
// SetAutoTuneOn does that whenever the new value is true.
func (c *PipelineConfig) SetAutoTuneOn(id stageparams.StageID, on bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	sc := c.stages[id]
	prev := sc.AutoTuneOn
	sc.AutoTuneOn = on
	c.stages[id] = sc
	return prev
}

// SetByName implements spec.md §6's set_parameter(stage_id, name,
// value) operation: it looks up the named field on the target stage's
// parameter struct, writes v into it, re-clamps via that struct's own
// Clamp method (the same clamp every AutoTune result and config Load
// goes through), and stores the result. Unknown stage or parameter
// names return *stageparams.ErrUnknownParameter; a value of the wrong
// kind for the named field (e.g. a string where CLAHE's clip_limit
// expects a float) returns *InvalidParameterError, since that isn't a
// naming problem but a value that cannot be clamped.
func (c *PipelineConfig) SetByName(id stageparams.StageID, name string, v stageparams.Value) error {
	sc, ok := c.Get(id)
	if !ok {
		return &stageparams.ErrUnknownParameter{Stage: id, Name: name}
	}

	wrongKind := func(kind string) error {
		return &InvalidParameterError{Stage: string(id), Name: name, Cause: "expected a " + kind + " value"}
	}

	switch p := sc.Params.(type) {
	case stageparams.WhiteBalanceParams:
		switch name {
		case "method":
			if v.String == nil {
				return wrongKind("string")
			}
			p.Method = stageparams.WhiteBalanceMethod(*v.String)
		case "percentile":
			if v.Float == nil {
				return wrongKind("float")
			}
			p.Percentile = *v.Float
		case "max_gain":
			if v.Float == nil {
				return wrongKind("float")
			}
			p.MaxGain = *v.Float
		default:
			return &stageparams.ErrUnknownParameter{Stage: id, Name: name}
		}
		p.Clamp()
		sc.Params = p

	case stageparams.UDCPParams:
		switch name {
		case "omega":
			if v.Float == nil {
				return wrongKind("float")
			}
			p.Omega = *v.Float
		case "t0":
			if v.Float == nil {
				return wrongKind("float")
			}
			p.T0 = *v.Float
		case "window":
			if v.Int == nil {
				return wrongKind("int")
			}
			p.Window = *v.Int
		case "guided_radius":
			if v.Int == nil {
				return wrongKind("int")
			}
			p.GuidedRadius = *v.Int
		case "guided_eps":
			if v.Float == nil {
				return wrongKind("float")
			}
			p.GuidedEps = *v.Float
		case "post_contrast_gain":
			if v.Float == nil {
				return wrongKind("float")
			}
			p.PostContrastGain = *v.Float
		default:
			return &stageparams.ErrUnknownParameter{Stage: id, Name: name}
		}
		p.Clamp()
		sc.Params = p

	case stageparams.BeerLambertParams:
		switch name {
		case "depth_factor":
			if v.Float == nil {
				return wrongKind("float")
			}
			p.DepthFactor = *v.Float
		case "k_red":
			if v.Float == nil {
				return wrongKind("float")
			}
			p.KRed = *v.Float
		case "k_green":
			if v.Float == nil {
				return wrongKind("float")
			}
			p.KGreen = *v.Float
		case "k_blue":
			if v.Float == nil {
				return wrongKind("float")
			}
			p.KBlue = *v.Float
		case "enhancement":
			if v.Float == nil {
				return wrongKind("float")
			}
			p.Enhancement = *v.Float
		default:
			return &stageparams.ErrUnknownParameter{Stage: id, Name: name}
		}
		p.Clamp()
		sc.Params = p

	case stageparams.ColorRebalanceParams:
		switch name {
		case "saturation_limit":
			if v.Float == nil {
				return wrongKind("float")
			}
			p.SaturationLimit = *v.Float
		case "preserve_luminance":
			if v.Bool == nil {
				return wrongKind("bool")
			}
			p.PreserveLuminance = *v.Bool
		default:
			// Matrix is a 9-element array; Value has no matching kind
			// for it, so it is only settable wholesale via config.Set.
			return &stageparams.ErrUnknownParameter{Stage: id, Name: name}
		}
		p.Clamp()
		sc.Params = p

	case stageparams.CLAHEParams:
		switch name {
		case "clip_limit":
			if v.Float == nil {
				return wrongKind("float")
			}
			p.ClipLimit = *v.Float
		case "tile_grid":
			if v.Int == nil {
				return wrongKind("int")
			}
			p.TileGrid = *v.Int
		default:
			return &stageparams.ErrUnknownParameter{Stage: id, Name: name}
		}
		p.Clamp()
		sc.Params = p

	case stageparams.MultiscaleFusionParams:
		switch name {
		case "levels":
			if v.Int == nil {
				return wrongKind("int")
			}
			p.Levels = *v.Int
		case "base_sigma":
			if v.Float == nil {
				return wrongKind("float")
			}
			p.BaseSigma = *v.Float
		case "scale_factor":
			if v.Float == nil {
				return wrongKind("float")
			}
			p.ScaleFactor = *v.Float
		case "weight_contrast":
			if v.Float == nil {
				return wrongKind("float")
			}
			p.WeightContrast = *v.Float
		case "weight_saturation":
			if v.Float == nil {
				return wrongKind("float")
			}
			p.WeightSaturation = *v.Float
		case "weight_exposedness":
			if v.Float == nil {
				return wrongKind("float")
			}
			p.WeightExposedness = *v.Float
		case "sharpen_amount":
			if v.Float == nil {
				return wrongKind("float")
			}
			p.SharpenAmount = *v.Float
		default:
			return &stageparams.ErrUnknownParameter{Stage: id, Name: name}
		}
		p.Clamp()
		sc.Params = p

	default:
		return &stageparams.ErrUnknownParameter{Stage: id, Name: name}
	}

	c.Set(id, sc)
	return nil
}

// GlobalAutoTune toggles auto_tune_on on every stage.
func (c *PipelineConfig) GlobalAutoTune(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, sc := range c.stages {
		sc.AutoTuneOn = on
		c.stages[id] = sc
	}
}

// Snapshot returns an independent copy of the whole config, used by
// Process at the start of a run per spec.md §5's copy-on-read
// requirement (concurrent writes during the run must not be observed
// by it).
func (c *PipelineConfig) Snapshot() *PipelineConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cp := &PipelineConfig{stages: make(map[stageparams.StageID]StageConfig, len(c.stages))}
	for id, sc := range c.stages {
		cp.stages[id] = sc
	}
	return cp
}

// ConfigFingerprint is a compact deterministic hash of every enabled
// flag and parameter value (spec.md §3), used as a cache key by the
// Preview & Cache Manager.
type ConfigFingerprint string

// Fingerprint computes a ConfigFingerprint by hashing a fixed,
// deterministic byte encoding of every stage's enabled flag and
// parameters, in the fixed stage order (never map iteration order,
// which Go does not guarantee stable).
func (c *PipelineConfig) Fingerprint() ConfigFingerprint {
	c.mu.RLock()
	defer c.mu.RUnlock()

	h := sha256.New()
	var buf [8]byte
	writeFloat := func(f float64) {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(f))
		h.Write(buf[:])
	}
	writeInt := func(i int) {
		binary.LittleEndian.PutUint64(buf[:], uint64(int64(i)))
		h.Write(buf[:])
	}
	writeBool := func(b bool) {
		if b {
			h.Write([]byte{1})
		} else {
			h.Write([]byte{0})
		}
	}
	writeString := func(s string) { h.Write([]byte(s)) }

	for _, id := range stageparams.Order {
		sc := c.stages[id]
		writeString(string(id))
		writeBool(sc.Enabled)
		writeBool(sc.AutoTuneOn)
		switch p := sc.Params.(type) {
		case stageparams.WhiteBalanceParams:
			writeString(string(p.Method))
			writeFloat(p.Percentile)
			writeFloat(p.MaxGain)
		case stageparams.UDCPParams:
			writeFloat(p.Omega)
			writeFloat(p.T0)
			writeInt(p.Window)
			writeInt(p.GuidedRadius)
			writeFloat(p.GuidedEps)
			writeFloat(p.PostContrastGain)
		case stageparams.BeerLambertParams:
			writeFloat(p.DepthFactor)
			writeFloat(p.KRed)
			writeFloat(p.KGreen)
			writeFloat(p.KBlue)
			writeFloat(p.Enhancement)
		case stageparams.ColorRebalanceParams:
			for _, v := range p.Matrix {
				writeFloat(v)
			}
			writeFloat(p.SaturationLimit)
			writeBool(p.PreserveLuminance)
		case stageparams.CLAHEParams:
			writeFloat(p.ClipLimit)
			writeInt(p.TileGrid)
		case stageparams.MultiscaleFusionParams:
			writeInt(p.Levels)
			writeFloat(p.BaseSigma)
			writeFloat(p.ScaleFactor)
			writeFloat(p.WeightContrast)
			writeFloat(p.WeightSaturation)
			writeFloat(p.WeightExposedness)
			writeFloat(p.SharpenAmount)
		}
	}
	return ConfigFingerprint(hex.EncodeToString(h.Sum(nil)))
}
