// Package config implements the persisted-configuration format of
// spec.md §6: UTF-8 JSON with a top-level version and a per-stage
// enabled/auto_tune/params record. Grounded on
// internal/config/tuning.go's LoadTuningConfig (path validation, size
// cap, JSON-into-struct-then-validate shape) from the wider example
// pack, adapted here to the engine.PipelineConfig data model and to
// the "unknown keys ignored, missing keys inherit defaults" contract
// spec.md §6 requires (tuning.go's own pointer-field-per-key approach
// does not compose with stageparams' typed structs, so the field-level
// merge is done through per-stage map[string]any staging instead).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"uwrestore/internal/engine"
	"uwrestore/internal/logging"
	"uwrestore/internal/stageparams"
)

// CurrentVersion is the schema version this package writes and expects
// to read (spec.md §6).
const CurrentVersion = 1

const maxConfigFileSize = 1 * 1024 * 1024 // 1MB, matches the wider pack's config-file size cap.

type fileConfig struct {
	Version int                        `json:"version"`
	Stages  map[string]fileStageConfig `json:"stages"`
}

type fileStageConfig struct {
	Enabled  bool                   `json:"enabled"`
	AutoTune bool                   `json:"auto_tune"`
	Params   map[string]interface{} `json:"params"`
}

// Save writes config to path in spec.md §6's JSON schema, using
// write-to-temp-then-rename so a reader never observes a partial file
// (spec.md §6: "writes are atomic").
func Save(path string, cfg *engine.PipelineConfig) error {
	fc := fileConfig{Version: CurrentVersion, Stages: make(map[string]fileStageConfig, len(stageparams.Order))}
	for _, id := range stageparams.Order {
		sc, ok := cfg.Get(id)
		if !ok {
			continue
		}
		fc.Stages[string(id)] = fileStageConfig{
			Enabled:  sc.Enabled,
			AutoTune: sc.AutoTuneOn,
			Params:   paramsToMap(sc.Params),
		}
	}

	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".uwrestore-config-*.tmp")
	if err != nil {
		return fmt.Errorf("config: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("config: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("config: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("config: rename into place: %w", err)
	}
	return nil
}

// Load reads path and returns a PipelineConfig seeded with defaults
// for every stage, then overlaid with whatever the file specifies.
// Unknown keys are ignored; missing keys inherit defaults (spec.md
// §6). A version mismatch is logged as a warning, not an error.
func Load(path string, logger logging.Logger) (*engine.PipelineConfig, error) {
	if logger == nil {
		logger = logging.Nop{}
	}
	logger = logger.Component("config")

	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config: file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("config: stat: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config: file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}

	var fc fileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("config: parse JSON: %w", err)
	}

	if fc.Version != CurrentVersion {
		logger.Warning("configuration file version mismatch", map[string]any{
			"expected": CurrentVersion, "got": fc.Version,
		})
	}

	cfg := engine.NewDefaultConfig()
	for _, id := range stageparams.Order {
		fsc, present := fc.Stages[string(id)]
		if !present {
			continue
		}
		sc, _ := cfg.Get(id)
		sc.Enabled = fsc.Enabled
		sc.AutoTuneOn = fsc.AutoTune
		sc.Params = mergeParams(sc.Params, fsc.Params)
		cfg.Set(id, sc)
	}
	return cfg, nil
}

// paramsToMap flattens a stageparams.*Params struct into the
// wire-format map used by fileStageConfig.Params.
func paramsToMap(params any) map[string]interface{} {
	m := make(map[string]interface{})
	switch p := params.(type) {
	case stageparams.WhiteBalanceParams:
		m["method"] = string(p.Method)
		m["percentile"] = p.Percentile
		m["max_gain"] = p.MaxGain
	case stageparams.UDCPParams:
		m["omega"] = p.Omega
		m["t0"] = p.T0
		m["window"] = p.Window
		m["guided_radius"] = p.GuidedRadius
		m["guided_eps"] = p.GuidedEps
		m["post_contrast_gain"] = p.PostContrastGain
	case stageparams.BeerLambertParams:
		m["depth_factor"] = p.DepthFactor
		m["k_red"] = p.KRed
		m["k_green"] = p.KGreen
		m["k_blue"] = p.KBlue
		m["enhancement"] = p.Enhancement
	case stageparams.ColorRebalanceParams:
		matrix := make([]float64, len(p.Matrix))
		copy(matrix, p.Matrix[:])
		m["matrix"] = matrix
		m["saturation_limit"] = p.SaturationLimit
		m["preserve_luminance"] = p.PreserveLuminance
	case stageparams.CLAHEParams:
		m["clip_limit"] = p.ClipLimit
		m["tile_grid"] = p.TileGrid
	case stageparams.MultiscaleFusionParams:
		m["levels"] = p.Levels
		m["base_sigma"] = p.BaseSigma
		m["scale_factor"] = p.ScaleFactor
		m["weight_contrast"] = p.WeightContrast
		m["weight_saturation"] = p.WeightSaturation
		m["weight_exposedness"] = p.WeightExposedness
		m["sharpen_amount"] = p.SharpenAmount
	}
	return m
}

// mergeParams starts from defaultParams (already the type-correct
// default for this stage) and overwrites only the fields present in
// raw, ignoring keys it does not recognize and any value of the wrong
// JSON kind (spec.md §6: unknown keys ignored, missing keys inherit
// defaults; a value that cannot be applied is treated as absent rather
// than failing the whole load).
func mergeParams(defaultParams any, raw map[string]interface{}) any {
	getFloat := func(key string, dst *float64) {
		if v, ok := raw[key].(float64); ok {
			*dst = v
		}
	}
	getInt := func(key string, dst *int) {
		if v, ok := raw[key].(float64); ok {
			*dst = int(v)
		}
	}
	getBool := func(key string, dst *bool) {
		if v, ok := raw[key].(bool); ok {
			*dst = v
		}
	}
	getString := func(key string, dst *string) {
		if v, ok := raw[key].(string); ok {
			*dst = v
		}
	}

	switch p := defaultParams.(type) {
	case stageparams.WhiteBalanceParams:
		var method string = string(p.Method)
		getString("method", &method)
		p.Method = stageparams.WhiteBalanceMethod(method)
		getFloat("percentile", &p.Percentile)
		getFloat("max_gain", &p.MaxGain)
		p.Clamp()
		return p
	case stageparams.UDCPParams:
		getFloat("omega", &p.Omega)
		getFloat("t0", &p.T0)
		getInt("window", &p.Window)
		getInt("guided_radius", &p.GuidedRadius)
		getFloat("guided_eps", &p.GuidedEps)
		getFloat("post_contrast_gain", &p.PostContrastGain)
		p.Clamp()
		return p
	case stageparams.BeerLambertParams:
		getFloat("depth_factor", &p.DepthFactor)
		getFloat("k_red", &p.KRed)
		getFloat("k_green", &p.KGreen)
		getFloat("k_blue", &p.KBlue)
		getFloat("enhancement", &p.Enhancement)
		p.Clamp()
		return p
	case stageparams.ColorRebalanceParams:
		if arr, ok := raw["matrix"].([]interface{}); ok && len(arr) == 9 {
			for i, v := range arr {
				if f, ok := v.(float64); ok {
					p.Matrix[i] = f
				}
			}
		}
		getFloat("saturation_limit", &p.SaturationLimit)
		getBool("preserve_luminance", &p.PreserveLuminance)
		p.Clamp()
		return p
	case stageparams.CLAHEParams:
		getFloat("clip_limit", &p.ClipLimit)
		getInt("tile_grid", &p.TileGrid)
		p.Clamp()
		return p
	case stageparams.MultiscaleFusionParams:
		getInt("levels", &p.Levels)
		getFloat("base_sigma", &p.BaseSigma)
		getFloat("scale_factor", &p.ScaleFactor)
		getFloat("weight_contrast", &p.WeightContrast)
		getFloat("weight_saturation", &p.WeightSaturation)
		getFloat("weight_exposedness", &p.WeightExposedness)
		getFloat("sharpen_amount", &p.SharpenAmount)
		p.Clamp()
		return p
	default:
		return defaultParams
	}
}
