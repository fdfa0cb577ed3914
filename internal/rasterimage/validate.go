package rasterimage

import (
	"fmt"
	"math"
)

// Validate checks an image against the InvalidInput taxonomy: wrong
// rank, non-finite values, zero size, or unsupported channel count.
// It samples every pixel; callers on a hot path that already trust
// their source (e.g. internal pipeline stages re-checking their own
// output) may skip this and call it only at API boundaries.
func Validate(img *Float) error {
	if img == nil || !img.IsValid() {
		return fmt.Errorf("rasterimage: nil or invalid image")
	}
	rows, cols := img.Rows(), img.Cols()
	if rows == 0 || cols == 0 {
		return fmt.Errorf("rasterimage: zero-sized image %dx%d", cols, rows)
	}

	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			r, g, b, err := img.GetPixel(y, x)
			if err != nil {
				return err
			}
			if isNonFinite(r) || isNonFinite(g) || isNonFinite(b) {
				return fmt.Errorf("rasterimage: non-finite value at (%d,%d)", x, y)
			}
		}
	}
	return nil
}

func isNonFinite(v float32) bool {
	f := float64(v)
	return math.IsNaN(f) || math.IsInf(f, 0)
}

// Clamp01 clamps every channel of img to [0, 1] in place.
func Clamp01(img *Float) {
	rows, cols := img.Rows(), img.Cols()
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			r, g, b, _ := img.GetPixel(y, x)
			img.SetPixel(y, x, clamp(r), clamp(g), clamp(b))
		}
	}
}

func clamp(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
