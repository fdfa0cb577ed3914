// Color-space conversion, adapted from
// internal/opencv/conversion/color_space.go's ConvertBGRToHSV/
// ConvertBGRToLab pair. The teacher's Mats are BGR (OpenCV's native
// order); this engine's Image model is RGB throughout (spec.md §3),
// so every conversion here passes gocv's RGB-specific conversion code
// (gocv.ColorRGBToHSV and friends) instead of a BGR one; no channel
// swap is done.
package pixelops

import (
	"gocv.io/x/gocv"

	"uwrestore/internal/rasterimage"
)

// RGBToHSV converts an RGB Float image (values in [0,1]) to HSV,
// returned as a 3-channel CV32FC3 Mat with H in [0,360), S and V in
// [0,1]. Caller owns the returned Mat.
func RGBToHSV(img *rasterimage.Float) gocv.Mat {
	dst := gocv.NewMat()
	gocv.CvtColor(img.Mat(), &dst, gocv.ColorRGBToHSV)
	return dst
}

// HSVToRGB is the inverse of RGBToHSV, returning a new rasterimage.Float.
func HSVToRGB(hsv gocv.Mat) (*rasterimage.Float, error) {
	dst := gocv.NewMat()
	gocv.CvtColor(hsv, &dst, gocv.ColorHSVToRGB)
	return rasterimage.FromMat(dst)
}

// RGBToLab converts an RGB Float image to CIE LAB, returned as a
// CV32FC3 Mat with L in [0,100], a/b roughly in [-127,127].
func RGBToLab(img *rasterimage.Float) gocv.Mat {
	dst := gocv.NewMat()
	gocv.CvtColor(img.Mat(), &dst, gocv.ColorRGBToLab)
	return dst
}

// LabToRGB is the inverse of RGBToLab.
func LabToRGB(lab gocv.Mat) (*rasterimage.Float, error) {
	dst := gocv.NewMat()
	gocv.CvtColor(lab, &dst, gocv.ColorLabToRGB)
	return rasterimage.FromMat(dst)
}

// Luminance returns a single-channel CV32FC1 Mat holding the LAB L
// channel normalized to [0,1], used as guidance for the guided filter
// and as the halo-check luminance in the quality analyzer.
func Luminance(img *rasterimage.Float) gocv.Mat {
	lab := RGBToLab(img)
	defer lab.Close()
	planes := gocv.Split(lab)
	defer func() {
		for i := 1; i < len(planes); i++ {
			planes[i].Close()
		}
	}()
	l := planes[0]
	norm := gocv.NewMat()
	l.ConvertToWithParams(&norm, gocv.MatTypeCV32FC1, 1.0/100.0, 0)
	l.Close()
	return norm
}
