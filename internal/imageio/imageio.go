// Package imageio bridges on-disk images and rasterimage.Float, the
// RGB float [0,1] representation every stage in this engine operates
// on (spec.md §6: "images crossing the API surface are always RGB
// float [0, 1] ... implementations may represent them differently
// internally but must convert at the boundary"). Grounded on
// resoltico-x/internal/io/loader.go's ImageLoader (format check,
// gocv.IMRead/IMWrite, empty-Mat error handling), adapted from its
// BGR uint8 in/out to this engine's RGB float32 in/out.
package imageio

import (
	"fmt"
	"path/filepath"
	"strings"

	"gocv.io/x/gocv"

	"uwrestore/internal/rasterimage"
)

var supportedExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".bmp": true, ".tiff": true, ".tif": true,
}

func isSupportedImageFormat(path string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(path))]
}

// Load reads an image file into a rasterimage.Float: BGR uint8 (gocv's
// native decode) converted to RGB float32 in [0, 1].
func Load(path string) (*rasterimage.Float, error) {
	if !isSupportedImageFormat(path) {
		return nil, fmt.Errorf("imageio: unsupported image format: %s", path)
	}

	bgr := gocv.IMRead(path, gocv.IMReadColor)
	defer bgr.Close()
	if bgr.Empty() {
		return nil, fmt.Errorf("imageio: failed to load image: %s", path)
	}

	rgb8 := gocv.NewMat()
	defer rgb8.Close()
	gocv.CvtColor(bgr, &rgb8, gocv.ColorBGRToRGB)

	rgbFloat := gocv.NewMat()
	rgb8.ConvertToWithParams(&rgbFloat, gocv.MatTypeCV32FC3, 1.0/255.0, 0)

	return rasterimage.FromMat(rgbFloat)
}

// Save writes a rasterimage.Float to path: RGB float32 in [0, 1]
// converted to BGR uint8 for gocv's encoder.
func Save(path string, img *rasterimage.Float) error {
	if !isSupportedImageFormat(path) {
		return fmt.Errorf("imageio: unsupported image format: %s", path)
	}
	if err := rasterimage.Validate(img); err != nil {
		return fmt.Errorf("imageio: cannot save invalid image: %w", err)
	}

	rgb8 := gocv.NewMat()
	defer rgb8.Close()
	img.Mat().ConvertToWithParams(&rgb8, gocv.MatTypeCV8UC3, 255.0, 0)

	bgr8 := gocv.NewMat()
	defer bgr8.Close()
	gocv.CvtColor(rgb8, &bgr8, gocv.ColorRGBToBGR)

	if ok := gocv.IMWrite(path, bgr8); !ok {
		return fmt.Errorf("imageio: failed to save image: %s", path)
	}
	return nil
}
