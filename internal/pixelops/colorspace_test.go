package pixelops

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uwrestore/internal/rasterimage"
)

func TestRGBToHSVPureRedHue(t *testing.T) {
	t.Parallel()
	img := solidImage(t, 1, 1, 1, 0, 0)
	defer img.Close()

	hsv := RGBToHSV(img)
	defer hsv.Close()

	v := hsv.GetVecfAt(0, 0)
	assert.InDelta(t, 0, v[0], 1.0)
	assert.InDelta(t, 1, v[1], 1e-3)
	assert.InDelta(t, 1, v[2], 1e-3)
}

func TestHSVToRGBRoundTrip(t *testing.T) {
	t.Parallel()
	img := solidImage(t, 2, 2, 0.2, 0.6, 0.4)
	defer img.Close()

	hsv := RGBToHSV(img)
	defer hsv.Close()

	back, err := HSVToRGB(hsv)
	require.NoError(t, err)
	defer back.Close()

	r, g, b, err := back.GetPixel(0, 0)
	require.NoError(t, err)
	assert.InDelta(t, 0.2, r, 1e-2)
	assert.InDelta(t, 0.6, g, 1e-2)
	assert.InDelta(t, 0.4, b, 1e-2)
}

func TestLuminanceOfWhiteIsOne(t *testing.T) {
	t.Parallel()
	white := solidImage(t, 2, 2, 1, 1, 1)
	defer white.Close()

	lum := Luminance(white)
	defer lum.Close()
	assert.InDelta(t, 1.0, lum.GetFloatAt(0, 0), 1e-2)
}

func TestLuminanceOfBlackIsZero(t *testing.T) {
	t.Parallel()
	black := solidImage(t, 2, 2, 0, 0, 0)
	defer black.Close()

	lum := Luminance(black)
	defer lum.Close()
	assert.InDelta(t, 0.0, lum.GetFloatAt(0, 0), 1e-2)
}

func TestRGBToLabAndBack(t *testing.T) {
	t.Parallel()
	img := solidImage(t, 2, 2, 0.5, 0.3, 0.1)
	defer img.Close()

	lab := RGBToLab(img)
	defer lab.Close()

	back, err := LabToRGB(lab)
	require.NoError(t, err)
	defer back.Close()

	r, g, b, err := back.GetPixel(0, 0)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, r, 1e-2)
	assert.InDelta(t, 0.3, g, 1e-2)
	assert.InDelta(t, 0.1, b, 1e-2)
}
