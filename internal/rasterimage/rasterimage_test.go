package rasterimage

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAndPixelRoundTrip(t *testing.T) {
	t.Parallel()

	img, err := New(4, 5)
	require.NoError(t, err)
	defer img.Close()

	assert.True(t, img.IsValid())
	assert.Equal(t, 4, img.Rows())
	assert.Equal(t, 5, img.Cols())

	require.NoError(t, img.SetPixel(1, 2, 0.25, 0.5, 0.75))
	r, g, b, err := img.GetPixel(1, 2)
	require.NoError(t, err)
	assert.Equal(t, float32(0.25), r)
	assert.Equal(t, float32(0.5), g)
	assert.Equal(t, float32(0.75), b)
}

func TestNewRejectsBadDimensions(t *testing.T) {
	t.Parallel()

	_, err := New(0, 5)
	assert.Error(t, err)
	_, err = New(5, -1)
	assert.Error(t, err)
}

func TestGetPixelOutOfBounds(t *testing.T) {
	t.Parallel()

	img, err := New(2, 2)
	require.NoError(t, err)
	defer img.Close()

	_, _, _, err = img.GetPixel(2, 0)
	assert.Error(t, err)
	_, _, _, err = img.GetPixel(0, -1)
	assert.Error(t, err)
}

func TestCloneIsIndependent(t *testing.T) {
	t.Parallel()

	img, err := New(3, 3)
	require.NoError(t, err)
	defer img.Close()
	require.NoError(t, img.SetPixel(0, 0, 1, 1, 1))

	clone, err := img.Clone()
	require.NoError(t, err)
	defer clone.Close()

	require.NoError(t, clone.SetPixel(0, 0, 0, 0, 0))

	r, _, _, _ := img.GetPixel(0, 0)
	cr, _, _, _ := clone.GetPixel(0, 0)
	assert.Equal(t, float32(1), r, "mutating the clone must not affect the source")
	assert.Equal(t, float32(0), cr)
}

func TestCloseInvalidatesImage(t *testing.T) {
	t.Parallel()

	img, err := New(2, 2)
	require.NoError(t, err)
	img.Close()

	assert.False(t, img.IsValid())
	assert.Equal(t, 0, img.Rows())
	_, _, _, err = img.GetPixel(0, 0)
	assert.Error(t, err)
}

func TestValidateRejectsNilAndZeroSize(t *testing.T) {
	t.Parallel()

	assert.Error(t, Validate(nil))

	closed, err := New(2, 2)
	require.NoError(t, err)
	closed.Close()
	assert.Error(t, Validate(closed))
}

func TestValidateRejectsNonFinite(t *testing.T) {
	t.Parallel()

	img, err := New(2, 2)
	require.NoError(t, err)
	defer img.Close()

	require.NoError(t, img.SetPixel(0, 0, float32(math.NaN()), 0, 0))
	assert.Error(t, Validate(img))
}

func TestValidateAcceptsWellFormedImage(t *testing.T) {
	t.Parallel()

	img, err := New(3, 3)
	require.NoError(t, err)
	defer img.Close()
	require.NoError(t, img.SetPixel(1, 1, 0.5, 0.5, 0.5))

	assert.NoError(t, Validate(img))
}

func TestClamp01(t *testing.T) {
	t.Parallel()

	img, err := New(1, 2)
	require.NoError(t, err)
	defer img.Close()

	require.NoError(t, img.SetPixel(0, 0, -0.5, 1.5, 0.5))
	require.NoError(t, img.SetPixel(0, 1, 2.0, -1.0, 0.0))

	Clamp01(img)

	r, g, b, _ := img.GetPixel(0, 0)
	assert.Equal(t, float32(0), r)
	assert.Equal(t, float32(1), g)
	assert.Equal(t, float32(0.5), b)

	r, g, b, _ = img.GetPixel(0, 1)
	assert.Equal(t, float32(1), r)
	assert.Equal(t, float32(0), g)
	assert.Equal(t, float32(0), b)
}
