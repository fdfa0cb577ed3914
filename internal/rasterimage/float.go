// Package rasterimage wraps the dense 3-channel float images the
// engine operates on. Values are nominally in [0, 1], channel order
// RGB, matching the Image type of the data model.
package rasterimage

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"gocv.io/x/gocv"
)

// Float is a reference-counted, mutex-guarded wrapper around a
// CV32FC3 gocv.Mat. It mirrors the teacher's safe.Mat but is
// specialized to the float-RGB image model used throughout this
// engine.
type Float struct {
	mat      gocv.Mat
	isValid  int32
	refCount int32
	mu       sync.RWMutex
	id       uint64
}

var nextFloatID uint64

// New allocates a zero-valued rows x cols x 3 float image.
func New(rows, cols int) (*Float, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("rasterimage: invalid dimensions %dx%d", cols, rows)
	}

	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), rows, cols, gocv.MatTypeCV32FC3)
	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("rasterimage: failed to allocate %dx%d", cols, rows)
	}

	f := &Float{
		mat:      mat,
		isValid:  1,
		refCount: 1,
		id:       atomic.AddUint64(&nextFloatID, 1),
	}
	runtime.SetFinalizer(f, (*Float).finalize)
	return f, nil
}

// FromMat takes ownership of a gocv.Mat that must already be CV32FC3.
// The caller must not use srcMat after this call.
func FromMat(srcMat gocv.Mat) (*Float, error) {
	if srcMat.Empty() {
		return nil, fmt.Errorf("rasterimage: source Mat is empty")
	}
	if srcMat.Type() != gocv.MatTypeCV32FC3 {
		return nil, fmt.Errorf("rasterimage: expected CV32FC3, got type %d", int(srcMat.Type()))
	}

	f := &Float{
		mat:      srcMat,
		isValid:  1,
		refCount: 1,
		id:       atomic.AddUint64(&nextFloatID, 1),
	}
	runtime.SetFinalizer(f, (*Float).finalize)
	return f, nil
}

func (f *Float) IsValid() bool {
	return atomic.LoadInt32(&f.isValid) == 1
}

func (f *Float) Rows() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if !f.IsValid() {
		return 0
	}
	return f.mat.Rows()
}

func (f *Float) Cols() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if !f.IsValid() {
		return 0
	}
	return f.mat.Cols()
}

// Mat returns the underlying gocv.Mat for operations not wrapped by
// this package. Callers must not Close() it directly.
func (f *Float) Mat() gocv.Mat {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.mat
}

func (f *Float) Clone() (*Float, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if !f.IsValid() || f.mat.Empty() {
		return nil, fmt.Errorf("rasterimage: cannot clone invalid image")
	}
	return FromMat(f.mat.Clone())
}

// GetPixel returns the (R, G, B) value at (row, col).
func (f *Float) GetPixel(row, col int) (r, g, b float32, err error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if !f.IsValid() {
		return 0, 0, 0, fmt.Errorf("rasterimage: image is invalid")
	}
	if row < 0 || row >= f.mat.Rows() || col < 0 || col >= f.mat.Cols() {
		return 0, 0, 0, fmt.Errorf("rasterimage: (%d,%d) out of bounds for %dx%d", col, row, f.mat.Cols(), f.mat.Rows())
	}
	v := f.mat.GetVecfAt(row, col)
	return v[0], v[1], v[2], nil
}

// SetPixel writes the (R, G, B) value at (row, col).
func (f *Float) SetPixel(row, col int, r, g, b float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.IsValid() {
		return fmt.Errorf("rasterimage: image is invalid")
	}
	if row < 0 || row >= f.mat.Rows() || col < 0 || col >= f.mat.Cols() {
		return fmt.Errorf("rasterimage: (%d,%d) out of bounds for %dx%d", col, row, f.mat.Cols(), f.mat.Rows())
	}
	f.mat.SetVecfAt(row, col, [3]float32{r, g, b})
	return nil
}

// GetChannel returns a single channel value at (row, col); channel 0=R, 1=G, 2=B.
func (f *Float) GetChannel(row, col, channel int) (float32, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if !f.IsValid() {
		return 0, fmt.Errorf("rasterimage: image is invalid")
	}
	if channel < 0 || channel > 2 {
		return 0, fmt.Errorf("rasterimage: channel %d out of bounds", channel)
	}
	v := f.mat.GetVecfAt(row, col)
	return v[channel], nil
}

func (f *Float) AddRef() {
	atomic.AddInt32(&f.refCount, 1)
}

func (f *Float) Release() {
	if atomic.AddInt32(&f.refCount, -1) <= 0 {
		f.Close()
	}
}

func (f *Float) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if atomic.CompareAndSwapInt32(&f.isValid, 1, 0) {
		if !f.mat.Empty() {
			f.mat.Close()
		}
		runtime.SetFinalizer(f, nil)
	}
}

func (f *Float) finalize() {
	if atomic.LoadInt32(&f.isValid) == 1 {
		f.Close()
	}
}

func (f *Float) ID() uint64 {
	return f.id
}
