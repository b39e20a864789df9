package tensor

import "fmt"

// Array is a dense float64 array in row-major order.
//
// Reshape returns a view sharing the backing slice, so a parsed network can
// feed a layer whose nominal input shape differs from its predecessor's
// output without copying data.
type Array struct {
	data   []float64
	shape  Shape
	stride []int
}

// NewArray creates a zero-filled array with the given shape.
func NewArray(shape Shape) (*Array, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	return &Array{
		data:   make([]float64, shape.NumElements()),
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
	}, nil
}

// FromSlice wraps data in an array of the given shape.
// The slice is used directly, not copied.
func FromSlice(data []float64, shape Shape) (*Array, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	if len(data) != shape.NumElements() {
		return nil, fmt.Errorf("data length %d does not match shape %v (%d elements)",
			len(data), shape, shape.NumElements())
	}
	return &Array{
		data:   data,
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
	}, nil
}

// Shape returns the array's shape.
func (a *Array) Shape() Shape {
	return a.shape
}

// Data returns the backing slice in row-major order.
func (a *Array) Data() []float64 {
	return a.data
}

// At returns the element at the given multi-dimensional index.
func (a *Array) At(index Index) float64 {
	return a.data[a.shape.Ravel(index)]
}

// Set stores v at the given multi-dimensional index.
func (a *Array) Set(index Index, v float64) {
	a.data[a.shape.Ravel(index)] = v
}

// Reshape returns a view of the array with a new shape.
// The new shape must describe the same number of elements.
func (a *Array) Reshape(shape Shape) (*Array, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	if !a.shape.Compatible(shape) {
		return nil, fmt.Errorf("cannot reshape %v (%d elements) to %v (%d elements)",
			a.shape, a.shape.NumElements(), shape, shape.NumElements())
	}
	return &Array{
		data:   a.data,
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
	}, nil
}

// Clone returns a deep copy of the array.
func (a *Array) Clone() *Array {
	data := make([]float64, len(a.data))
	copy(data, a.data)
	return &Array{
		data:   data,
		shape:  a.shape.Clone(),
		stride: a.shape.ComputeStrides(),
	}
}

// String returns a compact description of the array.
func (a *Array) String() string {
	return fmt.Sprintf("Array(shape=%v)", a.shape)
}
