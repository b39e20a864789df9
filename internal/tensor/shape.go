package tensor

import "fmt"

// Shape represents the dimensions of a tensor.
type Shape []int

// Index is a multi-dimensional coordinate into a Shape.
type Index []int

// NumElements returns the total number of elements in the tensor.
func (s Shape) NumElements() int {
	if len(s) == 0 {
		return 1 // Scalar has 1 element
	}
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Validate checks if the shape is valid (all dimensions > 0).
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim <= 0 {
			return fmt.Errorf("invalid dimension at index %d: %d (must be > 0)", i, dim)
		}
	}
	return nil
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Compatible reports whether two shapes describe the same number of
// elements, i.e. one is a reshape of the other.
func (s Shape) Compatible(other Shape) bool {
	return s.NumElements() == other.NumElements()
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// ComputeStrides calculates row-major strides for the shape.
// Strides define memory layout: stride[i] = product of all dimensions after i.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	if len(s) == 0 {
		return strides
	}

	strides[len(s)-1] = 1
	for i := len(s) - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * s[i+1]
	}
	return strides
}

// Ravel converts a multi-dimensional index into a flat row-major offset.
// It panics when the index rank or any coordinate is out of range; a bad
// index is a programmer error, never silently wrapped.
func (s Shape) Ravel(index Index) int {
	if len(index) != len(s) {
		panic(fmt.Sprintf("index rank %d does not match shape %v", len(index), s))
	}
	flat := 0
	stride := 1
	for i := len(s) - 1; i >= 0; i-- {
		if index[i] < 0 || index[i] >= s[i] {
			panic(fmt.Sprintf("index %v out of range for shape %v", index, s))
		}
		flat += index[i] * stride
		stride *= s[i]
	}
	return flat
}

// Unravel converts a flat row-major offset into a multi-dimensional index.
// It panics when the offset is outside the shape's element range.
func (s Shape) Unravel(flat int) Index {
	if flat < 0 || flat >= s.NumElements() {
		panic(fmt.Sprintf("flat index %d out of range for shape %v", flat, s))
	}
	index := make(Index, len(s))
	for i := len(s) - 1; i >= 0; i-- {
		index[i] = flat % s[i]
		flat /= s[i]
	}
	return index
}
