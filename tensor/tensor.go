// Package tensor provides the public API for the dense multi-dimensional
// arrays the network representation is built on.
//
// The package defines three core types:
//   - Shape: tensor dimensions with row-major flat addressing
//   - Index: a multi-dimensional coordinate into a shape
//   - Array: a float64 array with shape-aware element access
//
// Example:
//
//	x, err := tensor.FromSlice([]float64{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	v := x.At(tensor.Index{1, 2}) // 6
package tensor

import (
	"github.com/strata-ml/strata/internal/tensor"
)

// Shape represents the dimensions of a tensor.
// Example: Shape{3, 5, 5} represents a 3D tensor with dimensions 3×5×5.
type Shape = tensor.Shape

// Index is a multi-dimensional coordinate into a Shape.
type Index = tensor.Index

// Array is a dense float64 tensor with row-major storage.
type Array = tensor.Array

// NewArray creates a zero-filled array with the given shape.
func NewArray(shape Shape) (*Array, error) {
	return tensor.NewArray(shape)
}

// FromSlice wraps data in an array with the given shape. The slice is not
// copied; its length must match the shape's element count.
func FromSlice(data []float64, shape Shape) (*Array, error) {
	return tensor.FromSlice(data, shape)
}
