// Package tensor provides the shape arithmetic and the small dense array
// type the layer representation is built on.
//
// Key components:
//   - Shape: tensor dimensions with row-major stride and flat-index helpers
//   - Index: a multi-dimensional coordinate into a Shape
//   - Array: a float64 row-major array used by layer evaluation
//
// Arrays exist to validate parsed networks numerically; they are not an
// inference engine and make no attempt at throughput.
package tensor
