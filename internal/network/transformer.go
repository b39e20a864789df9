package network

import (
	"fmt"

	"github.com/strata-ml/strata/internal/tensor"
)

// IndexTransformer maps indexes between two shapes with the same number of
// elements. A layer whose nominal input shape is a reshape of its
// predecessor's output holds one; Apply converts a layer-local index into
// the index the predecessor must be queried with.
//
// The mapping is row-major flatten-then-unflatten: the index is flattened
// against OutputSize and unflattened against InputSize.
type IndexTransformer struct {
	inputSize  tensor.Shape
	outputSize tensor.Shape
}

// NewIndexTransformer creates a transformer from the predecessor's output
// shape (inputSize) to the consuming layer's input shape (outputSize).
// The two shapes must describe the same number of elements.
func NewIndexTransformer(inputSize, outputSize tensor.Shape) (*IndexTransformer, error) {
	if err := inputSize.Validate(); err != nil {
		return nil, fmt.Errorf("invalid input size: %w", err)
	}
	if err := outputSize.Validate(); err != nil {
		return nil, fmt.Errorf("invalid output size: %w", err)
	}
	if !inputSize.Compatible(outputSize) {
		return nil, fmt.Errorf("incompatible shapes %v (%d elements) and %v (%d elements)",
			inputSize, inputSize.NumElements(), outputSize, outputSize.NumElements())
	}
	return &IndexTransformer{
		inputSize:  inputSize.Clone(),
		outputSize: outputSize.Clone(),
	}, nil
}

// InputSize returns the shape indexes are mapped into.
func (t *IndexTransformer) InputSize() tensor.Shape {
	return t.inputSize
}

// OutputSize returns the shape indexes are mapped from.
func (t *IndexTransformer) OutputSize() tensor.Shape {
	return t.outputSize
}

// Apply maps an index valid in OutputSize to the equivalent index in
// InputSize. It panics on an out-of-range index; the mapping is total over
// the valid domain and must fail loudly rather than wrap.
func (t *IndexTransformer) Apply(index tensor.Index) tensor.Index {
	return t.inputSize.Unravel(t.outputSize.Ravel(index))
}

// String returns a compact description of the transformer.
func (t *IndexTransformer) String() string {
	return fmt.Sprintf("IndexTransformer(input_size=%v, output_size=%v)", t.inputSize, t.outputSize)
}
