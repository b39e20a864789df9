package network

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/strata-ml/strata/internal/tensor"
)

// DenseLayer is an affine layer: y = x·W + b.
//
// Weights follow the row=input-feature, column=output-feature convention
// regardless of how the source graph serialized them; the parser transposes
// transposed storage before construction.
type DenseLayer struct {
	layerBase
	weights *mat.Dense
	biases  []float64
}

// NewDenseLayer creates a dense layer. The weight matrix must be
// (prod(inputSize) x prod(outputSize)) and biases must have one entry per
// output element.
func NewDenseLayer(
	inputSize, outputSize tensor.Shape,
	weights *mat.Dense,
	biases []float64,
	activation string,
	transformer *IndexTransformer,
) (*DenseLayer, error) {
	base, err := newLayerBase(inputSize, outputSize, activation, transformer)
	if err != nil {
		return nil, err
	}

	rows, cols := weights.Dims()
	if rows != inputSize.NumElements() || cols != outputSize.NumElements() {
		return nil, fmt.Errorf("weight matrix is %dx%d, want %dx%d for sizes %v -> %v",
			rows, cols, inputSize.NumElements(), outputSize.NumElements(), inputSize, outputSize)
	}
	if len(biases) != outputSize.NumElements() {
		return nil, fmt.Errorf("bias length %d does not match output size %v (%d elements)",
			len(biases), outputSize, outputSize.NumElements())
	}

	return &DenseLayer{
		layerBase: base,
		weights:   weights,
		biases:    biases,
	}, nil
}

// Weights returns the (input x output) weight matrix.
func (l *DenseLayer) Weights() *mat.Dense {
	return l.weights
}

// Biases returns the bias vector, one entry per output element.
func (l *DenseLayer) Biases() []float64 {
	return l.biases
}

// Eval applies the transformer, validates shapes, computes x·W + b and
// applies the activation.
func (l *DenseLayer) Eval(x *tensor.Array) (*tensor.Array, error) {
	return evalLayer(l, x)
}

func (l *DenseLayer) transform(x *tensor.Array) (*tensor.Array, error) {
	in := l.inputSize.NumElements()
	out := l.outputSize.NumElements()

	xv := mat.NewVecDense(in, x.Data())
	y := mat.NewVecDense(out, nil)
	y.MulVec(l.weights.T(), xv)
	y.AddVec(y, mat.NewVecDense(out, l.biases))

	result, err := tensor.FromSlice(y.RawVector().Data, l.outputSize)
	if err != nil {
		// Sizes were validated at construction; reaching this means the
		// parser produced an inconsistent layer.
		return nil, fmt.Errorf("internal: dense result does not fit output size %v: %w", l.outputSize, err)
	}
	return result, nil
}

// String returns a compact description of the layer.
func (l *DenseLayer) String() string {
	return fmt.Sprintf("DenseLayer(input_size=%v, output_size=%v)", l.inputSize, l.outputSize)
}
