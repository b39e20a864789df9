package network

import (
	"fmt"
	"iter"
	"math"

	"github.com/strata-ml/strata/internal/tensor"
)

// Activation function names attached to layers. The empty string and
// "linear" both mean identity.
const (
	ActivationLinear     = "linear"
	ActivationReLU       = "relu"
	ActivationSigmoid    = "sigmoid"
	ActivationLogSoftmax = "logsoftmax"
)

// Layer is one stage of the linear transformation chain.
//
// The set of layer kinds is closed: InputLayer, DenseLayer and ConvLayer.
// The unexported transform method seals the interface; a new layer kind is
// a new variant in this package, not an external implementation.
type Layer interface {
	// InputSize is the layer's own index space, after any transformer.
	InputSize() tensor.Shape
	// OutputSize is the shape the layer produces.
	OutputSize() tensor.Shape
	// Activation is the activation function name, or "" for identity.
	Activation() string
	// InputIndexTransformer bridges this layer to a predecessor with a
	// reinterpreted shape, or nil when shapes line up directly.
	InputIndexTransformer() *IndexTransformer
	// InputIndexes enumerates every index in InputSize, row-major.
	InputIndexes() iter.Seq[tensor.Index]
	// OutputIndexes enumerates every index in OutputSize, row-major.
	OutputIndexes() iter.Seq[tensor.Index]
	// InputIndexesWithInputLayerIndexes pairs each input index with the
	// index the predecessor layer must be queried with.
	InputIndexesWithInputLayerIndexes() iter.Seq2[tensor.Index, tensor.Index]
	// Eval applies the transformer, validates shapes, runs the layer
	// transform and applies the activation.
	Eval(x *tensor.Array) (*tensor.Array, error)

	fmt.Stringer

	transform(x *tensor.Array) (*tensor.Array, error)
}

// layerBase carries the fields common to every layer variant.
type layerBase struct {
	inputSize   tensor.Shape
	outputSize  tensor.Shape
	activation  string
	transformer *IndexTransformer
}

func newLayerBase(inputSize, outputSize tensor.Shape, activation string, transformer *IndexTransformer) (layerBase, error) {
	if err := inputSize.Validate(); err != nil {
		return layerBase{}, fmt.Errorf("invalid input size: %w", err)
	}
	if err := outputSize.Validate(); err != nil {
		return layerBase{}, fmt.Errorf("invalid output size: %w", err)
	}
	if transformer != nil && !transformer.OutputSize().Equal(inputSize) {
		return layerBase{}, fmt.Errorf("transformer output size %v does not match layer input size %v",
			transformer.OutputSize(), inputSize)
	}
	return layerBase{
		inputSize:   inputSize.Clone(),
		outputSize:  outputSize.Clone(),
		activation:  activation,
		transformer: transformer,
	}, nil
}

func (b *layerBase) InputSize() tensor.Shape                  { return b.inputSize }
func (b *layerBase) OutputSize() tensor.Shape                 { return b.outputSize }
func (b *layerBase) Activation() string                       { return b.activation }
func (b *layerBase) InputIndexTransformer() *IndexTransformer { return b.transformer }

func (b *layerBase) InputIndexes() iter.Seq[tensor.Index] {
	return indexes(b.inputSize)
}

func (b *layerBase) OutputIndexes() iter.Seq[tensor.Index] {
	return indexes(b.outputSize)
}

func (b *layerBase) InputIndexesWithInputLayerIndexes() iter.Seq2[tensor.Index, tensor.Index] {
	return func(yield func(tensor.Index, tensor.Index) bool) {
		for index := range indexes(b.inputSize) {
			mapped := index
			if b.transformer != nil {
				mapped = b.transformer.Apply(index)
			}
			if !yield(index, mapped) {
				return
			}
		}
	}
}

// indexes enumerates every index of the shape in row-major order (outer
// dimension varies slowest). The sequence is finite and restartable.
func indexes(shape tensor.Shape) iter.Seq[tensor.Index] {
	return func(yield func(tensor.Index) bool) {
		n := shape.NumElements()
		for flat := 0; flat < n; flat++ {
			if !yield(shape.Unravel(flat)) {
				return
			}
		}
	}
}

// evalLayer is the shared evaluation path: reshape through the transformer,
// validate the input shape, dispatch to the variant transform, apply the
// activation.
func evalLayer(l Layer, x *tensor.Array) (*tensor.Array, error) {
	if t := l.InputIndexTransformer(); t != nil {
		reshaped, err := x.Reshape(t.OutputSize())
		if err != nil {
			return nil, fmt.Errorf("cannot reshape input for %s: %w", l, err)
		}
		x = reshaped
	}
	if !x.Shape().Equal(l.InputSize()) {
		return nil, fmt.Errorf("input shape %v does not match %s input size %v",
			x.Shape(), l, l.InputSize())
	}
	y, err := l.transform(x)
	if err != nil {
		return nil, err
	}
	return applyActivation(l.Activation(), y)
}

// applyActivation applies the named activation elementwise. The result is a
// fresh array; the input is never mutated.
func applyActivation(name string, x *tensor.Array) (*tensor.Array, error) {
	switch name {
	case "", ActivationLinear:
		return x, nil
	case ActivationReLU:
		y := x.Clone()
		data := y.Data()
		for i, v := range data {
			data[i] = math.Max(v, 0)
		}
		return y, nil
	case ActivationSigmoid:
		y := x.Clone()
		data := y.Data()
		for i, v := range data {
			data[i] = 1.0 / (1.0 + math.Exp(-v))
		}
		return y, nil
	case ActivationLogSoftmax:
		y := x.Clone()
		data := y.Data()
		max := math.Inf(-1)
		for _, v := range data {
			max = math.Max(max, v)
		}
		var sum float64
		for _, v := range data {
			sum += math.Exp(v - max)
		}
		logSum := max + math.Log(sum)
		for i, v := range data {
			data[i] = v - logSum
		}
		return y, nil
	default:
		return nil, fmt.Errorf("unknown activation function %s", name)
	}
}
