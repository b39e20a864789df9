// Package network provides the public API for the strictly layered
// network representation.
//
// A NetworkDefinition is an ordered chain of layers: an InputLayer followed
// by dense and convolutional layers, each optionally preceded by an
// IndexTransformer that re-maps element coordinates when the shape the
// layer expects differs from the shape its predecessor produces.
//
// Example:
//
//	input, _ := network.NewInputLayer(tensor.Shape{2})
//	net := network.NewNetworkDefinition(input)
//
//	weights := mat.NewDense(2, 3, []float64{1, 0, 2, 0, 1, -1})
//	dense, _ := network.NewDenseLayer(
//	    tensor.Shape{2}, tensor.Shape{3},
//	    weights, []float64{0.5, 0, -4},
//	    network.ActivationReLU, nil,
//	)
//	_ = net.AddLayer(dense)
//
//	y, err := net.Eval(x)
package network

import (
	"gonum.org/v1/gonum/mat"

	"github.com/strata-ml/strata/internal/network"
	"github.com/strata-ml/strata/internal/tensor"
)

// Activation function names understood by layers.
const (
	ActivationLinear     = network.ActivationLinear
	ActivationReLU       = network.ActivationReLU
	ActivationSigmoid    = network.ActivationSigmoid
	ActivationLogSoftmax = network.ActivationLogSoftmax
)

// Layer is one step of the network: input, dense or convolutional.
type Layer = network.Layer

// InputLayer is the first layer of every network.
type InputLayer = network.InputLayer

// DenseLayer is a fully connected layer.
type DenseLayer = network.DenseLayer

// ConvLayer is a 2-D convolutional layer. Pooling operations are
// represented as convolutions over indicator kernels.
type ConvLayer = network.ConvLayer

// IndexTransformer re-maps layer input coordinates into predecessor
// output coordinates.
type IndexTransformer = network.IndexTransformer

// NetworkDefinition is an ordered, shape-checked chain of layers.
type NetworkDefinition = network.NetworkDefinition

// NewNetworkDefinition creates a network holding only the input layer.
func NewNetworkDefinition(input *InputLayer) *NetworkDefinition {
	return network.NewNetworkDefinition(input)
}

// NewInputLayer creates the entry layer for the given input shape.
func NewInputLayer(size tensor.Shape) (*InputLayer, error) {
	return network.NewInputLayer(size)
}

// NewDenseLayer creates a fully connected layer. The weight matrix must be
// (prod(inputSize) x prod(outputSize)).
func NewDenseLayer(
	inputSize, outputSize tensor.Shape,
	weights *mat.Dense,
	biases []float64,
	activation string,
	transformer *IndexTransformer,
) (*DenseLayer, error) {
	return network.NewDenseLayer(inputSize, outputSize, weights, biases, activation, transformer)
}

// NewConvLayer creates a 2-D convolutional layer with a
// [out_channels, depth, rows, cols] kernel.
func NewConvLayer(
	inputSize, outputSize tensor.Shape,
	strides [2]int,
	kernel *tensor.Array,
	activation string,
	transformer *IndexTransformer,
) (*ConvLayer, error) {
	return network.NewConvLayer(inputSize, outputSize, strides, kernel, activation, transformer)
}

// NewIndexTransformer creates a transformer between two shapes holding the
// same number of elements.
func NewIndexTransformer(inputSize, outputSize tensor.Shape) (*IndexTransformer, error) {
	return network.NewIndexTransformer(inputSize, outputSize)
}
