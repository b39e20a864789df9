// Package onnx provides ONNX model import for the strata network
// representation.
//
// The package decodes the ONNX protobuf format with a hand-written wire
// reader (no protobuf runtime dependency) and converts feed-forward
// computation graphs into layered network definitions.
//
// # Supported Operators
//
//   - Dense: MatMul (+Add bias), Gemm
//   - Convolution: Conv (2D, zero padding, unit dilation)
//   - Pooling: MaxPool, AveragePool (lowered to indicator-kernel convolutions)
//   - Shape: Reshape, Flatten
//   - Activation: Relu, Sigmoid, LogSoftmax
//   - Other: Constant
//
// Example:
//
//	net, err := onnx.Load("classifier.onnx")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	x, _ := tensor.FromSlice(pixels, tensor.Shape{3, 6, 7})
//	y, err := net.Eval(x)
package onnx

import (
	"github.com/strata-ml/strata/internal/network"
	internalonnx "github.com/strata-ml/strata/internal/onnx"
)

// Load reads an ONNX file and converts its graph into a network
// definition.
//
// Example:
//
//	net, err := onnx.Load("model.onnx")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(net.OutputLayer())
func Load(path string) (*network.NetworkDefinition, error) {
	return internalonnx.Load(path)
}

// LoadFromBytes converts an in-memory ONNX model into a network
// definition.
//
// This is useful when the model is embedded in the binary or loaded from a
// network source.
func LoadFromBytes(data []byte) (*network.NetworkDefinition, error) {
	return internalonnx.LoadFromBytes(data)
}

// ModelInfo contains metadata about an ONNX model without converting it.
//
// Use [GetModelInfo] to quickly inspect a model file before loading.
type ModelInfo = internalonnx.ModelInfo

// GetModelInfo extracts metadata from an ONNX file.
//
// Example:
//
//	info, err := onnx.GetModelInfo("model.onnx")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Producer: %s\n", info.ProducerName)
//	fmt.Printf("Opset: %d\n", info.OpsetVersion)
func GetModelInfo(path string) (*ModelInfo, error) {
	return internalonnx.GetModelInfo(path)
}
