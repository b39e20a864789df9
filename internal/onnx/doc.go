// Package onnx turns serialized ONNX models into layered network
// definitions.
//
// The package has two halves. The wire decoder is a hand-written protobuf
// reader for the subset of the ONNX format the parser consumes: the model
// envelope, the computation graph, its nodes, attributes, initializers and
// declared input/output shapes. The NetworkParser walks the decoded graph
// in topological order and reconstructs the linear layer chain, fusing
// MatMul+Add and Gemm into dense layers, lowering Conv and pooling nodes
// into convolutional layers, and bridging reshapes with index transformers
// instead of materialized copies.
//
// Only single-input, single-output linear chains are supported; branching
// graphs are rejected during parsing.
package onnx
