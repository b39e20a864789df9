package onnx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-ml/strata/internal/network"
	"github.com/strata-ml/strata/internal/tensor"
)

func floatTensor(name string, dims []int64, values ...float32) TensorProto {
	return TensorProto{Name: name, DataType: TensorProtoFloat, Dims: dims, FloatData: values}
}

func int64Tensor(name string, dims []int64, values ...int64) TensorProto {
	return TensorProto{Name: name, DataType: TensorProtoInt64, Dims: dims, Int64Data: values}
}

// inputInfo declares a graph input; a dim of 0 stands in for a symbolic
// batch dimension.
func inputInfo(name string, dims ...int64) ValueInfoProto {
	shape := &TensorShapeProto{}
	for _, dim := range dims {
		d := DimensionProto{DimValue: dim}
		if dim == 0 {
			d.DimParam = "batch"
		}
		shape.Dims = append(shape.Dims, d)
	}
	return ValueInfoProto{
		Name: name,
		Type: &TypeProto{TensorType: &TensorTypeProto{ElemType: TensorProtoFloat, Shape: shape}},
	}
}

func parseGraph(t *testing.T, graph *GraphProto) *network.NetworkDefinition {
	t.Helper()
	net, err := NewNetworkParser().ParseNetwork(graph)
	require.NoError(t, err)
	return net
}

func evalNet(t *testing.T, net *network.NetworkDefinition, data []float64, shape tensor.Shape) []float64 {
	t.Helper()
	x, err := tensor.FromSlice(data, shape)
	require.NoError(t, err)
	y, err := net.Eval(x)
	require.NoError(t, err)
	return y.Data()
}

// denseGraph computes relu(x*W + b) with x of width 2 and 3 outputs.
func denseGraph() *GraphProto {
	return &GraphProto{
		Name: "dense",
		Nodes: []NodeProto{
			{Name: "matmul0", OpType: opMatMul, Inputs: []string{"x", "W"}, Outputs: []string{"m"}},
			{Name: "add0", OpType: opAdd, Inputs: []string{"m", "b"}, Outputs: []string{"a"}},
			{Name: "relu0", OpType: opRelu, Inputs: []string{"a"}, Outputs: []string{"y"}},
		},
		Inputs:  []ValueInfoProto{inputInfo("x", 0, 2)},
		Outputs: []ValueInfoProto{inputInfo("y", 0, 3)},
		Initializers: []TensorProto{
			floatTensor("W", []int64{2, 3}, 1, 0, 2, 0, 1, -1),
			floatTensor("b", []int64{3}, 0.5, 0, -4),
		},
	}
}

func TestParseNetworkDense(t *testing.T) {
	net := parseGraph(t, denseGraph())

	layers := net.Layers()
	require.Len(t, layers, 2)
	assert.IsType(t, &network.InputLayer{}, layers[0])
	assert.Equal(t, tensor.Shape{2}, layers[0].OutputSize())

	dense, ok := layers[1].(*network.DenseLayer)
	require.True(t, ok)
	assert.Equal(t, tensor.Shape{2}, dense.InputSize())
	assert.Equal(t, tensor.Shape{3}, dense.OutputSize())
	assert.Equal(t, network.ActivationReLU, dense.Activation())
	assert.Equal(t, 1.0, dense.Weights().At(0, 0))
	assert.Equal(t, -1.0, dense.Weights().At(1, 2))
	assert.Equal(t, []float64{0.5, 0, -4}, dense.Biases())

	y := evalNet(t, net, []float64{2, 3}, tensor.Shape{2})
	assert.Equal(t, []float64{2.5, 3, 0}, y)
}

func TestParseNetworkDenseChain(t *testing.T) {
	graph := &GraphProto{
		Name: "dense_131",
		Nodes: []NodeProto{
			{Name: "matmul0", OpType: opMatMul, Inputs: []string{"x", "W1"}, Outputs: []string{"m1"}},
			{Name: "add0", OpType: opAdd, Inputs: []string{"m1", "b1"}, Outputs: []string{"h"}},
			{Name: "sigmoid0", OpType: opSigmoid, Inputs: []string{"h"}, Outputs: []string{"s"}},
			{Name: "matmul1", OpType: opMatMul, Inputs: []string{"s", "W2"}, Outputs: []string{"m2"}},
			{Name: "add1", OpType: opAdd, Inputs: []string{"m2", "b2"}, Outputs: []string{"y"}},
		},
		Inputs:  []ValueInfoProto{inputInfo("x", 0, 1)},
		Outputs: []ValueInfoProto{inputInfo("y", 0, 1)},
		Initializers: []TensorProto{
			floatTensor("W1", []int64{1, 3}, 1, 2, 3),
			floatTensor("b1", []int64{3}, 0, 0, 0),
			floatTensor("W2", []int64{3, 1}, 1, 1, 1),
			floatTensor("b2", []int64{1}, -1),
		},
	}
	net := parseGraph(t, graph)

	layers := net.Layers()
	require.Len(t, layers, 3)
	hidden := layers[1].(*network.DenseLayer)
	out := layers[2].(*network.DenseLayer)
	assert.Equal(t, tensor.Shape{3}, hidden.OutputSize())
	assert.Equal(t, network.ActivationSigmoid, hidden.Activation())
	assert.Equal(t, tensor.Shape{1}, out.OutputSize())
	assert.Equal(t, network.ActivationLinear, out.Activation())
}

func TestParseNetworkGemm(t *testing.T) {
	// Weights stored (output x input), transB restores the usual layout.
	graph := &GraphProto{
		Name: "gemm",
		Nodes: []NodeProto{
			{
				Name: "gemm0", OpType: opGemm,
				Inputs: []string{"x", "Wt", "b"}, Outputs: []string{"g"},
				Attributes: []AttributeProto{{Name: "transB", Type: AttributeProtoInt, I: 1}},
			},
			{Name: "relu0", OpType: opRelu, Inputs: []string{"g"}, Outputs: []string{"y"}},
		},
		Inputs:  []ValueInfoProto{inputInfo("x", 0, 2)},
		Outputs: []ValueInfoProto{inputInfo("y", 0, 3)},
		Initializers: []TensorProto{
			floatTensor("Wt", []int64{3, 2}, 1, 0, 0, 1, 2, -1),
			floatTensor("b", []int64{3}, 0.5, 0, -4),
		},
	}
	net := parseGraph(t, graph)

	gemmOut := evalNet(t, net, []float64{2, 3}, tensor.Shape{2})
	matmulOut := evalNet(t, parseGraph(t, denseGraph()), []float64{2, 3}, tensor.Shape{2})
	require.Len(t, gemmOut, len(matmulOut))
	for i := range gemmOut {
		assert.InDelta(t, matmulOut[i], gemmOut[i], 1e-5)
	}
}

func TestParseNetworkGemmWithoutBias(t *testing.T) {
	graph := &GraphProto{
		Name: "gemm_nobias",
		Nodes: []NodeProto{
			{Name: "gemm0", OpType: opGemm, Inputs: []string{"x", "W"}, Outputs: []string{"y"}},
		},
		Inputs:       []ValueInfoProto{inputInfo("x", 0, 2)},
		Outputs:      []ValueInfoProto{inputInfo("y", 0, 3)},
		Initializers: []TensorProto{floatTensor("W", []int64{2, 3}, 1, 0, 2, 0, 1, -1)},
	}
	net := parseGraph(t, graph)

	dense := net.Layers()[1].(*network.DenseLayer)
	assert.Equal(t, []float64{0, 0, 0}, dense.Biases())
}

func TestParseNetworkConvPoolChain(t *testing.T) {
	kernel := make([]float32, 3*3*2*3)
	for i := range kernel {
		kernel[i] = 0.1
	}
	graph := &GraphProto{
		Name: "conv_pool",
		Nodes: []NodeProto{
			{
				Name: "conv0", OpType: opConv,
				Inputs: []string{"x", "W"}, Outputs: []string{"c"},
				Attributes: []AttributeProto{
					{Name: "strides", Type: AttributeProtoInts, Ints: []int64{1, 1}},
					{Name: "kernel_shape", Type: AttributeProtoInts, Ints: []int64{2, 3}},
				},
			},
			{Name: "relu0", OpType: opRelu, Inputs: []string{"c"}, Outputs: []string{"r"}},
			{
				Name: "pool0", OpType: opMaxPool,
				Inputs: []string{"r"}, Outputs: []string{"p0"},
				Attributes: []AttributeProto{
					{Name: "kernel_shape", Type: AttributeProtoInts, Ints: []int64{1, 2}},
					{Name: "strides", Type: AttributeProtoInts, Ints: []int64{1, 2}},
				},
			},
			{
				Name: "pool1", OpType: opMaxPool,
				Inputs: []string{"p0"}, Outputs: []string{"y"},
				Attributes: []AttributeProto{
					{Name: "kernel_shape", Type: AttributeProtoInts, Ints: []int64{4, 2}},
					{Name: "strides", Type: AttributeProtoInts, Ints: []int64{3, 1}},
					{Name: "ceil_mode", Type: AttributeProtoInt, I: 1},
				},
			},
		},
		Inputs:       []ValueInfoProto{inputInfo("x", 0, 3, 6, 7)},
		Outputs:      []ValueInfoProto{inputInfo("y", 0, 3, 2, 1)},
		Initializers: []TensorProto{floatTensor("W", []int64{3, 3, 2, 3}, kernel...)},
	}
	net := parseGraph(t, graph)

	layers := net.Layers()
	require.Len(t, layers, 4)
	assert.Equal(t, tensor.Shape{3, 6, 7}, layers[0].OutputSize())

	conv := layers[1].(*network.ConvLayer)
	assert.Equal(t, tensor.Shape{3, 5, 5}, conv.OutputSize())
	assert.Equal(t, network.ActivationReLU, conv.Activation())
	assert.Equal(t, 3, conv.KernelDepth())

	pool0 := layers[2].(*network.ConvLayer)
	assert.Equal(t, tensor.Shape{3, 5, 2}, pool0.OutputSize())
	assert.Equal(t, [2]int{1, 2}, pool0.Strides())
	assert.Equal(t, 3, pool0.KernelDepth())

	pool1 := layers[3].(*network.ConvLayer)
	assert.Equal(t, tensor.Shape{3, 2, 1}, pool1.OutputSize())
	assert.Equal(t, 3, pool1.KernelDepth())
	assert.Equal(t, tensor.Shape{4, 2}, pool1.KernelShape())
}

func TestParseNetworkFlattenBridgesConvToDense(t *testing.T) {
	graph := &GraphProto{
		Name: "conv_flatten_dense",
		Nodes: []NodeProto{
			{
				Name: "conv0", OpType: opConv,
				Inputs: []string{"x", "K"}, Outputs: []string{"c"},
				Attributes: []AttributeProto{
					{Name: "strides", Type: AttributeProtoInts, Ints: []int64{1, 1}},
				},
			},
			{Name: "flatten0", OpType: opFlatten, Inputs: []string{"c"}, Outputs: []string{"f"}},
			{Name: "matmul0", OpType: opMatMul, Inputs: []string{"f", "W"}, Outputs: []string{"y"}},
		},
		Inputs:  []ValueInfoProto{inputInfo("x", 0, 1, 2, 3)},
		Outputs: []ValueInfoProto{inputInfo("y", 0, 2)},
		Initializers: []TensorProto{
			floatTensor("K", []int64{1, 1, 1, 2}, 1, 1),
			floatTensor("W", []int64{4, 2}, 1, 0, 1, 0, 0, 1, 0, 1),
		},
	}
	net := parseGraph(t, graph)

	layers := net.Layers()
	require.Len(t, layers, 3)
	conv := layers[1].(*network.ConvLayer)
	assert.Equal(t, tensor.Shape{1, 2, 2}, conv.OutputSize())

	dense := layers[2].(*network.DenseLayer)
	require.NotNil(t, dense.InputIndexTransformer())
	assert.Equal(t, tensor.Shape{1, 2, 2}, dense.InputIndexTransformer().InputSize())
	assert.Equal(t, tensor.Shape{4}, dense.InputIndexTransformer().OutputSize())

	// x = [1 2 3; 4 5 6]: conv windows sum adjacent pairs, the dense layer
	// then sums rows.
	y := evalNet(t, net, []float64{1, 2, 3, 4, 5, 6}, tensor.Shape{1, 2, 3})
	assert.Equal(t, []float64{3 + 5, 9 + 11}, y)
}

func TestParseNetworkReshapeBeforeConv(t *testing.T) {
	graph := &GraphProto{
		Name: "reshape_conv",
		Nodes: []NodeProto{
			{Name: "reshape0", OpType: opReshape, Inputs: []string{"x", "shape"}, Outputs: []string{"r"}},
			{
				Name: "conv0", OpType: opConv,
				Inputs: []string{"r", "K"}, Outputs: []string{"y"},
				Attributes: []AttributeProto{
					{Name: "strides", Type: AttributeProtoInts, Ints: []int64{1, 1}},
				},
			},
		},
		Inputs:  []ValueInfoProto{inputInfo("x", 0, 6)},
		Outputs: []ValueInfoProto{inputInfo("y", 0, 1, 2, 2)},
		Initializers: []TensorProto{
			int64Tensor("shape", []int64{4}, -1, 1, 2, 3),
			floatTensor("K", []int64{1, 1, 1, 2}, 1, 1),
		},
	}
	net := parseGraph(t, graph)

	conv := net.Layers()[1].(*network.ConvLayer)
	assert.Equal(t, tensor.Shape{1, 2, 3}, conv.InputSize())
	require.NotNil(t, conv.InputIndexTransformer())
	assert.Equal(t, tensor.Shape{6}, conv.InputIndexTransformer().InputSize())
}

func TestParseNetworkConstantWeights(t *testing.T) {
	graph := &GraphProto{
		Name: "const_weights",
		Nodes: []NodeProto{
			{
				Name: "const0", OpType: opConstant, Outputs: []string{"W"},
				Attributes: []AttributeProto{{
					Name: "value",
					Type: AttributeProtoTensor,
					T:    &TensorProto{DataType: TensorProtoFloat, Dims: []int64{1, 2}, FloatData: []float32{3, 7}},
				}},
			},
			{Name: "matmul0", OpType: opMatMul, Inputs: []string{"x", "W"}, Outputs: []string{"y"}},
		},
		Inputs:  []ValueInfoProto{inputInfo("x", 0, 1)},
		Outputs: []ValueInfoProto{inputInfo("y", 0, 2)},
	}
	net := parseGraph(t, graph)

	y := evalNet(t, net, []float64{2}, tensor.Shape{1})
	assert.Equal(t, []float64{6, 14}, y)
}

func TestParseNetworkSkipsInitializerInputs(t *testing.T) {
	graph := denseGraph()
	// Some exporters declare weights as graph inputs too.
	graph.Inputs = append([]ValueInfoProto{inputInfo("W", 2, 3)}, graph.Inputs...)
	net := parseGraph(t, graph)
	assert.Equal(t, tensor.Shape{2}, net.InputLayer().InputSize())
}

func TestParseNetworkInputAllZeroDims(t *testing.T) {
	graph := denseGraph()
	graph.Name = "zero_dims"
	graph.Inputs = []ValueInfoProto{inputInfo("x", 0, 0)}

	_, err := NewNetworkParser().ParseNetwork(graph)
	assert.EqualError(t, err, `All dimensions in graph "zero_dims" input tensor have 0 value.`)
}

func TestParseNetworkNoValidInput(t *testing.T) {
	graph := denseGraph()
	graph.Name = "no_input"
	graph.Inputs = nil

	_, err := NewNetworkParser().ParseNetwork(graph)
	assert.EqualError(t, err, `No valid input layer found in graph "no_input".`)
}

func TestParseNetworkNodeWithoutInputs(t *testing.T) {
	graph := denseGraph()
	graph.Nodes = append(graph.Nodes, NodeProto{Name: "bad", OpType: "Identity", Outputs: []string{"z"}})

	_, err := NewNetworkParser().ParseNetwork(graph)
	assert.EqualError(t, err, `Nodes must have inputs or have op_type "Constant". Node "bad" has no inputs and op_type "Identity".`)
}

func TestParseNetworkUnsupportedOp(t *testing.T) {
	graph := denseGraph()
	graph.Nodes = append(graph.Nodes, NodeProto{Name: "tanh0", OpType: "Tanh", Inputs: []string{"y"}, Outputs: []string{"z"}})

	_, err := NewNetworkParser().ParseNetwork(graph)
	assert.ErrorContains(t, err, `unsupported operation type "Tanh"`)
}

func TestParseNetworkConvBiasRejected(t *testing.T) {
	graph := &GraphProto{
		Name: "conv_bias",
		Nodes: []NodeProto{
			{Name: "conv0", OpType: opConv, Inputs: []string{"x", "K", "B"}, Outputs: []string{"y"}},
		},
		Inputs:  []ValueInfoProto{inputInfo("x", 0, 1, 2, 3)},
		Outputs: []ValueInfoProto{inputInfo("y", 0, 1, 2, 2)},
		Initializers: []TensorProto{
			floatTensor("K", []int64{1, 1, 1, 2}, 1, 1),
			floatTensor("B", []int64{1}, 0.25),
		},
	}
	_, err := NewNetworkParser().ParseNetwork(graph)
	assert.ErrorContains(t, err, "convolution biases are not supported")
}

func TestParseNetworkActivationWithoutLayer(t *testing.T) {
	graph := &GraphProto{
		Name: "dangling_relu",
		Nodes: []NodeProto{
			{Name: "relu0", OpType: opRelu, Inputs: []string{"x"}, Outputs: []string{"y"}},
		},
		Inputs:  []ValueInfoProto{inputInfo("x", 0, 2)},
		Outputs: []ValueInfoProto{inputInfo("y", 0, 2)},
	}
	_, err := NewNetworkParser().ParseNetwork(graph)
	assert.ErrorContains(t, err, "does not follow a dense or convolutional node")
}

func TestParseNetworkUnknownWeightTensor(t *testing.T) {
	graph := denseGraph()
	graph.Initializers = graph.Initializers[1:] // drop W

	_, err := NewNetworkParser().ParseNetwork(graph)
	assert.ErrorContains(t, err, `tensor "W" is not a known initializer or constant`)
}

func TestParseNetworkNilGraph(t *testing.T) {
	_, err := NewNetworkParser().ParseNetwork(nil)
	assert.Error(t, err)
}
