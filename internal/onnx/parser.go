package onnx

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/strata-ml/strata/internal/network"
	"github.com/strata-ml/strata/internal/tensor"
)

// Operator kinds the parser recognizes. Anything else is rejected with an
// unsupported-operation error.
const (
	opConstant    = "Constant"
	opMatMul      = "MatMul"
	opAdd         = "Add"
	opGemm        = "Gemm"
	opConv        = "Conv"
	opMaxPool     = "MaxPool"
	opAveragePool = "AveragePool"
	opReshape     = "Reshape"
	opFlatten     = "Flatten"
	opRelu        = "Relu"
	opSigmoid     = "Sigmoid"
	opLogSoftmax  = "LogSoftmax"
)

// NetworkParser reconstructs the linear layer chain of a decoded graph.
//
// The parser walks nodes in topological order with a small fusion state
// machine: an arithmetic node (MatMul, Gemm, Conv, pooling) opens a pending
// layer, an immediately following bias Add or activation node folds into
// it, and the pending layer is flushed into the network when the pattern
// breaks or the node list ends.
type NetworkParser struct{}

// NewNetworkParser creates a parser.
func NewNetworkParser() *NetworkParser {
	return &NetworkParser{}
}

// ParseNetwork converts a decoded graph into a network definition.
// Rejections are terminal: no partial network is ever returned.
func (p *NetworkParser) ParseNetwork(graph *GraphProto) (*network.NetworkDefinition, error) {
	if graph == nil {
		return nil, fmt.Errorf("graph is nil")
	}

	values := make(map[string]*tensor.Array, len(graph.Initializers))
	for i := range graph.Initializers {
		init := &graph.Initializers[i]
		v, err := tensorValues(init)
		if err != nil {
			return nil, err
		}
		values[init.Name] = v
	}

	// Nodes without inputs are only legal as constants; their values join
	// the initializer namespace.
	for i := range graph.Nodes {
		node := &graph.Nodes[i]
		if len(node.Inputs) > 0 {
			continue
		}
		if node.OpType != opConstant {
			return nil, fmt.Errorf("Nodes must have inputs or have op_type %q. Node %q has no inputs and op_type %q.",
				opConstant, node.Name, node.OpType)
		}
		value, err := constantValue(node)
		if err != nil {
			return nil, err
		}
		values[node.Outputs[0]] = value
	}

	inputSize, inputName, err := resolveInput(graph, values)
	if err != nil {
		return nil, err
	}
	inputLayer, err := network.NewInputLayer(inputSize)
	if err != nil {
		return nil, fmt.Errorf("graph %q: %w", graph.Name, err)
	}

	st := &chainState{
		net:        network.NewNetworkDefinition(inputLayer),
		values:     values,
		shape:      inputSize,
		tensorName: inputName,
	}

	for _, node := range topologicalSort(graph.Nodes) {
		if len(node.Inputs) == 0 {
			continue // constants, consumed above
		}
		if err := st.consume(&node); err != nil {
			return nil, err
		}
	}
	if err := st.flush(); err != nil {
		return nil, err
	}
	return st.net, nil
}

// resolveInput picks the graph's input tensor and derives the input layer
// shape. Symbolic and zero dimensions (the batch dimension) are dropped; a
// declared input with no positive dimension at all is rejected.
func resolveInput(graph *GraphProto, values map[string]*tensor.Array) (tensor.Shape, string, error) {
	for _, vi := range graph.Inputs {
		if _, ok := values[vi.Name]; ok {
			continue // weight declared as a graph input
		}
		if vi.Type == nil || vi.Type.TensorType == nil || vi.Type.TensorType.Shape == nil {
			continue
		}
		var size tensor.Shape
		for _, dim := range vi.Type.TensorType.Shape.Dims {
			if dim.DimValue > 0 {
				size = append(size, int(dim.DimValue))
			}
		}
		if len(size) == 0 {
			return nil, "", fmt.Errorf("All dimensions in graph %q input tensor have 0 value.", graph.Name)
		}
		return size, vi.Name, nil
	}
	return nil, "", fmt.Errorf("No valid input layer found in graph %q.", graph.Name)
}

type layerKind int

const (
	kindDense layerKind = iota
	kindConv
)

// pendingLayer buffers an arithmetic node until the fusion window closes.
type pendingLayer struct {
	kind        layerKind
	inputSize   tensor.Shape
	outputSize  tensor.Shape
	transformer *network.IndexTransformer
	activation  string
	outputName  string

	// dense
	weights *mat.Dense
	biases  []float64
	biasSet bool

	// conv
	strides [2]int
	kernel  *tensor.Array
}

// chainState is the parser's walk state: the network built so far, the
// running output shape, the tensor name currently carrying the chain value,
// the buffered pending layer, and a pending reshape target.
type chainState struct {
	net        *network.NetworkDefinition
	values     map[string]*tensor.Array
	shape      tensor.Shape
	tensorName string
	pending    *pendingLayer
	reshape    tensor.Shape
}

func (st *chainState) consume(node *NodeProto) error {
	switch node.OpType {
	case opMatMul:
		return st.consumeMatMul(node)
	case opAdd:
		return st.consumeAdd(node)
	case opGemm:
		return st.consumeGemm(node)
	case opConv:
		return st.consumeConv(node)
	case opMaxPool, opAveragePool:
		return st.consumePool(node)
	case opReshape:
		return st.consumeReshape(node)
	case opFlatten:
		return st.consumeFlatten(node)
	case opRelu:
		return st.consumeActivation(node, network.ActivationReLU)
	case opSigmoid:
		return st.consumeActivation(node, network.ActivationSigmoid)
	case opLogSoftmax:
		return st.consumeActivation(node, network.ActivationLogSoftmax)
	default:
		return fmt.Errorf("unsupported operation type %q in node %q", node.OpType, node.Name)
	}
}

// flush constructs the buffered layer and appends it to the chain.
func (st *chainState) flush() error {
	if st.pending == nil {
		return nil
	}
	p := st.pending

	var layer network.Layer
	var err error
	switch p.kind {
	case kindDense:
		layer, err = network.NewDenseLayer(p.inputSize, p.outputSize, p.weights, p.biases, p.activation, p.transformer)
	case kindConv:
		layer, err = network.NewConvLayer(p.inputSize, p.outputSize, p.strides, p.kernel, p.activation, p.transformer)
	}
	if err != nil {
		return fmt.Errorf("building layer for tensor %q: %w", p.outputName, err)
	}
	if err := st.net.AddLayer(layer); err != nil {
		return fmt.Errorf("appending layer for tensor %q: %w", p.outputName, err)
	}

	st.shape = p.outputSize
	st.tensorName = p.outputName
	st.pending = nil
	return nil
}

// requireChainInput checks that the node consumes the running chain tensor;
// anything else means a branching graph, which is out of scope.
func (st *chainState) requireChainInput(node *NodeProto) error {
	if node.Inputs[0] != st.tensorName {
		return fmt.Errorf("node %q: input %q is not the running network tensor %q; branching graphs are not supported",
			node.Name, node.Inputs[0], st.tensorName)
	}
	return nil
}

// bridge returns the transformer connecting the previous layer's output to
// a layer with the given nominal input shape, or nil when shapes already
// line up. Incompatible element counts are a parse error.
func (st *chainState) bridge(node *NodeProto, required tensor.Shape) (*network.IndexTransformer, error) {
	if st.shape.Equal(required) {
		return nil, nil
	}
	if !st.shape.Compatible(required) {
		return nil, fmt.Errorf("node %q: input size %v is incompatible with previous output size %v",
			node.Name, required, st.shape)
	}
	return network.NewIndexTransformer(st.shape, required)
}

func (st *chainState) lookup(node *NodeProto, name string) (*tensor.Array, error) {
	v, ok := st.values[name]
	if !ok {
		return nil, fmt.Errorf("node %q: tensor %q is not a known initializer or constant", node.Name, name)
	}
	return v, nil
}

func (st *chainState) consumeMatMul(node *NodeProto) error {
	if err := st.flush(); err != nil {
		return err
	}
	if len(node.Inputs) != 2 {
		return fmt.Errorf("node %q: MatMul expects 2 inputs, got %d", node.Name, len(node.Inputs))
	}
	if err := st.requireChainInput(node); err != nil {
		return err
	}
	wval, err := st.lookup(node, node.Inputs[1])
	if err != nil {
		return err
	}
	weights, err := denseMatrix(node, wval, false)
	if err != nil {
		return err
	}
	rows, cols := weights.Dims()

	inputSize := tensor.Shape{rows}
	transformer, err := st.bridge(node, inputSize)
	if err != nil {
		return err
	}
	st.reshape = nil

	st.pending = &pendingLayer{
		kind:        kindDense,
		inputSize:   inputSize,
		outputSize:  tensor.Shape{cols},
		transformer: transformer,
		activation:  network.ActivationLinear,
		outputName:  node.Outputs[0],
		weights:     weights,
		biases:      make([]float64, cols),
	}
	return nil
}

func (st *chainState) consumeAdd(node *NodeProto) error {
	p := st.pending
	if p == nil || p.kind != kindDense || p.biasSet {
		return fmt.Errorf("node %q: Add is only supported as the bias of a preceding MatMul", node.Name)
	}
	if len(node.Inputs) != 2 {
		return fmt.Errorf("node %q: Add expects 2 inputs, got %d", node.Name, len(node.Inputs))
	}

	var biasName string
	switch p.outputName {
	case node.Inputs[0]:
		biasName = node.Inputs[1]
	case node.Inputs[1]:
		biasName = node.Inputs[0]
	default:
		return fmt.Errorf("node %q: Add does not consume the pending dense output %q; branching graphs are not supported",
			node.Name, p.outputName)
	}

	bval, err := st.lookup(node, biasName)
	if err != nil {
		return err
	}
	if got, want := bval.Shape().NumElements(), len(p.biases); got != want {
		return fmt.Errorf("node %q: bias has %d values, want %d", node.Name, got, want)
	}
	copy(p.biases, bval.Data())
	p.biasSet = true
	p.outputName = node.Outputs[0]
	return nil
}

func (st *chainState) consumeGemm(node *NodeProto) error {
	if err := st.flush(); err != nil {
		return err
	}
	if len(node.Inputs) != 2 && len(node.Inputs) != 3 {
		return fmt.Errorf("node %q: Gemm expects 2 or 3 inputs, got %d", node.Name, len(node.Inputs))
	}
	if err := st.requireChainInput(node); err != nil {
		return err
	}
	if v := attrFloat(node, "alpha", 1); v != 1 {
		return fmt.Errorf("node %q: Gemm alpha %v is not supported", node.Name, v)
	}
	if v := attrFloat(node, "beta", 1); v != 1 {
		return fmt.Errorf("node %q: Gemm beta %v is not supported", node.Name, v)
	}
	if attrInt(node, "transA", 0) != 0 {
		return fmt.Errorf("node %q: Gemm transA is not supported", node.Name)
	}

	wval, err := st.lookup(node, node.Inputs[1])
	if err != nil {
		return err
	}
	// transB stores the weight matrix as (output x input); transpose so the
	// layer always sees row=input, column=output.
	weights, err := denseMatrix(node, wval, attrInt(node, "transB", 0) != 0)
	if err != nil {
		return err
	}
	rows, cols := weights.Dims()

	biases := make([]float64, cols)
	if len(node.Inputs) == 3 {
		bval, err := st.lookup(node, node.Inputs[2])
		if err != nil {
			return err
		}
		if bval.Shape().NumElements() != cols {
			return fmt.Errorf("node %q: bias has %d values, want %d", node.Name, bval.Shape().NumElements(), cols)
		}
		copy(biases, bval.Data())
	}

	inputSize := tensor.Shape{rows}
	transformer, err := st.bridge(node, inputSize)
	if err != nil {
		return err
	}
	st.reshape = nil

	st.pending = &pendingLayer{
		kind:        kindDense,
		inputSize:   inputSize,
		outputSize:  tensor.Shape{cols},
		transformer: transformer,
		activation:  network.ActivationLinear,
		outputName:  node.Outputs[0],
		weights:     weights,
		biases:      biases,
		biasSet:     true,
	}
	return nil
}

func (st *chainState) consumeActivation(node *NodeProto, activation string) error {
	p := st.pending
	if p == nil {
		return fmt.Errorf("node %q: activation %q does not follow a dense or convolutional node", node.Name, node.OpType)
	}
	if node.Inputs[0] != p.outputName {
		return fmt.Errorf("node %q: activation does not consume the pending layer output %q; branching graphs are not supported",
			node.Name, p.outputName)
	}
	p.activation = activation
	p.outputName = node.Outputs[0]
	return nil
}

func (st *chainState) consumeConv(node *NodeProto) error {
	if err := st.flush(); err != nil {
		return err
	}
	if len(node.Inputs) != 2 && len(node.Inputs) != 3 {
		return fmt.Errorf("node %q: Conv expects 2 or 3 inputs, got %d", node.Name, len(node.Inputs))
	}
	if err := st.requireChainInput(node); err != nil {
		return err
	}

	kernel, err := st.lookup(node, node.Inputs[1])
	if err != nil {
		return err
	}
	if len(kernel.Shape()) != 4 {
		return fmt.Errorf("node %q: convolution kernel must be 4-D, got %v", node.Name, kernel.Shape())
	}
	if len(node.Inputs) == 3 {
		bias, err := st.lookup(node, node.Inputs[2])
		if err != nil {
			return err
		}
		for _, v := range bias.Data() {
			if v != 0 {
				return fmt.Errorf("node %q: convolution biases are not supported", node.Name)
			}
		}
	}

	if err := requireZeroPads(node); err != nil {
		return err
	}
	for _, d := range attrInts(node, "dilations") {
		if d != 1 {
			return fmt.Errorf("node %q: dilations are not supported", node.Name)
		}
	}
	if g := attrInt(node, "group", 1); g != 1 {
		return fmt.Errorf("node %q: grouped convolution is not supported", node.Name)
	}

	strides, err := nodeStrides(node)
	if err != nil {
		return err
	}
	if ks := attrInts(node, "kernel_shape"); len(ks) == 2 {
		kshape := kernel.Shape()
		if int(ks[0]) != kshape[2] || int(ks[1]) != kshape[3] {
			return fmt.Errorf("node %q: kernel_shape attribute %v does not match weight tensor %v", node.Name, ks, kshape)
		}
	}

	inputShape, err := st.spatialInput(node)
	if err != nil {
		return err
	}
	kshape := kernel.Shape()
	if kshape[1] != inputShape[0] {
		return fmt.Errorf("node %q: kernel depth %d does not match input depth %d", node.Name, kshape[1], inputShape[0])
	}

	outputSize := tensor.Shape{
		kshape[0],
		outExtent(inputShape[1], kshape[2], strides[0], false),
		outExtent(inputShape[2], kshape[3], strides[1], false),
	}
	transformer, err := st.bridge(node, inputShape)
	if err != nil {
		return err
	}
	st.reshape = nil

	st.pending = &pendingLayer{
		kind:        kindConv,
		inputSize:   inputShape,
		outputSize:  outputSize,
		transformer: transformer,
		activation:  network.ActivationLinear,
		outputName:  node.Outputs[0],
		strides:     strides,
		kernel:      kernel,
	}
	return nil
}

// consumePool lowers a pooling node into a convolutional layer with a
// synthesized indicator kernel over the pooling window, so constraint
// generation enumerates pooling windows through the same kernel protocol
// as learned convolutions.
func (st *chainState) consumePool(node *NodeProto) error {
	if err := st.flush(); err != nil {
		return err
	}
	if err := st.requireChainInput(node); err != nil {
		return err
	}
	if err := requireZeroPads(node); err != nil {
		return err
	}

	kernelShape := attrInts(node, "kernel_shape")
	if len(kernelShape) != 2 {
		return fmt.Errorf("node %q: pooling kernel_shape must have 2 values, got %v", node.Name, kernelShape)
	}
	strides, err := nodeStrides(node)
	if err != nil {
		return err
	}
	ceilMode := attrInt(node, "ceil_mode", 0) != 0

	inputShape, err := st.spatialInput(node)
	if err != nil {
		return err
	}
	depth := inputShape[0]
	kRows, kCols := int(kernelShape[0]), int(kernelShape[1])

	kernel, err := indicatorKernel(depth, kRows, kCols)
	if err != nil {
		return err
	}
	outputSize := tensor.Shape{
		depth,
		outExtent(inputShape[1], kRows, strides[0], ceilMode),
		outExtent(inputShape[2], kCols, strides[1], ceilMode),
	}
	transformer, err := st.bridge(node, inputShape)
	if err != nil {
		return err
	}
	st.reshape = nil

	st.pending = &pendingLayer{
		kind:        kindConv,
		inputSize:   inputShape,
		outputSize:  outputSize,
		transformer: transformer,
		activation:  network.ActivationLinear,
		outputName:  node.Outputs[0],
		strides:     strides,
		kernel:      kernel,
	}
	return nil
}

func (st *chainState) consumeReshape(node *NodeProto) error {
	if err := st.flush(); err != nil {
		return err
	}
	if len(node.Inputs) != 2 {
		return fmt.Errorf("node %q: Reshape expects 2 inputs, got %d", node.Name, len(node.Inputs))
	}
	if err := st.requireChainInput(node); err != nil {
		return err
	}
	shapeVal, err := st.lookup(node, node.Inputs[1])
	if err != nil {
		return err
	}

	target, err := resolveReshape(node, shapeVal.Data(), st.shape.NumElements())
	if err != nil {
		return err
	}
	st.reshape = target
	st.tensorName = node.Outputs[0]
	return nil
}

func (st *chainState) consumeFlatten(node *NodeProto) error {
	if err := st.flush(); err != nil {
		return err
	}
	if err := st.requireChainInput(node); err != nil {
		return err
	}
	st.reshape = tensor.Shape{st.shape.NumElements()}
	st.tensorName = node.Outputs[0]
	return nil
}

// spatialInput returns the 3-D [depth, rows, cols] shape the node consumes:
// a pending reshape target when one exists, the running shape otherwise.
func (st *chainState) spatialInput(node *NodeProto) (tensor.Shape, error) {
	shape := st.shape
	if st.reshape != nil {
		shape = st.reshape
	}
	if len(shape) != 3 {
		return nil, fmt.Errorf("node %q: expected [depth, rows, cols] input, got %v", node.Name, shape)
	}
	return shape, nil
}

// resolveReshape turns a Reshape target operand into a concrete shape.
// One -1 entry is inferred from the element count; a leading inferred or
// literal batch dimension of 1 is dropped.
func resolveReshape(node *NodeProto, targetValues []float64, numElements int) (tensor.Shape, error) {
	target := make(tensor.Shape, 0, len(targetValues))
	infer := -1
	known := 1
	for i, v := range targetValues {
		dim := int(v)
		switch {
		case dim == -1:
			if infer >= 0 {
				return nil, fmt.Errorf("node %q: reshape target has more than one inferred dimension", node.Name)
			}
			infer = i
			target = append(target, -1)
		case dim > 0:
			known *= dim
			target = append(target, dim)
		default:
			return nil, fmt.Errorf("node %q: unsupported reshape target dimension %d", node.Name, dim)
		}
	}
	if infer >= 0 {
		if known == 0 || numElements%known != 0 {
			return nil, fmt.Errorf("node %q: cannot infer reshape dimension for %d elements", node.Name, numElements)
		}
		target[infer] = numElements / known
	}
	if len(target) > 1 && target[0] == 1 {
		target = target[1:] // batch dimension
	}
	if target.NumElements() != numElements {
		return nil, fmt.Errorf("node %q: reshape target %v does not hold %d elements", node.Name, target, numElements)
	}
	return target, nil
}

// indicatorKernel builds a [depth, depth, rows, cols] kernel that is 1
// wherever the input channel equals the output channel.
func indicatorKernel(depth, rows, cols int) (*tensor.Array, error) {
	kernel, err := tensor.NewArray(tensor.Shape{depth, depth, rows, cols})
	if err != nil {
		return nil, err
	}
	for d := 0; d < depth; d++ {
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				kernel.Set(tensor.Index{d, d, r, c}, 1)
			}
		}
	}
	return kernel, nil
}

// outExtent computes one spatial output extent of a valid convolution or
// pooling window.
func outExtent(in, kernel, stride int, ceilMode bool) int {
	extent := (in-kernel)/stride + 1
	if ceilMode && (in-kernel)%stride != 0 {
		extent++
	}
	return extent
}

// denseMatrix converts a 2-D weight array into a gonum matrix, transposing
// (output x input) storage into the row=input convention when requested.
func denseMatrix(node *NodeProto, a *tensor.Array, transpose bool) (*mat.Dense, error) {
	shape := a.Shape()
	if len(shape) != 2 {
		return nil, fmt.Errorf("node %q: weight tensor must be 2-D, got %v", node.Name, shape)
	}
	data := make([]float64, len(a.Data()))
	copy(data, a.Data())
	m := mat.NewDense(shape[0], shape[1], data)
	if !transpose {
		return m, nil
	}
	var t mat.Dense
	t.CloneFrom(m.T())
	return &t, nil
}

func requireZeroPads(node *NodeProto) error {
	for _, pad := range attrInts(node, "pads") {
		if pad != 0 {
			return fmt.Errorf("node %q: padding is not supported", node.Name)
		}
	}
	return nil
}

func nodeStrides(node *NodeProto) ([2]int, error) {
	ints := attrInts(node, "strides")
	switch len(ints) {
	case 0:
		return [2]int{1, 1}, nil
	case 2:
		if ints[0] <= 0 || ints[1] <= 0 {
			return [2]int{}, fmt.Errorf("node %q: invalid strides %v", node.Name, ints)
		}
		return [2]int{int(ints[0]), int(ints[1])}, nil
	default:
		return [2]int{}, fmt.Errorf("node %q: strides must have 2 values, got %v", node.Name, ints)
	}
}

func constantValue(node *NodeProto) (*tensor.Array, error) {
	for i := range node.Attributes {
		attr := &node.Attributes[i]
		if attr.Name == "value" && attr.T != nil {
			return tensorValues(attr.T)
		}
	}
	return nil, fmt.Errorf("node %q: Constant node has no tensor value", node.Name)
}

func nodeAttr(node *NodeProto, name string) *AttributeProto {
	for i := range node.Attributes {
		if node.Attributes[i].Name == name {
			return &node.Attributes[i]
		}
	}
	return nil
}

func attrInt(node *NodeProto, name string, def int64) int64 {
	if attr := nodeAttr(node, name); attr != nil {
		return attr.I
	}
	return def
}

func attrFloat(node *NodeProto, name string, def float32) float32 {
	if attr := nodeAttr(node, name); attr != nil {
		return attr.F
	}
	return def
}

func attrInts(node *NodeProto, name string) []int64 {
	if attr := nodeAttr(node, name); attr != nil {
		return attr.Ints
	}
	return nil
}
