package onnx

// Decoded ONNX protobuf structures. Only the fields the network parser
// consumes are modeled; unknown fields are skipped during decoding.

// ModelProto is the top-level ONNX model envelope.
type ModelProto struct {
	IRVersion       int64
	OpsetImport     []OperatorSetID
	ProducerName    string
	ProducerVersion string
	Graph           *GraphProto
}

// GraphProto is the computation graph: a topologically orderable node list
// plus declared inputs, outputs and weight initializers.
type GraphProto struct {
	Name         string
	Nodes        []NodeProto
	Inputs       []ValueInfoProto
	Outputs      []ValueInfoProto
	Initializers []TensorProto
}

// NodeProto is a single operation in the graph.
type NodeProto struct {
	Name       string
	OpType     string
	Inputs     []string
	Outputs    []string
	Attributes []AttributeProto
}

// TensorProto is a constant tensor (weights, biases, shape operands).
type TensorProto struct {
	Name       string
	DataType   int32
	Dims       []int64
	RawData    []byte
	FloatData  []float32
	DoubleData []float64
	Int64Data  []int64
}

// ValueInfoProto declares a graph input or output tensor.
type ValueInfoProto struct {
	Name string
	Type *TypeProto
}

// TypeProto wraps the tensor type of a declared value.
type TypeProto struct {
	TensorType *TensorTypeProto
}

// TensorTypeProto holds element type and shape of a declared tensor.
type TensorTypeProto struct {
	ElemType int32
	Shape    *TensorShapeProto
}

// TensorShapeProto is a list of declared dimensions.
type TensorShapeProto struct {
	Dims []DimensionProto
}

// DimensionProto is one declared dimension: a static value or a symbolic
// parameter such as a batch size.
type DimensionProto struct {
	DimValue int64
	DimParam string
}

// AttributeProto is a node attribute.
type AttributeProto struct {
	Name    string
	Type    int32
	F       float32
	I       int64
	S       []byte
	T       *TensorProto
	Floats  []float32
	Ints    []int64
	Strings [][]byte
}

// OperatorSetID identifies an opset version.
type OperatorSetID struct {
	Domain  string
	Version int64
}

// Tensor element types (TensorProto.DataType) the decoder understands.
const (
	TensorProtoFloat  = 1  // float32
	TensorProtoInt32  = 6  // int32
	TensorProtoInt64  = 7  // int64
	TensorProtoDouble = 11 // float64
)

// Attribute value types (AttributeProto.Type).
const (
	AttributeProtoFloat  = 1
	AttributeProtoInt    = 2
	AttributeProtoString = 3
	AttributeProtoTensor = 4
	AttributeProtoFloats = 6
	AttributeProtoInts   = 7
)
