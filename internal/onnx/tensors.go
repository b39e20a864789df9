package onnx

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/strata-ml/strata/internal/tensor"
)

// tensorValues converts an initializer into a float64 array. Weights are
// stored as float32 or float64, shape operands as int64; everything is
// widened to float64 for the layer representation.
func tensorValues(proto *TensorProto) (*tensor.Array, error) {
	shape := make(tensor.Shape, len(proto.Dims))
	for i, dim := range proto.Dims {
		shape[i] = int(dim)
	}

	data, err := elementValues(proto)
	if err != nil {
		return nil, fmt.Errorf("initializer %q: %w", proto.Name, err)
	}
	if len(data) != shape.NumElements() {
		return nil, fmt.Errorf("initializer %q has %d values for shape %v (%d elements)",
			proto.Name, len(data), shape, shape.NumElements())
	}
	return tensor.FromSlice(data, shape)
}

func elementValues(proto *TensorProto) ([]float64, error) {
	switch proto.DataType {
	case TensorProtoFloat:
		if len(proto.RawData) > 0 {
			data := make([]float64, 0, len(proto.RawData)/4)
			for i := 0; i+4 <= len(proto.RawData); i += 4 {
				bits := binary.LittleEndian.Uint32(proto.RawData[i:])
				data = append(data, float64(math.Float32frombits(bits)))
			}
			return data, nil
		}
		data := make([]float64, len(proto.FloatData))
		for i, v := range proto.FloatData {
			data[i] = float64(v)
		}
		return data, nil
	case TensorProtoDouble:
		if len(proto.RawData) > 0 {
			data := make([]float64, 0, len(proto.RawData)/8)
			for i := 0; i+8 <= len(proto.RawData); i += 8 {
				data = append(data, math.Float64frombits(binary.LittleEndian.Uint64(proto.RawData[i:])))
			}
			return data, nil
		}
		data := make([]float64, len(proto.DoubleData))
		copy(data, proto.DoubleData)
		return data, nil
	case TensorProtoInt64:
		if len(proto.RawData) > 0 {
			data := make([]float64, 0, len(proto.RawData)/8)
			for i := 0; i+8 <= len(proto.RawData); i += 8 {
				data = append(data, float64(int64(binary.LittleEndian.Uint64(proto.RawData[i:])))) //nolint:gosec // two's complement reinterpretation
			}
			return data, nil
		}
		data := make([]float64, len(proto.Int64Data))
		for i, v := range proto.Int64Data {
			data[i] = float64(v)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported tensor data type %d", proto.DataType)
	}
}

// topologicalSort orders nodes so every node appears after the producers
// of its inputs. Graph inputs and initializers have no producer and impose
// no ordering.
func topologicalSort(nodes []NodeProto) []NodeProto {
	producer := make(map[string]int)
	for i := range nodes {
		for _, output := range nodes[i].Outputs {
			producer[output] = i
		}
	}

	visited := make([]bool, len(nodes))
	sorted := make([]NodeProto, 0, len(nodes))

	var visit func(i int)
	visit = func(i int) {
		if visited[i] {
			return
		}
		visited[i] = true
		for _, input := range nodes[i].Inputs {
			if dep, ok := producer[input]; ok {
				visit(dep)
			}
		}
		sorted = append(sorted, nodes[i])
	}

	for i := range nodes {
		visit(i)
	}
	return sorted
}
