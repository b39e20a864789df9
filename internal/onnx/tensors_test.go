package onnx

import (
	"testing"

	"github.com/strata-ml/strata/internal/tensor"
)

func TestTensorValuesFloatRaw(t *testing.T) {
	proto := TensorProto{
		Name:     "w",
		DataType: TensorProtoFloat,
		Dims:     []int64{2, 2},
		RawData:  rawFloats(1, 2, 3, 4),
	}
	a, err := tensorValues(&proto)
	if err != nil {
		t.Fatalf("tensorValues failed: %v", err)
	}
	if !a.Shape().Equal(tensor.Shape{2, 2}) {
		t.Errorf("Expected shape [2 2], got %v", a.Shape())
	}
	want := []float64{1, 2, 3, 4}
	for i, v := range a.Data() {
		if v != want[i] {
			t.Errorf("Value %d: expected %v, got %v", i, want[i], v)
		}
	}
}

func TestTensorValuesFloatData(t *testing.T) {
	proto := TensorProto{
		Name:      "w",
		DataType:  TensorProtoFloat,
		Dims:      []int64{3},
		FloatData: []float32{0.5, -1, 2},
	}
	a, err := tensorValues(&proto)
	if err != nil {
		t.Fatalf("tensorValues failed: %v", err)
	}
	want := []float64{0.5, -1, 2}
	for i, v := range a.Data() {
		if v != want[i] {
			t.Errorf("Value %d: expected %v, got %v", i, want[i], v)
		}
	}
}

func TestTensorValuesInt64(t *testing.T) {
	proto := TensorProto{
		Name:      "shape",
		DataType:  TensorProtoInt64,
		Dims:      []int64{3},
		Int64Data: []int64{-1, 2, 3},
	}
	a, err := tensorValues(&proto)
	if err != nil {
		t.Fatalf("tensorValues failed: %v", err)
	}
	want := []float64{-1, 2, 3}
	for i, v := range a.Data() {
		if v != want[i] {
			t.Errorf("Value %d: expected %v, got %v", i, want[i], v)
		}
	}
}

func TestTensorValuesDouble(t *testing.T) {
	proto := TensorProto{
		Name:       "w",
		DataType:   TensorProtoDouble,
		Dims:       []int64{2},
		DoubleData: []float64{1.25, -0.5},
	}
	a, err := tensorValues(&proto)
	if err != nil {
		t.Fatalf("tensorValues failed: %v", err)
	}
	if a.Data()[0] != 1.25 || a.Data()[1] != -0.5 {
		t.Errorf("Unexpected values: %v", a.Data())
	}
}

func TestTensorValuesUnsupportedType(t *testing.T) {
	proto := TensorProto{Name: "w", DataType: 99, Dims: []int64{1}}
	if _, err := tensorValues(&proto); err == nil {
		t.Error("Expected error for unsupported data type, got nil")
	}
}

func TestTensorValuesCountMismatch(t *testing.T) {
	proto := TensorProto{
		Name:      "w",
		DataType:  TensorProtoFloat,
		Dims:      []int64{4},
		FloatData: []float32{1, 2},
	}
	if _, err := tensorValues(&proto); err == nil {
		t.Error("Expected error for element count mismatch, got nil")
	}
}

func TestTopologicalSort(t *testing.T) {
	// Nodes listed out of order: c depends on b depends on a.
	nodes := []NodeProto{
		{Name: "c", OpType: "Relu", Inputs: []string{"t1"}, Outputs: []string{"y"}},
		{Name: "a", OpType: "MatMul", Inputs: []string{"x", "W"}, Outputs: []string{"t0"}},
		{Name: "b", OpType: "Add", Inputs: []string{"t0", "bias"}, Outputs: []string{"t1"}},
	}
	sorted := topologicalSort(nodes)
	if len(sorted) != 3 {
		t.Fatalf("Expected 3 nodes, got %d", len(sorted))
	}
	if sorted[0].Name != "a" || sorted[1].Name != "b" || sorted[2].Name != "c" {
		t.Errorf("Expected order a, b, c; got %s, %s, %s",
			sorted[0].Name, sorted[1].Name, sorted[2].Name)
	}
}

func TestTopologicalSortStable(t *testing.T) {
	nodes := []NodeProto{
		{Name: "a", OpType: "MatMul", Inputs: []string{"x", "W"}, Outputs: []string{"t0"}},
		{Name: "b", OpType: "Add", Inputs: []string{"t0", "bias"}, Outputs: []string{"y"}},
	}
	sorted := topologicalSort(nodes)
	if sorted[0].Name != "a" || sorted[1].Name != "b" {
		t.Errorf("Already ordered input should stay ordered, got %s, %s",
			sorted[0].Name, sorted[1].Name)
	}
}
