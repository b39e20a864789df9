package onnx

import (
	"fmt"

	"github.com/strata-ml/strata/internal/network"
)

// Load reads an ONNX model from file and converts its graph into a network
// definition.
//
// Example:
//
//	net, err := onnx.Load("classifier.onnx")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	y, err := net.Eval(x)
func Load(path string) (*network.NetworkDefinition, error) {
	proto, err := ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ONNX file: %w", err)
	}
	return NewNetworkParser().ParseNetwork(proto.Graph)
}

// LoadFromBytes converts an in-memory ONNX model into a network definition.
func LoadFromBytes(data []byte) (*network.NetworkDefinition, error) {
	proto, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ONNX data: %w", err)
	}
	return NewNetworkParser().ParseNetwork(proto.Graph)
}

// ModelInfo contains basic information about an ONNX model without
// converting it.
type ModelInfo struct {
	IRVersion       int64
	OpsetVersion    int64
	ProducerName    string
	ProducerVersion string
	InputNames      []string
	OutputNames     []string
	NodeCount       int
	WeightCount     int
}

// GetModelInfo extracts basic info from an ONNX file.
func GetModelInfo(path string) (*ModelInfo, error) {
	proto, err := ParseFile(path)
	if err != nil {
		return nil, err
	}

	info := &ModelInfo{
		IRVersion:       proto.IRVersion,
		ProducerName:    proto.ProducerName,
		ProducerVersion: proto.ProducerVersion,
	}

	for _, opset := range proto.OpsetImport {
		if opset.Domain == "" || opset.Domain == "ai.onnx" {
			info.OpsetVersion = opset.Version
			break
		}
	}

	if proto.Graph != nil {
		// Inputs, excluding initializers declared as graph inputs.
		initNames := make(map[string]bool)
		for i := range proto.Graph.Initializers {
			initNames[proto.Graph.Initializers[i].Name] = true
		}
		for i := range proto.Graph.Inputs {
			if !initNames[proto.Graph.Inputs[i].Name] {
				info.InputNames = append(info.InputNames, proto.Graph.Inputs[i].Name)
			}
		}
		for _, output := range proto.Graph.Outputs {
			info.OutputNames = append(info.OutputNames, output.Name)
		}

		info.NodeCount = len(proto.Graph.Nodes)
		info.WeightCount = len(proto.Graph.Initializers)
	}

	return info, nil
}
