// Package main provides the strata CLI.
package main

import (
	"fmt"
	"os"

	"github.com/strata-ml/strata/onnx"
)

const version = "v0.1.0-dev"

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version":
			fmt.Printf("strata %s\n", version)
			return
		case "info":
			if len(os.Args) < 3 {
				fmt.Fprintln(os.Stderr, "usage: strata info <model.onnx>")
				os.Exit(2)
			}
			if err := printInfo(os.Args[2]); err != nil {
				fmt.Fprintf(os.Stderr, "strata: %v\n", err)
				os.Exit(1)
			}
			return
		}
	}

	fmt.Println("strata - layered network representations from ONNX models")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  version              Show version")
	fmt.Println("  info <model.onnx>    Inspect an ONNX model")
}

func printInfo(path string) error {
	info, err := onnx.GetModelInfo(path)
	if err != nil {
		return err
	}

	fmt.Printf("IR version:  %d\n", info.IRVersion)
	fmt.Printf("Opset:       %d\n", info.OpsetVersion)
	if info.ProducerName != "" {
		fmt.Printf("Producer:    %s %s\n", info.ProducerName, info.ProducerVersion)
	}
	fmt.Printf("Inputs:      %v\n", info.InputNames)
	fmt.Printf("Outputs:     %v\n", info.OutputNames)
	fmt.Printf("Nodes:       %d\n", info.NodeCount)
	fmt.Printf("Weights:     %d\n", info.WeightCount)

	net, err := onnx.Load(path)
	if err != nil {
		fmt.Printf("\nNot convertible to a layered network: %v\n", err)
		return nil
	}
	fmt.Printf("\nLayers:\n")
	for _, layer := range net.Layers() {
		fmt.Printf("  %s\n", layer)
	}
	return nil
}
