// Package network defines the strictly layered intermediate representation
// a parsed feed-forward model is lowered into.
//
// A NetworkDefinition is a linear chain of layers: one InputLayer followed
// by dense and convolutional layers. Layers whose nominal input shape is a
// reinterpretation of the preceding layer's output carry an IndexTransformer
// that remaps indexes instead of materializing reshaped data.
//
// The representation is built once by the graph parser and is immutable
// afterwards; downstream constraint generation reads layer sizes, index
// enumerations and kernel windows from it. Eval exists for numeric
// validation of parsed networks, not for inference throughput.
package network
