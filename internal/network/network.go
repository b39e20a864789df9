package network

import (
	"fmt"

	"github.com/strata-ml/strata/internal/tensor"
)

// NetworkDefinition is the ordered, strictly linear chain of layers a
// parsed model is lowered into. The first layer is always an InputLayer;
// the chain has no branching or skip connections. It is built once by the
// parser and read-only afterwards, so concurrent reads are safe.
type NetworkDefinition struct {
	layers []Layer
}

// NewNetworkDefinition creates a network starting at the given input layer.
func NewNetworkDefinition(input *InputLayer) *NetworkDefinition {
	return &NetworkDefinition{layers: []Layer{input}}
}

// AddLayer appends a layer to the chain. The layer's nominal input domain
// (its transformer's source shape when one is present, its input size
// otherwise) must describe the same number of elements as the preceding
// layer's output.
func (n *NetworkDefinition) AddLayer(layer Layer) error {
	prev := n.layers[len(n.layers)-1]
	required := layer.InputSize()
	if t := layer.InputIndexTransformer(); t != nil {
		required = t.InputSize()
	}
	if !required.Compatible(prev.OutputSize()) {
		return fmt.Errorf("layer %s input domain %v is incompatible with previous output size %v",
			layer, required, prev.OutputSize())
	}
	n.layers = append(n.layers, layer)
	return nil
}

// Layers returns the ordered layer chain.
func (n *NetworkDefinition) Layers() []Layer {
	return n.layers
}

// InputLayer returns the first layer of the chain.
func (n *NetworkDefinition) InputLayer() *InputLayer {
	return n.layers[0].(*InputLayer)
}

// OutputLayer returns the last layer of the chain.
func (n *NetworkDefinition) OutputLayer() Layer {
	return n.layers[len(n.layers)-1]
}

// Eval runs x through the whole chain. This is the numeric validation path
// for parsed networks.
func (n *NetworkDefinition) Eval(x *tensor.Array) (*tensor.Array, error) {
	var err error
	for _, layer := range n.layers {
		x, err = layer.Eval(x)
		if err != nil {
			return nil, fmt.Errorf("evaluating %s: %w", layer, err)
		}
	}
	return x, nil
}

// String returns a compact description of the network.
func (n *NetworkDefinition) String() string {
	return fmt.Sprintf("NetworkDefinition(layers=%d)", len(n.layers))
}
