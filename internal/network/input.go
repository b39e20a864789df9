package network

import (
	"fmt"

	"github.com/strata-ml/strata/internal/tensor"
)

// InputLayer is the first layer in any network. Its input and output sizes
// are identical and its transform is the identity.
type InputLayer struct {
	layerBase
}

// NewInputLayer creates an input layer of the given size.
func NewInputLayer(size tensor.Shape) (*InputLayer, error) {
	base, err := newLayerBase(size, size, "", nil)
	if err != nil {
		return nil, err
	}
	return &InputLayer{layerBase: base}, nil
}

// Eval validates the input shape and passes the array through unchanged.
func (l *InputLayer) Eval(x *tensor.Array) (*tensor.Array, error) {
	return evalLayer(l, x)
}

func (l *InputLayer) transform(x *tensor.Array) (*tensor.Array, error) {
	return x, nil
}

// String returns a compact description of the layer.
func (l *InputLayer) String() string {
	return fmt.Sprintf("InputLayer(input_size=%v, output_size=%v)", l.inputSize, l.outputSize)
}
