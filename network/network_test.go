package network_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/strata-ml/strata/network"
	"github.com/strata-ml/strata/tensor"
)

func TestFacadeBuildAndEval(t *testing.T) {
	input, err := network.NewInputLayer(tensor.Shape{2})
	require.NoError(t, err)
	net := network.NewNetworkDefinition(input)

	weights := mat.NewDense(2, 3, []float64{1, 0, 2, 0, 1, -1})
	dense, err := network.NewDenseLayer(
		tensor.Shape{2}, tensor.Shape{3},
		weights, []float64{0.5, 0, -4},
		network.ActivationReLU, nil,
	)
	require.NoError(t, err)
	require.NoError(t, net.AddLayer(dense))

	x, err := tensor.FromSlice([]float64{2, 3}, tensor.Shape{2})
	require.NoError(t, err)
	y, err := net.Eval(x)
	require.NoError(t, err)
	assert.Equal(t, []float64{2.5, 3, 0}, y.Data())
}

func TestFacadeIndexTransformer(t *testing.T) {
	tr, err := network.NewIndexTransformer(tensor.Shape{3, 2}, tensor.Shape{6})
	require.NoError(t, err)
	assert.Equal(t, tensor.Index{2, 1}, tr.Apply(tensor.Index{5}))
}
