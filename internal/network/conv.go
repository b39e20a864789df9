package network

import (
	"fmt"
	"iter"

	"github.com/strata-ml/strata/internal/tensor"
)

// ConvLayer is a valid (unpadded) 2-D convolution over a 3-D
// [depth, rows, cols] volume.
//
// The kernel is 4-D: [out_channels, kernel_depth, kernel_rows, kernel_cols].
// Pooling layers reuse this type with a synthesized indicator kernel, so
// constraint generation enumerates learned and pooling windows through the
// same protocol.
type ConvLayer struct {
	layerBase
	strides [2]int
	kernel  *tensor.Array
}

// NewConvLayer creates a convolutional layer. Input and output sizes must
// be 3-D, the kernel 4-D, and the output spatial extent must follow from
// the input extent, kernel shape and strides (floor rule, or ceil for
// pooling nodes parsed in ceil mode).
func NewConvLayer(
	inputSize, outputSize tensor.Shape,
	strides [2]int,
	kernel *tensor.Array,
	activation string,
	transformer *IndexTransformer,
) (*ConvLayer, error) {
	base, err := newLayerBase(inputSize, outputSize, activation, transformer)
	if err != nil {
		return nil, err
	}

	if len(inputSize) != 3 || len(outputSize) != 3 {
		return nil, fmt.Errorf("conv layer sizes must be [depth, rows, cols], got input %v output %v",
			inputSize, outputSize)
	}
	kshape := kernel.Shape()
	if len(kshape) != 4 {
		return nil, fmt.Errorf("kernel must be 4-D [out_channels, depth, rows, cols], got %v", kshape)
	}
	if strides[0] <= 0 || strides[1] <= 0 {
		return nil, fmt.Errorf("invalid strides %v (must be > 0)", strides)
	}
	if kshape[0] != outputSize[0] {
		return nil, fmt.Errorf("kernel has %d output channels, output size %v has depth %d",
			kshape[0], outputSize, outputSize[0])
	}
	if kshape[1] != inputSize[0] {
		return nil, fmt.Errorf("kernel depth %d does not match input depth %d", kshape[1], inputSize[0])
	}
	for axis := 0; axis < 2; axis++ {
		in, k, s := inputSize[axis+1], kshape[axis+2], strides[axis]
		floor := (in-k)/s + 1
		ceil := floor
		if (in-k)%s != 0 {
			ceil++
		}
		if out := outputSize[axis+1]; out != floor && out != ceil {
			return nil, fmt.Errorf("output extent %d on axis %d inconsistent with input %d, kernel %d, stride %d",
				out, axis, in, k, s)
		}
	}

	return &ConvLayer{
		layerBase: base,
		strides:   strides,
		kernel:    kernel,
	}, nil
}

// Strides returns the [row, col] strides.
func (l *ConvLayer) Strides() [2]int {
	return l.strides
}

// KernelShape returns the spatial [rows, cols] extent of the kernel.
func (l *ConvLayer) KernelShape() tensor.Shape {
	return l.kernel.Shape()[2:]
}

// KernelDepth returns the number of input channels the kernel spans.
func (l *ConvLayer) KernelDepth() int {
	return l.kernel.Shape()[1]
}

// OutChannels returns the number of output channels.
func (l *ConvLayer) OutChannels() int {
	return l.kernel.Shape()[0]
}

// KernelWithInputIndexes enumerates (weight, input index) pairs for the
// kernel window at output coordinate (outD, outR, outC). Indexes are mapped
// through the input index transformer when one is present, so they address
// the predecessor layer directly. Index validity follows from valid output
// coordinates, the strides and the kernel shape; the loop does no bounds
// checking.
func (l *ConvLayer) KernelWithInputIndexes(outD, outR, outC int) iter.Seq2[float64, tensor.Index] {
	kshape := l.kernel.Shape()
	kernelDepth, kernelRows, kernelCols := kshape[1], kshape[2], kshape[3]
	startRow := outR * l.strides[0]
	startCol := outC * l.strides[1]

	return func(yield func(float64, tensor.Index) bool) {
		for kD := 0; kD < kernelDepth; kD++ {
			for kR := 0; kR < kernelRows; kR++ {
				for kC := 0; kC < kernelCols; kC++ {
					weight := l.kernel.At(tensor.Index{outD, kD, kR, kC})
					index := tensor.Index{kD, startRow + kR, startCol + kC}
					if l.transformer != nil {
						index = l.transformer.Apply(index)
					}
					if !yield(weight, index) {
						return
					}
				}
			}
		}
	}
}

// Eval applies the transformer, validates shapes, runs the direct
// convolution and applies the activation.
func (l *ConvLayer) Eval(x *tensor.Array) (*tensor.Array, error) {
	return evalLayer(l, x)
}

func (l *ConvLayer) transform(x *tensor.Array) (*tensor.Array, error) {
	y, err := tensor.NewArray(l.outputSize)
	if err != nil {
		return nil, err
	}
	depth, rows, cols := l.outputSize[0], l.outputSize[1], l.outputSize[2]
	for outD := 0; outD < depth; outD++ {
		for outR := 0; outR < rows; outR++ {
			for outC := 0; outC < cols; outC++ {
				acc := 0.0
				for weight, index := range l.KernelWithInputIndexes(outD, outR, outC) {
					acc += weight * x.At(index)
				}
				y.Set(tensor.Index{outD, outR, outC}, acc)
			}
		}
	}
	return y, nil
}

// String returns a compact description of the layer.
func (l *ConvLayer) String() string {
	return fmt.Sprintf("ConvLayer(input_size=%v, output_size=%v, strides=%v, kernel_shape=%v)",
		l.inputSize, l.outputSize, l.strides, l.KernelShape())
}
