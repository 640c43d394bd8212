package nn

import (
	"fmt"

	"digitnet/internal/tensor"
)

// AvgPool2D performs 2D average pooling over non-padded windows.
//
// Input shape:  [batch, channels, height, width]
// Output shape: [batch, channels, out_h, out_w]
//
// Where:
//
//	out_h = (height - kernel) / stride + 1
//	out_w = (width  - kernel) / stride + 1
//
// Every window lies fully inside the input, so each output element is the
// mean of exactly kernel*kernel inputs.
func AvgPool2D(input *tensor.Tensor, kernel, stride int) *tensor.Tensor {
	inputShape := input.Shape()
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("avgpool2d: input must be 4D [N,C,H,W], got %v", inputShape))
	}

	N := inputShape[0]
	C := inputShape[1]
	H := inputShape[2]
	W := inputShape[3]

	HOut := (H-kernel)/stride + 1
	WOut := (W-kernel)/stride + 1
	if HOut <= 0 || WOut <= 0 {
		panic(fmt.Sprintf("avgpool2d: invalid output dimensions %dx%d for input %dx%d", HOut, WOut, H, W))
	}

	output := tensor.New(tensor.Shape{N, C, HOut, WOut})
	outputData := output.Data()
	inputData := input.Data()

	inv := 1.0 / float64(kernel*kernel)

	for n := 0; n < N; n++ {
		for c := 0; c < C; c++ {
			in := inputData[(n*C+c)*H*W : (n*C+c+1)*H*W]
			out := outputData[(n*C+c)*HOut*WOut : (n*C+c+1)*HOut*WOut]

			for outH := 0; outH < HOut; outH++ {
				for outW := 0; outW < WOut; outW++ {
					sum := 0.0
					for kh := 0; kh < kernel; kh++ {
						row := (outH*stride + kh) * W
						for kw := 0; kw < kernel; kw++ {
							sum += in[row+outW*stride+kw]
						}
					}
					out[outH*WOut+outW] = sum * inv
				}
			}
		}
	}

	return output
}

// AvgPool2DBackward distributes the output gradient uniformly over each
// pooling window: every input position in a window receives grad/kernel².
func AvgPool2DBackward(grad *tensor.Tensor, inputShape tensor.Shape, kernel, stride int) *tensor.Tensor {
	gradShape := grad.Shape()
	N := inputShape[0]
	C := inputShape[1]
	H := inputShape[2]
	W := inputShape[3]
	HOut := gradShape[2]
	WOut := gradShape[3]

	inputGrad := tensor.New(inputShape)
	inputGradData := inputGrad.Data()
	gradData := grad.Data()

	inv := 1.0 / float64(kernel*kernel)

	for n := 0; n < N; n++ {
		for c := 0; c < C; c++ {
			gIn := inputGradData[(n*C+c)*H*W : (n*C+c+1)*H*W]
			gOut := gradData[(n*C+c)*HOut*WOut : (n*C+c+1)*HOut*WOut]

			for outH := 0; outH < HOut; outH++ {
				for outW := 0; outW < WOut; outW++ {
					g := gOut[outH*WOut+outW] * inv
					for kh := 0; kh < kernel; kh++ {
						row := (outH*stride + kh) * W
						for kw := 0; kw < kernel; kw++ {
							gIn[row+outW*stride+kw] += g
						}
					}
				}
			}
		}
	}

	return inputGrad
}
