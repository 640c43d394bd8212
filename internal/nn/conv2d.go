package nn

import (
	"fmt"

	"digitnet/internal/tensor"
)

// Conv2D performs 2D convolution using the im2col algorithm and adds a
// per-channel bias.
//
// Input shape:  [batch, in_channels, height, width]
// Kernel shape: [out_channels, in_channels, kernel_h, kernel_w]
// Bias shape:   [out_channels]
// Output shape: [batch, out_channels, out_h, out_w]
//
// Where:
//
//	out_h = (height + 2*padding - kernel_h) / stride + 1
//	out_w = (width + 2*padding - kernel_w) / stride + 1
//
// Algorithm: Im2col
//  1. Transform input patches into columns (im2col)
//  2. Treat the kernel as a [C_out, C_in*K_h*K_w] matrix
//  3. Matrix multiply
//  4. Rearrange output to [N, C_out, H_out, W_out]
//
// Reference: "High Performance Convolutional Neural Networks for Document
// Processing" (Chellapilla et al., 2006).
func Conv2D(input, kernel, bias *tensor.Tensor, stride, padding int) *tensor.Tensor {
	inputShape := input.Shape()
	kernelShape := kernel.Shape()

	if len(inputShape) != 4 {
		panic(fmt.Sprintf("conv2d: input must be 4D [N,C,H,W], got %v", inputShape))
	}
	if len(kernelShape) != 4 {
		panic(fmt.Sprintf("conv2d: kernel must be 4D [C_out,C_in,K_h,K_w], got %v", kernelShape))
	}

	N := inputShape[0]
	CIn := inputShape[1]
	H := inputShape[2]
	W := inputShape[3]
	COut := kernelShape[0]
	KH := kernelShape[2]
	KW := kernelShape[3]

	if CIn != kernelShape[1] {
		panic(fmt.Sprintf("conv2d: input channels %d != kernel channels %d", CIn, kernelShape[1]))
	}
	if bias != nil && bias.NumElements() != COut {
		panic(fmt.Sprintf("conv2d: bias length %d != output channels %d", bias.NumElements(), COut))
	}

	HOut := (H+2*padding-KH)/stride + 1
	WOut := (W+2*padding-KW)/stride + 1
	if HOut <= 0 || WOut <= 0 {
		panic(fmt.Sprintf("conv2d: invalid output dimensions %dx%d (check stride/padding)", HOut, WOut))
	}

	output := tensor.New(tensor.Shape{N, COut, HOut, WOut})

	inputData := input.Data()
	kernelData := kernel.Data()
	outputData := output.Data()

	// Step 1: im2col. colBuf is [N*H_out*W_out, C_in*K_h*K_w].
	colWidth := CIn * KH * KW
	colHeight := N * HOut * WOut
	colBuf := make([]float64, colHeight*colWidth)
	im2col(colBuf, inputData, N, CIn, H, W, KH, KW, HOut, WOut, stride, padding)

	// Steps 2+3: kernel is already [C_out, C_in*K_h*K_w] in row-major layout,
	// so output[c, j] = sum_k kernel[c, k] * colBuf[j, k].
	outSize := HOut * WOut
	for c := 0; c < COut; c++ {
		kernelRow := kernelData[c*colWidth : (c+1)*colWidth]
		b := 0.0
		if bias != nil {
			b = bias.Data()[c]
		}
		for j := 0; j < colHeight; j++ {
			col := colBuf[j*colWidth : (j+1)*colWidth]
			sum := b
			for k, kv := range kernelRow {
				sum += kv * col[k]
			}
			// Step 4: scatter directly into [N, C_out, H_out, W_out] layout.
			// j enumerates (n, h, w) in row-major order.
			n := j / outSize
			pos := j % outSize
			outputData[n*COut*outSize+c*outSize+pos] = sum
		}
	}

	return output
}

// im2col transforms the input into a column matrix: one row per output
// position, one column per kernel weight. Out-of-bounds positions (padding)
// contribute zeros.
func im2col(colBuf, inputData []float64, N, C, H, W, KH, KW, HOut, WOut, stride, padding int) {
	colWidth := C * KH * KW
	colIdx := 0

	for n := 0; n < N; n++ {
		for outH := 0; outH < HOut; outH++ {
			for outW := 0; outW < WOut; outW++ {
				hStart := outH*stride - padding
				wStart := outW*stride - padding
				bufIdx := colIdx * colWidth

				for c := 0; c < C; c++ {
					for kh := 0; kh < KH; kh++ {
						for kw := 0; kw < KW; kw++ {
							h := hStart + kh
							w := wStart + kw

							if h >= 0 && h < H && w >= 0 && w < W {
								colBuf[bufIdx] = inputData[n*C*H*W+c*H*W+h*W+w]
							} else {
								colBuf[bufIdx] = 0.0
							}
							bufIdx++
						}
					}
				}
				colIdx++
			}
		}
	}
}

// Conv2DInputBackward computes the gradient w.r.t. the convolution input
// (transposed convolution): each output-gradient element is distributed back
// to the input positions that produced it, weighted by the kernel.
//
// Reference: "A guide to convolution arithmetic for deep learning"
// (Dumoulin & Visin, 2016).
func Conv2DInputBackward(input, kernel, grad *tensor.Tensor, stride, padding int) *tensor.Tensor {
	inputShape := input.Shape()
	kernelShape := kernel.Shape()
	gradShape := grad.Shape()

	N := inputShape[0]
	CIn := inputShape[1]
	H := inputShape[2]
	W := inputShape[3]
	COut := kernelShape[0]
	KH := kernelShape[2]
	KW := kernelShape[3]
	HOut := gradShape[2]
	WOut := gradShape[3]

	inputGrad := tensor.New(tensor.Shape{N, CIn, H, W})
	inputGradData := inputGrad.Data()
	gradData := grad.Data()
	kernelData := kernel.Data()

	for n := 0; n < N; n++ {
		inputGradBatch := inputGradData[n*CIn*H*W : (n+1)*CIn*H*W]
		gradBatch := gradData[n*COut*HOut*WOut : (n+1)*COut*HOut*WOut]

		for outH := 0; outH < HOut; outH++ {
			for outW := 0; outW < WOut; outW++ {
				for cOut := 0; cOut < COut; cOut++ {
					gradVal := gradBatch[cOut*HOut*WOut+outH*WOut+outW]
					kernelCOut := kernelData[cOut*CIn*KH*KW : (cOut+1)*CIn*KH*KW]

					for cIn := 0; cIn < CIn; cIn++ {
						inputGradCIn := inputGradBatch[cIn*H*W : (cIn+1)*H*W]
						kernelCIn := kernelCOut[cIn*KH*KW : (cIn+1)*KH*KW]

						for kh := 0; kh < KH; kh++ {
							for kw := 0; kw < KW; kw++ {
								h := outH*stride - padding + kh
								w := outW*stride - padding + kw

								if h >= 0 && h < H && w >= 0 && w < W {
									inputGradCIn[h*W+w] += gradVal * kernelCIn[kh*KW+kw]
								}
							}
						}
					}
				}
			}
		}
	}

	return inputGrad
}

// Conv2DKernelBackward computes the gradient w.r.t. the convolution kernel:
// a correlation of the saved forward input with the output gradient, summed
// over the batch and all output positions.
func Conv2DKernelBackward(input, kernel, grad *tensor.Tensor, stride, padding int) *tensor.Tensor {
	inputShape := input.Shape()
	kernelShape := kernel.Shape()
	gradShape := grad.Shape()

	N := inputShape[0]
	CIn := inputShape[1]
	H := inputShape[2]
	W := inputShape[3]
	COut := kernelShape[0]
	KH := kernelShape[2]
	KW := kernelShape[3]
	HOut := gradShape[2]
	WOut := gradShape[3]

	kernelGrad := tensor.New(tensor.Shape{COut, CIn, KH, KW})
	kernelGradData := kernelGrad.Data()
	gradData := grad.Data()
	inputData := input.Data()

	for cOut := 0; cOut < COut; cOut++ {
		for cIn := 0; cIn < CIn; cIn++ {
			for kh := 0; kh < KH; kh++ {
				for kw := 0; kw < KW; kw++ {
					sum := 0.0

					for n := 0; n < N; n++ {
						for outH := 0; outH < HOut; outH++ {
							for outW := 0; outW < WOut; outW++ {
								h := outH*stride - padding + kh
								w := outW*stride - padding + kw

								if h >= 0 && h < H && w >= 0 && w < W {
									sum += inputData[n*CIn*H*W+cIn*H*W+h*W+w] *
										gradData[n*COut*HOut*WOut+cOut*HOut*WOut+outH*WOut+outW]
								}
							}
						}
					}

					kernelGradData[cOut*CIn*KH*KW+cIn*KH*KW+kh*KW+kw] = sum
				}
			}
		}
	}

	return kernelGrad
}

// Conv2DBiasBackward computes the gradient w.r.t. the per-channel bias: the
// sum of the output gradient over batch and spatial positions.
func Conv2DBiasBackward(grad *tensor.Tensor) *tensor.Tensor {
	gradShape := grad.Shape()
	N := gradShape[0]
	COut := gradShape[1]
	outSize := gradShape[2] * gradShape[3]

	biasGrad := tensor.New(tensor.Shape{COut})
	biasGradData := biasGrad.Data()
	gradData := grad.Data()

	for n := 0; n < N; n++ {
		for c := 0; c < COut; c++ {
			base := n*COut*outSize + c*outSize
			sum := 0.0
			for i := 0; i < outSize; i++ {
				sum += gradData[base+i]
			}
			biasGradData[c] += sum
		}
	}

	return biasGrad
}
