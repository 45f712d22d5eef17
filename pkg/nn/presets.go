package nn

import (
	"math/rand"

	"github.com/luxfi/secnn/pkg/fixedpoint"
)

// presetSeed is the deterministic seed spec §8's scenario S4 fixes model
// weights to, so that a client and server benchmarking the same --model
// value always agree on what they're comparing against.
const presetSeed = 0x11E0000000000D2

// Model0 is --model 0: a single FullyConnected layer over a 4-element
// input, matching scenario S1's shape. Weight and bias are the identity
// transform so the acceptance scenario's expected output is exactly its
// input, round-tripped through fixed-point encoding.
func Model0() *Architecture {
	in := Dims{N: 1, C: 1, H: 1, W: 4}
	return &Architecture{
		Params: fixedpoint.Default,
		Layers: []Layer{
			{
				Kind: LayerLinear,
				Linear: &Linear{
					Kind: KindFullyConnected,
					In:   in,
					Out:  in,
					FC: &FullyConnected{
						Weight: identityMatrix(4),
						Bias:   make([]float64, 4),
						In:     4,
						Out:    4,
					},
				},
			},
		},
	}
}

// Model1 is --model 1: Conv2d -> ReLU -> FullyConnected, matching scenario
// S4's chain shape. Conv/FC weights are pseudo-random but deterministic
// (presetSeed), so two independently-launched CLI processes selecting the
// same model always evaluate the same function.
func Model1() *Architecture {
	rnd := rand.New(rand.NewSource(presetSeed))

	convIn := Dims{N: 1, C: 1, H: 4, W: 4}
	const cout, kh, kw, stride = 2, 3, 3, 1
	convOutH := convOutDim(convIn.H, kh, stride, PaddingSame)
	convOutW := convOutDim(convIn.W, kw, stride, PaddingSame)
	convOut := Dims{N: 1, C: cout, H: convOutH, W: convOutW}

	conv := &Conv2D{
		Kernel:  randomFloats(rnd, cout*convIn.C*kh*kw, 0.2),
		Bias:    randomFloats(rnd, cout, 0.1),
		Cout:    cout,
		Cin:     convIn.C,
		Kh:      kh,
		Kw:      kw,
		Stride:  stride,
		Padding: PaddingSame,
	}

	reluDims := convOut

	fcIn := convOut.Size()
	const fcOut = 4
	fc := &FullyConnected{
		Weight: randomFloats(rnd, fcOut*fcIn, 0.2),
		Bias:   randomFloats(rnd, fcOut, 0.1),
		In:     fcIn,
		Out:    fcOut,
	}
	fcOutDims := Dims{N: 1, C: 1, H: 1, W: fcOut}

	return &Architecture{
		Params: fixedpoint.Default,
		Layers: []Layer{
			{Kind: LayerLinear, Linear: &Linear{Kind: KindConv2d, In: convIn, Out: convOut, Conv: conv}},
			{Kind: LayerNonLinear, NonLinear: &NonLinear{Dims: reluDims}},
			{Kind: LayerLinear, Linear: &Linear{Kind: KindFullyConnected, In: reluDims, Out: fcOutDims, FC: fc}},
		},
	}
}

// randomFloats draws n values uniform in [-scale, scale).
func randomFloats(rnd *rand.Rand, n int, scale float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = (rnd.Float64()*2 - 1) * scale
	}
	return out
}
