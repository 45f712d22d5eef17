// Package nn describes the neural-network architectures this repository
// evaluates securely: tensor shapes, the closed layer variant spec §9
// calls for ({Conv2d, FullyConnected, AvgPool, Identity, ReLU}), and the
// two preset architectures the CLI's --model flag selects. Everything
// here is public (shapes, layer kind, stride/padding) except a Linear
// layer's Kernel/Bias, which only the server ever holds; the orchestrator
// and ACG only see this package's types, never raw tensors belonging to
// the other party.
package nn

import (
	"fmt"

	"github.com/luxfi/secnn/pkg/field"
	"github.com/luxfi/secnn/pkg/fixedpoint"
)

// Dims is a layer's tensor shape (spec §3 "Tensor shapes").
type Dims struct {
	N, C, H, W int
}

// Size is the flattened element count of d.
func (d Dims) Size() int { return d.N * d.C * d.H * d.W }

func (d Dims) String() string {
	return fmt.Sprintf("(%d,%d,%d,%d)", d.N, d.C, d.H, d.W)
}

// Padding selects between SAME (output spatial size tracks input) and
// VALID (no padding, output shrinks by kernel size minus one at stride 1) convolution.
type Padding int

const (
	PaddingValid Padding = iota
	PaddingSame
)

// LinearKind is the closed variant of linear layers spec §3 names.
type LinearKind int

const (
	KindConv2d LinearKind = iota
	KindFullyConnected
	KindAvgPool
	KindIdentity
)

func (k LinearKind) String() string {
	switch k {
	case KindConv2d:
		return "Conv2d"
	case KindFullyConnected:
		return "FullyConnected"
	case KindAvgPool:
		return "AvgPool"
	case KindIdentity:
		return "Identity"
	default:
		return "Unknown"
	}
}

// Conv2D holds a convolution's server-only parameters plus its public
// shape parameters (stride, padding); Kernel is laid out
// (Cout,Cin,Kh,Kw) per spec §3.
type Conv2D struct {
	Kernel  []float64
	Bias    []float64
	Cout    int
	Cin     int
	Kh, Kw  int
	Stride  int
	Padding Padding
}

// FullyConnected holds a dense layer's server-only weight matrix (Out x
// In, row-major) and bias.
type FullyConnected struct {
	Weight []float64
	Bias   []float64
	In     int
	Out    int
}

// Linear is one linear-layer description (spec §3 "Layer description").
// Exactly one of Conv, FC is set, matching Kind; AvgPool/Identity carry
// no server-only parameters at all.
type Linear struct {
	Kind     LinearKind
	In, Out  Dims
	Conv     *Conv2D
	FC       *FullyConnected
	PoolSize int // AvgPool only
}

// NonLinear is a ReLU activation layer; spec scopes other activations out.
type NonLinear struct {
	Dims Dims
}

// LayerKind distinguishes the two branches the orchestrator matches on
// (spec §4.9's "match layer[i]").
type LayerKind int

const (
	LayerLinear LayerKind = iota
	LayerNonLinear
)

// Layer is one entry of the architecture's layer list, keyed by its index
// in [0, L) for offline-state lookup (spec §3 "Layer description").
type Layer struct {
	Kind      LayerKind
	Linear    *Linear
	NonLinear *NonLinear
}

func (l Layer) InDims() Dims {
	if l.Kind == LayerLinear {
		return l.Linear.In
	}
	return l.NonLinear.Dims
}

func (l Layer) OutDims() Dims {
	if l.Kind == LayerLinear {
		return l.Linear.Out
	}
	return l.NonLinear.Dims
}

// Architecture is the full layer list plus the fixed-point parameters
// every layer's fixed-point encoding shares.
type Architecture struct {
	Params fixedpoint.Params
	Layers []Layer
}

// Validate checks that consecutive layers compose (spec §7 ShapeError:
// "layer shapes do not compose (programmer error in architecture)").
func (a *Architecture) Validate() error {
	for i := 1; i < len(a.Layers); i++ {
		prevOut := a.Layers[i-1].OutDims()
		curIn := a.Layers[i].InDims()
		if prevOut != curIn {
			return fmt.Errorf("nn: layer %d output %s does not match layer %d input %s", i-1, prevOut, i, curIn)
		}
	}
	return nil
}

// InputDims is the dims of the first layer's input, i.e. the shape the
// client's raw input must match.
func (a *Architecture) InputDims() Dims {
	if len(a.Layers) == 0 {
		return Dims{}
	}
	return a.Layers[0].InDims()
}

// OutputDims is the dims of the last layer's output.
func (a *Architecture) OutputDims() Dims {
	if len(a.Layers) == 0 {
		return Dims{}
	}
	return a.Layers[len(a.Layers)-1].OutDims()
}

// Matrix materializes l into a dense Out x In row-major field-element
// weight matrix plus an Out-length bias vector, fixed-point encoded under
// p. Conv2d, AvgPool, and Identity are all lowered to the same dense
// representation FullyConnected already uses, so the ACG engine (pkg/acg)
// only ever has to drive one code path regardless of layer kind (spec §9:
// generalize the closed variant one level further at the point ACG
// consumes it).
func (l *Linear) Matrix(p fixedpoint.Params) (weight []field.Elem, bias []field.Elem, cin, cout int, err error) {
	cin, cout = l.In.Size(), l.Out.Size()
	var w []float64
	var b []float64
	switch l.Kind {
	case KindConv2d:
		w, b, err = l.Conv.matrix(l.In.H, l.In.W)
	case KindFullyConnected:
		w, b = append([]float64(nil), l.FC.Weight...), append([]float64(nil), l.FC.Bias...)
	case KindAvgPool:
		w, b = avgPoolMatrix(l.In, l.PoolSize), make([]float64, cout)
	case KindIdentity:
		w, b = identityMatrix(cin), make([]float64, cout)
	default:
		return nil, nil, 0, 0, fmt.Errorf("nn: unknown linear kind %v", l.Kind)
	}
	if err != nil {
		return nil, nil, 0, 0, err
	}
	weight = make([]field.Elem, len(w))
	for i, x := range w {
		s, err := fixedpoint.Encode(p, x)
		if err != nil {
			return nil, nil, 0, 0, fmt.Errorf("nn: encode weight %d: %w", i, err)
		}
		weight[i] = s.Elem
	}
	bias = make([]field.Elem, len(b))
	for i, x := range b {
		s, err := fixedpoint.Encode(p, x)
		if err != nil {
			return nil, nil, 0, 0, fmt.Errorf("nn: encode bias %d: %w", i, err)
		}
		bias[i] = s.Elem
	}
	return weight, bias, cin, cout, nil
}

func convOutDim(in, k, stride int, pad Padding) int {
	if pad == PaddingSame {
		return (in + stride - 1) / stride
	}
	return (in-k)/stride + 1
}

func padBefore(in, out, k, stride int, pad Padding) int {
	if pad == PaddingValid {
		return 0
	}
	total := (out-1)*stride + k - in
	if total < 0 {
		total = 0
	}
	return total / 2
}

// matrix lowers a convolution into a dense (Cout*outH*outW) x
// (Cin*inH*inW) weight matrix and a per-output-pixel bias vector,
// im2col-style: row outIdx holds the kernel taps that contribute to that
// output pixel, zero elsewhere.
func (c *Conv2D) matrix(inH, inW int) ([]float64, []float64, error) {
	outH := convOutDim(inH, c.Kh, c.Stride, c.Padding)
	outW := convOutDim(inW, c.Kw, c.Stride, c.Padding)
	cin := c.Cin * inH * inW
	cout := c.Cout * outH * outW
	if len(c.Kernel) != c.Cout*c.Cin*c.Kh*c.Kw {
		return nil, nil, fmt.Errorf("nn: conv2d kernel has %d elements, want %d", len(c.Kernel), c.Cout*c.Cin*c.Kh*c.Kw)
	}
	w := make([]float64, cout*cin)
	padH := padBefore(inH, outH, c.Kh, c.Stride, c.Padding)
	padW := padBefore(inW, outW, c.Kw, c.Stride, c.Padding)
	for oc := 0; oc < c.Cout; oc++ {
		for oh := 0; oh < outH; oh++ {
			for ow := 0; ow < outW; ow++ {
				outIdx := (oc*outH+oh)*outW + ow
				for ic := 0; ic < c.Cin; ic++ {
					for kh := 0; kh < c.Kh; kh++ {
						ih := oh*c.Stride + kh - padH
						if ih < 0 || ih >= inH {
							continue
						}
						for kw := 0; kw < c.Kw; kw++ {
							iw := ow*c.Stride + kw - padW
							if iw < 0 || iw >= inW {
								continue
							}
							inIdx := (ic*inH+ih)*inW + iw
							kernelIdx := ((oc*c.Cin+ic)*c.Kh+kh)*c.Kw + kw
							w[outIdx*cin+inIdx] = c.Kernel[kernelIdx]
						}
					}
				}
			}
		}
	}
	bias := make([]float64, cout)
	if len(c.Bias) > 0 {
		for oc := 0; oc < c.Cout; oc++ {
			for px := 0; px < outH*outW; px++ {
				bias[oc*outH*outW+px] = c.Bias[oc]
			}
		}
	}
	return w, bias, nil
}

// avgPoolMatrix builds a non-overlapping k x k average-pool matrix over
// every channel independently.
func avgPoolMatrix(in Dims, k int) []float64 {
	outH, outW := in.H/k, in.W/k
	cin := in.C * in.H * in.W
	cout := in.C * outH * outW
	w := make([]float64, cout*cin)
	scale := 1.0 / float64(k*k)
	for c := 0; c < in.C; c++ {
		for oh := 0; oh < outH; oh++ {
			for ow := 0; ow < outW; ow++ {
				outIdx := (c*outH+oh)*outW + ow
				for kh := 0; kh < k; kh++ {
					for kw := 0; kw < k; kw++ {
						ih, iw := oh*k+kh, ow*k+kw
						inIdx := (c*in.H+ih)*in.W + iw
						w[outIdx*cin+inIdx] = scale
					}
				}
			}
		}
	}
	return w
}

func identityMatrix(n int) []float64 {
	w := make([]float64, n*n)
	for i := 0; i < n; i++ {
		w[i*n+i] = 1
	}
	return w
}
