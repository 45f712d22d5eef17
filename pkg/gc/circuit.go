package gc

// GateType is one of the two primitive boolean gates this engine garbles
// directly. Free-XOR makes XOR gates free (no ciphertext, no evaluation
// work beyond a label XOR); AND is the only gate that needs a garbled row.
type GateType int

const (
	GateXOR GateType = iota
	GateAND
)

// Gate is a single two-input gate over wire indices into a Circuit's wire
// table. Wires are numbered so that every gate's inputs have a strictly
// smaller index than its output, which lets both Garble and Evaluate walk
// the gate list in order with no separate topological sort.
type Gate struct {
	Type   GateType
	A, B   int
	Output int
}

// Circuit is a boolean circuit built by Builder. GarblerWires and
// EvaluatorWires list, in allocation order, the wire index and (for
// garbler wires) fixed value of every input; they may be interleaved with
// each other and with internal gate wires, so neither is assumed to occupy
// a contiguous prefix of the wire table. OutputWires names the final
// result wires in output order, LSB first.
type Circuit struct {
	NumWires int
	Gates    []Gate

	GarblerWires    []int
	GarblerValues   []bool
	EvaluatorWires  []int
	OutputWires     []int
}

func (c *Circuit) NumGarblerInputs() int   { return len(c.GarblerWires) }
func (c *Circuit) NumEvaluatorInputs() int { return len(c.EvaluatorWires) }

// Builder constructs a Circuit gate by gate. Garbler-input wires are
// allocated with a concrete boolean value (the garbler always knows its own
// inputs); evaluator-input wires are allocated without one.
type Builder struct {
	numWires int

	garblerWires  []int
	garblerValues []bool
	evalWires     []int
	gates         []Gate

	constTrue     int
	haveConstTrue bool
}

func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) newWire() int {
	w := b.numWires
	b.numWires++
	return w
}

// GarblerInput allocates a new wire whose value is fixed to v and known to
// the garbler at garble time.
func (b *Builder) GarblerInput(v bool) int {
	w := b.newWire()
	b.garblerWires = append(b.garblerWires, w)
	b.garblerValues = append(b.garblerValues, v)
	return w
}

// GarblerInputBits allocates len(bits) garbler-input wires in order, LSB
// first, returning their wire indices.
func (b *Builder) GarblerInputBits(bits []bool) []int {
	out := make([]int, len(bits))
	for i, v := range bits {
		out[i] = b.GarblerInput(v)
	}
	return out
}

// EvaluatorInput allocates a new wire whose value will be supplied by the
// evaluator at evaluation time; the builder does not know it.
func (b *Builder) EvaluatorInput() int {
	w := b.newWire()
	b.evalWires = append(b.evalWires, w)
	return w
}

// EvaluatorInputs allocates n evaluator-input wires, LSB first.
func (b *Builder) EvaluatorInputs(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = b.EvaluatorInput()
	}
	return out
}

func (b *Builder) gate(t GateType, a, c int) int {
	w := b.newWire()
	b.gates = append(b.gates, Gate{Type: t, A: a, B: c, Output: w})
	return w
}

func (b *Builder) XOR(a, c int) int { return b.gate(GateXOR, a, c) }
func (b *Builder) AND(a, c int) int { return b.gate(GateAND, a, c) }

// NOT is XOR against the builder's single constant-true garbler wire,
// created lazily so every circuit pays for it at most once.
func (b *Builder) NOT(a int) int {
	if !b.haveConstTrue {
		b.constTrue = b.GarblerInput(true)
		b.haveConstTrue = true
	}
	return b.XOR(a, b.constTrue)
}

// HalfAdder returns (sum, carry) for a+b.
func (b *Builder) HalfAdder(a, c int) (sum, carry int) {
	return b.XOR(a, c), b.AND(a, c)
}

// FullAdder returns (sum, carry) for a+c+cin.
func (b *Builder) FullAdder(a, c, cin int) (sum, carry int) {
	s1, c1 := b.HalfAdder(a, c)
	s2, c2 := b.HalfAdder(s1, cin)
	return s2, b.XOR(c1, c2)
}

// RippleAdd adds two equal-length bit vectors (LSB first) and returns the
// sum bits and the final carry-out. The ReLU circuit feeds the carry-out of
// its share-reconstruction adder into the mod-p reduction and discards the
// carry-out of its re-masking adder.
func (b *Builder) RippleAdd(a, c []int) (sum []int, carryOut int) {
	if len(a) != len(c) {
		panic("gc: RippleAdd operand length mismatch")
	}
	sum = make([]int, len(a))
	carry := -1
	for i := range a {
		if carry < 0 {
			sum[i], carry = b.HalfAdder(a[i], c[i])
		} else {
			sum[i], carry = b.FullAdder(a[i], c[i], carry)
		}
	}
	return sum, carry
}

// TwosComplement negates a bit vector (LSB first): invert every bit and add
// one, the standard construction for turning a ripple adder into a
// subtractor.
func (b *Builder) TwosComplement(bits []int) []int {
	inv := make([]int, len(bits))
	for i, w := range bits {
		inv[i] = b.NOT(w)
	}
	one := make([]int, len(bits))
	one[0] = b.GarblerInput(true)
	for i := 1; i < len(one); i++ {
		one[i] = b.GarblerInput(false)
	}
	sum, _ := b.RippleAdd(inv, one)
	return sum
}

// RippleSub computes a-c via two's complement addition and returns the
// difference bits and the sign bit (the top bit of the result, 1 when a<c
// in the signed interpretation the ReLU circuit uses).
func (b *Builder) RippleSub(a, c []int) (diff []int, sign int) {
	negC := b.TwosComplement(c)
	sum, _ := b.RippleAdd(a, negC)
	return sum, sum[len(sum)-1]
}

// MuxZero zero-fills bits when cond is true, passing them through unchanged
// otherwise: out_i = AND(bits_i, NOT(cond)).
func (b *Builder) MuxZero(bits []int, cond int) []int {
	notCond := b.NOT(cond)
	out := make([]int, len(bits))
	for i, w := range bits {
		out[i] = b.AND(w, notCond)
	}
	return out
}

// Mux selects aBits when cond is true and bBits otherwise, bit by bit:
// out_i = b_i XOR (cond AND (a_i XOR b_i)). Used wherever a circuit needs to
// choose between two whole computed values rather than zero-fill one of them.
func (b *Builder) Mux(aBits, bBits []int, cond int) []int {
	if len(aBits) != len(bBits) {
		panic("gc: Mux operand length mismatch")
	}
	out := make([]int, len(aBits))
	for i := range aBits {
		diff := b.XOR(aBits[i], bBits[i])
		out[i] = b.XOR(bBits[i], b.AND(cond, diff))
	}
	return out
}

// Build finalises the circuit; outputWires names the result wires, LSB
// first, in evaluation order.
func (b *Builder) Build(outputWires []int) *Circuit {
	return &Circuit{
		NumWires:       b.numWires,
		Gates:          b.gates,
		GarblerWires:   append([]int(nil), b.garblerWires...),
		GarblerValues:  append([]bool(nil), b.garblerValues...),
		EvaluatorWires: append([]int(nil), b.evalWires...),
		OutputWires:    outputWires,
	}
}
