package gc

import (
	"fmt"
	"math/bits"

	"github.com/luxfi/secnn/pkg/field"
)

// fieldBits is the bit width of the field's canonical representatives: the
// smallest n with Modulus < 2^n. Every additive share handed to the garbled
// circuit is uniform over the whole field, so the circuit must reconstruct
// modulo p at this width, not at the fixed-point encoding's narrower width.
var fieldBits = bits.Len64(field.Modulus)

// FieldBits reports the per-activation input width BuildTruncatedReLU
// requires: ceil(log2 p), the width of a full canonical field element.
func FieldBits() int { return fieldBits }

// modulusBits returns field.Modulus's bit pattern as a garbler-constant
// vector of length n (LSB first), n >= fieldBits.
func modulusBits(n int) []bool {
	out := make([]bool, n)
	for i := 0; i < fieldBits; i++ {
		out[i] = (field.Modulus>>uint(i))&1 == 1
	}
	return out
}

// reduceModP takes the bits-wide sum of two canonical field shares plus its
// ripple-carry-out (together an integer T < 2*Modulus, since both addends
// are themselves canonical) and returns its bits-wide reduction mod p:
// T if T < p, else T-p. This is the one-step conditional subtraction
// field.Elem.Add performs natively in Go, expressed as a circuit so the
// garbled ReLU reconstructs the true shared value instead of its low bits.
func (b *Builder) reduceModP(sumBits []int, carryOut, bitsWide int) []int {
	full := append(append([]int(nil), sumBits...), carryOut)
	p := modulusBits(bitsWide + 1)
	pWires := b.GarblerInputBits(p)

	diff, sign := b.RippleSub(full, pWires)
	reduced := b.Mux(full, diff, sign)
	return reduced[:bitsWide]
}

// BuildTruncatedReLU constructs the per-activation circuit spec §4.6
// describes: given the garbler's own plaintext share of the pre-activation
// value (serverShareBits, known at garble time since the garbler holds it
// directly) and bits bits of evaluator input (the other party's matching
// share, delivered one label at a time via OT/CDS/input-auth), it
// reconstructs the shared value modulo the field's prime, applies ReLU by
// zeroing it out when negative, truncates away truncBits fractional bits,
// and re-masks the result by a fresh output randomizer rPrimeBits the
// garbler also already knows. bits must be wide enough to hold a full
// canonical field element (see fieldBits): both inputs are additive shares
// of a small signed value but are themselves uniform over the whole field,
// so the adder must reconstruct and reduce mod p before anything downstream
// can treat the result as the small encoded activation.
func BuildTruncatedReLU(bits, truncBits int, serverShareBits, rPrimeBits []bool) (*Circuit, error) {
	if len(serverShareBits) != bits || len(rPrimeBits) != bits {
		return nil, fmt.Errorf("gc: BuildTruncatedReLU: want %d bits, got share=%d rprime=%d", bits, len(serverShareBits), len(rPrimeBits))
	}
	if bits < fieldBits {
		return nil, fmt.Errorf("gc: BuildTruncatedReLU: %d bits is too narrow to reconstruct a full field share (need >= %d)", bits, fieldBits)
	}
	if truncBits < 0 || truncBits >= bits {
		return nil, fmt.Errorf("gc: BuildTruncatedReLU: truncBits %d out of range for %d bits", truncBits, bits)
	}

	b := NewBuilder()

	garblerShare := b.GarblerInputBits(serverShareBits)
	evaluatorShare := b.EvaluatorInputs(bits)

	sumBits, carryOut := b.RippleAdd(garblerShare, evaluatorShare)
	dBits := b.reduceModP(sumBits, carryOut, bits)
	sign := dBits[bits-1]

	relu := b.MuxZero(dBits, sign)

	truncated := make([]int, bits)
	for i := 0; i < bits-truncBits; i++ {
		truncated[i] = relu[i+truncBits]
	}
	for i := bits - truncBits; i < bits; i++ {
		truncated[i] = b.GarblerInput(false)
	}

	rPrime := b.GarblerInputBits(rPrimeBits)
	outBits, _ := b.RippleAdd(truncated, rPrime)

	return b.Build(outBits), nil
}
