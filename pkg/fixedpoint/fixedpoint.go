// Package fixedpoint implements the signed fixed-point encoding that both
// parties use to interpret field elements as real-valued activations. The
// (mantissa, exponent) pair and the truncation rule are shared verbatim
// between the plaintext encoder and the truncated-ReLU garbled circuit, so
// a single definition here backs both.
package fixedpoint

import (
	"fmt"
	"math"

	"github.com/luxfi/secnn/pkg/field"
)

// Params parameterises the encoding: a signed fraction is represented with
// MantissaBits bits below the point and ExponentBits bits of integer range
// above it, mirroring the "ten-bit" configuration (3 mantissa, 8 exponent)
// used throughout the reference benchmarks this protocol is modeled on.
type Params struct {
	MantissaBits uint8
	ExponentBits uint8
}

// Default matches the reference suite's TenBitExpParams.
var Default = Params{MantissaBits: 3, ExponentBits: 8}

// TotalBits is the number of bits of precision carried below the
// field-element's sign. Encode scales by 2^MantissaBits and uses TotalBits
// only for its range check, [-2^(TotalBits-1), 2^(TotalBits-1)).
func (p Params) TotalBits() uint8 { return p.MantissaBits + p.ExponentBits }

// Scalar is a fixed-point value, always carried as a field element; the
// Params used to produce it travel alongside at the call site rather than
// being embedded, so that a whole tensor can share one Params value cheaply.
type Scalar struct {
	Elem field.Elem
}

// Encode maps a real value x into F by scaling by 2^MantissaBits and
// rounding to the nearest integer, then reducing into the field the way a
// negative two's-complement value maps to p-|x|.
func Encode(p Params, x float64) (Scalar, error) {
	scale := math.Pow(2, float64(p.MantissaBits))
	limit := math.Pow(2, float64(p.TotalBits()-1))
	scaled := math.Round(x * scale)
	if scaled >= limit || scaled < -limit {
		return Scalar{}, fmt.Errorf("fixedpoint: %v overflows %d-bit range", x, p.TotalBits())
	}
	return Scalar{Elem: field.FromInt64(int64(scaled))}, nil
}

// TruncateFloat rounds x to the nearest representable value without
// encoding it, mirroring the reference suite's truncate_float helper used
// to generate reproducible test fixtures.
func TruncateFloat(p Params, x float64) float64 {
	scale := math.Pow(2, float64(p.MantissaBits))
	return math.Round(x*scale) / scale
}

// Decode reverses Encode, interpreting e's canonical representative as a
// signed integer (see signedValue) before unscaling by 2^MantissaBits.
func Decode(p Params, e field.Elem) float64 {
	return float64(signedValue(p, e)) / math.Pow(2, float64(p.MantissaBits))
}

// signedValue interprets e as a signed integer by which half of F it lies
// in, independent of p: representatives above Modulus/2 (close to the
// modulus) are negative values near zero.
func signedValue(p Params, e field.Elem) int64 {
	half := field.Modulus / 2
	v := e.Uint64()
	if v > half {
		return -int64(field.Modulus - v)
	}
	return int64(v)
}

// Truncate applies the fixed-point truncation rule in the clear: given a
// product of two MantissaBits-scaled values (so scaled by
// 2^(2*MantissaBits)), shift right by MantissaBits to return to
// single-scale fixed point. Encode does not call it, and the garbled ReLU
// circuit (pkg/gc) performs its own shift. Because this divides a *field*
// element rather than an integer, the caller passes the sign so that a
// negative value is shifted by magnitude and rounds towards zero.
func Truncate(p Params, e field.Elem, negative bool) field.Elem {
	v := e.Uint64()
	if negative {
		v = field.Modulus - v
	}
	v >>= p.MantissaBits
	if negative {
		return field.FromUint64(v).Neg()
	}
	return field.FromUint64(v)
}
