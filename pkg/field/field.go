// Package field implements the prime field F that every share, MAC, and
// fixed-point scalar in this repository is reduced into. It is the
// external-interface-only boundary named by the specification: the
// protocol layers above only ever see the Elem type and its arithmetic
// surface, never a concrete bignum library.
package field

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"io"
	"math/bits"
)

// Modulus is the field's prime, 2^61-1, a Mersenne prime comfortably inside
// a near-Mersenne 63-bit budget. Its special shape lets Reduce avoid a full
// division on the hot path shared by every linear layer and MAC check.
const Modulus uint64 = (1 << 61) - 1

const modulusBits = 61

// Elem is an element of F, always held in canonical form: 0 <= v < Modulus.
type Elem struct {
	v uint64
}

// Zero is the additive identity.
var Zero = Elem{0}

// One is the multiplicative identity.
var One = Elem{1}

// FromUint64 reduces x into F.
func FromUint64(x uint64) Elem {
	return reduce128(0, x)
}

// FromInt64 reduces a signed integer into F, mapping negative values to
// their additive inverse the way a two's-complement-to-field encoder would.
func FromInt64(x int64) Elem {
	if x >= 0 {
		return FromUint64(uint64(x))
	}
	return FromUint64(uint64(-x)).Neg()
}

// Random samples a uniform element of F using a cryptographically secure
// source, rejecting the small bias region above the largest multiple of
// Modulus that fits in 64 bits.
func Random(rnd io.Reader) (Elem, error) {
	if rnd == nil {
		rnd = rand.Reader
	}
	// largest value < 2^64 that keeps [0, limit) uniform mod Modulus.
	limit := (^uint64(0) / Modulus) * Modulus
	var buf [8]byte
	for {
		if _, err := io.ReadFull(rnd, buf[:]); err != nil {
			return Elem{}, err
		}
		x := binary.LittleEndian.Uint64(buf[:])
		if x < limit {
			return Elem{x % Modulus}, nil
		}
	}
}

// MustRandom is Random with crypto/rand and a panic on entropy failure; used
// by offline generators where an I/O failure on the local RNG is not a
// protocol-level condition worth propagating as a typed error.
func MustRandom() Elem {
	e, err := Random(rand.Reader)
	if err != nil {
		panic("field: entropy source failed: " + err.Error())
	}
	return e
}

// Uint64 returns the canonical representative in [0, Modulus).
func (e Elem) Uint64() uint64 { return e.v }

// IsZero reports whether e is the additive identity.
func (e Elem) IsZero() bool { return e.v == 0 }

// Add returns e+o mod p.
func (e Elem) Add(o Elem) Elem {
	s := e.v + o.v
	if s >= Modulus {
		s -= Modulus
	}
	return Elem{s}
}

// Sub returns e-o mod p.
func (e Elem) Sub(o Elem) Elem {
	if e.v >= o.v {
		return Elem{e.v - o.v}
	}
	return Elem{Modulus - o.v + e.v}
}

// Neg returns -e mod p.
func (e Elem) Neg() Elem {
	if e.v == 0 {
		return e
	}
	return Elem{Modulus - e.v}
}

// Mul returns e*o mod p using the Mersenne-prime fold: a 128-bit product
// reduces to two ~61-bit halves that are simply added back together.
func (e Elem) Mul(o Elem) Elem {
	hi, lo := bits.Mul64(e.v, o.v)
	return reduce128(hi, lo)
}

// reduce128 folds a 128-bit value (hi:lo) modulo 2^61-1. Since both inputs
// to every caller are themselves < Modulus, hi < 2^58 and this never loses
// bits when shifted.
func reduce128(hi, lo uint64) Elem {
	low61 := lo & Modulus
	upper := (lo >> modulusBits) | (hi << (64 - modulusBits)) // value >> 61
	sum := low61 + upper
	for sum >= Modulus {
		sum -= Modulus
	}
	return Elem{sum}
}

// MulConst is an alias of Mul kept for call-site clarity where one operand
// is a known-public scalar (spec's mul_const).
func (e Elem) MulConst(c Elem) Elem { return e.Mul(c) }

// Bytes returns the canonical little-endian 8-byte encoding of e, matching
// the wire framing's "field elements encoded as little-endian p-sized
// integers" rule.
func (e Elem) Bytes() []byte {
	out := make([]byte, 8)
	binary.LittleEndian.PutUint64(out, e.v)
	return out
}

// FromBytes decodes the canonical little-endian 8-byte encoding produced by
// Bytes, failing on out-of-range values so that no non-canonical element
// is ever accepted off the wire.
func FromBytes(b []byte) (Elem, error) {
	if len(b) != 8 {
		return Elem{}, errors.New("field: encoded element must be 8 bytes")
	}
	v := binary.LittleEndian.Uint64(b)
	if v >= Modulus {
		return Elem{}, errors.New("field: encoded element is not canonically reduced")
	}
	return Elem{v}, nil
}

// Equal reports whether e and o are the same field element.
func (e Elem) Equal(o Elem) bool { return e.v == o.v }

// MarshalBinary implements encoding.BinaryMarshaler so that a bare Elem
// embedded in a wire message struct (e.g. mpc/online's valueMsg/openMsg)
// round-trips through the cbor codec: Elem's only field is unexported, so
// without this the canonical field-element encoding below is what the
// codec actually sees instead of an empty record.
func (e Elem) MarshalBinary() ([]byte, error) { return e.Bytes(), nil }

// UnmarshalBinary implements encoding.BinaryUnmarshaler, the decode side of
// MarshalBinary.
func (e *Elem) UnmarshalBinary(b []byte) error {
	v, err := FromBytes(b)
	if err != nil {
		return err
	}
	*e = v
	return nil
}
