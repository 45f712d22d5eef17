package gc

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/zeebo/blake3"
)

// Label is a 128-bit garbled-circuit wire label. Its low bit is the
// point-and-permute "color" used to index the correct garbled-table row
// without leaking which value it encodes.
type Label [16]byte

func (l Label) color() byte { return l[15] & 1 }

// MarshalBinary implements encoding.BinaryMarshaler so Label round-trips
// through the wire codec as a 16-byte string rather than the codec's
// default fixed-array encoding.
func (l Label) MarshalBinary() ([]byte, error) { return l[:], nil }

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (l *Label) UnmarshalBinary(b []byte) error {
	if len(b) != 16 {
		return fmt.Errorf("gc: label must be 16 bytes, got %d", len(b))
	}
	copy(l[:], b)
	return nil
}

// xor returns l XOR o.
func (l Label) xor(o Label) Label {
	var out Label
	for i := range out {
		out[i] = l[i] ^ o[i]
	}
	return out
}

func randomLabel() (Label, error) {
	var l Label
	if _, err := io.ReadFull(rand.Reader, l[:]); err != nil {
		return Label{}, err
	}
	return l, nil
}

// hashLabels derives the pad used to encrypt a garbled-table row from the
// two input labels and the gate's index, via blake3 keyed on a per-circuit
// session tweak (so two circuits garbled with the same random global offset
// never reuse a pad).
func hashLabels(tweak []byte, gate int, a, b Label) Label {
	h := blake3.New()
	h.Write(tweak)
	var idx [8]byte
	binary.LittleEndian.PutUint64(idx[:], uint64(gate))
	h.Write(idx[:])
	h.Write(a[:])
	h.Write(b[:])
	sum := h.Sum(nil)
	var out Label
	copy(out[:], sum[:16])
	return out
}
