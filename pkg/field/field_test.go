package field_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/secnn/pkg/field"
)

func TestAddSubNegIdentities(t *testing.T) {
	a := field.FromUint64(12345)
	b := field.FromUint64(67890)

	assert.True(t, a.Add(b).Sub(b).Equal(a))
	assert.True(t, a.Add(a.Neg()).Equal(field.Zero))
	assert.True(t, a.Add(field.Zero).Equal(a))
}

func TestMulWrapsModulus(t *testing.T) {
	max := field.FromUint64(field.Modulus - 1)
	two := field.FromUint64(2)
	got := max.Mul(two)
	want := field.FromUint64(field.Modulus - 2) // (p-1)*2 mod p = p-2
	assert.True(t, got.Equal(want), "got %d want %d", got.Uint64(), want.Uint64())
}

func TestMulAgainstBigInt(t *testing.T) {
	bigMod := new(big.Int).SetUint64(field.Modulus)
	cases := []uint64{0, 1, 2, field.Modulus - 1, field.Modulus / 2, 1 << 40, (1 << 61) - 2}
	for _, a := range cases {
		for _, b := range cases {
			got := field.FromUint64(a).Mul(field.FromUint64(b))
			want := new(big.Int).Mul(new(big.Int).SetUint64(a), new(big.Int).SetUint64(b))
			want.Mod(want, bigMod)
			assert.Equal(t, want.Uint64(), got.Uint64())
		}
	}
}

func TestBytesRoundTrip(t *testing.T) {
	e := field.FromUint64(field.Modulus - 7)
	b := e.Bytes()
	require.Len(t, b, 8)
	got, err := field.FromBytes(b)
	require.NoError(t, err)
	assert.True(t, got.Equal(e))
}

func TestFromBytesRejectsNonCanonical(t *testing.T) {
	b := make([]byte, 8)
	for i := range b {
		b[i] = 0xFF
	}
	_, err := field.FromBytes(b)
	assert.Error(t, err)
}

func TestRandomIsInRange(t *testing.T) {
	for i := 0; i < 100; i++ {
		e := field.MustRandom()
		assert.Less(t, e.Uint64(), field.Modulus)
	}
}

func TestFromInt64Negative(t *testing.T) {
	a := field.FromInt64(-5)
	b := field.FromUint64(5)
	assert.True(t, a.Add(b).Equal(field.Zero))
}
