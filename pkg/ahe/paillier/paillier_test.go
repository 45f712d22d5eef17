package paillier_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/secnn/pkg/ahe/paillier"
	"github.com/luxfi/secnn/pkg/field"
)

func TestEncryptDecryptBitRoundTrip(t *testing.T) {
	kp, err := paillier.Generate()
	require.NoError(t, err)

	for _, v := range []field.Elem{field.Zero, field.One} {
		ct, err := paillier.EncryptBit(kp.Public, v)
		require.NoError(t, err)
		got, err := paillier.DecryptBit(kp.Private, ct)
		require.NoError(t, err)
		require.True(t, got.Equal(v))
	}
}

func TestApplyAdditiveTag(t *testing.T) {
	kp, err := paillier.Generate()
	require.NoError(t, err)

	v := field.FromUint64(1)
	delta := field.FromUint64(5)
	ct, err := paillier.EncryptBit(kp.Public, v)
	require.NoError(t, err)

	masked, err := paillier.ApplyAdditiveTag(kp.Public, ct, delta)
	require.NoError(t, err)

	got, err := paillier.DecryptBit(kp.Private, masked)
	require.NoError(t, err)
	require.True(t, got.Equal(v.Add(delta)))
}
