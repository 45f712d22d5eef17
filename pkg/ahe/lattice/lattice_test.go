package lattice_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/secnn/pkg/ahe/lattice"
	"github.com/luxfi/secnn/pkg/field"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	scheme, err := lattice.New()
	require.NoError(t, err)
	kp, err := scheme.GenerateKeyPair()
	require.NoError(t, err)
	enc, err := scheme.NewEncryptor(kp.Public)
	require.NoError(t, err)
	dec, err := scheme.NewDecryptor(kp)
	require.NoError(t, err)

	values := []field.Elem{field.FromUint64(3), field.FromUint64(9), field.FromUint64(27)}
	ct, err := enc.Encrypt(values)
	require.NoError(t, err)

	got, err := dec.Decrypt(ct)
	require.NoError(t, err)
	for i, v := range values {
		require.True(t, got[i].Equal(v), "slot %d", i)
	}
}

func TestHomomorphicAddAndMulPlain(t *testing.T) {
	scheme, err := lattice.New()
	require.NoError(t, err)
	kp, err := scheme.GenerateKeyPair()
	require.NoError(t, err)
	enc, err := scheme.NewEncryptor(kp.Public)
	require.NoError(t, err)
	dec, err := scheme.NewDecryptor(kp)
	require.NoError(t, err)
	eval, err := scheme.NewEvaluator(kp.Public)
	require.NoError(t, err)

	a := []field.Elem{field.FromUint64(4), field.FromUint64(5)}
	b := []field.Elem{field.FromUint64(10), field.FromUint64(20)}
	ctA, err := enc.Encrypt(a)
	require.NoError(t, err)
	ctB, err := enc.Encrypt(b)
	require.NoError(t, err)

	sum, err := eval.Add(ctA, ctB)
	require.NoError(t, err)
	gotSum, err := dec.Decrypt(sum)
	require.NoError(t, err)
	require.True(t, gotSum[0].Equal(field.FromUint64(14)))
	require.True(t, gotSum[1].Equal(field.FromUint64(25)))

	scaled, err := eval.MulPlain(ctA, []field.Elem{field.FromUint64(2), field.FromUint64(3)})
	require.NoError(t, err)
	gotScaled, err := dec.Decrypt(scaled)
	require.NoError(t, err)
	require.True(t, gotScaled[0].Equal(field.FromUint64(8)))
	require.True(t, gotScaled[1].Equal(field.FromUint64(15)))
}
