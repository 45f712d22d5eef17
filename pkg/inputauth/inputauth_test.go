package inputauth_test

import (
	"crypto/rand"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/secnn/pkg/ahe/lattice"
	"github.com/luxfi/secnn/pkg/ahe/paillier"
	"github.com/luxfi/secnn/pkg/field"
	"github.com/luxfi/secnn/pkg/inputauth"
	"github.com/luxfi/secnn/pkg/share"
)

func TestDecomposeBitsRecomposeRoundTrip(t *testing.T) {
	v := field.FromUint64(173)
	bits := inputauth.DecomposeBits(v, 16)
	require.Len(t, bits, 16)
	got := inputauth.Recompose(bits)
	require.True(t, got.Equal(v))
}

func TestGenericOwnerAndPeerAgreeOnBitShares(t *testing.T) {
	const numBits = 8
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
	alpha, err := field.Random(rand.Reader)
	require.NoError(t, err)

	value := field.FromUint64(42)
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	type ownerResult struct {
		bits []field.Elem
		own  []share.Auth
		err  error
	}
	done := make(chan ownerResult, 1)
	go func() {
		bits, own, err := inputauth.GenericOwner(clientConn, enc, dec, scheme.BatchSize(), value, numBits)
		done <- ownerResult{bits, own, err}
	}()

	peerShares, err := inputauth.GenericPeer(serverConn, eval, alpha, scheme.BatchSize(), numBits, rand.Reader)
	require.NoError(t, err)

	res := <-done
	require.NoError(t, res.err)
	require.Len(t, peerShares, numBits)
	require.Len(t, res.own, numBits)

	for i, bit := range res.bits {
		reconstructed := res.own[i].Value.Value.Add(peerShares[i])
		require.True(t, reconstructed.Equal(bit))
	}
}

func TestLTMEOwnerAndPeerAgreeOnBitShares(t *testing.T) {
	const numBits = 8
	kp, err := paillier.Generate()
	require.NoError(t, err)
	value := field.FromUint64(91)

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	type ownerResult struct {
		shares []field.Elem
		err    error
	}
	done := make(chan ownerResult, 1)
	go func() {
		shares, err := inputauth.LTMEOwner(clientConn, &kp, value, numBits)
		done <- ownerResult{shares, err}
	}()

	peerShares, err := inputauth.LTMEPeer(serverConn, kp.Public, numBits, rand.Reader)
	require.NoError(t, err)

	res := <-done
	require.NoError(t, res.err)

	wantBits := inputauth.DecomposeBits(value, numBits)
	for i := range wantBits {
		got := res.shares[i].Add(peerShares[i])
		require.True(t, got.Equal(wantBits[i]))
	}
}
