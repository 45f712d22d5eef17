package acg_test

import (
	"crypto/rand"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/secnn/pkg/acg"
	"github.com/luxfi/secnn/pkg/ahe/lattice"
	"github.com/luxfi/secnn/pkg/field"
	"github.com/luxfi/secnn/pkg/share"
)

func TestRunClientServerCorrelateOnWeightDotRandomizer(t *testing.T) {
	const cin, cout = 3, 2
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

	weight := make([]field.Elem, cout*cin)
	for i := range weight {
		weight[i] = field.FromUint64(uint64(i + 1))
	}

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	type clientResult struct {
		r   []field.Elem
		out []share.Auth
		err error
	}
	done := make(chan clientResult, 1)
	go func() {
		r, out, err := acg.RunClient(clientConn, enc, dec, scheme.BatchSize(), cin, cout, rand.Reader)
		done <- clientResult{r, out, err}
	}()

	s, err := acg.RunServer(serverConn, eval, alpha, weight, scheme.BatchSize(), cin, cout, rand.Reader)
	require.NoError(t, err)

	res := <-done
	require.NoError(t, res.err)
	require.Len(t, res.out, cout)
	require.Len(t, s, cout)

	for j := 0; j < cout; j++ {
		want := field.Zero
		for i := 0; i < cin; i++ {
			want = want.Add(weight[j*cin+i].Mul(res.r[i]))
		}

		gotValue := res.out[j].Value.Value.Add(s[j])
		require.True(t, gotValue.Equal(want), "output %d: value mismatch", j)

		gotMAC := res.out[j].MAC.Value.Add(alpha.Mul(s[j]))
		require.True(t, gotMAC.Equal(alpha.Mul(want)), "output %d: mac mismatch", j)
	}
}
