package online_test

import (
	"crypto/rand"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/secnn/pkg/errs"
	"github.com/luxfi/secnn/pkg/field"
	"github.com/luxfi/secnn/pkg/mpc/online"
	"github.com/luxfi/secnn/pkg/share"
)

func newSessionPair() (*online.Session, *online.Session, func()) {
	alpha := field.FromUint64(91)
	clientConn, serverConn := net.Pipe()
	client := online.New(alpha, online.NewWireChannel(clientConn), rand.Reader)
	server := online.New(alpha, online.NewWireChannel(serverConn), rand.Reader)
	return client, server, func() {
		clientConn.Close()
		serverConn.Close()
	}
}

func TestShareOwnAndShareTheirsReconstruct(t *testing.T) {
	client, server, cleanup := newSessionPair()
	defer cleanup()

	v := field.FromUint64(42)
	done := make(chan share.Auth, 1)
	errCh := make(chan error, 1)
	go func() {
		s, err := client.ShareOwn(v)
		done <- s
		errCh <- err
	}()

	serverShare, err := server.ShareTheirs()
	require.NoError(t, err)
	require.NoError(t, <-errCh)
	clientShare := <-done

	value := share.Reconstruct(clientShare.Value, serverShare.Value)
	require.True(t, value.Equal(v))
}

func TestOpenReconstructsAndVerifiesMAC(t *testing.T) {
	client, server, cleanup := newSessionPair()
	defer cleanup()

	alpha := field.FromUint64(91)
	v := field.FromUint64(13)
	clientHalf := field.FromUint64(5)
	serverHalf := v.Sub(clientHalf)
	clientShare := share.Tag(alpha, clientHalf)
	serverShare := share.Tag(alpha, serverHalf)

	done := make(chan struct {
		v   field.Elem
		err error
	}, 1)
	go func() {
		v, err := client.Open(clientShare)
		done <- struct {
			v   field.Elem
			err error
		}{v, err}
	}()

	got, err := server.Open(serverShare)
	require.NoError(t, err)
	require.True(t, got.Equal(v))

	res := <-done
	require.NoError(t, res.err)
	require.True(t, res.v.Equal(v))
}

func TestOpenFailsOnTamperedShare(t *testing.T) {
	client, server, cleanup := newSessionPair()
	defer cleanup()

	alpha := field.FromUint64(91)
	clientShare := share.Tag(alpha, field.FromUint64(3))
	serverShare := share.Tag(alpha, field.FromUint64(4))
	// Tamper with the client's value share without updating its MAC share.
	clientShare.Value.Value = clientShare.Value.Value.Add(field.One)

	errCh := make(chan error, 1)
	go func() {
		_, err := client.Open(clientShare)
		errCh <- err
	}()

	_, serverErr := server.Open(serverShare)
	require.Error(t, serverErr)
	require.True(t, errs.IsMACFailure(serverErr))
	<-errCh
}

func TestMulProducesShareOfProduct(t *testing.T) {
	client, server, cleanup := newSessionPair()
	defer cleanup()

	alpha := field.FromUint64(91)
	x := field.FromUint64(6)
	y := field.FromUint64(7)
	a := field.FromUint64(2)
	b := field.FromUint64(3)
	c := a.Mul(b)

	split := func(v field.Elem) (share.Auth, share.Auth) {
		clientHalf := field.FromUint64(1)
		serverHalf := v.Sub(clientHalf)
		return share.Tag(alpha, clientHalf), share.Tag(alpha, serverHalf)
	}
	clientX, serverX := split(x)
	clientY, serverY := split(y)
	clientA, serverA := split(a)
	clientB, serverB := split(b)
	clientC, serverC := split(c)

	clientTriple := online.Triple{A: clientA, B: clientB, C: clientC}
	serverTriple := online.Triple{A: serverA, B: serverB, C: serverC}

	type result struct {
		s   share.Auth
		err error
	}
	done := make(chan result, 1)
	go func() {
		s, err := client.Mul(true, clientX, clientY, clientTriple)
		done <- result{s, err}
	}()

	serverZ, err := server.Mul(false, serverX, serverY, serverTriple)
	require.NoError(t, err)

	res := <-done
	require.NoError(t, res.err)

	value := share.Reconstruct(res.s.Value, serverZ.Value)
	mac := share.Reconstruct(res.s.MAC, serverZ.MAC)
	require.True(t, value.Equal(x.Mul(y)))
	require.True(t, mac.Equal(alpha.Mul(x.Mul(y))))
}
