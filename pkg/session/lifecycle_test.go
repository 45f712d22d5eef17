package session_test

import (
	"crypto/rand"
	"net"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/luxfi/secnn/pkg/nn"
	"github.com/luxfi/secnn/pkg/session"
)

// dial wires up a client/server session pair over an in-process pipe,
// driving both halves' key exchange concurrently since DialClient and
// AcceptServer each block on the other's first frame.
func dial(arch *nn.Architecture) (*session.ClientSession, *session.ServerSession) {
	clientConn, serverConn := net.Pipe()

	type serverResult struct {
		srv *session.ServerSession
		err error
	}
	done := make(chan serverResult, 1)
	go func() {
		srv, err := session.AcceptServer(serverConn, arch, 0)
		done <- serverResult{srv, err}
	}()

	cli, err := session.DialClient(clientConn, arch, false, 0)
	Expect(err).NotTo(HaveOccurred())

	res := <-done
	Expect(res.err).NotTo(HaveOccurred())
	return cli, res.srv
}

var _ = Describe("a full client/server session", func() {
	It("drives offline then online to a matching decoded result", func() {
		arch := nn.Model0()
		cli, srv := dial(arch)

		serverDone := make(chan error, 1)
		go func() {
			if err := srv.Offline(rand.Reader); err != nil {
				serverDone <- err
				return
			}
			serverDone <- srv.Online(rand.Reader)
		}()

		Expect(cli.Offline(rand.Reader)).To(Succeed())

		out, err := cli.Online([]float64{1, 2, 3, 4}, rand.Reader)
		Expect(err).NotTo(HaveOccurred())
		Expect(<-serverDone).NotTo(HaveOccurred())

		Expect(out).To(HaveLen(4))
		for i, want := range []float64{1, 2, 3, 4} {
			Expect(out[i]).To(BeNumerically("~", want, 1.0/8.0))
		}
	})

	It("reports matching byte counts on both ends after a round", func() {
		arch := nn.Model0()
		cli, srv := dial(arch)

		serverDone := make(chan error, 1)
		go func() {
			if err := srv.Offline(rand.Reader); err != nil {
				serverDone <- err
				return
			}
			serverDone <- srv.Online(rand.Reader)
		}()

		Expect(cli.Offline(rand.Reader)).To(Succeed())
		_, err := cli.Online([]float64{1, 2, 3, 4}, rand.Reader)
		Expect(err).NotTo(HaveOccurred())
		Expect(<-serverDone).NotTo(HaveOccurred())

		clientStats := cli.Stats()
		serverStats := srv.Stats()
		Expect(clientStats.BytesWritten).To(Equal(serverStats.BytesRead))
		Expect(serverStats.BytesWritten).To(Equal(clientStats.BytesRead))
		Expect(clientStats.BytesWritten).To(BeNumerically(">", 0))
	})
})
