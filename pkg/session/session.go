// Package session is the top-level driver both the client and server sides
// of secnn-cli run: it sequences spec §4.2's key exchange, the MAC-key
// handoff (pkg/mpc), and the offline/online calls into pkg/orchestrator,
// wrapping the connection in a byte-counted reader/writer the whole way so
// a caller can report how much was sent each phase. This mirrors
// summitto-tlsnotaryserver's Session type (src/session/session.go): one
// struct owning a connection's whole lifecycle from handshake through to
// teardown, rather than leaving every caller to repeat the sequencing.
package session

import (
	"io"

	"github.com/luxfi/secnn/pkg/ahe"
	"github.com/luxfi/secnn/pkg/ahe/lattice"
	"github.com/luxfi/secnn/pkg/errs"
	"github.com/luxfi/secnn/pkg/field"
	"github.com/luxfi/secnn/pkg/keyexchange"
	"github.com/luxfi/secnn/pkg/mpc"
	"github.com/luxfi/secnn/pkg/nn"
	"github.com/luxfi/secnn/pkg/orchestrator"
	"github.com/luxfi/secnn/pkg/wire"
)

// countingRW wraps an io.ReadWriter, tallying bytes written and read through
// independent counters so a session can report upload/download totals
// without the wire codec needing to know about either.
type countingRW struct {
	rw       io.ReadWriter
	written  wire.ByteCounter
	received wire.ByteCounter
}

func newCountingRW(rw io.ReadWriter, limit uint64) *countingRW {
	c := &countingRW{rw: rw}
	c.written.Limit = limit
	c.received.Limit = limit
	return c
}

func (c *countingRW) Write(p []byte) (int, error) {
	n, err := c.rw.Write(p)
	c.written.Write(p[:n])
	return n, err
}

func (c *countingRW) Read(p []byte) (int, error) {
	n, err := c.rw.Read(p)
	if n > 0 {
		c.received.Write(p[:n])
	}
	return n, err
}

// Stats reports the cumulative bytes a Session has moved in each direction,
// printed by the CLI's offline and online subcommands (spec §6).
type Stats struct {
	BytesWritten uint64
	BytesRead    uint64
}

// ClientSession is one client's view of a full protocol run against a
// single server connection.
type ClientSession struct {
	conn  *countingRW
	arch  *nn.Architecture
	alpha field.Elem
	enc   ahe.Encryptor
	dec   ahe.Decryptor
	batch int
	off   *orchestrator.ClientOffline
}

// DialClient performs spec §4.2's key exchange and MAC handoff over conn
// and returns a ready-to-drive ClientSession for arch. useLTME makes the
// hello also carry a Paillier public key (keyexchange.Begin); it does not
// change the protocol run afterwards, which uses the generic
// input-authentication variant either way (spec §4.8); byteLimit
// bounds the session's total traffic in either direction (0 uses
// wire.ByteCounter's default).
func DialClient(conn io.ReadWriter, arch *nn.Architecture, useLTME bool, byteLimit uint64) (*ClientSession, error) {
	scheme, err := lattice.New()
	if err != nil {
		return nil, errs.Crypto(err)
	}
	cc := newCountingRW(conn, byteLimit)

	hello, state, err := keyexchange.Begin(scheme, useLTME)
	if err != nil {
		return nil, err
	}
	if err := wire.WriteFrame(cc, hello); err != nil {
		return nil, err
	}

	var alphaMsg mpc.AlphaMsg
	if err := wire.ReadFrame(cc, &alphaMsg); err != nil {
		return nil, err
	}
	dec, err := scheme.NewDecryptor(state.KeyPair)
	if err != nil {
		return nil, errs.Crypto(err)
	}
	alpha, err := mpc.ClientRecoverAlpha(dec, alphaMsg.Alpha)
	if err != nil {
		return nil, err
	}
	enc, err := scheme.NewEncryptor(state.KeyPair.Public)
	if err != nil {
		return nil, errs.Crypto(err)
	}

	return &ClientSession{
		conn:  cc,
		arch:  arch,
		alpha: alpha,
		enc:   enc,
		dec:   dec,
		batch: scheme.BatchSize(),
	}, nil
}

// Offline drives the client's entire offline phase (every layer's ACG
// correlation and, for ReLU layers, nothing further since the client holds
// no offline-generatable state of its own for them).
func (s *ClientSession) Offline(rnd io.Reader) error {
	off, err := orchestrator.RunClientOffline(s.conn, s.enc, s.dec, s.batch, s.arch, rnd)
	if err != nil {
		return err
	}
	s.off = off
	return nil
}

// Online drives the client's online phase against input, returning the
// network's decoded output once the final authenticated open succeeds.
func (s *ClientSession) Online(input []float64, rnd io.Reader) ([]float64, error) {
	return orchestrator.RunClientOnline(s.conn, s.alpha, s.enc, s.dec, s.batch, s.arch, s.off, input, rnd)
}

// Stats reports the session's cumulative traffic so far.
func (s *ClientSession) Stats() Stats {
	return Stats{BytesWritten: s.conn.written.Total(), BytesRead: s.conn.received.Total()}
}

// ServerSession is the server's view of a full protocol run against a
// single client connection.
type ServerSession struct {
	conn  *countingRW
	arch  *nn.Architecture
	alpha field.Elem
	eval  ahe.Evaluator
	batch int
	off   *orchestrator.ServerOffline
}

// AcceptServer is DialClient's server-side counterpart: it reads the
// client's hello, installs the AHE key, draws and hands off the session's
// MAC key, and returns a ready-to-drive ServerSession.
func AcceptServer(conn io.ReadWriter, arch *nn.Architecture, byteLimit uint64) (*ServerSession, error) {
	scheme, err := lattice.New()
	if err != nil {
		return nil, errs.Crypto(err)
	}
	cc := newCountingRW(conn, byteLimit)

	var hello keyexchange.ClientHello
	if err := wire.ReadFrame(cc, &hello); err != nil {
		return nil, err
	}
	state, err := keyexchange.Install(scheme, hello)
	if err != nil {
		return nil, err
	}

	alpha, ct, err := mpc.ServerIssueAlpha(state.Encryptor)
	if err != nil {
		return nil, err
	}
	if err := wire.WriteFrame(cc, mpc.AlphaMsg{Alpha: ct}); err != nil {
		return nil, err
	}

	return &ServerSession{
		conn:  cc,
		arch:  arch,
		alpha: alpha,
		eval:  state.Evaluator,
		batch: scheme.BatchSize(),
	}, nil
}

// Offline drives the server's entire offline phase.
func (s *ServerSession) Offline(rnd io.Reader) error {
	off, err := orchestrator.RunServerOffline(s.conn, s.eval, s.alpha, s.batch, s.arch, rnd)
	if err != nil {
		return err
	}
	s.off = off
	return nil
}

// Online drives the server's online phase to completion; the network's
// output is never revealed to the server, only the client (spec §3).
func (s *ServerSession) Online(rnd io.Reader) error {
	return orchestrator.RunServerOnline(s.conn, s.alpha, s.eval, s.batch, s.arch, s.off, rnd)
}

// Stats reports the session's cumulative traffic so far.
func (s *ServerSession) Stats() Stats {
	return Stats{BytesWritten: s.conn.written.Total(), BytesRead: s.conn.received.Total()}
}
