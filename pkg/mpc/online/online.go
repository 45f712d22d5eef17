// Package online implements the authenticated-share primitives spec §4.5
// lists as the MPC substrate every higher protocol (pkg/acg, pkg/cds,
// pkg/inputauth) is built from: share_private, the local add/mul_const
// already on share.Auth, a Beaver mul(), and a MAC-checked open(). Add and
// MulConst need no networking at all (share.Auth already implements
// them); this package only has to add the two operations that do:
// committing a private value, and combining/opening shares interactively.
package online

import (
	"fmt"
	"io"

	"github.com/luxfi/secnn/pkg/errs"
	"github.com/luxfi/secnn/pkg/field"
	"github.com/luxfi/secnn/pkg/share"
	"github.com/luxfi/secnn/pkg/wire"
)

// Channel is the minimal duplex message transport a Session drives one
// frame at a time; one stream of a *wire.Mux (via NewMuxChannel) and any
// io.ReadWriter (via NewWireChannel) can both be adapted to it.
type Channel interface {
	Send(v interface{}) error
	Recv(v interface{}) error
}

// wireChannel adapts a blocking io.ReadWriter using the plain length-
// prefixed frame codec (pkg/wire's WriteFrame/ReadFrame).
type wireChannel struct{ rw io.ReadWriter }

// NewWireChannel wraps rw as a Channel.
func NewWireChannel(rw io.ReadWriter) Channel { return &wireChannel{rw: rw} }

func (c *wireChannel) Send(v interface{}) error { return wire.WriteFrame(c.rw, v) }
func (c *wireChannel) Recv(v interface{}) error { return wire.ReadFrame(c.rw, v) }

// muxChannel adapts one logical stream of a *wire.Mux.
type muxChannel struct {
	mux    *wire.Mux
	stream int
}

// NewMuxChannel wraps one stream of mux as a Channel.
func NewMuxChannel(mux *wire.Mux, stream int) Channel {
	return &muxChannel{mux: mux, stream: stream}
}

func (c *muxChannel) Send(v interface{}) error { return c.mux.SendFrame(c.stream, v) }
func (c *muxChannel) Recv(v interface{}) error { return c.mux.RecvFrame(c.stream, v) }

// Triple is one Beaver triple of authenticated shares, c = a times b, each
// party holding its own half of all three (pkg/mpc/offline produces
// these).
type Triple struct {
	A, B, C share.Auth
}

// Session is one party's view of the online authenticated-MPC substrate,
// parameterised by the session-wide MAC key both parties hold (pkg/mpc).
type Session struct {
	Alpha field.Elem
	Ch    Channel
	Rand  io.Reader
}

// New builds a Session over ch, authenticating against alpha.
func New(alpha field.Elem, ch Channel, rnd io.Reader) *Session {
	return &Session{Alpha: alpha, Ch: ch, Rand: rnd}
}

type valueMsg struct{ V field.Elem }

// ShareOwn privately commits value, a value only this party knows, into
// an authenticated share pair: it sends the peer a uniformly random half
// and keeps the complementary half, tagging both with alpha locally (spec
// §4.5 share_private; see DESIGN.md for why no HE/OT round is needed once
// both parties already hold alpha).
func (s *Session) ShareOwn(value field.Elem) (share.Auth, error) {
	peerShare, err := field.Random(s.Rand)
	if err != nil {
		return share.Auth{}, errs.Crypto(fmt.Errorf("mpc/online: sample peer share: %w", err))
	}
	mine := value.Sub(peerShare)
	if err := s.Ch.Send(valueMsg{V: peerShare}); err != nil {
		return share.Auth{}, err
	}
	return share.Tag(s.Alpha, mine), nil
}

// ShareTheirs receives the counterpart's half of a value the peer is
// committing via its own ShareOwn call.
func (s *Session) ShareTheirs() (share.Auth, error) {
	var m valueMsg
	if err := s.Ch.Recv(&m); err != nil {
		return share.Auth{}, err
	}
	return share.Tag(s.Alpha, m.V), nil
}

type openMsg struct{ Value, MAC field.Elem }

// Open reveals x by exchanging both parties' value and MAC shares and
// verifying the reconstructed MAC equals alpha times the reconstructed
// value (spec §4.5 open(): "the party receiving the value recomputes
// α·value from its MAC share and verifies equality"). A mismatch means
// the peer tampered with its broadcast share and is reported as
// errs.MAC, the one error class spec §7 calls out as indicating an
// actively cheating counterpart rather than a bug. Both parties call Open
// at the same time, so the send runs concurrently with the receive; over
// an unbuffered transport two blocking sends would otherwise wait on each
// other forever.
func (s *Session) Open(x share.Auth) (field.Elem, error) {
	sent := make(chan error, 1)
	go func() { sent <- s.Ch.Send(openMsg{Value: x.Value.Value, MAC: x.MAC.Value}) }()
	var peer openMsg
	if err := s.Ch.Recv(&peer); err != nil {
		return field.Elem{}, err
	}
	if err := <-sent; err != nil {
		return field.Elem{}, err
	}
	value := x.Value.Value.Add(peer.Value)
	mac := x.MAC.Value.Add(peer.MAC)
	if !mac.Equal(s.Alpha.Mul(value)) {
		return field.Elem{}, errs.MAC(fmt.Errorf("mpc/online: MAC check failed on open"))
	}
	return value, nil
}

// Mul consumes one Beaver triple to produce an authenticated share of
// x*y (spec §4.5 mul()): both parties blind x and y by the triple's a, b,
// publicly open the two differences, then recombine locally. leader
// decides which single party folds the public d*e cross term into its
// own value AND MAC share — exactly one party, since d*e must only be
// added to the aggregate once, or the reconstructed MAC no longer equals
// alpha times the reconstructed value.
func (s *Session) Mul(leader bool, x, y share.Auth, t Triple) (share.Auth, error) {
	d, err := s.Open(x.Sub(t.A))
	if err != nil {
		return share.Auth{}, err
	}
	e, err := s.Open(y.Sub(t.B))
	if err != nil {
		return share.Auth{}, err
	}
	z := t.C.Add(t.B.MulConst(d)).Add(t.A.MulConst(e))
	de := d.Mul(e)
	valueDelta, macDelta := field.Zero, field.Zero
	if leader {
		valueDelta = de
		macDelta = s.Alpha.Mul(de)
	}
	return z.AddConst(valueDelta, macDelta), nil
}
