// Package keyexchange implements the one-round-trip AHE key exchange spec
// §4.2 requires before any offline-phase correlation can be generated:
// the client samples a fresh key pair for the session's chosen scheme and
// sends the public half, and, when the "ltme" input-auth variant is
// requested, also generates a Paillier key pair and sends its public key
// in the same hello. The server installs what it receives and generates
// no key pair of its own; it sends nothing back in this package (the
// server's reply on the wire is pkg/mpc's MAC-key handoff). This mirrors the single
// getSymmetricKeys exchange summitto-tlsnotaryserver's Session.Init
// performs before any protocol-specific state is built (src/session/session.go).
package keyexchange

import (
	"fmt"
	"math/big"

	gadget "github.com/roasbeef/go-go-gadget-paillier"

	"github.com/luxfi/secnn/pkg/ahe"
	"github.com/luxfi/secnn/pkg/ahe/paillier"
	"github.com/luxfi/secnn/pkg/errs"
)

// ClientHello is the first and only message the client sends to start a
// session: its AHE public key, and optionally a Paillier public key when
// the session negotiates the ltme input-auth optimisation.
type ClientHello struct {
	AHEPublic      []byte
	PaillierPublic []byte `cbor:",omitempty"`
}

// ClientState is what the client must retain after sending ClientHello in
// order to decrypt anything the server later returns under this key.
type ClientState struct {
	KeyPair         ahe.KeyPair
	PaillierPrivate *paillier.KeyPair
}

// Begin samples a fresh key pair (and, if useLTME, a Paillier key pair) and
// returns the hello message to send plus the state to retain.
func Begin(scheme ahe.Scheme, useLTME bool) (ClientHello, *ClientState, error) {
	kp, err := scheme.GenerateKeyPair()
	if err != nil {
		return ClientHello{}, nil, errs.Crypto(fmt.Errorf("keyexchange: generate ahe key pair: %w", err))
	}
	hello := ClientHello{AHEPublic: kp.Public}
	state := &ClientState{KeyPair: kp}

	if useLTME {
		pkp, err := paillier.Generate()
		if err != nil {
			return ClientHello{}, nil, errs.Crypto(fmt.Errorf("keyexchange: generate paillier key pair: %w", err))
		}
		hello.PaillierPublic = marshalPaillierPublic(pkp.Public)
		state.PaillierPrivate = &pkp
	}
	return hello, state, nil
}

// ServerState is what the server installs upon receiving a ClientHello: an
// encryptor and evaluator bound to the client's public key, ready to build
// ACG correlations and homomorphic MAC tags without ever seeing the secret
// key.
type ServerState struct {
	Encryptor      ahe.Encryptor
	Evaluator      ahe.Evaluator
	PaillierPublic *gadget.PublicKey
	usesLTME       bool
}

// Install processes a ClientHello on the server side.
func Install(scheme ahe.Scheme, hello ClientHello) (*ServerState, error) {
	enc, err := scheme.NewEncryptor(hello.AHEPublic)
	if err != nil {
		return nil, errs.Crypto(fmt.Errorf("keyexchange: install encryptor: %w", err))
	}
	eval, err := scheme.NewEvaluator(hello.AHEPublic)
	if err != nil {
		return nil, errs.Crypto(fmt.Errorf("keyexchange: install evaluator: %w", err))
	}
	st := &ServerState{Encryptor: enc, Evaluator: eval}
	if len(hello.PaillierPublic) > 0 {
		st.PaillierPublic = unmarshalPaillierPublic(hello.PaillierPublic)
		st.usesLTME = true
	}
	return st, nil
}

// UsesLTME reports whether the installed hello negotiated the Paillier
// optimised input-auth variant.
func (s *ServerState) UsesLTME() bool { return s.usesLTME }

// marshalPaillierPublic/unmarshalPaillierPublic carry only the modulus N
// across the wire; unmarshalPaillierPublic regenerates the derived fields
// (the generator N+1 and N-squared) from it rather than needing them to be
// part of the marshaled form.
func marshalPaillierPublic(pub *gadget.PublicKey) []byte {
	return pub.N.Bytes()
}

func unmarshalPaillierPublic(b []byte) *gadget.PublicKey {
	n := new(big.Int).SetBytes(b)
	return &gadget.PublicKey{
		N:        n,
		G:        new(big.Int).Add(n, big.NewInt(1)),
		NSquared: new(big.Int).Mul(n, n),
	}
}
