// Package inputauth implements spec §4.8's two input-authentication
// variants: taking a value one party already knows in full (in
// pkg/orchestrator, the client's own additive share of a pre-activation
// value, about to be fed bit-by-bit into a garbled circuit as evaluator
// input) and producing authenticated shares
// of every bit, so pkg/cds can later bind those bits back to the value's
// already-established authenticated share and catch a party that feeds
// the garbled circuit inconsistent input.
//
// The generic variant is literally pkg/acg's Conv2d/FullyConnected dance
// specialised to an identity weight matrix: the "layer" being evaluated
// homomorphically is just "copy each randomizer bit through," batched
// into one round trip across all bits of one activation. The ltme
// variant (spec's Paillier-based optimisation) does the same thing one
// scalar ciphertext at a time under the lighter-weight Paillier scheme
// instead of the full lattice AHE batch machinery, trading the one
// round-trip batching for a much smaller per-ciphertext cost — the right
// trade when, as here, bits vastly outnumber activations.
package inputauth

import (
	"fmt"
	"io"

	gadget "github.com/roasbeef/go-go-gadget-paillier"

	"github.com/luxfi/secnn/pkg/acg"
	"github.com/luxfi/secnn/pkg/ahe"
	"github.com/luxfi/secnn/pkg/ahe/paillier"
	"github.com/luxfi/secnn/pkg/errs"
	"github.com/luxfi/secnn/pkg/field"
	"github.com/luxfi/secnn/pkg/share"
	"github.com/luxfi/secnn/pkg/wire"
)

// DecomposeBits splits v into numBits field elements, each 0 or 1, LSB
// first, matching the bit order pkg/gc's ripple-adder circuits consume.
func DecomposeBits(v field.Elem, numBits int) []field.Elem {
	bits := make([]field.Elem, numBits)
	u := v.Uint64()
	for i := 0; i < numBits; i++ {
		if (u>>uint(i))&1 == 1 {
			bits[i] = field.One
		} else {
			bits[i] = field.Zero
		}
	}
	return bits
}

// Recompose reassembles bits (LSB first) into the field element they
// encode, the inverse of DecomposeBits. No other package calls it.
func Recompose(bits []field.Elem) field.Elem {
	acc := field.Zero
	pow := field.One
	two := field.FromUint64(2)
	for _, b := range bits {
		acc = acc.Add(b.Mul(pow))
		pow = pow.Mul(two)
	}
	return acc
}

func identity(n int) []field.Elem {
	w := make([]field.Elem, n*n)
	for i := 0; i < n; i++ {
		w[i*n+i] = field.One
	}
	return w
}

// GenericOwner runs the owning party's side of the generic variant: it
// decomposes value (which it alone knows) into numBits bits and returns
// an authenticated share of each, reusing pkg/acg's Conv2d/FullyConnected
// round trip with an identity weight matrix so every bit of one
// activation is authenticated in a single batched exchange.
func GenericOwner(rw io.ReadWriter, enc ahe.Encryptor, dec ahe.Decryptor, batchSize int, value field.Elem, numBits int) ([]field.Elem, []share.Auth, error) {
	bits := DecomposeBits(value, numBits)
	out, err := acg.RunClientWithValue(rw, enc, dec, batchSize, bits)
	if err != nil {
		return nil, nil, err
	}
	return bits, out, nil
}

// GenericPeer is the non-owning party's side: it supplies the identity
// weight matrix over acg's homomorphic machinery and returns its own
// share of every bit.
func GenericPeer(rw io.ReadWriter, eval ahe.Evaluator, alpha field.Elem, batchSize, numBits int, rnd io.Reader) ([]field.Elem, error) {
	return acg.RunServer(rw, eval, alpha, identity(numBits), batchSize, numBits, numBits, rnd)
}

// ltmeMsg carries one bit's Paillier ciphertext across the wire.
type ltmeMsg struct {
	Bits [][]byte
}

type ltmeResp struct {
	Bits [][]byte
}

// LTMEOwner runs the owning party's side of the Paillier-optimised
// variant: it encrypts each bit of value under its own Paillier key
// (established during key exchange) and recovers its share once the peer
// replies with the masked ciphertexts.
func LTMEOwner(rw io.ReadWriter, priv *paillier.KeyPair, value field.Elem, numBits int) ([]field.Elem, error) {
	bits := DecomposeBits(value, numBits)
	req := ltmeMsg{Bits: make([][]byte, numBits)}
	for i, b := range bits {
		ct, err := paillier.EncryptBit(priv.Public, b)
		if err != nil {
			return nil, errs.Crypto(fmt.Errorf("inputauth: ltme encrypt bit %d: %w", i, err))
		}
		req.Bits[i] = ct
	}
	if err := wire.WriteFrame(rw, req); err != nil {
		return nil, err
	}

	var resp ltmeResp
	if err := wire.ReadFrame(rw, &resp); err != nil {
		return nil, err
	}
	if len(resp.Bits) != numBits {
		return nil, errs.Decode(fmt.Errorf("inputauth: ltme expected %d bits, got %d", numBits, len(resp.Bits)))
	}
	own := make([]field.Elem, numBits)
	for i, ct := range resp.Bits {
		v, err := paillier.DecryptBit(priv.Private, ct)
		if err != nil {
			return nil, errs.Crypto(fmt.Errorf("inputauth: ltme decrypt bit %d: %w", i, err))
		}
		own[i] = v
	}
	return own, nil
}

// LTMEPeer is the non-owning party's side: it homomorphically masks each
// received ciphertext with a fresh random delta and keeps -delta as its
// own share. pub is the owner's Paillier public key, received during key
// exchange (keyexchange.ServerState.PaillierPublic).
func LTMEPeer(rw io.ReadWriter, pub *gadget.PublicKey, numBits int, rnd io.Reader) ([]field.Elem, error) {
	var req ltmeMsg
	if err := wire.ReadFrame(rw, &req); err != nil {
		return nil, err
	}
	if len(req.Bits) != numBits {
		return nil, errs.Decode(fmt.Errorf("inputauth: ltme expected %d bits, got %d", numBits, len(req.Bits)))
	}
	own := make([]field.Elem, numBits)
	resp := ltmeResp{Bits: make([][]byte, numBits)}
	for i, ct := range req.Bits {
		delta, err := field.Random(rnd)
		if err != nil {
			return nil, errs.Crypto(fmt.Errorf("inputauth: ltme sample delta %d: %w", i, err))
		}
		own[i] = delta.Neg()
		masked, err := paillier.ApplyAdditiveTag(pub, ct, delta)
		if err != nil {
			return nil, errs.Crypto(fmt.Errorf("inputauth: ltme apply tag %d: %w", i, err))
		}
		resp.Bits[i] = masked
	}
	if err := wire.WriteFrame(rw, resp); err != nil {
		return nil, err
	}
	return own, nil
}

// Tag locally authenticates every bit share in shares under alpha,
// turning LTMEOwner/LTMEPeer's plain additive output into the
// authenticated shares the rest of the protocol (CDS, GC evaluator-input
// delivery) expects.
func Tag(alpha field.Elem, shares []field.Elem) []share.Auth {
	out := make([]share.Auth, len(shares))
	for i, v := range shares {
		out[i] = share.Tag(alpha, v)
	}
	return out
}
