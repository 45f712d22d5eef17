// Package paillier wires github.com/roasbeef/go-go-gadget-paillier in as
// the scalar AHE scheme used by the "ltme" input-auth optimisation (spec
// §4.8): the owner of a value encrypts each of its plain bits under its own
// Paillier key, and the peer homomorphically adds a random mask to each
// ciphertext and keeps the negated mask, leaving the two with additive
// shares of every bit (pkg/inputauth's LTMEOwner/LTMEPeer). No MAC
// ciphertext is exchanged: each side MAC-tags its shares locally
// afterwards with share.Tag. This
// mirrors how summitto-tlsnotaryserver uses a dedicated scalar homomorphic
// scheme (there, for the TLS pre-master-secret point addition) alongside
// the bulk garbled-circuit machinery rather than folding everything into
// one generic primitive.
package paillier

import (
	"crypto/rand"
	"fmt"
	"math/big"

	gadget "github.com/roasbeef/go-go-gadget-paillier"

	"github.com/luxfi/secnn/pkg/field"
)

const keyBits = 2048

// KeyPair holds a Paillier key pair. Public is safe to transmit; Private is
// never put on the wire.
type KeyPair struct {
	Private *gadget.PrivateKey
	Public  *gadget.PublicKey
}

// Generate samples a fresh Paillier key pair.
func Generate() (KeyPair, error) {
	priv, err := gadget.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return KeyPair{}, fmt.Errorf("paillier: keygen: %w", err)
	}
	return KeyPair{Private: priv, Public: &priv.PublicKey}, nil
}

// EncryptBit encrypts a single field element (LTMEOwner uses it for one
// plain bit of its value) under pub.
func EncryptBit(pub *gadget.PublicKey, v field.Elem) ([]byte, error) {
	ct, err := gadget.Encrypt(pub, new(big.Int).SetUint64(v.Uint64()).Bytes())
	if err != nil {
		return nil, fmt.Errorf("paillier: encrypt: %w", err)
	}
	return ct, nil
}

// DecryptBit recovers the field element encrypted by EncryptBit.
func DecryptBit(priv *gadget.PrivateKey, ct []byte) (field.Elem, error) {
	pt, err := gadget.Decrypt(priv, ct)
	if err != nil {
		return field.Elem{}, fmt.Errorf("paillier: decrypt: %w", err)
	}
	v := new(big.Int).SetBytes(pt)
	return field.FromUint64(reduceToField(v)), nil
}

// ApplyAdditiveTag homomorphically adds delta to the value encrypted in ct,
// without any further interaction; LTMEPeer uses it to mask each of the
// owner's encrypted bits with a random delta.
func ApplyAdditiveTag(pub *gadget.PublicKey, ct []byte, delta field.Elem) ([]byte, error) {
	deltaCt, err := gadget.Encrypt(pub, new(big.Int).SetUint64(delta.Uint64()).Bytes())
	if err != nil {
		return nil, fmt.Errorf("paillier: encrypt delta: %w", err)
	}
	return gadget.AddCipher(pub, ct, deltaCt), nil
}

func reduceToField(v *big.Int) uint64 {
	mod := new(big.Int).SetUint64(field.Modulus)
	r := new(big.Int).Mod(v, mod)
	return r.Uint64()
}
