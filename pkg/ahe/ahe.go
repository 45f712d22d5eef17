// Package ahe defines the additively-homomorphic encryption boundary used
// by the ACG linear engine (spec §4.3) and the MPC offline batch generator
// (spec §4.4). The specification treats the FHE primitive library as an
// external collaborator, specified only by its interface; this package is
// that interface, with two concrete backends behind it: a SIMD-packed
// lattice scheme (pkg/ahe/lattice, wrapping tuneinsight/lattigo's heint)
// used for tensor-shaped linear-layer correlations, and a scalar Paillier
// scheme (pkg/ahe/paillier) used by the "ltme" input-auth optimisation.
package ahe

import "github.com/luxfi/secnn/pkg/field"

// KeyPair holds one party's key material. Public is always safe to put on
// the wire; Secret never is.
type KeyPair struct {
	Public []byte
	Secret []byte
}

// Ciphertext is an opaque, scheme-specific byte blob. Every scheme in this
// package must round-trip it bit-exactly through MarshalBinary-shaped byte
// slices, per the wire codec's requirement that bulk payloads survive
// framing unmodified.
type Ciphertext struct {
	Bytes []byte
}

// Scheme is the additively-homomorphic interface shared by every backend.
// Implementations batch as many field elements per ciphertext as their
// underlying ring supports; callers that need exactly one slot per
// ciphertext (the Paillier backend) simply report a batch size of 1.
type Scheme interface {
	// BatchSize reports how many field elements one Ciphertext packs.
	BatchSize() int

	// GenerateKeyPair creates a fresh key pair for this scheme.
	GenerateKeyPair() (KeyPair, error)

	// NewEncryptor builds an encryptor bound to a (typically remote)
	// public key.
	NewEncryptor(public []byte) (Encryptor, error)

	// NewDecryptor builds a decryptor bound to a local key pair.
	NewDecryptor(kp KeyPair) (Decryptor, error)

	// NewEvaluator builds an evaluator that can combine ciphertexts
	// encrypted under the given public key homomorphically, without
	// access to any secret material.
	NewEvaluator(public []byte) (Evaluator, error)
}

// Encryptor turns batches of field elements into ciphertexts.
type Encryptor interface {
	Encrypt(values []field.Elem) (Ciphertext, error)
}

// Decryptor recovers field elements from a ciphertext produced under the
// matching key pair.
type Decryptor interface {
	Decrypt(ct Ciphertext) ([]field.Elem, error)
}

// Evaluator performs the homomorphic algebra needed by ACG and MPC-offline:
// ciphertext+ciphertext, ciphertext+plaintext, and plaintext·ciphertext.
// Every method returns a fresh Ciphertext; none mutates its arguments, so
// the same ciphertext may be reused across concurrent evaluator calls.
type Evaluator interface {
	Add(a, b Ciphertext) (Ciphertext, error)
	AddPlain(a Ciphertext, p []field.Elem) (Ciphertext, error)
	MulPlain(a Ciphertext, p []field.Elem) (Ciphertext, error)
	Neg(a Ciphertext) (Ciphertext, error)
}
