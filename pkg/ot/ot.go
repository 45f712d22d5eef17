// Package ot implements a Diffie-Hellman base oblivious transfer over
// ristretto255, grounded on avahowell-occlude's ECDH key-exchange style
// (random scalar sampling via FromUniformBytes, ScalarMult/ScalarBaseMult,
// and an HKDF-derived symmetric key). It is the primitive spec §4.6/§4.8
// mean by "OT-delivered input labels": the garbler is the OT sender with
// the two wire labels of one evaluator-input bit as its two secrets, and
// the evaluator is the OT receiver choosing by the bit it actually holds.
//
// This is a base (non-extended) OT: one DH exchange per bit. The real
// system would run an OT-extension protocol to amortise this over
// thousands of bits; that optimisation is out of scope for this
// repository (spec's garbling/CDS/input-auth sections already cover the
// bit volumes the rest of this repo needs).
package ot

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	ristretto "github.com/gtank/ristretto255"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/sha3"
)

// Message is a sender's pair of secrets offered for one OT instance.
type Message struct {
	Zero []byte
	One  []byte
}

// SenderState is the first-message state a sender holds between its Offer
// and the receiver's response.
type SenderState struct {
	a *ristretto.Scalar
	A *ristretto.Element
	m Message
}

// Offer starts an OT instance: the sender commits to its base point A=g^a
// and remembers its two secrets.
func Offer(m Message) (*SenderState, []byte, error) {
	a, err := randomScalar()
	if err != nil {
		return nil, nil, err
	}
	A := ristretto.NewElement().ScalarBaseMult(a)
	return &SenderState{a: a, A: A, m: m}, A.Encode(nil), nil
}

// Choose is the receiver's response to an Offer: given its choice bit and
// the sender's A, it returns its own public point B and remembers enough
// to derive the key for its chosen secret once ciphertexts arrive.
type ReceiverState struct {
	b      *ristretto.Scalar
	A      *ristretto.Element
	choice bool
}

func Choose(senderA []byte, choice bool) (*ReceiverState, []byte, error) {
	A := ristretto.NewElement()
	if err := A.Decode(senderA); err != nil {
		return nil, nil, fmt.Errorf("ot: decode sender point: %w", err)
	}
	b, err := randomScalar()
	if err != nil {
		return nil, nil, err
	}
	B := ristretto.NewElement().ScalarBaseMult(b)
	if choice {
		B = ristretto.NewElement().Add(B, A)
	}
	return &ReceiverState{b: b, A: A, choice: choice}, B.Encode(nil), nil
}

// CipherPair is what the sender ships back after seeing the receiver's B:
// two independently keyed encryptions of its two secrets.
type CipherPair struct {
	Zero []byte
	One  []byte
}

// Respond derives the two per-branch keys from the sender's secret exponent
// and B, and encrypts each secret under its matching key.
func (s *SenderState) Respond(receiverB []byte) (CipherPair, error) {
	B := ristretto.NewElement()
	if err := B.Decode(receiverB); err != nil {
		return CipherPair{}, fmt.Errorf("ot: decode receiver point: %w", err)
	}

	k0, err := deriveKey(ristretto.NewElement().ScalarMult(s.a, B))
	if err != nil {
		return CipherPair{}, err
	}
	BminusA := ristretto.NewElement().Subtract(B, s.A)
	k1, err := deriveKey(ristretto.NewElement().ScalarMult(s.a, BminusA))
	if err != nil {
		return CipherPair{}, err
	}

	zeroCT, err := seal(k0, s.m.Zero)
	if err != nil {
		return CipherPair{}, err
	}
	oneCT, err := seal(k1, s.m.One)
	if err != nil {
		return CipherPair{}, err
	}
	return CipherPair{Zero: zeroCT, One: oneCT}, nil
}

// Reveal decrypts the branch the receiver chose, the only one it can open.
func (r *ReceiverState) Reveal(pair CipherPair) ([]byte, error) {
	k, err := deriveKey(ristretto.NewElement().ScalarMult(r.b, r.A))
	if err != nil {
		return nil, err
	}
	ct := pair.Zero
	if r.choice {
		ct = pair.One
	}
	return open(k, ct)
}

func randomScalar() (*ristretto.Scalar, error) {
	b := make([]byte, 64)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, fmt.Errorf("ot: entropy: %w", err)
	}
	return ristretto.NewScalar().FromUniformBytes(b), nil
}

func deriveKey(shared *ristretto.Element) ([]byte, error) {
	h := hkdf.New(sha3.New512, shared.Encode(nil), nil, []byte("secnn-ot-label-key"))
	key := make([]byte, 32)
	if _, err := io.ReadFull(h, key); err != nil {
		return nil, fmt.Errorf("ot: key derivation: %w", err)
	}
	return key, nil
}

func seal(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func open(key, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ot: ciphertext too short")
	}
	nonce, ct := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ct, nil)
}
