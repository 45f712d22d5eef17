// Package lattice wires github.com/tuneinsight/lattigo/v5's integer scheme
// (he/heint, a batched BGV variant) in as the concrete AHE backend for the
// ACG linear engine and the MPC offline batch generator. One ciphertext
// packs an entire SIMD slot vector, matching spec §4.4's "internally it
// uses SIMD-packed AHE ciphertexts".
//
// The scheme's plaintext modulus is fixed to this repository's field
// modulus so that a slot holds exactly one field.Elem with no additional
// reduction step; this is a larger plaintext modulus than heint is usually
// parameterised with; it is not a concern here since ciphertext noise
// growth and circuit depth are the FHE library's problem, excluded from
// this repository per spec §1.
package lattice

import (
	"fmt"

	"github.com/tuneinsight/lattigo/v5/core/rlwe"
	"github.com/tuneinsight/lattigo/v5/he/heint"

	"github.com/luxfi/secnn/pkg/ahe"
	"github.com/luxfi/secnn/pkg/field"
)

// literal picks ring dimension / modulus chain parameters large enough to
// host the field's 61-bit plaintext modulus with headroom for the
// plaintext multiplications (MulPlain) ACG performs per output: one by a
// weight row and one by alpha.
var literal = heint.ParametersLiteral{
	LogN: 13,
	LogQ: []int{54, 54},
	LogP: []int{55},
	T:    field.Modulus,
}

// Scheme implements ahe.Scheme over heint.
type Scheme struct {
	params heint.Parameters
}

// New constructs the lattice-backed AHE scheme.
func New() (*Scheme, error) {
	params, err := heint.NewParametersFromLiteral(literal)
	if err != nil {
		return nil, fmt.Errorf("lattice: parameter generation: %w", err)
	}
	return &Scheme{params: params}, nil
}

// BatchSize reports the number of plaintext slots per ciphertext.
func (s *Scheme) BatchSize() int { return s.params.MaxSlots() }

// GenerateKeyPair samples a fresh secret/public key pair and serialises
// both halves for transport; the secret half never leaves the party that
// generated it except over this struct's Secret field, which callers must
// not put on the wire.
func (s *Scheme) GenerateKeyPair() (ahe.KeyPair, error) {
	kgen := heint.NewKeyGenerator(s.params)
	sk, pk := kgen.GenKeyPairNew()

	skBytes, err := sk.MarshalBinary()
	if err != nil {
		return ahe.KeyPair{}, fmt.Errorf("lattice: marshal secret key: %w", err)
	}
	pkBytes, err := pk.MarshalBinary()
	if err != nil {
		return ahe.KeyPair{}, fmt.Errorf("lattice: marshal public key: %w", err)
	}
	return ahe.KeyPair{Public: pkBytes, Secret: skBytes}, nil
}

// NewEncryptor builds an encryptor bound to a remote public key.
func (s *Scheme) NewEncryptor(public []byte) (ahe.Encryptor, error) {
	pk := new(rlwe.PublicKey)
	if err := pk.UnmarshalBinary(public); err != nil {
		return nil, fmt.Errorf("lattice: unmarshal public key: %w", err)
	}
	return &encryptor{
		params: s.params,
		enc:    heint.NewEncryptor(s.params, pk),
		ecd:    heint.NewEncoder(s.params),
	}, nil
}

// NewDecryptor builds a decryptor bound to a local key pair.
func (s *Scheme) NewDecryptor(kp ahe.KeyPair) (ahe.Decryptor, error) {
	sk := new(rlwe.SecretKey)
	if err := sk.UnmarshalBinary(kp.Secret); err != nil {
		return nil, fmt.Errorf("lattice: unmarshal secret key: %w", err)
	}
	return &decryptor{
		params: s.params,
		dec:    heint.NewDecryptor(s.params, sk),
		ecd:    heint.NewEncoder(s.params),
	}, nil
}

// NewEvaluator builds a plaintext-only-key evaluator: additions and
// plaintext multiplications never require a relinearisation key.
func (s *Scheme) NewEvaluator(public []byte) (ahe.Evaluator, error) {
	pk := new(rlwe.PublicKey)
	if err := pk.UnmarshalBinary(public); err != nil {
		return nil, fmt.Errorf("lattice: unmarshal public key: %w", err)
	}
	return &evaluator{
		params: s.params,
		eval:   heint.NewEvaluator(s.params, nil),
		ecd:    heint.NewEncoder(s.params),
	}, nil
}

type encryptor struct {
	params heint.Parameters
	enc    *rlwe.Encryptor
	ecd    *heint.Encoder
}

func (e *encryptor) Encrypt(values []field.Elem) (ahe.Ciphertext, error) {
	ints := toInts(values)
	pt := heint.NewPlaintext(e.params, e.params.MaxLevel())
	if err := e.ecd.Encode(ints, pt); err != nil {
		return ahe.Ciphertext{}, fmt.Errorf("lattice: encode: %w", err)
	}
	ct, err := e.enc.EncryptNew(pt)
	if err != nil {
		return ahe.Ciphertext{}, fmt.Errorf("lattice: encrypt: %w", err)
	}
	raw, err := ct.MarshalBinary()
	if err != nil {
		return ahe.Ciphertext{}, fmt.Errorf("lattice: marshal ciphertext: %w", err)
	}
	return ahe.Ciphertext{Bytes: raw}, nil
}

type decryptor struct {
	params heint.Parameters
	dec    *rlwe.Decryptor
	ecd    *heint.Encoder
}

func (d *decryptor) Decrypt(ct ahe.Ciphertext) ([]field.Elem, error) {
	rct := new(rlwe.Ciphertext)
	if err := rct.UnmarshalBinary(ct.Bytes); err != nil {
		return nil, fmt.Errorf("lattice: unmarshal ciphertext: %w", err)
	}
	pt := d.dec.DecryptNew(rct)
	ints := make([]uint64, d.params.MaxSlots())
	if err := d.ecd.Decode(pt, ints); err != nil {
		return nil, fmt.Errorf("lattice: decode: %w", err)
	}
	return fromInts(ints), nil
}

type evaluator struct {
	params heint.Parameters
	eval   *heint.Evaluator
	ecd    *heint.Encoder
}

func (e *evaluator) unmarshal(ct ahe.Ciphertext) (*rlwe.Ciphertext, error) {
	rct := new(rlwe.Ciphertext)
	if err := rct.UnmarshalBinary(ct.Bytes); err != nil {
		return nil, fmt.Errorf("lattice: unmarshal ciphertext: %w", err)
	}
	return rct, nil
}

func (e *evaluator) marshal(ct *rlwe.Ciphertext) (ahe.Ciphertext, error) {
	raw, err := ct.MarshalBinary()
	if err != nil {
		return ahe.Ciphertext{}, fmt.Errorf("lattice: marshal ciphertext: %w", err)
	}
	return ahe.Ciphertext{Bytes: raw}, nil
}

func (e *evaluator) Add(a, b ahe.Ciphertext) (ahe.Ciphertext, error) {
	ra, err := e.unmarshal(a)
	if err != nil {
		return ahe.Ciphertext{}, err
	}
	rb, err := e.unmarshal(b)
	if err != nil {
		return ahe.Ciphertext{}, err
	}
	out, err := e.eval.AddNew(ra, rb)
	if err != nil {
		return ahe.Ciphertext{}, fmt.Errorf("lattice: add: %w", err)
	}
	return e.marshal(out)
}

func (e *evaluator) AddPlain(a ahe.Ciphertext, p []field.Elem) (ahe.Ciphertext, error) {
	ra, err := e.unmarshal(a)
	if err != nil {
		return ahe.Ciphertext{}, err
	}
	pt := heint.NewPlaintext(e.params, ra.Level())
	if err := e.ecd.Encode(toInts(p), pt); err != nil {
		return ahe.Ciphertext{}, fmt.Errorf("lattice: encode: %w", err)
	}
	out, err := e.eval.AddNew(ra, pt)
	if err != nil {
		return ahe.Ciphertext{}, fmt.Errorf("lattice: add plain: %w", err)
	}
	return e.marshal(out)
}

func (e *evaluator) MulPlain(a ahe.Ciphertext, p []field.Elem) (ahe.Ciphertext, error) {
	ra, err := e.unmarshal(a)
	if err != nil {
		return ahe.Ciphertext{}, err
	}
	pt := heint.NewPlaintext(e.params, ra.Level())
	if err := e.ecd.Encode(toInts(p), pt); err != nil {
		return ahe.Ciphertext{}, fmt.Errorf("lattice: encode: %w", err)
	}
	out, err := e.eval.MulNew(ra, pt)
	if err != nil {
		return ahe.Ciphertext{}, fmt.Errorf("lattice: mul plain: %w", err)
	}
	return e.marshal(out)
}

func (e *evaluator) Neg(a ahe.Ciphertext) (ahe.Ciphertext, error) {
	ra, err := e.unmarshal(a)
	if err != nil {
		return ahe.Ciphertext{}, err
	}
	out := ra.CopyNew()
	e.eval.Neg(ra, out)
	return e.marshal(out)
}

func toInts(values []field.Elem) []uint64 {
	out := make([]uint64, len(values))
	for i, v := range values {
		out[i] = v.Uint64()
	}
	return out
}

func fromInts(values []uint64) []field.Elem {
	out := make([]field.Elem, len(values))
	for i, v := range values {
		out[i] = field.FromUint64(v)
	}
	return out
}
