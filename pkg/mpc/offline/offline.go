// Package offline implements the batched Beaver-triple and random-share
// generator spec §4.4 describes: a constant number of rounds regardless
// of batch size, reusing the additively-homomorphic cross-term trick
// pkg/acg applies to whole matrices here for plain scalar products. Every
// triple is independent, so a batch could be split across workers; this
// package itself runs each batch over the single io.ReadWriter it is given.
package offline

import (
	"fmt"
	"io"

	"github.com/luxfi/secnn/pkg/ahe"
	"github.com/luxfi/secnn/pkg/errs"
	"github.com/luxfi/secnn/pkg/field"
	"github.com/luxfi/secnn/pkg/mpc/online"
	"github.com/luxfi/secnn/pkg/share"
	"github.com/luxfi/secnn/pkg/wire"
)

// Triple is an alias of online.Triple so callers never need to import
// both packages just to pass triples from generator to consumer.
type Triple = online.Triple

// GenerateRandomShares produces n authenticated shares of independent,
// jointly-unpredictable field elements (spec §4.4 "random share"). No
// communication is needed: each party samples its own contribution and
// tags it with alpha locally; the two parties' results are never equal to
// a value either side can predict because neither knows the other's
// sample (pkg/share.Tag).
func GenerateRandomShares(n int, alpha field.Elem, rnd io.Reader) ([]share.Auth, error) {
	out := make([]share.Auth, n)
	for i := range out {
		v, err := field.Random(rnd)
		if err != nil {
			return nil, errs.Crypto(fmt.Errorf("mpc/offline: sample random share %d: %w", i, err))
		}
		out[i] = share.Tag(alpha, v)
	}
	return out, nil
}

// clientHalves carries the client's own encrypted shares of a and b for
// all n triples in this batch, SIMD-packed up to the scheme's batch size.
type clientHalves struct {
	A, B []ahe.Ciphertext
}

// serverCross carries the server's homomorphically combined cross terms,
// one ciphertext per chunk, each masked by a fresh per-slot random value
// the server alone knows and later subtracts back out of its own share.
type serverCross struct {
	Cross []ahe.Ciphertext
}

// GenerateTriplesClient runs the client side of triple generation: it
// samples its own additive shares of n fresh (a,b) pairs, sends them
// encrypted, and recovers its share of c=a*b from the server's answer.
func GenerateTriplesClient(rw io.ReadWriter, enc ahe.Encryptor, dec ahe.Decryptor, alpha field.Elem, n, batchSize int, rnd io.Reader) ([]Triple, error) {
	a, err := sampleVector(n, rnd)
	if err != nil {
		return nil, err
	}
	b, err := sampleVector(n, rnd)
	if err != nil {
		return nil, err
	}
	aCt, err := encryptChunks(enc, a, batchSize)
	if err != nil {
		return nil, err
	}
	bCt, err := encryptChunks(enc, b, batchSize)
	if err != nil {
		return nil, err
	}
	if err := wire.WriteFrame(rw, clientHalves{A: aCt, B: bCt}); err != nil {
		return nil, err
	}

	var resp serverCross
	if err := wire.ReadFrame(rw, &resp); err != nil {
		return nil, err
	}
	cross, err := decryptChunks(dec, resp.Cross, n)
	if err != nil {
		return nil, err
	}

	triples := make([]Triple, n)
	for i := range triples {
		c := a[i].Mul(b[i]).Add(cross[i])
		triples[i] = Triple{
			A: share.Tag(alpha, a[i]),
			B: share.Tag(alpha, b[i]),
			C: share.Tag(alpha, c),
		}
	}
	return triples, nil
}

// GenerateTriplesServer answers a GenerateTriplesClient call: it samples
// its own shares of the same n (a,b) pairs, homomorphically combines both
// cross terms (a_client·b_server and b_client·a_server) under a fresh
// random mask per slot, and derives its own share of c by subtracting the
// mask back out once it replies.
func GenerateTriplesServer(rw io.ReadWriter, eval ahe.Evaluator, alpha field.Elem, n, batchSize int, rnd io.Reader) ([]Triple, error) {
	var req clientHalves
	if err := wire.ReadFrame(rw, &req); err != nil {
		return nil, err
	}
	a, err := sampleVector(n, rnd)
	if err != nil {
		return nil, err
	}
	b, err := sampleVector(n, rnd)
	if err != nil {
		return nil, err
	}
	mask, err := sampleVector(n, rnd)
	if err != nil {
		return nil, err
	}

	cross := make([]ahe.Ciphertext, len(req.A))
	for c := 0; c < len(req.A); c++ {
		start := c * batchSize
		end := start + batchSize
		if end > n {
			end = n
		}
		cross1, err := eval.MulPlain(req.A[c], b[start:end])
		if err != nil {
			return nil, errs.Crypto(fmt.Errorf("mpc/offline: mul plain a*b_server: %w", err))
		}
		cross2, err := eval.MulPlain(req.B[c], a[start:end])
		if err != nil {
			return nil, errs.Crypto(fmt.Errorf("mpc/offline: mul plain b*a_server: %w", err))
		}
		sum, err := eval.Add(cross1, cross2)
		if err != nil {
			return nil, errs.Crypto(fmt.Errorf("mpc/offline: accumulate cross terms: %w", err))
		}
		masked, err := eval.AddPlain(sum, mask[start:end])
		if err != nil {
			return nil, errs.Crypto(fmt.Errorf("mpc/offline: mask cross terms: %w", err))
		}
		cross[c] = masked
	}
	if err := wire.WriteFrame(rw, serverCross{Cross: cross}); err != nil {
		return nil, err
	}

	triples := make([]Triple, n)
	for i := range triples {
		c := a[i].Mul(b[i]).Sub(mask[i])
		triples[i] = Triple{
			A: share.Tag(alpha, a[i]),
			B: share.Tag(alpha, b[i]),
			C: share.Tag(alpha, c),
		}
	}
	return triples, nil
}

func sampleVector(n int, rnd io.Reader) ([]field.Elem, error) {
	out := make([]field.Elem, n)
	for i := range out {
		v, err := field.Random(rnd)
		if err != nil {
			return nil, errs.Crypto(fmt.Errorf("mpc/offline: sample: %w", err))
		}
		out[i] = v
	}
	return out, nil
}

func encryptChunks(enc ahe.Encryptor, v []field.Elem, batchSize int) ([]ahe.Ciphertext, error) {
	if batchSize <= 0 {
		batchSize = len(v)
	}
	var chunks []ahe.Ciphertext
	for start := 0; start < len(v); start += batchSize {
		end := start + batchSize
		if end > len(v) {
			end = len(v)
		}
		ct, err := enc.Encrypt(v[start:end])
		if err != nil {
			return nil, errs.Crypto(fmt.Errorf("mpc/offline: encrypt chunk: %w", err))
		}
		chunks = append(chunks, ct)
	}
	return chunks, nil
}

func decryptChunks(dec ahe.Decryptor, chunks []ahe.Ciphertext, n int) ([]field.Elem, error) {
	out := make([]field.Elem, 0, n)
	for _, ct := range chunks {
		vals, err := dec.Decrypt(ct)
		if err != nil {
			return nil, errs.Crypto(fmt.Errorf("mpc/offline: decrypt chunk: %w", err))
		}
		out = append(out, vals...)
	}
	if len(out) < n {
		return nil, errs.Decode(fmt.Errorf("mpc/offline: decrypted %d elements, want %d", len(out), n))
	}
	return out[:n], nil
}
