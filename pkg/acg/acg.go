// Package acg implements the authenticated-correlations generator spec
// §4.3 describes for linear layers: the offline dance that turns a
// Conv2d/FullyConnected layer's secret weights into authenticated output
// shares correlated with a client-chosen input randomizer, so the online
// phase can later combine them with a single cleartext reveal per layer
// and no further interaction.
//
// Case 1 (Conv2d/FullyConnected): the client encrypts a fresh randomizer
// r under AHE; the server homomorphically applies its weight matrix and
// folds in a random output mask s_i (spec's "L(r_i)+s_i"), returning
// ciphertexts the client decrypts into an authenticated output share.
// Cases 2/3 cover AvgPool/Identity, which carry no secret weights. Case 2
// (AvgPool/Identity-after-linear) needs no HE round trip: it is a public
// affine map applied directly to the already-authenticated share from the
// previous layer (local, spec's "public-map-on-authenticated-shares"
// optimisation). Case 3 (AvgPool/Identity-after-nonlinear) draws a fresh
// randomizer exactly like case 1 but with an identity/pooling matrix
// instead of a learned one, reusing RunClient/RunServer unchanged.
package acg

import (
	"fmt"
	"io"

	"github.com/luxfi/secnn/pkg/ahe"
	"github.com/luxfi/secnn/pkg/errs"
	"github.com/luxfi/secnn/pkg/field"
	"github.com/luxfi/secnn/pkg/share"
	"github.com/luxfi/secnn/pkg/wire"
)

// clientMsg carries the client's encrypted randomizer, chunked to the
// scheme's batch size.
type clientMsg struct {
	Chunks []ahe.Ciphertext
}

// serverMsg carries, per output index, the value and MAC ciphertexts the
// client must decrypt and sum across slots to recover its authenticated
// output share (see computeOutput for why summing slots is valid).
type serverMsg struct {
	Value []ahe.Ciphertext
	MAC   []ahe.Ciphertext
}

// RunClient is the client side of the ACG dance for one linear layer. It
// samples a fresh input randomizer r (the value the client will later
// blind its true layer input by, online), and returns r alongside the
// authenticated output share the server's homomorphic reply produces.
func RunClient(rw io.ReadWriter, enc ahe.Encryptor, dec ahe.Decryptor, batchSize, cin, cout int, rnd io.Reader) (r []field.Elem, out []share.Auth, err error) {
	r = make([]field.Elem, cin)
	for i := range r {
		if r[i], err = field.Random(rnd); err != nil {
			return nil, nil, errs.Crypto(fmt.Errorf("acg: sample randomizer %d: %w", i, err))
		}
	}
	out, err = RunClientWithValue(rw, enc, dec, batchSize, r)
	if err != nil {
		return nil, nil, err
	}
	return r, out, nil
}

// RunClientWithValue is RunClient's wire protocol parameterised on a
// caller-supplied vector instead of a freshly sampled randomizer. Callers
// that need ACG's homomorphic round trip over a value already fixed ahead
// of time (pkg/inputauth's generic variant, which authenticates the bits
// of a value it already knows rather than a fresh random draw) use this
// directly; RunClient is the common fresh-randomizer case built on top of
// it.
func RunClientWithValue(rw io.ReadWriter, enc ahe.Encryptor, dec ahe.Decryptor, batchSize int, v []field.Elem) (out []share.Auth, err error) {
	cout := -1
	chunks, err := encryptChunks(enc, v, batchSize)
	if err != nil {
		return nil, err
	}
	if err := wire.WriteFrame(rw, clientMsg{Chunks: chunks}); err != nil {
		return nil, err
	}

	var resp serverMsg
	if err := wire.ReadFrame(rw, &resp); err != nil {
		return nil, err
	}
	if len(resp.Value) != len(resp.MAC) {
		return nil, errs.Decode(fmt.Errorf("acg: mismatched output count, %d value / %d mac", len(resp.Value), len(resp.MAC)))
	}
	cout = len(resp.Value)

	out = make([]share.Auth, cout)
	for j := 0; j < cout; j++ {
		val, err := dec.Decrypt(resp.Value[j])
		if err != nil {
			return nil, errs.Crypto(fmt.Errorf("acg: decrypt output %d: %w", j, err))
		}
		m, err := dec.Decrypt(resp.MAC[j])
		if err != nil {
			return nil, errs.Crypto(fmt.Errorf("acg: decrypt mac %d: %w", j, err))
		}
		out[j] = share.Auth{Value: share.Additive{Value: sumSlots(val)}, MAC: share.Additive{Value: sumSlots(m)}}
	}
	return out, nil
}

// RunServer is the server side: given the layer's secret weight matrix
// (row-major, cout x cin) and bias, it replies to the client's encrypted
// randomizer with, per output j, a ciphertext encoding W[j]·r - s_j
// spread across slots (summed client-side) and its MAC-scaled twin
// alpha*(W[j]·r - s_j). It returns its own retained value share s, used
// online as: server_share = W·e + b + s, where e is the client's later
// cleartext reveal of (true input - r). Summed with the client's
// authenticated share this recovers W·x + b with a matching MAC, since
// both components pick up exactly one copy of alpha.
func RunServer(rw io.ReadWriter, eval ahe.Evaluator, alpha field.Elem, weight []field.Elem, batchSize, cin, cout int, rnd io.Reader) (s []field.Elem, err error) {
	var req clientMsg
	if err := wire.ReadFrame(rw, &req); err != nil {
		return nil, err
	}

	s = make([]field.Elem, cout)
	resp := serverMsg{Value: make([]ahe.Ciphertext, cout), MAC: make([]ahe.Ciphertext, cout)}
	for j := 0; j < cout; j++ {
		sj, err := field.Random(rnd)
		if err != nil {
			return nil, errs.Crypto(fmt.Errorf("acg: sample output mask %d: %w", j, err))
		}
		s[j] = sj
		valCt, macCt, err := computeOutput(eval, req.Chunks, weight, j, cin, batchSize, sj, alpha)
		if err != nil {
			return nil, err
		}
		resp.Value[j] = valCt
		resp.MAC[j] = macCt
	}
	if err := wire.WriteFrame(rw, resp); err != nil {
		return nil, err
	}
	return s, nil
}

// computeOutput folds the weight row for output j, the additive mask -s_j
// in slot 0, and an alpha-scaled MAC twin into two ciphertexts whose
// slots, once summed after decryption, equal W[j]·r - s_j and
// alpha·(W[j]·r - s_j) respectively. Chunks are accumulated via
// ciphertext addition before any slot-sum happens, which is valid because
// addition is associative and commutative: summing every slot of the
// accumulated ciphertext equals summing every chunk's slots separately
// and then adding those partial sums together.
func computeOutput(eval ahe.Evaluator, chunks []ahe.Ciphertext, weight []field.Elem, j, cin, batchSize int, sj, alpha field.Elem) (value, mac ahe.Ciphertext, err error) {
	var acc ahe.Ciphertext
	have := false
	for c, ct := range chunks {
		start := c * batchSize
		end := start + batchSize
		if end > cin {
			end = cin
		}
		mask := make([]field.Elem, end-start)
		for idx := range mask {
			mask[idx] = weight[j*cin+start+idx]
		}
		partial, err := eval.MulPlain(ct, mask)
		if err != nil {
			return ahe.Ciphertext{}, ahe.Ciphertext{}, errs.Crypto(fmt.Errorf("acg: mul plain weight row %d chunk %d: %w", j, c, err))
		}
		if !have {
			acc, have = partial, true
			continue
		}
		if acc, err = eval.Add(acc, partial); err != nil {
			return ahe.Ciphertext{}, ahe.Ciphertext{}, errs.Crypto(fmt.Errorf("acg: accumulate chunk %d: %w", c, err))
		}
	}
	valCt, err := eval.AddPlain(acc, []field.Elem{sj.Neg()})
	if err != nil {
		return ahe.Ciphertext{}, ahe.Ciphertext{}, errs.Crypto(fmt.Errorf("acg: add output mask row %d: %w", j, err))
	}
	width := cin
	if batchSize > 0 && batchSize < width {
		width = batchSize
	}
	alphaVec := make([]field.Elem, width)
	for i := range alphaVec {
		alphaVec[i] = alpha
	}
	macCt, err := eval.MulPlain(valCt, alphaVec)
	if err != nil {
		return ahe.Ciphertext{}, ahe.Ciphertext{}, errs.Crypto(fmt.Errorf("acg: scale mac row %d: %w", j, err))
	}
	return valCt, macCt, nil
}

func sumSlots(vals []field.Elem) field.Elem {
	sum := field.Zero
	for _, v := range vals {
		sum = sum.Add(v)
	}
	return sum
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
			return nil, errs.Crypto(fmt.Errorf("acg: encrypt chunk: %w", err))
		}
		chunks = append(chunks, ct)
	}
	return chunks, nil
}

// ApplyPublicMap applies a public (weight-free) affine map directly to an
// already-authenticated share, for the AvgPool/Identity-after-linear case
// (spec §4.3 case 2): no fresh randomizer or HE round is needed, since
// the map's coefficients are known to both parties and an authenticated
// share already transforms correctly under a public linear combination
// (share.Auth.MulConst/Add). bias, if non-zero, must be added by exactly
// one party (by convention the server, mirroring RunServer's online bias
// application) via AddConst.
func ApplyPublicMap(in []share.Auth, weight []field.Elem, bias []field.Elem, alpha field.Elem, isServer bool, cin, cout int) []share.Auth {
	out := make([]share.Auth, cout)
	for j := 0; j < cout; j++ {
		var acc share.Auth
		for i := 0; i < cin; i++ {
			c := weight[j*cin+i]
			if c.IsZero() {
				continue
			}
			term := in[i].MulConst(c)
			acc = acc.Add(term)
		}
		if isServer && j < len(bias) && !bias[j].IsZero() {
			acc = acc.AddConst(bias[j], alpha.Mul(bias[j]))
		}
		out[j] = acc
	}
	return out
}
