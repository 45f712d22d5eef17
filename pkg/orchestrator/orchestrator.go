// Package orchestrator implements the NN state machine spec §4.9
// describes: it walks an architecture's layer list once during the
// offline phase (driving pkg/acg per linear layer and pre-sampling the
// garbled-ReLU output randomizers pkg/gc needs) and once more during the
// online phase (chaining linear combination, truncated-ReLU garbling and
// evaluation, and the CDS/input-auth sub-protocols that bind them
// together), exactly mirroring the two match statements of spec §4.9's
// pseudocode.
//
// Layer-processing cases. Spec §4.3 names three ACG cases by layer kind
// and predecessor; this package collapses them into two code paths since
// nn.Linear.Matrix already lowers every LinearKind (Conv2d, FullyConnected,
// AvgPool, Identity) to one dense weight/bias representation:
//
//   - freshACG: Conv2d/FullyConnected always, or AvgPool/Identity whose
//     predecessor is the network input or a ReLU (spec's cases 1 and 3).
//     Needs a fresh client-sampled randomizer and a full ACG homomorphic
//     round trip offline, plus one cleartext "blinded input" reveal online.
//   - localMap: AvgPool/Identity immediately following a linear layer
//     (spec's case 2). No new randomizer, no HE round, no online reveal:
//     acg.ApplyPublicMap runs directly on the predecessor's already-
//     authenticated output share, locally, on both sides.
//
// This repository makes one explicit, documented simplification (recorded
// in DESIGN.md): every freshACG layer samples its own randomizer
// independent of any preceding ReLU's output mask, rather than reusing
// that mask at HE-encryption time as the original system's "ACG(i+1)
// requires the preceding ReLU's randomizer" optimisation does. That still
// leaves one correction in place where the two meet: a freshACG layer
// whose predecessor is NonLinear receives the client's revealed value
// already offset by that ReLU's output mask r' (garbled circuits can only
// disclose the masked result, never the true activation, without
// revealing it to the client outright), so the server folds -r' into its
// online combine locally before applying its weight matrix — a plaintext
// correction it can make unilaterally since it alone retains r' from that
// layer's offline phase; see applyPrevMask.
package orchestrator

import (
	"fmt"
	"io"
	"math"

	"github.com/luxfi/secnn/pkg/acg"
	"github.com/luxfi/secnn/pkg/ahe"
	"github.com/luxfi/secnn/pkg/cds"
	"github.com/luxfi/secnn/pkg/errs"
	"github.com/luxfi/secnn/pkg/field"
	"github.com/luxfi/secnn/pkg/fixedpoint"
	"github.com/luxfi/secnn/pkg/gc"
	"github.com/luxfi/secnn/pkg/inputauth"
	"github.com/luxfi/secnn/pkg/mpc/online"
	"github.com/luxfi/secnn/pkg/nn"
	"github.com/luxfi/secnn/pkg/share"
	"github.com/luxfi/secnn/pkg/wire"
)

// isFreshACG reports whether layer i of arch takes the freshACG path (as
// opposed to localMap); see the package doc for the two cases. Only
// meaningful when arch.Layers[i].Kind is nn.LayerLinear.
func isFreshACG(arch *nn.Architecture, i int) bool {
	l := arch.Layers[i].Linear
	if l.Kind == nn.KindConv2d || l.Kind == nn.KindFullyConnected {
		return true
	}
	// AvgPool/Identity: freshACG unless immediately preceded by Linear.
	return i == 0 || arch.Layers[i-1].Kind != nn.LayerLinear
}

// reluBits is the evaluator/garbler wire count per ReLU activation: spec
// §4.6's "num_garbler_inputs and num_evaluator_inputs are determined by
// ceil(log2 p)". Both parties' additive shares of a pre-activation value are
// uniform over the whole field, not bounded to the fixed-point encoding's
// width, so the circuit needs a full canonical field element's worth of
// input bits from each side in order to reconstruct x = server_share +
// client_share mod p exactly (pkg/gc's BuildTruncatedReLU performs that
// mod-p reduction internally).
func reluBits() int { return gc.FieldBits() }

// --- offline state ---------------------------------------------------

// clientLayer is the client's offline output for one architecture layer.
type clientLayer struct {
	isFreshACG bool
	r          []field.Elem // freshACG: client's input randomizer
	out        []share.Auth // freshACG: authenticated output share (unchanged through online phase)
}

// ClientOffline is the client's opaque offline-phase output, consumed
// exactly once by RunClientOnline (spec §3 "Lifecycle").
type ClientOffline struct {
	layers []clientLayer
}

// serverLayer is the server's offline output for one architecture layer.
type serverLayer struct {
	isFreshACG   bool
	s            []field.Elem // freshACG: retained output mask
	weight, bias []field.Elem
	cin, cout    int
	rPrime       []field.Elem // NonLinear: per-activation output randomizers
}

// ServerOffline is the server's opaque offline-phase output.
type ServerOffline struct {
	layers []serverLayer
}

// RunClientOffline drives the client's half of every layer's offline
// sub-protocol in index order (spec §4.9's offline match, freshACG branch
// only — localMap layers need no offline work at all).
func RunClientOffline(rw io.ReadWriter, enc ahe.Encryptor, dec ahe.Decryptor, batchSize int, arch *nn.Architecture, rnd io.Reader) (*ClientOffline, error) {
	off := &ClientOffline{layers: make([]clientLayer, len(arch.Layers))}
	for i, layer := range arch.Layers {
		switch layer.Kind {
		case nn.LayerLinear:
			fresh := isFreshACG(arch, i)
			cl := clientLayer{isFreshACG: fresh}
			if fresh {
				cin, cout := layer.Linear.In.Size(), layer.Linear.Out.Size()
				r, out, err := acg.RunClient(rw, enc, dec, batchSize, cin, cout, rnd)
				if err != nil {
					return nil, wrapLayer(err, i)
				}
				cl.r, cl.out = r, out
			}
			off.layers[i] = cl
		case nn.LayerNonLinear:
			off.layers[i] = clientLayer{}
		default:
			return nil, errs.ShapeAtLayer(i, fmt.Errorf("orchestrator: unknown layer kind %v", layer.Kind))
		}
	}
	return off, nil
}

// RunServerOffline is the server-side counterpart.
func RunServerOffline(rw io.ReadWriter, eval ahe.Evaluator, alpha field.Elem, batchSize int, arch *nn.Architecture, rnd io.Reader) (*ServerOffline, error) {
	off := &ServerOffline{layers: make([]serverLayer, len(arch.Layers))}
	for i, layer := range arch.Layers {
		switch layer.Kind {
		case nn.LayerLinear:
			weight, bias, cin, cout, err := layer.Linear.Matrix(arch.Params)
			if err != nil {
				return nil, errs.ShapeAtLayer(i, err)
			}
			fresh := isFreshACG(arch, i)
			sl := serverLayer{isFreshACG: fresh, weight: weight, bias: bias, cin: cin, cout: cout}
			if fresh {
				s, err := acg.RunServer(rw, eval, alpha, weight, batchSize, cin, cout, rnd)
				if err != nil {
					return nil, wrapLayer(err, i)
				}
				sl.s = s
			}
			off.layers[i] = sl
		case nn.LayerNonLinear:
			n := layer.NonLinear.Dims.Size()
			rPrime := make([]field.Elem, n)
			for j := range rPrime {
				v, err := field.Random(rnd)
				if err != nil {
					return nil, errs.CryptoAtLayer(i, fmt.Errorf("orchestrator: sample r' %d: %w", j, err))
				}
				rPrime[j] = v
			}
			off.layers[i] = serverLayer{rPrime: rPrime}
		default:
			return nil, errs.ShapeAtLayer(i, fmt.Errorf("orchestrator: unknown layer kind %v", layer.Kind))
		}
	}
	return off, nil
}

func wrapLayer(err error, i int) error {
	var e *errs.Error
	if as, ok := err.(*errs.Error); ok {
		e = as
	} else {
		return errs.AtLayer(errs.KindProtocol, i, err)
	}
	if e.Layer < 0 {
		return errs.AtLayer(e.Kind, i, e.Err)
	}
	return e
}

// --- online phase ------------------------------------------------------

// revealMsg is the one cleartext message a freshACG layer's online step
// sends: the client's running activation blinded by its offline
// randomizer (spec §4.9: "client sends x_0 - r_0 (blinded input)",
// generalised here to every freshACG layer rather than only the first).
type revealMsg struct {
	E []field.Elem
}

// garbledChunkMsg is one chunked delivery of garbled ReLU circuits (spec
// §4.6: "chunks of 8192 circuits per message").
type garbledChunkMsg struct {
	Circuits []*gc.GarbledCircuit
}

// RunClientOnline drives the client's half of the online phase end to
// end: it blinds the real input, walks every layer combining linear
// shares and evaluating garbled ReLUs, and finally opens the network's
// output under MAC check.
func RunClientOnline(rw io.ReadWriter, alpha field.Elem, enc ahe.Encryptor, dec ahe.Decryptor, batchSize int, arch *nn.Architecture, off *ClientOffline, input []float64, rnd io.Reader) ([]float64, error) {
	sess := online.New(alpha, online.NewWireChannel(rw), rnd)

	clear, err := encodeVector(arch.Params, input)
	if err != nil {
		return nil, errs.Shape(fmt.Errorf("orchestrator: encode input: %w", err))
	}
	var shares []share.Auth
	haveClear := true

	// A network that opens directly on a ReLU (no preceding Linear layer
	// to authenticate the input via ACG) has no share of its input at
	// all yet; the client alone knows it, so it commits it the same way
	// Session.ShareOwn commits any privately-known value.
	if len(arch.Layers) > 0 && arch.Layers[0].Kind == nn.LayerNonLinear {
		shares = make([]share.Auth, len(clear))
		for j, v := range clear {
			s, err := sess.ShareOwn(v)
			if err != nil {
				return nil, errs.ProtocolAtLayer(0, err)
			}
			shares[j] = s
		}
		haveClear = false
	}

	// Every Linear layer multiplies by MantissaBits-scaled weights, adding
	// MantissaBits to the activation's power-of-two scale; every ReLU
	// circuit shifts MantissaBits back off. scale tracks the result's
	// scale so the final decode divides by the matching power of two.
	m := int(arch.Params.MantissaBits)
	scale := m

	for i, layer := range arch.Layers {
		cl := off.layers[i]
		switch layer.Kind {
		case nn.LayerLinear:
			scale += m
			if cl.isFreshACG {
				if !haveClear {
					return nil, errs.ProtocolAtLayer(i, fmt.Errorf("orchestrator: freshACG layer needs a cleartext activation"))
				}
				if len(clear) != len(cl.r) {
					return nil, errs.ShapeAtLayer(i, fmt.Errorf("orchestrator: input width %d, randomizer width %d", len(clear), len(cl.r)))
				}
				e := make([]field.Elem, len(clear))
				for j := range e {
					e[j] = clear[j].Sub(cl.r[j])
				}
				if err := wire.WriteFrame(rw, revealMsg{E: e}); err != nil {
					return nil, wrapLayer(err, i)
				}
				shares = cl.out
				haveClear = false
			} else {
				cin, cout := layer.Linear.In.Size(), layer.Linear.Out.Size()
				weight, bias, _, _, err := layer.Linear.Matrix(arch.Params)
				if err != nil {
					return nil, errs.ShapeAtLayer(i, err)
				}
				shares = acg.ApplyPublicMap(shares, weight, bias, alpha, false, cin, cout)
			}
		case nn.LayerNonLinear:
			n := layer.NonLinear.Dims.Size()
			if haveClear || len(shares) != n {
				return nil, errs.ProtocolAtLayer(i, fmt.Errorf("orchestrator: ReLU layer needs an authenticated input share"))
			}
			out, err := clientReLU(rw, sess, batchSize, enc, dec, arch.Params, shares, rnd)
			if err != nil {
				return nil, wrapLayer(err, i)
			}
			clear = out
			haveClear = true
			scale -= m
		default:
			return nil, errs.ShapeAtLayer(i, fmt.Errorf("orchestrator: unknown layer kind %v", layer.Kind))
		}
	}

	var result []field.Elem
	if haveClear {
		result = make([]field.Elem, len(clear))
		for j, v := range clear {
			opened, err := sess.Open(share.Tag(alpha, v))
			if err != nil {
				return nil, err
			}
			result[j] = opened
		}
	} else {
		result = make([]field.Elem, len(shares))
		for j, s := range shares {
			opened, err := sess.Open(s)
			if err != nil {
				return nil, err
			}
			result[j] = opened
		}
	}
	out := decodeVector(arch.Params, result)
	for j := range out {
		out[j] = math.Ldexp(out[j], m-scale)
	}
	return out, nil
}

// RunServerOnline is the server-side counterpart.
func RunServerOnline(rw io.ReadWriter, alpha field.Elem, eval ahe.Evaluator, batchSize int, arch *nn.Architecture, off *ServerOffline, rnd io.Reader) error {
	sess := online.New(alpha, online.NewWireChannel(rw), rnd)

	var shares []share.Auth
	haveInput := false

	if len(arch.Layers) > 0 && arch.Layers[0].Kind == nn.LayerNonLinear {
		n := arch.Layers[0].NonLinear.Dims.Size()
		shares = make([]share.Auth, n)
		for j := range shares {
			s, err := sess.ShareTheirs()
			if err != nil {
				return errs.ProtocolAtLayer(0, err)
			}
			shares[j] = s
		}
		haveInput = true
	}

	for i, layer := range arch.Layers {
		sl := off.layers[i]
		switch layer.Kind {
		case nn.LayerLinear:
			if sl.isFreshACG {
				var req revealMsg
				if err := wire.ReadFrame(rw, &req); err != nil {
					return wrapLayer(err, i)
				}
				if len(req.E) != sl.cin {
					return errs.DecodeAtLayer(i, fmt.Errorf("orchestrator: reveal width %d, want %d", len(req.E), sl.cin))
				}
				e := req.E
				if i > 0 && arch.Layers[i-1].Kind == nn.LayerNonLinear {
					corrected, err := applyPrevMask(e, off.layers[i-1].rPrime)
					if err != nil {
						return errs.ShapeAtLayer(i, err)
					}
					e = corrected
				}
				val := applyLinear(sl.weight, sl.bias, e, sl.cin, sl.cout)
				for j := range val {
					val[j] = val[j].Add(sl.s[j])
				}
				shares = tagVector(alpha, val)
				haveInput = true
			} else {
				shares = acg.ApplyPublicMap(shares, sl.weight, sl.bias, alpha, true, sl.cin, sl.cout)
			}
		case nn.LayerNonLinear:
			if !haveInput || len(shares) != len(sl.rPrime) {
				return errs.ProtocolAtLayer(i, fmt.Errorf("orchestrator: ReLU layer needs an authenticated input share"))
			}
			if err := serverReLU(rw, sess, batchSize, eval, alpha, arch.Params, shares, sl.rPrime, rnd); err != nil {
				return wrapLayer(err, i)
			}
		default:
			return errs.ShapeAtLayer(i, fmt.Errorf("orchestrator: unknown layer kind %v", layer.Kind))
		}
	}

	last := arch.Layers[len(arch.Layers)-1]
	if last.Kind == nn.LayerNonLinear {
		rPrime := off.layers[len(off.layers)-1].rPrime
		for _, r := range rPrime {
			if _, err := sess.Open(share.Tag(alpha, r.Neg())); err != nil {
				return err
			}
		}
		return nil
	}
	for _, s := range shares {
		if _, err := sess.Open(s); err != nil {
			return err
		}
	}
	return nil
}

// applyPrevMask undoes a preceding ReLU layer's output mask from the
// client's revealed blinded activation: the client only ever learns
// trueActivation+r' out of a garbled-circuit evaluation (never the true
// activation itself — the mask is what keeps that result hidden until
// this layer's own online combine completes), so before this layer's
// weight matrix can be applied to e, the server — the only party holding
// r' — subtracts it back out locally.
func applyPrevMask(e, rPrime []field.Elem) ([]field.Elem, error) {
	if len(e) != len(rPrime) {
		return nil, fmt.Errorf("orchestrator: revealed width %d, preceding relu width %d", len(e), len(rPrime))
	}
	out := make([]field.Elem, len(e))
	for i := range e {
		out[i] = e[i].Sub(rPrime[i])
	}
	return out, nil
}

// applyLinear computes weight*e+bias for a dense cout x cin row-major
// weight matrix, the plaintext half of a freshACG layer's online combine
// (spec §4.3: "server_share = W·e + b + s").
func applyLinear(weight, bias, e []field.Elem, cin, cout int) []field.Elem {
	out := make([]field.Elem, cout)
	for j := 0; j < cout; j++ {
		acc := field.Zero
		for i := 0; i < cin; i++ {
			acc = acc.Add(weight[j*cin+i].Mul(e[i]))
		}
		if j < len(bias) {
			acc = acc.Add(bias[j])
		}
		out[j] = acc
	}
	return out
}

func tagVector(alpha field.Elem, v []field.Elem) []share.Auth {
	out := make([]share.Auth, len(v))
	for i, x := range v {
		out[i] = share.Tag(alpha, x)
	}
	return out
}

func encodeVector(p fixedpoint.Params, x []float64) ([]field.Elem, error) {
	out := make([]field.Elem, len(x))
	for i, v := range x {
		s, err := fixedpoint.Encode(p, v)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", i, err)
		}
		out[i] = s.Elem
	}
	return out, nil
}

func decodeVector(p fixedpoint.Params, v []field.Elem) []float64 {
	out := make([]float64, len(v))
	for i, e := range v {
		out[i] = fixedpoint.Decode(p, e)
	}
	return out
}

// --- truncated-ReLU online step ----------------------------------------

// templateCircuit builds the public gate topology shared by every
// activation of a ReLU layer with the given bit width, ignoring the
// concrete garbler-bit VALUES it bakes in (gc.Evaluate only ever reads
// wire indices and gate structure from a *gc.Circuit, never
// Circuit.GarblerValues — those live solely in the per-activation
// *gc.GarbledCircuit each side actually garbles), so client and server
// never need to exchange the topology itself.
func templateCircuit(bits int, truncBits int) (*gc.Circuit, error) {
	zeros := make([]bool, bits)
	return gc.BuildTruncatedReLU(bits, truncBits, zeros, zeros)
}

// clientReLU runs the client's side of spec §4.9's NonLinear branch for
// one whole layer: receive the chunked garbled circuits, authenticate its
// own share bits for every activation, resolve evaluator labels via CDS,
// and evaluate each circuit to recover ReLU(x)+r' in the clear, in the
// same message order serverReLU uses.
func clientReLU(rw io.ReadWriter, sess *online.Session, batchSize int, enc ahe.Encryptor, dec ahe.Decryptor, p fixedpoint.Params, shares []share.Auth, rnd io.Reader) ([]field.Elem, error) {
	n := len(shares)
	bits := reluBits()
	truncBits := int(p.MantissaBits)

	circuit, err := templateCircuit(bits, truncBits)
	if err != nil {
		return nil, errs.Crypto(err)
	}

	garbled, err := recvGarbledChunks(rw, n)
	if err != nil {
		return nil, err
	}

	bitShares := make([][]share.Auth, n)
	for j := 0; j < n; j++ {
		_, auth, err := inputauth.GenericOwner(rw, enc, dec, batchSize, shares[j].Value.Value, bits)
		if err != nil {
			return nil, err
		}
		bitShares[j] = auth
	}

	out := make([]field.Elem, n)
	for j := 0; j < n; j++ {
		labels, err := cds.RunClient(sess, bitShares[j])
		if err != nil {
			return nil, err
		}
		bitsOut, err := gc.Evaluate(circuit, garbled[j], labels)
		if err != nil {
			return nil, errs.Crypto(fmt.Errorf("orchestrator: evaluate relu %d: %w", j, err))
		}
		out[j] = bitsToElem(bitsOut)
	}
	return out, nil
}

// serverReLU is the server's side: it builds and garbles one circuit per
// activation from its own plaintext share bits and the offline-sampled
// r' (spec §4.6: "garbles a fresh circuit ... output randomizers are
// saved on the server side"), ships them in chunks, authenticates its
// peer's share bits, and discloses evaluator labels via CDS.
func serverReLU(rw io.ReadWriter, sess *online.Session, batchSize int, eval ahe.Evaluator, alpha field.Elem, p fixedpoint.Params, shares []share.Auth, rPrime []field.Elem, rnd io.Reader) error {
	n := len(shares)
	bits := reluBits()
	truncBits := int(p.MantissaBits)

	garbled := make([]*gc.GarbledCircuit, n)
	for j := 0; j < n; j++ {
		shareBits := elemToBits(shares[j].Value.Value, bits)
		rPrimeBits := elemToBits(rPrime[j], bits)
		c, err := gc.BuildTruncatedReLU(bits, truncBits, shareBits, rPrimeBits)
		if err != nil {
			return errs.Crypto(err)
		}
		g, err := gc.Garble(c)
		if err != nil {
			return errs.Crypto(fmt.Errorf("orchestrator: garble relu %d: %w", j, err))
		}
		garbled[j] = g
	}
	if err := sendGarbledChunks(rw, garbled); err != nil {
		return err
	}

	bitShares := make([][]share.Auth, n)
	for j := 0; j < n; j++ {
		auth, err := inputauth.GenericPeer(rw, eval, alpha, batchSize, bits, rnd)
		if err != nil {
			return err
		}
		bitShares[j] = inputauth.Tag(alpha, auth)
	}

	for j := 0; j < n; j++ {
		if err := cds.RunServer(sess, bitShares[j], garbled[j].EvaluatorInputPairs); err != nil {
			return err
		}
	}
	return nil
}

func sendGarbledChunks(rw io.ReadWriter, circuits []*gc.GarbledCircuit) error {
	for _, chunk := range gc.Chunk(circuits) {
		if err := wire.WriteFrame(rw, garbledChunkMsg{Circuits: chunk}); err != nil {
			return err
		}
	}
	return nil
}

func recvGarbledChunks(rw io.ReadWriter, n int) ([]*gc.GarbledCircuit, error) {
	out := make([]*gc.GarbledCircuit, 0, n)
	for len(out) < n {
		var msg garbledChunkMsg
		if err := wire.ReadFrame(rw, &msg); err != nil {
			return nil, err
		}
		out = append(out, msg.Circuits...)
	}
	if len(out) != n {
		return nil, errs.Decode(fmt.Errorf("orchestrator: received %d garbled circuits, want %d", len(out), n))
	}
	return out, nil
}

func elemToBits(e field.Elem, n int) []bool {
	out := make([]bool, n)
	u := e.Uint64()
	for i := 0; i < n; i++ {
		out[i] = (u>>uint(i))&1 == 1
	}
	return out
}

func bitsToElem(bits []bool) field.Elem {
	var u uint64
	for i, b := range bits {
		if b {
			u |= 1 << uint(i)
		}
	}
	return field.FromUint64(u)
}
