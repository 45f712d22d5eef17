// Package cds implements spec §4.7's conditional-disclosure-of-secrets
// sub-protocol: binding the authenticated bit shares pkg/inputauth produces
// for a garbled ReLU's evaluator inputs to the actual evaluator-input label
// pairs pkg/gc generated for that circuit, so the label the client
// receives for bit j is only ever the one matching the authenticated value
// of that bit — never one a cheating party can steer, and never one the
// server learns either.
//
// The disclosure has two parts, run per bit. First, the bit is opened
// one-directionally: the server sends its value and MAC share, the client
// combines them with its own and verifies the reconstructed MAC equals
// alpha times the reconstructed value (the same check Open makes, spec
// §4.5), but the client never sends its share back — only a pass/fail ack,
// which is all the server ever learns about the bit. A failed ack aborts
// the whole exchange on both sides (§4.7's "a MAC mismatch ... aborts the
// entire session") without the server recovering the value itself. Second,
// since the server alone holds both labels of the pair and must not learn
// which one the client needs, the label itself moves over pkg/ot's base
// OT: the server offers both labels as the OT sender, and the client,
// using the bit it just recovered as its choice, receives only the one
// matching the authenticated value. This is exactly the use pkg/ot's doc
// comment describes ("the evaluator is the OT receiver choosing by the bit
// it actually holds") instantiated with a share-reconstructed bit instead
// of a bit the evaluator held from the start.
package cds

import (
	"fmt"

	"github.com/luxfi/secnn/pkg/errs"
	"github.com/luxfi/secnn/pkg/field"
	"github.com/luxfi/secnn/pkg/gc"
	"github.com/luxfi/secnn/pkg/mpc/online"
	"github.com/luxfi/secnn/pkg/ot"
	"github.com/luxfi/secnn/pkg/share"
)

// shareMsg carries one party's half of an authenticated bit share. It only
// ever travels server-to-client: unlike online.Session's two-sided Open,
// the client never sends its own half back, which is what keeps the
// server from ever reconstructing the bit.
type shareMsg struct{ Value, MAC field.Elem }

// ackMsg reports whether the client's MAC check passed, without revealing
// anything about the bit's value itself.
type ackMsg struct{ OK bool }

type otOfferMsg struct{ A []byte }
type otChooseMsg struct{ B []byte }
type otRespondMsg struct{ Pair ot.CipherPair }

// RunServer discloses, for each of bits (the server's own authenticated
// input bit-shares for one garbled circuit's evaluator inputs, from
// pkg/inputauth's peer-side output) and pairs (that same circuit's
// GarbledCircuit.EvaluatorInputPairs), the label matching the bit's true
// value to the client — without the server ever learning that value.
// len(bits) must equal len(pairs).
func RunServer(sess *online.Session, bits []share.Auth, pairs [][2]gc.Label) error {
	if len(bits) != len(pairs) {
		return errs.Protocol(fmt.Errorf("cds: %d bit shares for %d label pairs", len(bits), len(pairs)))
	}
	for i, bitShare := range bits {
		if err := sess.Ch.Send(shareMsg{Value: bitShare.Value.Value, MAC: bitShare.MAC.Value}); err != nil {
			return err
		}

		var ack ackMsg
		if err := sess.Ch.Recv(&ack); err != nil {
			return err
		}
		if !ack.OK {
			return errs.MAC(fmt.Errorf("cds: client reported failed MAC check on bit %d", i))
		}

		zero, err := pairs[i][0].MarshalBinary()
		if err != nil {
			return errs.Crypto(err)
		}
		one, err := pairs[i][1].MarshalBinary()
		if err != nil {
			return errs.Crypto(err)
		}
		state, offerA, err := ot.Offer(ot.Message{Zero: zero, One: one})
		if err != nil {
			return errs.Crypto(err)
		}
		if err := sess.Ch.Send(otOfferMsg{A: offerA}); err != nil {
			return err
		}

		var choose otChooseMsg
		if err := sess.Ch.Recv(&choose); err != nil {
			return err
		}
		pair, err := state.Respond(choose.B)
		if err != nil {
			return errs.Crypto(fmt.Errorf("cds: ot respond bit %d: %w", i, err))
		}
		if err := sess.Ch.Send(otRespondMsg{Pair: pair}); err != nil {
			return err
		}
	}
	return nil
}

// RunClient is the client-side counterpart: it reconstructs each bit from
// its own authenticated share and the one the server discloses, verifying
// the MAC exactly as a two-sided Open would but replying with only a
// pass/fail ack instead of sending its half back, then uses the recovered
// bit as its OT choice to recover the one label the server was never able
// to see it choose.
func RunClient(sess *online.Session, bits []share.Auth) ([]gc.Label, error) {
	labels := make([]gc.Label, len(bits))
	for i, bitShare := range bits {
		var peer shareMsg
		if err := sess.Ch.Recv(&peer); err != nil {
			return nil, err
		}
		value := bitShare.Value.Value.Add(peer.Value)
		mac := bitShare.MAC.Value.Add(peer.MAC)
		ok := mac.Equal(sess.Alpha.Mul(value))
		if err := sess.Ch.Send(ackMsg{OK: ok}); err != nil {
			return nil, err
		}
		if !ok {
			return nil, errs.MAC(fmt.Errorf("cds: MAC check failed on bit %d", i))
		}

		var offer otOfferMsg
		if err := sess.Ch.Recv(&offer); err != nil {
			return nil, err
		}
		state, chooseB, err := ot.Choose(offer.A, !value.IsZero())
		if err != nil {
			return nil, errs.Crypto(err)
		}
		if err := sess.Ch.Send(otChooseMsg{B: chooseB}); err != nil {
			return nil, err
		}

		var resp otRespondMsg
		if err := sess.Ch.Recv(&resp); err != nil {
			return nil, err
		}
		raw, err := state.Reveal(resp.Pair)
		if err != nil {
			return nil, errs.Crypto(fmt.Errorf("cds: ot reveal bit %d: %w", i, err))
		}
		if err := labels[i].UnmarshalBinary(raw); err != nil {
			return nil, errs.Decode(err)
		}
	}
	return labels, nil
}
