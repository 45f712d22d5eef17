package ot_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/secnn/pkg/ot"
)

func TestObliviousTransferChoosesCorrectBranch(t *testing.T) {
	msg := ot.Message{Zero: []byte("label-zero"), One: []byte("label-one")}

	for _, choice := range []bool{false, true} {
		sender, A, err := ot.Offer(msg)
		require.NoError(t, err)

		receiver, B, err := ot.Choose(A, choice)
		require.NoError(t, err)

		pair, err := sender.Respond(B)
		require.NoError(t, err)

		got, err := receiver.Reveal(pair)
		require.NoError(t, err)

		if choice {
			require.Equal(t, msg.One, got)
		} else {
			require.Equal(t, msg.Zero, got)
		}
	}
}
