package errs_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/secnn/pkg/errs"
)

func TestErrorStringFormatsLayer(t *testing.T) {
	noLayer := errs.IO(errors.New("broken pipe"))
	require.Equal(t, "IoError: broken pipe", noLayer.Error())

	atLayer := errs.MACAtLayer(2, errors.New("mismatch"))
	require.Equal(t, "MACFailure at layer 2: mismatch", atLayer.Error())
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("underlying")
	err := errs.Crypto(cause)
	require.ErrorIs(t, err, cause)
}

func TestIsMACFailure(t *testing.T) {
	require.True(t, errs.IsMACFailure(errs.MAC(errors.New("x"))))
	require.False(t, errs.IsMACFailure(errs.IO(errors.New("x"))))
	require.False(t, errs.IsMACFailure(fmt.Errorf("plain error")))
}

func TestKindStrings(t *testing.T) {
	cases := map[errs.Kind]string{
		errs.KindIO:       "IoError",
		errs.KindDecode:   "DecodeError",
		errs.KindCrypto:   "CryptoError",
		errs.KindMAC:      "MACFailure",
		errs.KindShape:    "ShapeError",
		errs.KindProtocol: "ProtocolError",
	}
	for kind, want := range cases {
		require.Equal(t, want, kind.String())
	}
}
