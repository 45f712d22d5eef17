package wire_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/secnn/pkg/wire"
)

type payload struct {
	A int
	B string
}

func TestWriteReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	want := payload{A: 42, B: "hello"}
	require.NoError(t, wire.WriteFrame(&buf, want))

	var got payload
	require.NoError(t, wire.ReadFrame(&buf, &got))
	require.Equal(t, want, got)
}

func TestReadFrameRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	huge := make([]byte, 8)
	for i := range huge {
		huge[i] = 0xff
	}
	buf.Write(huge)

	var got payload
	err := wire.ReadFrame(&buf, &got)
	require.Error(t, err)
}

func TestFrameReaderAssemblesSplitFrames(t *testing.T) {
	encoded, err := wire.Encode(payload{A: 7, B: "split"})
	require.NoError(t, err)

	var fr wire.FrameReader
	frames, err := fr.Feed(encoded[:5])
	require.NoError(t, err)
	require.Empty(t, frames)

	frames, err = fr.Feed(encoded[5:])
	require.NoError(t, err)
	require.Len(t, frames, 1)

	var got payload
	require.NoError(t, wire.Decode(frames[0], &got))
	require.Equal(t, payload{A: 7, B: "split"}, got)
}

func TestByteCounterPanicsPastLimit(t *testing.T) {
	c := &wire.ByteCounter{Limit: 4}
	_, err := c.Write([]byte{1, 2, 3})
	require.NoError(t, err)
	require.Panics(t, func() {
		_, _ = c.Write([]byte{4, 5})
	})
}
