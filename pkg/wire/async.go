package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/luxfi/secnn/pkg/errs"
)

// FrameReader incrementally assembles length-prefixed frames from bytes fed
// to it as they arrive, for call sites that cannot afford to block on a
// blocking io.Reader — the cooperative-suspension counterpart to
// ReadFrame. No other package in this repository uses it; Mux reads its
// frames directly from the underlying reader.
type FrameReader struct {
	buf []byte
}

// Feed appends newly arrived bytes and returns every frame payload that is
// now complete, in order. Partial trailing data is kept for the next Feed.
func (fr *FrameReader) Feed(data []byte) ([][]byte, error) {
	fr.buf = append(fr.buf, data...)

	var frames [][]byte
	for {
		if len(fr.buf) < 8 {
			return frames, nil
		}
		n := binary.LittleEndian.Uint64(fr.buf[:8])
		if n > MaxFrameBytes {
			return frames, errs.Protocol(fmt.Errorf("wire: frame of %d bytes exceeds max %d", n, MaxFrameBytes))
		}
		total := 8 + int(n)
		if len(fr.buf) < total {
			return frames, nil
		}
		payload := make([]byte, n)
		copy(payload, fr.buf[8:total])
		frames = append(frames, payload)
		fr.buf = fr.buf[total:]
	}
}

// Decode unmarshals a frame payload previously returned by Feed into v.
func Decode(payload []byte, v interface{}) error {
	if err := cbor.Unmarshal(payload, v); err != nil {
		return errs.Decode(fmt.Errorf("wire: decode frame: %w", err))
	}
	return nil
}

// Encode is the counterpart used by callers that manage their own transport
// loop instead of calling WriteFrame directly.
func Encode(v interface{}) ([]byte, error) {
	payload, err := encMode.Marshal(v)
	if err != nil {
		return nil, errs.Decode(fmt.Errorf("wire: encode frame: %w", err))
	}
	var out []byte
	var lenPrefix [8]byte
	binary.LittleEndian.PutUint64(lenPrefix[:], uint64(len(payload)))
	out = append(out, lenPrefix[:]...)
	out = append(out, payload...)
	return out, nil
}
