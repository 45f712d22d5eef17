// Package wire implements this repository's message framing: an 8-byte
// little-endian length prefix followed by a canonical CBOR-encoded payload,
// plus a byte-counting writer grounded on summitto-tlsnotaryserver's
// session.StreamCounter (src/session/session.go), which this package
// generalises from a single hardcoded 300MB upload cap into a
// caller-configured limit so every wire direction (not just client
// uploads) can be bounded.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"

	"github.com/luxfi/secnn/pkg/errs"
)

var encMode = func() cbor.EncMode {
	opts := cbor.CanonicalEncOptions()
	mode, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("wire: invalid canonical cbor options: %v", err))
	}
	return mode
}()

// MaxFrameBytes bounds a single frame's payload length, protecting a reader
// against a corrupt or adversarial length prefix driving an unbounded
// allocation.
const MaxFrameBytes = 1 << 30

// ByteCounter counts bytes that pass through it and panics once total
// exceeds Limit, mirroring the teacher's StreamCounter guard against an
// unbounded peer upload; Limit defaults to MaxFrameBytes*4 when zero.
type ByteCounter struct {
	Limit uint64
	total uint64
}

func (c *ByteCounter) Write(p []byte) (int, error) {
	limit := c.Limit
	if limit == 0 {
		limit = MaxFrameBytes * 4
	}
	c.total += uint64(len(p))
	if c.total > limit {
		panic(fmt.Sprintf("wire: byte counter exceeded limit of %d bytes", limit))
	}
	return len(p), nil
}

// Total reports the cumulative byte count observed so far.
func (c *ByteCounter) Total() uint64 { return c.total }

// WriteFrame encodes v canonically and writes it to w as a length-prefixed
// frame.
func WriteFrame(w io.Writer, v interface{}) error {
	payload, err := encMode.Marshal(v)
	if err != nil {
		return errs.Decode(fmt.Errorf("wire: encode frame: %w", err))
	}
	var lenPrefix [8]byte
	binary.LittleEndian.PutUint64(lenPrefix[:], uint64(len(payload)))
	if _, err := w.Write(lenPrefix[:]); err != nil {
		return errs.IO(fmt.Errorf("wire: write length prefix: %w", err))
	}
	if _, err := w.Write(payload); err != nil {
		return errs.IO(fmt.Errorf("wire: write payload: %w", err))
	}
	return nil
}

// ReadFrame reads one length-prefixed frame from r and decodes it into v.
func ReadFrame(r io.Reader, v interface{}) error {
	var lenPrefix [8]byte
	if _, err := io.ReadFull(r, lenPrefix[:]); err != nil {
		return errs.IO(fmt.Errorf("wire: read length prefix: %w", err))
	}
	n := binary.LittleEndian.Uint64(lenPrefix[:])
	if n > MaxFrameBytes {
		return errs.Protocol(fmt.Errorf("wire: frame of %d bytes exceeds max %d", n, MaxFrameBytes))
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return errs.IO(fmt.Errorf("wire: read payload: %w", err))
	}
	if err := cbor.Unmarshal(payload, v); err != nil {
		return errs.Decode(fmt.Errorf("wire: decode frame: %w", err))
	}
	return nil
}
