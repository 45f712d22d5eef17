package wire

import (
	"fmt"
	"io"
	"sync"

	"github.com/luxfi/secnn/pkg/errs"
)

// NumStreams is the number of logical sub-streams a Mux carries over one
// connection. It is fixed and independent of pkg/concurrency's worker
// count.
const NumStreams = 16

// Mux multiplexes NumStreams logical byte streams over a single underlying
// connection. Every frame is prefixed with a one-byte stream id before the
// usual 8-byte length prefix.
type Mux struct {
	w      io.Writer
	mu     sync.Mutex
	inbox  [NumStreams]chan []byte
	readMu sync.Mutex
	r      io.Reader
	once   sync.Once
	readErr error
}

// NewMux wraps rw as a multiplexed transport.
func NewMux(r io.Reader, w io.Writer) *Mux {
	m := &Mux{r: r, w: w}
	for i := range m.inbox {
		m.inbox[i] = make(chan []byte, 64)
	}
	return m
}

// SendFrame writes v on the given logical stream.
func (m *Mux) SendFrame(stream int, v interface{}) error {
	if stream < 0 || stream >= NumStreams {
		return errs.Protocol(fmt.Errorf("wire: stream id %d out of range", stream))
	}
	payload, err := Encode(v)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.w.Write([]byte{byte(stream)}); err != nil {
		return errs.IO(fmt.Errorf("wire: write stream id: %w", err))
	}
	if _, err := m.w.Write(payload); err != nil {
		return errs.IO(fmt.Errorf("wire: write multiplexed payload: %w", err))
	}
	return nil
}

// pump runs once, in the background, demultiplexing the underlying reader
// into each stream's inbox channel. It is started lazily by the first
// RecvFrame call so a Mux that only ever sends never spawns a goroutine.
func (m *Mux) pump() {
	m.once.Do(func() {
		go func() {
			var streamID [1]byte
			for {
				if _, err := io.ReadFull(m.r, streamID[:]); err != nil {
					m.closeAll(err)
					return
				}
				id := int(streamID[0])
				if id >= NumStreams {
					m.closeAll(errs.Protocol(fmt.Errorf("wire: stream id %d out of range", id)))
					return
				}
				var lenPrefix [8]byte
				if _, err := io.ReadFull(m.r, lenPrefix[:]); err != nil {
					m.closeAll(err)
					return
				}
				n := beUint64(lenPrefix[:])
				if n > MaxFrameBytes {
					m.closeAll(errs.Protocol(fmt.Errorf("wire: frame of %d bytes exceeds max %d", n, MaxFrameBytes)))
					return
				}
				payload := make([]byte, n)
				if _, err := io.ReadFull(m.r, payload); err != nil {
					m.closeAll(err)
					return
				}
				m.inbox[id] <- payload
			}
		}()
	})
}

func beUint64(b []byte) uint64 {
	var n uint64
	for i := 7; i >= 0; i-- {
		n = n<<8 | uint64(b[i])
	}
	return n
}

func (m *Mux) closeAll(err error) {
	m.readMu.Lock()
	m.readErr = err
	m.readMu.Unlock()
	for _, ch := range m.inbox {
		close(ch)
	}
}

// RecvFrame blocks until a frame arrives on the given stream and decodes it
// into v.
func (m *Mux) RecvFrame(stream int, v interface{}) error {
	if stream < 0 || stream >= NumStreams {
		return errs.Protocol(fmt.Errorf("wire: stream id %d out of range", stream))
	}
	m.pump()
	payload, ok := <-m.inbox[stream]
	if !ok {
		m.readMu.Lock()
		err := m.readErr
		m.readMu.Unlock()
		if err == nil {
			err = io.EOF
		}
		return errs.IO(fmt.Errorf("wire: stream %d closed: %w", stream, err))
	}
	return Decode(payload, v)
}
