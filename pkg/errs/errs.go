// Package errs defines the closed error taxonomy surfaced by every
// sub-protocol to the session driver. No sub-protocol attempts local
// recovery: an error here is always fatal to the session that produced it.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for audit purposes. The zero value is never
// used by a constructed Error.
type Kind int

const (
	// KindIO marks a broken transport or a truncated frame.
	KindIO Kind = iota + 1
	// KindDecode marks a malformed message or a length mismatch.
	KindDecode
	// KindCrypto marks an FHE decryption failure or a garbling/eval
	// inconsistency.
	KindCrypto
	// KindMAC marks an authenticated opening whose MAC check failed. This
	// is the one kind that indicates an actively cheating peer rather than
	// a bug or an environment fault.
	KindMAC
	// KindShape marks layer shapes that do not compose.
	KindShape
	// KindProtocol marks unexpected sub-protocol ordering.
	KindProtocol
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "IoError"
	case KindDecode:
		return "DecodeError"
	case KindCrypto:
		return "CryptoError"
	case KindMAC:
		return "MACFailure"
	case KindShape:
		return "ShapeError"
	case KindProtocol:
		return "ProtocolError"
	default:
		return "UnknownError"
	}
}

// Error is the single terminal status type returned by the session driver.
// It carries the taxonomy tag and the layer index at which the failure
// occurred so a session can be debugged without leaking any secret state.
type Error struct {
	Kind  Kind
	Layer int
	Err   error
}

// New constructs an Error tagged with layer -1, meaning "not layer-specific"
// (key exchange, MPC offline batching, and other non-layer-indexed stages).
func New(kind Kind, err error) *Error {
	return &Error{Kind: kind, Layer: -1, Err: err}
}

// AtLayer constructs an Error attributing the failure to a specific layer
// index in [0, L).
func AtLayer(kind Kind, layer int, err error) *Error {
	return &Error{Kind: kind, Layer: layer, Err: err}
}

func (e *Error) Error() string {
	if e.Layer < 0 {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s at layer %d: %v", e.Kind, e.Layer, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsMACFailure reports whether err is (or wraps) a MAC verification failure,
// the one error class that should be distinguished for audit logging.
func IsMACFailure(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == KindMAC
	}
	return false
}

// IO wraps err as a fatal transport failure not tied to a specific layer
// (key exchange, multiplexer setup).
func IO(err error) *Error { return New(KindIO, err) }

// Decode wraps err as a fatal decode/parse failure not tied to a layer.
func Decode(err error) *Error { return New(KindDecode, err) }

// Crypto wraps err as a fatal FHE/garbling failure not tied to a layer.
func Crypto(err error) *Error { return New(KindCrypto, err) }

// MAC wraps err as a fatal MAC-check failure not tied to a layer.
func MAC(err error) *Error { return New(KindMAC, err) }

// Shape wraps err as a fatal layer-composition failure not tied to a layer.
func Shape(err error) *Error { return New(KindShape, err) }

// Protocol wraps err as a fatal internal ordering failure not tied to a
// layer.
func Protocol(err error) *Error { return New(KindProtocol, err) }

// IOAtLayer wraps err as a fatal transport failure attributed to layer.
func IOAtLayer(layer int, err error) *Error { return AtLayer(KindIO, layer, err) }

// DecodeAtLayer wraps err as a fatal decode/parse failure attributed to layer.
func DecodeAtLayer(layer int, err error) *Error { return AtLayer(KindDecode, layer, err) }

// CryptoAtLayer wraps err as a fatal FHE/garbling failure attributed to layer.
func CryptoAtLayer(layer int, err error) *Error { return AtLayer(KindCrypto, layer, err) }

// MACAtLayer wraps err as a fatal MAC-check failure attributed to layer.
func MACAtLayer(layer int, err error) *Error { return AtLayer(KindMAC, layer, err) }

// ShapeAtLayer wraps err as a fatal layer-composition failure attributed to
// layer.
func ShapeAtLayer(layer int, err error) *Error { return AtLayer(KindShape, layer, err) }

// ProtocolAtLayer wraps err as a fatal internal ordering failure attributed
// to layer.
func ProtocolAtLayer(layer int, err error) *Error { return AtLayer(KindProtocol, layer, err) }
