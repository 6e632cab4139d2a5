// Package wireformat decodes the Bitcoin block/transaction wire format,
// including the SegWit witness and the AuxPoW header extension, and computes
// the double-SHA256 identifiers used throughout the rest of the indexer.
package wireformat

import "fmt"

// DecodeErrorKind classifies a wire-decode failure.
type DecodeErrorKind string

const (
	ErrShortRead        DecodeErrorKind = "short_read"
	ErrMalformedField   DecodeErrorKind = "malformed_field"
	ErrSizeTooLarge     DecodeErrorKind = "size_too_large"
	ErrUnsupportedField DecodeErrorKind = "unsupported_field"
)

// DecodeError is returned by every decode function in this package. A
// decode never makes partial progress: callers either get a fully formed
// value or a DecodeError, never a half-populated struct.
type DecodeError struct {
	Kind   DecodeErrorKind
	Offset int
	Msg    string
}

func (e *DecodeError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("wireformat: %s at offset %d", e.Kind, e.Offset)
	}
	return fmt.Sprintf("wireformat: %s at offset %d: %s", e.Kind, e.Offset, e.Msg)
}

func shortRead(offset int) error {
	return &DecodeError{Kind: ErrShortRead, Offset: offset, Msg: "unexpected end of input"}
}

func malformed(offset int, msg string) error {
	return &DecodeError{Kind: ErrMalformedField, Offset: offset, Msg: msg}
}

func tooLarge(offset int, msg string) error {
	return &DecodeError{Kind: ErrSizeTooLarge, Offset: offset, Msg: msg}
}
