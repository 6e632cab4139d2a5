package chainindex

import "fmt"

// ErrorCode classifies the ways the height index can fail to load or serve
// a lookup.
type ErrorCode int

const (
	ErrUnknown ErrorCode = iota
	ErrInvalidHeight
	ErrEntryNotFound
	ErrOpenFailed
	ErrDecodeFailed
)

// IndexError is returned for every failure surfaced by this package.
type IndexError struct {
	Code ErrorCode
	Msg  string
	Err  error
}

func (e *IndexError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("chainindex: %s: %v", e.Msg, e.Err)
	}
	return fmt.Sprintf("chainindex: %s", e.Msg)
}

func (e *IndexError) Unwrap() error { return e.Err }

func invalidHeight(height, gotHeight int64) error {
	return &IndexError{
		Code: ErrInvalidHeight,
		Msg:  fmt.Sprintf("entry at height %d decoded with height %d", height, gotHeight),
	}
}

func duplicateHeight(height int64) error {
	return &IndexError{
		Code: ErrInvalidHeight,
		Msg:  fmt.Sprintf("two valid block-index entries claim height %d", height),
	}
}

func entryNotFound(msg string) error {
	return &IndexError{Code: ErrEntryNotFound, Msg: msg}
}

func openFailed(msg string, err error) error {
	return &IndexError{Code: ErrOpenFailed, Msg: msg, Err: err}
}

func decodeFailed(msg string, err error) error {
	return &IndexError{Code: ErrDecodeFailed, Msg: msg, Err: err}
}
