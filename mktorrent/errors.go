package mktorrent

import (
	"errors"
	"fmt"
)

// Kind classifies a build failure.
type Kind uint8

const (
	KindIO Kind = iota + 1
	KindConfiguration
	KindEncoding
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "IO"
	case KindConfiguration:
		return "CONFIG"
	case KindEncoding:
		return "ENCODING"
	}
	return "UNKNOWN"
}

// Error is returned by every operation of this package. A build that fails
// never yields a partial descriptor.
type Error struct {
	Kind Kind
	Op   string // operation that failed
	Path string // file involved, if any
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Op, e.Err)
	}
	return fmt.Sprintf("[%s] %s %s: %v", e.Kind, e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

var (
	ErrEmptyPath    = errors.New("no source file given")
	ErrNoTrackers   = errors.New("at least one tracker is required")
	ErrNegativeSize = errors.New("negative total size")
	ErrKeyOrder     = errors.New("dictionary keys not in ascending order")
	ErrMalformed    = errors.New("malformed bencode")
)

func ioError(op, path string, err error) *Error {
	return &Error{Kind: KindIO, Op: op, Path: path, Err: err}
}

func configError(op string, err error) *Error {
	return &Error{Kind: KindConfiguration, Op: op, Err: err}
}

func encodingError(op string, err error) *Error {
	return &Error{Kind: KindEncoding, Op: op, Err: err}
}

func isKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}

// IsIO reports whether err is a file read or write failure.
func IsIO(err error) bool { return isKind(err, KindIO) }

// IsConfiguration reports whether err was caused by an invalid request.
func IsConfiguration(err error) bool { return isKind(err, KindConfiguration) }

// IsEncoding reports whether err came from producing or checking bencode.
func IsEncoding(err error) bool { return isKind(err, KindEncoding) }
