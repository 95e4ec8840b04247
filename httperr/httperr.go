// Package httperr defines the error taxonomy shared by the parsing packages and the
// mapping from those errors to HTTP status codes.
//
// Every parser returns one of the concrete types below (possibly wrapped). Use
// errors.As, or the Is* helpers, to branch on the kind:
//
//	form, err := reader.ReadForm(32 << 20)
//	if httperr.IsPayloadTooLarge(err) {
//		// 413
//	}
package httperr

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// Kind classifies an error produced by the parsing layer.
type Kind int

const (
	KindUnknown Kind = iota
	KindParse
	KindEscape
	KindValue
	KindPayloadTooLarge
	KindKey
)

func (k Kind) String() string {
	switch k {
	case KindParse:
		return "parse error"
	case KindEscape:
		return "escape error"
	case KindValue:
		return "value error"
	case KindPayloadTooLarge:
		return "payload too large"
	case KindKey:
		return "key error"
	default:
		return "unknown error"
	}
}

// ParseError reports structurally malformed input: boundary syntax, scheme colon rules,
// duplicate media-type parameters and the like.
type ParseError struct {
	Msg string
}

func (e *ParseError) Error() string { return e.Msg }

// EscapeError reports a malformed percent-encoding.
type EscapeError struct {
	Value string
}

func (e *EscapeError) Error() string { return "invalid URL escape " + fmt.Sprintf("%q", e.Value) }

// ValueError reports input that parses but is semantically invalid, such as an empty
// cookie name or an unknown SameSite mode.
type ValueError struct {
	Msg string
}

func (e *ValueError) Error() string { return e.Msg }

// PayloadTooLarge reports that a configured limit was exceeded.
type PayloadTooLarge struct {
	Msg   string
	Limit int64
}

func (e *PayloadTooLarge) Error() string { return e.Msg }

// KeyError reports a lookup of a parameter that is not present.
type KeyError struct {
	Key string
}

func (e *KeyError) Error() string { return fmt.Sprintf("key %q not found", e.Key) }

// NewParseError returns a ParseError carrying a stack trace.
func NewParseError(format string, args ...any) error {
	return errors.WithStack(&ParseError{Msg: fmt.Sprintf(format, args...)})
}

// NewValueError returns a ValueError carrying a stack trace.
func NewValueError(format string, args ...any) error {
	return errors.WithStack(&ValueError{Msg: fmt.Sprintf(format, args...)})
}

// NewPayloadTooLarge returns a PayloadTooLarge carrying a stack trace.
func NewPayloadTooLarge(limit int64, format string, args ...any) error {
	return errors.WithStack(&PayloadTooLarge{Msg: fmt.Sprintf(format, args...), Limit: limit})
}

// NewKeyError returns a KeyError carrying a stack trace.
func NewKeyError(key string) error {
	return errors.WithStack(&KeyError{Key: key})
}

// KindOf reports the Kind of the first taxonomy error found in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var (
		parseErr  *ParseError
		escapeErr *EscapeError
		valueErr  *ValueError
		largeErr  *PayloadTooLarge
		keyErr    *KeyError
	)
	switch {
	case stderrors.As(err, &largeErr):
		return KindPayloadTooLarge
	case stderrors.As(err, &parseErr):
		return KindParse
	case stderrors.As(err, &escapeErr):
		return KindEscape
	case stderrors.As(err, &valueErr):
		return KindValue
	case stderrors.As(err, &keyErr):
		return KindKey
	}
	return KindUnknown
}

func IsParseError(err error) bool      { return KindOf(err) == KindParse }
func IsEscapeError(err error) bool     { return KindOf(err) == KindEscape }
func IsValueError(err error) bool      { return KindOf(err) == KindValue }
func IsPayloadTooLarge(err error) bool { return KindOf(err) == KindPayloadTooLarge }
func IsKeyError(err error) bool        { return KindOf(err) == KindKey }

// Status maps err to the HTTP status the framework answers with.
func Status(err error) int {
	switch KindOf(err) {
	case KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindParse, KindEscape, KindValue, KindKey:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
