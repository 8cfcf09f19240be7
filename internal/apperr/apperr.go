package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	// Inference is the zero value so unclassified failures map to 500.
	Inference Kind = iota
	Validation
	Decode
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case Decode:
		return "decode"
	default:
		return "inference"
	}
}

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return fmt.Sprintf("%s: %v", e.Msg, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Inference
}

func Status(err error) int {
	switch KindOf(err) {
	case Validation:
		return http.StatusBadRequest
	case Decode:
		return http.StatusUnsupportedMediaType
	default:
		return http.StatusInternalServerError
	}
}
