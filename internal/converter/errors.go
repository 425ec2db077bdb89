package converter

import (
	"errors"
	"fmt"
)

// Code is a stable failure code reported to callers of Assemble.
type Code string

const (
	CodeInvalidRequest Code = "invalid_request"
	CodeDecode         Code = "decode_failed"
	CodeRecompress     Code = "recompress_failed"
	CodeCompose        Code = "compose_failed"
	CodeFinalize       Code = "finalize_failed"
	CodeDestination    Code = "destination_failed"
)

var (
	// ErrInvalidRequest is returned when a ConversionRequest fails validation.
	ErrInvalidRequest = errors.New("invalid conversion request")
	// ErrDecode is returned when a source cannot be opened, resolved or decoded.
	ErrDecode = errors.New("could not decode image")
	// ErrRecompress is returned when the lossy round trip fails.
	ErrRecompress = errors.New("could not recompress image")
	// ErrCompose is returned when a page cannot be added to the document.
	ErrCompose = errors.New("could not compose page")
	// ErrFinalize is returned when the document cannot be serialized or fails verification.
	ErrFinalize = errors.New("could not finalize document")
	// ErrDestination is returned when the output sink rejects the document.
	ErrDestination = errors.New("could not write document to destination")
)

var codeSentinels = map[Code]error{
	CodeInvalidRequest: ErrInvalidRequest,
	CodeDecode:         ErrDecode,
	CodeRecompress:     ErrRecompress,
	CodeCompose:        ErrCompose,
	CodeFinalize:       ErrFinalize,
	CodeDestination:    ErrDestination,
}

// ConversionError is the single error type surfaced by Assemble.
// Index and Ref identify the image being processed, Index is -1 when
// the failure is not tied to one image.
type ConversionError struct {
	Code  Code
	Index int
	Ref   string
	Err   error
}

func (e *ConversionError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("%s: image %d (%s): %v", e.Code, e.Index, e.Ref, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel matching the error's code.
func (e *ConversionError) Is(target error) bool {
	return codeSentinels[e.Code] == target
}

func newError(code Code, index int, ref string, err error) *ConversionError {
	return &ConversionError{Code: code, Index: index, Ref: ref, Err: err}
}

// CodeOf extracts the failure code from err, or "" if err is not a ConversionError.
func CodeOf(err error) Code {
	var convErr *ConversionError
	if errors.As(err, &convErr) {
		return convErr.Code
	}
	return ""
}
