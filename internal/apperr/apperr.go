// Package apperr defines the error taxonomy shared by the query layer, the
// upload validator and the HTTP surface.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"schooldir/pkg/utils"
)

type Kind int

const (
	KindUnhandled Kind = iota
	KindValidation
	KindNotFound
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindPersistence:
		return "persistence"
	default:
		return "unhandled"
	}
}

// Error codes. Two errors with the same code compare equal under errors.Is.
const (
	CodeInvalidInput    = "validation/invalid_input"
	CodeInvalidPhone    = "validation/invalid_phone"
	CodeNoFiles         = "upload/no_files"
	CodeTooManyFiles    = "upload/too_many_files"
	CodeFileTooLarge    = "upload/file_too_large"
	CodeUnsupportedType = "upload/unsupported_type"
	CodeSchoolNotFound  = "resource/school_not_found"
	CodeImageNotFound   = "resource/image_not_found"
	CodePersistence     = "store/persistence_failed"
)

// Sentinels for errors.Is checks.
var (
	ErrInvalidPhone    = &Error{Kind: KindValidation, Code: CodeInvalidPhone}
	ErrNoFiles         = &Error{Kind: KindValidation, Code: CodeNoFiles}
	ErrTooManyFiles    = &Error{Kind: KindValidation, Code: CodeTooManyFiles}
	ErrFileTooLarge    = &Error{Kind: KindValidation, Code: CodeFileTooLarge}
	ErrUnsupportedType = &Error{Kind: KindValidation, Code: CodeUnsupportedType}
	ErrSchoolNotFound  = &Error{Kind: KindNotFound, Code: CodeSchoolNotFound}
	ErrImageNotFound   = &Error{Kind: KindNotFound, Code: CodeImageNotFound}
)

type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Code
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

// Validation builds a 400-class error.
func Validation(code, format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: fmt.Sprintf(format, args...)}
}

// NotFound builds a 404-class error.
func NotFound(code, format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Persistence wraps a storage failure. The cause is kept for logs only.
func Persistence(op string, err error) *Error {
	return &Error{Kind: KindPersistence, Code: CodePersistence, Message: op, Err: err}
}

// KindOf classifies err; anything outside the taxonomy is unhandled.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnhandled
}

// HTTPStatus maps an error to its response status.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the text safe to return to clients. Persistence and
// unhandled failures never leak their cause.
func PublicMessage(err error) (code, message string) {
	var e *Error
	if errors.As(err, &e) {
		switch e.Kind {
		case KindValidation, KindNotFound:
			if e.Message != "" {
				return e.Code, e.Message
			}
			return e.Code, e.Code
		case KindPersistence:
			return e.Code, "The record store is unavailable. Please try again."
		}
	}
	return utils.ErrServerInternal, "Internal server error occurred. Please try again."
}
