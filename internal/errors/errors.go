package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Code is a stable, machine-readable error type mapped to process exit codes.
type Code int

const (
	CodeSuccess       Code = 0
	CodeInternal      Code = 1
	CodeUsage         Code = 2
	CodeAuth          Code = 10
	CodeRateLimited   Code = 11
	CodeUnavailable   Code = 12
	CodeUnsupported   Code = 13
	CodeStale         Code = 14
	CodePartialStrict Code = 15
	CodeBlocked       Code = 16
	CodeProvider      Code = 17
	CodeNoProvider    Code = 18
)

// Kind is the caller-facing swap failure taxonomy.
type Kind string

const (
	KindUnknown               Kind = "UNKNOWN"
	KindInsufficientLiquidity Kind = "INSUFFICIENT_LIQUIDITY"
)

// Error is a typed CLI error that carries a stable error code and swap error kind.
type Error struct {
	Code    Code
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// WithKind returns a copy of e tagged with kind.
func (e *Error) WithKind(kind Kind) *Error {
	cp := *e
	cp.Kind = kind
	return &cp
}

func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

func ExitCode(err error) int {
	if err == nil {
		return int(CodeSuccess)
	}
	if cliErr, ok := As(err); ok {
		return int(cliErr.Code)
	}
	return int(CodeInternal)
}

// KindOf reports the swap error kind carried by err. Untyped errors are UNKNOWN.
func KindOf(err error) Kind {
	if cliErr, ok := As(err); ok && cliErr.Kind != "" {
		return cliErr.Kind
	}
	return KindUnknown
}

// HTTPStatus maps err to the status an HTTP front end should answer with.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	cliErr, ok := As(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch cliErr.Code {
	case CodeUsage, CodeUnsupported, CodeNoProvider, CodeBlocked:
		return http.StatusBadRequest
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeAuth, CodeProvider, CodeUnavailable, CodeStale, CodePartialStrict:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ClassifyMessage returns INSUFFICIENT_LIQUIDITY when msg contains any of phrases.
func ClassifyMessage(msg string, phrases []string) Kind {
	lower := strings.ToLower(msg)
	if lower == "" {
		return KindUnknown
	}
	for _, phrase := range phrases {
		if phrase != "" && strings.Contains(lower, strings.ToLower(phrase)) {
			return KindInsufficientLiquidity
		}
	}
	return KindUnknown
}
