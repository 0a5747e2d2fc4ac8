package filescan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Kind classifies the outcome of a failed operation.
type Kind int

const (
	KindUnknown Kind = iota
	KindConstruction
	KindIO
	KindTransport
	KindService
	KindMalformed
	KindCancelled
	KindUnavailable
)

// Sentinel errors matched by errors.Is against any *Error of the same kind.
var (
	ErrConstruction      = errors.New("filescan: handle construction failed")
	ErrIO                = errors.New("filescan: local i/o failure")
	ErrTransport         = errors.New("filescan: transport failure")
	ErrService           = errors.New("filescan: service returned an error status")
	ErrMalformedResponse = errors.New("filescan: malformed response")
	ErrCancelled         = errors.New("filescan: cancelled")
	ErrUnavailable       = errors.New("filescan: capability not available")

	// ErrStop may be returned by a sink to end a stream early.
	ErrStop = errors.New("filescan: stop")
)

func (k Kind) String() string {
	switch k {
	case KindConstruction:
		return "construction"
	case KindIO:
		return "io"
	case KindTransport:
		return "transport"
	case KindService:
		return "service"
	case KindMalformed:
		return "malformed"
	case KindCancelled:
		return "cancelled"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindConstruction:
		return ErrConstruction
	case KindIO:
		return ErrIO
	case KindTransport:
		return ErrTransport
	case KindService:
		return ErrService
	case KindMalformed:
		return ErrMalformedResponse
	case KindCancelled:
		return ErrCancelled
	case KindUnavailable:
		return ErrUnavailable
	default:
		return nil
	}
}

// Error is the error type returned by every FileScan operation.
type Error struct {
	// Op is the operation that failed (e.g. "scan", "download").
	Op string

	Kind Kind

	// StatusCode is the HTTP status for KindService, zero otherwise.
	StatusCode int

	// Body holds the service payload of a failed streaming call, truncated
	// to maxErrorBody bytes. Single-shot calls keep it in Response instead.
	Body []byte

	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Kind == KindService && e.Err != nil:
		return fmt.Sprintf("filescan.%s: status %d: %v", e.Op, e.StatusCode, e.Err)
	case e.Kind == KindService:
		return fmt.Sprintf("filescan.%s: status %d %s", e.Op, e.StatusCode, http.StatusText(e.StatusCode))
	case e.Err != nil:
		return fmt.Sprintf("filescan.%s: %s: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("filescan.%s: %s", e.Op, e.Kind)
	}
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

func newError(op string, kind Kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

func serviceError(op string, status int, body []byte) *Error {
	return &Error{Op: op, Kind: KindService, StatusCode: status, Body: body}
}

// KindOf returns the kind of err, or KindUnknown when err is not an *Error.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// StatusCode returns the service status carried by err, or 0.
func StatusCode(err error) int {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.StatusCode
	}
	return 0
}

// IsAuthorization reports whether the service rejected the credential or
// the caller lacks the permission the operation needs.
func IsAuthorization(err error) bool {
	code := StatusCode(err)
	return code == http.StatusForbidden || code == http.StatusUnauthorized
}

// IsQuotaExceeded reports whether the service refused the call because the
// request quota for the key is exhausted. The public API signals this with
// 204 No Content; 429 is accepted too.
func IsQuotaExceeded(err error) bool {
	code := StatusCode(err)
	return code == http.StatusNoContent || code == http.StatusTooManyRequests
}

// localError marks a failure reading caller-side data while a request body
// was being streamed to the service.
type localError struct {
	err error
}

func (e *localError) Error() string { return e.err.Error() }
func (e *localError) Unwrap() error { return e.err }

// localReader tags every read error of r as local.
type localReader struct {
	r io.Reader
}

func (l localReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	if err != nil && err != io.EOF {
		err = &localError{err: err}
	}
	return n, err
}

// classify picks the kind of a failure that happened while exchanging data
// with the service.
func classify(err error) Kind {
	var le *localError
	switch {
	case errors.As(err, &le):
		return KindIO
	case errors.Is(err, context.Canceled):
		return KindCancelled
	default:
		return KindTransport
	}
}
