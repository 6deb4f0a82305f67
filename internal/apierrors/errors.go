// Package apierrors classifies control-plane failures into the kinds the
// HTTP surface maps to status codes, per the error taxonomy of the
// deployment and session control plane.
package apierrors

import (
	"fmt"
	"net/http"
)

// Kind classifies a control-plane error for HTTP status mapping and
// caller branching. It is never retried automatically.
type Kind string

const (
	KindInvalidArgument    Kind = "InvalidArgument"
	KindNotFound           Kind = "NotFound"
	KindConflict           Kind = "Conflict"
	KindPreconditionFailed Kind = "PreconditionFailed"
	KindTimeout            Kind = "Timeout"
	KindClusterError       Kind = "ClusterError"
)

// Error wraps an underlying cause with a Kind so handlers can branch on
// classification without string-matching.
type Error struct {
	Kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.msg, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.msg)
}

func (e *Error) Unwrap() error { return e.err }

func newErr(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, msg: msg, err: err}
}

func InvalidArgument(msg string, args ...interface{}) error {
	return newErr(KindInvalidArgument, fmt.Sprintf(msg, args...), nil)
}

func NotFound(msg string, args ...interface{}) error {
	return newErr(KindNotFound, fmt.Sprintf(msg, args...), nil)
}

func Conflict(msg string, args ...interface{}) error {
	return newErr(KindConflict, fmt.Sprintf(msg, args...), nil)
}

func PreconditionFailed(msg string, args ...interface{}) error {
	return newErr(KindPreconditionFailed, fmt.Sprintf(msg, args...), nil)
}

// errFatalPrecondition marks a PreconditionFailed error as reflecting a
// cluster-side failure (e.g. post-deploy health validation) rather than
// a caller mistake, so it maps to 500 instead of 400.
var errFatalPrecondition = fmt.Errorf("precondition failure is fatal")

func PreconditionFailedFatal(msg string, args ...interface{}) error {
	return newErr(KindPreconditionFailed, fmt.Sprintf(msg, args...), errFatalPrecondition)
}

func Timeout(msg string, args ...interface{}) error {
	return newErr(KindTimeout, fmt.Sprintf(msg, args...), nil)
}

func Cluster(err error, msg string, args ...interface{}) error {
	return newErr(KindClusterError, fmt.Sprintf(msg, args...), err)
}

// As extracts the *Error from err, if any, via errors.As semantics
// implemented manually to avoid importing "errors" just for this.
func As(err error) (*Error, bool) {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = u.Unwrap()
	}
	return nil, false
}

// StatusCode maps a Kind to the HTTP status code the surface returns.
func StatusCode(err error) int {
	e, ok := As(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindInvalidArgument, KindConflict:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindPreconditionFailed:
		if e.err == errFatalPrecondition {
			return http.StatusInternalServerError
		}
		return http.StatusBadRequest
	case KindTimeout, KindClusterError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
