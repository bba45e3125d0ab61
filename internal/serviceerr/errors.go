// Package serviceerr defines the domain error kinds exposed by the
// authorization flows. Two kinds reach the caller: Forbidden (HTTP 403
// or a failure redirect carrying ?error=<code>) and Unauthorized (HTTP
// 401, no valid session). The Reason field is for logs only and must
// never be written to a response.
package serviceerr

import (
	"errors"
	"fmt"
)

const (
	CodeAccessDenied           = "access_denied"
	CodeAuthenticationRequired = "authentication_required"
	CodeInvalidSignature       = "invalid_signature"
)

var ErrNotFound = errors.New("not found")

type Forbidden struct {
	Code   string
	Reason string
	Err    error
}

func (e *Forbidden) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("forbidden (%s): %s: %v", e.Code, e.Reason, e.Err)
	}

	return fmt.Sprintf("forbidden (%s): %s", e.Code, e.Reason)
}

func (e *Forbidden) Unwrap() error { return e.Err }

type Unauthorized struct {
	Code   string
	Reason string
}

func (e *Unauthorized) Error() string {
	return fmt.Sprintf("unauthorized (%s): %s", e.Code, e.Reason)
}

// NewForbidden wraps a provider or protocol failure with the error code
// sent back to the caller.
func NewForbidden(code, reason string, cause error) *Forbidden {
	return &Forbidden{Code: code, Reason: reason, Err: cause}
}

func AccessDenied(reason string) *Forbidden {
	return &Forbidden{Code: CodeAccessDenied, Reason: reason}
}

// InvalidSignature is a specialisation of Forbidden used by the
// signature verifier. The reason distinguishes which verification step
// failed; the outward code is always invalid_signature.
func InvalidSignature(reason string, cause error) *Forbidden {
	return &Forbidden{Code: CodeInvalidSignature, Reason: reason, Err: cause}
}

func AuthenticationRequired(reason string) *Unauthorized {
	return &Unauthorized{Code: CodeAuthenticationRequired, Reason: reason}
}

// CodeOf extracts the outward error code for a response body or
// failure-redirect query parameter.
func CodeOf(err error) string {
	var forbidden *Forbidden
	if errors.As(err, &forbidden) {
		return forbidden.Code
	}

	var unauthorized *Unauthorized
	if errors.As(err, &unauthorized) {
		return unauthorized.Code
	}

	return CodeAccessDenied
}
