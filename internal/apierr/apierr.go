// Package apierr defines the structured client-facing error shape used at
// the HTTP boundary (spec §7: "Client error ... 4xx with a machine-readable
// detail"). Core packages return these as plain Go errors; the httpapi
// layer maps them to status codes. This replaces exceptions-for-control-flow
// with result-shaped returns at API boundaries (§9 design note).
package apierr

import "fmt"

// Code is a machine-readable error identifier stable across releases.
type Code string

const (
	CodeNotFound        Code = "not_found"
	CodeAlreadyExists   Code = "already_exists"
	CodeInvalidArgument Code = "invalid_argument"
	CodeConflict        Code = "conflict"
	CodeUnauthorized    Code = "unauthorized"
)

// Error is the boundary error shape. It implements the error interface so
// core code can return it directly; httpapi type-asserts with errors.As.
type Error struct {
	Code   Code
	Detail string
	Status int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

// NotFound builds a 404-mapped error.
func NotFound(detail string) *Error {
	return &Error{Code: CodeNotFound, Detail: detail, Status: 404}
}

// Invalid builds a 400-mapped error for malformed or invariant-violating input.
func Invalid(detail string) *Error {
	return &Error{Code: CodeInvalidArgument, Detail: detail, Status: 400}
}

// Conflict builds a 409-mapped error, used for invariant refusals such as
// deleting the default vault or a non-empty vault.
func Conflict(detail string) *Error {
	return &Error{Code: CodeConflict, Detail: detail, Status: 409}
}

// Unauthorized builds a 401-mapped error with no body, per spec §7's
// "signature mismatches never leak timing information" contract — callers
// must not echo Detail in the webhook path.
func Unauthorized(detail string) *Error {
	return &Error{Code: CodeUnauthorized, Detail: detail, Status: 401}
}
