// Package orgerrors defines the typed error taxonomy shared by every
// component of the organizer core. Each kind wraps an underlying cause so
// errors.Is/errors.As keep working across package boundaries, while Kind()
// lets the daemon's top-level handler branch on category without string
// matching.
package orgerrors

import (
	"errors"
	"fmt"
)

// Kind identifies which of the taxonomy's categories an error belongs to.
type Kind string

const (
	KindConfig          Kind = "config"
	KindProvider        Kind = "provider"
	KindCoerceFailed    Kind = "coerce_failed"
	KindExtractFailed   Kind = "extract_failed"
	KindTemplateResolve Kind = "template_resolve_failed"
	KindCommitFailed    Kind = "commit_failed"
	KindCatalog         Kind = "catalog"
	KindCancelled       Kind = "cancelled"
)

// Error is a taxonomy-tagged error. Stage and Path are best-effort context
// attached by the caller that first observed the failure.
type Error struct {
	kind  Kind
	Stage string
	Path  string
	cause error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.Path, e.cause)
	}
	return fmt.Sprintf("%s: %v", e.kind, e.cause)
}

func (e *Error) Unwrap() error { return e.cause }

// Kind reports the taxonomy category of the error.
func (e *Error) Kind() Kind { return e.kind }

func newError(kind Kind, cause error) *Error {
	return &Error{kind: kind, cause: cause}
}

func Config(cause error) *Error          { return newError(KindConfig, cause) }
func Provider(cause error) *Error        { return newError(KindProvider, cause) }
func CoerceFailed(cause error) *Error    { return newError(KindCoerceFailed, cause) }
func ExtractFailed(cause error) *Error   { return newError(KindExtractFailed, cause) }
func TemplateResolve(cause error) *Error { return newError(KindTemplateResolve, cause) }
func CommitFailed(cause error) *Error    { return newError(KindCommitFailed, cause) }
func Catalog(cause error) *Error         { return newError(KindCatalog, cause) }
func Cancelled(cause error) *Error       { return newError(KindCancelled, cause) }

// WithContext attaches stage/path context and returns the same error for
// chaining at the call site, e.g. `return orgerrors.CommitFailed(err).WithContext("rename", path)`.
func (e *Error) WithContext(stage, path string) *Error {
	e.Stage = stage
	e.Path = path
	return e
}

// KindOf extracts the Kind of err if it (or something it wraps) is an
// *Error, and reports whether one was found.
func KindOf(err error) (Kind, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te.kind, true
	}
	return "", false
}

// Is reports whether err is (or wraps) an *Error of the given kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
