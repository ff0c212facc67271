// Package errs defines the structured error taxonomy the engine uses at
// every boundary: transient (retryable), protocol, validation, store and
// fatal errors, each carrying a context bag so callers can log and
// correlate without re-deriving channel/nonce/update-type from the error
// string.
package errs

import (
	"fmt"

	goerrors "github.com/go-errors/errors"
)

// Category classifies an error for retry and surfacing decisions.
type Category string

const (
	Transient  Category = "transient"
	Protocol   Category = "protocol"
	Validation Category = "validation"
	Store      Category = "store"
	Fatal      Category = "fatal"
)

// Error wraps an underlying go-errors error (for its stack trace) with a
// category and a structured context bag.
type Error struct {
	Category Category
	Context  map[string]interface{}
	cause    *goerrors.Error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s %v", e.Category, e.cause.Error(), e.Context)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Stack returns the formatted stack trace of the wrapped error, useful for
// logging Fatal-category errors.
func (e *Error) Stack() string {
	return string(e.cause.Stack())
}

func newErr(category Category, ctx map[string]interface{}, err error) *Error {
	if ctx == nil {
		ctx = map[string]interface{}{}
	}
	return &Error{
		Category: category,
		Context:  ctx,
		cause:    goerrors.Wrap(err, 1),
	}
}

func wrapf(category Category, ctx map[string]interface{}, format string, args ...interface{}) *Error {
	return newErr(category, ctx, fmt.Errorf(format, args...))
}

func TransientErr(ctx map[string]interface{}, format string, args ...interface{}) *Error {
	return wrapf(Transient, ctx, format, args...)
}

func ProtocolErr(ctx map[string]interface{}, format string, args ...interface{}) *Error {
	return wrapf(Protocol, ctx, format, args...)
}

func ValidationErr(ctx map[string]interface{}, format string, args ...interface{}) *Error {
	return wrapf(Validation, ctx, format, args...)
}

func StoreErr(ctx map[string]interface{}, method string, err error) *Error {
	if ctx == nil {
		ctx = map[string]interface{}{}
	}
	ctx["method"] = method
	return newErr(Store, ctx, err)
}

func FatalErr(ctx map[string]interface{}, format string, args ...interface{}) *Error {
	return wrapf(Fatal, ctx, format, args...)
}

// Wrap lifts a plain error into a categorized Error, preserving an existing
// category if err is already one of ours.
func Wrap(category Category, ctx map[string]interface{}, err error) *Error {
	if err == nil {
		return nil
	}
	if existing, ok := err.(*Error); ok {
		return existing
	}
	return newErr(category, ctx, err)
}

// Is reports whether err is an *Error of the given category.
func Is(err error, category Category) bool {
	e, ok := err.(*Error)
	return ok && e.Category == category
}
