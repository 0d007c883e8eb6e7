// Package errors provides standardized error messaging for jinix.
//
// Every failure raised while nativizing a method falls in one of a few
// categories. None of them is recoverable: the build stops and reports the
// offending class or method instead of emitting native code that could
// corrupt the JVM's object model.
package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	// CategoryUnsupported marks managed code outside the transpiled subset.
	CategoryUnsupported ErrorCategory = "UNSUPPORTED"
	// CategoryResolution marks nodes the frontend could not resolve.
	CategoryResolution ErrorCategory = "RESOLUTION"
	// CategoryInvariant marks internal consistency failures.
	CategoryInvariant ErrorCategory = "INVARIANT"
	// CategoryExternal marks failures of I/O or the native toolchain.
	CategoryExternal ErrorCategory = "EXTERNAL"
	// CategoryValidation marks bad user input such as configuration.
	CategoryValidation ErrorCategory = "VALIDATION"
)

// StandardError provides a consistent error format
type StandardError struct {
	Err      error
	Context  map[string]interface{}
	Category ErrorCategory
	Code     string
	Message  string
	Caller   string
}

// Error implements the error interface
func (e *StandardError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s:%s] %s", e.Category, e.Code, e.Message)
	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%s=%v", k, e.Context[k])
		}
		sb.WriteString(")")
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

// Unwrap exposes the wrapped cause to errors.Is and errors.As.
func (e *StandardError) Unwrap() error { return e.Err }

// With returns the error with an extra context entry.
func (e *StandardError) With(key string, value interface{}) *StandardError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewStandardError creates a new standardized error
func NewStandardError(category ErrorCategory, code, message string, context map[string]interface{}) *StandardError {
	return &StandardError{
		Category: category,
		Code:     code,
		Message:  message,
		Context:  context,
		Caller:   caller(2),
	}
}

func caller(skip int) string {
	pc, _, _, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}
	if fn := runtime.FuncForPC(pc); fn != nil {
		return fn.Name()
	}
	return "unknown"
}

// Unsupported reports a managed construct the transpiler refuses to handle.
func Unsupported(construct, detail string) *StandardError {
	msg := fmt.Sprintf("unsupported %s", construct)
	if detail != "" {
		msg += ": " + detail
	}
	e := NewStandardError(CategoryUnsupported, "UNSUPPORTED_CONSTRUCT", msg,
		map[string]interface{}{"construct": construct})
	e.Caller = caller(2)
	return e
}

// Unresolved reports a name, member or type without resolution data.
func Unresolved(what, name string) *StandardError {
	e := NewStandardError(CategoryResolution, "UNRESOLVED",
		fmt.Sprintf("cannot resolve %s %q", what, name),
		map[string]interface{}{"kind": what})
	e.Caller = caller(2)
	return e
}

// Invariant reports an internal consistency failure.
func Invariant(format string, args ...interface{}) *StandardError {
	e := NewStandardError(CategoryInvariant, "INVARIANT_VIOLATION", fmt.Sprintf(format, args...), nil)
	e.Caller = caller(2)
	return e
}

// External wraps an I/O or toolchain failure for the named subject
// (file, class or command).
func External(subject string, err error) *StandardError {
	e := NewStandardError(CategoryExternal, "EXTERNAL_FAILURE", subject, nil)
	e.Err = err
	e.Caller = caller(2)
	return e
}

// Invalid reports bad user-supplied input.
func Invalid(format string, args ...interface{}) *StandardError {
	e := NewStandardError(CategoryValidation, "INVALID_INPUT", fmt.Sprintf(format, args...), nil)
	e.Caller = caller(2)
	return e
}

// IsCategory reports whether err, or anything it wraps, is a StandardError
// of the given category.
func IsCategory(err error, category ErrorCategory) bool {
	var se *StandardError
	for err != nil {
		if !stderrors.As(err, &se) {
			return false
		}
		if se.Category == category {
			return true
		}
		err = se.Err
	}
	return false
}

// InMethod annotates err with the method it was raised for, keeping
// StandardErrors intact so their category survives.
func InMethod(err error, class, method string) error {
	if err == nil {
		return nil
	}
	var se *StandardError
	if stderrors.As(err, &se) {
		se.With("method", class+"#"+method)
		return err
	}
	return fmt.Errorf("%s#%s: %w", class, method, err)
}
