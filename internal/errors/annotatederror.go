// Package errors wraps the standard library errors with annotations that show up as structured log attributes.
//
// Errors created with New, Wrap, and DecoratePanic remember where they were created. SlogError turns such an error
// into a slog group with the message, the origin, and every annotation collected along the wrap chain.
package errors

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
)

type annotatedError struct {
	msg         string
	cause       error
	annotations []slog.Attr
	source      string
}

func (e *annotatedError) Error() string {
	if e.cause == nil {
		return e.msg
	}
	return e.msg + ": " + e.cause.Error()
}

func (e *annotatedError) Unwrap() error {
	return e.cause
}

func callerSource(skip int) string {
	_, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return ""
	}
	return fmt.Sprintf("%s:%d", file, line)
}

// NewSentinel creates an error without annotations meant to be compared with Is.
func NewSentinel(msg string) error {
	return stderrors.New(msg) //nolint:err113 // this is the sentinel constructor.
}

// New creates an annotated error.
func New(msg string, annotations ...slog.Attr) error {
	return &annotatedError{msg: msg, cause: nil, annotations: annotations, source: callerSource(1)}
}

// Wrap annotates err with a message and attributes.
func Wrap(err error, msg string, annotations ...slog.Attr) error {
	return &annotatedError{msg: msg, cause: err, annotations: annotations, source: callerSource(1)}
}

// DecoratePanic converts a recovered panic value into an error pointing at the panicking line.
func DecoratePanic(excp any) error {
	if excp == nil {
		return nil
	}
	err := &annotatedError{msg: fmt.Sprintf("panic: %v", excp), cause: nil, annotations: nil, source: ""}
	if cause, ok := excp.(error); ok {
		err.msg = "panic"
		err.cause = cause
	}

	const maxDepth = 32
	pcs := make([]uintptr, maxDepth)
	n := runtime.Callers(1, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	afterPanic := false
	for {
		frame, more := frames.Next()
		if afterPanic && !strings.HasPrefix(frame.Function, "runtime.") {
			err.source = fmt.Sprintf("%s:%d", frame.File, frame.Line)
			break
		}
		if frame.Function == "runtime.gopanic" {
			afterPanic = true
		}
		if !more {
			break
		}
	}
	return err
}

// SlogError returns err as a slog attribute grouped under the "error" key.
func SlogError(err error) slog.Attr {
	if err == nil {
		return slog.Any("error", nil)
	}

	var (
		annotations []any
		origin      string
	)
	for cur := err; cur != nil; cur = stderrors.Unwrap(cur) {
		var ae *annotatedError
		if !stderrors.As(cur, &ae) {
			break
		}
		for _, a := range ae.annotations {
			annotations = append(annotations, a)
		}
		if ae.source != "" {
			origin = ae.source
		}
		cur = ae
	}

	attrs := []any{slog.String("message", err.Error())}
	if origin != "" {
		attrs = append(attrs, slog.String("source", origin))
	}
	if len(annotations) > 0 {
		attrs = append(attrs, slog.Group("annotations", annotations...))
	}
	return slog.Group("error", attrs...)
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Unwrap returns the result of calling the Unwrap method on err.
func Unwrap(err error) error {
	return stderrors.Unwrap(err)
}

// Join returns an error that wraps the given errors, discarding nils.
func Join(errs ...error) error {
	return stderrors.Join(errs...)
}
