// Package try provides Try, a value-or-failure result that composes: map
// over successes, recover from failures, and convert to an optional value or
// a zero-or-one element sequence.
//
// Failures come in two flavours. Expected failures (a missing row, a
// constraint violation) are ordinary errors. Defects are programming errors:
// a panic inside a computation, or any error wrapping ErrDefect. Optional
// swallows expected failures but re-panics on defects so bugs are not
// mistaken for absence.
package try

import (
	"errors"
	"fmt"
	"iter"
	"reflect"
	"runtime/debug"
)

// ErrDefect marks failures that are programming errors rather than expected
// outcomes. Wrap it to make Optional re-panic.
var ErrDefect = errors.New("try: defect")

// PanicError is the failure recorded when a computation panics.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("try: panic: %v", e.Value) }

// Unwrap exposes the panic value when it was an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Is makes every PanicError match ErrDefect.
func (e *PanicError) Is(target error) bool { return target == ErrDefect }

// Try holds either a value or the error that prevented computing it. The
// zero value is a success holding T's zero value.
type Try[T any] struct {
	v   T
	err error
}

// Success wraps a value.
func Success[T any](v T) Try[T] { return Try[T]{v: v} }

// Failure wraps an error. A nil error is a defect.
func Failure[T any](err error) Try[T] {
	if err == nil {
		err = fmt.Errorf("%w: Failure called with a nil error", ErrDefect)
	}
	return Try[T]{err: err}
}

// Of runs f now and captures its outcome. A panic in f becomes a
// *PanicError failure.
func Of[T any](f func() (T, error)) (t Try[T]) {
	defer func() {
		if p := recover(); p != nil {
			t = Try[T]{err: &PanicError{Value: p, Stack: debug.Stack()}}
		}
	}()
	v, err := f()
	if err != nil {
		return Try[T]{err: err}
	}
	return Try[T]{v: v}
}

// Map applies f to a success. Failures pass through untouched; a panic in f
// becomes a *PanicError failure.
func Map[T, U any](t Try[T], f func(T) (U, error)) Try[U] {
	if t.err != nil {
		return Try[U]{err: t.err}
	}
	return Of(func() (U, error) { return f(t.v) })
}

// IsSuccess reports whether t holds a value.
func (t Try[T]) IsSuccess() bool { return t.err == nil }

// Err returns the failure, or nil for a success.
func (t Try[T]) Err() error { return t.err }

// Get returns the value and the failure, Go style.
func (t Try[T]) Get() (T, error) { return t.v, t.err }

// OrElse returns the value, or def for a failure.
func (t Try[T]) OrElse(def T) T {
	if t.err != nil {
		return def
	}
	return t.v
}

// Recover turns a failure into the outcome of h. Successes pass through.
func (t Try[T]) Recover(h func(error) (T, error)) Try[T] {
	if t.err == nil {
		return t
	}
	return Of(func() (T, error) { return h(t.err) })
}

// Optional returns the value and true for a success and false for an
// expected failure. Defects are re-raised as a panic with the failure.
func (t Try[T]) Optional() (T, bool) {
	if t.err == nil {
		return t.v, true
	}
	if errors.Is(t.err, ErrDefect) {
		panic(t.err)
	}
	var zero T
	return zero, false
}

// Seq yields the value once for a success holding a non-nil value, and
// nothing otherwise.
func (t Try[T]) Seq() iter.Seq[T] {
	return func(yield func(T) bool) {
		if t.err == nil && !isNil(t.v) {
			yield(t.v)
		}
	}
}

// Concat flattens the sequences of several results into one.
func Concat[T any](ts ...Try[T]) iter.Seq[T] {
	return func(yield func(T) bool) {
		for _, t := range ts {
			for v := range t.Seq() {
				if !yield(v) {
					return
				}
			}
		}
	}
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
