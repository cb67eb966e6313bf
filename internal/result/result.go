// Package result carries backend call outcomes across the sync layer
// boundary. No errors are panicked across it; callers switch on the
// three states instead.
package result

// State discriminates the outcome of a backend operation.
type State int

const (
	// Success means the operation completed and Value holds the data.
	Success State = iota
	// Failure means the backend reported an error.
	Failure
	// NotFound means the target was absent. Expected absence is not an
	// error; callers that care distinguish it from Failure.
	NotFound
)

// Result is a tagged outcome of a backend call.
type Result[T any] struct {
	state State
	value T
	err   error
}

// Ok wraps a successful value.
func Ok[T any](v T) Result[T] {
	return Result[T]{state: Success, value: v}
}

// Fail wraps a backend error.
func Fail[T any](err error) Result[T] {
	return Result[T]{state: Failure, err: err}
}

// Missing marks an expected absence.
func Missing[T any]() Result[T] {
	return Result[T]{state: NotFound}
}

// State returns the outcome discriminator.
func (r Result[T]) State() State { return r.state }

// IsOk reports whether the operation succeeded.
func (r Result[T]) IsOk() bool { return r.state == Success }

// IsNotFound reports whether the target was absent.
func (r Result[T]) IsNotFound() bool { return r.state == NotFound }

// Value returns the wrapped value. Zero value unless IsOk.
func (r Result[T]) Value() T { return r.value }

// Err returns the wrapped error. Nil unless the state is Failure.
func (r Result[T]) Err() error { return r.err }

// Unit is the value type for operations that succeed without data.
type Unit = struct{}

// OkUnit is a successful Result carrying no data.
func OkUnit() Result[Unit] { return Ok(Unit{}) }
