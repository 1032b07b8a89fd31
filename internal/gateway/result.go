package gateway

// Result is the tagged outcome of a gateway call: either a value or an error,
// never both. Callers branch on Ok instead of inspecting optional response fields.
type Result[T any] struct {
	value T
	err   error
	ok    bool
}

func Success[T any](value T) Result[T] {
	return Result[T]{value: value, ok: true}
}

func Failure[T any](err error) Result[T] {
	return Result[T]{err: err}
}

func (r Result[T]) Ok() bool {
	return r.ok
}

// Value returns the success value, or the zero value for a failure.
func (r Result[T]) Value() T {
	return r.value
}

// Err returns the failure cause, or nil for a success.
func (r Result[T]) Err() error {
	return r.err
}

// Unwrap converts the result into the conventional value, error pair.
func (r Result[T]) Unwrap() (T, error) {
	return r.value, r.err
}
