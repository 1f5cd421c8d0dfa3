package apperr

// Result is the Ok/Err variant returned by commands that never throw.
type Result[T any] struct {
	Value   T
	Kind    Kind
	Message string
	ok      bool
}

// Ok wraps a successful value.
func Ok[T any](value T) Result[T] {
	return Result[T]{Value: value, ok: true}
}

// Err wraps a failure.
func Err[T any](kind Kind, message string) Result[T] {
	return Result[T]{Kind: kind, Message: message}
}

// ErrFrom converts an error into a failed Result.
func ErrFrom[T any](err error) Result[T] {
	return Result[T]{Kind: KindOf(err), Message: MessageOf(err)}
}

// Success reports whether the Result holds a value.
func (r Result[T]) Success() bool {
	return r.ok
}
