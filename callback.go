package dispatchz

import "fmt"

// Callback is the unit of work bound to a hook.
//
// For Run, args are the parameters passed to Run. For Filter, args[0] is the
// value being filtered and the rest are the Filter parameters; the returned
// value replaces the filtered value. Returning a non-nil error (or panicking)
// marks the invocation as failed: it is excluded from Run's count and leaves
// the filtered value unchanged.
//
// A Run callback that returns the boolean false signals that it did not act
// and is not counted.
type Callback func(args ...any) (any, error)

// Notify adapts a function with no result. Each invocation is counted by Run.
func Notify(fn func(args ...any)) Callback {
	if fn == nil {
		return nil
	}
	return func(args ...any) (any, error) {
		fn(args...)
		return nil, nil
	}
}

// Action adapts a function reporting whether it acted.
func Action(fn func(args ...any) bool) Callback {
	if fn == nil {
		return nil
	}
	return func(args ...any) (any, error) {
		return fn(args...), nil
	}
}

// Transform adapts an untyped filter function.
func Transform(fn func(value any, args ...any) any) Callback {
	if fn == nil {
		return nil
	}
	return func(args ...any) (any, error) {
		if len(args) == 0 {
			return fn(nil), nil
		}
		return fn(args[0], args[1:]...), nil
	}
}

// TransformOf adapts a typed filter function. Invocations whose value is not
// a T fail with ErrUnexpectedType and leave the value unchanged.
//
//	engine.Bind("price", dispatchz.TransformOf(func(p float64) float64 {
//		return p * 1.2
//	}))
func TransformOf[T any](fn func(T) T) Callback {
	if fn == nil {
		return nil
	}
	return func(args ...any) (any, error) {
		if len(args) == 0 {
			return nil, fmt.Errorf("%w: no value to filter", ErrUnexpectedType)
		}
		v, ok := args[0].(T)
		if !ok {
			return nil, fmt.Errorf("%w: got %T", ErrUnexpectedType, args[0])
		}
		return fn(v), nil
	}
}

// FilterAs runs Filter and asserts the result back to T. If the final value
// is not a T, the input value is returned with ErrUnexpectedType.
func FilterAs[T any](e *Engine, key any, value T, params ...any) (T, error) {
	out, err := e.Filter(key, value, params...)
	if err != nil {
		return value, err
	}
	v, ok := out.(T)
	if !ok {
		return value, fmt.Errorf("%w: filter result is %T", ErrUnexpectedType, out)
	}
	return v, nil
}

// isFalse reports whether v is the boolean false.
func isFalse(v any) bool {
	b, ok := v.(bool)
	return ok && !b
}
