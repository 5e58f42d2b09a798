package dispatchz

import (
	"errors"
	"fmt"
)

// Registration Errors
//
// These errors are returned to the caller of Bind, Clear and Unbind.

// ErrInvalidKey is returned when a hook key is nil or is not a string,
// an integer, or a sequence of those. It is always wrapped in a *KeyError.
var ErrInvalidKey = errors.New("invalid hook key")

// ErrInvalidCallback is returned by Bind when the callback cannot be
// invoked. The registry is left untouched.
var ErrInvalidCallback = errors.New("callback is not invokable")

// ErrAlreadyUnbound is returned when unbinding a Binding that has
// already been unbound or was never valid.
var ErrAlreadyUnbound = errors.New("binding already unbound")

// ErrBindingNotFound is returned when a Binding's callbacks are no longer
// registered, usually because its keys were cleared.
var ErrBindingNotFound = errors.New("binding not found")

// Dispatch Errors
//
// Callback failures never reach the caller of Run or Filter. They are
// recorded on the debug sink and counted in Metrics.

// ErrCallbackPanicked marks a callback invocation that panicked.
var ErrCallbackPanicked = errors.New("callback panicked during execution")

// ErrUnexpectedType is returned by the typed helpers when a value does not
// have the requested type.
var ErrUnexpectedType = errors.New("unexpected value type")

// KeyError reports the raw key that could not be normalized.
type KeyError struct {
	Key any
}

func (e *KeyError) Error() string {
	if e.Key == nil {
		return "invalid hook key: <nil>"
	}
	return fmt.Sprintf("invalid hook key: unsupported type %T", e.Key)
}

// Unwrap allows errors.Is(err, ErrInvalidKey).
func (e *KeyError) Unwrap() error {
	return ErrInvalidKey
}

// CallbackError describes a single failed callback invocation.
type CallbackError struct {
	Key      Key
	Priority int
	Err      error
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("callback on %q at priority %d: %v", e.Key, e.Priority, e.Err)
}

func (e *CallbackError) Unwrap() error {
	return e.Err
}
