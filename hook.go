package dispatchz

// Binding is a handle to the callbacks registered by one Bind call.
//
// Bind on several keys at once yields a single Binding covering all of
// them. Keep the handle if the callbacks must be removed later without
// clearing every other callback on the same keys.
//
// Example:
//
//	b, err := engine.Bind([]string{"save", "publish"}, onChange)
//	if err != nil {
//	    return err
//	}
//
//	// Later
//	if err := b.Unbind(); err != nil {
//	    log.Printf("unbind: %v", err)
//	}
type Binding struct {
	id       string
	keys     []Key
	priority int

	// unbind is one-shot across every copy of the Binding.
	unbind func() error
}

// ID returns the unique identifier of this binding.
func (b *Binding) ID() string {
	return b.id
}

// Keys returns the normalized keys the callback was bound to.
func (b *Binding) Keys() []Key {
	return append([]Key(nil), b.keys...)
}

// Priority returns the priority the callback was bound at.
func (b *Binding) Priority() int {
	return b.priority
}

// Unbind removes the callbacks registered by this binding.
//
// Returns:
//   - nil: callbacks removed
//   - ErrAlreadyUnbound: the handle or a copy of it was already used, or
//     it is the zero value
//   - ErrBindingNotFound: the callbacks were removed by Clear or ClearAll
func (b *Binding) Unbind() error {
	if b.unbind == nil {
		return ErrAlreadyUnbound
	}
	err := b.unbind()
	b.unbind = nil
	return err
}
