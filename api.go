// Package dispatchz provides a synchronous, in-process hook dispatch engine.
//
// Callers bind named callbacks ("hooks") at a priority and later trigger
// every callback bound to a name, either as a notification (Run) or as a
// value transforming pipeline (Filter):
//   - Lower priorities run first; equal priorities run in bind order
//   - A failing or panicking callback never stops the rest of the dispatch
//   - Clear and Bind announce themselves through meta-events, so hooks can
//     observe the registry with the same mechanism they use for everything else
//
// Basic Usage:
//
//	engine := dispatchz.New()
//
//	engine.Bind("price", dispatchz.TransformOf(func(p int) int { return p * 3 }), dispatchz.WithPriority(1))
//	engine.Bind("price", dispatchz.TransformOf(func(p int) int { return p + 1 }))
//
//	price, err := engine.Filter("price", 3) // (3*3)+1 = 10
//
//	engine.Bind("order.saved", dispatchz.Notify(func(args ...any) {
//		audit(args[0])
//	}))
//	n, err := engine.Run("order.saved", order) // n callbacks acted
//
// Keys:
//
// Every operation accepts a single key (string or integer) or a slice of
// keys. A slice fans the operation out over each key in order. Filter
// threads the value through all of them; Run returns the count of the last
// key only.
//
// Concurrency:
//
// The engine is designed for a single logical thread of control. Its
// registry is guarded by one lock that is never held while a callback runs,
// so callbacks may re-enter Bind, Clear, Run and Filter freely. A dispatch
// iterates over a snapshot of each key taken when that key's processing
// starts; re-entrant binds apply to the next dispatch.
package dispatchz

// Key identifies a hook. Integer keys are stored in their decimal form.
//
// Basic Usage with constants (recommended):
//
//	const (
//		OrderSaved dispatchz.Key = "order.saved"
//		OrderPrice dispatchz.Key = "order.price"
//	)
type Key = string

// DefaultPriority is the priority used by Bind without WithPriority.
const DefaultPriority = 10

// Meta-events emitted by the engine itself.
//
// Per key clear events also fire on ClearEvent(key) and ClearDoneEvent(key).
// Clear events receive a single map[string]any{"hook": key} parameter.
const (
	EventBind         Key = "hooks-bind"
	EventBindDone     Key = "hooks-bind-done"
	EventUnbind       Key = "hooks-unbind"
	EventUnbindDone   Key = "hooks-unbind-done"
	EventClear        Key = "hooks-clear"
	EventClearAll     Key = "hooks-clear-all"
	EventClearOne     Key = "hooks-clear-one"
	EventClearOneDone Key = "hooks-clear-one-done"
	EventClearDone    Key = "hooks-clear-done"
)

// ClearEvent is the meta-event fired just before key is cleared.
func ClearEvent(key Key) Key {
	return "hooks-clear-" + key
}

// ClearDoneEvent is the meta-event fired just after key is cleared.
func ClearDoneEvent(key Key) Key {
	return "hooks-clear-" + key + "-done"
}
