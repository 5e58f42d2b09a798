package dispatchz

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/zoobzio/clockz"
)

// Option configures an Engine during creation.
type Option func(*config)

// config holds internal configuration for engine creation.
type config struct {
	clock clockz.Clock // Time abstraction for deterministic testing
	level Level
	sink  Sink
}

// WithClock sets the clock used to stamp trace events and time callbacks.
// Default is clockz.RealClock. Use clockz.FakeClock for deterministic testing.
func WithClock(clock clockz.Clock) Option {
	return func(c *config) {
		c.clock = clock
	}
}

// WithSink sets the trace sink. Default is NopSink.
func WithSink(sink Sink) Option {
	return func(c *config) {
		c.sink = sink
	}
}

// WithDebugLevel sets which trace categories reach the sink.
// Default is DebugNone.
func WithDebugLevel(level Level) Option {
	return func(c *config) {
		c.level = level
	}
}

// WithDebug sets the sink and the trace categories in one option.
func WithDebug(level Level, sink Sink) Option {
	return func(c *config) {
		c.level = level
		c.sink = sink
	}
}

// BindOption configures a single Bind call.
type BindOption func(*bindConfig)

type bindConfig struct {
	priority int
}

// WithPriority sets the binding priority. Lower runs earlier.
// Default is DefaultPriority.
func WithPriority(priority int) BindOption {
	return func(c *bindConfig) {
		c.priority = priority
	}
}

// Engine is the hook registry and dispatcher.
//
// Each Engine owns its registry; there is no package level state, so
// independent engines can coexist in one process.
//
// Thread Safety:
// Registry access is guarded by a single lock that is released before any
// callback or sink runs. The engine performs no parallelism of its own and
// dispatch happens on the calling goroutine.
type Engine struct {
	clock    clockz.Clock
	registry *registry
	sink     Sink
	level    atomic.Uint32

	// Metrics field - zero initialization provides safe defaults
	metrics Metrics
}

// New creates an engine with the specified options.
//
// Example:
//
//	// Default configuration, no tracing
//	engine := dispatchz.New()
//
//	// Trace callback invocations and binds through zerolog
//	engine := dispatchz.New(
//	    dispatchz.WithDebug(dispatchz.DebugCalls|dispatchz.DebugBinds, dispatchz.NewZerologSink(log.Logger)),
//	)
func New(opts ...Option) *Engine {
	cfg := config{
		clock: clockz.RealClock,
		level: DebugNone,
		sink:  NopSink{},
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.sink == nil {
		cfg.sink = NopSink{}
	}

	e := &Engine{
		clock:    cfg.clock,
		registry: newRegistry(),
		sink:     cfg.sink,
	}
	e.level.Store(uint32(cfg.level))
	return e
}

// SetDebugLevel changes which trace categories reach the sink.
func (e *Engine) SetDebugLevel(level Level) {
	if e.tracing(DebugInteraction) {
		e.record(Event{Category: DebugInteraction, Op: "debug", Message: fmt.Sprintf("SetDebugLevel(level=%s)", level)})
	}
	e.level.Store(uint32(level))
}

// DebugLevel returns the enabled trace categories.
func (e *Engine) DebugLevel() Level {
	return Level(e.level.Load())
}

// Bind registers cb on every key in key, at DefaultPriority unless
// WithPriority is given.
//
// EventBind fires before the insertion and EventBindDone after it. A nil
// callback fails with ErrInvalidCallback and an unsupported key with a
// *KeyError; in both cases nothing is registered and no event fires.
func (e *Engine) Bind(key any, cb Callback, opts ...BindOption) (Binding, error) {
	bc := bindConfig{priority: DefaultPriority}
	for _, opt := range opts {
		opt(&bc)
	}

	if e.tracing(DebugInteraction) {
		e.record(Event{
			Category: DebugInteraction,
			Op:       "bind",
			Priority: bc.priority,
			Message:  fmt.Sprintf("Bind(hook=%s, priority=%d)", export(key), bc.priority),
		})
	}

	if cb == nil {
		return Binding{}, fmt.Errorf("%w: nil callback for hook %s", ErrInvalidCallback, export(key))
	}

	keys, err := normalizeKeys(key)
	if err != nil {
		return Binding{}, err
	}

	id := uuid.NewString()

	if e.tracing(DebugBinds) {
		for _, k := range keys {
			e.record(Event{
				Category: DebugBinds,
				Op:       "bind",
				Key:      k,
				Priority: bc.priority,
				Message:  fmt.Sprintf("binding %s to %s at priority %d", id, k, bc.priority),
			})
		}
	}

	e.emit([]Key{EventBind})
	for _, k := range keys {
		e.registry.bind(k, bc.priority, entry{id: id, callback: cb})
	}
	atomic.AddInt64(&e.metrics.Binds, 1)
	e.emit([]Key{EventBindDone})

	// Copies of the handle share done, so only the first Unbind reaches the
	// engine.
	var done atomic.Bool
	return Binding{
		id:       id,
		keys:     keys,
		priority: bc.priority,
		unbind: func() error {
			if !done.CompareAndSwap(false, true) {
				return ErrAlreadyUnbound
			}
			return e.unbind(id)
		},
	}, nil
}

// Unbind removes the callbacks registered by b.
func (e *Engine) Unbind(b *Binding) error {
	return b.Unbind()
}

func (e *Engine) unbind(id string) error {
	if e.tracing(DebugInteraction) {
		e.record(Event{Category: DebugInteraction, Op: "unbind", Message: fmt.Sprintf("Unbind(id=%s)", id)})
	}

	e.emit([]Key{EventUnbind})
	removed := e.registry.remove(id)
	atomic.AddInt64(&e.metrics.Cleared, int64(removed))
	e.emit([]Key{EventUnbindDone})

	if removed == 0 {
		return ErrBindingNotFound
	}
	return nil
}

// Run invokes every callback bound to key with params, in priority order.
//
// It returns how many callbacks acted: callbacks returning the boolean
// false, returning an error or panicking are not counted. When key holds
// several keys each one is dispatched in order and the count of the last
// key is returned; earlier keys contribute side effects only.
//
// The only error is a *KeyError for an unsupported key.
func (e *Engine) Run(key any, params ...any) (int, error) {
	if e.tracing(DebugInteraction) {
		e.record(Event{
			Category: DebugInteraction,
			Op:       "run",
			Message:  fmt.Sprintf("Run(hook=%s, parameters=%s)", export(key), export(params)),
		})
	}

	keys, err := normalizeKeys(key)
	if err != nil {
		return 0, err
	}
	return e.run(keys, params), nil
}

func (e *Engine) run(keys []Key, params []any) int {
	atomic.AddInt64(&e.metrics.Runs, 1)

	count := 0
	for _, k := range keys {
		if e.tracing(DebugEvents) {
			e.record(Event{Category: DebugEvents, Op: "run", Key: k, Message: "running hook " + k})
		}

		count = 0
		for _, bucket := range e.registry.sorted(k) {
			for _, cb := range bucket.Callbacks {
				result, err := e.invoke("run", k, bucket.Priority, cb, params)
				if err == nil && !isFalse(result) {
					count++
				}
			}
		}

		if e.tracing(DebugEvents) {
			e.record(Event{Category: DebugEvents, Op: "run", Key: k, Message: fmt.Sprintf("ran %d callbacks for %s", count, k)})
		}
	}
	return count
}

// Filter threads value through every callback bound to key, in priority
// order. Each callback receives the current value followed by params and
// its result becomes the new value. With several keys the value flows
// through each key in order.
//
// A failing callback leaves the value unchanged and the pipeline goes on.
// An unbound key returns value as is. The only error is a *KeyError for an
// unsupported key.
func (e *Engine) Filter(key any, value any, params ...any) (any, error) {
	if e.tracing(DebugInteraction) {
		e.record(Event{
			Category: DebugInteraction,
			Op:       "filter",
			Message:  fmt.Sprintf("Filter(hook=%s, value=%s, parameters=%s)", export(key), export(value), export(params)),
		})
	}

	keys, err := normalizeKeys(key)
	if err != nil {
		return value, err
	}

	atomic.AddInt64(&e.metrics.Filters, 1)

	for _, k := range keys {
		if e.tracing(DebugEvents) {
			e.record(Event{Category: DebugEvents, Op: "filter", Key: k, Message: fmt.Sprintf("running filter %s on %s", k, export(value))})
		}

		n := 0
		for _, bucket := range e.registry.sorted(k) {
			for _, cb := range bucket.Callbacks {
				args := make([]any, 0, len(params)+1)
				args = append(args, value)
				args = append(args, params...)

				result, err := e.invoke("filter", k, bucket.Priority, cb, args)
				if err == nil {
					value = result
				}
				n++
			}
		}

		if e.tracing(DebugEvents) {
			e.record(Event{Category: DebugEvents, Op: "filter", Key: k, Message: fmt.Sprintf("ran %d filters for %s, result is %s", n, k, export(value))})
		}
	}
	return value, nil
}

// Clear removes every callback bound to key and returns how many were
// removed. Clearing an unbound key is a no-op apart from the meta-events:
//
//	hooks-clear
//	  for each key: hooks-clear-one, hooks-clear-<key>, removal,
//	                hooks-clear-one-done, hooks-clear-<key>-done
//	hooks-clear-done
func (e *Engine) Clear(key any) (int, error) {
	if e.tracing(DebugInteraction) {
		e.record(Event{Category: DebugInteraction, Op: "clear", Message: fmt.Sprintf("Clear(hook=%s)", export(key))})
	}

	keys, err := normalizeKeys(key)
	if err != nil {
		return 0, err
	}

	e.emit([]Key{EventClear})
	removed := e.clearKeys(keys)
	e.emit([]Key{EventClearDone})
	return removed, nil
}

// ClearAll removes every key. The keys bound when ClearAll starts are
// cleared one by one in first-bind order, each with the per key events of
// Clear, between hooks-clear, hooks-clear-all and hooks-clear-done.
func (e *Engine) ClearAll() int {
	if e.tracing(DebugInteraction) {
		e.record(Event{Category: DebugInteraction, Op: "clear", Message: "ClearAll()"})
	}

	e.emit([]Key{EventClear})
	e.emit([]Key{EventClearAll})
	removed := e.clearKeys(e.registry.keys())
	e.emit([]Key{EventClearDone})
	return removed
}

func (e *Engine) clearKeys(keys []Key) int {
	removed := 0
	for _, k := range keys {
		payload := map[string]any{"hook": k}
		e.emit([]Key{EventClearOne, ClearEvent(k)}, payload)
		removed += e.registry.clearKey(k)
		e.emit([]Key{EventClearOneDone, ClearDoneEvent(k)}, payload)
	}
	atomic.AddInt64(&e.metrics.Cleared, int64(removed))
	return removed
}

// Has reports whether any callback is bound to key.
func (e *Engine) Has(key Key) bool {
	return e.registry.count(key) > 0
}

// Keys returns the bound keys in first-bind order.
func (e *Engine) Keys() []Key {
	return e.registry.keys()
}

// Len returns the number of registered callbacks across all keys. A
// callback bound to several keys counts once per key.
func (e *Engine) Len() int {
	return e.registry.size()
}

// Metrics returns a snapshot of the engine counters.
func (e *Engine) Metrics() Metrics {
	return Metrics{
		Runs:                atomic.LoadInt64(&e.metrics.Runs),
		Filters:             atomic.LoadInt64(&e.metrics.Filters),
		CallbacksInvoked:    atomic.LoadInt64(&e.metrics.CallbacksInvoked),
		CallbacksFailed:     atomic.LoadInt64(&e.metrics.CallbacksFailed),
		Binds:               atomic.LoadInt64(&e.metrics.Binds),
		Cleared:             atomic.LoadInt64(&e.metrics.Cleared),
		RegisteredCallbacks: int64(e.registry.size()),
		RegisteredKeys:      int64(len(e.registry.keys())),
	}
}

// emit dispatches an engine meta-event. Its count is discarded.
func (e *Engine) emit(keys []Key, params ...any) {
	e.run(keys, params)
}

// invoke calls cb with panic recovery. Any failure comes back as a
// *CallbackError and is traced under DebugCalls.
func (e *Engine) invoke(op string, key Key, priority int, cb Callback, args []any) (result any, err error) {
	if e.tracing(DebugCalls) {
		e.record(Event{
			Category: DebugCalls,
			Op:       "call",
			Key:      key,
			Priority: priority,
			Message:  fmt.Sprintf("calling callback with priority %d on %s %s", priority, op, key),
		})
	}

	start := e.clock.Now()
	result, err = call(cb, args)
	atomic.AddInt64(&e.metrics.CallbacksInvoked, 1)

	if err != nil {
		err = &CallbackError{Key: key, Priority: priority, Err: err}
		atomic.AddInt64(&e.metrics.CallbacksFailed, 1)
		if e.tracing(DebugCalls) {
			e.record(Event{
				Category: DebugCalls,
				Op:       "call",
				Key:      key,
				Priority: priority,
				Duration: e.clock.Now().Sub(start),
				Message:  fmt.Sprintf("callback failed on %s %s", op, key),
				Err:      err,
			})
		}
		return nil, err
	}
	return result, nil
}

// call isolates a single callback invocation.
func call(cb Callback, args []any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("%w: %v", ErrCallbackPanicked, r)
		}
	}()
	return cb(args...)
}

func (e *Engine) tracing(c Level) bool {
	return Level(e.level.Load()).Has(c)
}

// record stamps ev and hands it to the sink. Sink panics are swallowed; a
// single fallback event is attempted in their place.
func (e *Engine) record(ev Event) {
	ev.Time = e.clock.Now()
	if safeRecord(e.sink, ev) {
		return
	}
	safeRecord(e.sink, Event{
		Category: ev.Category,
		Time:     ev.Time,
		Op:       ev.Op,
		Key:      ev.Key,
		Message:  unprintable,
	})
}
