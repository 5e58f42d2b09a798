package dispatchz

// Metrics provides observability data for an Engine.
// Counter fields are updated atomically; read them through Engine.Metrics.
type Metrics struct {
	// Dispatch Counters
	Runs    int64 // Run dispatches, including engine meta-events
	Filters int64 // Filter dispatches

	// Callback Counters
	CallbacksInvoked int64 // Callback invocations, failed or not
	CallbacksFailed  int64 // Invocations that returned an error or panicked

	// Registration Counters
	Binds               int64 // Successful Bind calls
	Cleared             int64 // Callbacks removed by Clear, ClearAll and Unbind
	RegisteredCallbacks int64 // Callbacks currently registered (snapshot)
	RegisteredKeys      int64 // Keys currently bound (snapshot)
}
