package dispatchz

import (
	"runtime"
	"testing"
)

// TestNoopBehaviorWithoutListeners verifies dispatch on unbound keys has
// no side effects.
func TestNoopBehaviorWithoutListeners(t *testing.T) {
	t.Run("RegistryEmpty", func(t *testing.T) {
		engine := New()

		if engine.Len() != 0 {
			t.Errorf("Len should be 0, got %d", engine.Len())
		}
		if len(engine.Keys()) != 0 {
			t.Errorf("Keys should be empty, got %v", engine.Keys())
		}
	})

	t.Run("RunIsNoop", func(t *testing.T) {
		engine := New()
		initialGoroutines := runtime.NumGoroutine()

		count, err := engine.Run("test.event", "data")
		if err != nil {
			t.Fatalf("Run should not error with no callbacks: %v", err)
		}
		if count != 0 {
			t.Errorf("count should be 0, got %d", count)
		}

		if finalGoroutines := runtime.NumGoroutine(); finalGoroutines > initialGoroutines {
			t.Errorf("Run created goroutines: before=%d, after=%d", initialGoroutines, finalGoroutines)
		}
	})

	t.Run("FilterIsIdentity", func(t *testing.T) {
		engine := New()
		value := &struct{ n int }{n: 1}

		out, err := engine.Filter("test.filter", value)
		if err != nil {
			t.Fatal(err)
		}
		if out != value {
			t.Error("Filter should return the same value when nothing is bound")
		}
	})

	t.Run("MetricsCountDispatchOnly", func(t *testing.T) {
		engine := New()
		_, _ = engine.Run("a")
		_, _ = engine.Filter("b", 1)

		m := engine.Metrics()
		if m.Runs != 1 || m.Filters != 1 {
			t.Errorf("Runs=%d Filters=%d, want 1 and 1", m.Runs, m.Filters)
		}
		if m.CallbacksInvoked != 0 || m.CallbacksFailed != 0 {
			t.Errorf("no callback should be invoked: %+v", m)
		}
		if m.RegisteredCallbacks != 0 || m.RegisteredKeys != 0 {
			t.Errorf("registry should be empty: %+v", m)
		}
	})

	t.Run("ClearUnboundKey", func(t *testing.T) {
		engine := New()

		removed, err := engine.Clear("never.bound")
		if err != nil {
			t.Fatal(err)
		}
		if removed != 0 {
			t.Errorf("removed = %d, want 0", removed)
		}
	})
}

// BenchmarkNoopRun measures the overhead of Run when nothing is bound.
func BenchmarkNoopRun(b *testing.B) {
	engine := New()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = engine.Run("test.event", "data")
	}
}

// BenchmarkRunWithCallbacks compares performance with callbacks bound.
func BenchmarkRunWithCallbacks(b *testing.B) {
	engine := New()
	for i := 0; i < 10; i++ {
		if _, err := engine.Bind("test.event", Notify(func(...any) {})); err != nil {
			b.Fatal(err)
		}
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = engine.Run("test.event", "data")
	}
}
