package benchmarks

import (
	"fmt"
	"runtime"
	"testing"

	"github.com/zoobzio/dispatchz"
)

// BenchmarkMemoryPressure runs large payloads through many callbacks.
// Callbacks must not retain payloads once Run returns.
func BenchmarkMemoryPressure(b *testing.B) {
	for _, size := range []int{256, 4096, 65536} {
		b.Run(fmt.Sprintf("payload_%dB", size), func(b *testing.B) {
			engine := dispatchz.New()
			for i := 0; i < 50; i++ {
				idx := i
				_, err := engine.Bind("test.event", dispatchz.Notify(func(args ...any) {
					_ = len(args[0].(TestEvent).Payload) + idx
				}))
				if err != nil {
					b.Fatal(err)
				}
			}

			event := TestEvent{ID: 1, Type: "memory", Payload: make([]byte, size)}

			runtime.GC()
			var before runtime.MemStats
			runtime.ReadMemStats(&before)

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := engine.Run("test.event", event); err != nil {
					b.Fatal(err)
				}
			}
			b.StopTimer()

			runtime.GC()
			var after runtime.MemStats
			runtime.ReadMemStats(&after)
			b.ReportMetric(float64(int64(after.HeapAlloc)-int64(before.HeapAlloc))/1024, "heap_growth_KB")
		})
	}
}

// BenchmarkRegistryFootprint measures heap held per registered callback and
// checks ClearAll releases it.
func BenchmarkRegistryFootprint(b *testing.B) {
	cb := dispatchz.Notify(func(...any) {})
	keys := benchKeys(100)

	for i := 0; i < b.N; i++ {
		runtime.GC()
		var before runtime.MemStats
		runtime.ReadMemStats(&before)

		engine := dispatchz.New()
		for _, key := range keys {
			for p := 0; p < 10; p++ {
				if _, err := engine.Bind(key, cb, dispatchz.WithPriority(p)); err != nil {
					b.Fatal(err)
				}
			}
		}

		runtime.GC()
		var loaded runtime.MemStats
		runtime.ReadMemStats(&loaded)

		if removed := engine.ClearAll(); removed != len(keys)*10 {
			b.Fatalf("ClearAll removed %d", removed)
		}

		b.ReportMetric(float64(int64(loaded.HeapAlloc)-int64(before.HeapAlloc))/float64(len(keys)*10), "bytes/callback")
	}
}
