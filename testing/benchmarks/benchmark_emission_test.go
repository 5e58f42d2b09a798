package benchmarks

import (
	"fmt"
	"testing"

	"github.com/zoobzio/dispatchz"
)

// BenchmarkRunScaling measures Run latency as the callback count grows.
func BenchmarkRunScaling(b *testing.B) {
	for _, count := range []int{1, 5, 10, 25, 50, 100} {
		b.Run(fmt.Sprintf("callbacks_%d", count), func(b *testing.B) {
			engine := dispatchz.New()
			for i := 0; i < count; i++ {
				idx := i
				_, err := engine.Bind("test.event", dispatchz.Notify(func(args ...any) {
					_ = len(args[0].(TestEvent).Payload) + idx
				}), dispatchz.WithPriority(i%5))
				if err != nil {
					b.Fatal(err)
				}
			}

			events := generateRealisticEvents(1000)

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := engine.Run("test.event", events[i%len(events)]); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkFilterChain measures a cascade of typed transforms.
func BenchmarkFilterChain(b *testing.B) {
	for _, stages := range []int{1, 10, 100} {
		b.Run(fmt.Sprintf("stages_%d", stages), func(b *testing.B) {
			engine := dispatchz.New()
			for i := 0; i < stages; i++ {
				_, err := engine.Bind("test.filter", dispatchz.TransformOf(func(n int) int {
					return n + 1
				}), dispatchz.WithPriority(i))
				if err != nil {
					b.Fatal(err)
				}
			}

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := dispatchz.FilterAs(engine, "test.filter", i); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkRunUnbound measures the cost of running a key nobody listens to.
func BenchmarkRunUnbound(b *testing.B) {
	engine := dispatchz.New()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.Run("nobody.listens"); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkRunTraced shows the overhead of tracing every category.
func BenchmarkRunTraced(b *testing.B) {
	for _, level := range []dispatchz.Level{dispatchz.DebugNone, dispatchz.DebugEvents, dispatchz.DebugAll} {
		b.Run(level.String(), func(b *testing.B) {
			engine := dispatchz.New(dispatchz.WithDebug(level, dispatchz.NopSink{}))
			for i := 0; i < 10; i++ {
				if _, err := engine.Bind("test.event", dispatchz.Notify(func(...any) {})); err != nil {
					b.Fatal(err)
				}
			}

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := engine.Run("test.event"); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
