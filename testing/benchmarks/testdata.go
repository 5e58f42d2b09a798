package benchmarks

import (
	"fmt"
	"math/rand"
	"time"
)

// TestEvent represents realistic event data for benchmarking
type TestEvent struct {
	ID        int
	Timestamp int64
	Payload   []byte
	Type      string
}

// generateRealisticEvents creates events with realistic size distribution
func generateRealisticEvents(n int) []TestEvent {
	events := make([]TestEvent, n)
	types := []string{"user.action", "order.created", "payment.processed", "system.alert"}

	for i := range events {
		events[i] = TestEvent{
			ID:        i,
			Timestamp: time.Now().UnixNano(),
			Type:      types[rand.Intn(len(types))],
			Payload:   make([]byte, 256+rand.Intn(768)),
		}
		for j := range events[i].Payload {
			events[i].Payload[j] = byte(i + j)
		}
	}
	return events
}

// benchKeys returns n distinct hook keys.
func benchKeys(n int) []string {
	keys := make([]string, n)
	for i := range keys {
		keys[i] = fmt.Sprintf("bench.key.%d", i)
	}
	return keys
}
