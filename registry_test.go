package dispatchz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(args ...any) (any, error) { return nil, nil }

func TestRegistrySorted(t *testing.T) {
	r := newRegistry()
	r.bind("k", 10, entry{id: "a", callback: noop})
	r.bind("k", -1, entry{id: "b", callback: noop})
	r.bind("k", 10, entry{id: "c", callback: noop})
	r.bind("k", 3, entry{id: "d", callback: noop})

	buckets := r.sorted("k")
	require.Len(t, buckets, 3)
	assert.Equal(t, -1, buckets[0].Priority)
	assert.Equal(t, 3, buckets[1].Priority)
	assert.Equal(t, 10, buckets[2].Priority)
	assert.Len(t, buckets[2].Callbacks, 2)

	assert.Nil(t, r.sorted("missing"))
}

func TestRegistrySnapshotIsolation(t *testing.T) {
	r := newRegistry()
	r.bind("k", 1, entry{id: "a", callback: noop})

	snapshot := r.sorted("k")
	r.bind("k", 1, entry{id: "b", callback: noop})
	r.bind("k", 0, entry{id: "c", callback: noop})

	require.Len(t, snapshot, 1)
	assert.Len(t, snapshot[0].Callbacks, 1)

	r.clearKey("k")
	assert.Len(t, snapshot[0].Callbacks, 1)
}

func TestRegistryClearKey(t *testing.T) {
	r := newRegistry()
	r.bind("a", 1, entry{id: "1", callback: noop})
	r.bind("a", 2, entry{id: "2", callback: noop})
	r.bind("b", 1, entry{id: "3", callback: noop})

	assert.Equal(t, 2, r.clearKey("a"))
	assert.Equal(t, 0, r.clearKey("a"))
	assert.Equal(t, []Key{"b"}, r.keys())
	assert.Equal(t, 1, r.size())
	assert.Equal(t, 0, r.count("a"))
	assert.Equal(t, 1, r.count("b"))
}

func TestRegistryKeysOrder(t *testing.T) {
	r := newRegistry()
	for _, k := range []Key{"c", "a", "b", "a"} {
		r.bind(k, 10, entry{id: k, callback: noop})
	}
	assert.Equal(t, []Key{"c", "a", "b"}, r.keys())

	keys := r.keys()
	keys[0] = "mutated"
	assert.Equal(t, []Key{"c", "a", "b"}, r.keys(), "keys returns a copy")

	// A key cleared and bound again moves to the end
	r.clearKey("c")
	r.bind("c", 10, entry{id: "c2", callback: noop})
	assert.Equal(t, []Key{"a", "b", "c"}, r.keys())
}

func TestRegistryRemove(t *testing.T) {
	r := newRegistry()
	r.bind("x", 1, entry{id: "shared", callback: noop})
	r.bind("y", 1, entry{id: "shared", callback: noop})
	r.bind("y", 2, entry{id: "other", callback: noop})

	assert.Equal(t, 2, r.remove("shared"))
	assert.Equal(t, []Key{"y"}, r.keys())
	assert.Equal(t, 1, r.size())

	buckets := r.sorted("y")
	require.Len(t, buckets, 1)
	assert.Equal(t, 2, buckets[0].Priority)

	assert.Equal(t, 0, r.remove("shared"))
}
