package gqlstore

import (
	"testing"
)

func TestCounterIDGenerator(t *testing.T) {
	g := &CounterIDGenerator{Prefix: "c"}
	deepEqual(t, g.NextID(), ClientMutationID("c0"))
	deepEqual(t, g.NextID(), ClientMutationID("c1"))
}

func TestULIDGenerator_IsUniqueAndSorted(t *testing.T) {
	g := NewULIDGenerator()
	prev := g.NextID()
	for range 100 {
		id := g.NextID()
		if id <= prev {
			t.Fatalf("** %s does not sort after %s", id, prev)
		}
		prev = id
	}
	deepEqual(t, len(prev), 26)
}
