package gqlstore

import (
	"strconv"
	"sync/atomic"

	"github.com/oklog/ulid/v2"
)

// IDGenerator allocates client mutation ids. Ids must never repeat within
// one environment.
type IDGenerator interface {
	NextID() ClientMutationID
}

type ulidGenerator struct{}

// NewULIDGenerator returns a generator of lexically sortable, monotonic ids.
func NewULIDGenerator() IDGenerator {
	return ulidGenerator{}
}

func (ulidGenerator) NextID() ClientMutationID {
	return ClientMutationID(ulid.Make().String())
}

// CounterIDGenerator yields Prefix followed by 0, 1, 2 and so on.
type CounterIDGenerator struct {
	Prefix string
	next   atomic.Uint64
}

func (g *CounterIDGenerator) NextID() ClientMutationID {
	n := g.next.Add(1) - 1
	return ClientMutationID(g.Prefix + strconv.FormatUint(n, 10))
}
