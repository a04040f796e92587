package gqlstore

import "maps"

type layer int

const (
	layerCached layer = iota
	layerBase
	layerQueued
)

func (l layer) String() string {
	switch l {
	case layerCached:
		return "cached"
	case layerBase:
		return "base"
	case layerQueued:
		return "queued"
	default:
		return "invalid"
	}
}

// rootCallMap maps a root field storage key and its identifying argument
// value ("" when there is none) to the record the field resolved to.
type rootCallMap map[string]map[string]DataID

func (m rootCallMap) get(storageKey, identArg string) (DataID, bool) {
	id, ok := m[storageKey][identArg]
	return id, ok
}

func (m rootCallMap) put(storageKey, identArg string, id DataID) bool {
	calls := m[storageKey]
	if calls == nil {
		calls = make(map[string]DataID)
		m[storageKey] = calls
	}
	if prev, ok := calls[identArg]; ok && prev == id {
		return false
	}
	calls[identArg] = id
	return true
}

func (m rootCallMap) count() int {
	var n int
	for _, calls := range m {
		n += len(calls)
	}
	return n
}

func (m rootCallMap) clone() rootCallMap {
	c := make(rootCallMap, len(m))
	for k, calls := range m {
		c[k] = maps.Clone(calls)
	}
	return c
}

// recordArena owns all record data. Stores and writers are views that pick
// which layers they read or write.
type recordArena struct {
	cached RecordMap
	base   RecordMap
	queued RecordMap

	rootCalls       rootCallMap
	cachedRootCalls rootCallMap

	// node id -> ids of the connections that have an edge to it
	nodeConnections map[DataID]map[DataID]struct{}
	// edge id -> id of the connection owning it
	rangeOwners map[DataID]DataID
}

func newRecordArena() *recordArena {
	return &recordArena{
		cached:          make(RecordMap),
		base:            make(RecordMap),
		queued:          make(RecordMap),
		rootCalls:       make(rootCallMap),
		cachedRootCalls: make(rootCallMap),
		nodeConnections: make(map[DataID]map[DataID]struct{}),
		rangeOwners:     make(map[DataID]DataID),
	}
}

func (a *recordArena) records(l layer) RecordMap {
	switch l {
	case layerCached:
		return a.cached
	case layerBase:
		return a.base
	case layerQueued:
		return a.queued
	default:
		panic(invariantf("invalid layer %d", int(l)))
	}
}

func (a *recordArena) rootCallsFor(l layer) rootCallMap {
	if l == layerCached {
		return a.cachedRootCalls
	}
	return a.rootCalls
}

// clearQueued drops all optimistic data and returns the ids it held.
func (a *recordArena) clearQueued() []DataID {
	ids := sortedKeys(a.queued)
	a.queued = make(RecordMap)
	return ids
}

func (a *recordArena) addConnectionEdge(connectionID DataID, e RangeEdge) {
	a.rangeOwners[e.EdgeID] = connectionID
	conns := a.nodeConnections[e.NodeID]
	if conns == nil {
		conns = make(map[DataID]struct{})
		a.nodeConnections[e.NodeID] = conns
	}
	conns[connectionID] = struct{}{}
}

// reindexRanges rebuilds the connection indices from the ranges embedded
// in records, used after deserialization.
func (a *recordArena) reindexRanges() {
	for _, recs := range []RecordMap{a.cached, a.base, a.queued} {
		for id, rec := range recs {
			if rec == nil || rec.Range == nil {
				continue
			}
			rec.Range.rehydrate()
			for _, e := range rec.Range.Edges {
				a.addConnectionEdge(id, e)
			}
		}
	}
}
