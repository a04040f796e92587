package gqlstore

import (
	"maps"
)

// serializedState is the persisted form of a record arena. Record paths
// are dropped; range indices are rebuilt on load.
type serializedState struct {
	CachedRecords     RecordMap           `msgpack:"cachedRecords" json:"cachedRecords"`
	QueuedRecords     RecordMap           `msgpack:"queuedRecords" json:"queuedRecords"`
	Records           RecordMap           `msgpack:"records" json:"records"`
	RootCallMap       rootCallMap         `msgpack:"rootCallMap" json:"rootCallMap"`
	CachedRootCallMap rootCallMap         `msgpack:"cachedRootCallMap" json:"cachedRootCallMap"`
	NodeConnectionMap map[DataID][]DataID `msgpack:"nodeConnectionMap" json:"nodeConnectionMap"`
}

// Serialize encodes the store contents, optimistic data included.
func (env *Environment) Serialize(enc Encoding) ([]byte, error) {
	a := env.arena
	state := &serializedState{
		CachedRecords:     stripPaths(a.cached),
		QueuedRecords:     stripPaths(a.queued),
		Records:           stripPaths(a.base),
		RootCallMap:       a.rootCalls,
		CachedRootCallMap: a.cachedRootCalls,
		NodeConnectionMap: make(map[DataID][]DataID, len(a.nodeConnections)),
	}
	for id, conns := range a.nodeConnections {
		state.NodeConnectionMap[id] = sortedKeys(conns)
	}
	return enc.encode(state)
}

// Deserialize opens an environment over previously serialized contents.
// Pending transactions are not part of the state, so optimistic records
// come back untied to any transaction until the first queue refresh.
func Deserialize(enc Encoding, data []byte, opt Options) (*Environment, error) {
	var state serializedState
	if err := enc.decode(data, &state); err != nil {
		return nil, decodeError(err, enc)
	}

	a := newRecordArena()
	maps.Copy(a.cached, state.CachedRecords)
	maps.Copy(a.queued, state.QueuedRecords)
	maps.Copy(a.base, state.Records)
	for k, calls := range state.RootCallMap {
		a.rootCalls[k] = calls
	}
	for k, calls := range state.CachedRootCallMap {
		a.cachedRootCalls[k] = calls
	}
	for id, conns := range state.NodeConnectionMap {
		set := make(map[DataID]struct{}, len(conns))
		for _, c := range conns {
			set[c] = struct{}{}
		}
		a.nodeConnections[id] = set
	}
	a.reindexRanges()
	return openArena(a, opt), nil
}

func stripPaths(recs RecordMap) RecordMap {
	out := make(RecordMap, len(recs))
	for id, rec := range recs {
		if rec != nil && rec.Path != nil {
			rec = rec.Clone()
			rec.Path = nil
		}
		out[id] = rec
	}
	return out
}
