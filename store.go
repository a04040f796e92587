package gqlstore

import "slices"

// RecordStore is a read-only view over the layers of a record arena.
//
// The queued view shows optimistic data on top of server data: a queued
// record overrides the underlying record field by field, and a queued nil
// hides the record. Cached data is consulted only where base data is unknown.
type RecordStore struct {
	arena *recordArena
	top   layer
}

func (a *recordArena) store(top layer) *RecordStore {
	return &RecordStore{arena: a, top: top}
}

func (s *RecordStore) Get(id DataID) (*Record, RecordState) {
	var rec *Record
	state := Unknown
	if s.top >= layerBase {
		if r, ok := s.arena.base[id]; ok {
			rec, state = r, stateOf(r)
		}
	}
	if state == Unknown {
		if r, ok := s.arena.cached[id]; ok {
			rec, state = r, stateOf(r)
		}
	}
	if s.top == layerQueued {
		if q, ok := s.arena.queued[id]; ok {
			if q == nil {
				return nil, Nonexistent
			}
			if rec == nil {
				return q, Existent
			}
			return rec.overlay(q), Existent
		}
	}
	return rec, state
}

func (s *RecordStore) RecordState(id DataID) RecordState {
	_, state := s.Get(id)
	return state
}

func (s *RecordStore) HasOptimisticUpdate(id DataID) bool {
	s.requireQueued("HasOptimisticUpdate")
	_, ok := s.arena.queued[id]
	return ok
}

// ClientMutationIDs returns the pending transactions whose optimistic data
// shadows the record.
func (s *RecordStore) ClientMutationIDs(id DataID) []ClientMutationID {
	s.requireQueued("ClientMutationIDs")
	q := s.arena.queued[id]
	if q == nil {
		return nil
	}
	return slices.Clone(q.MutationIDs)
}

func (s *RecordStore) requireQueued(op string) {
	if s.top != layerQueued {
		panic(invariantf("RecordStore.%s: only valid on the queued view, this is the %v view", op, s.top))
	}
}

// PathToRecord returns how a client record was reached, which allows
// refetching it through the nearest record with a server identity.
func (s *RecordStore) PathToRecord(id DataID) *RecordPath {
	rec, _ := s.Get(id)
	if rec == nil {
		return nil
	}
	return rec.Path
}

func (s *RecordStore) Type(id DataID) string {
	rec, _ := s.Get(id)
	if rec == nil {
		return ""
	}
	return rec.Typename
}

// Field returns a scalar field. ok is false when the record or the field is
// unknown.
func (s *RecordStore) Field(id DataID, key string) (v any, ok bool) {
	rec, _ := s.Get(id)
	if rec == nil {
		return nil, false
	}
	return rec.Field(key)
}

// LinkedRecordID returns the id a singular linked field points to. An empty
// id with ok=true means the link is null.
func (s *RecordStore) LinkedRecordID(id DataID, key string) (DataID, bool) {
	rec, _ := s.Get(id)
	if rec == nil {
		return "", false
	}
	if child, ok := rec.Links[key]; ok {
		return child, true
	}
	if v, ok := rec.Fields[key]; ok && v == nil {
		return "", true
	}
	return "", false
}

// LinkedRecordIDs returns the ids of a plural linked field. A nil slice with
// ok=true means the list is null.
func (s *RecordStore) LinkedRecordIDs(id DataID, key string) ([]DataID, bool) {
	rec, _ := s.Get(id)
	if rec == nil {
		return nil, false
	}
	if ids, ok := rec.LinkLists[key]; ok {
		return slices.Clone(ids), true
	}
	if v, ok := rec.Fields[key]; ok && v == nil {
		return nil, true
	}
	return nil, false
}

func (s *RecordStore) RootCallID(storageKey, identArg string) (DataID, bool) {
	if s.top >= layerBase {
		if id, ok := s.arena.rootCalls.get(storageKey, identArg); ok {
			return id, true
		}
	}
	return s.arena.cachedRootCalls.get(storageKey, identArg)
}

func (s *RecordStore) RangeMetadata(connectionID DataID) *Range {
	rec, _ := s.Get(connectionID)
	if rec == nil {
		return nil
	}
	return rec.Range.Clone()
}

func (s *RecordStore) ConnectionIDsForRecord(id DataID) []DataID {
	conns := s.arena.nodeConnections[id]
	if len(conns) == 0 {
		return nil
	}
	return sortedKeys(conns)
}

// RangeOwnerID maps an edge of a connection to the connection record that
// owns the range. Other ids are returned unchanged.
func (s *RecordStore) RangeOwnerID(id DataID) DataID {
	if owner, ok := s.arena.rangeOwners[id]; ok {
		return owner
	}
	return id
}
