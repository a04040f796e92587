package gqlstore

import (
	"reflect"
	"slices"
)

// RecordWriter applies writes to exactly one layer of the arena.
//
// An optimistic writer targets the queued layer and tags every record it
// touches with its transaction's ClientMutationID. Optimistic writes are never
// sent to the cache sink.
type RecordWriter struct {
	arena        *recordArena
	layer        layer
	isOptimistic bool
	mutationID   ClientMutationID
	sink         CacheWriter
	tracker      *ChangeTracker
	view         *RecordStore
}

func newRecordWriter(arena *recordArena, l layer, sink CacheWriter, tracker *ChangeTracker) *RecordWriter {
	if l == layerQueued {
		panic(invariantf("use newOptimisticWriter for the queued layer"))
	}
	return &RecordWriter{
		arena:   arena,
		layer:   l,
		sink:    sink,
		tracker: tracker,
		view:    arena.store(l),
	}
}

func newOptimisticWriter(arena *recordArena, mutationID ClientMutationID, tracker *ChangeTracker) *RecordWriter {
	return &RecordWriter{
		arena:        arena,
		layer:        layerQueued,
		isOptimistic: true,
		mutationID:   mutationID,
		tracker:      tracker,
		view:         arena.store(layerQueued),
	}
}

func (w *RecordWriter) IsOptimistic() bool {
	return w.isOptimistic
}

func (w *RecordWriter) ClientMutationID() ClientMutationID {
	return w.mutationID
}

func (w *RecordWriter) records() RecordMap {
	return w.arena.records(w.layer)
}

// RecordState reports the state of id as seen by this writer: the target
// layer for server writes, the whole queued view for optimistic writes.
func (w *RecordWriter) RecordState(id DataID) RecordState {
	if w.isOptimistic {
		return w.view.RecordState(id)
	}
	rec, ok := w.records()[id]
	if !ok {
		return Unknown
	}
	return stateOf(rec)
}

// DataID resolves the record a root field points to, synthesizing a stable
// client id when the field has never been seen.
func (w *RecordWriter) DataID(storageKey, identArg string) DataID {
	if id, ok := w.arena.rootCallsFor(w.layer).get(storageKey, identArg); ok {
		return id
	}
	if identArg != "" {
		return ClientID("", storageKey+":"+identArg)
	}
	return ClientID("", storageKey)
}

func (w *RecordWriter) PutDataID(storageKey, identArg string, id DataID) {
	if !w.arena.rootCallsFor(w.layer).put(storageKey, identArg, id) {
		return
	}
	if w.sink != nil {
		w.sink.WriteRootCall(storageKey, identArg, id)
	}
}

// PutRecord makes sure the record exists. Existing records are left alone
// apart from mutation tagging.
func (w *RecordWriter) PutRecord(id DataID, typename string, path *RecordPath) {
	recs := w.records()
	if prev := recs[id]; prev != nil {
		if w.isOptimistic {
			prev.addMutationID(w.mutationID)
		}
		return
	}

	existedBelow := w.isOptimistic && w.arena.store(layerBase).RecordState(id) == Existent
	if existedBelow && typename == "" {
		typename = w.arena.store(layerBase).Type(id)
	}

	rec := newRecord(id, typename)
	if IsClientID(id) && path != nil {
		rec.Path = path
	}
	if w.isOptimistic {
		rec.MutationIDs = []ClientMutationID{w.mutationID}
	}
	recs[id] = rec

	if existedBelow {
		w.tracker.UpdateID(id)
	} else {
		w.tracker.CreateID(id)
	}
	w.persist(id, rec)
}

func (w *RecordWriter) DeleteRecord(id DataID) {
	recs := w.records()
	if prev, ok := recs[id]; ok && prev == nil {
		return
	}
	recs[id] = nil
	w.tracker.UpdateID(id)
	w.persist(id, nil)
}

func (w *RecordWriter) PutField(id DataID, key string, value any) {
	if prev, ok := w.currentValue(id, key); ok && reflect.DeepEqual(prev, value) {
		w.recordForWrite(id, "PutField")
		return
	}
	rec := w.recordForWrite(id, "PutField")
	rec.setField(key, value)
	w.changed(id, rec)
}

func (w *RecordWriter) DeleteField(id DataID, key string) {
	rec := w.recordForWrite(id, "DeleteField")
	if !rec.hasKey(key) && !w.isOptimistic {
		return
	}
	rec.setField(key, nil)
	w.changed(id, rec)
}

func (w *RecordWriter) PutLinkedRecordID(parentID DataID, key string, childID DataID) {
	if prev, ok := w.view.LinkedRecordID(parentID, key); ok && prev == childID && prev != "" {
		w.recordForWrite(parentID, "PutLinkedRecordID")
		return
	}
	rec := w.recordForWrite(parentID, "PutLinkedRecordID")
	rec.setLink(key, childID)
	w.changed(parentID, rec)
}

func (w *RecordWriter) PutLinkedRecordIDs(parentID DataID, key string, childIDs []DataID) {
	if prev, ok := w.view.LinkedRecordIDs(parentID, key); ok && prev != nil && slices.Equal(prev, childIDs) {
		w.recordForWrite(parentID, "PutLinkedRecordIDs")
		return
	}
	rec := w.recordForWrite(parentID, "PutLinkedRecordIDs")
	rec.setLinkList(key, slices.Clone(childIDs))
	w.changed(parentID, rec)
}

// PutRange marks a record as a connection with the given filter calls.
func (w *RecordWriter) PutRange(connectionID DataID, filterCalls string) {
	rec := w.recordForWrite(connectionID, "PutRange")
	if rec.Range != nil && rec.Range.FilterCalls == filterCalls {
		return
	}
	rng := w.view.RangeMetadata(connectionID)
	if rng == nil {
		rng = &Range{}
	}
	rng.FilterCalls = filterCalls
	rec.Range = rng
	w.changed(connectionID, rec)
}

// PutRangeEdges merges a fetched page of edges into a connection.
func (w *RecordWriter) PutRangeEdges(connectionID DataID, edges []RangeEdge, pageInfo PageInfo) {
	rec := w.recordForWrite(connectionID, "PutRangeEdges")
	if rec.Range == nil {
		rec.Range = w.view.RangeMetadata(connectionID)
		if rec.Range == nil {
			panic(invariantf("RecordWriter.PutRangeEdges: record %q is not a connection, call PutRange first", connectionID))
		}
	}
	changed := rec.Range.addEdges(edges)
	if rec.Range.PageInfo != pageInfo {
		rec.Range.PageInfo = pageInfo
		changed = true
	}
	for _, e := range edges {
		w.arena.addConnectionEdge(connectionID, e)
	}
	if changed {
		w.changed(connectionID, rec)
	}
}

// RemoveRangeNode removes the edges pointing at nodeID from a connection.
func (w *RecordWriter) RemoveRangeNode(connectionID, nodeID DataID) {
	rng := w.view.RangeMetadata(connectionID)
	if rng == nil || !rng.removeNode(nodeID) {
		return
	}
	rec := w.recordForWrite(connectionID, "RemoveRangeNode")
	rec.Range = rng
	w.changed(connectionID, rec)
}

// putRecordSnapshot stores a whole record read from the persistent cache.
func (w *RecordWriter) putRecordSnapshot(id DataID, rec *Record) {
	recs := w.records()
	if _, ok := recs[id]; ok {
		return
	}
	if rec != nil {
		rec = rec.Clone()
		rec.ID = id
		rec.MutationIDs = nil
		if rec.Range != nil {
			for _, e := range rec.Range.Edges {
				w.arena.addConnectionEdge(id, e)
			}
		}
	}
	recs[id] = rec
	w.tracker.CreateID(id)
}

func (w *RecordWriter) currentValue(id DataID, key string) (any, bool) {
	rec, _ := w.view.Get(id)
	if rec == nil {
		return nil, false
	}
	return rec.Field(key)
}

func (w *RecordWriter) recordForWrite(id DataID, op string) *Record {
	recs := w.records()
	rec := recs[id]
	if rec == nil {
		if !w.isOptimistic || w.view.RecordState(id) != Existent {
			panic(invariantf("RecordWriter.%s: expected record %q to exist in the %v layer", op, id, w.layer))
		}
		rec = newRecord(id, "")
		recs[id] = rec
	}
	if w.isOptimistic {
		rec.addMutationID(w.mutationID)
	}
	return rec
}

func (w *RecordWriter) changed(id DataID, rec *Record) {
	w.tracker.UpdateID(id)
	w.persist(id, rec)
}

func (w *RecordWriter) persist(id DataID, rec *Record) {
	if w.sink == nil || w.isOptimistic {
		return
	}
	w.sink.WriteNode(id, rec.Clone())
}
