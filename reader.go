package gqlstore

import "slices"

// Snapshot is the materialized result of reading a selector.
type Snapshot struct {
	Selector Selector

	// Data is nil when the root record is unknown or does not exist. Every
	// object carries its id under "__dataID__".
	Data Payload

	SeenRecords   map[DataID]struct{}
	IsMissingData bool

	// OptimisticIDs lists, for each record read that is shadowed by
	// optimistic data, the pending transactions responsible for it.
	OptimisticIDs map[DataID][]ClientMutationID
}

func (snap *Snapshot) seenIDs() []DataID {
	return sortedKeys(snap.SeenRecords)
}

type reader struct {
	store *RecordStore
	vars  map[string]any
	snap  *Snapshot
}

func readSelector(store *RecordStore, sel Selector) *Snapshot {
	r := &reader{
		store: store,
		vars:  sel.Variables,
		snap: &Snapshot{
			Selector:    sel,
			SeenRecords: make(map[DataID]struct{}),
		},
	}
	r.snap.Data = r.readRecord(sel.DataID, sel.Fields)
	return r.snap
}

func (r *reader) readRecord(id DataID, fields []*Field) Payload {
	r.snap.SeenRecords[id] = struct{}{}
	rec, state := r.store.Get(id)
	switch state {
	case Unknown:
		r.snap.IsMissingData = true
		return nil
	case Nonexistent:
		return nil
	}
	if r.store.top == layerQueued && r.store.HasOptimisticUpdate(id) {
		if r.snap.OptimisticIDs == nil {
			r.snap.OptimisticIDs = make(map[DataID][]ClientMutationID)
		}
		r.snap.OptimisticIDs[id] = slices.Clone(rec.MutationIDs)
	}

	out := Payload{"__dataID__": id}
	if rec.Typename != "" {
		out["__typename"] = rec.Typename
	}
	for _, f := range fields {
		rk := f.ResponseKey()
		switch f.Kind {
		case ScalarField:
			v, ok := rec.Field(f.StorageKey(r.vars))
			if !ok {
				r.snap.IsMissingData = true
				continue
			}
			out[rk] = v
		case LinkedField:
			childID, ok := r.linkedID(id, rec, f)
			if !ok {
				r.snap.IsMissingData = true
				continue
			}
			if childID == "" {
				out[rk] = nil
				continue
			}
			out[rk] = r.readRecord(childID, f.Fields)
		case PluralField:
			key := f.StorageKey(r.vars)
			ids, ok := rec.LinkLists[key]
			if !ok {
				if v, isNull := rec.Fields[key]; isNull && v == nil {
					out[rk] = nil
				} else {
					r.snap.IsMissingData = true
				}
				continue
			}
			items := make([]any, 0, len(ids))
			for _, childID := range ids {
				items = append(items, r.readRecord(childID, f.Fields))
			}
			out[rk] = items
		case ConnectionField:
			key := f.connectionStorageKey(r.vars)
			connID, ok := rec.Links[key]
			if !ok {
				if v, isNull := rec.Fields[key]; isNull && v == nil {
					out[rk] = nil
				} else {
					r.snap.IsMissingData = true
				}
				continue
			}
			out[rk] = r.readConnection(connID, f)
		}
	}
	return out
}

func (r *reader) linkedID(id DataID, rec *Record, f *Field) (DataID, bool) {
	key := f.StorageKey(r.vars)
	if childID, ok := rec.Links[key]; ok {
		return childID, true
	}
	if v, ok := rec.Fields[key]; ok && v == nil {
		return "", true
	}
	if id == RootID {
		return r.store.RootCallID(key, f.identifyingArgValue(r.vars))
	}
	return "", false
}

func (r *reader) readConnection(connID DataID, f *Field) Payload {
	r.snap.SeenRecords[connID] = struct{}{}
	rec, state := r.store.Get(connID)
	if state != Existent {
		if state == Unknown {
			r.snap.IsMissingData = true
		}
		return nil
	}
	if rec.Range == nil {
		r.snap.IsMissingData = true
		return Payload{"__dataID__": connID}
	}
	edges := make([]any, 0, len(rec.Range.Edges))
	for _, e := range rec.Range.Edges {
		r.snap.SeenRecords[e.EdgeID] = struct{}{}
		edges = append(edges, Payload{
			"cursor": e.Cursor,
			"node":   r.readRecord(e.NodeID, f.Fields),
		})
	}
	pi := rec.Range.PageInfo
	return Payload{
		"__dataID__": connID,
		"edges":      edges,
		"pageInfo": Payload{
			"hasNextPage":     pi.HasNextPage,
			"hasPreviousPage": pi.HasPreviousPage,
			"startCursor":     pi.StartCursor,
			"endCursor":       pi.EndCursor,
		},
	}
}
