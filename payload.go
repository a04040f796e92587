package gqlstore

import (
	"fmt"
)

// Payload is a JSON-like response object.
type Payload = map[string]any

// payloadWriter normalizes a response payload along a selection into
// record writes.
type payloadWriter struct {
	w    *RecordWriter
	vars map[string]any
}

func newPayloadWriter(w *RecordWriter, vars map[string]any) *payloadWriter {
	return &payloadWriter{w: w, vars: vars}
}

// writeRoot writes data as the record id.
func (pw *payloadWriter) writeRoot(id DataID, fields []*Field, data Payload) {
	var path *RecordPath
	if IsClientID(id) {
		path = &RecordPath{RootID: id}
	}
	pw.writeRecord(id, fields, data, path)
}

// writeMutationPayload writes every identified object found at the top level
// of a mutation payload. The payload object itself is not stored.
func (pw *payloadWriter) writeMutationPayload(fields []*Field, data Payload) {
	for _, f := range fields {
		v, ok := data[f.ResponseKey()]
		if !ok || v == nil {
			continue
		}
		switch f.Kind {
		case LinkedField:
			obj := asObject(v, f)
			if id, ok := objectID(obj); ok {
				pw.writeRecord(id, f.Fields, obj, nil)
			}
		case PluralField:
			for _, item := range asList(v, f) {
				if item == nil {
					continue
				}
				obj := asObject(item, f)
				if id, ok := objectID(obj); ok {
					pw.writeRecord(id, f.Fields, obj, nil)
				}
			}
		}
	}
}

func (pw *payloadWriter) writeRecord(id DataID, fields []*Field, data Payload, path *RecordPath) {
	typename, _ := data["__typename"].(string)
	if pw.w.RecordState(id) != Existent {
		pw.w.PutRecord(id, typename, path)
	}

	for _, f := range fields {
		v, ok := data[f.ResponseKey()]
		if !ok {
			continue
		}
		switch f.Kind {
		case ScalarField:
			pw.w.PutField(id, f.StorageKey(pw.vars), v)
		case LinkedField:
			pw.writeLinked(id, f, v, path)
		case PluralField:
			pw.writePlural(id, f, v, path)
		case ConnectionField:
			pw.writeConnection(id, f, v, path)
		default:
			panic(invariantf("field %q has invalid kind %v", f.Name, f.Kind))
		}
	}
}

func (pw *payloadWriter) writeLinked(parentID DataID, f *Field, v any, parentPath *RecordPath) {
	key := f.StorageKey(pw.vars)
	if v == nil {
		pw.w.PutField(parentID, key, nil)
		return
	}
	obj := asObject(v, f)
	childID, ok := objectID(obj)
	if !ok {
		if parentID == RootID {
			childID = pw.w.DataID(key, f.identifyingArgValue(pw.vars))
		} else {
			childID = ClientID(parentID, key)
		}
	}
	pw.writeRecord(childID, f.Fields, obj, childPath(parentID, parentPath, key))
	pw.w.PutLinkedRecordID(parentID, key, childID)
	if parentID == RootID {
		pw.w.PutDataID(key, f.identifyingArgValue(pw.vars), childID)
	}
}

func (pw *payloadWriter) writePlural(parentID DataID, f *Field, v any, parentPath *RecordPath) {
	key := f.StorageKey(pw.vars)
	if v == nil {
		pw.w.PutField(parentID, key, nil)
		return
	}
	items := asList(v, f)
	ids := make([]DataID, 0, len(items))
	for i, item := range items {
		if item == nil {
			continue
		}
		obj := asObject(item, f)
		childID, ok := objectID(obj)
		if !ok {
			childID = clientItemID(parentID, key, i)
		}
		pw.writeRecord(childID, f.Fields, obj, childPath(parentID, parentPath, fmt.Sprintf("%s:%d", key, i)))
		ids = append(ids, childID)
	}
	pw.w.PutLinkedRecordIDs(parentID, key, ids)
}

// writeConnection writes {edges: [{cursor, node}], pageInfo} into a
// connection record carrying a Range.
func (pw *payloadWriter) writeConnection(parentID DataID, f *Field, v any, parentPath *RecordPath) {
	key := f.connectionStorageKey(pw.vars)
	if v == nil {
		pw.w.PutField(parentID, key, nil)
		return
	}
	obj := asObject(v, f)
	connID := ClientID(parentID, key)
	connPath := childPath(parentID, parentPath, key)
	pw.writeRecord(connID, nil, obj, connPath)
	pw.w.PutRange(connID, f.filterCallsKey(pw.vars))

	var edges []RangeEdge
	for _, item := range asList(obj["edges"], f) {
		if item == nil {
			continue
		}
		edge := asObject(item, f)
		nodeVal, _ := edge["node"].(Payload)
		if nodeVal == nil {
			continue
		}
		nodeID, ok := objectID(nodeVal)
		if !ok {
			panic(invariantf("connection %q: edge nodes must have an id", f.Name))
		}
		eid := edgeID(connID, nodeID)
		cursor, _ := edge["cursor"].(string)

		pw.writeRecord(nodeID, f.Fields, nodeVal, nil)
		pw.writeRecord(eid, nil, Payload{}, connPath.child("edge:"+string(nodeID)))
		pw.w.PutField(eid, "cursor", cursor)
		pw.w.PutLinkedRecordID(eid, "node", nodeID)
		edges = append(edges, RangeEdge{EdgeID: eid, NodeID: nodeID, Cursor: cursor})
	}
	pw.w.PutRangeEdges(connID, edges, readPageInfo(obj["pageInfo"]))
	pw.w.PutLinkedRecordID(parentID, key, connID)
}

func readPageInfo(v any) PageInfo {
	m, _ := v.(Payload)
	var pi PageInfo
	pi.HasNextPage, _ = m["hasNextPage"].(bool)
	pi.HasPreviousPage, _ = m["hasPreviousPage"].(bool)
	pi.StartCursor, _ = m["startCursor"].(string)
	pi.EndCursor, _ = m["endCursor"].(string)
	return pi
}

func childPath(parentID DataID, parentPath *RecordPath, key string) *RecordPath {
	if IsClientID(parentID) && parentPath != nil {
		return parentPath.child(key)
	}
	return &RecordPath{RootID: parentID, Steps: []string{key}}
}

func objectID(obj Payload) (DataID, bool) {
	switch v := obj["id"].(type) {
	case string:
		if v != "" {
			return DataID(v), true
		}
	case DataID:
		if v != "" {
			return v, true
		}
	}
	return "", false
}

func asObject(v any, f *Field) Payload {
	obj, ok := v.(Payload)
	if !ok {
		panic(invariantf("field %q: expected an object, got %T", f.Name, v))
	}
	return obj
}

func asList(v any, f *Field) []any {
	switch list := v.(type) {
	case nil:
		return nil
	case []any:
		return list
	case []Payload:
		out := make([]any, len(list))
		for i, item := range list {
			out[i] = item
		}
		return out
	default:
		panic(invariantf("field %q: expected a list, got %T", f.Name, v))
	}
}
